package evaluate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "claimgate/pkg/domain-errors"
)

func TestResolvePayload(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  PayloadKind
		wantItems int
		wantField string
	}{
		{
			name:      "item batch",
			raw:       `{"items":[{"id":"a","name":"Granola","text":"all natural granola"},{"id":"b","name":"Bar"}]}`,
			wantKind:  KindItemBatch,
			wantItems: 2,
		},
		{
			name:      "single item",
			raw:       `{"id":"a","name":"Granola","text":"all natural granola"}`,
			wantKind:  KindSingleItem,
			wantItems: 1,
		},
		{
			name:      "generic object with text",
			raw:       `{"text":"pure organic superfood blend"}`,
			wantKind:  KindGeneric,
			wantItems: 1,
		},
		{
			name:      "bare string",
			raw:       `"pure organic superfood blend"`,
			wantKind:  KindGeneric,
			wantItems: 1,
		},
		{
			name:      "empty payload",
			raw:       "",
			wantField: "payload",
		},
		{
			name:      "empty items array",
			raw:       `{"items":[]}`,
			wantField: "payload.items",
		},
		{
			name:      "item without text or name",
			raw:       `{"items":[{"id":"a","name":"Granola"},{"id":"b"}]}`,
			wantField: "payload.items[1]",
		},
		{
			name:      "generic without text",
			raw:       `{"unrelated":true}`,
			wantField: "payload.text",
		},
		{
			name:      "non-object non-string",
			raw:       `42`,
			wantField: "payload",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := ResolvePayload(json.RawMessage(tc.raw))
			if tc.wantField != "" {
				require.Error(t, err)
				var dErr *dErrors.Error
				require.ErrorAs(t, err, &dErr)
				assert.Equal(t, tc.wantField, dErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, payload.Kind)
			assert.Len(t, payload.Items, tc.wantItems)
		})
	}
}

func TestItemClaimText(t *testing.T) {
	assert.Equal(t, "free text", Item{Name: "Granola", Text: "free text"}.ClaimText())
	assert.Equal(t, "Granola", Item{Name: "Granola"}.ClaimText())
}
