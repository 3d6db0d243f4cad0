package evaluate

import (
	"encoding/json"
	"fmt"

	dErrors "claimgate/pkg/domain-errors"
)

// PayloadKind tags the resolved input shape.
type PayloadKind string

const (
	KindSingleItem PayloadKind = "single_item"
	KindItemBatch  PayloadKind = "item_batch"
	KindGeneric    PayloadKind = "generic"
)

// Item is one unit of claim text to evaluate.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// ClaimText is the string the transforms run over: the free text when
// present, otherwise the item name.
func (i Item) ClaimText() string {
	if i.Text != "" {
		return i.Text
	}
	return i.Name
}

// Payload is the tagged union of accepted input shapes, resolved exactly
// once at the boundary.
type Payload struct {
	Kind  PayloadKind
	Items []Item
}

type payloadProbe struct {
	Items []Item `json:"items"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Text  string `json:"text"`
}

// ResolvePayload classifies the raw body as a batch, a single item, or a
// generic text payload. The shape is decided here once; downstream code
// dispatches on Kind instead of re-sniffing the JSON.
func ResolvePayload(raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return Payload{}, dErrors.NewField(dErrors.CodeValidation, "payload", "payload is required")
	}

	var probe payloadProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		// A bare JSON string is a valid generic payload.
		var text string
		if strErr := json.Unmarshal(raw, &text); strErr == nil {
			return genericPayload(text)
		}
		return Payload{}, dErrors.NewField(dErrors.CodeValidation, "payload", "payload must be an object, an items array wrapper, or a string")
	}

	switch {
	case probe.Items != nil:
		if len(probe.Items) == 0 {
			return Payload{}, dErrors.NewField(dErrors.CodeValidation, "payload.items", "items array is empty")
		}
		for i, item := range probe.Items {
			if item.ClaimText() == "" {
				return Payload{}, dErrors.NewField(dErrors.CodeValidation,
					fmt.Sprintf("payload.items[%d]", i), "item has no text or name")
			}
		}
		return Payload{Kind: KindItemBatch, Items: probe.Items}, nil

	case probe.ID != "" && probe.Name != "":
		item := Item{ID: probe.ID, Name: probe.Name, Text: probe.Text}
		return Payload{Kind: KindSingleItem, Items: []Item{item}}, nil

	default:
		return genericPayload(probe.Text)
	}
}

func genericPayload(text string) (Payload, error) {
	if text == "" {
		return Payload{}, dErrors.NewField(dErrors.CodeValidation, "payload.text", "generic payload has no text")
	}
	return Payload{Kind: KindGeneric, Items: []Item{{Text: text}}}, nil
}
