package audit

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "claimgate/pkg/domain-errors"
)

// Cursor encodes the last-seen sort key tuple. Records are ordered
// (ts DESC, auditId DESC); the next page's predicate is
// (ts, auditId) < (cursor.TS, cursor.AuditID) under that ordering, so ties
// on timestamp can never skip or duplicate a record.
type Cursor struct {
	TS      time.Time
	AuditID uuid.UUID
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%s", c.TS.UnixNano(), c.AuditID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token back into the sort key tuple. Malformed
// tokens are validation errors, not internal ones.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, dErrors.NewField(dErrors.CodeValidation, "cursor", "malformed cursor token")
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return Cursor{}, dErrors.NewField(dErrors.CodeValidation, "cursor", "malformed cursor token")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, dErrors.NewField(dErrors.CodeValidation, "cursor", "malformed cursor timestamp")
	}
	auditID, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, dErrors.NewField(dErrors.CodeValidation, "cursor", "malformed cursor id")
	}
	return Cursor{TS: time.Unix(0, nanos).UTC(), AuditID: auditID}, nil
}

// after reports whether the record sorts strictly after the cursor under
// (ts DESC, auditId DESC), i.e. belongs to a later page.
func (c Cursor) after(r Record) bool {
	if r.Timestamp.Before(c.TS) {
		return true
	}
	if r.Timestamp.Equal(c.TS) {
		return r.AuditID.String() < c.AuditID.String()
	}
	return false
}
