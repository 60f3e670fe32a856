package credential

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openfield/gatepass/internal/domain"
)

// Payload is the decoded form of the QR string "entryID:passType:signature".
type Payload struct {
	EntryID   int64
	PassType  domain.PassType
	Signature string
}

// ParseError describes exactly what was wrong with a scanned string so the
// operator can be shown a specific message, not a generic failure.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "invalid credential payload: " + e.Reason
}

// Encode joins the payload fields with colons. Pass type names never contain
// colons (enforced by the closed catalog), so no escaping is needed.
func Encode(entryID int64, pt domain.PassType, signature string) string {
	return fmt.Sprintf("%d:%s:%s", entryID, pt, signature)
}

// Decode parses and validates a scanned payload. Exactly three fields, a
// positive integer entry ID, a pass type from the closed catalog and a
// non-empty signature are required; anything else is a ParseError.
func Decode(raw string) (Payload, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return Payload{}, &ParseError{Reason: fmt.Sprintf("expected 3 colon-delimited fields, got %d", len(parts))}
	}

	entryID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || entryID <= 0 {
		return Payload{}, &ParseError{Reason: "entry ID must be a positive integer"}
	}

	if parts[1] == "" {
		return Payload{}, &ParseError{Reason: "pass type must not be empty"}
	}
	pt, err := domain.ParsePassType(parts[1])
	if err != nil {
		return Payload{}, &ParseError{Reason: fmt.Sprintf("unknown pass type %q", parts[1])}
	}

	if parts[2] == "" {
		return Payload{}, &ParseError{Reason: "signature must not be empty"}
	}

	return Payload{EntryID: entryID, PassType: pt, Signature: parts[2]}, nil
}
