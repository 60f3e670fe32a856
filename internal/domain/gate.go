package domain

// Gate is a static checkpoint definition. AcceptAll is the explicit
// discriminant for gates without a pass restriction; a gate with neither
// AcceptAll nor a non-empty AllowedPasses set is rejected at catalog load.
type Gate struct {
	Number        string     `json:"gate_number"`
	Name          string     `json:"name"`
	Location      string     `json:"location"`
	Date          string     `json:"date,omitempty"` // "2006-01-02", empty = any day
	TimeStart     string     `json:"time_start,omitempty"` // "1504", empty = any time
	TimeEnd       string     `json:"time_end,omitempty"`
	AllowedPasses []PassType `json:"allowed_passes"`
	AcceptAll     bool       `json:"accept_all"`
	SessionType   PassType   `json:"session_type,omitempty"` // session recorded at check-in, if fixed per gate
}

// Accepts reports whether the pass type is in the gate's allowed set.
// Time-window policy is handled separately by the catalog.
func (g *Gate) Accepts(pt PassType) bool {
	if g.AcceptAll {
		return true
	}
	for _, allowed := range g.AllowedPasses {
		if allowed == pt {
			return true
		}
	}
	return false
}

// DenyReason classifies why a scan was refused. Gate staff act on the
// specific reason, so a generic failure is never acceptable.
type DenyReason string

const (
	DenyMalformedCode      DenyReason = "malformed_code"
	DenyUnknownAttendee    DenyReason = "unknown_attendee"
	DenyBadSignature       DenyReason = "bad_signature"
	DenyEntitlementNotHeld DenyReason = "entitlement_not_held"
	DenyWrongGate          DenyReason = "wrong_gate"
	DenyOutsideWindow      DenyReason = "outside_window"
	DenyUnknownGate        DenyReason = "unknown_gate"
)

// CredentialValid reports whether the credential itself checked out even
// though admission was refused. Wrong-gate and not-held denials carry a
// valid credential; malformed, unknown and forged ones do not.
func (r DenyReason) CredentialValid() bool {
	switch r {
	case DenyMalformedCode, DenyUnknownAttendee, DenyBadSignature:
		return false
	default:
		return true
	}
}

// Decision is the outcome of verifying one scanned payload at one gate.
// Valid tracks credential integrity, Allowed tracks admission; the pair lets
// callers distinguish "forged or unknown" from "genuine but inapplicable here".
type Decision struct {
	Valid   bool       `json:"valid"`
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Message string     `json:"message"`

	EntryID      int64    `json:"entry_id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Organization string   `json:"organization,omitempty"`
	PassType     PassType `json:"pass_type,omitempty"`
}

func Admitted(a *Attendee, pt PassType) Decision {
	return Decision{
		Valid:        true,
		Allowed:      true,
		Message:      "Entry granted",
		EntryID:      a.ID,
		Name:         a.Name,
		Organization: a.Organization,
		PassType:     pt,
	}
}

func Denied(reason DenyReason, message string) Decision {
	return Decision{
		Valid:   reason.CredentialValid(),
		Allowed: false,
		Reason:  reason,
		Message: message,
	}
}
