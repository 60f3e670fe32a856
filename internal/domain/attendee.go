package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PassType is the closed set of entitlement labels an attendee can hold.
// Pass type names never contain colons; the credential payload relies on that.
type PassType string

const (
	PassExhibitionDay1      PassType = "exhibition_day1"
	PassExhibitionDay2      PassType = "exhibition_day2"
	PassInteractiveSessions PassType = "interactive_sessions"
	PassPlenary             PassType = "plenary"
	PassExhibitor           PassType = "exhibitor_pass"
)

var AllPassTypes = []PassType{
	PassExhibitionDay1,
	PassExhibitionDay2,
	PassInteractiveSessions,
	PassPlenary,
	PassExhibitor,
}

var ErrUnknownPassType = errors.New("unknown pass type")

// ParsePassType rejects anything outside the closed catalog. Unknown labels
// are stopped here, at the boundary, not deep in the admit logic.
func ParsePassType(s string) (PassType, error) {
	pt := PassType(strings.TrimSpace(s))
	for _, known := range AllPassTypes {
		if pt == known {
			return pt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPassType, s)
}

func (p PassType) String() string { return string(p) }

// Attendee is a registered person with zero or more pass entitlements.
// QRSignature is issued once at registration and never changes; entitlement
// flags are administrative state and may change after issuance.
type Attendee struct {
	ID           int64     `json:"entry_id"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	IDType       string    `json:"id_type"`
	IDNumber     string    `json:"id_number"`
	QRSignature  string    `json:"qr_signature"`

	ExhibitionDay1      bool `json:"exhibition_day1"`
	ExhibitionDay2      bool `json:"exhibition_day2"`
	InteractiveSessions bool `json:"interactive_sessions"`
	Plenary             bool `json:"plenary"`
	IsExhibitor         bool `json:"is_exhibitor"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanonicalIdentity is the string the credential signature binds. Only stable
// identity fields participate; entitlement flags are deliberately excluded so
// grants and revocations never invalidate an issued pass.
func (a *Attendee) CanonicalIdentity() string {
	return a.Name + "|" + a.IDType + "|" + a.IDNumber
}

// Holds reports whether the attendee currently holds the given entitlement.
// The exhibitor flag aggregates both exhibition days.
func (a *Attendee) Holds(pt PassType) bool {
	switch pt {
	case PassExhibitionDay1:
		return a.ExhibitionDay1 || a.IsExhibitor
	case PassExhibitionDay2:
		return a.ExhibitionDay2 || a.IsExhibitor
	case PassInteractiveSessions:
		return a.InteractiveSessions
	case PassPlenary:
		return a.Plenary
	case PassExhibitor:
		return a.IsExhibitor
	default:
		return false
	}
}

// HeldPassTypes lists the entitlements currently flagged on the record.
func (a *Attendee) HeldPassTypes() []PassType {
	var held []PassType
	for _, pt := range AllPassTypes {
		if a.Holds(pt) {
			held = append(held, pt)
		}
	}
	return held
}

var ErrDuplicateIDNumber = errors.New("an attendee with this ID number is already registered")
