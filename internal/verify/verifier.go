// Package verify makes the admit/deny decision for a scanned credential.
// The verifier is directory-agnostic: handed a device-local snapshot it runs
// fully offline; handed a live repository it becomes the online double-check.
// It never performs network I/O of its own.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/openfield/gatepass/internal/credential"
	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/gates"
)

// Directory resolves attendee records by entry ID. Returns (nil, nil) when
// the entry does not exist.
type Directory interface {
	Lookup(ctx context.Context, entryID int64) (*domain.Attendee, error)
}

// DirectoryFunc adapts a lookup function, e.g. a live repository method,
// into a Directory.
type DirectoryFunc func(ctx context.Context, entryID int64) (*domain.Attendee, error)

func (f DirectoryFunc) Lookup(ctx context.Context, entryID int64) (*domain.Attendee, error) {
	return f(ctx, entryID)
}

type Verifier struct {
	dir     Directory
	catalog *gates.Catalog
	secret  string
	now     func() time.Time
}

type Option func(*Verifier)

// WithClock overrides the time source, for testing gate windows.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func New(dir Directory, catalog *gates.Catalog, credentialSecret string, opts ...Option) *Verifier {
	v := &Verifier{
		dir:     dir,
		catalog: catalog,
		secret:  credentialSecret,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the ordered checks for one scan and short-circuits on the
// first failure. Every outcome is a Decision; this path never panics and
// never returns a Go error for a bad credential.
func (v *Verifier) Verify(ctx context.Context, rawPayload, gateNumber string) (domain.Decision, error) {
	payload, err := credential.Decode(rawPayload)
	if err != nil {
		return domain.Denied(domain.DenyMalformedCode, err.Error()), nil
	}

	attendee, err := v.dir.Lookup(ctx, payload.EntryID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("directory lookup: %w", err)
	}
	if attendee == nil {
		return domain.Denied(domain.DenyUnknownAttendee,
			fmt.Sprintf("Entry ID %d does not exist", payload.EntryID)), nil
	}

	if !credential.VerifySignature(attendee.CanonicalIdentity(), payload.Signature, v.secret) {
		d := domain.Denied(domain.DenyBadSignature, "QR code signature verification failed")
		d.EntryID = attendee.ID
		return d, nil
	}

	if !attendee.Holds(payload.PassType) {
		d := domain.Denied(domain.DenyEntitlementNotHeld,
			fmt.Sprintf("This attendee does not hold a %s pass", payload.PassType))
		d.EntryID = attendee.ID
		d.Name = attendee.Name
		d.Organization = attendee.Organization
		d.PassType = payload.PassType
		return d, nil
	}

	if ok, reason := v.catalog.IsAcceptedAt(gateNumber, payload.PassType, v.now()); !ok {
		d := domain.Denied(reason, denyMessage(reason, gateNumber))
		d.EntryID = attendee.ID
		d.Name = attendee.Name
		d.Organization = attendee.Organization
		d.PassType = payload.PassType
		return d, nil
	}

	return domain.Admitted(attendee, payload.PassType), nil
}

func denyMessage(reason domain.DenyReason, gateNumber string) string {
	switch reason {
	case domain.DenyWrongGate:
		return fmt.Sprintf("This pass is not valid for %s", gateNumber)
	case domain.DenyOutsideWindow:
		return fmt.Sprintf("%s is not active at this time", gateNumber)
	case domain.DenyUnknownGate:
		return fmt.Sprintf("Unknown gate %q", gateNumber)
	default:
		return "Entry denied"
	}
}
