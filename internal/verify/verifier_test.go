package verify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openfield/gatepass/internal/credential"
	"github.com/openfield/gatepass/internal/domain"
	"github.com/openfield/gatepass/internal/gates"
	"github.com/openfield/gatepass/internal/verify"
)

const testSecret = "test-credential-secret"

func testCatalog(t *testing.T) *gates.Catalog {
	t.Helper()
	c, err := gates.New([]domain.Gate{
		{
			Number:        "Gate 1",
			Name:          "Exhibition Day 1",
			Date:          "2025-11-25",
			TimeStart:     "1100",
			TimeEnd:       "1730",
			AllowedPasses: []domain.PassType{domain.PassExhibitionDay1, domain.PassExhibitor},
		},
		{
			Number:        "Gate 4",
			Name:          "Plenary",
			Date:          "2025-11-26",
			TimeStart:     "1625",
			TimeEnd:       "1755",
			AllowedPasses: []domain.PassType{domain.PassPlenary},
		},
		{
			Number:    "Main Entrance",
			AcceptAll: true,
		},
	}, time.UTC)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return c
}

func testAttendee() domain.Attendee {
	a := domain.Attendee{
		ID:             101,
		Name:           "Jane Doe",
		Organization:   "Acme Corp",
		IDType:         "passport",
		IDNumber:       "P1234567",
		ExhibitionDay1: true,
	}
	a.QRSignature = credential.Sign(a.CanonicalIdentity(), testSecret)
	return a
}

func at(t *testing.T, value string) func() time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, time.UTC)
	if err != nil {
		t.Fatalf("Failed to parse time %q: %v", value, err)
	}
	return func() time.Time { return ts }
}

func newVerifier(t *testing.T, attendees []domain.Attendee, clock func() time.Time) *verify.Verifier {
	t.Helper()
	return verify.New(verify.NewSnapshot(attendees), testCatalog(t), testSecret, verify.WithClock(clock))
}

func TestVerify_AdmitsValidPassAtOpenGate(t *testing.T) {
	a := testAttendee()
	v := newVerifier(t, []domain.Attendee{a}, at(t, "2025-11-25 12:00"))

	payload := credential.Encode(a.ID, domain.PassExhibitionDay1, a.QRSignature)
	decision, err := v.Verify(context.Background(), payload, "Gate 1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if !decision.Valid || !decision.Allowed {
		t.Fatalf("Expected admit, got valid=%v allowed=%v reason=%q", decision.Valid, decision.Allowed, decision.Reason)
	}
	if decision.EntryID != a.ID || decision.Name != a.Name || decision.PassType != domain.PassExhibitionDay1 {
		t.Fatalf("Decision missing attendee details: %+v", decision)
	}
}

func TestVerify_DenialOrderAndClassification(t *testing.T) {
	a := testAttendee()
	forged := credential.Sign("Someone Else|passport|X0000000", testSecret)

	tests := []struct {
		name       string
		payload    string
		gate       string
		clock      func() time.Time
		wantReason domain.DenyReason
		wantValid  bool
	}{
		{
			"malformed payload",
			"not-a-credential",
			"Gate 1", at(t, "2025-11-25 12:00"),
			domain.DenyMalformedCode, false,
		},
		{
			"unknown entry id",
			credential.Encode(999, domain.PassExhibitionDay1, a.QRSignature),
			"Gate 1", at(t, "2025-11-25 12:00"),
			domain.DenyUnknownAttendee, false,
		},
		{
			"forged signature",
			credential.Encode(a.ID, domain.PassExhibitionDay1, forged),
			"Gate 1", at(t, "2025-11-25 12:00"),
			domain.DenyBadSignature, false,
		},
		{
			"pass not held",
			credential.Encode(a.ID, domain.PassPlenary, a.QRSignature),
			"Gate 4", at(t, "2025-11-26 17:00"),
			domain.DenyEntitlementNotHeld, true,
		},
		{
			"wrong gate for held pass",
			credential.Encode(a.ID, domain.PassExhibitionDay1, a.QRSignature),
			"Gate 4", at(t, "2025-11-26 17:00"),
			domain.DenyWrongGate, true,
		},
		{
			"right gate outside window",
			credential.Encode(a.ID, domain.PassExhibitionDay1, a.QRSignature),
			"Gate 1", at(t, "2025-11-25 18:00"),
			domain.DenyOutsideWindow, true,
		},
		{
			"unknown gate",
			credential.Encode(a.ID, domain.PassExhibitionDay1, a.QRSignature),
			"Gate 77", at(t, "2025-11-25 12:00"),
			domain.DenyUnknownGate, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVerifier(t, []domain.Attendee{a}, tt.clock)
			decision, err := v.Verify(context.Background(), tt.payload, tt.gate)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if decision.Allowed {
				t.Fatal("Expected denial")
			}
			if decision.Reason != tt.wantReason {
				t.Fatalf("Expected reason %q, got %q", tt.wantReason, decision.Reason)
			}
			if decision.Valid != tt.wantValid {
				t.Fatalf("Expected valid=%v, got %v", tt.wantValid, decision.Valid)
			}
			if decision.Message == "" {
				t.Fatal("Expected a human-readable message")
			}
		})
	}
}

func TestVerify_ExhibitorPassCoversBothExhibitionDays(t *testing.T) {
	a := domain.Attendee{
		ID:          202,
		Name:        "Sam Vendor",
		IDType:      "aadhar",
		IDNumber:    "9999-0000-1111",
		IsExhibitor: true,
	}
	a.QRSignature = credential.Sign(a.CanonicalIdentity(), testSecret)

	v := newVerifier(t, []domain.Attendee{a}, at(t, "2025-11-25 12:00"))

	// An exhibitor scanning a day-1 credential is admitted even though the
	// explicit day-1 flag is off.
	payload := credential.Encode(a.ID, domain.PassExhibitionDay1, a.QRSignature)
	decision, err := v.Verify(context.Background(), payload, "Gate 1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Expected exhibitor admission, got reason %q", decision.Reason)
	}
}

func TestVerify_EntitlementsCheckedLiveNotFromPayload(t *testing.T) {
	// Signature was issued while the attendee held day 1; the flag has since
	// been revoked. The signature still verifies but admission is refused.
	a := testAttendee()
	a.ExhibitionDay1 = false

	v := newVerifier(t, []domain.Attendee{a}, at(t, "2025-11-25 12:00"))

	payload := credential.Encode(a.ID, domain.PassExhibitionDay1, a.QRSignature)
	decision, err := v.Verify(context.Background(), payload, "Gate 1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected denial after revocation")
	}
	if decision.Reason != domain.DenyEntitlementNotHeld {
		t.Fatalf("Expected entitlement_not_held, got %q", decision.Reason)
	}
	if !decision.Valid {
		t.Fatal("Signature is genuine; decision should remain valid")
	}
}

func TestVerify_AcceptAllGateSkipsWindowAndPassChecks(t *testing.T) {
	a := testAttendee()
	v := newVerifier(t, []domain.Attendee{a}, at(t, "2025-11-20 03:00"))

	payload := credential.Encode(a.ID, domain.PassExhibitionDay1, a.QRSignature)
	decision, err := v.Verify(context.Background(), payload, "Main Entrance")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Expected accept-all admission, got reason %q", decision.Reason)
	}
}

func TestVerify_DirectoryErrorSurfacesAsError(t *testing.T) {
	failing := verify.DirectoryFunc(func(context.Context, int64) (*domain.Attendee, error) {
		return nil, errors.New("connection reset")
	})
	v := verify.New(failing, testCatalog(t), testSecret)

	payload := credential.Encode(1, domain.PassExhibitionDay1, "sig")
	_, err := v.Verify(context.Background(), payload, "Gate 1")
	if err == nil {
		t.Fatal("Expected a lookup error, not a decision")
	}
}

func TestSnapshot_ReplaceIsWholesale(t *testing.T) {
	a := testAttendee()
	snap := verify.NewSnapshot([]domain.Attendee{a})

	if snap.Len() != 1 {
		t.Fatalf("Expected 1 entry, got %d", snap.Len())
	}

	b := domain.Attendee{ID: 500, Name: "New Person", IDType: "pan", IDNumber: "ABCDE1234F"}
	snap.Replace([]domain.Attendee{b})

	if snap.Len() != 1 {
		t.Fatalf("Expected 1 entry after replace, got %d", snap.Len())
	}
	if got, _ := snap.Lookup(context.Background(), a.ID); got != nil {
		t.Fatal("Expected old entry to be gone after wholesale replace")
	}
	if got, _ := snap.Lookup(context.Background(), b.ID); got == nil {
		t.Fatal("Expected new entry to be present")
	}
}
