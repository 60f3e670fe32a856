package credential_test

import (
	"errors"
	"testing"

	"github.com/openfield/gatepass/internal/credential"
	"github.com/openfield/gatepass/internal/domain"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	sig := credential.Sign("Jane Doe|passport|P1234567", "secret")

	for _, pt := range domain.AllPassTypes {
		raw := credential.Encode(42, pt, sig)

		payload, err := credential.Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", raw, err)
		}
		if payload.EntryID != 42 {
			t.Fatalf("Expected entry ID 42, got %d", payload.EntryID)
		}
		if payload.PassType != pt {
			t.Fatalf("Expected pass type %s, got %s", pt, payload.PassType)
		}
		if payload.Signature != sig {
			t.Fatalf("Signature mangled in round trip: %s", payload.Signature)
		}
	}
}

func TestDecode_RejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"no separators", "garbage"},
		{"two fields", "42:plenary"},
		{"four fields", "42:plenary:sig:extra"},
		{"non-numeric entry id", "abc:plenary:sig"},
		{"zero entry id", "0:plenary:sig"},
		{"negative entry id", "-5:plenary:sig"},
		{"empty pass type", "42::sig"},
		{"unknown pass type", "42:vip_backstage:sig"},
		{"empty signature", "42:plenary:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := credential.Decode(tt.raw)
			if err == nil {
				t.Fatalf("Expected Decode(%q) to fail", tt.raw)
			}

			var parseErr *credential.ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("Expected ParseError, got %T: %v", err, err)
			}
			if parseErr.Reason == "" {
				t.Fatal("Expected a specific reason in ParseError")
			}
		})
	}
}
