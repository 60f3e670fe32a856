package credential_test

import (
	"strings"
	"testing"

	"github.com/openfield/gatepass/internal/credential"
)

func TestSign_DeterministicHex(t *testing.T) {
	sig1 := credential.Sign("Jane Doe|passport|P1234567", "secret-a")
	sig2 := credential.Sign("Jane Doe|passport|P1234567", "secret-a")

	if sig1 != sig2 {
		t.Fatalf("Expected identical signatures for identical input, got %s vs %s", sig1, sig2)
	}
	if len(sig1) != 64 {
		t.Fatalf("Expected 64 hex chars, got %d", len(sig1))
	}
	if strings.ToLower(sig1) != sig1 {
		t.Fatalf("Expected lowercase hex, got %s", sig1)
	}
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	canonical := "Jane Doe|aadhar|1234-5678-9012"
	sig := credential.Sign(canonical, "event-secret")

	if !credential.VerifySignature(canonical, sig, "event-secret") {
		t.Fatal("Expected freshly signed payload to verify")
	}
}

func TestVerifySignature_RejectsTampering(t *testing.T) {
	canonical := "Jane Doe|passport|P1234567"
	secret := "event-secret"
	sig := credential.Sign(canonical, secret)

	tests := []struct {
		name      string
		canonical string
		sig       string
		secret    string
	}{
		{"changed name", "John Doe|passport|P1234567", sig, secret},
		{"changed id number", "Jane Doe|passport|P7654321", sig, secret},
		{"wrong secret", canonical, sig, "other-secret"},
		{"truncated signature", canonical, sig[:len(sig)-2], secret},
		{"empty signature", canonical, "", secret},
		{"flipped hex digit", canonical, flipLastHex(sig), secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if credential.VerifySignature(tt.canonical, tt.sig, tt.secret) {
				t.Fatal("Expected verification to fail")
			}
		})
	}
}

func flipLastHex(sig string) string {
	last := sig[len(sig)-1]
	replacement := byte('0')
	if last == '0' {
		replacement = '1'
	}
	return sig[:len(sig)-1] + string(replacement)
}
