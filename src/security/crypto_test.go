package security

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tokens := []string{
		"t-1234567890abcdef",
		"",
		"a token with spaces and unicode ±§",
	}

	for _, token := range tokens {
		encrypted, err := EncryptString(token)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if encrypted == token && token != "" {
			t.Fatal("encrypted payload must differ from the plaintext")
		}

		decrypted, err := DecryptString(encrypted)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if decrypted != token {
			t.Fatalf("round trip mismatch. got=%q want=%q", decrypted, token)
		}
	}
}

func TestEncryptIsSalted(t *testing.T) {
	first, err := EncryptString("same token")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	second, err := EncryptString("same token")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if first == second {
		t.Fatal("two encryptions of the same plaintext must not be equal")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	t.Setenv("FLEX_TOKEN_KEY", "first-key")
	encrypted, err := EncryptString("t-1234567890abcdef")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	t.Setenv("FLEX_TOKEN_KEY", "second-key")
	if _, err := DecryptString(encrypted); err == nil {
		t.Fatal("expected decryption with the wrong key to fail")
	}
}

func TestDecryptGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not base64", input: "%%% not base64 %%%"},
		{name: "too short", input: "AAEC"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecryptString(tt.input); err == nil {
				t.Fatal("expected error, got none")
			}
		})
	}
}

func TestDecryptTamperedPayload(t *testing.T) {
	encrypted, err := EncryptString("t-1234567890abcdef")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	// Flip a character near the end of the base64 payload.
	tampered := []byte(encrypted)
	last := len(tampered) - 2
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = DecryptString(string(tampered))
	if err == nil {
		t.Fatal("expected tampered payload to fail decryption")
	}
	if !strings.Contains(err.Error(), "decrypt") && !strings.Contains(err.Error(), "decode") {
		t.Fatalf("unexpected error: %v", err)
	}
}
