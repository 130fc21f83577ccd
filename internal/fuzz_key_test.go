package internal

import (
	"testing"
)

// FuzzDeriveKey checks that derivation is reversible for arbitrary inputs.
// Goal: no panics; every non-empty pair round-trips through DecodeKey.
func FuzzDeriveKey(f *testing.F) {
	f.Add("6f1c0a52-3b9e-4c1d-8a77-0e5f2b9d4c11", "az3rty!")
	f.Add("a", "b")
	f.Add("", "secret")
	f.Add("id", "")
	f.Add("ünïcødé", "\x00\xff")

	if id, err := NewIdentifier(); err == nil {
		f.Add(id, "s3cr3t")
	}

	f.Fuzz(func(t *testing.T, identifier, secret string) {
		key, err := DeriveKey(identifier, secret)
		if identifier == "" || secret == "" {
			if err == nil {
				t.Fatalf("expected error for empty input (%q, %q)", identifier, secret)
			}
			return
		}
		if err != nil {
			t.Fatalf("DeriveKey failed: %v", err)
		}

		again, err := DeriveKey(identifier, secret)
		if err != nil || again != key {
			t.Fatalf("derivation not deterministic: %q vs %q (%v)", key, again, err)
		}

		plain, err := DecodeKey(key)
		if err != nil {
			t.Fatalf("DecodeKey failed: %v", err)
		}
		if plain != identifier+secret {
			t.Fatalf("round trip mismatch: %q vs %q", plain, identifier+secret)
		}
	})
}
