package crypto

import (
	"errors"
	"io"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, plain := range []string{"", "RHPORT=4242\n", "RHPORT=1\nA=b\nC=d\n"} {
		payload, err := EncryptString("secret", "shop-bob", plain)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plain, err)
		}
		got, err := DecryptToString("secret", "shop-bob", payload)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plain, err)
		}
		if got != plain {
			t.Fatalf("round trip mismatch: %q != %q", got, plain)
		}
	}
}

func TestDecryptRejectsWrongSecret(t *testing.T) {
	payload, err := EncryptString("secret", "shop-bob", "RHPORT=1\n")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptToString("other", "shop-bob", payload); !errors.Is(err, ErrSealedElsewhere) {
		t.Fatalf("expected ErrSealedElsewhere with wrong secret, got %v", err)
	}
	if _, err := DecryptToString("secret", "shop-bob", []byte("x")); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected truncated payload error, got %v", err)
	}
}

func TestDecryptRejectsPayloadFromAnotherProject(t *testing.T) {
	payload, err := EncryptString("secret", "shop-bob", "RHPORT=1\nTOKEN=x")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptToString("secret", "shop-mallory", payload); !errors.Is(err, ErrSealedElsewhere) {
		t.Fatalf("payload copied to another project must not open, got %v", err)
	}
}
