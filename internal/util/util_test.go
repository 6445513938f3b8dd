package util

import (
	"bytes"
	"testing"
)

func TestAES(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	plainText := []byte("hello world")
	aad := []byte("context")

	t.Run("EncryptDecryptWithAAD", func(t *testing.T) {
		cipherText, err := EncryptAESWithAAD(plainText, key, aad)
		if err != nil {
			t.Fatalf("EncryptAESWithAAD failed: %v", err)
		}
		if len(cipherText) < GCMNonceSize+len(plainText) {
			t.Fatalf("ciphertext too short: %d", len(cipherText))
		}

		decrypted, err := DecryptAESWithAAD(cipherText, key, aad)
		if err != nil {
			t.Fatalf("DecryptAESWithAAD failed: %v", err)
		}

		if !bytes.Equal(plainText, decrypted) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
	})

	t.Run("TamperAAD", func(t *testing.T) {
		cipherText, _ := EncryptAESWithAAD(plainText, key, aad)
		_, err := DecryptAESWithAAD(cipherText, key, []byte("wrong context"))
		if err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		cipherText, _ := EncryptAESWithAAD(plainText, key, aad)
		cipherText[len(cipherText)-1] ^= 0xFF
		_, err := DecryptAESWithAAD(cipherText, key, aad)
		if err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		_, err := EncryptAESWithAAD(plainText, []byte("too short"), aad)
		if err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})

	t.Run("RejectShortCipherText", func(t *testing.T) {
		_, err := DecryptAESWithAAD([]byte("short"), key, aad)
		if err == nil {
			t.Error("expected error for truncated ciphertext, got nil")
		}
	})
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey([]byte("secret"), "storage")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if len(k1) != HKDFKeyLength {
		t.Fatalf("expected %d bytes, got %d", HKDFKeyLength, len(k1))
	}

	k2, _ := DeriveKey([]byte("secret"), "storage")
	if !bytes.Equal(k1, k2) {
		t.Error("derivation should be deterministic")
	}

	k3, _ := DeriveKey([]byte("secret"), "other")
	if bytes.Equal(k1, k3) {
		t.Error("different purposes should yield different keys")
	}

	if _, err := DeriveKey(nil, "storage"); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestBytes(t *testing.T) {
	dst := []byte{1, 2, 3}
	WipeBytes(dst)
	for _, b := range dst {
		if b != 0 {
			t.Fatal("WipeBytes left non-zero bytes")
		}
	}
}

func TestEncoding(t *testing.T) {
	if got := NormalizeIdentifier("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeIdentifier = %q", got)
	}
	// Fullwidth letters fold to ASCII under NFKC.
	if got := Normalize("ｓｈｏｐ"); got != "shop" {
		t.Errorf("Normalize = %q", got)
	}

	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	decoded, err := Base64URLDecode(Base64URLEncode(raw))
	if err != nil {
		t.Fatalf("Base64URLDecode failed: %v", err)
	}
	if !bytes.Equal(raw, decoded) {
		t.Errorf("round trip mismatch: %x", decoded)
	}
}

func TestRandom(t *testing.T) {
	b, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if len(b) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(b))
	}

	h1, err := RandomHex(32)
	if err != nil {
		t.Fatalf("RandomHex failed: %v", err)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	h2, _ := RandomHex(32)
	if h1 == h2 {
		t.Error("two random tokens should differ")
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert("shop.example.com", "10.0.0.5")
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}
	if cert.Leaf == nil {
		t.Fatal("expected parsed leaf")
	}
	if err := cert.Leaf.VerifyHostname("shop.example.com"); err != nil {
		t.Errorf("hostname: %v", err)
	}
	if err := cert.Leaf.VerifyHostname("10.0.0.5"); err != nil {
		t.Errorf("ip: %v", err)
	}
	if err := cert.Leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("localhost: %v", err)
	}
	if !cert.Leaf.NotAfter.After(cert.Leaf.NotBefore) {
		t.Error("validity window is empty")
	}
}
