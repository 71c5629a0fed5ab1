package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGeneratesAndPersists(t *testing.T) {
	dir, err := os.MkdirTemp("", "solar-identity")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)

	keyPath := filepath.Join(dir, "identity.key")

	kp1, err := Load(keyPath)
	if err != nil {
		t.Fatalf("Load (generate): %v", err)
	}
	if kp1.ID() == "" {
		t.Fatal("expected non-empty ID")
	}

	kp2, err := Load(keyPath)
	if err != nil {
		t.Fatalf("Load (reuse): %v", err)
	}
	if kp1.ID() != kp2.ID() {
		t.Fatalf("expected stable identity across loads, got %s then %s", kp1.ID(), kp2.ID())
	}
}

func TestSignAndVerify(t *testing.T) {
	dir, err := os.MkdirTemp("", "solar-identity")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)

	kp, err := Load(filepath.Join(dir, "identity.key"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	msg := []byte("hello solar")
	sig, err := kp.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) == 0 {
		t.Fatal("expected non-empty signature")
	}
	if ok, err := kp.Pub.Verify(msg, sig); err != nil || !ok {
		t.Fatalf("expected signature to verify, got ok=%v err=%v", ok, err)
	}
	if err := ValidatePublicKey(kp.Public()); err != nil {
		t.Fatalf("ValidatePublicKey: %v", err)
	}
}

func TestValidatePublicKeyRejectsBadLength(t *testing.T) {
	if err := ValidatePublicKey([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short key")
	}
}
