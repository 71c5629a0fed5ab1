package feed

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/solar-social/solar/internal/identity"
)

func newTestKeyPair(t *testing.T) *identity.KeyPair {
	t.Helper()
	dir, err := os.MkdirTemp("", "solar-feed")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	kp, err := identity.Load(filepath.Join(dir, "identity.key"))
	if err != nil {
		t.Fatalf("identity.Load: %v", err)
	}
	return kp
}

func TestSignChain(t *testing.T) {
	kp := newTestKeyPair(t)

	first, err := Sign(nil, kp, map[string]string{"type": "post", "text": "hello"})
	if err != nil {
		t.Fatalf("Sign first: %v", err)
	}
	if first.Sequence != 1 {
		t.Fatalf("expected sequence 1, got %d", first.Sequence)
	}
	if first.Previous != "" {
		t.Fatalf("expected empty previous for first message, got %q", first.Previous)
	}
	if first.ID() == "" {
		t.Fatal("expected non-empty id")
	}

	second, err := Sign(first, kp, map[string]string{"type": "post", "text": "world"})
	if err != nil {
		t.Fatalf("Sign second: %v", err)
	}
	if second.Sequence != 2 {
		t.Fatalf("expected sequence 2, got %d", second.Sequence)
	}
	if second.Previous != first.ID() {
		t.Fatalf("expected previous %q, got %q", first.ID(), second.Previous)
	}
}

func TestKVTRoundTrip(t *testing.T) {
	kp := newTestKeyPair(t)
	mv, err := Sign(nil, kp, map[string]string{"type": "post", "text": "round trip"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	kvt := NewKVT(mv)
	data, err := kvt.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, present := raw["rts"]; present {
		t.Fatal("expected rts to be omitted from the wire encoding")
	}

	var decoded KVT
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if decoded.Key != kvt.Key {
		t.Fatalf("expected key %q, got %q", kvt.Key, decoded.Key)
	}
	if decoded.RTS != nil {
		t.Fatal("expected RTS to be nil after unmarshal")
	}
	if decoded.Value.Author != mv.Author || decoded.Value.Sequence != mv.Sequence {
		t.Fatalf("decoded value mismatch: %+v vs %+v", decoded.Value, mv)
	}
}
