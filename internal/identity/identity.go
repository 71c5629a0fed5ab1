// Package identity manages the node's long-term Ed25519 keypair: loading
// it from disk, generating one if absent, and formatting/validating the
// author identities derived from it.
package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/edwards25519"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
)

// KeyPair is a node's long-term signing identity, backed by a libp2p
// Ed25519 key so the same identity can later be handed to a libp2p host
// without re-deriving it.
type KeyPair struct {
	Priv p2pcrypto.PrivKey
	Pub  p2pcrypto.PubKey

	// raw caches the public key's raw 32 bytes for ID() and Public()
	// without repeated Raw() calls.
	raw []byte
}

// Load reads an existing marshaled private key at path, or generates and
// persists a new Ed25519 key (0600 permissions) if none exists yet,
// mirroring the teacher's loadOrCreateKey bootstrap.
func Load(path string) (*KeyPair, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("identity: create key directory: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		priv, err := p2pcrypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("identity: unmarshal key file %s: %w", path, err)
		}
		return newKeyPair(priv)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("identity: read key file: %w", err)
	}

	priv, _, err := p2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}

	data, err := p2pcrypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal key: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("identity: persist key file: %w", err)
	}

	return newKeyPair(priv)
}

func newKeyPair(priv p2pcrypto.PrivKey) (*KeyPair, error) {
	pub := priv.GetPublic()
	raw, err := pub.Raw()
	if err != nil {
		return nil, fmt.Errorf("identity: extract raw public key: %w", err)
	}
	if err := ValidatePublicKey(raw); err != nil {
		return nil, err
	}
	return &KeyPair{Priv: priv, Pub: pub, raw: raw}, nil
}

// ID returns the SSB-style author identity for the keypair:
// "@" + base64(pubkey) + ".ed25519".
func (k *KeyPair) ID() string {
	return "@" + base64.StdEncoding.EncodeToString(k.raw) + ".ed25519"
}

// Public returns the raw 32-byte Ed25519 public key.
func (k *KeyPair) Public() []byte {
	return k.raw
}

// Sign signs msg with the keypair's private key.
func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	sig, err := k.Priv.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("identity: sign: %w", err)
	}
	return sig, nil
}

// ValidatePublicKey decodes raw as an Edwards25519 curve point, rejecting
// malformed byte strings before they are trusted as an author's public
// key.
func ValidatePublicKey(raw []byte) error {
	if len(raw) != 32 {
		return fmt.Errorf("identity: public key must be 32 bytes, got %d", len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("identity: invalid public key: %w", err)
	}
	return nil
}
