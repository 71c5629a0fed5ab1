// Package feed provides the signed message format the core store persists:
// canonical encoding, content hashing and Ed25519 signing of message
// values, plus the KVT wrapper the store writes to disk.
package feed

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solar-social/solar/internal/identity"
)

// MessageValue is the signed payload of a single feed entry: author
// identity, sequence, content, a reference to the previous message, and
// a signature over the canonical encoding of the first four fields.
type MessageValue struct {
	Author    string          `json:"author"`
	Sequence  uint64          `json:"sequence"`
	Previous  string          `json:"previous,omitempty"`
	Content   json.RawMessage `json:"content"`
	Signature []byte          `json:"signature"`

	id string
}

// canonicalForm fixes the field order used for hashing and signing. A
// plain struct (rather than a map) guarantees encoding/json always emits
// fields in this order, making the hash deterministic.
type canonicalForm struct {
	Author   string          `json:"author"`
	Sequence uint64          `json:"sequence"`
	Previous string          `json:"previous"`
	Content  json.RawMessage `json:"content"`
}

// Sign builds and signs a new MessageValue chained from prev (nil for the
// first message in a feed). content is marshaled to JSON to form the
// message body.
func Sign(prev *MessageValue, kp *identity.KeyPair, content any) (*MessageValue, error) {
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("feed: marshal content: %w", err)
	}

	var previous string
	sequence := uint64(1)
	if prev != nil {
		previous = prev.ID()
		sequence = prev.Sequence + 1
	}

	mv := &MessageValue{
		Author:   kp.ID(),
		Sequence: sequence,
		Previous: previous,
		Content:  contentBytes,
	}

	hash, err := mv.contentHash()
	if err != nil {
		return nil, err
	}
	sig, err := kp.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("feed: sign: %w", err)
	}
	mv.Signature = sig
	mv.id = formatMessageID(hash)

	return mv, nil
}

func (mv *MessageValue) contentHash() ([]byte, error) {
	canon, err := json.Marshal(canonicalForm{
		Author:   mv.Author,
		Sequence: mv.Sequence,
		Previous: mv.Previous,
		Content:  mv.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("feed: canonical encode: %w", err)
	}
	sum := sha256.Sum256(canon)
	return sum[:], nil
}

func formatMessageID(hash []byte) string {
	return "%" + base64.StdEncoding.EncodeToString(hash) + ".sha256"
}

// ID returns the message's canonical content-hash id, computing and
// caching it on first use if the value was produced by unmarshaling
// rather than Sign.
func (mv *MessageValue) ID() string {
	if mv.id == "" {
		if hash, err := mv.contentHash(); err == nil {
			mv.id = formatMessageID(hash)
		}
	}
	return mv.id
}

// KVT ("Key-Value-Timestamp") wraps a MessageValue with its canonical
// key (the message id) and a local received-timestamp that is never
// persisted.
type KVT struct {
	Key   string
	Value *MessageValue
	RTS   *time.Time
}

// NewKVT wraps mv, stamping the key from its content hash.
func NewKVT(mv *MessageValue) *KVT {
	return &KVT{Key: mv.ID(), Value: mv}
}

type kvtWire struct {
	Key   string        `json:"key"`
	Value *MessageValue `json:"value"`
}

// MarshalBinary encodes the KVT for persistence. RTS is a local-
// reception field, not part of the durable record: including it would
// make the encoded bytes non-deterministic across nodes that received
// the same message at different times, so it is always omitted here.
func (k *KVT) MarshalBinary() ([]byte, error) {
	b, err := json.Marshal(kvtWire{Key: k.Key, Value: k.Value})
	if err != nil {
		return nil, fmt.Errorf("feed: marshal kvt: %w", err)
	}
	return b, nil
}

// UnmarshalBinary decodes a persisted KVT. RTS is left nil; callers that
// want a received-time stamp should populate it themselves at read time.
func (k *KVT) UnmarshalBinary(data []byte) error {
	var wire kvtWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("feed: unmarshal kvt: %w", err)
	}
	k.Key = wire.Key
	k.Value = wire.Value
	k.RTS = nil
	return nil
}
