package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solar-social/solar/internal/broker"
	"github.com/solar-social/solar/internal/feed"
)

// msgValRef is the persisted {author, sequence} reference a message id
// resolves to under the msg_val prefix.
type msgValRef struct {
	Author   string `json:"author"`
	Sequence uint64 `json:"sequence"`
}

// GetLatestSeq returns the latest sequence number stored for author, or
// (0, false) if no message has ever been appended for it.
func (s *Store) GetLatestSeq(ctx context.Context, author string) (uint64, bool, error) {
	return s.getLatestSeq(ctx, author)
}

func (s *Store) getLatestSeq(ctx context.Context, author string) (uint64, bool, error) {
	value, ok, err := kvGet(ctx, s.db, keyLatestSeq(author))
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	return bytesToU64(value), true, nil
}

// GetMsgKVT returns the KVT stored for author at seq, or nil if absent.
func (s *Store) GetMsgKVT(ctx context.Context, author string, seq uint64) (*feed.KVT, error) {
	return s.getMsgKVT(ctx, author, seq)
}

func (s *Store) getMsgKVT(ctx context.Context, author string, seq uint64) (*feed.KVT, error) {
	raw, ok, err := kvGet(ctx, s.db, keyMsgKVT(author, seq))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var kvt feed.KVT
	if err := kvt.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: decode msg_kvt: %w", ErrSerialization, err)
	}
	return &kvt, nil
}

// GetMsgVal resolves a message id to its MessageValue, following the
// msg_val reference to the underlying KVT. A reference pointing at a
// missing KVT is a storage corruption, since invariant 3 guarantees
// every msg_val reference is backed by a live KVT.
func (s *Store) GetMsgVal(ctx context.Context, messageID string) (*feed.MessageValue, error) {
	raw, ok, err := kvGet(ctx, s.db, keyMsgVal(messageID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var ref msgValRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("%w: decode msg_val reference: %w", ErrSerialization, err)
	}

	kvt, err := s.getMsgKVT(ctx, ref.Author, ref.Sequence)
	if err != nil {
		return nil, err
	}
	if kvt == nil {
		return nil, fmt.Errorf("%w: msg_val %s references missing msg_kvt(%s, %d)", ErrStorageCorruption, messageID, ref.Author, ref.Sequence)
	}
	return kvt.Value, nil
}

// GetLatestMsgVal returns the most recent MessageValue appended for
// author, or nil if the feed is empty.
func (s *Store) GetLatestMsgVal(ctx context.Context, author string) (*feed.MessageValue, error) {
	latest, ok, err := s.getLatestSeq(ctx, author)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	kvt, err := s.getMsgKVT(ctx, author, latest)
	if err != nil {
		return nil, err
	}
	if kvt == nil {
		return nil, fmt.Errorf("%w: missing msg_kvt(%s, %d) at reported latest sequence", ErrStorageCorruption, author, latest)
	}
	return kvt.Value, nil
}

// GetFeed returns every KVT authored by author in sequence order
// 1..=latest_seq.
func (s *Store) GetFeed(ctx context.Context, author string) ([]*feed.KVT, error) {
	latest, ok, err := s.getLatestSeq(ctx, author)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	entries := make([]*feed.KVT, 0, latest)
	for seq := uint64(1); seq <= latest; seq++ {
		kvt, err := s.getMsgKVT(ctx, author, seq)
		if err != nil {
			return nil, err
		}
		if kvt == nil {
			return nil, fmt.Errorf("%w: missing msg_kvt(%s, %d) in stored feed", ErrStorageCorruption, author, seq)
		}
		entries = append(entries, kvt)
	}
	return entries, nil
}

// AppendFeed is the central write operation: it validates mv's sequence
// against the author's current latest, persists the msg_val reference,
// the KVT, the latest-seq and peer entries, hands the message to the
// secondary indexer, and best-effort notifies the commit broker. Steps
// 3-5 of the protocol run inside a single transaction so a cancellation
// cannot leave a partial primary record. No separate flush is issued
// after that transaction commits; durability is that of the SQLite
// commit under the store's WAL / synchronous=NORMAL settings.
func (s *Store) AppendFeed(ctx context.Context, mv *feed.MessageValue) (uint64, error) {
	unlock := s.locks.Lock(mv.Author)
	defer unlock()

	latest, _, err := s.getLatestSeq(ctx, mv.Author)
	if err != nil {
		return 0, err
	}
	expected := latest + 1

	if mv.Sequence != expected {
		return 0, fmt.Errorf("%w: author %s expected sequence %d, got %d", ErrInvalidSequence, mv.Author, expected, mv.Sequence)
	}

	kvt := feed.NewKVT(mv)
	kvtBytes, err := kvt.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("%w: encode kvt: %w", ErrSerialization, err)
	}

	ref, err := json.Marshal(msgValRef{Author: mv.Author, Sequence: expected})
	if err != nil {
		return 0, fmt.Errorf("%w: encode msg_val reference: %w", ErrSerialization, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin append transaction: %w", ErrStorageIO, err)
	}
	defer tx.Rollback()

	if err := kvPut(ctx, tx, keyMsgVal(mv.ID()), ref); err != nil {
		return 0, err
	}

	s.globalMu.Lock()
	err = s.incrementGlobalSeqTx(ctx, tx, kvt.Key)
	s.globalMu.Unlock()
	if err != nil {
		return 0, err
	}

	if err := kvPut(ctx, tx, keyMsgKVT(mv.Author, expected), kvtBytes); err != nil {
		return 0, err
	}
	if err := kvPut(ctx, tx, keyLatestSeq(mv.Author), u64ToBytes(expected)); err != nil {
		return 0, err
	}
	if err := kvPut(ctx, tx, keyPeer(mv.Author), u64ToBytes(expected)); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit append transaction: %w", ErrStorageIO, err)
	}

	if err := s.indexes.IndexMsg(mv.Author, mv); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIndexFailure, err)
	}

	if s.broker != nil {
		s.broker.Publish(broker.Event{Author: mv.Author, Sequence: expected})
	}

	return expected, nil
}
