package store

import (
	"context"
	"fmt"
)

// Peer is an author identity observed locally, with its latest known
// sequence.
type Peer struct {
	Author    string
	LatestSeq uint64
}

// SetPeer records author's latest known sequence in the peer index.
func (s *Store) SetPeer(ctx context.Context, author string, latestSeq uint64) error {
	if err := kvPut(ctx, s.db, keyPeer(author), u64ToBytes(latestSeq)); err != nil {
		return fmt.Errorf("%w: set peer: %w", ErrStorageIO, err)
	}
	return nil
}

// GetPeers returns every author present in the peer index along with
// its latest sequence, resolved authoritatively from the latest-seq
// class rather than the peer value column.
func (s *Store) GetPeers(ctx context.Context) ([]Peer, error) {
	return s.getPeers(ctx)
}

func (s *Store) getPeers(ctx context.Context) ([]Peer, error) {
	lo, hi := prefixRange(prefixPeer)

	var peers []Peer
	err := kvRange(ctx, s.db, lo, hi, func(k, _ []byte) error {
		author := string(k[1:])
		latest, ok, err := s.getLatestSeq(ctx, author)
		if err != nil {
			return err
		}
		if !ok {
			latest = 0
		}
		peers = append(peers, Peer{Author: author, LatestSeq: latest})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return peers, nil
}
