package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// dbTx is satisfied by both *sql.DB and *sql.Tx; it lets incrementGlobalSeq
// run identically whether called standalone (bootstrap) or inside the
// append transaction.
type dbTx interface {
	execer
	queryer
}

// getGlobalOrderSeq returns the current global-order high-water mark, or
// 0 if no message has ever been assigned a global sequence.
func (s *Store) getGlobalOrderSeq(ctx context.Context) (uint64, error) {
	return getGlobalOrderSeqTx(ctx, s.db)
}

func getGlobalOrderSeqTx(ctx context.Context, tx dbTx) (uint64, error) {
	value, ok, err := kvGet(ctx, tx, []byte(globalSeqKey))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return bytesToU64(value), nil
}

// incrementGlobalSeq assigns the next global sequence number to msgKey,
// recording both the forward (sequence -> id) and reverse (id ->
// sequence) mappings and advancing the high-water mark. Callers must
// hold s.globalMu for the duration of the read-modify-write.
func (s *Store) incrementGlobalSeq(ctx context.Context, msgKey string) error {
	return s.incrementGlobalSeqTx(ctx, s.db, msgKey)
}

func (s *Store) incrementGlobalSeqTx(ctx context.Context, tx dbTx, msgKey string) error {
	current, err := getGlobalOrderSeqTx(ctx, tx)
	if err != nil {
		return err
	}
	next := current + 1

	forwardKey := []byte(fmt.Sprintf("%s%d", globalOrderForwardPrefix, next))
	if err := kvPut(ctx, tx, forwardKey, []byte(msgKey)); err != nil {
		return fmt.Errorf("%w: write global order forward entry: %w", ErrStorageIO, err)
	}

	reverseKey := []byte(globalOrderReversePrefix + msgKey)
	if err := kvPut(ctx, tx, reverseKey, u64ToBytes(next)); err != nil {
		return fmt.Errorf("%w: write global order reverse entry: %w", ErrStorageIO, err)
	}

	if err := kvPut(ctx, tx, []byte(globalSeqKey), u64ToBytes(next)); err != nil {
		return fmt.Errorf("%w: write global order counter: %w", ErrStorageIO, err)
	}
	return nil
}

// GetGlobalOrderSeq returns the current global-order high-water mark.
func (s *Store) GetGlobalOrderSeq(ctx context.Context) (uint64, error) {
	return s.getGlobalOrderSeq(ctx)
}

// GetGlobalOrderSeqForMessage returns the global sequence number
// assigned to msgKey, or 0 if it has never been assigned one.
func (s *Store) GetGlobalOrderSeqForMessage(ctx context.Context, msgKey string) (uint64, error) {
	return s.getGlobalOrderSeqForMessage(ctx, msgKey)
}

func (s *Store) getGlobalOrderSeqForMessage(ctx context.Context, msgKey string) (uint64, error) {
	value, ok, err := kvGet(ctx, s.db, []byte(globalOrderReversePrefix+msgKey))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return bytesToU64(value), nil
}

// buildGlobalOrderIndex clears the global order counter and replays
// every stored feed, assigning a global sequence to every message in
// per-author sequence order. Per-author replay is independent, so peers
// are bootstrapped concurrently; only the counter increment itself needs
// to be serialized, via s.globalMu.
func (s *Store) buildGlobalOrderIndex(ctx context.Context) error {
	if err := kvDelete(ctx, s.db, []byte(globalSeqKey)); err != nil {
		return fmt.Errorf("%w: reset global order counter: %w", ErrStorageIO, err)
	}

	peers, err := s.getPeers(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range peers {
		author, latest := p.Author, p.LatestSeq
		g.Go(func() error {
			for seq := uint64(1); seq <= latest; seq++ {
				kvt, err := s.getMsgKVT(gctx, author, seq)
				if err != nil {
					return err
				}
				if kvt == nil {
					return fmt.Errorf("%w: missing msg_kvt for %s at seq %d during bootstrap", ErrStorageCorruption, author, seq)
				}
				s.globalMu.Lock()
				err = s.incrementGlobalSeq(gctx, kvt.Key)
				s.globalMu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total, err := s.getGlobalOrderSeq(ctx)
	if err != nil {
		return err
	}
	s.log.Info("built global order index", "messages", total)
	return nil
}
