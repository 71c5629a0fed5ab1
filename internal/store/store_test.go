package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/solar-social/solar/internal/feed"
	"github.com/solar-social/solar/internal/identity"
)

func openTestStore(t *testing.T) (*Store, *identity.KeyPair) {
	t.Helper()
	dir, err := os.MkdirTemp("", "solar-store")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	kp, err := identity.Load(filepath.Join(dir, "identity.key"))
	if err != nil {
		t.Fatalf("identity.Load: %v", err)
	}

	s, err := Open(Config{Path: filepath.Join(dir, "solar.db")}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, kp
}

func signPost(t *testing.T, kp *identity.KeyPair, prev *feed.MessageValue, text string) *feed.MessageValue {
	t.Helper()
	mv, err := feed.Sign(prev, kp, map[string]string{"type": "post", "text": text})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return mv
}

func TestEmptyFeed(t *testing.T) {
	s, kp := openTestStore(t)
	ctx := context.Background()

	if mv, err := s.GetLatestMsgVal(ctx, kp.ID()); err != nil || mv != nil {
		t.Fatalf("expected nil/nil, got %+v, %v", mv, err)
	}
	if _, ok, err := s.GetLatestSeq(ctx, kp.ID()); err != nil || ok {
		t.Fatalf("expected absent latest seq, got ok=%v err=%v", ok, err)
	}
	peers, err := s.GetPeers(ctx)
	if err != nil {
		t.Fatalf("GetPeers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected no peers, got %d", len(peers))
	}
}

func TestFourAppendsGrowTheFeed(t *testing.T) {
	s, kp := openTestStore(t)
	ctx := context.Background()

	var last *feed.MessageValue
	for i := uint64(1); i <= 4; i++ {
		mv := signPost(t, kp, last, "Important announcement")
		seq, err := s.AppendFeed(ctx, mv)
		if err != nil {
			t.Fatalf("AppendFeed #%d: %v", i, err)
		}
		if seq != i {
			t.Fatalf("expected seq %d, got %d", i, seq)
		}

		last, err = s.GetLatestMsgVal(ctx, kp.ID())
		if err != nil {
			t.Fatalf("GetLatestMsgVal: %v", err)
		}

		feedEntries, err := s.GetFeed(ctx, kp.ID())
		if err != nil {
			t.Fatalf("GetFeed: %v", err)
		}
		if uint64(len(feedEntries)) != i {
			t.Fatalf("expected feed length %d, got %d", i, len(feedEntries))
		}
	}
}

func TestSequenceMismatchRejectsAndDoesNotMutate(t *testing.T) {
	s, kp := openTestStore(t)
	ctx := context.Background()

	first := signPost(t, kp, nil, "first")
	if _, err := s.AppendFeed(ctx, first); err != nil {
		t.Fatalf("AppendFeed: %v", err)
	}

	bad, err := feed.Sign(first, kp, map[string]string{"type": "post", "text": "skips ahead"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	bad.Sequence = 3

	if _, err := s.AppendFeed(ctx, bad); !errors.Is(err, ErrInvalidSequence) {
		t.Fatalf("expected ErrInvalidSequence, got %v", err)
	}

	latest, ok, err := s.GetLatestSeq(ctx, kp.ID())
	if err != nil || !ok || latest != 1 {
		t.Fatalf("expected latest seq 1 after rejected append, got %d ok=%v err=%v", latest, ok, err)
	}
}

func TestPeerRangeIsolation(t *testing.T) {
	s, kp := openTestStore(t)
	ctx := context.Background()

	mv := signPost(t, kp, nil, "solar flare")
	if _, err := s.AppendFeed(ctx, mv); err != nil {
		t.Fatalf("AppendFeed: %v", err)
	}

	peers, err := s.GetPeers(ctx)
	if err != nil || len(peers) != 1 || peers[0].Author != kp.ID() {
		t.Fatalf("expected single peer %q, got %+v err=%v", kp.ID(), peers, err)
	}

	if err := kvPut(ctx, s.db, []byte{prefixPeer + 1}, []byte("outside range")); err != nil {
		t.Fatalf("kvPut above range: %v", err)
	}
	if err := kvPut(ctx, s.db, []byte{prefixPeer - 1}, []byte("outside range")); err != nil {
		t.Fatalf("kvPut below range: %v", err)
	}

	peers, err = s.GetPeers(ctx)
	if err != nil || len(peers) != 1 {
		t.Fatalf("expected peers list to remain length 1, got %+v err=%v", peers, err)
	}
}

func TestBlobLifecycleAndPendingFilter(t *testing.T) {
	s, kp := openTestStore(t)
	ctx := context.Background()

	if err := s.SetBlob(ctx, "b1", BlobStatus{Retrieved: false, Users: []string{"u2"}}); err != nil {
		t.Fatalf("SetBlob b1: %v", err)
	}
	pending, err := s.GetPendingBlobs(ctx)
	if err != nil || len(pending) != 1 || pending[0] != "b1" {
		t.Fatalf("expected [b1], got %+v err=%v", pending, err)
	}

	mv := signPost(t, kp, nil, "so a peer exists")
	if _, err := s.AppendFeed(ctx, mv); err != nil {
		t.Fatalf("AppendFeed: %v", err)
	}

	if err := s.SetBlob(ctx, "b2", BlobStatus{Retrieved: false, Users: []string{"u7"}}); err != nil {
		t.Fatalf("SetBlob b2: %v", err)
	}
	pending, err = s.GetPendingBlobs(ctx)
	if err != nil || len(pending) != 2 || pending[0] != "b1" || pending[1] != "b2" {
		t.Fatalf("expected [b1 b2], got %+v err=%v", pending, err)
	}

	if err := s.SetBlob(ctx, "b1", BlobStatus{Retrieved: true, Users: []string{"u2"}}); err != nil {
		t.Fatalf("SetBlob b1 retrieved: %v", err)
	}
	pending, err = s.GetPendingBlobs(ctx)
	if err != nil || len(pending) != 1 || pending[0] != "b2" {
		t.Fatalf("expected [b2], got %+v err=%v", pending, err)
	}
}

func TestTwoMessageRoundTrip(t *testing.T) {
	s, kp := openTestStore(t)
	ctx := context.Background()

	first := signPost(t, kp, nil, "one")
	if _, err := s.AppendFeed(ctx, first); err != nil {
		t.Fatalf("AppendFeed first: %v", err)
	}
	second := signPost(t, kp, first, "two")
	if _, err := s.AppendFeed(ctx, second); err != nil {
		t.Fatalf("AppendFeed second: %v", err)
	}

	kvt, err := s.GetMsgKVT(ctx, kp.ID(), 2)
	if err != nil || kvt == nil {
		t.Fatalf("GetMsgKVT: %v, kvt=%v", err, kvt)
	}

	mv, err := s.GetMsgVal(ctx, kvt.Key)
	if err != nil || mv == nil {
		t.Fatalf("GetMsgVal: %v, mv=%v", err, mv)
	}
	if mv.Author != second.Author || mv.Sequence != second.Sequence {
		t.Fatalf("expected %+v, got %+v", second, mv)
	}
}

func TestGlobalOrderCountsCommittedMessages(t *testing.T) {
	s, kp := openTestStore(t)
	ctx := context.Background()

	var last *feed.MessageValue
	for i := 0; i < 3; i++ {
		last = signPost(t, kp, last, "msg")
		if _, err := s.AppendFeed(ctx, last); err != nil {
			t.Fatalf("AppendFeed: %v", err)
		}
	}

	total, err := s.GetGlobalOrderSeq(ctx)
	if err != nil {
		t.Fatalf("GetGlobalOrderSeq: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected global order counter 3, got %d", total)
	}
}

func TestPrefixRangeScanBoundaries(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	lo, hi := prefixRange(prefixBlob)
	if err := kvPut(ctx, s.db, []byte{prefixBlob - 1}, []byte("outside")); err != nil {
		t.Fatalf("kvPut: %v", err)
	}
	if err := kvPut(ctx, s.db, []byte{prefixBlob + 1}, []byte("outside")); err != nil {
		t.Fatalf("kvPut: %v", err)
	}

	var count int
	err := kvRange(ctx, s.db, lo, hi, func(k, v []byte) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("kvRange: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 entries in empty blob range, got %d", count)
	}
}
