package indexes

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/solar-social/solar/internal/feed"
	"github.com/solar-social/solar/internal/identity"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir, err := os.MkdirTemp("", "solar-indexes")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := sql.Open("sqlite3", filepath.Join(dir, "idx.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIndexMsgCountsByAuthorAndType(t *testing.T) {
	db := openTestDB(t)
	ix, err := Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	dir, err := os.MkdirTemp("", "solar-indexes-id")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)
	kp, err := identity.Load(filepath.Join(dir, "identity.key"))
	if err != nil {
		t.Fatalf("identity.Load: %v", err)
	}

	mv1, err := feed.Sign(nil, kp, map[string]string{"type": "post", "text": "a"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	mv2, err := feed.Sign(mv1, kp, map[string]string{"type": "post", "text": "b"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	mv3, err := feed.Sign(mv2, kp, map[string]string{"text": "no type"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	for _, mv := range []*feed.MessageValue{mv1, mv2, mv3} {
		if err := ix.IndexMsg(kp.ID(), mv); err != nil {
			t.Fatalf("IndexMsg: %v", err)
		}
	}

	count, err := ix.AuthorMessageCount(kp.ID())
	if err != nil {
		t.Fatalf("AuthorMessageCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 messages, got %d", count)
	}

	counts, err := ix.ContentTypeCounts()
	if err != nil {
		t.Fatalf("ContentTypeCounts: %v", err)
	}
	if counts["post"] != 2 {
		t.Fatalf("expected 2 post messages, got %d", counts["post"])
	}
	if counts["unknown"] != 1 {
		t.Fatalf("expected 1 unknown message, got %d", counts["unknown"])
	}
}
