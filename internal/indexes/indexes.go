// Package indexes provides a concrete, deliberately simple implementation
// of the secondary-index collaborator the feed store hands committed
// messages to: per-author message counts and a content-type breakdown,
// both persisted in the same database the feed store uses.
package indexes

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/solar-social/solar/internal/feed"
)

const schema = `
CREATE TABLE IF NOT EXISTS idx_author_counts (
	author TEXT PRIMARY KEY,
	count  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS idx_content_type_counts (
	content_type TEXT PRIMARY KEY,
	count        INTEGER NOT NULL
);
`

// Indexes holds its own handle into the shared database.
type Indexes struct {
	db *sql.DB
}

// Open creates the index tables (if absent) in db and returns an Indexes
// bound to it.
func Open(db *sql.DB) (*Indexes, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("indexes: create schema: %w", err)
	}
	return &Indexes{db: db}, nil
}

// IndexMsg records author and content-type statistics for a newly
// committed message. A message whose content lacks a "type" field is
// counted under "unknown".
func (ix *Indexes) IndexMsg(author string, mv *feed.MessageValue) error {
	contentType := contentTypeOf(mv)

	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("indexes: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO idx_author_counts (author, count) VALUES (?, 1)
		ON CONFLICT(author) DO UPDATE SET count = count + 1`, author); err != nil {
		return fmt.Errorf("indexes: update author count: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO idx_content_type_counts (content_type, count) VALUES (?, 1)
		ON CONFLICT(content_type) DO UPDATE SET count = count + 1`, contentType); err != nil {
		return fmt.Errorf("indexes: update content type count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexes: commit: %w", err)
	}
	return nil
}

func contentTypeOf(mv *feed.MessageValue) string {
	var typed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(mv.Content, &typed); err != nil || typed.Type == "" {
		return "unknown"
	}
	return typed.Type
}

// AuthorMessageCount returns the number of messages indexed for author.
func (ix *Indexes) AuthorMessageCount(author string) (uint64, error) {
	var count uint64
	err := ix.db.QueryRow(`SELECT count FROM idx_author_counts WHERE author = ?`, author).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("indexes: author message count: %w", err)
	}
	return count, nil
}

// ContentTypeCounts returns the current per-content-type message counts.
func (ix *Indexes) ContentTypeCounts() (map[string]uint64, error) {
	rows, err := ix.db.Query(`SELECT content_type, count FROM idx_content_type_counts`)
	if err != nil {
		return nil, fmt.Errorf("indexes: content type counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var contentType string
		var count uint64
		if err := rows.Scan(&contentType, &count); err != nil {
			return nil, fmt.Errorf("indexes: scan content type count: %w", err)
		}
		counts[contentType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("indexes: iterate content type counts: %w", err)
	}
	return counts, nil
}
