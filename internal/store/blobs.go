package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// BlobStatus describes a content-addressed attachment's local retrieval
// state and the authors known to be interested in it.
type BlobStatus struct {
	Retrieved bool     `json:"retrieved"`
	Users     []string `json:"users"`
}

// GetBlob returns the status recorded for blobID, or nil if none exists.
func (s *Store) GetBlob(ctx context.Context, blobID string) (*BlobStatus, error) {
	raw, ok, err := kvGet(ctx, s.db, keyBlob(blobID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var status BlobStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("%w: decode blob status: %w", ErrSerialization, err)
	}
	return &status, nil
}

// SetBlob records status for blobID.
func (s *Store) SetBlob(ctx context.Context, blobID string, status BlobStatus) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("%w: encode blob status: %w", ErrSerialization, err)
	}
	if err := kvPut(ctx, s.db, keyBlob(blobID), raw); err != nil {
		return fmt.Errorf("%w: set blob: %w", ErrStorageIO, err)
	}
	return nil
}

// GetPendingBlobs returns the ids of every blob whose status has not
// been marked retrieved, in the database's natural key order.
func (s *Store) GetPendingBlobs(ctx context.Context) ([]string, error) {
	lo, hi := prefixRange(prefixBlob)

	var pending []string
	err := kvRange(ctx, s.db, lo, hi, func(k, v []byte) error {
		var status BlobStatus
		if err := json.Unmarshal(v, &status); err != nil {
			return fmt.Errorf("%w: decode blob status: %w", ErrSerialization, err)
		}
		if !status.Retrieved {
			pending = append(pending, string(k[1:]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}
