// Package snapshot persists the last known approved job collection to
// object storage so search fallbacks survive restarts.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dawgsconnect/jobboard/internal/storage"
	"github.com/dawgsconnect/jobboard/types"
)

type document struct {
	SavedAt time.Time          `json:"saved_at"`
	Jobs    []types.JobPosting `json:"jobs"`
}

// Store reads and writes one snapshot object. A nil *Store is a no-op.
type Store struct {
	storage *storage.Storage
	key     string
	now     func() time.Time
}

func New(s *storage.Storage, key string) *Store {
	if s == nil {
		return nil
	}
	return &Store{storage: s, key: key, now: time.Now}
}

func (s *Store) Save(ctx context.Context, jobs []types.JobPosting) error {
	if s == nil {
		return nil
	}
	if jobs == nil {
		jobs = []types.JobPosting{}
	}
	data, err := json.Marshal(document{SavedAt: s.now().UTC(), Jobs: jobs})
	if err != nil {
		return err
	}
	return s.storage.Write(ctx, s.key, data, "application/json")
}

// Load returns the saved jobs and when they were saved. A missing snapshot
// yields no jobs and no error.
func (s *Store) Load(ctx context.Context) ([]types.JobPosting, time.Time, error) {
	if s == nil {
		return nil, time.Time{}, nil
	}
	data, info, err := s.storage.Read(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, err
	}
	if doc.SavedAt.IsZero() {
		doc.SavedAt = info.ModTime
	}
	return doc.Jobs, doc.SavedAt, nil
}
