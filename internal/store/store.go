package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// Collections held by the data service.
const (
	CollectionUsers       = "users"
	CollectionJobs        = "job_postings"
	CollectionCredentials = "credentials"
)

// Reserved record keys backed by dedicated columns.
const (
	KeyID        = "id"
	KeyCreatedAt = "created_at"
	KeyUpdatedAt = "updated_at"
)

// Record is a loosely-typed document as returned by the data service.
// Values follow encoding/json conventions (float64 numbers, []any, map[string]any).
type Record map[string]any

// Filter holds equality conditions on top-level record fields.
type Filter map[string]string

// Backend is the remote data service: document collections with
// equality filters and atomic counters.
type Backend interface {
	Get(ctx context.Context, collection, id string) (Record, error)
	List(ctx context.Context, collection string, filter Filter) ([]Record, error)
	Create(ctx context.Context, collection string, record Record) (Record, error)
	Update(ctx context.Context, collection, id string, fields Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	Increment(ctx context.Context, collection, id, field string) (int64, error)
	Close() error
}

// RecordOf converts a JSON-tagged value into a Record.
func RecordOf(value any) (Record, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// documentFields strips the column-backed keys from a record.
func documentFields(record Record) Record {
	doc := make(Record, len(record))
	for key, value := range record {
		switch key {
		case KeyID, KeyCreatedAt, KeyUpdatedAt:
			continue
		}
		doc[key] = value
	}
	return doc
}

func withColumns(doc Record, id string, createdAt, updatedAt time.Time) Record {
	record := make(Record, len(doc)+3)
	for key, value := range doc {
		record[key] = value
	}
	record[KeyID] = id
	record[KeyCreatedAt] = createdAt.UTC().Format(time.RFC3339Nano)
	record[KeyUpdatedAt] = updatedAt.UTC().Format(time.RFC3339Nano)
	return record
}

func sortedKeys(filter Filter) []string {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func knownCollection(collection string) bool {
	switch collection {
	case CollectionUsers, CollectionJobs, CollectionCredentials:
		return true
	default:
		return false
	}
}
