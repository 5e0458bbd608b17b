package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	supabase "github.com/nedpals/supabase-go"
)

// maxWriteAttempts bounds the compare-and-swap loop used for updates.
const maxWriteAttempts = 5

// SupabaseBackend talks to the hosted PostgREST API using the same table
// layout as the Postgres backend. Writes are conditional on the row version.
type SupabaseBackend struct {
	client *supabase.Client
}

type supabaseRow struct {
	ID        string    `json:"id"`
	Data      Record    `json:"data"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r supabaseRow) record() Record {
	doc := r.Data
	if doc == nil {
		doc = Record{}
	}
	return withColumns(doc, r.ID, r.CreatedAt, r.UpdatedAt)
}

func NewSupabaseBackend(url, key string) (*SupabaseBackend, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase URL and key must be provided via SUPABASE_URL / SUPABASE_KEY")
	}
	return &SupabaseBackend{client: supabase.CreateClient(url, key)}, nil
}

func (b *SupabaseBackend) Get(ctx context.Context, collection, id string) (Record, error) {
	row, err := b.getRow(collection, id)
	if err != nil {
		return nil, err
	}
	return row.record(), nil
}

func (b *SupabaseBackend) List(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	if !knownCollection(collection) {
		return nil, ErrUnknownCollection
	}

	var rows []supabaseRow
	sel := b.client.DB.From(collection).Select("*")
	keys := sortedKeys(filter)
	if len(keys) == 0 {
		if err := sel.Execute(&rows); err != nil {
			return nil, err
		}
	} else {
		query := sel.Eq(documentColumn(keys[0]), filter[keys[0]])
		for _, key := range keys[1:] {
			query = query.Eq(documentColumn(key), filter[key])
		}
		if err := query.Execute(&rows); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (b *SupabaseBackend) Create(ctx context.Context, collection string, record Record) (Record, error) {
	if !knownCollection(collection) {
		return nil, ErrUnknownCollection
	}

	id, _ := record[KeyID].(string)
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	row := supabaseRow{
		ID:        id,
		Data:      documentFields(record),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var inserted []supabaseRow
	if err := b.client.DB.From(collection).Insert(row).Execute(&inserted); err != nil {
		return nil, err
	}
	return row.record(), nil
}

func (b *SupabaseBackend) Update(ctx context.Context, collection, id string, fields Record) (Record, error) {
	patch := documentFields(fields)
	return b.modify(ctx, collection, id, func(doc Record) {
		for key, value := range patch {
			doc[key] = value
		}
	})
}

func (b *SupabaseBackend) Delete(ctx context.Context, collection, id string) error {
	if _, err := b.getRow(collection, id); err != nil {
		return err
	}

	var deleted []supabaseRow
	return b.client.DB.From(collection).Delete().Eq(KeyID, id).Execute(&deleted)
}

func (b *SupabaseBackend) Increment(ctx context.Context, collection, id, field string) (int64, error) {
	var value int64
	_, err := b.modify(ctx, collection, id, func(doc Record) {
		value = counterValue(doc[field]) + 1
		doc[field] = value
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (b *SupabaseBackend) Close() error {
	return nil
}

// modify applies change to the current document and writes it back only if
// nobody else wrote the row in between.
func (b *SupabaseBackend) modify(ctx context.Context, collection, id string, change func(Record)) (Record, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := b.getRow(collection, id)
		if err != nil {
			return nil, err
		}

		next := current
		next.Data = Record{}
		for key, value := range current.Data {
			next.Data[key] = value
		}
		change(next.Data)
		next.Version = current.Version + 1
		next.UpdatedAt = time.Now().UTC()

		body := map[string]any{
			"data":       next.Data,
			"version":    next.Version,
			"updated_at": next.UpdatedAt,
		}
		var updated []supabaseRow
		err = b.client.DB.From(collection).
			Update(body).
			Eq(KeyID, id).
			Eq("version", strconv.FormatInt(current.Version, 10)).
			Execute(&updated)
		if err != nil {
			return nil, err
		}
		if len(updated) > 0 {
			return next.record(), nil
		}
	}
	return nil, ErrConflict
}

func (b *SupabaseBackend) getRow(collection, id string) (supabaseRow, error) {
	if !knownCollection(collection) {
		return supabaseRow{}, ErrUnknownCollection
	}

	var rows []supabaseRow
	if err := b.client.DB.From(collection).Select("*").Eq(KeyID, id).Execute(&rows); err != nil {
		return supabaseRow{}, err
	}
	if len(rows) == 0 {
		return supabaseRow{}, ErrNotFound
	}
	return rows[0], nil
}

func documentColumn(key string) string {
	switch key {
	case KeyID, KeyCreatedAt, KeyUpdatedAt:
		return key
	}
	return "data->>" + key
}

func counterValue(value any) int64 {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
