package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresBackend stores each collection as a table of JSONB documents.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Get(ctx context.Context, collection, id string) (Record, error) {
	if !knownCollection(collection) {
		return nil, ErrUnknownCollection
	}

	query := fmt.Sprintf(`
		SELECT id, data, created_at, updated_at
		FROM %s
		WHERE id = $1`, collection)
	record, err := scanRecord(b.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func (b *PostgresBackend) List(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	if !knownCollection(collection) {
		return nil, ErrUnknownCollection
	}

	var (
		conditions []string
		args       []any
	)
	for _, key := range sortedKeys(filter) {
		args = append(args, key, filter[key])
		conditions = append(conditions, fmt.Sprintf("data->>$%d = $%d", len(args)-1, len(args)))
	}

	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s`, collection)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (b *PostgresBackend) Create(ctx context.Context, collection string, record Record) (Record, error) {
	if !knownCollection(collection) {
		return nil, ErrUnknownCollection
	}

	id, _ := record[KeyID].(string)
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	doc := documentFields(record)
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, data, version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4)`, collection)
	if _, err := b.db.ExecContext(ctx, query, id, docJSON, now, now); err != nil {
		return nil, err
	}
	return withColumns(doc, id, now, now), nil
}

func (b *PostgresBackend) Update(ctx context.Context, collection, id string, fields Record) (Record, error) {
	if !knownCollection(collection) {
		return nil, ErrUnknownCollection
	}

	patchJSON, err := json.Marshal(documentFields(fields))
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET data = data || $1::jsonb,
			version = version + 1,
			updated_at = $2
		WHERE id = $3
		RETURNING id, data, created_at, updated_at`, collection)
	record, err := scanRecord(b.db.QueryRowContext(ctx, query, patchJSON, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func (b *PostgresBackend) Delete(ctx context.Context, collection, id string) error {
	if !knownCollection(collection) {
		return ErrUnknownCollection
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, collection)
	result, err := b.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Increment bumps a numeric document field in a single statement, so
// concurrent increments are never lost.
func (b *PostgresBackend) Increment(ctx context.Context, collection, id, field string) (int64, error) {
	if !knownCollection(collection) {
		return 0, ErrUnknownCollection
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET data = jsonb_set(
				data,
				ARRAY[$1::text],
				to_jsonb(COALESCE((data->>$1)::bigint, 0) + 1)
			),
			version = version + 1,
			updated_at = $2
		WHERE id = $3
		RETURNING (data->>$1)::bigint`, collection)
	var value int64
	if err := b.db.QueryRowContext(ctx, query, field, time.Now().UTC(), id).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return value, nil
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		id                   string
		docJSON              []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &docJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc := Record{}
	// A corrupt document still yields a record; the normalizer fills defaults.
	_ = json.Unmarshal(docJSON, &doc)
	return withColumns(doc, id, createdAt, updatedAt), nil
}
