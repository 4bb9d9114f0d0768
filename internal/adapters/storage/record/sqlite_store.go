package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courseadmin/internal/adapters/storage"
	domain "courseadmin/internal/domain/record"
)

// SQLiteStore implements Store using SQLite. Field maps are stored as JSON.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new record Store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// List returns all records of an app, oldest first.
// PRE: appID is non-empty
// POST: Returns the records, possibly empty
func (s *SQLiteStore) List(ctx context.Context, appID string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT app_id, id, fields, created_at, updated_at FROM record WHERE app_id = ? ORDER BY created_at, id",
		appID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.Record{}
	for rows.Next() {
		entity, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// GetByID retrieves one record.
// PRE: appID and id are non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, appID, id string) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT app_id, id, fields, created_at, updated_at FROM record WHERE app_id = ? AND id = ?",
		appID, id,
	)
	entity, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("record %s/%s: %w", appID, id, ErrNotFound)
	}
	return entity, err
}

// Save persists a Record to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update); created_at is kept on update
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Record) error {
	fields, err := json.Marshal(entity.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO record (app_id, id, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(app_id, id) DO UPDATE SET fields=excluded.fields, updated_at=excluded.updated_at`,
		entity.AppID,
		entity.ID,
		string(fields),
		entity.CreatedAt.UTC().Format(time.RFC3339Nano),
		entity.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a Record from the database.
// PRE: appID and id are non-empty
// POST: Entity is removed, or ErrNotFound if it did not exist
func (s *SQLiteStore) Delete(ctx context.Context, appID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM record WHERE app_id = ? AND id = ?", appID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s/%s: %w", appID, id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (domain.Record, error) {
	var entity domain.Record
	var fields, created, updated string
	if err := sc.Scan(&entity.AppID, &entity.ID, &fields, &created, &updated); err != nil {
		return domain.Record{}, err
	}
	if err := json.Unmarshal([]byte(fields), &entity.Fields); err != nil {
		return domain.Record{}, fmt.Errorf("decode fields of %s: %w", entity.ID, err)
	}
	if entity.Fields == nil {
		entity.Fields = map[string]any{}
	}
	entity.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	entity.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return entity, nil
}
