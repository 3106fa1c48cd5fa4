package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keyvault/internal/dbx"
	"github.com/dmitrijs2005/keyvault/internal/server/storage/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStorage keeps every object in a single `objects` table with a
// JSONB body, keyed by (kind, id). SaveAll runs inside one transaction, so
// multi-record persistence is genuinely all-or-nothing on this backend.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage opens the database via the pgx stdlib driver.
func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: opening postgres: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

// NewPostgresStorageFromDB wraps an existing handle; used by tests.
func NewPostgresStorageFromDB(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// RunMigrations applies the embedded goose migrations.
func (s *PostgresStorage) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *PostgresStorage) Close() error { return s.db.Close() }

func (s *PostgresStorage) Get(ctx context.Context, obj Object) error {
	return s.get(ctx, s.db, obj)
}

func (s *PostgresStorage) get(ctx context.Context, db dbx.DBTX, obj Object) error {
	query := `SELECT data FROM objects WHERE kind = $1 AND id = $2`

	var data []byte
	err := db.QueryRowContext(ctx, query, obj.Kind(), obj.ObjectID()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("storage: decoding %s/%s: %w", obj.Kind(), obj.ObjectID(), err)
	}
	return nil
}

func (s *PostgresStorage) Save(ctx context.Context, obj Object) error {
	return s.save(ctx, s.db, obj)
}

func (s *PostgresStorage) save(ctx context.Context, db dbx.DBTX, obj Object) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("storage: encoding %s/%s: %w", obj.Kind(), obj.ObjectID(), err)
	}

	query := `
		INSERT INTO objects (kind, id, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (kind, id) DO UPDATE SET data = $3, updated_at = now()`

	if _, err := db.ExecContext(ctx, query, obj.Kind(), obj.ObjectID(), data); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SaveAll persists all records inside a single transaction.
func (s *PostgresStorage) SaveAll(ctx context.Context, objs ...Object) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, obj := range objs {
			if err := s.save(ctx, tx, obj); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStorage) Delete(ctx context.Context, obj Object) error {
	query := `DELETE FROM objects WHERE kind = $1 AND id = $2`

	res, err := s.db.ExecContext(ctx, query, obj.Kind(), obj.ObjectID())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
