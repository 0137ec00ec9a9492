// Package postgres persists supplier records as JSONB documents.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplierhub/supplierhub/internal/platform/db"
	"github.com/supplierhub/supplierhub/internal/suppliers"
)

const schema = `
CREATE TABLE IF NOT EXISTS supplier_records (
	id         TEXT PRIMARY KEY,
	position   BIGINT NOT NULL,
	username   TEXT,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS supplier_records_username_key
	ON supplier_records (username) WHERE username IS NOT NULL;
`

const uniqueViolation = "23505"

// writerLockKey is the advisory lock that marks the single writing Store.
const writerLockKey int64 = 0x5355_5050_4C49_4552

// Persistence implements suppliers.Persistence on a pgx pool.
type Persistence struct {
	pool *pgxpool.Pool
}

var (
	_ suppliers.Persistence = (*Persistence)(nil)
	_ suppliers.Claimer     = (*Persistence)(nil)
)

func New(pool *pgxpool.Pool) *Persistence {
	return &Persistence{pool: pool}
}

// EnsureSchema creates the table and indexes if they are missing.
func (p *Persistence) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("suppliers/postgres: ensure schema: %w", err)
	}
	return nil
}

// Claim takes a session advisory lock on a dedicated connection. The lock goes
// away with the connection, so a crashed writer never holds it for long.
func (p *Persistence) Claim(ctx context.Context, _ string) (func(context.Context) error, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("suppliers/postgres: acquire writer connection: %w", err)
	}
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, writerLockKey).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("suppliers/postgres: writer lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, suppliers.ErrStoreInUse
	}
	return func(ctx context.Context) error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, writerLockKey); err != nil {
			return fmt.Errorf("suppliers/postgres: writer unlock: %w", err)
		}
		return nil
	}, nil
}

// Load returns every record in insertion order.
func (p *Persistence) Load(ctx context.Context) ([]suppliers.Supplier, error) {
	rows, err := p.pool.Query(ctx, `SELECT doc FROM supplier_records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("suppliers/postgres: load: %w", err)
	}
	defer rows.Close()

	var out []suppliers.Supplier
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("suppliers/postgres: scan: %w", err)
		}
		var rec suppliers.Supplier
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("suppliers/postgres: decode record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("suppliers/postgres: load: %w", err)
	}
	return out, nil
}

// Save replaces the stored collection in one transaction, so readers never
// observe a partial write. Only the Store holding the writer lock calls it.
func (p *Persistence) Save(ctx context.Context, records []suppliers.Supplier) error {
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM supplier_records`); err != nil {
			return fmt.Errorf("suppliers/postgres: clear: %w", err)
		}
		batch := &pgx.Batch{}
		for i, rec := range records {
			doc, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("suppliers/postgres: encode %s: %w", rec.ID, err)
			}
			var username *string
			if rec.Username != "" {
				u := rec.Username
				username = &u
			}
			batch.Queue(
				`INSERT INTO supplier_records (id, position, username, doc, updated_at) VALUES ($1, $2, $3, $4, $5)`,
				rec.ID, i, username, doc, rec.UpdatedAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	}, db.Serializable())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", suppliers.ErrDuplicateUsername, pgErr.Detail)
		}
		return err
	}
	return nil
}
