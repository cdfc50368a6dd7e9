package share

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Persistence mirrors the share set in Postgres so configuration survives
// restarts. It is deliberately unaware of the enabled/disabled gate, which
// is runtime-only state and must never be persisted.
type Persistence struct {
	db *sql.DB
}

// OpenPersistence connects to Postgres via the pgx stdlib driver and
// bootstraps the schema.
func OpenPersistence(ctx context.Context, dsn string) (*Persistence, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS campass_shares (
		slug TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		auth_type TEXT NOT NULL,
		passcode_hash TEXT NOT NULL,
		secret BYTEA NOT NULL,
		cameras JSONB NOT NULL,
		session_duration TEXT NOT NULL DEFAULT '24h',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Persistence{db: db}, nil
}

func (p *Persistence) Close() error {
	return p.db.Close()
}

// Ping reports datastore reachability, for health checks.
func (p *Persistence) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// LoadAll returns every persisted share. Used once, at startup, to
// hydrate the in-memory store.
func (p *Persistence) LoadAll(ctx context.Context) ([]Share, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT slug, id, name, auth_type, passcode_hash, secret, cameras, session_duration, created_at, updated_at
		FROM campass_shares
		ORDER BY slug
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []Share
	for rows.Next() {
		var sh Share
		var camerasJSON []byte
		err := rows.Scan(&sh.Slug, &sh.ID, &sh.Name, &sh.AuthType, &sh.PasscodeHash,
			&sh.Secret, &camerasJSON, &sh.Duration, &sh.CreatedAt, &sh.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(camerasJSON, &sh.Cameras); err != nil {
			return nil, err
		}
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

// Upsert writes a share through to Postgres.
func (p *Persistence) Upsert(ctx context.Context, sh Share) error {
	camerasJSON, err := json.Marshal(sh.Cameras)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO campass_shares (slug, id, name, auth_type, passcode_hash, secret, cameras, session_duration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			auth_type = EXCLUDED.auth_type,
			passcode_hash = EXCLUDED.passcode_hash,
			cameras = EXCLUDED.cameras,
			session_duration = EXCLUDED.session_duration,
			updated_at = EXCLUDED.updated_at
	`, sh.Slug, sh.ID, sh.Name, sh.AuthType, sh.PasscodeHash, sh.Secret,
		camerasJSON, sh.Duration, sh.CreatedAt, sh.UpdatedAt)
	return err
}

// Delete removes a share row.
func (p *Persistence) Delete(ctx context.Context, slug string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM campass_shares WHERE slug = $1`, slug)
	return err
}
