package db

import (
	"context"
	"time"

	"backend-forestguard/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	newPoolFn  = pgxpool.New
	pingPoolFn = func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) }
)

func ConnectPostgres(cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := newPoolFn(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: create pool")
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: ping")
	}
	return pool, nil
}

// Schema holds the tables backing the document collections. Path documents keep
// their points in a jsonb array so an append is a single-row update.
const Schema = `
CREATE TABLE IF NOT EXISTS proyectos (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_by  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usuarios (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL DEFAULT '',
	email                TEXT NOT NULL DEFAULT '',
	proyectos            JSONB NOT NULL DEFAULT '{}'::jsonb,
	location             JSONB,
	last_location_update TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ubicaciones_recorrido (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	project_id TEXT NOT NULL,
	date       TEXT NOT NULL,
	locations  JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS ubicaciones_recorrido_project_date
	ON ubicaciones_recorrido (project_id, date);
`

// EnsureSchema creates the tables when they are missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, Schema); err != nil {
		return errors.Wrap(err, "postgres: ensure schema")
	}
	return nil
}
