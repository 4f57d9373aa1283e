package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"grid_router/pkg/store/migrations"
)

// Postgres stores chunks in the graph_chunks table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to PostgreSQL and returns a store handle.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// RunMigrations runs goose migrations on the given DSN.
func RunMigrations(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// SaveChunks replaces every chunk stored under key in one transaction.
func (p *Postgres) SaveChunks(ctx context.Context, key string, payloads map[int][]byte) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM graph_chunks WHERE graph_key = $1`, key); err != nil {
		return fmt.Errorf("clearing chunks for %s: %w", key, err)
	}
	batch := &pgx.Batch{}
	for id, payload := range payloads {
		batch.Queue(`INSERT INTO graph_chunks (graph_key, chunk_id, payload) VALUES ($1, $2, $3)`, key, id, payload)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting chunks for %s: %w", key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadChunks reads every chunk stored under key.
func (p *Postgres) LoadChunks(ctx context.Context, key string) (map[int][]byte, error) {
	rows, err := p.pool.Query(ctx, `SELECT chunk_id, payload FROM graph_chunks WHERE graph_key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("querying chunks for %s: %w", key, err)
	}
	defer rows.Close()

	out := make(map[int][]byte)
	for rows.Next() {
		var (
			id      int
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		out[id] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return out, nil
}
