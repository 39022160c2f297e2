package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures the Postgres-backed store.
type PostgresConfig struct {
	DSN   string `yaml:"dsn" mapstructure:"dsn"`
	Table string `yaml:"table" mapstructure:"table"`
}

// ApplyDefaults applies default values to the Postgres configuration.
func (c *PostgresConfig) ApplyDefaults() {
	if c.Table == "" {
		c.Table = "pipeline_state"
	}
}

// Validate validates the Postgres configuration.
func (c *PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("store: postgres dsn is required")
	}
	return nil
}

// Postgres is a Store backed by a Postgres table keyed on
// (pipeline_id, stage_id). Row-level locking serializes concurrent writes to
// the same key.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres connects to Postgres and ensures the state table exists.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}

	p := &Postgres{pool: pool, table: cfg.Table}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			pipeline_id TEXT NOT NULL,
			stage_id    TEXT NOT NULL,
			value       JSONB NOT NULL,
			ts          TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (pipeline_id, stage_id)
		)`, p.table))
	if err != nil {
		return fmt.Errorf("store: ensure state table: %w", err)
	}
	return nil
}

// Get reads the stored state for a (pipeline, stage) key. The returned value
// is json.RawMessage; use Decode to unmarshal it.
func (p *Postgres) Get(ctx context.Context, pipelineID, stageID string) (StoredState, bool, error) {
	var (
		raw []byte
		ts  time.Time
	)
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT value, ts FROM %s WHERE pipeline_id = $1 AND stage_id = $2`, p.table),
		pipelineID, stageID,
	).Scan(&raw, &ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredState{}, false, nil
		}
		return StoredState{}, false, fmt.Errorf("store: postgres get %s/%s: %w", pipelineID, stageID, err)
	}
	return StoredState{Value: json.RawMessage(raw), Timestamp: ts}, true, nil
}

// Put upserts the JSON-serialized value for a (pipeline, stage) key.
func (p *Postgres) Put(ctx context.Context, pipelineID, stageID string, value any, ts time.Time) error {
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		fmt.Sprintf(`
			INSERT INTO %s (pipeline_id, stage_id, value, ts)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (pipeline_id, stage_id)
			DO UPDATE SET value = EXCLUDED.value, ts = EXCLUDED.ts`, p.table),
		pipelineID, stageID, raw, ts)
	if err != nil {
		return fmt.Errorf("store: postgres put %s/%s: %w", pipelineID, stageID, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
