// Package store persists a summary row per completed block-template
// run — bookkeeping about the service, never consensus state the core
// itself owns — the same concern internal/db covers for the teacher's
// analysis results.
package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for gbt-engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/store/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("gbt-engine run schema initialized")
	return nil
}

// RunSummary is one row describing a completed Make/Update call.
type RunSummary struct {
	RunID        string
	Operation    string // "make" or "update"
	BlockCount   int
	ClusterCount int
	TotalWeight  uint32
	DirtyCount   int
	OverflowSize int
	ComputedAt   time.Time
}

// SaveRun persists summary. Run rows are append-only bookkeeping —
// there is no update-in-place, each call gets its own row.
func (s *PostgresStore) SaveRun(ctx context.Context, summary RunSummary) error {
	sql := `
		INSERT INTO gbt_runs
		(run_id, operation, block_count, cluster_count, total_weight, dirty_count, overflow_size, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, sql,
		summary.RunID, summary.Operation, summary.BlockCount, summary.ClusterCount,
		summary.TotalWeight, summary.DirtyCount, summary.OverflowSize, summary.ComputedAt)
	if err != nil {
		log.Printf("store: failed to save run %s: %v", summary.RunID, err)
		return fmt.Errorf("failed to insert gbt_runs row: %v", err)
	}
	return nil
}

// RecentRuns returns the most recent limit runs, newest first — used
// by a dashboard to show recent template-generation activity.
func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, operation, block_count, cluster_count, total_weight, dirty_count, overflow_size, computed_at
		FROM gbt_runs
		ORDER BY computed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Operation, &r.BlockCount, &r.ClusterCount, &r.TotalWeight, &r.DirtyCount, &r.OverflowSize, &r.ComputedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if runs == nil {
		runs = []RunSummary{}
	}
	return runs, nil
}
