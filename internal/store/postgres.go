package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vorn/vorn/internal/models"
)

// PostgresStore persists processed files in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS processed_files (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			total_rows INTEGER NOT NULL,
			compliance_score INTEGER NOT NULL,
			rules_summary_json JSONB NOT NULL,
			file_result_json JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_processed_files_created ON processed_files (created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS processed_rows (
			id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL REFERENCES processed_files(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			row_json JSONB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_processed_rows_file ON processed_rows (file_id, row_index);`,
		`CREATE TABLE IF NOT EXISTS rule_hits (
			id BIGSERIAL PRIMARY KEY,
			row_id TEXT NOT NULL REFERENCES processed_rows(id) ON DELETE CASCADE,
			rule_id TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rule_hits_rule ON rule_hits (rule_id);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// SaveFile writes the file, its rows and their rule hits in one transaction.
func (s *PostgresStore) SaveFile(ctx context.Context, res models.FileResult) (string, error) {
	summary, err := json.Marshal(res.RulesSummary)
	if err != nil {
		return "", fmt.Errorf("encode rules summary: %w", err)
	}
	full, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode file result: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO processed_files (id, filename, total_rows, compliance_score, rules_summary_json, file_result_json, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		res.Filename,
		res.TotalRows,
		res.ComplianceScore,
		summary,
		full,
		time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert file: %w", err)
	}

	batch := &pgx.Batch{}
	for i, row := range res.Rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return "", fmt.Errorf("encode row %d: %w", i, err)
		}
		rowID := uuid.NewString()
		batch.Queue(`INSERT INTO processed_rows (id, file_id, row_index, row_json) VALUES ($1, $2, $3, $4)`,
			rowID, id, i, raw)
		for _, ruleID := range row.FiredRules {
			batch.Queue(`INSERT INTO rule_hits (row_id, rule_id) VALUES ($1, $2)`, rowID, ruleID)
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return "", fmt.Errorf("insert rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetFile(ctx context.Context, id string) (FileRecord, error) {
	var (
		rec     FileRecord
		summary []byte
		full    []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, created_at, total_rows, compliance_score, rules_summary_json, file_result_json
		 FROM processed_files WHERE id=$1`,
		id,
	).Scan(&rec.ID, &rec.Filename, &rec.CreatedAt, &rec.TotalRows, &rec.ComplianceScore, &summary, &full)
	if errors.Is(err, pgx.ErrNoRows) {
		return FileRecord{}, ErrNotFound
	}
	if err != nil {
		return FileRecord{}, fmt.Errorf("query file: %w", err)
	}

	if err := json.Unmarshal(summary, &rec.RulesSummary); err != nil {
		return FileRecord{}, fmt.Errorf("decode rules summary: %w", err)
	}
	if err := json.Unmarshal(full, &rec.Result); err != nil {
		return FileRecord{}, fmt.Errorf("decode file result: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListFiles(ctx context.Context, limit int) ([]FileSummary, error) {
	limit = ClampLimit(limit)

	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, created_at, total_rows, compliance_score
		 FROM processed_files ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	out := make([]FileSummary, 0, limit)
	for rows.Next() {
		var f FileSummary
		if err := rows.Scan(&f.ID, &f.Filename, &f.CreatedAt, &f.TotalRows, &f.ComplianceScore); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file rows: %w", err)
	}
	return out, nil
}

// Ping checks connectivity for readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
