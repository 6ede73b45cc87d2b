package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mharish0341/Trustguard/internal/listing"
	"github.com/Mharish0341/Trustguard/pkg/postgres"
)

// Store persists scored batches in PostgreSQL for audit and re-reads.
//
// It requires a `report_batches` table:
//
//	CREATE TABLE report_batches (
//	    id           BIGSERIAL PRIMARY KEY,
//	    record_count INT NOT NULL,
//	    data         JSONB NOT NULL,
//	    captured_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a report persistence store.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "report-store"),
	}
}

// SaveBatch persists one scored batch as a JSONB snapshot row.
func (s *Store) SaveBatch(ctx context.Context, reports []listing.Report) error {
	data, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("marshaling report batch: %w", err)
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO report_batches (record_count, data, captured_at) VALUES ($1, $2, $3)`,
			len(reports), data, time.Now().UTC(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving report batch: %w", err)
	}
	s.logger.Info("report batch saved", "records", len(reports))
	return nil
}

// LatestBatch loads the most recent batch. Returns nil, nil when no batch
// has been stored yet.
func (s *Store) LatestBatch(ctx context.Context) ([]listing.Report, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM report_batches ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest report batch: %w", err)
	}
	var reports []listing.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("unmarshaling report batch: %w", err)
	}
	return reports, nil
}

// ListBatches returns the last N batches, newest first. Corrupt rows are
// skipped with a warning rather than failing the read.
func (s *Store) ListBatches(ctx context.Context, limit int) ([][]listing.Report, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM report_batches ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing report batches: %w", err)
	}
	defer rows.Close()

	var batches [][]listing.Report
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning report batch row: %w", err)
		}
		var reports []listing.Report
		if err := json.Unmarshal(data, &reports); err != nil {
			s.logger.Warn("skipping corrupt report batch", "error", err)
			continue
		}
		batches = append(batches, reports)
	}
	return batches, rows.Err()
}
