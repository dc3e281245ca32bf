// Package watermark persists the newest fully processed source file timestamp per ingestion type.
package watermark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
)

// Store reads and advances watermarks.
type Store interface {
	// Get returns 0 when the type has never been processed.
	Get(ctx context.Context, t source.Type) (int64, error)
	// Set never lowers a stored value.
	Set(ctx context.Context, t source.Type, ts int64) error
	All(ctx context.Context) (map[source.Type]int64, error)
}

type pgStore struct {
	db bun.IDB
}

// NewStore creates a new postgres implementation of the watermark store
func NewStore(db bun.IDB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) Get(ctx context.Context, t source.Type) (int64, error) {
	row := new(dao.IngestWatermarkDao)
	err := s.db.NewSelect().
		Model(row).
		Where("ingestion_type = ?", string(t)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get watermark for %s: %w", t, err)
	}
	return row.LastProcessedTs, nil
}

func (s *pgStore) Set(ctx context.Context, t source.Type, ts int64) error {
	row := &dao.IngestWatermarkDao{
		IngestionType:   string(t),
		LastProcessedTs: ts,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (ingestion_type) DO UPDATE").
		Set("last_processed_ts = GREATEST(iw.last_processed_ts, EXCLUDED.last_processed_ts)").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set watermark for %s: %w", t, err)
	}
	return nil
}

func (s *pgStore) All(ctx context.Context) (map[source.Type]int64, error) {
	var rows []dao.IngestWatermarkDao
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list watermarks: %w", err)
	}
	out := make(map[source.Type]int64, len(rows))
	for _, row := range rows {
		out[source.Type(row.IngestionType)] = row.LastProcessedTs
	}
	return out, nil
}
