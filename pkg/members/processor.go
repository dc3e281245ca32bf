// Package members processes staged channel memberships and backfills the
// casts of cohort members who just joined a tracked channel.
package members

import (
	"context"
	"fmt"
	"sort"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/rocketman-21/farcaster-cron/pkg/casts"
	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
)

// DefaultChannels are the channels whose members make up the cohort.
var DefaultChannels = []string{
	"vrbs",
	"nouns",
	"gnars",
	"flows",
	"nouns-animators",
	"nouns-draws",
	"nouns-impact",
	"nouns-retro",
}

// Embedder sends production casts through cast enrichment.
type Embedder interface {
	EmbedProduction(ctx context.Context, ref *refdata.Data, rows []casts.ProductionRow) error
}

type settings struct {
	logger        *zap.Logger
	channels      []string
	pageSize      int
	backfillBatch int
	fidsPerQuery  int
}

// Option configures the Processor.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithChannels replaces the tracked cohort channels.
func WithChannels(channels []string) Option {
	return func(s *settings) { s.channels = channels }
}

// WithPageSize sets how many staged members are read per query.
func WithPageSize(n int) Option {
	return func(s *settings) { s.pageSize = n }
}

// WithBackfill sets the cast page size and how many fids share one backfill query.
func WithBackfill(batch, fidsPerQuery int) Option {
	return func(s *settings) {
		s.backfillBatch = batch
		s.fidsPerQuery = fidsPerQuery
	}
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:        zap.NewNop(),
		channels:      DefaultChannels,
		pageSize:      10000,
		backfillBatch: 1000,
		fidsPerQuery:  2,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.pageSize = max(s.pageSize, 1)
	s.backfillBatch = max(s.backfillBatch, 1)
	s.fidsPerQuery = max(s.fidsPerQuery, 1)
	return s
}

// Processor finds cohort members new to a tracked channel and embeds their casts.
type Processor struct {
	db            bun.IDB
	embedder      Embedder
	logger        *zap.Logger
	channels      []string
	pageSize      int
	backfillBatch int
	fidsPerQuery  int
}

// NewProcessor creates a Processor.
func NewProcessor(db bun.IDB, embedder Embedder, opts ...Option) *Processor {
	s := applyOptions(opts)
	return &Processor{
		db:            db,
		embedder:      embedder,
		logger:        s.logger,
		channels:      s.channels,
		pageSize:      s.pageSize,
		backfillBatch: s.backfillBatch,
		fidsPerQuery:  s.fidsPerQuery,
	}
}

// Type reports the ingestion type this processor handles.
func (p *Processor) Type() source.Type {
	return source.ChannelMembers
}

// Process runs ProcessStaging for the enrichment router.
func (p *Processor) Process(ctx context.Context, ref *refdata.Data) error {
	return p.ProcessStaging(ctx, ref)
}

// ProcessStaging reads staged members not yet in production, keeps the live
// cohort members of tracked channels and backfills their casts.
func (p *Processor) ProcessStaging(ctx context.Context, ref *refdata.Data) error {
	if len(p.channels) == 0 {
		return nil
	}

	var fids []int64
	var scanned int
	for offset := 0; ; offset += p.pageSize {
		var rows []dao.StagingChannelMemberDao
		err := p.db.NewSelect().
			Model(&rows).
			ColumnExpr("sm.*").
			Join("LEFT JOIN production.farcaster_channel_members AS pm ON pm.id = sm.id").
			Where("pm.id IS NULL").
			Where("sm.channel_id IN (?)", bun.In(p.channels)).
			OrderExpr("sm.id ASC").
			Limit(p.pageSize).
			Offset(offset).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("read new channel members at offset %d: %w", offset, err)
		}

		for _, m := range rows {
			if m.DeletedAt == nil && ref.IsCohort(m.Fid) {
				fids = append(fids, m.Fid)
			}
		}
		scanned += len(rows)
		if len(rows) < p.pageSize {
			break
		}
	}

	p.logger.Info("new channel members scanned",
		zap.Int("rows", scanned),
		zap.Int("cohort_members", len(fids)),
	)
	return p.Backfill(ctx, ref, fids)
}

// BackfillCohort backfills every cohort member, or only those with a fid
// below belowFid when it is positive.
func (p *Processor) BackfillCohort(ctx context.Context, ref *refdata.Data, belowFid int64) error {
	var fids []int64
	for _, fid := range ref.CohortFids() {
		if belowFid <= 0 || fid < belowFid {
			fids = append(fids, fid)
		}
	}
	return p.Backfill(ctx, ref, fids)
}

// Backfill embeds the top-level production casts of fids, highest fid first.
func (p *Processor) Backfill(ctx context.Context, ref *refdata.Data, fids []int64) error {
	fids = uniqueDesc(fids)
	if len(fids) == 0 {
		return nil
	}

	for start := 0; start < len(fids); start += p.fidsPerQuery {
		group := fids[start:min(start+p.fidsPerQuery, len(fids))]
		n, err := p.backfillGroup(ctx, ref, group)
		if err != nil {
			return fmt.Errorf("backfill fids %v: %w", group, err)
		}
		p.logger.Debug("backfilled casts", zap.Int64s("fids", group), zap.Int("casts", n))
	}
	p.logger.Info("cohort backfill finished", zap.Int("fids", len(fids)))
	return nil
}

func (p *Processor) backfillGroup(ctx context.Context, ref *refdata.Data, fids []int64) (int, error) {
	var lastID int64
	var total int
	for {
		var rows []casts.ProductionRow
		err := p.db.NewSelect().
			Model(&rows).
			ColumnExpr("pc.*").
			ColumnExpr("pp.fname AS author_fname").
			Join("LEFT JOIN production.farcaster_profile AS pp ON pp.fid = pc.fid").
			Where("pc.id > ?", lastID).
			Where("pc.fid IN (?)", bun.In(fids)).
			Where("pc.parent_hash IS NULL").
			OrderExpr("pc.id ASC").
			Limit(p.backfillBatch).
			Scan(ctx)
		if err != nil {
			return total, fmt.Errorf("read casts after id %d: %w", lastID, err)
		}
		if len(rows) == 0 {
			return total, nil
		}
		if err := p.embedder.EmbedProduction(ctx, ref, rows); err != nil {
			return total, err
		}
		total += len(rows)
		lastID = rows[len(rows)-1].ID
		if len(rows) < p.backfillBatch {
			return total, nil
		}
	}
}

func uniqueDesc(fids []int64) []int64 {
	seen := make(map[int64]struct{}, len(fids))
	out := make([]int64, 0, len(fids))
	for _, fid := range fids {
		if _, ok := seen[fid]; ok {
			continue
		}
		seen[fid] = struct{}{}
		out = append(out, fid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}
