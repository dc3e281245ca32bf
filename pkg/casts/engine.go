package casts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/rocketman-21/farcaster-cron/internal/metrics"
	"github.com/rocketman-21/farcaster-cron/pkg/casts/text"
	"github.com/rocketman-21/farcaster-cron/pkg/queue"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
)

// DefaultAllowList holds the channel anchors whose casts are always embedded.
var DefaultAllowList = []string{
	"https://warpcast.com/~/channel/vrbs",
	"chain://eip155:1/erc721:0x9c8ff314c9bc7f6e59a9d9225fb22946427edc03",
	"chain://eip155:1/erc721:0x558bfff0d583416f7c4e380625c7865821b8e95c",
	"https://warpcast.com/~/channel/flows",
}

const (
	defaultHost           = "warpcast.com"
	defaultPageSize       = 10000
	defaultJobBatch       = 50
	defaultGrantCheckSize = 10
)

// Sink receives the engine's output.
//
//go:generate mockery --name Sink --output mocks --outpkg mocks --filename mock_sink.go --with-expecter
type Sink interface {
	BulkAddJobs(ctx context.Context, jobs []queue.Job) error
	BulkGrantUpdateChecks(ctx context.Context, checks []queue.GrantUpdateCheck) error
}

type settings struct {
	logger     *zap.Logger
	allowList  []string
	host       string
	pageSize   int
	jobBatch   int
	checkBatch int
}

// Option configures the Engine.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithAllowList replaces the root parent URLs that make a cast eligible on their own.
func WithAllowList(urls []string) Option {
	return func(s *settings) { s.allowList = urls }
}

// WithPermalinkHost sets the host used for cast permalinks.
func WithPermalinkHost(host string) Option {
	return func(s *settings) { s.host = host }
}

// WithPageSize sets how many staging rows are read per query.
func WithPageSize(n int) Option {
	return func(s *settings) { s.pageSize = n }
}

// WithBatchSizes sets how many jobs and grant checks go into one request.
func WithBatchSizes(jobs, checks int) Option {
	return func(s *settings) {
		s.jobBatch = jobs
		s.checkBatch = checks
	}
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:     zap.NewNop(),
		allowList:  DefaultAllowList,
		host:       defaultHost,
		pageSize:   defaultPageSize,
		jobBatch:   defaultJobBatch,
		checkBatch: defaultGrantCheckSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.jobBatch <= 0 {
		s.jobBatch = defaultJobBatch
	}
	if s.checkBatch <= 0 {
		s.checkBatch = defaultGrantCheckSize
	}
	return s
}

// Engine enriches casts and dispatches them to the Sink.
type Engine struct {
	db         bun.IDB
	sink       Sink
	logger     *zap.Logger
	allow      map[string]struct{}
	host       string
	pageSize   int
	jobBatch   int
	checkBatch int
}

// NewEngine creates an Engine reading casts from db.
func NewEngine(db bun.IDB, sink Sink, opts ...Option) *Engine {
	s := applyOptions(opts)
	allow := make(map[string]struct{}, len(s.allowList))
	for _, u := range s.allowList {
		allow[u] = struct{}{}
	}
	return &Engine{
		db:         db,
		sink:       sink,
		logger:     s.logger,
		allow:      allow,
		host:       s.host,
		pageSize:   s.pageSize,
		jobBatch:   s.jobBatch,
		checkBatch: s.checkBatch,
	}
}

// Type reports the ingestion type this processor handles.
func (e *Engine) Type() source.Type {
	return source.Casts
}

// Process enriches the staged casts. It satisfies the enrichment router's processor contract.
func (e *Engine) Process(ctx context.Context, ref *refdata.Data) error {
	return e.ProcessStaging(ctx, ref)
}

// ProcessStaging pages through the top-level casts in staging in id order and
// dispatches each page before reading the next.
func (e *Engine) ProcessStaging(ctx context.Context, ref *refdata.Data) error {
	var total int
	for offset := 0; ; offset += e.pageSize {
		var rows []stagingRow
		err := e.db.NewSelect().
			Model(&rows).
			ColumnExpr("sc.*").
			ColumnExpr("pp.fname AS author_fname").
			Join("LEFT JOIN production.farcaster_profile AS pp ON pp.fid = sc.fid").
			Where("sc.parent_hash IS NULL").
			OrderExpr("sc.id ASC").
			Limit(e.pageSize).
			Offset(offset).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("read staged casts at offset %d: %w", offset, err)
		}
		if len(rows) == 0 {
			break
		}

		casts := make([]Cast, 0, len(rows))
		for _, r := range rows {
			c, err := r.cast()
			if err != nil {
				e.reject(r.ID, r.Fid, "malformed_mentions", err)
				continue
			}
			casts = append(casts, c)
		}
		if err := e.Embed(ctx, ref, casts); err != nil {
			return err
		}
		total += len(rows)
		if len(rows) < e.pageSize {
			break
		}
	}
	e.logger.Info("staged casts processed", zap.Int("rows", total))
	return nil
}

// EmbedProduction enriches casts already promoted to production.
func (e *Engine) EmbedProduction(ctx context.Context, ref *refdata.Data, rows []ProductionRow) error {
	casts := make([]Cast, len(rows))
	for i, r := range rows {
		casts[i] = r.Cast()
	}
	return e.Embed(ctx, ref, casts)
}

// Eligible reports whether c is a top-level cast that is either posted under
// an allow-listed anchor or written by a cohort member.
func (e *Engine) Eligible(c Cast, ref *refdata.Data) bool {
	if c.IsReply() {
		return false
	}
	if _, ok := e.allow[c.RootParentURL]; ok && c.RootParentURL != "" {
		return true
	}
	return ref.IsCohort(c.Fid)
}

// Embed builds jobs for the eligible casts and grant checks for every
// top-level cast written by a grant recipient, then dispatches both in batches.
func (e *Engine) Embed(ctx context.Context, ref *refdata.Data, casts []Cast) error {
	var (
		jobs   []queue.Job
		checks []queue.GrantUpdateCheck
	)
	for _, c := range casts {
		if c.IsReply() {
			continue
		}
		eligible := e.Eligible(c, ref)
		grants := ref.GrantsForAddresses(ref.Addresses(c.Fid))
		if !eligible && len(grants) == 0 {
			continue
		}

		content, err := Content(c, ref)
		if err != nil {
			e.reject(c.ID, c.Fid, "malformed_mentions", err,
				zap.Ints("positions", c.MentionPositions),
				zap.Int64s("mentions", c.Mentions),
			)
			continue
		}
		urls := EmbedURLs(c.Embeds, e.host, ref.Fname)

		if eligible {
			job := e.BuildJob(c, ref, content, urls)
			if job.Empty() {
				metrics.RecordsRejected.WithLabelValues("empty").Inc()
				e.logger.Debug("skipping cast without content or urls", zap.String("hash", job.ExternalID))
			} else {
				jobs = append(jobs, job)
			}
		}

		checks = append(checks, e.grantChecks(c, ref, grants, content, urls)...)
	}
	return e.dispatch(ctx, jobs, checks)
}

// Content inlines mentions and cleans the cast text for embedding.
func Content(c Cast, ref *refdata.Data) (string, error) {
	inlined, err := text.InsertMentions(c.Text, c.MentionPositions, c.Mentions, ref.Fname)
	if err != nil {
		return "", err
	}
	return text.CleanForEmbedding(inlined), nil
}

// BuildJob assembles the cast job. Sets are deduplicated before it is returned.
func (e *Engine) BuildJob(c Cast, ref *refdata.Data, content string, urls []string) queue.Job {
	fid := strconv.FormatInt(c.Fid, 10)
	job := queue.Job{
		Type:       queue.JobTypeCast,
		Content:    content,
		ExternalID: hexutil.Encode(c.Hash),
		HashSuffix: fid,
		URLs:       urls,
		Groups:     []string{},
		Users:      []string{fid},
		Tags:       []string{},
	}
	if fname := e.authorFname(c, ref); fname != "" {
		job.ExternalURL = Permalink(e.host, fname, c.Hash)
	}

	for _, addr := range ref.Addresses(c.Fid) {
		if validUser(addr) {
			job.Users = append(job.Users, addr)
		}
	}
	for _, g := range []string{c.RootParentURL, c.ParentURL} {
		if g != "" {
			job.Groups = append(job.Groups, g)
		}
	}
	for _, m := range c.Mentions {
		job.Tags = append(job.Tags, strconv.FormatInt(m, 10))
		job.Tags = append(job.Tags, ref.Addresses(m)...)
	}

	job.Finalize()
	return job
}

func (e *Engine) authorFname(c Cast, ref *refdata.Data) string {
	if name, ok := ref.Fname(c.Fid); ok && name != "" {
		return name
	}
	return c.AuthorFname
}

// validUser drops address-like values that are not 20-byte hex addresses.
func validUser(v string) bool {
	if len(v) >= 2 && (v[:2] == "0x" || v[:2] == "0X") {
		return len(v) == 42
	}
	return v != ""
}

// grantChecks emits one check per grant the author receives.
func (e *Engine) grantChecks(c Cast, ref *refdata.Data, grants []refdata.Grant, content string, urls []string) []queue.GrantUpdateCheck {
	if len(grants) == 0 {
		return nil
	}
	hash := hexutil.Encode(c.Hash)
	if content == "" && len(urls) == 0 {
		e.logger.Info("skipping grant update check without content or urls",
			zap.String("hash", hash),
			zap.Int64("fid", c.Fid),
		)
		return nil
	}
	if urls == nil {
		urls = []string{}
	}

	checks := make([]queue.GrantUpdateCheck, 0, len(grants))
	for _, g := range grants {
		check := queue.GrantUpdateCheck{
			CastContent:      content,
			CastHash:         hash,
			URLs:             urls,
			BuilderFid:       strconv.FormatInt(c.Fid, 10),
			GrantID:          g.ID,
			GrantDescription: text.CleanForEmbedding(g.Description),
		}
		if parent, ok := ref.Parent(g); ok {
			check.ParentFlowDescription = text.CleanForEmbedding(parent.Description)
		}
		checks = append(checks, check)
	}
	return checks
}

func (e *Engine) dispatch(ctx context.Context, jobs []queue.Job, checks []queue.GrantUpdateCheck) error {
	for _, batch := range queue.Batches(jobs, e.jobBatch) {
		if err := e.sink.BulkAddJobs(ctx, batch); err != nil {
			return fmt.Errorf("dispatch %d cast jobs: %w", len(batch), err)
		}
	}
	for _, batch := range queue.Batches(checks, e.checkBatch) {
		if err := e.sink.BulkGrantUpdateChecks(ctx, batch); err != nil {
			return fmt.Errorf("dispatch %d grant update checks: %w", len(batch), err)
		}
	}
	if len(jobs)+len(checks) > 0 {
		e.logger.Info("cast payloads dispatched",
			zap.Int("jobs", len(jobs)),
			zap.Int("grant_checks", len(checks)),
		)
	}
	return nil
}

func (e *Engine) reject(id, fid int64, reason string, err error, fields ...zap.Field) {
	metrics.RecordsRejected.WithLabelValues(reason).Inc()
	e.logger.Warn("rejecting malformed cast",
		append([]zap.Field{
			zap.Int64("id", id),
			zap.Int64("fid", fid),
			zap.Bool("mention_mismatch", errors.Is(err, ErrMentionMismatch)),
			zap.Error(err),
		}, fields...)...,
	)
}
