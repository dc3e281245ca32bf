package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	"github.com/rocketman-21/farcaster-cron/pkg/migrations/ingestdb"
	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
	"github.com/rocketman-21/farcaster-cron/pkg/retry"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
)

type fakeProcessor struct {
	t     source.Type
	err   error
	calls int
}

func (f *fakeProcessor) Type() source.Type { return f.t }

func (f *fakeProcessor) Process(context.Context, *refdata.Data) error {
	f.calls++
	return f.err
}

func strPtr(s string) *string { return &s }

func seedStagedCasts(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	rows := []dao.StagingCastDao{
		{ID: 1, Fid: 10, Hash: []byte{1}, Text: "hi  there", Mentions: strPtr("[7, 8]"), MentionsPositions: strPtr("[3, 4]")},
		{ID: 2, Fid: 11, Hash: []byte{2}, Text: "plain", Mentions: strPtr("null")},
		{ID: 3, Fid: 12, Hash: []byte{3}, Text: "no mentions"},
	}
	if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		t.Fatalf("failed to seed staging casts: %v", err)
	}
}

func TestScriptsEmbedded(t *testing.T) {
	for _, typ := range source.All() {
		desc := source.MustDescribe(typ)
		script, err := Script(desc.PromoteScript)
		if err != nil {
			t.Fatalf("Script(%s) failed: %v", desc.PromoteScript, err)
		}
		if script == "" {
			t.Fatalf("Script(%s) is empty", desc.PromoteScript)
		}
	}
	if _, err := Script("missing.sql"); err == nil {
		t.Fatal("expected error for unknown script")
	}
}

func TestRouter_PromotesAfterProcessor(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)
	seedStagedCasts(t, ctx, db)

	proc := &fakeProcessor{t: source.Casts}
	router := NewRouter(db, WithProcessors(proc))

	if err := router.Route(ctx, source.Casts, refdata.New()); err != nil {
		t.Fatalf("Route() failed: %v", err)
	}
	if proc.calls != 1 {
		t.Fatalf("expected processor to run once, ran %d times", proc.calls)
	}

	pgutil.AssertRowCount(t, db, "staging.farcaster_casts", 0)
	pgutil.AssertRowCount(t, db, "production.farcaster_casts", 3)

	var cast dao.CastDao
	if err := db.NewSelect().Model(&cast).Where("pc.id = ?", 1).Scan(ctx); err != nil {
		t.Fatalf("failed to read promoted cast: %v", err)
	}
	if len(cast.MentionedFids) != 2 || cast.MentionedFids[0] != 7 || cast.MentionedFids[1] != 8 {
		t.Errorf("unexpected mentioned_fids %v", cast.MentionedFids)
	}
	if len(cast.MentionsPositionsArray) != 2 || cast.MentionsPositionsArray[1] != 4 {
		t.Errorf("unexpected mentions_positions_array %v", cast.MentionsPositionsArray)
	}

	// promoting the same rows again updates in place
	seedStagedCasts(t, ctx, db)
	if err := router.Route(ctx, source.Casts, refdata.New()); err != nil {
		t.Fatalf("second Route() failed: %v", err)
	}
	pgutil.AssertRowCount(t, db, "production.farcaster_casts", 3)
}

func TestRouter_ProcessorFailureKeepsStaging(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)
	seedStagedCasts(t, ctx, db)

	procErr := errors.New("queue unavailable")
	router := NewRouter(db, WithProcessors(&fakeProcessor{t: source.Casts, err: procErr}))

	err := router.Route(ctx, source.Casts, refdata.New())
	if !errors.Is(err, procErr) {
		t.Fatalf("expected processor error, got %v", err)
	}

	pgutil.AssertRowCount(t, db, "staging.farcaster_casts", 3)
	pgutil.AssertRowCount(t, db, "production.farcaster_casts", 0)
}

func TestRouter_ProfilesWithoutProcessor(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)

	rows := []dao.StagingProfileDao{
		{Fid: 1, Fname: strPtr("alice"), VerifiedAddresses: strPtr(`["0xAbC","0xdef"]`)},
		{Fid: 2, Fname: strPtr("bob")},
	}
	if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		t.Fatalf("failed to seed staging profiles: %v", err)
	}

	if err := NewRouter(db).Route(ctx, source.Profiles, nil); err != nil {
		t.Fatalf("Route() failed: %v", err)
	}

	pgutil.AssertRowCount(t, db, "staging.farcaster_profile_with_addresses", 0)

	var profile dao.ProfileDao
	if err := db.NewSelect().Model(&profile).Where("pp.fid = ?", 1).Scan(ctx); err != nil {
		t.Fatalf("failed to read promoted profile: %v", err)
	}
	if len(profile.VerifiedAddresses) != 2 || profile.VerifiedAddresses[0] != "0xAbC" {
		t.Errorf("unexpected verified_addresses %v", profile.VerifiedAddresses)
	}
}

// deadlockFirstPromotions makes the first n inserts into production channel
// members fail with SQLSTATE 40P01. The sequence survives the rollback.
func deadlockFirstPromotions(t *testing.T, ctx context.Context, db *bun.DB, n int) {
	t.Helper()
	stmts := []string{
		`CREATE SEQUENCE promote_attempts`,
		`CREATE FUNCTION fail_promote() RETURNS trigger LANGUAGE plpgsql AS $$
		BEGIN
			IF nextval('promote_attempts') <= ` + fmt.Sprint(n) + ` THEN
				RAISE EXCEPTION 'deadlock detected' USING ERRCODE = '40P01';
			END IF;
			RETURN NULL;
		END $$`,
		`CREATE TRIGGER fail_promote BEFORE INSERT ON production.farcaster_channel_members
			FOR EACH STATEMENT EXECUTE FUNCTION fail_promote()`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("failed to install deadlock trigger: %v", err)
		}
	}
}

func seedStagedMembers(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	now := time.Now().UTC()
	rows := []dao.StagingChannelMemberDao{
		{ID: 1, Fid: 10, ChannelID: "nouns", CreatedAt: now, UpdatedAt: now, Timestamp: now},
		{ID: 2, Fid: 11, ChannelID: "vrbs", CreatedAt: now, UpdatedAt: now, Timestamp: now},
	}
	if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		t.Fatalf("failed to seed staging channel members: %v", err)
	}
}

func TestRouter_PromoteRetriesDeadlock(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)
	seedStagedMembers(t, ctx, db)
	deadlockFirstPromotions(t, ctx, db, 1)

	router := NewRouter(db, WithRetryPolicy(retry.Policy{Attempts: 3, Backoff: time.Millisecond}))
	if err := router.Promote(ctx, source.MustDescribe(source.ChannelMembers)); err != nil {
		t.Fatalf("Promote() failed: %v", err)
	}

	pgutil.AssertRowCount(t, db, "staging.farcaster_channel_members", 0)
	pgutil.AssertRowCount(t, db, "production.farcaster_channel_members", 2)
}

func TestRouter_PromoteGivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)
	seedStagedMembers(t, ctx, db)
	deadlockFirstPromotions(t, ctx, db, 5)

	router := NewRouter(db, WithRetryPolicy(retry.Policy{Attempts: 2, Backoff: time.Millisecond}))
	err := router.Promote(ctx, source.MustDescribe(source.ChannelMembers))
	if !pgutil.IsLockContention(err) {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	pgutil.AssertRowCount(t, db, "staging.farcaster_channel_members", 2)
	pgutil.AssertRowCount(t, db, "production.farcaster_channel_members", 0)
}
