package members

import (
	"context"
	"testing"
	"time"

	"github.com/rocketman-21/farcaster-cron/pkg/casts"
	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	"github.com/rocketman-21/farcaster-cron/pkg/migrations/ingestdb"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
)

type recordingEmbedder struct {
	calls [][]int64
}

func (r *recordingEmbedder) EmbedProduction(_ context.Context, _ *refdata.Data, rows []casts.ProductionRow) error {
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	r.calls = append(r.calls, ids)
	return nil
}

func (r *recordingEmbedder) ids() []int64 {
	var out []int64
	for _, c := range r.calls {
		out = append(out, c...)
	}
	return out
}

func TestUniqueDesc(t *testing.T) {
	got := uniqueDesc([]int64{3, 10, 3, 7, 10})
	want := []int64{10, 7, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func seedProductionCasts(t *testing.T, ctx context.Context, p *Processor) {
	t.Helper()
	rows := []dao.CastDao{
		{ID: 1, Fid: 10, Hash: []byte{1}},
		{ID: 2, Fid: 20, Hash: []byte{2}},
		{ID: 3, Fid: 10, Hash: []byte{3}, ParentHash: []byte{1}},
		{ID: 4, Fid: 10, Hash: []byte{4}},
		{ID: 5, Fid: 30, Hash: []byte{5}},
		{ID: 6, Fid: 10, Hash: []byte{6}},
	}
	if _, err := p.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		t.Fatalf("failed to seed production casts: %v", err)
	}
}

func TestProcessor_ProcessStaging(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)
	embedder := &recordingEmbedder{}
	p := NewProcessor(db, embedder, WithPageSize(2), WithBackfill(2, 2))
	seedProductionCasts(t, ctx, p)

	deleted := time.Now()
	existing := []dao.ChannelMemberDao{{ID: 100, Fid: 20, ChannelID: "nouns"}}
	if _, err := db.NewInsert().Model(&existing).Exec(ctx); err != nil {
		t.Fatalf("failed to seed production members: %v", err)
	}
	staged := []dao.StagingChannelMemberDao{
		{ID: 100, Fid: 20, ChannelID: "nouns"},                      // already promoted
		{ID: 101, Fid: 10, ChannelID: "nouns"},                      // new cohort member
		{ID: 102, Fid: 30, ChannelID: "unrelated"},                  // untracked channel
		{ID: 103, Fid: 40, ChannelID: "vrbs"},                       // not in cohort
		{ID: 104, Fid: 30, ChannelID: "flows", DeletedAt: &deleted}, // left the channel
		{ID: 105, Fid: 10, ChannelID: "flows"},                      // same fid again
	}
	if _, err := db.NewInsert().Model(&staged).Exec(ctx); err != nil {
		t.Fatalf("failed to seed staging members: %v", err)
	}

	ref := refdata.New()
	for _, fid := range []int64{10, 20, 30} {
		ref.AddCohortMember(fid)
	}

	if err := p.ProcessStaging(ctx, ref); err != nil {
		t.Fatalf("ProcessStaging() failed: %v", err)
	}

	got := embedder.ids()
	want := []int64{1, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("expected casts %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected casts %v, got %v", want, got)
		}
	}
	if len(embedder.calls) != 2 {
		t.Errorf("expected keyset pages of 2 then 1, got %v", embedder.calls)
	}
}

func TestProcessor_BackfillCohort(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)
	embedder := &recordingEmbedder{}
	p := NewProcessor(db, embedder, WithBackfill(1000, 2))
	seedProductionCasts(t, ctx, p)

	ref := refdata.New()
	for _, fid := range []int64{10, 20, 30} {
		ref.AddCohortMember(fid)
	}

	if err := p.BackfillCohort(ctx, ref, 30); err != nil {
		t.Fatalf("BackfillCohort() failed: %v", err)
	}

	// fids 20 and 10 share one query; 30 is excluded by the bound
	if len(embedder.calls) != 1 {
		t.Fatalf("expected one query group, got %v", embedder.calls)
	}
	got := embedder.ids()
	want := []int64{1, 2, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("expected casts %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected casts %v, got %v", want, got)
		}
	}
}
