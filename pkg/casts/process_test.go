package casts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/rocketman-21/farcaster-cron/pkg/casts/mocks"
	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	"github.com/rocketman-21/farcaster-cron/pkg/migrations/ingestdb"
	"github.com/rocketman-21/farcaster-cron/pkg/queue"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
)

func strPtr(s string) *string { return &s }

func TestEngine_ProcessStaging(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)

	profiles := []dao.ProfileDao{
		{Fid: 2, Fname: strPtr("bob")},
	}
	if _, err := db.NewInsert().Model(&profiles).Exec(ctx); err != nil {
		t.Fatalf("failed to seed profiles: %v", err)
	}

	staged := []dao.StagingCastDao{
		{ID: 3, Fid: 2, Hash: []byte{0x03}, Text: "third", Mentions: strPtr("[]"), MentionsPositions: strPtr("[]")},
		{ID: 1, Fid: 2, Hash: []byte{0x01}, Text: "first ", Mentions: strPtr("[7]"), MentionsPositions: strPtr("[6]")},
		{ID: 2, Fid: 2, Hash: []byte{0x02}, Text: "a reply", ParentHash: []byte{0x09}},
		{ID: 4, Fid: 2, Hash: []byte{0x04}, Text: "broken", Mentions: strPtr("[7,8]"), MentionsPositions: strPtr("[0]")},
		{ID: 5, Fid: 8, Hash: []byte{0x05}, Text: "outsider"},
	}
	if _, err := db.NewInsert().Model(&staged).Exec(ctx); err != nil {
		t.Fatalf("failed to seed staging casts: %v", err)
	}

	ref := refdata.New()
	ref.AddCohortMember(2)

	var got []queue.Job
	sink := mocks.NewSink(t)
	sink.EXPECT().BulkAddJobs(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, jobs []queue.Job) error {
			got = append(got, jobs...)
			return nil
		})

	e := NewEngine(db, sink, WithPageSize(1))
	if err := e.ProcessStaging(ctx, ref); err != nil {
		t.Fatalf("ProcessStaging() failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 jobs, got %d: %+v", len(got), got)
	}
	if got[0].ExternalID != "0x01" || got[1].ExternalID != "0x03" {
		t.Fatalf("expected jobs in id order, got %s then %s", got[0].ExternalID, got[1].ExternalID)
	}
	if got[0].Content != "first @7" {
		t.Errorf("expected mention fallback to fid, got %q", got[0].Content)
	}
	if got[0].ExternalURL != "https://warpcast.com/bob/0x01" {
		t.Errorf("expected permalink from joined profile, got %q", got[0].ExternalURL)
	}
}
