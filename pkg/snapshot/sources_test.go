package snapshot

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	"github.com/rocketman-21/farcaster-cron/pkg/migrations/ingestdb"
	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
)

func strPtr(s string) *string { return &s }

func collect(t *testing.T, src Source) [][]string {
	t.Helper()
	var out [][]string
	err := src.Rows(context.Background(), func(r []string) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Rows() failed: %v", err)
	}
	return out
}

func TestProfilesAndCitizensSources(t *testing.T) {
	ctx := context.Background()
	db := ingestdb.SetupTestDB(t)

	profiles := []dao.ProfileDao{
		{Fid: 2, Fname: strPtr("bob")},
		{Fid: 1, Fname: strPtr("alice"), VerifiedAddresses: []string{"0xa", "0xb"}},
		{Fid: 3},
	}
	if _, err := db.NewInsert().Model(&profiles).Exec(ctx); err != nil {
		t.Fatalf("failed to seed profiles: %v", err)
	}
	members := []dao.ChannelMemberDao{
		{ID: 1, Fid: 2, ChannelID: "nouns"},
		{ID: 2, Fid: 2, ChannelID: "nouns"},
		{ID: 3, Fid: 1, ChannelID: "vrbs"},
		{ID: 4, Fid: 3, ChannelID: "other"},
		{ID: 5, Fid: 9, ChannelID: "nouns"},
	}
	if _, err := db.NewInsert().Model(&members).Exec(ctx); err != nil {
		t.Fatalf("failed to seed members: %v", err)
	}

	got := collect(t, NewProfilesSource(db, 2))
	if len(got) != 3 {
		t.Fatalf("expected 3 profile rows, got %v", got)
	}
	if got[0][0] != "1" || got[0][2] != "0xa|0xb" {
		t.Errorf("unexpected first profile row %v", got[0])
	}
	if got[2][1] != "" {
		t.Errorf("expected empty fname for fid 3, got %q", got[2][1])
	}

	got = collect(t, NewCitizensSource(db, []string{"nouns", "vrbs"}, 1))
	want := [][]string{{"1", "alice", "vrbs"}, {"2", "bob", "nouns"}, {"9", "", "nouns"}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("expected %v, got %v", want, got)
			}
		}
	}
}

func TestGrantsSource(t *testing.T) {
	pgutil.RequireDocker(t)
	_, cfg, cleanup := pgutil.SetupTestDBWithConfig(t)
	defer cleanup()
	ctx := context.Background()

	raw, err := sql.Open("postgres", cfg.GetConnectionString())
	if err != nil {
		t.Fatalf("failed to open flows database: %v", err)
	}
	_, err = raw.ExecContext(ctx, `
		CREATE TABLE "public"."Grant" (
			id text PRIMARY KEY,
			recipient text NOT NULL,
			description text,
			"parentContract" text
		);
		INSERT INTO "public"."Grant" VALUES
			('b', '0xbuilder', 'Build, ship', '0xflow'),
			('a', '0xflow', NULL, NULL),
			('c', '0xother', 'Third', '0xflow');`)
	if err != nil {
		t.Fatalf("failed to seed grants: %v", err)
	}

	store := NewFlowsStore(raw)
	defer store.Close()

	got := collect(t, NewGrantsSource(store, 2))
	if len(got) != 3 {
		t.Fatalf("expected 3 grants, got %v", got)
	}
	if got[0][0] != "a" || got[0][2] != "" || got[0][3] != "" {
		t.Errorf("unexpected first grant %v", got[0])
	}
	if got[1][1] != "0xbuilder" || got[1][2] != "Build, ship" || got[1][3] != "0xflow" {
		t.Errorf("unexpected second grant %v", got[1])
	}
}
