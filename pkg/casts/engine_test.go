package casts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketman-21/farcaster-cron/pkg/casts/mocks"
	"github.com/rocketman-21/farcaster-cron/pkg/queue"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
)

const (
	builderAddr = "0x1111111111111111111111111111111111111111"
	flowAddr    = "0x2222222222222222222222222222222222222222"
)

func testRef() *refdata.Data {
	ref := refdata.New()
	ref.AddProfile(1, "alice", []string{builderAddr, strings.ToUpper(builderAddr[:2]) + builderAddr[2:], "0x123"})
	ref.AddProfile(2, "bob", []string{"0x3333333333333333333333333333333333333333"})
	ref.AddProfile(3, "", nil)
	ref.AddCohortMember(2)
	ref.AddGrant(refdata.Grant{ID: "flow", Recipient: flowAddr, Description: "# The Flow"})
	ref.AddGrant(refdata.Grant{ID: "g1", Recipient: strings.ToUpper(builderAddr), Description: "Build **tools**", ParentContract: flowAddr})
	return ref
}

func captureJobs(sink *mocks.Sink, into *[][]queue.Job) {
	sink.EXPECT().BulkAddJobs(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, jobs []queue.Job) error {
			*into = append(*into, jobs)
			return nil
		})
}

func TestEligible(t *testing.T) {
	e := NewEngine(nil, nil)
	ref := testRef()

	tests := []struct {
		name string
		cast Cast
		want bool
	}{
		{"allow-listed anchor, not cohort", Cast{Fid: 9, RootParentURL: "https://warpcast.com/~/channel/flows"}, true},
		{"cohort author", Cast{Fid: 2}, true},
		{"neither", Cast{Fid: 9, RootParentURL: "https://warpcast.com/~/channel/other"}, false},
		{"reply from cohort", Cast{Fid: 2, ParentHash: []byte{1}}, false},
		{"reply under anchor", Cast{Fid: 9, ParentHash: []byte{1}, RootParentURL: "https://warpcast.com/~/channel/flows"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Eligible(tt.cast, ref))
		})
	}
}

func TestBuildJob(t *testing.T) {
	e := NewEngine(nil, nil)
	ref := testRef()
	c := Cast{
		Fid:           1,
		Hash:          []byte{0xab, 0xcd},
		RootParentURL: "https://warpcast.com/~/channel/flows",
		ParentURL:     "https://Warpcast.com/~/channel/FLOWS",
		Mentions:      []int64{2, 2, 3},
	}

	job := e.BuildJob(c, ref, "gm", []string{"https://A", "https://a", "https://b"})

	assert.Equal(t, queue.JobTypeCast, job.Type)
	assert.Equal(t, "0xabcd", job.ExternalID)
	assert.Equal(t, "https://warpcast.com/alice/0xabcd", job.ExternalURL)
	assert.Equal(t, "1", job.HashSuffix)
	assert.Equal(t, []string{"1", builderAddr}, job.Users)
	assert.Equal(t, []string{"https://warpcast.com/~/channel/flows"}, job.Groups)
	assert.Equal(t, []string{"2", "0x3333333333333333333333333333333333333333", "3"}, job.Tags)
	assert.Equal(t, []string{"https://A", "https://b"}, job.URLs)

	for _, set := range [][]string{job.Users, job.Tags, job.URLs, job.Groups} {
		seen := map[string]bool{}
		for _, v := range set {
			k := strings.ToLower(v)
			assert.False(t, seen[k], "duplicate %q", v)
			seen[k] = true
		}
	}
}

func TestBuildJob_FallsBackToJoinedFname(t *testing.T) {
	e := NewEngine(nil, nil, WithPermalinkHost("farcaster.xyz"))
	job := e.BuildJob(Cast{Fid: 3, Hash: []byte{1}, AuthorFname: "carol"}, testRef(), "x", nil)
	assert.Equal(t, "https://farcaster.xyz/carol/0x01", job.ExternalURL)

	job = e.BuildJob(Cast{Fid: 4, Hash: []byte{1}}, testRef(), "x", nil)
	assert.Empty(t, job.ExternalURL)
}

func TestEmbed_DispatchesEligibleCasts(t *testing.T) {
	ctx := context.Background()
	sink := mocks.NewSink(t)
	var batches [][]queue.Job
	captureJobs(sink, &batches)

	e := NewEngine(nil, sink)
	casts := []Cast{
		{ID: 1, Fid: 9, Hash: []byte{1}, Text: "In the flows channel", RootParentURL: "https://warpcast.com/~/channel/flows"},
		{ID: 2, Fid: 2, Hash: []byte{2}, Text: "hey  there", Mentions: []int64{1}, MentionPositions: []int{4}},
		{ID: 3, Fid: 2, Hash: []byte{3}, Text: "a reply", ParentHash: []byte{9}},
		{ID: 4, Fid: 9, Hash: []byte{4}, Text: "not eligible"},
		{ID: 5, Fid: 2, Hash: []byte{5}, Text: "   "},
		{ID: 6, Fid: 2, Hash: []byte{6}, Text: "bad", Mentions: []int64{1}, MentionPositions: []int{0, 1}},
	}

	require.NoError(t, e.Embed(ctx, testRef(), casts))
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "in the flows channel", batches[0][0].Content)
	assert.Equal(t, "hey @alice there", batches[0][1].Content)
	assert.Equal(t, []string{"1"}, batches[0][1].Tags[:1])
}

func TestEmbed_NothingToSend(t *testing.T) {
	sink := mocks.NewSink(t)
	e := NewEngine(nil, sink)

	err := e.Embed(context.Background(), testRef(), []Cast{{Fid: 2, Hash: []byte{1}, Text: "reply", ParentHash: []byte{2}}})
	require.NoError(t, err)
	sink.AssertNotCalled(t, "BulkAddJobs", mock.Anything, mock.Anything)
}

func TestEmbed_Batches(t *testing.T) {
	sink := mocks.NewSink(t)
	var batches [][]queue.Job
	captureJobs(sink, &batches)

	e := NewEngine(nil, sink, WithBatchSizes(50, 10))
	casts := make([]Cast, 120)
	for i := range casts {
		casts[i] = Cast{ID: int64(i), Fid: 2, Hash: []byte{byte(i)}, Text: "gm"}
	}

	require.NoError(t, e.Embed(context.Background(), testRef(), casts))
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 50)
	assert.Len(t, batches[1], 50)
	assert.Len(t, batches[2], 20)
	assert.Equal(t, "0x00", batches[0][0].ExternalID)
	assert.Equal(t, "0x77", batches[2][19].ExternalID)
}

func TestEmbed_GrantUpdateChecks(t *testing.T) {
	sink := mocks.NewSink(t)
	var jobs [][]queue.Job
	captureJobs(sink, &jobs)

	var checks []queue.GrantUpdateCheck
	sink.EXPECT().BulkGrantUpdateChecks(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, batch []queue.GrantUpdateCheck) error {
			checks = append(checks, batch...)
			return nil
		}).Once()

	e := NewEngine(nil, sink)
	casts := []Cast{
		{
			ID:            1,
			Fid:           1,
			Hash:          []byte{0xaa},
			Text:          "Shipped v2",
			Embeds:        `[{"url":"https://demo"}]`,
			RootParentURL: "https://warpcast.com/~/channel/flows",
		},
		// a builder cast with nothing to classify
		{ID: 2, Fid: 1, Hash: []byte{0xbb}, RootParentURL: "https://warpcast.com/~/channel/flows"},
	}

	require.NoError(t, e.Embed(context.Background(), testRef(), casts))
	require.Len(t, checks, 1)
	assert.Equal(t, queue.GrantUpdateCheck{
		CastContent:           "shipped v2",
		CastHash:              "0xaa",
		URLs:                  []string{"https://demo"},
		BuilderFid:            "1",
		GrantID:               "g1",
		GrantDescription:      "build tools",
		ParentFlowDescription: "the flow",
	}, checks[0])
}

func TestEmbed_GrantCheckOutsideCohortAndAnchors(t *testing.T) {
	sink := mocks.NewSink(t)
	var checks []queue.GrantUpdateCheck
	sink.EXPECT().BulkGrantUpdateChecks(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, batch []queue.GrantUpdateCheck) error {
			checks = append(checks, batch...)
			return nil
		}).Once()

	ref := refdata.New()
	ref.AddProfile(7, "dana", []string{builderAddr})
	ref.AddProfile(2, "bob", nil)
	ref.AddGrant(refdata.Grant{ID: "g1", Recipient: builderAddr, Description: "Builders grant"})

	e := NewEngine(nil, sink)
	casts := []Cast{
		{
			ID:               1,
			Fid:              7,
			Hash:             []byte{0x07},
			Text:             "shipped the new release with ",
			Mentions:         []int64{2},
			MentionPositions: []int{29},
			RootParentURL:    "https://warpcast.com/~/channel/builders",
		},
		// replies never produce checks
		{ID: 2, Fid: 7, Hash: []byte{0x08}, Text: "thanks", ParentHash: []byte{1}},
	}

	require.NoError(t, e.Embed(context.Background(), ref, casts))
	require.Len(t, checks, 1)
	assert.Equal(t, "0x07", checks[0].CastHash)
	assert.Equal(t, "7", checks[0].BuilderFid)
	assert.Equal(t, "g1", checks[0].GrantID)
	assert.Equal(t, "shipped the new release with @bob", checks[0].CastContent)
	sink.AssertNotCalled(t, "BulkAddJobs", mock.Anything, mock.Anything)
}

func TestEmbed_SinkFailurePropagates(t *testing.T) {
	sink := mocks.NewSink(t)
	sinkErr := errors.New("queue returned 502")
	sink.EXPECT().BulkAddJobs(mock.Anything, mock.Anything).Return(sinkErr).Once()

	e := NewEngine(nil, sink)
	err := e.Embed(context.Background(), testRef(), []Cast{{Fid: 2, Hash: []byte{1}, Text: "gm"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
}
