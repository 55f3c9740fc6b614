// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/bold-verifier/report"
)

func hash(s string) common.Hash {
	return common.BytesToHash([]byte(s))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func testReport(block uint64) *report.ChallengeReport {
	return &report.ChallengeReport{
		AssertionHash: hash("A"),
		SnapshotBlock: block,
		EdgesChecked:  3,
		Origins: []*report.OriginReport{
			{
				OriginId:       hash("origin-0"),
				Window:         30,
				WindowResolved: true,
				EdgesChecked:   2,
				Findings: []report.Finding{
					{Kind: report.TimerMismatch, OriginId: hash("origin-0"), EdgeId: hash("blk-0.a-16.a"), Expected: 90, Actual: 95},
					{Kind: report.UnconfirmedClaim, OriginId: hash("origin-0"), EdgeId: hash("blk-0.a-32.a"), ClaimId: hash("B")},
				},
			},
			{
				OriginId:       hash("origin-1"),
				ChallengeLevel: 1,
				EdgesChecked:   1,
				Findings: []report.Finding{
					{Kind: report.OrphanAncestor, OriginId: hash("origin-1"), EdgeId: hash("big-0.a-4.a"), Detail: "0x6d697373"},
				},
			},
		},
		Findings: []report.Finding{
			{Kind: report.NotFound, ClaimId: hash("Z"), Detail: "claim target is not part of the snapshot"},
		},
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	want := testReport(200)
	runId, err := s.SaveReport(ctx, want)
	require.NoError(t, err)

	got, err := s.Report(ctx, runId)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("report changed on the way through the store (-want +got):\n%s", diff)
	}

	runs, err := s.Runs(ctx, hash("A"), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, runId, runs[0].Id)
	require.Equal(t, uint64(200), runs[0].SnapshotBlock)
	require.Equal(t, 2, runs[0].Violations)
	require.True(t, runs[0].CreatedAt.Equal(s.now()))
}

func TestStore_LatestReport(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.LatestReport(ctx, hash("A"))
	require.ErrorIs(t, err, ErrNoRuns)

	for _, block := range []uint64{100, 200, 300} {
		_, err := s.SaveReport(ctx, testReport(block))
		require.NoError(t, err)
	}
	other := testReport(400)
	other.AssertionHash = hash("other")
	_, err = s.SaveReport(ctx, other)
	require.NoError(t, err)

	latest, err := s.LatestReport(ctx, hash("A"))
	require.NoError(t, err)
	require.Equal(t, uint64(300), latest.SnapshotBlock)

	runs, err := s.Runs(ctx, hash("A"), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, uint64(300), runs[0].SnapshotBlock)
	require.Equal(t, uint64(200), runs[1].SnapshotBlock)
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	var ids []int64
	for _, block := range []uint64{100, 200, 300} {
		id, err := s.SaveReport(ctx, testReport(block))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	removed, err := s.Prune(ctx, hash("A"), 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	runs, err := s.Runs(ctx, hash("A"), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, ids[2], runs[0].Id)

	_, err = s.Report(ctx, ids[0])
	require.ErrorIs(t, err, ErrNoRuns)

	var orphaned int
	require.NoError(t, s.sqlDB.Get(&orphaned, "SELECT COUNT(*) FROM Findings WHERE RunId = ?", ids[0]))
	require.Zero(t, orphaned)
}

func TestStore_FullRangeValues(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	want := testReport(math.MaxUint64)
	want.Origins[0].Window = math.MaxUint64
	want.Origins[0].Findings[0].Expected = math.MaxUint64 - 1
	want.Origins[0].Findings[0].Actual = math.MaxUint64
	runId, err := s.SaveReport(ctx, want)
	require.NoError(t, err)

	got, err := s.Report(ctx, runId)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("large values changed on the way through the store (-want +got):\n%s", diff)
	}
	runs, err := s.Runs(ctx, hash("A"), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, uint64(math.MaxUint64), runs[0].SnapshotBlock)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveReport(ctx, testReport(100))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	latest, err := s.LatestReport(ctx, hash("A"))
	require.NoError(t, err)
	require.Equal(t, uint64(100), latest.SnapshotBlock)
}
