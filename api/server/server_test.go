// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/bold-verifier/api"
)

func hash(s string) common.Hash {
	return common.BytesToHash([]byte(s))
}

func u64(n uint64) *uint64 {
	return &n
}

func testSnapshot() *api.Snapshot {
	return &api.Snapshot{
		AssertionHash: hash("a"),
		Block:         200,
		Assertions: []*api.JsonAssertion{
			{
				Hash:                hash("genesis"),
				ConfirmPeriodBlocks: 150,
				InboxMaxCount:       "1",
				CreationBlock:       10,
				FirstChildBlock:     u64(50),
				Status:              "confirmed",
			},
			{
				Hash:                hash("a"),
				ParentAssertionHash: hash("genesis"),
				ConfirmPeriodBlocks: 150,
				InboxMaxCount:       "2",
				CreationBlock:       50,
				FirstChildBlock:     u64(100),
				SecondChildBlock:    u64(130),
				Status:              "pending",
			},
		},
		Edges: []*api.JsonEdge{
			{
				Id:                  hash("blk-0.a-16.a"),
				OriginId:            hash("origin"),
				MutualId:            hash("mutual"),
				ClaimId:             hash("b"),
				AssertionHash:       hash("a"),
				EndHeight:           16,
				CreatedAtBlock:      131,
				MiniStaker:          common.HexToAddress("0x01"),
				TimeUnrivaled:       40,
				Status:              "pending",
				IsRoyal:             true,
				CumulativePathTimer: 70,
			},
			{
				Id:                  hash("blk-0.a-8.a"),
				OriginId:            hash("origin"),
				MutualId:            hash("mutual-8"),
				AssertionHash:       hash("a"),
				EndHeight:           8,
				CreatedAtBlock:      140,
				TimeUnrivaled:       10,
				Status:              "confirmed",
				IsRoyal:             true,
				Ancestors:           api.Hashes{hash("blk-0.a-16.a")},
				CumulativePathTimer: 80,
			},
		},
		Tracked: []*api.JsonEdgesByChallengedAssertion{
			{
				AssertionHash: hash("a"),
				RoyalEdges: []*api.JsonTrackedRoyalEdge{
					{Id: hash("blk-0.a-16.a"), OriginId: hash("origin"), EndHeight: 16, TimeUnrivaled: 40, CumulativePathTimer: 70},
				},
			},
		},
	}
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	backend, err := NewSnapshotBackend(testSnapshot())
	require.NoError(t, err)
	s, err := New("", backend)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(ts.URL + apiVersion + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		require.Equal(t, contentType, resp.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	ts := setupServer(t)
	require.Equal(t, http.StatusOK, get(t, ts, "/healthz", nil))
}

func TestListAssertions(t *testing.T) {
	ts := setupServer(t)

	var all []*api.JsonAssertion
	require.Equal(t, http.StatusOK, get(t, ts, "/assertions", &all))
	require.Len(t, all, 2)

	var challenged []*api.JsonAssertion
	require.Equal(t, http.StatusOK, get(t, ts, "/assertions?challenged=true", &challenged))
	require.Len(t, challenged, 1)
	require.Equal(t, hash("a"), challenged[0].Hash)

	var since []*api.JsonAssertion
	require.Equal(t, http.StatusOK, get(t, ts, "/assertions?from_block_number=20&force_update=true", &since))
	require.Len(t, since, 1)
}

func TestAssertionByIdentifier(t *testing.T) {
	ts := setupServer(t)

	var a api.JsonAssertion
	require.Equal(t, http.StatusOK, get(t, ts, "/assertions/"+hash("a").Hex(), &a))
	require.Equal(t, hash("genesis"), a.ParentAssertionHash)
	require.Equal(t, uint64(130), *a.SecondChildBlock)

	var latest api.JsonAssertion
	require.Equal(t, http.StatusOK, get(t, ts, "/assertions/latest-confirmed", &latest))
	require.Equal(t, hash("genesis"), latest.Hash)

	require.Equal(t, http.StatusNotFound, get(t, ts, "/assertions/"+hash("nope").Hex(), nil))
	require.Equal(t, http.StatusBadRequest, get(t, ts, "/assertions/not-hex", nil))
}

func TestAllChallengeEdges(t *testing.T) {
	ts := setupServer(t)
	base := fmt.Sprintf("/challenge/%s/edges", hash("a").Hex())

	tests := []struct {
		query string
		want  []common.Hash
	}{
		{"", []common.Hash{hash("blk-0.a-16.a"), hash("blk-0.a-8.a")}},
		{"?root_edges=true", []common.Hash{hash("blk-0.a-16.a")}},
		{"?status=confirmed", []common.Hash{hash("blk-0.a-8.a")}},
		{"?royal=true&path_timer_geq=75", []common.Hash{hash("blk-0.a-8.a")}},
		{"?royal=false", nil},
		{"?end_commitment=16:" + common.Hash{}.Hex(), []common.Hash{hash("blk-0.a-16.a")}},
		{"?mutual_id=" + hash("mutual-8").Hex(), []common.Hash{hash("blk-0.a-8.a")}},
		{"?limit=1&offset=1", []common.Hash{hash("blk-0.a-8.a")}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var edges []*api.JsonEdge
			require.Equal(t, http.StatusOK, get(t, ts, base+tt.query, &edges))
			var got []common.Hash
			for _, e := range edges {
				got = append(got, e.Id)
			}
			require.Equal(t, tt.want, got)
		})
	}

	t.Run("bad params", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, get(t, ts, base+"?status=sideways", nil))
		require.Equal(t, http.StatusBadRequest, get(t, ts, base+"?origin_id=zz", nil))
		require.Equal(t, http.StatusBadRequest, get(t, ts, base+"?start_commitment=16", nil))
	})
}

func TestEdgeByIdentifier(t *testing.T) {
	ts := setupServer(t)
	path := fmt.Sprintf("/challenge/%s/edges/id/", hash("a").Hex())

	var e api.JsonEdge
	require.Equal(t, http.StatusOK, get(t, ts, path+hash("blk-0.a-8.a").Hex(), &e))
	require.Equal(t, api.Hashes{hash("blk-0.a-16.a")}, e.Ancestors)
	require.Equal(t, http.StatusNotFound, get(t, ts, path+hash("missing").Hex(), nil))
}

func TestMiniStakesAndTracked(t *testing.T) {
	ts := setupServer(t)

	var stakes api.JsonMiniStakes
	require.Equal(t, http.StatusOK, get(t, ts, fmt.Sprintf("/challenge/%s/ministakes", hash("a").Hex()), &stakes))
	require.Len(t, stakes.StakesByLvlAndOrigin[0], 1)
	require.Equal(t, uint64(1), stakes.StakesByLvlAndOrigin[0][0].NumberOfMiniStakes)

	var tracked []*api.JsonEdgesByChallengedAssertion
	require.Equal(t, http.StatusOK, get(t, ts, "/tracked/royal-edges", &tracked))
	require.Len(t, tracked, 1)
	require.Len(t, tracked[0].RoyalEdges, 1)
	require.Equal(t, uint64(70), tracked[0].RoyalEdges[0].CumulativePathTimer)
}

func TestRegisterTwice(t *testing.T) {
	backend, err := NewSnapshotBackend(&api.Snapshot{})
	require.NoError(t, err)
	s, err := New("", backend)
	require.NoError(t, err)
	require.Error(t, s.registerMethods())
}
