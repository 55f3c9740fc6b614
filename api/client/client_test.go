// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/bold-verifier/api"
	"github.com/offchainlabs/bold-verifier/api/server"
	"github.com/offchainlabs/bold-verifier/protocol"
)

const baseURL = "http://bold.test/api/v1"

func hash(s string) common.Hash {
	return common.BytesToHash([]byte(s))
}

func u64(n uint64) *uint64 {
	return &n
}

func mockClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	cfg.URL = baseURL
	c, err := New(cfg, WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)
	return c, transport
}

func snapshot() *api.Snapshot {
	return &api.Snapshot{
		Assertions: []*api.JsonAssertion{
			{Hash: hash("genesis"), CreationBlock: 10, FirstChildBlock: u64(50), Status: "confirmed"},
			{
				Hash:                hash("a"),
				ParentAssertionHash: hash("genesis"),
				ConfirmPeriodBlocks: 150,
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
					{Id: hash("blk-0.a-16.a"), OriginId: hash("origin"), EndHeight: 16, CumulativePathTimer: 70},
				},
			},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := ConfigDefault
	require.NoError(t, cfg.Validate())

	bad := []func(*Config){
		func(c *Config) { c.URL = "ftp://x" },
		func(c *Config) { c.URL = "://" },
		func(c *Config) { c.Timeout = 0 },
		func(c *Config) { c.CacheSize = -1 },
		func(c *Config) { c.MaxRetries = -1 },
	}
	for _, mutate := range bad {
		c := ConfigDefault
		mutate(&c)
		require.Error(t, c.Validate())
	}
}

func TestClient_RoundTrip(t *testing.T) {
	backend, err := server.NewSnapshotBackend(snapshot())
	require.NoError(t, err)
	srv, err := server.New("", backend)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	cfg := ConfigDefault
	cfg.URL = ts.URL + "/api/v1"
	c, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Healthz(ctx))

	assertions, err := c.ListAssertions(ctx, FromBlock(0), Challenged())
	require.NoError(t, err)
	require.Len(t, assertions, 1)
	require.Equal(t, hash("a"), assertions[0].Hash)

	a, err := c.AssertionByHash(ctx, hash("a"))
	require.NoError(t, err)
	require.Equal(t, uint64(130), *a.SecondChildBlock)

	latest, err := c.LatestConfirmedAssertion(ctx)
	require.NoError(t, err)
	require.Equal(t, hash("genesis"), latest.Hash)

	edges, err := c.ListEdges(ctx, hash("a"), Royal(true), PathTimerGeq(75))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, hash("blk-0.a-8.a"), edges[0].Id)

	e, err := c.EdgeById(ctx, hash("a"), hash("blk-0.a-16.a"))
	require.NoError(t, err)
	require.Equal(t, uint64(40), e.TimeUnrivaled)

	stakes, err := c.MiniStakes(ctx, hash("a"))
	require.NoError(t, err)
	require.Len(t, stakes.StakesByLvlAndOrigin[0], 1)

	tracked, err := c.TrackedRoyalEdges(ctx)
	require.NoError(t, err)
	require.Len(t, tracked, 1)

	_, err = c.AssertionByHash(ctx, hash("missing"))
	require.ErrorIs(t, err, ErrTransportFailure)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, http.StatusNotFound, te.StatusCode)
}

func TestClient_QueryParams(t *testing.T) {
	c, transport := mockClient(t, ConfigDefault)
	path := baseURL + "/challenge/" + hash("a").Hex() + "/edges"
	transport.RegisterResponderWithQuery(
		http.MethodGet,
		path,
		map[string]string{
			"limit":                    "10",
			"offset":                   "5",
			"status":                   "confirmed",
			"royal":                    "true",
			"rivaled":                  "false",
			"root_edges":               "true",
			"has_length_one_rival":     "true",
			"only_subchallenged_edges": "true",
			"from_block_number":        "1",
			"to_block_number":          "2",
			"path_timer_geq":           "3",
			"start_height":             "0",
			"end_height":               "16",
			"origin_id":                hash("o").Hex(),
			"mutual_id":                hash("m").Hex(),
			"claim_id":                 hash("c").Hex(),
			"start_commitment":         "0:" + hash("s").Hex(),
			"end_commitment":           "16:" + hash("e").Hex(),
			"challenge_level":          "2",
		},
		httpmock.NewStringResponder(http.StatusOK, "[]"),
	)
	edges, err := c.ListEdges(
		context.Background(),
		hash("a"),
		Limit(10),
		Offset(5),
		Status(protocol.EdgeConfirmed),
		Royal(true),
		Rivaled(false),
		RootEdges(),
		HasLengthOneRival(),
		OnlySubchallengedEdges(),
		FromBlock(1),
		ToBlock(2),
		PathTimerGeq(3),
		StartHeight(0),
		EndHeight(16),
		OriginId(protocol.OriginId(hash("o"))),
		MutualId(protocol.MutualId(hash("m"))),
		ClaimId(protocol.ClaimId(hash("c"))),
		StartCommitment(protocol.Commitment{Height: 0, Hash: hash("s")}),
		EndCommitment(protocol.Commitment{Height: 16, Hash: hash("e")}),
		ChallengeLevel(2),
	)
	require.NoError(t, err)
	require.Empty(t, edges)
	require.Equal(t, 1, transport.GetTotalCallCount())

	transport.RegisterResponderWithQuery(
		http.MethodGet,
		baseURL+"/assertions",
		map[string]string{"inbox_max_count": "7", "challenged": "true", "force_update": "true"},
		httpmock.NewStringResponder(http.StatusOK, "[]"),
	)
	_, err = c.ListAssertions(context.Background(), InboxMaxCount("7"), Challenged(), ForceUpdate())
	require.NoError(t, err)
}

func TestClient_ForceUpdateConfig(t *testing.T) {
	cfg := ConfigDefault
	cfg.ForceUpdate = true
	c, transport := mockClient(t, cfg)
	transport.RegisterResponderWithQuery(
		http.MethodGet,
		baseURL+"/tracked/royal-edges",
		map[string]string{"force_update": "true"},
		httpmock.NewStringResponder(http.StatusOK, "[]"),
	)
	_, err := c.TrackedRoyalEdges(context.Background())
	require.NoError(t, err)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("non-200", func(t *testing.T) {
		c, transport := mockClient(t, ConfigDefault)
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions", httpmock.NewStringResponder(http.StatusInternalServerError, "db down"))
		_, err := c.ListAssertions(ctx)
		require.ErrorIs(t, err, ErrTransportFailure)
		var te *TransportError
		require.ErrorAs(t, err, &te)
		require.Equal(t, http.StatusInternalServerError, te.StatusCode)
		require.Equal(t, "db down", te.Body)
		require.Contains(t, te.URL, "/assertions")
	})
	t.Run("connection error", func(t *testing.T) {
		c, transport := mockClient(t, ConfigDefault)
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions", httpmock.NewErrorResponder(context.DeadlineExceeded))
		_, err := c.ListAssertions(ctx)
		require.ErrorIs(t, err, ErrTransportFailure)
		var te *TransportError
		require.ErrorAs(t, err, &te)
		require.Equal(t, 0, te.StatusCode)
	})
	t.Run("undecodable", func(t *testing.T) {
		c, transport := mockClient(t, ConfigDefault)
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions", httpmock.NewStringResponder(http.StatusOK, "{not json"))
		_, err := c.ListAssertions(ctx)
		require.ErrorIs(t, err, ErrMalformedResponse)
		require.NotErrorIs(t, err, ErrTransportFailure)
	})
	t.Run("invalid record", func(t *testing.T) {
		c, transport := mockClient(t, ConfigDefault)
		transport.RegisterResponder(
			http.MethodGet,
			baseURL+"/challenge/"+hash("a").Hex()+"/edges",
			httpmock.NewStringResponder(http.StatusOK, `[{"status":"pending"}]`),
		)
		_, err := c.ListEdges(ctx, hash("a"))
		require.ErrorIs(t, err, ErrMalformedResponse)
	})
	t.Run("wrong record", func(t *testing.T) {
		c, transport := mockClient(t, ConfigDefault)
		transport.RegisterResponder(
			http.MethodGet,
			baseURL+"/assertions/"+hash("a").Hex(),
			httpmock.NewJsonResponderOrPanic(http.StatusOK, &api.JsonAssertion{Hash: hash("b"), Status: "pending"}),
		)
		_, err := c.AssertionByHash(ctx, hash("a"))
		require.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestClient_Retry(t *testing.T) {
	cfg := ConfigDefault
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	ctx := context.Background()

	t.Run("recovers from server errors", func(t *testing.T) {
		c, transport := mockClient(t, cfg)
		failures := 0
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions", func(*http.Request) (*http.Response, error) {
			if failures < cfg.MaxRetries {
				failures++
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, "[]"), nil
		})
		_, err := c.ListAssertions(ctx)
		require.NoError(t, err)
		require.Equal(t, cfg.MaxRetries, failures)
		require.Equal(t, 3, transport.GetTotalCallCount())
	})
	t.Run("gives up after the budget", func(t *testing.T) {
		c, transport := mockClient(t, cfg)
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions", httpmock.NewStringResponder(http.StatusBadGateway, "down"))
		_, err := c.ListAssertions(ctx)
		require.ErrorIs(t, err, ErrTransportFailure)
		require.Equal(t, 3, transport.GetTotalCallCount())
	})
	t.Run("client errors are not retried", func(t *testing.T) {
		c, transport := mockClient(t, cfg)
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions", httpmock.NewStringResponder(http.StatusBadRequest, "bad"))
		_, err := c.ListAssertions(ctx)
		require.ErrorIs(t, err, ErrTransportFailure)
		require.Equal(t, 1, transport.GetTotalCallCount())
	})
}

func TestClient_Cache(t *testing.T) {
	ctx := context.Background()
	confirmed := &api.JsonAssertion{Hash: hash("genesis"), Status: "confirmed"}
	pending := &api.JsonAssertion{Hash: hash("a"), Status: "pending"}

	t.Run("final records are cached", func(t *testing.T) {
		c, transport := mockClient(t, ConfigDefault)
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions/"+hash("genesis").Hex(), httpmock.NewJsonResponderOrPanic(http.StatusOK, confirmed))
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions/"+hash("a").Hex(), httpmock.NewJsonResponderOrPanic(http.StatusOK, pending))
		for i := 0; i < 3; i++ {
			_, err := c.AssertionByHash(ctx, hash("genesis"))
			require.NoError(t, err)
			_, err = c.AssertionByHash(ctx, hash("a"))
			require.NoError(t, err)
		}
		require.Equal(t, 4, transport.GetTotalCallCount())
	})
	t.Run("disabled", func(t *testing.T) {
		cfg := ConfigDefault
		cfg.CacheSize = 0
		c, transport := mockClient(t, cfg)
		transport.RegisterResponder(http.MethodGet, baseURL+"/assertions/"+hash("genesis").Hex(), httpmock.NewJsonResponderOrPanic(http.StatusOK, confirmed))
		for i := 0; i < 3; i++ {
			_, err := c.AssertionByHash(ctx, hash("genesis"))
			require.NoError(t, err)
		}
		require.Equal(t, 3, transport.GetTotalCallCount())
	})
	t.Run("confirmed edges", func(t *testing.T) {
		c, transport := mockClient(t, ConfigDefault)
		edge := &api.JsonEdge{Id: hash("e"), OriginId: hash("o"), Status: "confirmed"}
		transport.RegisterResponder(
			http.MethodGet,
			baseURL+"/challenge/"+hash("a").Hex()+"/edges/id/"+hash("e").Hex(),
			httpmock.NewJsonResponderOrPanic(http.StatusOK, edge),
		)
		for i := 0; i < 2; i++ {
			got, err := c.EdgeById(ctx, hash("a"), hash("e"))
			require.NoError(t, err)
			require.Equal(t, hash("e"), got.Id)
		}
		require.Equal(t, 1, transport.GetTotalCallCount())
	})
}

func TestClient_SharedRequestCancelled(t *testing.T) {
	ctx := context.Background()
	c, transport := mockClient(t, ConfigDefault)
	started := make(chan struct{})
	var calls atomic.Int32
	transport.RegisterResponder(http.MethodGet, baseURL+"/assertions", func(req *http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-req.Context().Done()
			return nil, req.Context().Err()
		}
		return httpmock.NewStringResponse(http.StatusOK, "[]"), nil
	})

	leaderCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.ListAssertions(leaderCtx)
		leaderErr <- err
	}()
	<-started

	waiterErr := make(chan error, 1)
	go func() {
		_, err := c.ListAssertions(ctx)
		waiterErr <- err
	}()
	// Give the second caller time to join the request in flight.
	time.Sleep(50 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-leaderErr, context.Canceled)
	require.NoError(t, <-waiterErr)
	require.Equal(t, int32(2), calls.Load())
}
