// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package client is an HTTP client for the BOLD query API. Every response is
// decoded and validated before it is handed out, so callers only ever see
// well-formed wire records.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/offchainlabs/bold-verifier/api"
	inprogresscache "github.com/offchainlabs/bold-verifier/containers/in-progress-cache"
	"github.com/offchainlabs/bold-verifier/protocol"
	"github.com/offchainlabs/bold-verifier/util/retry"
)

var (
	clientlog       = log.New("service", "api-client")
	requestsCounter = metrics.NewRegisteredCounter("bold/verifier/client/requests", nil)
	failuresCounter = metrics.NewRegisteredCounter("bold/verifier/client/failures", nil)
)

const (
	maxResponseBytes = 256 << 20
	maxErrorBody     = 512
)

type edgeKey struct {
	assertion common.Hash
	edge      common.Hash
}

// Client is safe for concurrent use. Identical requests in flight at the same
// time are sent once. Assertions and edges that reached a final status are
// cached, since the API can never change them again.
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	inflight   *inprogresscache.Cache[string, []byte]
	assertions *lru.Cache[common.Hash, *api.JsonAssertion]
	edges      *lru.Cache[edgeKey, *api.JsonEdge]
}

type Opt func(*Client)

// WithHTTPClient replaces the default http client, e.g. for tests.
func WithHTTPClient(c *http.Client) Opt {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func New(cfg Config, opts ...Opt) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        cfg,
		base:       base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		inflight:   inprogresscache.New[string, []byte](),
	}
	if cfg.CacheSize > 0 {
		if c.assertions, err = lru.New[common.Hash, *api.JsonAssertion](cfg.CacheSize); err != nil {
			return nil, err
		}
		if c.edges, err = lru.New[edgeKey, *api.JsonEdge](cfg.CacheSize); err != nil {
			return nil, err
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, opts []QueryOption) string {
	params := url.Values{}
	for _, o := range opts {
		o(params)
	}
	if c.cfg.ForceUpdate {
		params.Set("force_update", "true")
	}
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, opts ...QueryOption) ([]byte, error) {
	target := c.endpoint(path, opts)
	body, err := c.fetch(ctx, target)
	// A shared request fails with the context of the caller that started it.
	// Callers that are still live ask again.
	if err != nil && ctx.Err() == nil && interrupted(err) {
		clientlog.Debug("Shared API request was cancelled, retrying", "url", target)
		body, err = c.fetch(ctx, target)
	}
	return body, err
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	return c.inflight.Compute(target, func() ([]byte, error) {
		return retry.Times(ctx, retry.Config{
			MaxRetries: c.cfg.MaxRetries,
			Delay:      c.cfg.RetryDelay,
			Retryable:  isRetryable,
		}, func() ([]byte, error) {
			return c.do(ctx, target)
		})
	})
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	requestsCounter.Inc(1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		failuresCounter.Inc(1)
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		failuresCounter.Inc(1)
		return nil, &TransportError{StatusCode: resp.StatusCode, URL: target, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		failuresCounter.Inc(1)
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		clientlog.Debug("API request failed", "url", target, "status", resp.StatusCode)
		return nil, &TransportError{StatusCode: resp.StatusCode, URL: target, Body: msg}
	}
	clientlog.Trace("API request", "url", target, "bytes", len(body))
	return body, nil
}

func decode[T any](body []byte, out *T) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}

func (c *Client) Healthz(ctx context.Context) error {
	_, err := c.get(ctx, "/healthz")
	return err
}

// ListAssertions fetches assertions, filtered by the given options.
func (c *Client) ListAssertions(ctx context.Context, opts ...QueryOption) ([]*api.JsonAssertion, error) {
	body, err := c.get(ctx, "/assertions", opts...)
	if err != nil {
		return nil, err
	}
	var out []*api.JsonAssertion
	if err := decode(body, &out); err != nil {
		return nil, err
	}
	for _, a := range out {
		if a == nil {
			return nil, malformed(fmt.Errorf("null assertion in list"))
		}
		if err := a.Validate(); err != nil {
			return nil, malformed(err)
		}
		c.rememberAssertion(a)
	}
	return out, nil
}

// AssertionByHash fetches one assertion. Records returned from the cache must
// not be modified.
func (c *Client) AssertionByHash(ctx context.Context, hash common.Hash) (*api.JsonAssertion, error) {
	if c.assertions != nil && !c.cfg.ForceUpdate {
		if a, ok := c.assertions.Get(hash); ok {
			return a, nil
		}
	}
	a, err := c.assertion(ctx, hash.Hex())
	if err != nil {
		return nil, err
	}
	if a.Hash != hash {
		return nil, malformed(fmt.Errorf("asked for assertion %#x, got %#x", hash, a.Hash))
	}
	c.rememberAssertion(a)
	return a, nil
}

func (c *Client) LatestConfirmedAssertion(ctx context.Context) (*api.JsonAssertion, error) {
	a, err := c.assertion(ctx, protocol.LatestConfirmedIdentifier)
	if err != nil {
		return nil, err
	}
	c.rememberAssertion(a)
	return a, nil
}

func (c *Client) assertion(ctx context.Context, identifier string) (*api.JsonAssertion, error) {
	body, err := c.get(ctx, "/assertions/"+identifier)
	if err != nil {
		return nil, err
	}
	a := &api.JsonAssertion{}
	if err := decode(body, a); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, malformed(err)
	}
	return a, nil
}

func (c *Client) rememberAssertion(a *api.JsonAssertion) {
	if c.assertions == nil {
		return
	}
	status, err := protocol.ParseAssertionStatus(a.Status)
	if err != nil {
		return
	}
	if status == protocol.AssertionConfirmed || status == protocol.AssertionRejected {
		c.assertions.Add(a.Hash, a)
	}
}

// ListEdges fetches the edges of the challenge on an assertion.
func (c *Client) ListEdges(ctx context.Context, assertionHash common.Hash, opts ...QueryOption) ([]*api.JsonEdge, error) {
	body, err := c.get(ctx, fmt.Sprintf("/challenge/%s/edges", assertionHash.Hex()), opts...)
	if err != nil {
		return nil, err
	}
	var out []*api.JsonEdge
	if err := decode(body, &out); err != nil {
		return nil, err
	}
	for _, e := range out {
		if e == nil {
			return nil, malformed(fmt.Errorf("null edge in list"))
		}
		if err := e.Validate(); err != nil {
			return nil, malformed(err)
		}
		c.rememberEdge(assertionHash, e)
	}
	return out, nil
}

// EdgeById fetches one edge of the challenge on an assertion. Records
// returned from the cache must not be modified.
func (c *Client) EdgeById(ctx context.Context, assertionHash, edgeId common.Hash) (*api.JsonEdge, error) {
	key := edgeKey{assertion: assertionHash, edge: edgeId}
	if c.edges != nil && !c.cfg.ForceUpdate {
		if e, ok := c.edges.Get(key); ok {
			return e, nil
		}
	}
	body, err := c.get(ctx, fmt.Sprintf("/challenge/%s/edges/id/%s", assertionHash.Hex(), edgeId.Hex()))
	if err != nil {
		return nil, err
	}
	e := &api.JsonEdge{}
	if err := decode(body, e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, malformed(err)
	}
	if e.Id != edgeId {
		return nil, malformed(fmt.Errorf("asked for edge %#x, got %#x", edgeId, e.Id))
	}
	c.rememberEdge(assertionHash, e)
	return e, nil
}

func (c *Client) rememberEdge(assertionHash common.Hash, e *api.JsonEdge) {
	if c.edges == nil {
		return
	}
	if status, err := protocol.ParseEdgeStatus(e.Status); err == nil && status == protocol.EdgeConfirmed {
		c.edges.Add(edgeKey{assertion: assertionHash, edge: e.Id}, e)
	}
}

func (c *Client) MiniStakes(ctx context.Context, assertionHash common.Hash, opts ...QueryOption) (*api.JsonMiniStakes, error) {
	body, err := c.get(ctx, fmt.Sprintf("/challenge/%s/ministakes", assertionHash.Hex()), opts...)
	if err != nil {
		return nil, err
	}
	out := &api.JsonMiniStakes{}
	if err := decode(body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// TrackedRoyalEdges fetches the royal edges a running validator tracks in
// memory, grouped by challenged assertion.
func (c *Client) TrackedRoyalEdges(ctx context.Context) ([]*api.JsonEdgesByChallengedAssertion, error) {
	body, err := c.get(ctx, "/tracked/royal-edges")
	if err != nil {
		return nil, err
	}
	var out []*api.JsonEdgesByChallengedAssertion
	if err := decode(body, &out); err != nil {
		return nil, err
	}
	for _, t := range out {
		if t == nil {
			return nil, malformed(fmt.Errorf("null tracked challenge in list"))
		}
		for _, e := range t.RoyalEdges {
			if e == nil {
				return nil, malformed(fmt.Errorf("null tracked edge for assertion %#x", t.AssertionHash))
			}
			if err := e.Validate(); err != nil {
				return nil, malformed(err)
			}
		}
	}
	return out, nil
}
