// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengemanager

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/offchainlabs/bold-verifier/api"
	"github.com/offchainlabs/bold-verifier/api/client"
	"github.com/offchainlabs/bold-verifier/assertions"
	challengetree "github.com/offchainlabs/bold-verifier/challenge-manager/challenge-tree"
	"github.com/offchainlabs/bold-verifier/protocol"
	"github.com/offchainlabs/bold-verifier/report"
)

var srvlog = log.New("service", "verifier")

// Gateway is the part of the BOLD API the verifier reads from.
type Gateway interface {
	AssertionByHash(ctx context.Context, hash common.Hash) (*api.JsonAssertion, error)
	LatestConfirmedAssertion(ctx context.Context) (*api.JsonAssertion, error)
	ListAssertions(ctx context.Context, opts ...client.QueryOption) ([]*api.JsonAssertion, error)
	ListEdges(ctx context.Context, assertionHash common.Hash, opts ...client.QueryOption) ([]*api.JsonEdge, error)
	TrackedRoyalEdges(ctx context.Context) ([]*api.JsonEdgesByChallengedAssertion, error)
}

// Verifier fetches challenge data from a gateway and checks it. It holds no
// state between calls.
type Verifier struct {
	gateway Gateway
}

func NewVerifier(gateway Gateway) *Verifier {
	return &Verifier{gateway: gateway}
}

// Inspection is the outcome of checking one challenge, together with the
// records it was computed from.
type Inspection struct {
	Report  *report.ChallengeReport
	Chain   *assertions.Chain
	Records *api.Snapshot
}

// InspectChallenge checks every edge of the challenge on an assertion.
func (v *Verifier) InspectChallenge(ctx context.Context, assertionHash protocol.AssertionHash) (*Inspection, error) {
	challenged, err := v.gateway.AssertionByHash(ctx, assertionHash.Hash)
	if err != nil {
		return nil, fmt.Errorf("could not fetch challenged assertion %#x: %w", assertionHash.Hash, err)
	}
	var (
		since []*api.JsonAssertion
		edges []*api.JsonEdge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		since, err = v.gateway.ListAssertions(gctx, client.FromBlock(challenged.CreationBlock))
		if err != nil {
			return fmt.Errorf("could not fetch assertions since block %d: %w", challenged.CreationBlock, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		edges, err = v.gateway.ListEdges(gctx, assertionHash.Hash)
		if err != nil {
			return fmt.Errorf("could not fetch edges of challenge %#x: %w", assertionHash.Hash, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	records := &api.Snapshot{
		AssertionHash: assertionHash.Hash,
		Assertions:    mergeAssertions(challenged, since),
		Edges:         edges,
	}
	records.Block = latestBlock(records)

	chain, err := api.ToChain(records.Assertions)
	if err != nil {
		return nil, err
	}
	set, err := api.ToEdgeSet(records.Edges)
	if err != nil {
		return nil, err
	}
	r, err := CheckChallenge(&Snapshot{
		AssertionHash: assertionHash,
		Chain:         chain,
		Edges:         set,
		Complete:      true,
		Scope:         OriginScope,
		Block:         records.Block,
	})
	if err != nil {
		return nil, err
	}
	logReport(r)
	return &Inspection{Report: r, Chain: chain, Records: records}, nil
}

// InspectTrackedRoyalEdges checks the royal edges tracked in memory by the
// validator behind the gateway, one inspection per challenged assertion.
func (v *Verifier) InspectTrackedRoyalEdges(ctx context.Context) ([]*Inspection, error) {
	tracked, err := v.gateway.TrackedRoyalEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch tracked royal edges: %w", err)
	}
	out := make([]*Inspection, len(tracked))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tracked {
		i, t := i, t
		g.Go(func() error {
			insp, err := v.inspectTracked(gctx, t)
			if err != nil {
				return err
			}
			out[i] = insp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Verifier) inspectTracked(ctx context.Context, t *api.JsonEdgesByChallengedAssertion) (*Inspection, error) {
	challenged, err := v.gateway.AssertionByHash(ctx, t.AssertionHash)
	if err != nil {
		return nil, fmt.Errorf("could not fetch challenged assertion %#x: %w", t.AssertionHash, err)
	}
	since, err := v.gateway.ListAssertions(ctx, client.FromBlock(challenged.CreationBlock))
	if err != nil {
		return nil, fmt.Errorf("could not fetch assertions since block %d: %w", challenged.CreationBlock, err)
	}
	records := &api.Snapshot{
		AssertionHash: t.AssertionHash,
		Assertions:    mergeAssertions(challenged, since),
		Tracked:       []*api.JsonEdgesByChallengedAssertion{t},
	}
	records.Block = latestBlock(records)

	chain, err := api.ToChain(records.Assertions)
	if err != nil {
		return nil, err
	}
	edges := make([]*challengetree.Edge, 0, len(t.RoyalEdges))
	for _, e := range t.RoyalEdges {
		converted, err := e.ToEdge(t.AssertionHash)
		if err != nil {
			return nil, err
		}
		edges = append(edges, converted)
	}
	set, err := challengetree.NewEdgeSet(edges)
	if err != nil {
		return nil, err
	}
	r, err := CheckChallenge(&Snapshot{
		AssertionHash: protocol.AssertionHash{Hash: t.AssertionHash},
		Chain:         chain,
		Edges:         set,
		Scope:         ChallengeScope,
		Block:         records.Block,
	})
	if err != nil {
		return nil, err
	}
	logReport(r)
	return &Inspection{Report: r, Chain: chain, Records: records}, nil
}

// ChainSummary describes the assertion chain from the latest confirmed
// assertion onwards.
type ChainSummary struct {
	LatestConfirmed   *assertions.Assertion
	Chain             *assertions.Chain
	Challenged        []*assertions.Assertion
	ChallengeManagers []common.Address
	WasmModuleRoots   []common.Hash
}

func (v *Verifier) ChainSummary(ctx context.Context) (*ChainSummary, error) {
	latest, err := v.gateway.LatestConfirmedAssertion(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch latest confirmed assertion: %w", err)
	}
	since, err := v.gateway.ListAssertions(ctx, client.FromBlock(latest.CreationBlock))
	if err != nil {
		return nil, fmt.Errorf("could not fetch assertions since block %d: %w", latest.CreationBlock, err)
	}
	chain, err := api.ToChain(mergeAssertions(latest, since))
	if err != nil {
		return nil, err
	}
	latestConfirmed, err := chain.Get(protocol.AssertionHash{Hash: latest.Hash})
	if err != nil {
		return nil, err
	}
	summary := &ChainSummary{
		LatestConfirmed:   latestConfirmed,
		Chain:             chain,
		Challenged:        chain.ChallengedSince(latest.CreationBlock),
		ChallengeManagers: chain.ChallengeManagers(latest.CreationBlock, 0),
		WasmModuleRoots:   chain.WasmModuleRoots(latest.CreationBlock, 0),
	}
	srvlog.Info(
		"Fetched assertion chain",
		"latestConfirmed", latest.Hash,
		"assertions", chain.Len(),
		"challenged", len(summary.Challenged),
	)
	return summary, nil
}

// mergeAssertions adds the anchor assertion to a list unless it is already
// part of it.
func mergeAssertions(anchor *api.JsonAssertion, list []*api.JsonAssertion) []*api.JsonAssertion {
	out := make([]*api.JsonAssertion, 0, len(list)+1)
	out = append(out, anchor)
	for _, a := range list {
		if a.Hash != anchor.Hash {
			out = append(out, a)
		}
	}
	return out
}

// latestBlock is the highest creation block among the records.
func latestBlock(s *api.Snapshot) uint64 {
	var block uint64
	for _, a := range s.Assertions {
		block = max(block, a.CreationBlock)
	}
	for _, e := range s.Edges {
		block = max(block, e.CreatedAtBlock)
	}
	for _, t := range s.Tracked {
		for _, e := range t.RoyalEdges {
			block = max(block, e.CreatedAtBlock)
		}
	}
	return block
}

func logReport(r *report.ChallengeReport) {
	r.RecordMetrics()
	counts := r.Counts()
	ctx := []any{
		"assertion", r.AssertionHash,
		"edges", r.EdgesChecked,
		"origins", len(r.Origins),
	}
	for k := report.OrphanAncestor; k <= report.RivalryInconsistent; k++ {
		if counts[k] > 0 {
			ctx = append(ctx, k.String(), counts[k])
		}
	}
	if r.OK() {
		srvlog.Info("Challenge verified", ctx...)
		return
	}
	srvlog.Warn("Challenge has violations", ctx...)
}
