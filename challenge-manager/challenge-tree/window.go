// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengetree

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/offchainlabs/bold-verifier/protocol"
)

// AssertionWindows reads the unrivaled window of an assertion, which is the
// base path timer of every level zero edge in its challenge.
type AssertionWindows interface {
	UnrivaledWindow(hash protocol.AssertionHash) (uint64, error)
}

type windowResult struct {
	window uint64
	err    error
}

// WindowResolver computes the window each origin's path timers start from.
// For the block challenge it is the unrivaled window of the challenged
// assertion. For a subchallenge it is the expected path timer of the edge
// claimed by the subchallenge's root edge, resolved one level down.
//
// A resolver memoizes results and is not safe for concurrent use; create one
// per verification pass.
type WindowResolver struct {
	set        *EdgeSet
	windows    AssertionWindows
	challenged protocol.AssertionHash
	memo       map[protocol.OriginId]windowResult
	partitions map[protocol.OriginId]*OriginPartition
}

func NewWindowResolver(set *EdgeSet, windows AssertionWindows, challenged protocol.AssertionHash) *WindowResolver {
	return &WindowResolver{
		set:        set,
		windows:    windows,
		challenged: challenged,
		memo:       make(map[protocol.OriginId]windowResult),
		partitions: make(map[protocol.OriginId]*OriginPartition),
	}
}

func (r *WindowResolver) Window(origin protocol.OriginId) (uint64, error) {
	if res, ok := r.memo[origin]; ok {
		return res.window, res.err
	}
	window, err := r.resolve(origin)
	r.memo[origin] = windowResult{window: window, err: err}
	return window, err
}

func (r *WindowResolver) partition(origin protocol.OriginId) (*OriginPartition, bool) {
	if p, ok := r.partitions[origin]; ok {
		return p, true
	}
	p, ok := r.set.Partition(origin)
	if ok {
		r.partitions[origin] = p
	}
	return p, ok
}

func (r *WindowResolver) resolve(origin protocol.OriginId) (uint64, error) {
	p, ok := r.partition(origin)
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "no royal edges for origin %#x", common.Hash(origin))
	}
	if p.Level.IsBlockChallenge() {
		return r.windows.UnrivaledWindow(r.challenged)
	}
	root, err := claimingRoot(p)
	if err != nil {
		return 0, err
	}
	claimedId := root.ClaimedEdgeId().Unwrap()
	claimed, ok := r.set.Get(claimedId)
	if !ok || !claimed.IsRoyal {
		return 0, errors.Wrapf(
			ErrNotFound,
			"royal edge %#x claimed by subchallenge root %#x",
			claimedId.Hash,
			root.Id.Hash,
		)
	}
	if claimed.ChallengeLevel+1 != p.Level {
		return 0, errors.Wrapf(
			ErrIncompleteData,
			"edge %#x at level %d claims edge %#x at level %d",
			root.Id.Hash,
			p.Level,
			claimedId.Hash,
			claimed.ChallengeLevel,
		)
	}
	parent, ok := r.partition(claimed.OriginId)
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "no royal edges for origin %#x", common.Hash(claimed.OriginId))
	}
	if orphans := parent.VerifyAncestors(); len(orphans) > 0 {
		return 0, orphans[0]
	}
	window, err := r.Window(claimed.OriginId)
	if err != nil {
		return 0, err
	}
	timer, err := ExpectedPathTimer(claimed, parent, window)
	if err != nil {
		return 0, err
	}
	return uint64(timer), nil
}

// claimingRoot finds the single royal root edge of a subchallenge origin that
// carries a claim id.
func claimingRoot(p *OriginPartition) (*Edge, error) {
	var found *Edge
	for _, e := range p.Roots() {
		if !e.HasClaim() {
			continue
		}
		if found != nil && found.ClaimId.Unwrap() != e.ClaimId.Unwrap() {
			return nil, errors.Wrapf(
				ErrIncompleteData,
				"origin %#x has more than one royal root edge with a claim",
				common.Hash(p.OriginId),
			)
		}
		if found == nil {
			found = e
		}
	}
	if found == nil {
		return nil, errors.Wrapf(
			ErrIncompleteData,
			"origin %#x has no royal root edge with a claim",
			common.Hash(p.OriginId),
		)
	}
	return found, nil
}
