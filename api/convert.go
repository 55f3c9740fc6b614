// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/offchainlabs/bold-verifier/assertions"
	challengetree "github.com/offchainlabs/bold-verifier/challenge-manager/challenge-tree"
	"github.com/offchainlabs/bold-verifier/containers/option"
	"github.com/offchainlabs/bold-verifier/protocol"
)

// ErrMalformedRecord is returned for records that cannot be turned into
// model types. Malformed records are rejected here so that the checks never
// have to deal with missing or contradictory fields.
var ErrMalformedRecord = errors.New("malformed record")

func (a *JsonAssertion) Validate() error {
	if a.Hash == (common.Hash{}) {
		return errors.Wrap(ErrMalformedRecord, "assertion has an empty hash")
	}
	if a.ParentAssertionHash == a.Hash {
		return errors.Wrapf(ErrMalformedRecord, "assertion %#x is its own parent", a.Hash)
	}
	if _, err := protocol.ParseAssertionStatus(a.Status); err != nil {
		return errors.Wrapf(ErrMalformedRecord, "assertion %#x: %v", a.Hash, err)
	}
	return nil
}

// ToAssertion converts a validated wire assertion. A zero child block means
// the child does not exist yet.
func (a *JsonAssertion) ToAssertion() (*assertions.Assertion, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	status, _ := protocol.ParseAssertionStatus(a.Status)
	out := &assertions.Assertion{
		Hash:                protocol.AssertionHash{Hash: a.Hash},
		ParentHash:          option.None[protocol.AssertionHash](),
		CreationBlock:       a.CreationBlock,
		FirstChildBlock:     nonZero(a.FirstChildBlock),
		SecondChildBlock:    nonZero(a.SecondChildBlock),
		InboxMaxCount:       a.InboxMaxCount,
		WasmModuleRoot:      a.WasmModuleRoot,
		ChallengeManager:    a.ChallengeManager,
		ConfirmPeriodBlocks: a.ConfirmPeriodBlocks,
		RequiredStake:       a.RequiredStake,
		TransactionHash:     a.TransactionHash,
		AfterInboxBatchAcc:  a.AfterInboxBatchAcc,
		IsFirstChild:        a.IsFirstChild,
		Status:              status,
	}
	if a.ParentAssertionHash != (common.Hash{}) {
		out.ParentHash = option.Some(protocol.AssertionHash{Hash: a.ParentAssertionHash})
	}
	return out, nil
}

func nonZero(p *uint64) option.Option[uint64] {
	if p == nil || *p == 0 {
		return option.None[uint64]()
	}
	return option.Some(*p)
}

func validateAncestors(id common.Hash, ancestors []common.Hash) error {
	seen := make(map[common.Hash]bool, len(ancestors))
	for _, a := range ancestors {
		if a == id {
			return errors.Wrapf(ErrMalformedRecord, "edge %#x lists itself as an ancestor", id)
		}
		if seen[a] {
			return errors.Wrapf(ErrMalformedRecord, "edge %#x lists ancestor %#x twice", id, a)
		}
		seen[a] = true
	}
	return nil
}

func (e *JsonEdge) Validate() error {
	if e.Id == (common.Hash{}) {
		return errors.Wrap(ErrMalformedRecord, "edge has an empty id")
	}
	if e.OriginId == (common.Hash{}) {
		return errors.Wrapf(ErrMalformedRecord, "edge %#x has an empty origin id", e.Id)
	}
	if e.EndHeight < e.StartHeight {
		return errors.Wrapf(ErrMalformedRecord, "edge %#x ends at %d before its start %d", e.Id, e.EndHeight, e.StartHeight)
	}
	if _, err := protocol.ParseEdgeStatus(e.Status); err != nil {
		return errors.Wrapf(ErrMalformedRecord, "edge %#x: %v", e.Id, err)
	}
	return validateAncestors(e.Id, e.Ancestors)
}

func (e *JsonEdge) ToEdge() (*challengetree.Edge, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	status, _ := protocol.ParseEdgeStatus(e.Status)
	out := &challengetree.Edge{
		Id:                  protocol.EdgeId{Hash: e.Id},
		OriginId:            protocol.OriginId(e.OriginId),
		MutualId:            protocol.MutualId(e.MutualId),
		ClaimId:             claimId(e.ClaimId),
		AssertionHash:       protocol.AssertionHash{Hash: e.AssertionHash},
		ChallengeLevel:      protocol.ChallengeLevel(e.ChallengeLevel),
		StartCommitment:     protocol.Commitment{Height: protocol.Height(e.StartHeight), Hash: e.StartHistoryRoot},
		EndCommitment:       protocol.Commitment{Height: protocol.Height(e.EndHeight), Hash: e.EndHistoryRoot},
		Ancestors:           edgeIds(e.Ancestors),
		IsRoyal:             e.IsRoyal,
		HasRival:            e.HasRival,
		HasLengthOneRival:   e.HasLengthOneRival,
		TimeUnrivaled:       e.TimeUnrivaled,
		CumulativePathTimer: challengetree.PathTimer(e.CumulativePathTimer),
		Status:              status,
		CreatedAtBlock:      e.CreatedAtBlock,
		MiniStaker:          e.MiniStaker,
		LowerChildId:        childId(e.LowerChildId),
		UpperChildId:        childId(e.UpperChildId),
	}
	return out, nil
}

func (e *JsonTrackedRoyalEdge) Validate() error {
	if e.Id == (common.Hash{}) {
		return errors.Wrap(ErrMalformedRecord, "tracked edge has an empty id")
	}
	if e.OriginId == (common.Hash{}) {
		return errors.Wrapf(ErrMalformedRecord, "tracked edge %#x has an empty origin id", e.Id)
	}
	if e.EndHeight < e.StartHeight {
		return errors.Wrapf(ErrMalformedRecord, "tracked edge %#x ends at %d before its start %d", e.Id, e.EndHeight, e.StartHeight)
	}
	return validateAncestors(e.Id, e.Ancestors)
}

// ToEdge converts a tracked royal edge of the challenge on the given
// assertion. Tracked edges are royal by definition and carry no status, so
// they are treated as pending.
func (e *JsonTrackedRoyalEdge) ToEdge(assertionHash common.Hash) (*challengetree.Edge, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &challengetree.Edge{
		Id:                  protocol.EdgeId{Hash: e.Id},
		OriginId:            protocol.OriginId(e.OriginId),
		MutualId:            protocol.MutualId(e.MutualId),
		ClaimId:             claimId(e.ClaimId),
		AssertionHash:       protocol.AssertionHash{Hash: assertionHash},
		ChallengeLevel:      protocol.ChallengeLevel(e.ChallengeLevel),
		StartCommitment:     protocol.Commitment{Height: protocol.Height(e.StartHeight), Hash: e.StartHistoryRoot},
		EndCommitment:       protocol.Commitment{Height: protocol.Height(e.EndHeight), Hash: e.EndHistoryRoot},
		Ancestors:           edgeIds(e.Ancestors),
		IsRoyal:             true,
		HasRival:            e.HasRival,
		TimeUnrivaled:       e.TimeUnrivaled,
		CumulativePathTimer: challengetree.PathTimer(e.CumulativePathTimer),
		Status:              protocol.EdgePending,
		CreatedAtBlock:      e.CreatedAtBlock,
		MiniStaker:          e.MiniStaker,
		LowerChildId:        option.None[protocol.EdgeId](),
		UpperChildId:        option.None[protocol.EdgeId](),
	}, nil
}

func claimId(h common.Hash) option.Option[protocol.ClaimId] {
	if h == (common.Hash{}) {
		return option.None[protocol.ClaimId]()
	}
	return option.Some(protocol.ClaimId(h))
}

func childId(h common.Hash) option.Option[protocol.EdgeId] {
	if h == (common.Hash{}) {
		return option.None[protocol.EdgeId]()
	}
	return option.Some(protocol.EdgeId{Hash: h})
}

func edgeIds(hashes []common.Hash) []protocol.EdgeId {
	if len(hashes) == 0 {
		return nil
	}
	out := make([]protocol.EdgeId, len(hashes))
	for i, h := range hashes {
		out[i] = protocol.EdgeId{Hash: h}
	}
	return out
}

// ToChain converts and validates a list of wire assertions.
func ToChain(items []*JsonAssertion) (*assertions.Chain, error) {
	converted := make([]*assertions.Assertion, 0, len(items))
	for _, a := range items {
		if a == nil {
			return nil, errors.Wrap(ErrMalformedRecord, "nil assertion")
		}
		c, err := a.ToAssertion()
		if err != nil {
			return nil, err
		}
		converted = append(converted, c)
	}
	return assertions.NewChain(converted)
}

// ToEdgeSet converts and validates a list of wire edges.
func ToEdgeSet(items []*JsonEdge) (*challengetree.EdgeSet, error) {
	converted := make([]*challengetree.Edge, 0, len(items))
	for _, e := range items {
		if e == nil {
			return nil, errors.Wrap(ErrMalformedRecord, "nil edge")
		}
		c, err := e.ToEdge()
		if err != nil {
			return nil, err
		}
		converted = append(converted, c)
	}
	return challengetree.NewEdgeSet(converted)
}
