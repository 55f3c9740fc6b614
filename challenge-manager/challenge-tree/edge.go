// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengetree

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/bold-verifier/containers/option"
	"github.com/offchainlabs/bold-verifier/protocol"
)

// PathTimer is the cumulative unrivaled time of an edge, its royal ancestors,
// and the window its challenge was opened with.
type PathTimer uint64

// Edge is a read-only snapshot of a challenge edge as reported by the API.
// Ancestors are ordered from the edge's direct parent up to the root edge of
// its origin.
type Edge struct {
	Id                  protocol.EdgeId
	OriginId            protocol.OriginId
	MutualId            protocol.MutualId
	ClaimId             option.Option[protocol.ClaimId]
	AssertionHash       protocol.AssertionHash
	ChallengeLevel      protocol.ChallengeLevel
	StartCommitment     protocol.Commitment
	EndCommitment       protocol.Commitment
	Ancestors           []protocol.EdgeId
	IsRoyal             bool
	HasRival            bool
	HasLengthOneRival   bool
	TimeUnrivaled       uint64
	CumulativePathTimer PathTimer
	Status              protocol.EdgeStatus
	CreatedAtBlock      uint64
	MiniStaker          common.Address
	LowerChildId        option.Option[protocol.EdgeId]
	UpperChildId        option.Option[protocol.EdgeId]
}

// IsRoot is true for the edge that opened a challenge within its origin.
func (e *Edge) IsRoot() bool {
	return len(e.Ancestors) == 0
}

func (e *Edge) HasClaim() bool {
	return e.ClaimId.IsSome() && e.ClaimId.Unwrap() != protocol.ClaimId{}
}

// ClaimedEdgeId is the id of the lower level edge this edge claims, if any.
// Only meaningful for subchallenge edges, level zero edges claim assertions.
func (e *Edge) ClaimedEdgeId() option.Option[protocol.EdgeId] {
	if !e.HasClaim() {
		return option.None[protocol.EdgeId]()
	}
	return option.Some(protocol.EdgeId{Hash: common.Hash(e.ClaimId.Unwrap())})
}

func (e *Edge) Length() uint64 {
	if e.EndCommitment.Height < e.StartCommitment.Height {
		return 0
	}
	return uint64(e.EndCommitment.Height - e.StartCommitment.Height)
}

func (e *Edge) IsConfirmed() bool {
	return e.Status == protocol.EdgeConfirmed
}
