// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengemanager

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/bold-verifier/assertions"
	challengetree "github.com/offchainlabs/bold-verifier/challenge-manager/challenge-tree"
	"github.com/offchainlabs/bold-verifier/protocol"
	"github.com/offchainlabs/bold-verifier/report"
)

// IsConfirmable is true when an edge that is not yet confirmed has been
// unrivaled for at least the confirm period of the assertion it challenges.
func IsConfirmable(edge *challengetree.Edge, owning *assertions.Assertion) bool {
	if edge.Status == protocol.EdgeConfirmed {
		return false
	}
	return edge.TimeUnrivaled >= owning.ConfirmPeriodBlocks
}

// PendingConfirmable lists the royal edges of an origin that could be
// confirmed by time but have not been.
func PendingConfirmable(p *challengetree.OriginPartition, owning *assertions.Assertion) []report.Finding {
	var out []report.Finding
	for _, e := range p.Edges {
		if !IsConfirmable(e, owning) {
			continue
		}
		out = append(out, report.Finding{
			Kind:     report.PendingConfirmable,
			OriginId: common.Hash(e.OriginId),
			EdgeId:   e.Id.Hash,
			Expected: owning.ConfirmPeriodBlocks,
			Actual:   e.TimeUnrivaled,
		})
	}
	return out
}

// UnconfirmedClaims checks the claim of every royal subchallenge edge that
// makes one: the claimed edge one level down must be confirmed. Block
// challenge edges claim the challenged assertion's children, which stay
// pending for as long as the challenge is live, so they are skipped. Each
// distinct claim id yields at most one finding, no matter how many edges
// reference it.
func UnconfirmedClaims(edges []*challengetree.Edge, set *challengetree.EdgeSet) []report.Finding {
	seen := make(map[protocol.ClaimId]bool)
	var out []report.Finding
	for _, e := range edges {
		if !e.IsRoyal || !e.HasClaim() || e.ChallengeLevel.IsBlockChallenge() {
			continue
		}
		claim := e.ClaimId.Unwrap()
		if seen[claim] {
			continue
		}
		seen[claim] = true

		base := report.Finding{
			OriginId: common.Hash(e.OriginId),
			EdgeId:   e.Id.Hash,
			ClaimId:  common.Hash(claim),
		}
		claimed, ok := set.Get(e.ClaimedEdgeId().Unwrap())
		switch {
		case !ok:
			base.Kind = report.NotFound
			base.Detail = fmt.Sprintf("claim target %#x is not part of the snapshot", common.Hash(claim))
			out = append(out, base)
		case !claimed.IsConfirmed():
			base.Kind = report.UnconfirmedClaim
			out = append(out, base)
		}
	}
	return out
}
