// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengetree

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/bold-verifier/protocol"
)

// Sets up a block challenge with two rival root edges, of which only the
// first one is royal, plus a royal bisection child and a subchallenge edge
// claiming it.
//
//	blk-0.a-16.a (royal) --- blk-0.a-8.a (royal) <--- big-0.a-32.a (royal, level 1)
//	blk-0.a-16.b
func setupEdges(t *testing.T) *EdgeSet {
	t.Helper()
	return newSet(t,
		newEdge(&newEdgeArgs{id: "big-0.a-32.a", origin: "o1", level: 1, claim: "blk-0.a-8.a", royal: true, createdAt: 5}),
		newEdge(&newEdgeArgs{id: "blk-0.a-16.a", origin: "o0", mutual: "m", claim: "A", royal: true, hasRival: true, createdAt: 1}),
		newEdge(&newEdgeArgs{id: "blk-0.a-16.b", origin: "o0", mutual: "m", claim: "A", hasRival: true, createdAt: 2}),
		newEdge(&newEdgeArgs{id: "blk-0.a-8.a", origin: "o0", ancestors: []string{"blk-0.a-16.a"}, royal: true, createdAt: 3}),
	)
}

func TestNewEdgeSet(t *testing.T) {
	t.Run("rejects nil", func(t *testing.T) {
		_, err := NewEdgeSet([]*Edge{nil})
		require.ErrorContains(t, err, "nil edge")
	})
	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewEdgeSet([]*Edge{
			newEdge(&newEdgeArgs{id: "a"}),
			newEdge(&newEdgeArgs{id: "a"}),
		})
		require.ErrorContains(t, err, "duplicate edge")
	})
	t.Run("ordered by level then creation", func(t *testing.T) {
		set := setupEdges(t)
		all := set.All()
		require.Equal(t, 4, set.Len())
		require.Equal(t, id("blk-0.a-16.a"), all[0].Id)
		require.Equal(t, id("blk-0.a-16.b"), all[1].Id)
		require.Equal(t, id("blk-0.a-8.a"), all[2].Id)
		require.Equal(t, id("big-0.a-32.a"), all[3].Id)
	})
}

func TestEdgeSet_Queries(t *testing.T) {
	set := setupEdges(t)

	t.Run("get", func(t *testing.T) {
		e, ok := set.Get(id("blk-0.a-8.a"))
		require.True(t, ok)
		require.False(t, e.IsRoot())
		_, ok = set.Get(id("nope"))
		require.False(t, ok)
	})
	t.Run("royalty", func(t *testing.T) {
		require.Len(t, set.Royal(), 3)
		nonRoyal := set.NonRoyal()
		require.Len(t, nonRoyal, 1)
		require.Equal(t, id("blk-0.a-16.b"), nonRoyal[0].Id)
	})
	t.Run("levels", func(t *testing.T) {
		require.Len(t, set.AtLevel(0), 3)
		require.Len(t, set.AtLevel(1), 1)
		require.Empty(t, set.AtLevel(2))
	})
	t.Run("root edges make claims", func(t *testing.T) {
		roots := set.RootEdges()
		require.Len(t, roots, 3)
	})
	t.Run("rivals", func(t *testing.T) {
		e, _ := set.Get(id("blk-0.a-16.a"))
		rivals := set.Rivals(e)
		require.Len(t, rivals, 1)
		require.Equal(t, id("blk-0.a-16.b"), rivals[0].Id)

		lone, _ := set.Get(id("blk-0.a-8.a"))
		require.Empty(t, set.Rivals(lone))
	})
	t.Run("claimed by", func(t *testing.T) {
		claimants := set.ClaimedBy(protocol.ClaimId(common.BytesToHash([]byte("A"))))
		require.Len(t, claimants, 2)
		require.Empty(t, set.ClaimedBy(protocol.ClaimId{}))
	})
	t.Run("origins ordered by level", func(t *testing.T) {
		origins := set.Origins()
		require.Len(t, origins, 2)
		require.Equal(t, origin("o0"), origins[0].OriginId)
		require.Equal(t, protocol.ChallengeLevel(0), origins[0].Level)
		require.Len(t, origins[0].Edges, 2)
		require.Equal(t, origin("o1"), origins[1].OriginId)
		require.Equal(t, protocol.ChallengeLevel(1), origins[1].Level)

		byOrigin := set.ByOrigin()
		require.Len(t, byOrigin[origin("o0")], 2)
	})
	t.Run("partition", func(t *testing.T) {
		p, ok := set.Partition(origin("o0"))
		require.True(t, ok)
		roots := p.Roots()
		require.Len(t, roots, 1)
		require.Equal(t, id("blk-0.a-16.a"), roots[0].Id)
		_, ok = set.Partition(origin("nope"))
		require.False(t, ok)
	})
}

func TestEdge_Helpers(t *testing.T) {
	e := newEdge(&newEdgeArgs{id: "a", claim: "b"})
	require.True(t, e.HasClaim())
	require.Equal(t, id("b"), e.ClaimedEdgeId().Unwrap())

	e = newEdge(&newEdgeArgs{id: "a"})
	require.False(t, e.HasClaim())
	require.True(t, e.ClaimedEdgeId().IsNone())

	e.StartCommitment = protocol.Commitment{Height: 16}
	e.EndCommitment = protocol.Commitment{Height: 32}
	require.Equal(t, uint64(16), e.Length())

	e.Status = protocol.EdgeConfirmed
	require.True(t, e.IsConfirmed())
}
