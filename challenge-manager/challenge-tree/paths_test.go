// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengetree

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconcile_AssertionScenario(t *testing.T) {
	// Assertion window is 130 - 100 = 30 blocks.
	window := uint64(30)
	root := newEdge(&newEdgeArgs{id: "R", origin: "o", royal: true, timeUnrivaled: 40, pathTimer: 70})
	child := newEdge(&newEdgeArgs{id: "C", origin: "o", royal: true, ancestors: []string{"R"}, timeUnrivaled: 10, pathTimer: 80})

	t.Run("consistent", func(t *testing.T) {
		set := newSet(t, root, child)
		p, ok := set.Partition(origin("o"))
		require.True(t, ok)
		require.Empty(t, p.VerifyAncestors())

		expected, err := ExpectedPathTimer(root, p, window)
		require.NoError(t, err)
		require.Equal(t, PathTimer(70), expected)

		expected, err = ExpectedPathTimer(child, p, window)
		require.NoError(t, err)
		require.Equal(t, PathTimer(80), expected)

		for _, e := range p.Edges {
			mismatch, err := Reconcile(e, p, window)
			require.NoError(t, err)
			require.Nil(t, mismatch)
		}
	})
	t.Run("root removed makes child an orphan", func(t *testing.T) {
		set := newSet(t, child)
		p, ok := set.Partition(origin("o"))
		require.True(t, ok)
		orphans := p.VerifyAncestors()
		require.Len(t, orphans, 1)
		require.Equal(t, id("C"), orphans[0].EdgeId)
		require.Equal(t, id("R"), orphans[0].MissingAncestor)
		require.Equal(t, fmt.Sprintf("%#x", id("R").Bytes()[:4]), orphans[0].MissingAncestorPrefix())

		_, err := Reconcile(child, p, window)
		var orphan *OrphanAncestorError
		require.ErrorAs(t, err, &orphan)
	})
	t.Run("non royal ancestor makes child an orphan", func(t *testing.T) {
		demoted := *root
		demoted.IsRoyal = false
		set := newSet(t, &demoted, child)
		p, ok := set.Partition(origin("o"))
		require.True(t, ok)
		require.Len(t, p.VerifyAncestors(), 1)
	})
	t.Run("ancestor in another origin makes child an orphan", func(t *testing.T) {
		moved := *root
		moved.OriginId = origin("elsewhere")
		set := newSet(t, &moved, child)
		p, ok := set.Partition(origin("o"))
		require.True(t, ok)
		require.Len(t, p.VerifyAncestors(), 1)
	})
}

func TestReconcile_RootEdge(t *testing.T) {
	root := newEdge(&newEdgeArgs{id: "R", origin: "o", royal: true, timeUnrivaled: 7, pathTimer: 12})
	set := newSet(t, root)

	mismatch, err := Reconcile(root, set, 5)
	require.NoError(t, err)
	require.Nil(t, mismatch)

	mismatch, err = Reconcile(root, set, 6)
	require.NoError(t, err)
	require.NotNil(t, mismatch)
	require.Equal(t, PathTimer(13), mismatch.Expected)
	require.Equal(t, PathTimer(12), mismatch.Actual)
	require.Contains(t, mismatch.String(), "expected 13")
}

func TestReconcile_SingleUnitPerturbation(t *testing.T) {
	window := uint64(30)
	build := func(rootTimer, childTimer uint64, pathTimer PathTimer) (*Edge, *EdgeSet) {
		root := newEdge(&newEdgeArgs{id: "R", origin: "o", royal: true, timeUnrivaled: rootTimer})
		mid := newEdge(&newEdgeArgs{id: "M", origin: "o", royal: true, ancestors: []string{"R"}, timeUnrivaled: 3})
		child := newEdge(&newEdgeArgs{
			id:            "C",
			origin:        "o",
			royal:         true,
			ancestors:     []string{"M", "R"},
			timeUnrivaled: childTimer,
			pathTimer:     pathTimer,
		})
		return child, newSet(t, root, mid, child)
	}
	cases := []struct {
		name       string
		rootTimer  uint64
		childTimer uint64
		pathTimer  PathTimer
		window     uint64
		ok         bool
	}{
		{name: "exact", rootTimer: 40, childTimer: 10, pathTimer: 83, window: window, ok: true},
		{name: "reported one more", rootTimer: 40, childTimer: 10, pathTimer: 84, window: window},
		{name: "reported one less", rootTimer: 40, childTimer: 10, pathTimer: 82, window: window},
		{name: "own timer one more", rootTimer: 40, childTimer: 11, pathTimer: 83, window: window},
		{name: "ancestor timer one less", rootTimer: 39, childTimer: 10, pathTimer: 83, window: window},
		{name: "window one more", rootTimer: 40, childTimer: 10, pathTimer: 83, window: window + 1},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			child, set := build(tt.rootTimer, tt.childTimer, tt.pathTimer)
			mismatch, err := Reconcile(child, set, tt.window)
			require.NoError(t, err)
			if tt.ok {
				require.Nil(t, mismatch)
			} else {
				require.NotNil(t, mismatch)
			}
		})
	}
}

func TestExpectedPathTimer_Overflow(t *testing.T) {
	root := newEdge(&newEdgeArgs{id: "R", origin: "o", royal: true, timeUnrivaled: math.MaxUint64})
	child := newEdge(&newEdgeArgs{id: "C", origin: "o", royal: true, ancestors: []string{"R"}, timeUnrivaled: 1})
	set := newSet(t, root, child)

	_, err := ExpectedPathTimer(root, set, 1)
	require.ErrorIs(t, err, ErrTimerOverflow)
	_, err = ExpectedPathTimer(child, set, 0)
	require.ErrorIs(t, err, ErrTimerOverflow)

	expected, err := ExpectedPathTimer(root, set, 0)
	require.NoError(t, err)
	require.Equal(t, PathTimer(math.MaxUint64), expected)
}

// Generates random royal ancestor chains within one origin and checks that a
// consistent snapshot has no orphans and reconciles everywhere, and that
// dropping any single edge orphans exactly the edges that list it.
func TestVerifyAncestors_GeneratedChains(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		window := uint64(rng.Intn(1000))
		depth := 1 + rng.Intn(12)
		edges := make([]*Edge, 0, depth)
		var ancestors []string
		var sum uint64
		for i := 0; i < depth; i++ {
			name := fmt.Sprintf("run-%d-edge-%d", run, i)
			timer := uint64(rng.Intn(500))
			sum += timer
			edges = append(edges, newEdge(&newEdgeArgs{
				id:            name,
				origin:        "o",
				royal:         true,
				ancestors:     append([]string(nil), ancestors...),
				timeUnrivaled: timer,
				pathTimer:     PathTimer(sum + window),
				createdAt:     uint64(i),
			}))
			ancestors = append([]string{name}, ancestors...)
		}
		set := newSet(t, edges...)
		p, ok := set.Partition(origin("o"))
		require.True(t, ok)
		require.Empty(t, p.VerifyAncestors())
		for _, e := range edges {
			mismatch, err := Reconcile(e, p, window)
			require.NoError(t, err)
			require.Nil(t, mismatch, "run %d edge %#x", run, e.Id.Hash)
		}

		drop := rng.Intn(depth)
		var kept []*Edge
		var referencing int
		for i, e := range edges {
			if i == drop {
				continue
			}
			kept = append(kept, e)
			if i > drop {
				referencing++
			}
		}
		if len(kept) == 0 {
			continue
		}
		p = newSet(t, kept...).Origins()[0]
		require.Len(t, p.VerifyAncestors(), referencing, "run %d drop %d", run, drop)
	}
}
