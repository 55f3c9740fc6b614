// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengetree

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/offchainlabs/bold-verifier/protocol"
	"github.com/offchainlabs/bold-verifier/util/pretty"
)

var ErrTimerOverflow = errors.New("path timer overflows uint64")

// EdgeLookup finds an edge by id. Implemented by *EdgeSet and
// *OriginPartition.
type EdgeLookup interface {
	Get(id protocol.EdgeId) (*Edge, bool)
}

// TimerMismatch records an edge whose reported cumulative path timer does not
// match the one computed from its ancestry.
type TimerMismatch struct {
	EdgeId   protocol.EdgeId
	OriginId protocol.OriginId
	Expected PathTimer
	Actual   PathTimer
}

func (m *TimerMismatch) String() string {
	return fmt.Sprintf(
		"edge %s cumulative path timer %d, expected %d",
		pretty.PrefixHash(m.EdgeId.Hash),
		m.Actual,
		m.Expected,
	)
}

// ExpectedPathTimer computes the path timer of an edge: its own time unrivaled,
// plus the time unrivaled of each of its ancestors, plus the window the
// challenge was opened with. Every ancestor must be found by the lookup.
func ExpectedPathTimer(edge *Edge, lookup EdgeLookup, window uint64) (PathTimer, error) {
	total, err := addTimer(edge.TimeUnrivaled, window)
	if err != nil {
		return 0, errors.Wrapf(err, "edge %#x", edge.Id.Hash)
	}
	for _, id := range edge.Ancestors {
		ancestor, ok := lookup.Get(id)
		if !ok {
			return 0, &OrphanAncestorError{
				EdgeId:          edge.Id,
				OriginId:        edge.OriginId,
				MissingAncestor: id,
			}
		}
		total, err = addTimer(total, ancestor.TimeUnrivaled)
		if err != nil {
			return 0, errors.Wrapf(err, "edge %#x at ancestor %#x", edge.Id.Hash, id.Hash)
		}
	}
	return PathTimer(total), nil
}

func addTimer(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrTimerOverflow
	}
	return sum, nil
}

// Reconcile compares the reported cumulative path timer of an edge with the
// expected one. The returned mismatch is nil when both agree.
func Reconcile(edge *Edge, lookup EdgeLookup, window uint64) (*TimerMismatch, error) {
	expected, err := ExpectedPathTimer(edge, lookup, window)
	if err != nil {
		return nil, err
	}
	if expected == edge.CumulativePathTimer {
		return nil, nil
	}
	return &TimerMismatch{
		EdgeId:   edge.Id,
		OriginId: edge.OriginId,
		Expected: expected,
		Actual:   edge.CumulativePathTimer,
	}, nil
}
