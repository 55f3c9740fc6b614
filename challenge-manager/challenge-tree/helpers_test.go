// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengetree

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/bold-verifier/containers/option"
	"github.com/offchainlabs/bold-verifier/protocol"
)

func id(s string) protocol.EdgeId {
	return protocol.EdgeId{Hash: common.BytesToHash([]byte(s))}
}

func origin(s string) protocol.OriginId {
	return protocol.OriginId(common.BytesToHash([]byte(s)))
}

func assertionHash(s string) protocol.AssertionHash {
	return protocol.AssertionHash{Hash: common.BytesToHash([]byte(s))}
}

type newEdgeArgs struct {
	id            string
	origin        string
	mutual        string
	claim         string
	level         protocol.ChallengeLevel
	ancestors     []string
	royal         bool
	hasRival      bool
	timeUnrivaled uint64
	pathTimer     PathTimer
	createdAt     uint64
	status        protocol.EdgeStatus
}

func newEdge(args *newEdgeArgs) *Edge {
	e := &Edge{
		Id:                  id(args.id),
		OriginId:            origin(args.origin),
		MutualId:            protocol.MutualId(common.BytesToHash([]byte(args.mutual))),
		ClaimId:             option.None[protocol.ClaimId](),
		ChallengeLevel:      args.level,
		IsRoyal:             args.royal,
		HasRival:            args.hasRival,
		TimeUnrivaled:       args.timeUnrivaled,
		CumulativePathTimer: args.pathTimer,
		CreatedAtBlock:      args.createdAt,
		Status:              args.status,
	}
	if args.mutual == "" {
		e.MutualId = protocol.MutualId(common.BytesToHash([]byte("mutual-" + args.id)))
	}
	if args.claim != "" {
		e.ClaimId = option.Some(protocol.ClaimId(common.BytesToHash([]byte(args.claim))))
	}
	for _, a := range args.ancestors {
		e.Ancestors = append(e.Ancestors, id(a))
	}
	return e
}

func newSet(t *testing.T, edges ...*Edge) *EdgeSet {
	t.Helper()
	set, err := NewEdgeSet(edges)
	require.NoError(t, err)
	return set
}

type mockWindows struct {
	windows map[protocol.AssertionHash]uint64
	err     error
}

func (m *mockWindows) UnrivaledWindow(hash protocol.AssertionHash) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	w, ok := m.windows[hash]
	if !ok {
		return 0, errors.Errorf("no window for %#x", hash.Hash)
	}
	return w, nil
}
