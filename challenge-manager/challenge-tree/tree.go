// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package challengetree holds a snapshot of the edges of a single BOLD
// challenge and the checks that can be run over it: ancestor royalty, path
// timer reconciliation and the resolution of assertion windows across
// challenge levels.
package challengetree

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/offchainlabs/bold-verifier/protocol"
)

var (
	ErrNotFound       = errors.New("edge not found in snapshot")
	ErrIncompleteData = errors.New("edge snapshot is missing data")
)

// EdgeSet is an immutable collection of the edges of one challenge, royal and
// otherwise, indexed for the lookups the verifier needs.
type EdgeSet struct {
	edges     []*Edge
	byId      map[protocol.EdgeId]*Edge
	mutualIds map[protocol.MutualId][]*Edge
	claimedBy map[protocol.ClaimId][]*Edge
}

func NewEdgeSet(items []*Edge) (*EdgeSet, error) {
	s := &EdgeSet{
		edges:     make([]*Edge, 0, len(items)),
		byId:      make(map[protocol.EdgeId]*Edge, len(items)),
		mutualIds: make(map[protocol.MutualId][]*Edge),
		claimedBy: make(map[protocol.ClaimId][]*Edge),
	}
	for i, e := range items {
		if e == nil {
			return nil, errors.Errorf("nil edge at index %d", i)
		}
		if _, ok := s.byId[e.Id]; ok {
			return nil, errors.Errorf("duplicate edge %#x", e.Id.Hash)
		}
		s.byId[e.Id] = e
		s.edges = append(s.edges, e)
	}
	sort.SliceStable(s.edges, func(i, j int) bool {
		return edgeLess(s.edges[i], s.edges[j])
	})
	for _, e := range s.edges {
		s.mutualIds[e.MutualId] = append(s.mutualIds[e.MutualId], e)
		if e.HasClaim() {
			claim := e.ClaimId.Unwrap()
			s.claimedBy[claim] = append(s.claimedBy[claim], e)
		}
	}
	return s, nil
}

// Edges sort by challenge level, then creation block, then id.
func edgeLess(a, b *Edge) bool {
	if a.ChallengeLevel != b.ChallengeLevel {
		return a.ChallengeLevel < b.ChallengeLevel
	}
	if a.CreatedAtBlock != b.CreatedAtBlock {
		return a.CreatedAtBlock < b.CreatedAtBlock
	}
	return bytes.Compare(a.Id.Bytes(), b.Id.Bytes()) < 0
}

func (s *EdgeSet) Len() int {
	return len(s.edges)
}

func (s *EdgeSet) Get(id protocol.EdgeId) (*Edge, bool) {
	e, ok := s.byId[id]
	return e, ok
}

func (s *EdgeSet) All() []*Edge {
	return s.filter(func(*Edge) bool { return true })
}

func (s *EdgeSet) Royal() []*Edge {
	return s.filter(func(e *Edge) bool { return e.IsRoyal })
}

func (s *EdgeSet) NonRoyal() []*Edge {
	return s.filter(func(e *Edge) bool { return !e.IsRoyal })
}

func (s *EdgeSet) AtLevel(lvl protocol.ChallengeLevel) []*Edge {
	return s.filter(func(e *Edge) bool { return e.ChallengeLevel == lvl })
}

// RootEdges are the edges that make a claim, i.e. the ones that opened a
// challenge at their level.
func (s *EdgeSet) RootEdges() []*Edge {
	return s.filter(func(e *Edge) bool { return e.HasClaim() })
}

func (s *EdgeSet) filter(keep func(*Edge) bool) []*Edge {
	var out []*Edge
	for _, e := range s.edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// ByOrigin groups the royal edges of the set by their origin id.
func (s *EdgeSet) ByOrigin() map[protocol.OriginId][]*Edge {
	out := make(map[protocol.OriginId][]*Edge)
	for _, e := range s.edges {
		if e.IsRoyal {
			out[e.OriginId] = append(out[e.OriginId], e)
		}
	}
	return out
}

// Origins returns one partition per origin that has royal edges, ordered by
// challenge level and then by origin id.
func (s *EdgeSet) Origins() []*OriginPartition {
	grouped := s.ByOrigin()
	out := make([]*OriginPartition, 0, len(grouped))
	for origin, edges := range grouped {
		out = append(out, newOriginPartition(origin, edges))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return bytes.Compare(out[i].OriginId[:], out[j].OriginId[:]) < 0
	})
	return out
}

// Partition returns the royal edges of a single origin.
func (s *EdgeSet) Partition(origin protocol.OriginId) (*OriginPartition, bool) {
	var edges []*Edge
	for _, e := range s.edges {
		if e.IsRoyal && e.OriginId == origin {
			edges = append(edges, e)
		}
	}
	if len(edges) == 0 {
		return nil, false
	}
	return newOriginPartition(origin, edges), true
}

type royalLookup struct {
	set *EdgeSet
}

func (r royalLookup) Get(id protocol.EdgeId) (*Edge, bool) {
	e, ok := r.set.Get(id)
	if !ok || !e.IsRoyal {
		return nil, false
	}
	return e, true
}

// RoyalLookup finds royal edges of any origin and level.
func (s *EdgeSet) RoyalLookup() EdgeLookup {
	return royalLookup{set: s}
}

// Rivals of an edge are the other edges sharing its mutual id.
func (s *EdgeSet) Rivals(edge *Edge) []*Edge {
	var out []*Edge
	for _, e := range s.mutualIds[edge.MutualId] {
		if e.Id != edge.Id && e.OriginId == edge.OriginId {
			out = append(out, e)
		}
	}
	return out
}

// ClaimedBy returns the edges whose claim id points at the given id.
func (s *EdgeSet) ClaimedBy(id protocol.ClaimId) []*Edge {
	kids := s.claimedBy[id]
	out := make([]*Edge, len(kids))
	copy(out, kids)
	return out
}
