// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengetree

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/bold-verifier/protocol"
	"github.com/offchainlabs/bold-verifier/util/pretty"
)

// OrphanAncestorError is returned for a royal edge that lists an ancestor
// which is not part of the royal edges of its origin.
type OrphanAncestorError struct {
	EdgeId          protocol.EdgeId
	OriginId        protocol.OriginId
	MissingAncestor protocol.EdgeId
}

func (e *OrphanAncestorError) Error() string {
	return fmt.Sprintf(
		"edge %s in origin %s has ancestor %s that is not a royal edge",
		pretty.PrefixHash(e.EdgeId.Hash),
		pretty.PrefixHash(common.Hash(e.OriginId)),
		pretty.PrefixHash(e.MissingAncestor.Hash),
	)
}

// MissingAncestorPrefix is the short form used when reporting orphans.
func (e *OrphanAncestorError) MissingAncestorPrefix() string {
	return pretty.PrefixHash(e.MissingAncestor.Hash)
}

// OriginPartition is the set of royal edges that share an origin id.
type OriginPartition struct {
	OriginId protocol.OriginId
	Level    protocol.ChallengeLevel
	Edges    []*Edge
	byId     map[protocol.EdgeId]*Edge
}

func newOriginPartition(origin protocol.OriginId, edges []*Edge) *OriginPartition {
	p := &OriginPartition{
		OriginId: origin,
		Edges:    edges,
		byId:     make(map[protocol.EdgeId]*Edge, len(edges)),
	}
	for _, e := range edges {
		p.byId[e.Id] = e
	}
	if len(edges) > 0 {
		p.Level = edges[0].ChallengeLevel
	}
	return p
}

func (p *OriginPartition) Get(id protocol.EdgeId) (*Edge, bool) {
	e, ok := p.byId[id]
	return e, ok
}

// Roots are the royal edges of the origin that have no ancestors.
func (p *OriginPartition) Roots() []*Edge {
	var out []*Edge
	for _, e := range p.Edges {
		if e.IsRoot() {
			out = append(out, e)
		}
	}
	return out
}

// VerifyAncestors checks that every ancestor listed by a royal edge of the
// origin is itself a royal edge of the origin. One error is returned per
// edge, naming the first ancestor that could not be found.
func (p *OriginPartition) VerifyAncestors() []*OrphanAncestorError {
	return p.VerifyAncestorsIn(p)
}

// VerifyAncestorsIn checks ancestors against another lookup, for snapshots
// whose ancestry crosses challenge levels.
func (p *OriginPartition) VerifyAncestorsIn(lookup EdgeLookup) []*OrphanAncestorError {
	var orphans []*OrphanAncestorError
	for _, e := range p.Edges {
		for _, ancestor := range e.Ancestors {
			if _, ok := lookup.Get(ancestor); ok {
				continue
			}
			orphans = append(orphans, &OrphanAncestorError{
				EdgeId:          e.Id,
				OriginId:        p.OriginId,
				MissingAncestor: ancestor,
			})
			break
		}
	}
	return orphans
}
