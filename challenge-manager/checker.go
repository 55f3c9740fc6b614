// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package challengemanager

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/offchainlabs/bold-verifier/assertions"
	challengetree "github.com/offchainlabs/bold-verifier/challenge-manager/challenge-tree"
	"github.com/offchainlabs/bold-verifier/protocol"
	"github.com/offchainlabs/bold-verifier/report"
	"github.com/offchainlabs/bold-verifier/util/pretty"
)

// AncestorScope says where the ancestors listed by an edge live.
type AncestorScope uint8

const (
	// OriginScope ancestors belong to the edge's own origin, as served by the
	// edges endpoint. Subchallenge windows are resolved through claims.
	OriginScope AncestorScope = iota
	// ChallengeScope ancestors run across challenge levels up to the block
	// challenge root, as served by the tracked royal edges endpoint. Every
	// path timer starts from the assertion window.
	ChallengeScope
)

// Snapshot is everything a verification pass needs about one challenge. It
// is never mutated by the checker.
type Snapshot struct {
	AssertionHash protocol.AssertionHash
	Chain         *assertions.Chain
	Edges         *challengetree.EdgeSet
	// Complete is set when every edge of the challenge was fetched, not only
	// the royal ones. Rivalry can only be checked against a complete set.
	Complete bool
	Scope    AncestorScope
	Block    uint64
}

// CheckChallenge verifies the royal edges of a challenge: ancestor royalty and
// path timers per origin, then confirmation eligibility and claims. Origins
// are checked concurrently, and the report is sorted so that two passes over
// the same snapshot are identical.
func CheckChallenge(s *Snapshot) (*report.ChallengeReport, error) {
	if s == nil || s.Chain == nil || s.Edges == nil {
		return nil, errors.New("snapshot must have a chain and an edge set")
	}
	r := &report.ChallengeReport{
		AssertionHash: s.AssertionHash.Hash,
		SnapshotBlock: s.Block,
		EdgesChecked:  len(s.Edges.Royal()),
	}
	owning, err := s.Chain.Get(s.AssertionHash)
	if err != nil {
		r.Findings = append(r.Findings, report.Finding{
			Kind:   report.NotFound,
			Detail: fmt.Sprintf("challenged assertion %s is not part of the snapshot", pretty.PrefixHash(s.AssertionHash.Hash)),
		})
	}

	partitions := s.Edges.Origins()
	results := make([]*report.OriginReport, len(partitions))
	var g errgroup.Group
	for i, p := range partitions {
		i, p := i, p
		g.Go(func() error {
			res, err := checkOrigin(s, p, owning)
			if err != nil {
				return errors.Wrapf(err, "origin %#x", common.Hash(p.OriginId))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.Origins = results

	byOrigin := make(map[common.Hash]*report.OriginReport, len(results))
	for _, o := range results {
		byOrigin[o.OriginId] = o
	}
	for _, f := range UnconfirmedClaims(s.Edges.Royal(), s.Edges) {
		if o, ok := byOrigin[f.OriginId]; ok {
			o.Findings = append(o.Findings, f)
			continue
		}
		r.Findings = append(r.Findings, f)
	}
	for _, o := range results {
		report.SortFindings(o.Findings)
	}
	report.SortFindings(r.Findings)
	return r, nil
}

func checkOrigin(s *Snapshot, p *challengetree.OriginPartition, owning *assertions.Assertion) (*report.OriginReport, error) {
	out := &report.OriginReport{
		OriginId:       common.Hash(p.OriginId),
		ChallengeLevel: uint8(p.Level),
		EdgesChecked:   len(p.Edges),
	}
	var lookup challengetree.EdgeLookup = p
	if s.Scope == ChallengeScope {
		lookup = s.Edges.RoyalLookup()
	}
	orphans := p.VerifyAncestorsIn(lookup)
	for _, o := range orphans {
		out.Findings = append(out.Findings, orphanFinding(o, p))
	}
	checkConfirmable := owning != nil
	if checkConfirmable {
		if _, err := owning.UnrivaledWindow(); err != nil {
			checkConfirmable = false
		}
	}
	// Timers summed over an incomplete ancestry mean nothing.
	if len(orphans) == 0 {
		window, err := resolveWindow(s, p)
		if err != nil {
			if errors.Is(err, assertions.ErrIncompleteData) || errors.Is(err, challengetree.ErrIncompleteData) {
				checkConfirmable = false
			}
			f, ferr := findingFromError(err, p, nil)
			if ferr != nil {
				return nil, ferr
			}
			out.Findings = append(out.Findings, f)
		} else {
			out.Window = window
			out.WindowResolved = true
			for _, e := range p.Edges {
				mismatch, err := challengetree.Reconcile(e, lookup, window)
				if err != nil {
					f, ferr := findingFromError(err, p, e)
					if ferr != nil {
						return nil, ferr
					}
					out.Findings = append(out.Findings, f)
					continue
				}
				if mismatch != nil {
					out.Findings = append(out.Findings, report.Finding{
						Kind:     report.TimerMismatch,
						OriginId: common.Hash(mismatch.OriginId),
						EdgeId:   mismatch.EdgeId.Hash,
						Expected: uint64(mismatch.Expected),
						Actual:   uint64(mismatch.Actual),
					})
				}
			}
		}
	}
	// The confirm period only counts against a window that can be computed.
	if checkConfirmable {
		out.Findings = append(out.Findings, PendingConfirmable(p, owning)...)
	}
	if s.Complete {
		out.Findings = append(out.Findings, rivalryFindings(s.Edges, p)...)
	}
	return out, nil
}

func resolveWindow(s *Snapshot, p *challengetree.OriginPartition) (uint64, error) {
	if s.Scope == ChallengeScope {
		return s.Chain.UnrivaledWindow(s.AssertionHash)
	}
	resolver := challengetree.NewWindowResolver(s.Edges, s.Chain, s.AssertionHash)
	return resolver.Window(p.OriginId)
}

func orphanFinding(o *challengetree.OrphanAncestorError, p *challengetree.OriginPartition) report.Finding {
	return report.Finding{
		Kind:     report.OrphanAncestor,
		OriginId: common.Hash(p.OriginId),
		EdgeId:   o.EdgeId.Hash,
		Detail:   o.MissingAncestorPrefix(),
	}
}

// findingFromError turns a data error met while checking an origin into a
// finding. Errors that are not about the data are returned as is.
func findingFromError(err error, p *challengetree.OriginPartition, edge *challengetree.Edge) (report.Finding, error) {
	f := report.Finding{
		OriginId: common.Hash(p.OriginId),
		Detail:   err.Error(),
	}
	if edge != nil {
		f.EdgeId = edge.Id.Hash
	}
	var orphan *challengetree.OrphanAncestorError
	switch {
	case errors.As(err, &orphan):
		f.Kind = report.OrphanAncestor
		f.EdgeId = orphan.EdgeId.Hash
		f.Detail = orphan.MissingAncestorPrefix()
	case errors.Is(err, challengetree.ErrTimerOverflow):
		f.Kind = report.TimerMismatch
		if edge != nil {
			f.Actual = uint64(edge.CumulativePathTimer)
		}
	case errors.Is(err, assertions.ErrNotFound), errors.Is(err, challengetree.ErrNotFound):
		f.Kind = report.NotFound
	case errors.Is(err, assertions.ErrIncompleteData), errors.Is(err, challengetree.ErrIncompleteData):
		f.Kind = report.IncompleteData
	default:
		return report.Finding{}, err
	}
	return f, nil
}

func rivalryFindings(set *challengetree.EdgeSet, p *challengetree.OriginPartition) []report.Finding {
	var out []report.Finding
	for _, e := range p.Edges {
		rivals := len(set.Rivals(e))
		if e.HasRival == (rivals > 0) {
			continue
		}
		out = append(out, report.Finding{
			Kind:     report.RivalryInconsistent,
			OriginId: common.Hash(p.OriginId),
			EdgeId:   e.Id.Hash,
			Detail:   fmt.Sprintf("has rival flag is %t but %d rival(s) found", e.HasRival, rivals),
		})
	}
	return out
}
