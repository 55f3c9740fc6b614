// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package report defines the findings produced by a verification pass over a
// BOLD challenge, and renders them for people and machines.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"
)

// Kind of a finding.
type Kind uint8

const (
	OrphanAncestor Kind = iota
	TimerMismatch
	PendingConfirmable
	UnconfirmedClaim
	IncompleteData
	NotFound
	RivalryInconsistent
)

var kindNames = []string{
	OrphanAncestor:      "orphan_ancestor",
	TimerMismatch:       "timer_mismatch",
	PendingConfirmable:  "pending_confirmable",
	UnconfirmedClaim:    "unconfirmed_claim",
	IncompleteData:      "incomplete_data",
	NotFound:            "not_found",
	RivalryInconsistent: "rivalry_inconsistent",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown finding kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Violation is true for findings that mean the challenge bookkeeping cannot
// be trusted.
func (k Kind) Violation() bool {
	return k == OrphanAncestor || k == TimerMismatch
}

// Actionable findings are not violations but warrant a confirmation
// transaction from someone.
func (k Kind) Actionable() bool {
	return k == PendingConfirmable || k == UnconfirmedClaim
}

var (
	orphanCounter      = metrics.NewRegisteredCounter("bold/verifier/findings/orphan", nil)
	mismatchCounter    = metrics.NewRegisteredCounter("bold/verifier/findings/mismatch", nil)
	confirmableCounter = metrics.NewRegisteredCounter("bold/verifier/findings/confirmable", nil)
	unconfirmedCounter = metrics.NewRegisteredCounter("bold/verifier/findings/unconfirmed_claim", nil)
)

// Finding is a single discrepancy or note about one record of a challenge.
type Finding struct {
	Kind     Kind        `json:"kind"`
	OriginId common.Hash `json:"originId"`
	EdgeId   common.Hash `json:"edgeId"`
	ClaimId  common.Hash `json:"claimId"`
	Expected uint64      `json:"expected,omitempty"`
	Actual   uint64      `json:"actual,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}

// Key identifies a finding across passes, independently of its numbers.
// Findings that name no record are told apart by their detail.
func (f Finding) Key() string {
	key := fmt.Sprintf("%s/%x/%x/%x", f.Kind, f.OriginId, f.EdgeId, f.ClaimId)
	if f.OriginId == (common.Hash{}) && f.EdgeId == (common.Hash{}) && f.ClaimId == (common.Hash{}) {
		key += "/" + f.Detail
	}
	return key
}

func findingLess(a, b Finding) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if c := bytes.Compare(a.OriginId[:], b.OriginId[:]); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a.EdgeId[:], b.EdgeId[:]); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a.ClaimId[:], b.ClaimId[:]); c != 0 {
		return c < 0
	}
	return a.Detail < b.Detail
}

// SortFindings orders findings by kind, origin, edge and claim.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		return findingLess(fs[i], fs[j])
	})
}

// OriginReport holds the outcome of checking the royal edges of one origin.
// Window is only meaningful when WindowResolved is set.
type OriginReport struct {
	OriginId       common.Hash `json:"originId"`
	ChallengeLevel uint8       `json:"challengeLevel"`
	Window         uint64      `json:"window"`
	WindowResolved bool        `json:"windowResolved"`
	EdgesChecked   int         `json:"edgesChecked"`
	Findings       []Finding   `json:"findings"`
}

func (o *OriginReport) ofKind(k Kind) []Finding {
	var out []Finding
	for _, f := range o.Findings {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}

func (o *OriginReport) Orphans() []Finding            { return o.ofKind(OrphanAncestor) }
func (o *OriginReport) Mismatches() []Finding         { return o.ofKind(TimerMismatch) }
func (o *OriginReport) PendingConfirmable() []Finding { return o.ofKind(PendingConfirmable) }
func (o *OriginReport) UnconfirmedClaims() []Finding  { return o.ofKind(UnconfirmedClaim) }

// ChallengeReport is the result of a verification pass over one challenge.
// Findings holds challenge wide findings that belong to no single origin.
type ChallengeReport struct {
	AssertionHash common.Hash     `json:"assertionHash"`
	SnapshotBlock uint64          `json:"snapshotBlock"`
	EdgesChecked  int             `json:"edgesChecked"`
	Origins       []*OriginReport `json:"origins"`
	Findings      []Finding       `json:"findings"`
}

// All returns every finding in the report, origin findings first.
func (r *ChallengeReport) All() []Finding {
	var out []Finding
	for _, o := range r.Origins {
		out = append(out, o.Findings...)
	}
	out = append(out, r.Findings...)
	return out
}

func (r *ChallengeReport) Violations() []Finding {
	var out []Finding
	for _, f := range r.All() {
		if f.Kind.Violation() {
			out = append(out, f)
		}
	}
	return out
}

// OK is true when no finding in the report is a violation.
func (r *ChallengeReport) OK() bool {
	return len(r.Violations()) == 0
}

// Counts returns the number of findings per kind.
func (r *ChallengeReport) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for _, f := range r.All() {
		out[f.Kind]++
	}
	return out
}

// RecordMetrics adds the report's findings to the registered counters.
func (r *ChallengeReport) RecordMetrics() {
	counts := r.Counts()
	orphanCounter.Inc(int64(counts[OrphanAncestor]))
	mismatchCounter.Inc(int64(counts[TimerMismatch]))
	confirmableCounter.Inc(int64(counts[PendingConfirmable]))
	unconfirmedCounter.Inc(int64(counts[UnconfirmedClaim]))
}
