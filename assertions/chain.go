// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package assertions models a snapshot of the BOLD assertion chain: the tree of
// assertions rooted at the latest confirmed one, their children, and the
// window during which each assertion was unrivaled at its parent.
package assertions

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/offchainlabs/bold-verifier/containers/option"
	"github.com/offchainlabs/bold-verifier/protocol"
)

var (
	ErrNotFound       = errors.New("assertion not found in snapshot")
	ErrIncompleteData = errors.New("assertion is missing data")
)

// Assertion is an immutable claim about machine state at a point in the
// inbox. Optional fields are absent until the chain has produced them.
type Assertion struct {
	Hash                protocol.AssertionHash
	ParentHash          option.Option[protocol.AssertionHash]
	CreationBlock       uint64
	FirstChildBlock     option.Option[uint64]
	SecondChildBlock    option.Option[uint64]
	InboxMaxCount       string
	WasmModuleRoot      common.Hash
	ChallengeManager    common.Address
	ConfirmPeriodBlocks uint64
	RequiredStake       string
	TransactionHash     common.Hash
	AfterInboxBatchAcc  common.Hash
	IsFirstChild        bool
	Status              protocol.AssertionStatus
}

// Challenged is true once a rival child exists, which is what starts a
// challenge on this assertion.
func (a *Assertion) Challenged() bool {
	return a.SecondChildBlock.IsSome() && a.SecondChildBlock.Unwrap() != 0
}

func (a *Assertion) IsConfirmed() bool {
	return a.Status == protocol.AssertionConfirmed
}

// UnrivaledWindow is the number of blocks between the creation of the first
// and second child, i.e. how long the first child was unrivaled.
func (a *Assertion) UnrivaledWindow() (uint64, error) {
	if a.FirstChildBlock.IsNone() || a.SecondChildBlock.IsNone() {
		return 0, errors.Wrapf(ErrIncompleteData, "assertion %#x has no first and second child blocks", a.Hash.Hash)
	}
	first, second := a.FirstChildBlock.Unwrap(), a.SecondChildBlock.Unwrap()
	if first == 0 || second == 0 {
		return 0, errors.Wrapf(ErrIncompleteData, "assertion %#x has no first and second child blocks", a.Hash.Hash)
	}
	if second < first {
		return 0, errors.Wrapf(
			ErrIncompleteData,
			"assertion %#x second child block %d precedes first child block %d",
			a.Hash.Hash,
			second,
			first,
		)
	}
	return second - first, nil
}

// Chain is a read-only view over a set of assertions. It is built once and
// never mutated, so it can be shared freely between goroutines.
type Chain struct {
	assertions []*Assertion
	byHash     map[protocol.AssertionHash]*Assertion
	children   map[protocol.AssertionHash][]*Assertion
}

func NewChain(items []*Assertion) (*Chain, error) {
	c := &Chain{
		assertions: make([]*Assertion, 0, len(items)),
		byHash:     make(map[protocol.AssertionHash]*Assertion, len(items)),
		children:   make(map[protocol.AssertionHash][]*Assertion),
	}
	for i, a := range items {
		if a == nil {
			return nil, errors.Errorf("nil assertion at index %d", i)
		}
		if _, ok := c.byHash[a.Hash]; ok {
			return nil, errors.Errorf("duplicate assertion %#x", a.Hash.Hash)
		}
		c.byHash[a.Hash] = a
		c.assertions = append(c.assertions, a)
	}
	sort.SliceStable(c.assertions, func(i, j int) bool {
		return less(c.assertions[i], c.assertions[j])
	})
	for _, a := range c.assertions {
		if a.ParentHash.IsSome() {
			parent := a.ParentHash.Unwrap()
			c.children[parent] = append(c.children[parent], a)
		}
	}
	return c, nil
}

func less(a, b *Assertion) bool {
	if a.CreationBlock != b.CreationBlock {
		return a.CreationBlock < b.CreationBlock
	}
	return a.Hash.Cmp(b.Hash.Hash) < 0
}

func (c *Chain) Len() int {
	return len(c.assertions)
}

// All returns the assertions ordered by creation block.
func (c *Chain) All() []*Assertion {
	out := make([]*Assertion, len(c.assertions))
	copy(out, c.assertions)
	return out
}

func (c *Chain) Get(hash protocol.AssertionHash) (*Assertion, error) {
	a, ok := c.byHash[hash]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%#x", hash.Hash)
	}
	return a, nil
}

func (c *Chain) Has(hash protocol.AssertionHash) bool {
	_, ok := c.byHash[hash]
	return ok
}

// Parent of an assertion, or ErrNotFound if either the assertion or its
// parent is outside the snapshot.
func (c *Chain) Parent(hash protocol.AssertionHash) (*Assertion, error) {
	a, err := c.Get(hash)
	if err != nil {
		return nil, err
	}
	if a.ParentHash.IsNone() {
		return nil, errors.Wrapf(ErrNotFound, "assertion %#x has no parent", hash.Hash)
	}
	return c.Get(a.ParentHash.Unwrap())
}

// Children of an assertion ordered by creation block.
func (c *Chain) Children(hash protocol.AssertionHash) []*Assertion {
	kids := c.children[hash]
	out := make([]*Assertion, len(kids))
	copy(out, kids)
	return out
}

// Roots are the assertions whose parent is not part of the snapshot.
func (c *Chain) Roots() []*Assertion {
	var roots []*Assertion
	for _, a := range c.assertions {
		if a.ParentHash.IsNone() || !c.Has(a.ParentHash.Unwrap()) {
			roots = append(roots, a)
		}
	}
	return roots
}

// Root returns the single root of the snapshot.
func (c *Chain) Root() (*Assertion, error) {
	roots := c.Roots()
	if len(roots) != 1 {
		return nil, errors.Errorf("expected a single root assertion, found %d", len(roots))
	}
	return roots[0], nil
}

// Validate checks the tree invariant: exactly one root and no parent cycles.
func (c *Chain) Validate() error {
	if c.Len() == 0 {
		return nil
	}
	if _, err := c.Root(); err != nil {
		return err
	}
	for _, a := range c.assertions {
		seen := map[protocol.AssertionHash]bool{a.Hash: true}
		cur := a
		for cur.ParentHash.IsSome() {
			parent, ok := c.byHash[cur.ParentHash.Unwrap()]
			if !ok {
				break
			}
			if seen[parent.Hash] {
				return errors.Errorf("assertion %#x is part of a parent cycle", a.Hash.Hash)
			}
			seen[parent.Hash] = true
			cur = parent
		}
	}
	return nil
}

// LatestConfirmed is the confirmed assertion with the highest creation block.
func (c *Chain) LatestConfirmed() (*Assertion, error) {
	var latest *Assertion
	for _, a := range c.assertions {
		if a.IsConfirmed() {
			latest = a
		}
	}
	if latest == nil {
		return nil, errors.Wrap(ErrNotFound, "no confirmed assertion")
	}
	return latest, nil
}

// ChallengedSince lists challenged assertions created at or after a block.
func (c *Chain) ChallengedSince(block uint64) []*Assertion {
	var out []*Assertion
	for _, a := range c.assertions {
		if a.CreationBlock >= block && a.Challenged() {
			out = append(out, a)
		}
	}
	return out
}

// ChallengeManagers returns the distinct challenge manager addresses among
// assertions created in [from, to). A zero to means no upper bound.
func (c *Chain) ChallengeManagers(from, to uint64) []common.Address {
	seen := make(map[common.Address]bool)
	var out []common.Address
	for _, a := range c.inRange(from, to) {
		if !seen[a.ChallengeManager] {
			seen[a.ChallengeManager] = true
			out = append(out, a.ChallengeManager)
		}
	}
	return out
}

// WasmModuleRoots returns the distinct wasm module roots among assertions
// created in [from, to). A zero to means no upper bound.
func (c *Chain) WasmModuleRoots(from, to uint64) []common.Hash {
	seen := make(map[common.Hash]bool)
	var out []common.Hash
	for _, a := range c.inRange(from, to) {
		if !seen[a.WasmModuleRoot] {
			seen[a.WasmModuleRoot] = true
			out = append(out, a.WasmModuleRoot)
		}
	}
	return out
}

func (c *Chain) inRange(from, to uint64) []*Assertion {
	var out []*Assertion
	for _, a := range c.assertions {
		if a.CreationBlock < from {
			continue
		}
		if to != 0 && a.CreationBlock >= to {
			continue
		}
		out = append(out, a)
	}
	return out
}

// UnrivaledWindow of the assertion with the given hash.
func (c *Chain) UnrivaledWindow(hash protocol.AssertionHash) (uint64, error) {
	a, err := c.Get(hash)
	if err != nil {
		return 0, err
	}
	return a.UnrivaledWindow()
}
