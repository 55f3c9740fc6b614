// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package protocol defines the identifiers and enums shared by the assertion
// chain and challenge edge models. Values here mirror what the BOLD API serves
// and are never interpreted beyond equality and ordering.
package protocol

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssertionHash represents a unique identifier for an assertion
// constructed as a keccak256 hash of some of its internals.
type AssertionHash struct {
	common.Hash
}

// LatestConfirmedIdentifier is the sentinel accepted by the API in place of
// an assertion hash.
const LatestConfirmedIdentifier = "latest-confirmed"

// AssertionStatus represents the enum with the same name
// in the protocol smart contracts.
type AssertionStatus uint8

const (
	NoAssertion AssertionStatus = iota
	AssertionPending
	AssertionConfirmed
	AssertionRejected
)

func (s AssertionStatus) String() string {
	switch s {
	case NoAssertion:
		return "no_assertion"
	case AssertionPending:
		return "pending"
	case AssertionConfirmed:
		return "confirmed"
	case AssertionRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseAssertionStatus accepts the lowercase names produced by String as well
// as the capitalized names some API versions emit.
func ParseAssertionStatus(s string) (AssertionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no_assertion", "noassertion":
		return NoAssertion, nil
	case "pending":
		return AssertionPending, nil
	case "confirmed":
		return AssertionConfirmed, nil
	case "rejected":
		return AssertionRejected, nil
	default:
		return NoAssertion, fmt.Errorf("unknown assertion status %q", s)
	}
}
