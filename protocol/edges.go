// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type OriginId common.Hash
type MutualId common.Hash
type ClaimId common.Hash

// EdgeId uniquely identifies an edge within a challenge.
type EdgeId struct {
	common.Hash
}

// ChallengeLevel of an edge. Level 0 is the block challenge, every level above
// it is a subchallenge over a smaller range of computation.
type ChallengeLevel uint8

const BlockChallengeLevel ChallengeLevel = 0

func (l ChallengeLevel) IsBlockChallenge() bool {
	return l == BlockChallengeLevel
}

// Height if defined as the height of a history commitment in the specification.
// Heights are 0-indexed.
type Height uint64

// Commitment is a history commitment bounding an edge: a height and the
// merkle root of the history up to it.
type Commitment struct {
	Height Height
	Hash   common.Hash
}

// String renders the commitment in the "height:hash" format the API accepts
// for start_commitment and end_commitment filters.
func (c Commitment) String() string {
	return fmt.Sprintf("%d:%s", c.Height, c.Hash.Hex())
}

// ParseCommitment parses the "height:hash" format, e.g. 32:0xdeadbeef.
func ParseCommitment(s string) (Commitment, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Commitment{}, fmt.Errorf("commitment %q is not of the form height:hash", s)
	}
	height, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Commitment{}, fmt.Errorf("could not parse commitment height %q: %w", parts[0], err)
	}
	hash, err := hexutil.Decode(parts[1])
	if err != nil {
		return Commitment{}, fmt.Errorf("could not parse commitment hash %q: %w", parts[1], err)
	}
	return Commitment{Height: Height(height), Hash: common.BytesToHash(hash)}, nil
}

// EdgeStatus of an edge in the protocol.
type EdgeStatus uint8

const (
	EdgePending EdgeStatus = iota
	EdgeConfirmable
	EdgeConfirmed
)

func (s EdgeStatus) String() string {
	switch s {
	case EdgePending:
		return "pending"
	case EdgeConfirmable:
		return "confirmable"
	case EdgeConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func ParseEdgeStatus(s string) (EdgeStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return EdgePending, nil
	case "confirmable":
		return EdgeConfirmable, nil
	case "confirmed":
		return EdgeConfirmed, nil
	default:
		return EdgePending, fmt.Errorf("unknown edge status %q", s)
	}
}
