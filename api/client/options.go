// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package client

import (
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/bold-verifier/protocol"
)

// QueryOption sets one query parameter of a list request.
type QueryOption func(url.Values)

func flagParam(name string) QueryOption {
	return func(v url.Values) {
		v.Set(name, "true")
	}
}

func uintParam(name string, n uint64) QueryOption {
	return func(v url.Values) {
		v.Set(name, strconv.FormatUint(n, 10))
	}
}

func boolParam(name string, b bool) QueryOption {
	return func(v url.Values) {
		v.Set(name, strconv.FormatBool(b))
	}
}

func hashParam(name string, h common.Hash) QueryOption {
	return func(v url.Values) {
		v.Set(name, h.Hex())
	}
}

func Limit(n int) QueryOption {
	return func(v url.Values) {
		v.Set("limit", strconv.Itoa(n))
	}
}

func Offset(n int) QueryOption {
	return func(v url.Values) {
		v.Set("offset", strconv.Itoa(n))
	}
}

func FromBlock(n uint64) QueryOption { return uintParam("from_block_number", n) }
func ToBlock(n uint64) QueryOption   { return uintParam("to_block_number", n) }
func ForceUpdate() QueryOption       { return flagParam("force_update") }

// Assertion filters.

func InboxMaxCount(count string) QueryOption {
	return func(v url.Values) {
		v.Set("inbox_max_count", count)
	}
}

func Challenged() QueryOption { return flagParam("challenged") }

// Edge filters.

func Status(s protocol.EdgeStatus) QueryOption {
	return func(v url.Values) {
		v.Set("status", s.String())
	}
}

func Royal(b bool) QueryOption            { return boolParam("royal", b) }
func Rivaled(b bool) QueryOption          { return boolParam("rivaled", b) }
func RootEdges() QueryOption              { return flagParam("root_edges") }
func HasLengthOneRival() QueryOption      { return flagParam("has_length_one_rival") }
func OnlySubchallengedEdges() QueryOption { return flagParam("only_subchallenged_edges") }
func PathTimerGeq(n uint64) QueryOption   { return uintParam("path_timer_geq", n) }
func StartHeight(n uint64) QueryOption    { return uintParam("start_height", n) }
func EndHeight(n uint64) QueryOption      { return uintParam("end_height", n) }

func OriginId(id protocol.OriginId) QueryOption {
	return hashParam("origin_id", common.Hash(id))
}

func MutualId(id protocol.MutualId) QueryOption {
	return hashParam("mutual_id", common.Hash(id))
}

func ClaimId(id protocol.ClaimId) QueryOption {
	return hashParam("claim_id", common.Hash(id))
}

func StartCommitment(c protocol.Commitment) QueryOption {
	return func(v url.Values) {
		v.Set("start_commitment", c.String())
	}
}

func EndCommitment(c protocol.Commitment) QueryOption {
	return func(v url.Values) {
		v.Set("end_commitment", c.String())
	}
}

func ChallengeLevel(lvl protocol.ChallengeLevel) QueryOption {
	return uintParam("challenge_level", uint64(lvl))
}
