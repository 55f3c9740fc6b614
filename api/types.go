// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package api holds the wire records served by the BOLD query API and their
// conversion into the verifier's model types.
package api

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type JsonAssertion struct {
	Hash                common.Hash    `json:"hash" db:"Hash"`
	ConfirmPeriodBlocks uint64         `json:"confirmPeriodBlocks" db:"ConfirmPeriodBlocks"`
	RequiredStake       string         `json:"requiredStake" db:"RequiredStake"`
	ParentAssertionHash common.Hash    `json:"parentAssertionHash" db:"ParentAssertionHash"`
	InboxMaxCount       string         `json:"inboxMaxCount" db:"InboxMaxCount"`
	AfterInboxBatchAcc  common.Hash    `json:"afterInboxBatchAcc" db:"AfterInboxBatchAcc"`
	WasmModuleRoot      common.Hash    `json:"wasmModuleRoot" db:"WasmModuleRoot"`
	ChallengeManager    common.Address `json:"challengeManager" db:"ChallengeManager"`
	CreationBlock       uint64         `json:"creationBlock" db:"CreationBlock"`
	TransactionHash     common.Hash    `json:"transactionHash" db:"TransactionHash"`
	FirstChildBlock     *uint64        `json:"firstChildBlock" db:"FirstChildBlock"`
	SecondChildBlock    *uint64        `json:"secondChildBlock" db:"SecondChildBlock"`
	IsFirstChild        bool           `json:"isFirstChild" db:"IsFirstChild"`
	Status              string         `json:"status" db:"Status"`
	LastUpdatedAt       time.Time      `json:"lastUpdatedAt" db:"LastUpdatedAt"`
}

type JsonEdge struct {
	Id                common.Hash    `json:"id" db:"Id"`
	ChallengeLevel    uint8          `json:"challengeLevel" db:"ChallengeLevel"`
	StartHistoryRoot  common.Hash    `json:"startHistoryRoot" db:"StartHistoryRoot"`
	StartHeight       uint64         `json:"startHeight" db:"StartHeight"`
	EndHistoryRoot    common.Hash    `json:"endHistoryRoot" db:"EndHistoryRoot"`
	EndHeight         uint64         `json:"endHeight" db:"EndHeight"`
	CreatedAtBlock    uint64         `json:"createdAtBlock" db:"CreatedAtBlock"`
	MutualId          common.Hash    `json:"mutualId" db:"MutualId"`
	OriginId          common.Hash    `json:"originId" db:"OriginId"`
	ClaimId           common.Hash    `json:"claimId" db:"ClaimId"`
	HasChildren       bool           `json:"hasChildren" db:"HasChildren"`
	LowerChildId      common.Hash    `json:"lowerChildId" db:"LowerChildId"`
	UpperChildId      common.Hash    `json:"upperChildId" db:"UpperChildId"`
	MiniStaker        common.Address `json:"miniStaker" db:"MiniStaker"`
	AssertionHash     common.Hash    `json:"assertionHash" db:"AssertionHash"`
	TimeUnrivaled     uint64         `json:"timeUnrivaled" db:"TimeUnrivaled"`
	HasRival          bool           `json:"hasRival" db:"HasRival"`
	Status            string         `json:"status" db:"Status"`
	HasLengthOneRival bool           `json:"hasLengthOneRival" db:"HasLengthOneRival"`
	LastUpdatedAt     time.Time      `json:"lastUpdatedAt" db:"LastUpdatedAt"`
	// Honest validator's point of view
	IsRoyal             bool   `json:"isRoyal" db:"IsRoyal"`
	Ancestors           Hashes `json:"ancestors" db:"Ancestors"`
	CumulativePathTimer uint64 `json:"cumulativePathTimer" db:"CumulativePathTimer"`
}

// JsonTrackedRoyalEdge is a royal edge as tracked in memory by a running
// validator. Its ancestors run across challenge levels.
type JsonTrackedRoyalEdge struct {
	Id                  common.Hash    `json:"id"`
	ChallengeLevel      uint8          `json:"challengeLevel"`
	StartHistoryRoot    common.Hash    `json:"startHistoryRoot"`
	StartHeight         uint64         `json:"startHeight"`
	EndHistoryRoot      common.Hash    `json:"endHistoryRoot"`
	EndHeight           uint64         `json:"endHeight"`
	CreatedAtBlock      uint64         `json:"createdAtBlock"`
	MutualId            common.Hash    `json:"mutualId"`
	OriginId            common.Hash    `json:"originId"`
	ClaimId             common.Hash    `json:"claimId"`
	MiniStaker          common.Address `json:"miniStaker"`
	HasRival            bool           `json:"hasRival"`
	TimeUnrivaled       uint64         `json:"timeUnrivaled"`
	CumulativePathTimer uint64         `json:"cumulativePathTimer"`
	Ancestors           []common.Hash  `json:"ancestors"`
}

type JsonEdgesByChallengedAssertion struct {
	AssertionHash common.Hash             `json:"assertionHash"`
	RoyalEdges    []*JsonTrackedRoyalEdge `json:"royalEdges"`
}

type JsonMiniStakes struct {
	ChallengedAssertionHash common.Hash                    `json:"challengedAssertionHash"`
	StakesByLvlAndOrigin    map[uint8][]*JsonMiniStakeInfo `json:"stakesByLvlAndOrigin"`
}

type JsonMiniStakeInfo struct {
	ChallengeOriginId  common.Hash      `json:"challengeOriginId"`
	StakerAddresses    []common.Address `json:"stakerAddresses"`
	NumberOfMiniStakes uint64           `json:"numberOfMiniStakes"`
}

// Hashes is a list of hashes stored as a JSON array in a single column.
type Hashes []common.Hash

func (h Hashes) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	enc, err := json.Marshal([]common.Hash(h))
	if err != nil {
		return nil, err
	}
	return string(enc), nil
}

func (h *Hashes) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into hashes", src)
	}
	var out []common.Hash
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		out = nil
	}
	*h = out
	return nil
}
