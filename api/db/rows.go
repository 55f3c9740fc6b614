// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package db

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/bold-verifier/api"
)

const signBit = uint64(1) << 63

// sortableUint64 is stored with its top bit flipped. sqlite integers are
// signed 64 bit values, and the flip maps the whole uint64 range onto them
// without changing the order, so range filters and ORDER BY still hold for
// values the API should never serve but might.
type sortableUint64 uint64

func (v sortableUint64) Value() (driver.Value, error) {
	return int64(uint64(v) ^ signBit), nil
}

func (v *sortableUint64) Scan(src any) error {
	n, ok := src.(int64)
	if !ok {
		return fmt.Errorf("cannot scan %T into an unsigned column", src)
	}
	*v = sortableUint64(uint64(n) ^ signBit)
	return nil
}

func optionalUint64(p *uint64) *sortableUint64 {
	if p == nil {
		return nil
	}
	v := sortableUint64(*p)
	return &v
}

func optionalFromRow(p *sortableUint64) *uint64 {
	if p == nil {
		return nil
	}
	v := uint64(*p)
	return &v
}

type assertionRow struct {
	Hash                common.Hash     `db:"Hash"`
	ConfirmPeriodBlocks sortableUint64  `db:"ConfirmPeriodBlocks"`
	RequiredStake       string          `db:"RequiredStake"`
	ParentAssertionHash common.Hash     `db:"ParentAssertionHash"`
	InboxMaxCount       string          `db:"InboxMaxCount"`
	AfterInboxBatchAcc  common.Hash     `db:"AfterInboxBatchAcc"`
	WasmModuleRoot      common.Hash     `db:"WasmModuleRoot"`
	ChallengeManager    common.Address  `db:"ChallengeManager"`
	CreationBlock       sortableUint64  `db:"CreationBlock"`
	TransactionHash     common.Hash     `db:"TransactionHash"`
	FirstChildBlock     *sortableUint64 `db:"FirstChildBlock"`
	SecondChildBlock    *sortableUint64 `db:"SecondChildBlock"`
	IsFirstChild        bool            `db:"IsFirstChild"`
	Status              string          `db:"Status"`
	LastUpdatedAt       time.Time       `db:"LastUpdatedAt"`
}

func toAssertionRow(a *api.JsonAssertion) *assertionRow {
	return &assertionRow{
		Hash:                a.Hash,
		ConfirmPeriodBlocks: sortableUint64(a.ConfirmPeriodBlocks),
		RequiredStake:       a.RequiredStake,
		ParentAssertionHash: a.ParentAssertionHash,
		InboxMaxCount:       a.InboxMaxCount,
		AfterInboxBatchAcc:  a.AfterInboxBatchAcc,
		WasmModuleRoot:      a.WasmModuleRoot,
		ChallengeManager:    a.ChallengeManager,
		CreationBlock:       sortableUint64(a.CreationBlock),
		TransactionHash:     a.TransactionHash,
		FirstChildBlock:     optionalUint64(a.FirstChildBlock),
		SecondChildBlock:    optionalUint64(a.SecondChildBlock),
		IsFirstChild:        a.IsFirstChild,
		Status:              a.Status,
		LastUpdatedAt:       a.LastUpdatedAt,
	}
}

func (r *assertionRow) toJson() *api.JsonAssertion {
	return &api.JsonAssertion{
		Hash:                r.Hash,
		ConfirmPeriodBlocks: uint64(r.ConfirmPeriodBlocks),
		RequiredStake:       r.RequiredStake,
		ParentAssertionHash: r.ParentAssertionHash,
		InboxMaxCount:       r.InboxMaxCount,
		AfterInboxBatchAcc:  r.AfterInboxBatchAcc,
		WasmModuleRoot:      r.WasmModuleRoot,
		ChallengeManager:    r.ChallengeManager,
		CreationBlock:       uint64(r.CreationBlock),
		TransactionHash:     r.TransactionHash,
		FirstChildBlock:     optionalFromRow(r.FirstChildBlock),
		SecondChildBlock:    optionalFromRow(r.SecondChildBlock),
		IsFirstChild:        r.IsFirstChild,
		Status:              r.Status,
		LastUpdatedAt:       r.LastUpdatedAt,
	}
}

type edgeRow struct {
	Id                  common.Hash    `db:"Id"`
	ChallengeLevel      uint8          `db:"ChallengeLevel"`
	StartHistoryRoot    common.Hash    `db:"StartHistoryRoot"`
	StartHeight         sortableUint64 `db:"StartHeight"`
	EndHistoryRoot      common.Hash    `db:"EndHistoryRoot"`
	EndHeight           sortableUint64 `db:"EndHeight"`
	CreatedAtBlock      sortableUint64 `db:"CreatedAtBlock"`
	MutualId            common.Hash    `db:"MutualId"`
	OriginId            common.Hash    `db:"OriginId"`
	ClaimId             common.Hash    `db:"ClaimId"`
	HasChildren         bool           `db:"HasChildren"`
	LowerChildId        common.Hash    `db:"LowerChildId"`
	UpperChildId        common.Hash    `db:"UpperChildId"`
	MiniStaker          common.Address `db:"MiniStaker"`
	AssertionHash       common.Hash    `db:"AssertionHash"`
	TimeUnrivaled       sortableUint64 `db:"TimeUnrivaled"`
	HasRival            bool           `db:"HasRival"`
	Status              string         `db:"Status"`
	HasLengthOneRival   bool           `db:"HasLengthOneRival"`
	LastUpdatedAt       time.Time      `db:"LastUpdatedAt"`
	IsRoyal             bool           `db:"IsRoyal"`
	Ancestors           api.Hashes     `db:"Ancestors"`
	CumulativePathTimer sortableUint64 `db:"CumulativePathTimer"`
}

func toEdgeRow(e *api.JsonEdge) *edgeRow {
	return &edgeRow{
		Id:                  e.Id,
		ChallengeLevel:      e.ChallengeLevel,
		StartHistoryRoot:    e.StartHistoryRoot,
		StartHeight:         sortableUint64(e.StartHeight),
		EndHistoryRoot:      e.EndHistoryRoot,
		EndHeight:           sortableUint64(e.EndHeight),
		CreatedAtBlock:      sortableUint64(e.CreatedAtBlock),
		MutualId:            e.MutualId,
		OriginId:            e.OriginId,
		ClaimId:             e.ClaimId,
		HasChildren:         e.HasChildren,
		LowerChildId:        e.LowerChildId,
		UpperChildId:        e.UpperChildId,
		MiniStaker:          e.MiniStaker,
		AssertionHash:       e.AssertionHash,
		TimeUnrivaled:       sortableUint64(e.TimeUnrivaled),
		HasRival:            e.HasRival,
		Status:              e.Status,
		HasLengthOneRival:   e.HasLengthOneRival,
		LastUpdatedAt:       e.LastUpdatedAt,
		IsRoyal:             e.IsRoyal,
		Ancestors:           e.Ancestors,
		CumulativePathTimer: sortableUint64(e.CumulativePathTimer),
	}
}

func (r *edgeRow) toJson() *api.JsonEdge {
	return &api.JsonEdge{
		Id:                  r.Id,
		ChallengeLevel:      r.ChallengeLevel,
		StartHistoryRoot:    r.StartHistoryRoot,
		StartHeight:         uint64(r.StartHeight),
		EndHistoryRoot:      r.EndHistoryRoot,
		EndHeight:           uint64(r.EndHeight),
		CreatedAtBlock:      uint64(r.CreatedAtBlock),
		MutualId:            r.MutualId,
		OriginId:            r.OriginId,
		ClaimId:             r.ClaimId,
		HasChildren:         r.HasChildren,
		LowerChildId:        r.LowerChildId,
		UpperChildId:        r.UpperChildId,
		MiniStaker:          r.MiniStaker,
		AssertionHash:       r.AssertionHash,
		TimeUnrivaled:       uint64(r.TimeUnrivaled),
		HasRival:            r.HasRival,
		Status:              r.Status,
		HasLengthOneRival:   r.HasLengthOneRival,
		LastUpdatedAt:       r.LastUpdatedAt,
		IsRoyal:             r.IsRoyal,
		Ancestors:           r.Ancestors,
		CumulativePathTimer: uint64(r.CumulativePathTimer),
	}
}
