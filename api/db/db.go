// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package db stores BOLD API records in sqlite so that a recorded snapshot can
// be queried with the same filters the live API supports.
package db

import (
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/offchainlabs/bold-verifier/api"
	"github.com/offchainlabs/bold-verifier/containers/option"
	"github.com/offchainlabs/bold-verifier/protocol"
)

// InMemory opens a database that lives only as long as the process.
const InMemory = ":memory:"

var (
	ErrNoAssertionForEdge = errors.New("no matching assertion found for edge")
)

type Database interface {
	ReadOnlyDatabase
	InsertEdges(edges []*api.JsonEdge) error
	InsertEdge(edge *api.JsonEdge) error
	InsertAssertions(assertions []*api.JsonAssertion) error
	InsertAssertion(assertion *api.JsonAssertion) error
}

type ReadOnlyDatabase interface {
	GetAssertions(opts ...AssertionOption) ([]*api.JsonAssertion, error)
	GetChallengedAssertions(opts ...AssertionOption) ([]*api.JsonAssertion, error)
	LatestConfirmedAssertion() (*api.JsonAssertion, error)
	GetEdges(opts ...EdgeOption) ([]*api.JsonEdge, error)
	GetMiniStakes(assertionHash protocol.AssertionHash, opts ...EdgeOption) (*api.JsonMiniStakes, error)
}

type SqliteDatabase struct {
	sqlDB *sqlx.DB
}

func NewDatabase(path string) (*SqliteDatabase, error) {
	if path != InMemory {
		//#nosec G304
		if _, err := os.Stat(path); err != nil {
			f, err := os.Create(path)
			if err != nil {
				return nil, err
			}
			if err := f.Close(); err != nil {
				return nil, err
			}
		}
	}
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if path == InMemory {
		// Every new connection to :memory: is a fresh, empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "could not create schema")
	}
	return &SqliteDatabase{sqlDB: db}, nil
}

// Load inserts every assertion and edge of a snapshot.
func (d *SqliteDatabase) Load(s *api.Snapshot) error {
	if err := d.InsertAssertions(s.Assertions); err != nil {
		return err
	}
	return d.InsertEdges(s.Edges)
}

func (d *SqliteDatabase) Close() error {
	return d.sqlDB.Close()
}

type AssertionQuery struct {
	filters           []string
	args              []interface{}
	limit             int
	offset            int
	orderBy           string
	fromCreationBlock option.Option[uint64]
	toCreationBlock   option.Option[uint64]
	forceUpdate       bool
}

func NewAssertionQuery(opts ...AssertionOption) *AssertionQuery {
	query := &AssertionQuery{
		fromCreationBlock: option.None[uint64](),
		toCreationBlock:   option.None[uint64](),
	}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// ShouldForceUpdate is recorded for parity with the live API. A replayed
// snapshot never changes, so it has no effect on the query.
func (q *AssertionQuery) ShouldForceUpdate() bool {
	return q.forceUpdate
}

type AssertionOption func(*AssertionQuery)

func WithAssertionForceUpdate() AssertionOption {
	return func(q *AssertionQuery) {
		q.forceUpdate = true
	}
}
func WithChallenge() AssertionOption {
	return func(q *AssertionQuery) {
		q.filters = append(q.filters, "SecondChildBlock IS NOT NULL AND SecondChildBlock != ?")
		q.args = append(q.args, sortableUint64(0))
	}
}
func WithAssertionHash(hash protocol.AssertionHash) AssertionOption {
	return func(q *AssertionQuery) {
		q.filters = append(q.filters, "Hash = ?")
		q.args = append(q.args, hash.Hash)
	}
}
func WithParentAssertionHash(hash protocol.AssertionHash) AssertionOption {
	return func(q *AssertionQuery) {
		q.filters = append(q.filters, "ParentAssertionHash = ?")
		q.args = append(q.args, hash.Hash)
	}
}
func WithInboxMaxCount(inboxMaxCount string) AssertionOption {
	return func(q *AssertionQuery) {
		q.filters = append(q.filters, "InboxMaxCount = ?")
		q.args = append(q.args, inboxMaxCount)
	}
}
func WithWasmModuleRoot(wasmModuleRoot common.Hash) AssertionOption {
	return func(q *AssertionQuery) {
		q.filters = append(q.filters, "WasmModuleRoot = ?")
		q.args = append(q.args, wasmModuleRoot)
	}
}
func WithChallengeManager(challengeManager common.Address) AssertionOption {
	return func(q *AssertionQuery) {
		q.filters = append(q.filters, "ChallengeManager = ?")
		q.args = append(q.args, challengeManager)
	}
}
func WithAssertionStatus(status protocol.AssertionStatus) AssertionOption {
	return func(q *AssertionQuery) {
		q.filters = append(q.filters, "Status = ?")
		q.args = append(q.args, status.String())
	}
}
func FromAssertionCreationBlock(n uint64) AssertionOption {
	return func(q *AssertionQuery) {
		q.fromCreationBlock = option.Some(n)
	}
}

// ToAssertionCreationBlock caps results to assertions created up to and
// including block n.
func ToAssertionCreationBlock(n uint64) AssertionOption {
	return func(q *AssertionQuery) {
		q.toCreationBlock = option.Some(n)
	}
}
func WithAssertionLimit(limit int) AssertionOption {
	return func(q *AssertionQuery) {
		q.limit = limit
	}
}
func WithAssertionOffset(offset int) AssertionOption {
	return func(q *AssertionQuery) {
		q.offset = offset
	}
}
func WithAssertionOrderBy(orderBy string) AssertionOption {
	return func(q *AssertionQuery) {
		q.orderBy = orderBy
	}
}

func (q *AssertionQuery) ToSQL() (string, []interface{}) {
	filters := append([]string{}, q.filters...)
	args := append([]interface{}{}, q.args...)
	if q.fromCreationBlock.IsSome() {
		filters = append(filters, "CreationBlock >= ?")
		args = append(args, sortableUint64(q.fromCreationBlock.Unwrap()))
	}
	if q.toCreationBlock.IsSome() {
		filters = append(filters, "CreationBlock <= ?")
		args = append(args, sortableUint64(q.toCreationBlock.Unwrap()))
	}
	orderBy := q.orderBy
	if orderBy == "" {
		orderBy = "CreationBlock ASC, Hash ASC"
	}
	return buildSelect("Assertions", filters, orderBy, q.limit, q.offset, args)
}

func buildSelect(table string, filters []string, orderBy string, limit, offset int, args []interface{}) (string, []interface{}) {
	baseQuery := "SELECT * FROM " + table
	if len(filters) > 0 {
		baseQuery += " WHERE " + strings.Join(filters, " AND ")
	}
	baseQuery += " ORDER BY " + orderBy
	switch {
	case limit > 0:
		baseQuery += " LIMIT ?"
		args = append(args, limit)
	case offset > 0:
		// sqlite only accepts an offset after a limit.
		baseQuery += " LIMIT -1"
	}
	if offset > 0 {
		baseQuery += " OFFSET ?"
		args = append(args, offset)
	}
	return baseQuery, args
}

func (d *SqliteDatabase) GetAssertions(opts ...AssertionOption) ([]*api.JsonAssertion, error) {
	query := NewAssertionQuery(opts...)
	sql, args := query.ToSQL()
	rows := make([]*assertionRow, 0)
	if err := d.sqlDB.Select(&rows, sql, args...); err != nil {
		return nil, err
	}
	assertions := make([]*api.JsonAssertion, len(rows))
	for i, r := range rows {
		assertions[i] = r.toJson()
	}
	return assertions, nil
}

func (d *SqliteDatabase) GetChallengedAssertions(opts ...AssertionOption) ([]*api.JsonAssertion, error) {
	return d.GetAssertions(append(opts, WithChallenge())...)
}

func (d *SqliteDatabase) LatestConfirmedAssertion() (*api.JsonAssertion, error) {
	assertions, err := d.GetAssertions(
		WithAssertionStatus(protocol.AssertionConfirmed),
		WithAssertionOrderBy("CreationBlock DESC, Hash ASC"),
		WithAssertionLimit(1),
	)
	if err != nil {
		return nil, err
	}
	if len(assertions) == 0 {
		return nil, errors.New("no confirmed assertion")
	}
	return assertions[0], nil
}

type EdgeQuery struct {
	filters           []string
	args              []interface{}
	limit             int
	offset            int
	orderBy           string
	fromCreationBlock option.Option[uint64]
	toCreationBlock   option.Option[uint64]
	forceUpdate       bool
}

func (q *EdgeQuery) ShouldForceUpdate() bool {
	return q.forceUpdate
}

func NewEdgeQuery(opts ...EdgeOption) *EdgeQuery {
	query := &EdgeQuery{
		fromCreationBlock: option.None[uint64](),
		toCreationBlock:   option.None[uint64](),
	}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

type EdgeOption func(e *EdgeQuery)

func WithId(id protocol.EdgeId) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "Id = ?")
		q.args = append(q.args, id.Hash)
	}
}
func WithChallengeLevel(level uint8) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "ChallengeLevel = ?")
		q.args = append(q.args, level)
	}
}
func WithOriginId(originId protocol.OriginId) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "OriginId = ?")
		q.args = append(q.args, common.Hash(originId))
	}
}
func WithStartHistoryCommitment(c protocol.Commitment) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "StartHistoryRoot = ?", "StartHeight = ?")
		q.args = append(q.args, c.Hash, sortableUint64(c.Height))
	}
}
func WithEndHistoryCommitment(c protocol.Commitment) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "EndHistoryRoot = ?", "EndHeight = ?")
		q.args = append(q.args, c.Hash, sortableUint64(c.Height))
	}
}
func WithStartHeight(n uint64) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "StartHeight = ?")
		q.args = append(q.args, sortableUint64(n))
	}
}
func WithEndHeight(n uint64) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "EndHeight = ?")
		q.args = append(q.args, sortableUint64(n))
	}
}
func WithMutualId(mutualId protocol.MutualId) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "MutualId = ?")
		q.args = append(q.args, common.Hash(mutualId))
	}
}
func WithClaimId(claimId protocol.ClaimId) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "ClaimId = ?")
		q.args = append(q.args, common.Hash(claimId))
	}
}
func WithMiniStakerDefined() EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "MiniStaker != ?")
		q.args = append(q.args, common.Address{})
	}
}
func WithEdgeAssertionHash(hash protocol.AssertionHash) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "AssertionHash = ?")
		q.args = append(q.args, hash.Hash)
	}
}
func WithRival(rivaled bool) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "HasRival = ?")
		q.args = append(q.args, rivaled)
	}
}

// WithSubchallenge keeps edges that are claimed by a root edge one level up.
func WithSubchallenge() EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "EXISTS (SELECT 1 FROM Edges c WHERE c.ClaimId = Edges.Id AND c.ChallengeLevel > 0)")
	}
}
func WithEdgeStatus(st protocol.EdgeStatus) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "Status = ?")
		q.args = append(q.args, st.String())
	}
}
func WithRoyal(royal bool) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "IsRoyal = ?")
		q.args = append(q.args, royal)
	}
}
func WithEdgeForceUpdate() EdgeOption {
	return func(q *EdgeQuery) {
		q.forceUpdate = true
	}
}
func WithRootEdges() EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "ClaimId != ?")
		q.args = append(q.args, common.Hash{})
	}
}
func WithPathTimerGreaterOrEq(n uint64) EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "CumulativePathTimer >= ?")
		q.args = append(q.args, sortableUint64(n))
	}
}
func FromEdgeCreationBlock(n uint64) EdgeOption {
	return func(q *EdgeQuery) {
		q.fromCreationBlock = option.Some(n)
	}
}
func ToEdgeCreationBlock(n uint64) EdgeOption {
	return func(q *EdgeQuery) {
		q.toCreationBlock = option.Some(n)
	}
}
func WithLengthOneRival() EdgeOption {
	return func(q *EdgeQuery) {
		q.filters = append(q.filters, "HasLengthOneRival = ?")
		q.args = append(q.args, true)
	}
}
func WithLimit(limit int) EdgeOption {
	return func(q *EdgeQuery) {
		q.limit = limit
	}
}
func WithOffset(offset int) EdgeOption {
	return func(q *EdgeQuery) {
		q.offset = offset
	}
}
func WithOrderBy(orderBy string) EdgeOption {
	return func(q *EdgeQuery) {
		q.orderBy = orderBy
	}
}

func (q *EdgeQuery) ToSQL() (string, []interface{}) {
	filters := append([]string{}, q.filters...)
	args := append([]interface{}{}, q.args...)
	if q.fromCreationBlock.IsSome() {
		filters = append(filters, "CreatedAtBlock >= ?")
		args = append(args, sortableUint64(q.fromCreationBlock.Unwrap()))
	}
	if q.toCreationBlock.IsSome() {
		filters = append(filters, "CreatedAtBlock <= ?")
		args = append(args, sortableUint64(q.toCreationBlock.Unwrap()))
	}
	orderBy := q.orderBy
	if orderBy == "" {
		orderBy = "ChallengeLevel ASC, CreatedAtBlock ASC, Id ASC"
	}
	return buildSelect("Edges", filters, orderBy, q.limit, q.offset, args)
}

func (d *SqliteDatabase) GetEdges(opts ...EdgeOption) ([]*api.JsonEdge, error) {
	query := NewEdgeQuery(opts...)
	sql, args := query.ToSQL()
	rows := make([]*edgeRow, 0)
	if err := d.sqlDB.Select(&rows, sql, args...); err != nil {
		return nil, err
	}
	edges := make([]*api.JsonEdge, len(rows))
	for i, r := range rows {
		edges[i] = r.toJson()
	}
	return edges, nil
}

// GetMiniStakes groups the ministakers of the root edges of a challenge by
// challenge level and origin id.
func (d *SqliteDatabase) GetMiniStakes(assertionHash protocol.AssertionHash, opts ...EdgeOption) (*api.JsonMiniStakes, error) {
	opts = append(
		opts,
		WithEdgeAssertionHash(assertionHash),
		WithRootEdges(),
		WithMiniStakerDefined(),
	)
	edges, err := d.GetEdges(opts...)
	if err != nil {
		return nil, err
	}
	type key struct {
		level  uint8
		origin common.Hash
	}
	stakes := make(map[key]*api.JsonMiniStakeInfo)
	seen := make(map[key]map[common.Address]bool)
	resp := &api.JsonMiniStakes{
		ChallengedAssertionHash: assertionHash.Hash,
		StakesByLvlAndOrigin:    make(map[uint8][]*api.JsonMiniStakeInfo),
	}
	for _, e := range edges {
		k := key{level: e.ChallengeLevel, origin: e.OriginId}
		info, ok := stakes[k]
		if !ok {
			info = &api.JsonMiniStakeInfo{
				ChallengeOriginId: e.OriginId,
				StakerAddresses:   make([]common.Address, 0),
			}
			stakes[k] = info
			seen[k] = make(map[common.Address]bool)
			resp.StakesByLvlAndOrigin[k.level] = append(resp.StakesByLvlAndOrigin[k.level], info)
		}
		if !seen[k][e.MiniStaker] {
			seen[k][e.MiniStaker] = true
			info.StakerAddresses = append(info.StakerAddresses, e.MiniStaker)
		}
		info.NumberOfMiniStakes++
	}
	return resp, nil
}

func (d *SqliteDatabase) InsertAssertions(assertions []*api.JsonAssertion) error {
	tx, err := d.sqlDB.Beginx()
	if err != nil {
		return err
	}
	for _, a := range assertions {
		if _, err := tx.NamedExec(insertAssertionQuery, toAssertionRow(a)); err != nil {
			if err2 := tx.Rollback(); err2 != nil {
				return err2
			}
			return errors.Wrapf(err, "assertion_hash=%#x", a.Hash)
		}
	}
	return tx.Commit()
}

func (d *SqliteDatabase) InsertAssertion(a *api.JsonAssertion) error {
	_, err := d.sqlDB.NamedExec(insertAssertionQuery, toAssertionRow(a))
	return err
}

const insertAssertionQuery = `INSERT INTO Assertions (
        Hash, ConfirmPeriodBlocks, RequiredStake, ParentAssertionHash, InboxMaxCount,
        AfterInboxBatchAcc, WasmModuleRoot, ChallengeManager, CreationBlock, TransactionHash,
        FirstChildBlock, SecondChildBlock, IsFirstChild, Status, LastUpdatedAt
    ) VALUES (
        :Hash, :ConfirmPeriodBlocks, :RequiredStake, :ParentAssertionHash, :InboxMaxCount,
        :AfterInboxBatchAcc, :WasmModuleRoot, :ChallengeManager, :CreationBlock, :TransactionHash,
        :FirstChildBlock, :SecondChildBlock, :IsFirstChild, :Status, :LastUpdatedAt
    )`

const insertEdgeQuery = `INSERT INTO Edges (
	   Id, ChallengeLevel, OriginId, StartHistoryRoot, StartHeight,
	   EndHistoryRoot, EndHeight, CreatedAtBlock, MutualId, ClaimId,
	   HasChildren, LowerChildId, UpperChildId, MiniStaker, AssertionHash,
	   TimeUnrivaled, HasRival, Status, HasLengthOneRival, LastUpdatedAt,
	   IsRoyal, Ancestors, CumulativePathTimer
   ) VALUES (
	   :Id, :ChallengeLevel, :OriginId, :StartHistoryRoot, :StartHeight,
	   :EndHistoryRoot, :EndHeight, :CreatedAtBlock, :MutualId, :ClaimId,
	   :HasChildren, :LowerChildId, :UpperChildId, :MiniStaker, :AssertionHash,
	   :TimeUnrivaled, :HasRival, :Status, :HasLengthOneRival, :LastUpdatedAt,
	   :IsRoyal, :Ancestors, :CumulativePathTimer
   )`

func (d *SqliteDatabase) InsertEdges(edges []*api.JsonEdge) error {
	tx, err := d.sqlDB.Beginx()
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := insertEdge(tx, e); err != nil {
			if err2 := tx.Rollback(); err2 != nil {
				return err2
			}
			return err
		}
	}
	return tx.Commit()
}

func (d *SqliteDatabase) InsertEdge(edge *api.JsonEdge) error {
	tx, err := d.sqlDB.Beginx()
	if err != nil {
		return err
	}
	if err := insertEdge(tx, edge); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return err2
		}
		return err
	}
	return tx.Commit()
}

func insertEdge(tx *sqlx.Tx, edge *api.JsonEdge) error {
	var assertionExists int
	if err := tx.Get(&assertionExists, "SELECT COUNT(*) FROM Assertions WHERE Hash = ?", edge.AssertionHash); err != nil {
		return err
	}
	if assertionExists == 0 {
		return errors.Wrapf(ErrNoAssertionForEdge, "edge_id=%#x, assertion_hash=%#x", edge.Id, edge.AssertionHash)
	}
	if _, err := tx.NamedExec(insertEdgeQuery, toEdgeRow(edge)); err != nil {
		return errors.Wrapf(err, "edge_id=%#x", edge.Id)
	}
	return nil
}
