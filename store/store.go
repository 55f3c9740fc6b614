// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package store keeps a history of verification runs in sqlite, so that watch
// mode can compare a pass against the previous one across restarts.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/bold-verifier/report"
)

var ErrNoRuns = errors.New("no runs recorded")

// challengeWide marks findings that belong to no origin report.
const challengeWide = -1

type Config struct {
	Path string `koanf:"path"`
}

var ConfigDefault = Config{
	Path: "",
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".path", ConfigDefault.Path, "sqlite file to record verification runs in (empty disables history)")
}

func (c *Config) Enabled() bool {
	return c.Path != ""
}

// Run is one recorded verification pass.
type Run struct {
	Id            int64
	AssertionHash common.Hash
	SnapshotBlock uint64
	EdgesChecked  int
	Violations    int
	CreatedAt     time.Time
}

// decimal is a uint64 column kept as text, since sqlite integers stop at
// math.MaxInt64 and the values come straight from the API.
type decimal uint64

func (d decimal) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(d), 10), nil
}

func (d *decimal) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return fmt.Errorf("cannot scan %T into a decimal column", src)
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return err
	}
	*d = decimal(n)
	return nil
}

type runRow struct {
	Id            int64       `db:"Id"`
	AssertionHash common.Hash `db:"AssertionHash"`
	SnapshotBlock decimal     `db:"SnapshotBlock"`
	EdgesChecked  int64       `db:"EdgesChecked"`
	Violations    int64       `db:"Violations"`
	CreatedAt     time.Time   `db:"CreatedAt"`
}

type originRow struct {
	RunId           int64       `db:"RunId"`
	Position        int64       `db:"Position"`
	OriginId        common.Hash `db:"OriginId"`
	ChallengeLevel  int64       `db:"ChallengeLevel"`
	UnrivaledWindow decimal     `db:"UnrivaledWindow"`
	WindowResolved  bool        `db:"WindowResolved"`
	EdgesChecked    int64       `db:"EdgesChecked"`
}

type findingRow struct {
	RunId          int64       `db:"RunId"`
	Position       int64       `db:"Position"`
	OriginPosition int64       `db:"OriginPosition"`
	Kind           string      `db:"Kind"`
	OriginId       common.Hash `db:"OriginId"`
	EdgeId         common.Hash `db:"EdgeId"`
	ClaimId        common.Hash `db:"ClaimId"`
	Expected       decimal     `db:"Expected"`
	Actual         decimal     `db:"Actual"`
	Detail         string      `db:"Detail"`
}

type Store struct {
	sqlDB *sqlx.DB
	now   func() time.Time
}

func Open(path string) (*Store, error) {
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
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps the foreign keys pragma in effect.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, errors.Wrap(err, "could not enable foreign keys")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "could not create schema")
	}
	return &Store{sqlDB: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// SaveReport records a report as a new run and returns the run id.
func (s *Store) SaveReport(ctx context.Context, r *report.ChallengeReport) (int64, error) {
	tx, err := s.sqlDB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error("Could not roll back run insert", "err", err)
		}
	}()
	res, err := tx.NamedExecContext(ctx, insertRunQuery, &runRow{
		AssertionHash: r.AssertionHash,
		SnapshotBlock: decimal(r.SnapshotBlock),
		EdgesChecked:  int64(r.EdgesChecked),
		Violations:    int64(len(r.Violations())),
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return 0, errors.Wrap(err, "could not insert run")
	}
	runId, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	var position int64
	insertFinding := func(originPosition int64, f report.Finding) error {
		row := toFindingRow(runId, position, originPosition, f)
		position++
		if _, err := tx.NamedExecContext(ctx, insertFindingQuery, row); err != nil {
			return errors.Wrapf(err, "could not insert finding %s", f.Key())
		}
		return nil
	}
	for i, o := range r.Origins {
		if _, err := tx.NamedExecContext(ctx, insertOriginQuery, &originRow{
			RunId:           runId,
			Position:        int64(i),
			OriginId:        o.OriginId,
			ChallengeLevel:  int64(o.ChallengeLevel),
			UnrivaledWindow: decimal(o.Window),
			WindowResolved:  o.WindowResolved,
			EdgesChecked:    int64(o.EdgesChecked),
		}); err != nil {
			return 0, errors.Wrapf(err, "could not insert origin %#x", o.OriginId)
		}
		for _, f := range o.Findings {
			if err := insertFinding(int64(i), f); err != nil {
				return 0, err
			}
		}
	}
	for _, f := range r.Findings {
		if err := insertFinding(challengeWide, f); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runId, nil
}

func toFindingRow(runId, position, originPosition int64, f report.Finding) *findingRow {
	return &findingRow{
		RunId:          runId,
		Position:       position,
		OriginPosition: originPosition,
		Kind:           f.Kind.String(),
		OriginId:       f.OriginId,
		EdgeId:         f.EdgeId,
		ClaimId:        f.ClaimId,
		Expected:       decimal(f.Expected),
		Actual:         decimal(f.Actual),
		Detail:         f.Detail,
	}
}

// Runs lists the recorded runs of a challenge, newest first. A limit of zero
// returns all of them.
func (s *Store) Runs(ctx context.Context, assertionHash common.Hash, limit int) ([]*Run, error) {
	query := "SELECT * FROM Runs WHERE AssertionHash = ? ORDER BY Id DESC"
	args := []any{assertionHash}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var rows []*runRow
	if err := s.sqlDB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toRun()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (r *runRow) toRun() (*Run, error) {
	edges, err := safecast.ToInt(r.EdgesChecked)
	if err != nil {
		return nil, errors.Wrapf(err, "edges checked by run %d", r.Id)
	}
	violations, err := safecast.ToInt(r.Violations)
	if err != nil {
		return nil, errors.Wrapf(err, "violations of run %d", r.Id)
	}
	return &Run{
		Id:            r.Id,
		AssertionHash: r.AssertionHash,
		SnapshotBlock: uint64(r.SnapshotBlock),
		EdgesChecked:  edges,
		Violations:    violations,
		CreatedAt:     r.CreatedAt,
	}, nil
}

// LatestReport rebuilds the report of the newest run for a challenge.
func (s *Store) LatestReport(ctx context.Context, assertionHash common.Hash) (*report.ChallengeReport, error) {
	runs, err := s.Runs(ctx, assertionHash, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.Wrapf(ErrNoRuns, "assertion %#x", assertionHash)
	}
	return s.Report(ctx, runs[0].Id)
}

// Report rebuilds the report recorded by a run.
func (s *Store) Report(ctx context.Context, runId int64) (*report.ChallengeReport, error) {
	run := &runRow{}
	if err := s.sqlDB.GetContext(ctx, run, "SELECT * FROM Runs WHERE Id = ?", runId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNoRuns, "run %d", runId)
		}
		return nil, err
	}
	r := &report.ChallengeReport{
		AssertionHash: run.AssertionHash,
		SnapshotBlock: uint64(run.SnapshotBlock),
		EdgesChecked:  int(run.EdgesChecked),
	}

	var origins []*originRow
	if err := s.sqlDB.SelectContext(ctx, &origins, "SELECT * FROM Origins WHERE RunId = ? ORDER BY Position ASC", runId); err != nil {
		return nil, err
	}
	byPosition := make(map[int64]*report.OriginReport, len(origins))
	for _, o := range origins {
		level, err := safecast.ToUint8(o.ChallengeLevel)
		if err != nil {
			return nil, err
		}
		or := &report.OriginReport{
			OriginId:       o.OriginId,
			ChallengeLevel: level,
			Window:         uint64(o.UnrivaledWindow),
			WindowResolved: o.WindowResolved,
			EdgesChecked:   int(o.EdgesChecked),
		}
		byPosition[o.Position] = or
		r.Origins = append(r.Origins, or)
	}

	var findings []*findingRow
	if err := s.sqlDB.SelectContext(ctx, &findings, "SELECT * FROM Findings WHERE RunId = ? ORDER BY Position ASC", runId); err != nil {
		return nil, err
	}
	for _, row := range findings {
		f, err := row.toFinding()
		if err != nil {
			return nil, err
		}
		if row.OriginPosition == challengeWide {
			r.Findings = append(r.Findings, f)
			continue
		}
		o, ok := byPosition[row.OriginPosition]
		if !ok {
			return nil, errors.Errorf("finding %d of run %d points at missing origin %d", row.Position, runId, row.OriginPosition)
		}
		o.Findings = append(o.Findings, f)
	}
	return r, nil
}

func (r *findingRow) toFinding() (report.Finding, error) {
	kind, err := report.ParseKind(r.Kind)
	if err != nil {
		return report.Finding{}, err
	}
	return report.Finding{
		Kind:     kind,
		OriginId: r.OriginId,
		EdgeId:   r.EdgeId,
		ClaimId:  r.ClaimId,
		Expected: uint64(r.Expected),
		Actual:   uint64(r.Actual),
		Detail:   r.Detail,
	}, nil
}

// Prune deletes all but the newest keep runs of a challenge and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, assertionHash common.Hash, keep int) (int64, error) {
	res, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM Runs WHERE AssertionHash = ? AND Id NOT IN (
			SELECT Id FROM Runs WHERE AssertionHash = ? ORDER BY Id DESC LIMIT ?
		)`,
		assertionHash,
		assertionHash,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var (
	insertRunQuery = `INSERT INTO Runs (
        AssertionHash, SnapshotBlock, EdgesChecked, Violations, CreatedAt
    ) VALUES (
        :AssertionHash, :SnapshotBlock, :EdgesChecked, :Violations, :CreatedAt
    )`
	insertOriginQuery = `INSERT INTO Origins (
        RunId, Position, OriginId, ChallengeLevel, UnrivaledWindow, WindowResolved, EdgesChecked
    ) VALUES (
        :RunId, :Position, :OriginId, :ChallengeLevel, :UnrivaledWindow, :WindowResolved, :EdgesChecked
    )`
	insertFindingQuery = `INSERT INTO Findings (
        RunId, Position, OriginPosition, Kind, OriginId, EdgeId, ClaimId, Expected, Actual, Detail
    ) VALUES (
        :RunId, :Position, :OriginPosition, :Kind, :OriginId, :EdgeId, :ClaimId, :Expected, :Actual, :Detail
    )`
)
