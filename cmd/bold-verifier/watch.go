// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	challengemanager "github.com/offchainlabs/bold-verifier/challenge-manager"
	"github.com/offchainlabs/bold-verifier/protocol"
	"github.com/offchainlabs/bold-verifier/report"
	"github.com/offchainlabs/bold-verifier/store"
)

type inspector interface {
	InspectChallenge(ctx context.Context, assertionHash protocol.AssertionHash) (*challengemanager.Inspection, error)
}

// watcher re-verifies one challenge and reports the findings that changed
// since the previous pass. With a store the previous pass survives restarts.
type watcher struct {
	verifier  inspector
	store     *store.Store
	assertion common.Hash
	keepRuns  int
	onChange  func(r *report.ChallengeReport, changes []report.Change) error
	prev      *report.ChallengeReport
}

func (w *watcher) loadPrevious(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	prev, err := w.store.LatestReport(ctx, w.assertion)
	if errors.Is(err, store.ErrNoRuns) {
		return nil
	}
	if err != nil {
		return err
	}
	w.prev = prev
	log.Info("Resuming from recorded run", "assertion", w.assertion, "block", prev.SnapshotBlock)
	return nil
}

// tick runs one pass. Fetch and store failures are logged and skipped so that
// a flaky API or disk does not end the watch.
func (w *watcher) tick(ctx context.Context) error {
	insp, err := w.verifier.InspectChallenge(ctx, protocol.AssertionHash{Hash: w.assertion})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("Could not inspect challenge", "assertion", w.assertion, "err", err)
		return nil
	}
	next := insp.Report
	changes, err := report.Diff(w.prev, next)
	if err != nil {
		return err
	}
	for _, c := range changes {
		log.Warn("Finding changed", "type", c.Type, "finding", c.Path, "from", c.From, "to", c.To)
	}
	if w.prev == nil || len(changes) > 0 {
		if err := w.onChange(next, changes); err != nil {
			return err
		}
	}
	w.prev = next
	w.record(ctx, next)
	return nil
}

// record keeps a pass in the store. A failed write loses history, not the
// watch, so it is only logged.
func (w *watcher) record(ctx context.Context, r *report.ChallengeReport) {
	if w.store == nil {
		return
	}
	if _, err := w.store.SaveReport(ctx, r); err != nil {
		log.Error("Could not record run", "assertion", w.assertion, "err", err)
		return
	}
	if w.keepRuns > 0 {
		if _, err := w.store.Prune(ctx, w.assertion, w.keepRuns); err != nil {
			log.Error("Could not prune recorded runs", "assertion", w.assertion, "err", err)
		}
	}
}

func (w *watcher) run(ctx context.Context, interval time.Duration) error {
	if err := w.loadPrevious(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := w.tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runWatch(ctx context.Context, cfg *VerifierConfig, out io.Writer) error {
	hash, err := cfg.ChallengedAssertion()
	if err != nil {
		return err
	}
	v, _, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	w := &watcher{
		verifier:  v,
		store:     st,
		assertion: hash,
		keepRuns:  cfg.Watch.KeepRuns,
		onChange: func(r *report.ChallengeReport, _ []report.Change) error {
			return writeReport(out, cfg, r)
		},
	}
	log.Info("Watching challenge", "assertion", hash, "interval", cfg.Watch.Interval)
	return w.run(ctx, cfg.Watch.Interval)
}
