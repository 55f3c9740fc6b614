// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/offchainlabs/bold-verifier/api"
	"github.com/offchainlabs/bold-verifier/api/client"
	"github.com/offchainlabs/bold-verifier/api/server"
	"github.com/offchainlabs/bold-verifier/assertions"
	challengemanager "github.com/offchainlabs/bold-verifier/challenge-manager"
	"github.com/offchainlabs/bold-verifier/protocol"
	"github.com/offchainlabs/bold-verifier/report"
	"github.com/offchainlabs/bold-verifier/store"
	"github.com/offchainlabs/bold-verifier/util/colors"
	"github.com/offchainlabs/bold-verifier/util/pretty"
)

func newVerifier(cfg *VerifierConfig) (*challengemanager.Verifier, *client.Client, error) {
	c, err := client.New(cfg.API)
	if err != nil {
		return nil, nil, err
	}
	return challengemanager.NewVerifier(c), c, nil
}

func openStore(cfg *VerifierConfig) (*store.Store, error) {
	if !cfg.Store.Enabled() {
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}

func writeReport(out io.Writer, cfg *VerifierConfig, r *report.ChallengeReport) error {
	if cfg.Output.Format == formatJSON {
		return report.WriteJSON(out, r)
	}
	return report.WriteText(out, r, cfg.Output.Color)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderChain(path string, chain *assertions.Chain) error {
	if path == "" {
		return nil
	}
	//#nosec G306
	if err := os.WriteFile(path, []byte(report.RenderAssertionChain(chain)), 0o644); err != nil {
		return fmt.Errorf("could not write assertion graph: %w", err)
	}
	log.Info("Wrote assertion graph", "path", path)
	return nil
}

type chainSummaryJSON struct {
	LatestConfirmed   common.Hash      `json:"latestConfirmed"`
	CreationBlock     uint64           `json:"creationBlock"`
	Assertions        int              `json:"assertions"`
	Challenged        []common.Hash    `json:"challenged"`
	ChallengeManagers []common.Address `json:"challengeManagers"`
	WasmModuleRoots   []common.Hash    `json:"wasmModuleRoots"`
}

func runChain(ctx context.Context, cfg *VerifierConfig, out io.Writer) error {
	v, _, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	summary, err := v.ChainSummary(ctx)
	if err != nil {
		return err
	}
	if err := renderChain(cfg.Output.RenderPath, summary.Chain); err != nil {
		return err
	}
	challenged := make([]common.Hash, 0, len(summary.Challenged))
	for _, a := range summary.Challenged {
		challenged = append(challenged, a.Hash.Hash)
	}
	if cfg.Output.Format == formatJSON {
		return writeJSON(out, &chainSummaryJSON{
			LatestConfirmed:   summary.LatestConfirmed.Hash.Hash,
			CreationBlock:     summary.LatestConfirmed.CreationBlock,
			Assertions:        summary.Chain.Len(),
			Challenged:        challenged,
			ChallengeManagers: summary.ChallengeManagers,
			WasmModuleRoots:   summary.WasmModuleRoots,
		})
	}

	p := colors.Painter{Enabled: cfg.Output.Color}
	fmt.Fprintf(out, "latest confirmed assertion %s at block %d\n",
		p.Blue(pretty.PrefixHash(summary.LatestConfirmed.Hash.Hash)), summary.LatestConfirmed.CreationBlock)
	fmt.Fprintf(out, "%d assertion(s) since, %d challenged\n", summary.Chain.Len(), len(challenged))
	for _, a := range summary.Challenged {
		fmt.Fprintf(out, "  %s %s created at block %d\n", p.Red("challenged"), a.Hash.Hash.Hex(), a.CreationBlock)
	}
	for _, m := range summary.ChallengeManagers {
		fmt.Fprintf(out, "challenge manager %s\n", m.Hex())
	}
	for _, r := range summary.WasmModuleRoots {
		fmt.Fprintf(out, "wasm module root %s\n", r.Hex())
	}
	return nil
}

func runInspect(ctx context.Context, cfg *VerifierConfig, out io.Writer) error {
	hash, err := cfg.ChallengedAssertion()
	if err != nil {
		return err
	}
	v, _, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	insp, err := v.InspectChallenge(ctx, protocol.AssertionHash{Hash: hash})
	if err != nil {
		return err
	}
	if cfg.DumpSnapshot != "" {
		if err := insp.Records.Save(cfg.DumpSnapshot); err != nil {
			return fmt.Errorf("could not write snapshot: %w", err)
		}
		log.Info("Wrote snapshot", "path", cfg.DumpSnapshot, "assertions", len(insp.Records.Assertions), "edges", len(insp.Records.Edges))
	}
	if err := renderChain(cfg.Output.RenderPath, insp.Chain); err != nil {
		return err
	}
	if err := writeReport(out, cfg, insp.Report); err != nil {
		return err
	}
	if err := recordRun(ctx, cfg, insp.Report); err != nil {
		if insp.Report.OK() {
			return err
		}
		log.Error("Could not record run", "path", cfg.Store.Path, "err", err)
	}
	if !insp.Report.OK() {
		return errViolations
	}
	return nil
}

func recordRun(ctx context.Context, cfg *VerifierConfig, r *report.ChallengeReport) error {
	st, err := openStore(cfg)
	if err != nil || st == nil {
		return err
	}
	defer st.Close()
	runId, err := st.SaveReport(ctx, r)
	if err != nil {
		return err
	}
	log.Info("Recorded run", "run", runId, "path", cfg.Store.Path)
	return nil
}

func runTracked(ctx context.Context, cfg *VerifierConfig, out io.Writer) error {
	v, _, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	inspections, err := v.InspectTrackedRoyalEdges(ctx)
	if err != nil {
		return err
	}
	if cfg.Output.Format == formatJSON {
		reports := make([]*report.ChallengeReport, 0, len(inspections))
		for _, insp := range inspections {
			reports = append(reports, insp.Report)
		}
		if err := writeJSON(out, reports); err != nil {
			return err
		}
	} else {
		if len(inspections) == 0 {
			fmt.Fprintln(out, "no royal edges tracked")
		}
		for _, insp := range inspections {
			if err := report.WriteText(out, insp.Report, cfg.Output.Color); err != nil {
				return err
			}
		}
	}
	for _, insp := range inspections {
		if !insp.Report.OK() {
			return errViolations
		}
	}
	return nil
}

func runMiniStakes(ctx context.Context, cfg *VerifierConfig, out io.Writer) error {
	hash, err := cfg.ChallengedAssertion()
	if err != nil {
		return err
	}
	_, c, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	stakes, err := c.MiniStakes(ctx, hash)
	if err != nil {
		return err
	}
	if cfg.Output.Format == formatJSON {
		return writeJSON(out, stakes)
	}
	levels := make([]uint8, 0, len(stakes.StakesByLvlAndOrigin))
	for lvl := range stakes.StakesByLvlAndOrigin {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	fmt.Fprintf(out, "mini-stakes in the challenge on %s\n", pretty.PrefixHash(stakes.ChallengedAssertionHash))
	for _, lvl := range levels {
		fmt.Fprintf(out, "  level %d\n", lvl)
		for _, info := range stakes.StakesByLvlAndOrigin[lvl] {
			fmt.Fprintf(out, "    origin %s: %d stake(s)\n", pretty.PrefixHash(info.ChallengeOriginId), info.NumberOfMiniStakes)
			for _, addr := range info.StakerAddresses {
				fmt.Fprintf(out, "      %s\n", addr.Hex())
			}
		}
	}
	return nil
}

func runServe(ctx context.Context, cfg *VerifierConfig, _ io.Writer) error {
	if cfg.Serve.Snapshot == "" {
		return fmt.Errorf("--serve.snapshot is required")
	}
	snapshot, err := api.LoadSnapshot(cfg.Serve.Snapshot)
	if err != nil {
		return err
	}
	backend, err := server.NewSnapshotBackend(snapshot)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg.Serve.Addr, backend)
	if err != nil {
		return err
	}
	log.Info("Replaying snapshot", "path", cfg.Serve.Snapshot, "assertion", snapshot.AssertionHash, "block", snapshot.Block)
	return srv.Start(ctx)
}
