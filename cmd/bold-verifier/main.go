// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// bold-verifier re-checks the challenge bookkeeping served by a BOLD API
// node: royal ancestry, cumulative path timers, confirmation eligibility and
// subchallenge claims.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/bold-verifier/cmd/genericconf"
	"github.com/offchainlabs/bold-verifier/cmd/util/confighelpers"
)

// version is set at build time via -ldflags.
var version = "dev"

// errViolations makes the process exit with a distinct code when a report
// contains violations.
var errViolations = errors.New("challenge has violations")

const exitViolations = 2

type runFunc func(ctx context.Context, cfg *VerifierConfig, out io.Writer) error

// newCommand wraps a run function into a command whose flags are parsed by
// the koanf loader instead of cobra, so that config files and environment
// variables apply to every option.
func newCommand(use, short string, run runFunc, addOptions ...func(*flag.FlagSet)) *cobra.Command {
	cmd := &cobra.Command{
		Use:                use,
		Short:              short,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := ParseVerifier(args, out, addOptions...)
			if confighelpers.IsHelp(err) {
				return nil
			}
			if err != nil {
				return err
			}
			if cfg == nil {
				// Configuration was dumped.
				return nil
			}
			if err := genericconf.InitLog(cfg.LogType, cfg.LogLevel, &cfg.FileLogging, cmd.ErrOrStderr()); err != nil {
				return err
			}
			defer func() {
				_ = genericconf.CloseLog()
			}()
			return run(cmd.Context(), cfg, out)
		},
	}
	// Registered for help output only.
	CommonConfigAddOptions(cmd.Flags())
	for _, add := range addOptions {
		add(cmd.Flags())
	}
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bold-verifier",
		Short: "Verify BOLD challenge edges served by a BOLD API node",
		Long: "bold-verifier fetches assertions and challenge edges from a BOLD API node\n" +
			"and recomputes ancestry, path timers and confirmation eligibility.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceErrors: true,
		Version:       version,
	}
	root.AddCommand(
		newCommand("chain", "Summarize the assertion chain since the latest confirmed assertion", runChain),
		newCommand("inspect", "Verify every edge of the challenge on an assertion", runInspect,
			AssertionHashAddOption,
			DumpSnapshotAddOption,
			StoreAddOption,
		),
		newCommand("tracked", "Verify the royal edges tracked by the validator behind the API", runTracked),
		newCommand("ministakes", "List the mini-stakes posted in a challenge", runMiniStakes,
			AssertionHashAddOption,
		),
		newCommand("watch", "Re-verify a challenge periodically and report what changed", runWatch,
			AssertionHashAddOption,
			StoreAddOption,
			func(f *flag.FlagSet) { WatchConfigAddOptions("watch", f) },
		),
		newCommand("serve", "Serve a recorded snapshot over the BOLD API routes", runServe,
			func(f *flag.FlagSet) { ServeConfigAddOptions("serve", f) },
		),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if errors.Is(err, errViolations) {
		os.Exit(exitViolations)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
