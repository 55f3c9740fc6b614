// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/bold-verifier/api/client"
	"github.com/offchainlabs/bold-verifier/cmd/genericconf"
	"github.com/offchainlabs/bold-verifier/cmd/util/confighelpers"
	"github.com/offchainlabs/bold-verifier/store"
)

type VerifierConfig struct {
	Conf          genericconf.ConfConfig        `koanf:"conf"`
	LogLevel      string                        `koanf:"log-level"`
	LogType       string                        `koanf:"log-type"`
	FileLogging   genericconf.FileLoggingConfig `koanf:"file-logging"`
	API           client.Config                 `koanf:"api"`
	Output        OutputConfig                  `koanf:"output"`
	AssertionHash string                        `koanf:"assertion-hash"`
	DumpSnapshot  string                        `koanf:"dump-snapshot"`
	Store         store.Config                  `koanf:"store"`
	Watch         WatchConfig                   `koanf:"watch"`
	Serve         ServeConfig                   `koanf:"serve"`
}

var VerifierConfigDefault = VerifierConfig{
	Conf:          genericconf.ConfConfigDefault,
	LogLevel:      "info",
	LogType:       "plaintext",
	FileLogging:   genericconf.DefaultFileLoggingConfig,
	API:           client.ConfigDefault,
	Output:        OutputConfigDefault,
	AssertionHash: "",
	DumpSnapshot:  "",
	Store:         store.ConfigDefault,
	Watch:         WatchConfigDefault,
	Serve:         ServeConfigDefault,
}

// CommonConfigAddOptions registers the options every command accepts.
func CommonConfigAddOptions(f *flag.FlagSet) {
	genericconf.ConfConfigAddOptions("conf", f)
	f.String("log-level", VerifierConfigDefault.LogLevel, "log level: crit, error, warn, info, debug or trace")
	f.String("log-type", VerifierConfigDefault.LogType, "log type: plaintext or json")
	genericconf.FileLoggingConfigAddOptions("file-logging", f)
	client.ConfigAddOptions("api", f)
	OutputConfigAddOptions("output", f)
}

func AssertionHashAddOption(f *flag.FlagSet) {
	f.String("assertion-hash", VerifierConfigDefault.AssertionHash, "hash of the challenged assertion")
}

func DumpSnapshotAddOption(f *flag.FlagSet) {
	f.String("dump-snapshot", VerifierConfigDefault.DumpSnapshot, "write the fetched records to this JSON file for offline replay")
}

func StoreAddOption(f *flag.FlagSet) {
	store.ConfigAddOptions("store", f)
}

func (c *VerifierConfig) Validate() error {
	if _, err := genericconf.ToSlogLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return errors.Wrap(err, "api")
	}
	if err := c.Output.Validate(); err != nil {
		return errors.Wrap(err, "output")
	}
	if c.Watch.Interval <= 0 {
		return errors.New("watch interval must be positive")
	}
	return nil
}

// ChallengedAssertion parses the assertion-hash option.
func (c *VerifierConfig) ChallengedAssertion() (common.Hash, error) {
	if c.AssertionHash == "" {
		return common.Hash{}, errors.New("--assertion-hash is required")
	}
	b, err := hexutil.Decode(c.AssertionHash)
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "invalid assertion hash %q", c.AssertionHash)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, errors.Errorf("assertion hash %q is %d bytes long, want %d", c.AssertionHash, len(b), common.HashLength)
	}
	return common.BytesToHash(b), nil
}

const (
	formatText = "text"
	formatJSON = "json"
)

type OutputConfig struct {
	Format     string `koanf:"format"`
	Color      bool   `koanf:"color"`
	RenderPath string `koanf:"render-path"`
}

var OutputConfigDefault = OutputConfig{
	Format:     formatText,
	Color:      true,
	RenderPath: "",
}

func OutputConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".format", OutputConfigDefault.Format, "report format: text or json")
	f.Bool(prefix+".color", OutputConfigDefault.Color, "color text reports")
	f.String(prefix+".render-path", OutputConfigDefault.RenderPath, "write the assertion chain as a DOT graph to this file")
}

func (c *OutputConfig) Validate() error {
	if c.Format != formatText && c.Format != formatJSON {
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}

type WatchConfig struct {
	Interval time.Duration `koanf:"interval"`
	KeepRuns int           `koanf:"keep-runs"`
}

var WatchConfigDefault = WatchConfig{
	Interval: time.Minute,
	KeepRuns: 100,
}

func WatchConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Duration(prefix+".interval", WatchConfigDefault.Interval, "how often to re-check the challenge")
	f.Int(prefix+".keep-runs", WatchConfigDefault.KeepRuns, "number of recorded runs to keep per challenge (0 = keep all)")
}

type ServeConfig struct {
	Addr     string `koanf:"addr"`
	Snapshot string `koanf:"snapshot"`
}

var ServeConfigDefault = ServeConfig{
	Addr:     ":7257",
	Snapshot: "",
}

func ServeConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".addr", ServeConfigDefault.Addr, "address to serve the recorded snapshot on")
	f.String(prefix+".snapshot", ServeConfigDefault.Snapshot, "snapshot file written by inspect --dump-snapshot")
}

// ParseVerifier builds the configuration of one command. addOptions
// registers the command's own options next to the common ones. A nil config
// with a nil error means the configuration was dumped to out.
func ParseVerifier(args []string, out io.Writer, addOptions ...func(*flag.FlagSet)) (*VerifierConfig, error) {
	f := flag.NewFlagSet("bold-verifier", flag.ContinueOnError)
	f.SetOutput(out)
	CommonConfigAddOptions(f)
	for _, add := range addOptions {
		add(f)
	}

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}

	config := VerifierConfigDefault
	if err := confighelpers.EndCommonParse(k, &config); err != nil {
		return nil, err
	}

	if config.Conf.Dump {
		if err := confighelpers.DumpConfig(out, k, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
