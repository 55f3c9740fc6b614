// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package confighelpers loads a koanf configuration from command line flags,
// JSON config files, a JSON config string and environment variables.
package confighelpers

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
)

// BeginCommonParse parses args into f and layers the configuration sources
// on top of each other. Later sources win: flag defaults, conf.file entries
// in order, conf.string, environment variables, then flags set explicitly on
// the command line. A flag set that was already parsed is used as is.
func BeginCommonParse(f *flag.FlagSet, args []string) (*koanf.Koanf, error) {
	if !f.Parsed() {
		if err := f.Parse(args); err != nil {
			return nil, err
		}
	}
	if f.NArg() != 0 {
		// Unexpected positional parameter
		return nil, fmt.Errorf("unexpected parameter: %s", f.Arg(0))
	}

	var k = koanf.New(".")

	// Load defaults from command line defaults, which will be overwritten by
	// anything loaded from the config file
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	for _, configFile := range k.Strings("conf.file") {
		if len(configFile) == 0 {
			continue
		}
		if err := k.Load(file.Provider(configFile), json.Parser()); err != nil {
			return nil, fmt.Errorf("error loading local config file %s: %w", configFile, err)
		}
	}

	if configString := k.String("conf.string"); len(configString) > 0 {
		if err := k.Load(rawbytes.Provider([]byte(configString)), json.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config string: %w", err)
		}
	}

	if err := loadEnvironmentVariables(k); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	// Any settings from command line options override the config file
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading command line options: %w", err)
	}
	return k, nil
}

// loadEnvironmentVariables maps PREFIX_API_MAX__RETRIES to api.max-retries:
// a single underscore separates keys, a double one stands for a dash.
func loadEnvironmentVariables(k *koanf.Koanf) error {
	envPrefix := k.String("conf.env-prefix")
	if len(envPrefix) == 0 {
		return nil
	}
	return k.Load(env.Provider(envPrefix+"_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix+"_"))
		s = strings.ReplaceAll(s, "__", "-")
		return strings.ReplaceAll(s, "_", ".")
	}), nil)
}

// ApplyOverrides loads fixed values on top of the configuration, e.g. to
// blank out options before the configuration is dumped.
func ApplyOverrides(k *koanf.Koanf, overrides map[string]interface{}) error {
	if len(overrides) == 0 {
		return nil
	}
	return k.Load(confmap.Provider(overrides, "."), nil)
}

// EndCommonParse decodes the configuration into config. Keys that do not map
// to a field are an error.
func EndCommonParse(k *koanf.Koanf, config interface{}) error {
	decoderConfig := mapstructure.DecoderConfig{
		ErrorUnused: true,

		// Default values
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Metadata: nil,
		Result:   config,
		TagName:  "koanf",
	}
	err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{DecoderConfig: &decoderConfig})
	if err != nil {
		return err
	}
	return nil
}

// DumpConfig writes the configuration as JSON, with conf.dump itself turned
// off so that the output can be fed back through conf.file.
func DumpConfig(w io.Writer, k *koanf.Koanf, overrides map[string]interface{}) error {
	all := map[string]interface{}{"conf.dump": false}
	for key, v := range overrides {
		all[key] = v
	}
	if err := ApplyOverrides(k, all); err != nil {
		return fmt.Errorf("error removing extra parameters before dump: %w", err)
	}
	c, err := k.Marshal(json.Parser())
	if err != nil {
		return fmt.Errorf("unable to marshal config file to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(c))
	return err
}

// IsHelp reports whether parsing stopped because help was requested.
func IsHelp(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
