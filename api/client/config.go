// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package client

import (
	"fmt"
	"net/url"
	"time"

	flag "github.com/spf13/pflag"
)

type Config struct {
	URL         string        `koanf:"url"`
	Timeout     time.Duration `koanf:"timeout"`
	CacheSize   int           `koanf:"cache-size"`
	ForceUpdate bool          `koanf:"force-update"`
	MaxRetries  int           `koanf:"max-retries"`
	RetryDelay  time.Duration `koanf:"retry-delay"`
}

var ConfigDefault = Config{
	URL:         "http://localhost:7257/api/v1",
	Timeout:     30 * time.Second,
	CacheSize:   1024,
	ForceUpdate: false,
	MaxRetries:  0,
	RetryDelay:  time.Second,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".url", ConfigDefault.URL, "base URL of the BOLD API, including the /api/v1 prefix")
	f.Duration(prefix+".timeout", ConfigDefault.Timeout, "timeout of a single API request")
	f.Int(prefix+".cache-size", ConfigDefault.CacheSize, "number of confirmed assertions and edges kept in memory (0 disables the cache)")
	f.Bool(prefix+".force-update", ConfigDefault.ForceUpdate, "ask the API to refetch updatable fields from the chain on every request")
	f.Int(prefix+".max-retries", ConfigDefault.MaxRetries, "number of times a failed request is retried")
	f.Duration(prefix+".retry-delay", ConfigDefault.RetryDelay, "delay between retries of a failed request")
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid api url %q: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api url %q must use http or https", c.URL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got %v", c.Timeout)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("api cache size must not be negative, got %d", c.CacheSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("api max retries must not be negative, got %d", c.MaxRetries)
	}
	return nil
}
