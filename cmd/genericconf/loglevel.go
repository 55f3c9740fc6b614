// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package genericconf

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

var ErrInvalidLogType = errors.New("invalid log type")

// ToSlogLevel accepts a level name (crit, error, warn, info, debug, trace) or
// a legacy geth verbosity number, where 0 is crit and 5 is trace.
func ToSlogLevel(str string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "crit", "critical":
		return log.LevelCrit, nil
	case "error":
		return log.LevelError, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "info":
		return log.LevelInfo, nil
	case "debug":
		return log.LevelDebug, nil
	case "trace":
		return log.LevelTrace, nil
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q", str)
	}
	if n < 0 || n > 5 {
		return 0, fmt.Errorf("log level %d out of range [0, 5]", n)
	}
	return log.FromLegacyLevel(n), nil
}

// HandlerFromLogType builds the geth log handler for a log type, either
// plaintext for terminals or json for log collectors.
func HandlerFromLogType(logType string, output io.Writer) (slog.Handler, error) {
	switch logType {
	case "plaintext":
		return log.NewTerminalHandler(output, false), nil
	case "json":
		return log.JSONHandler(output), nil
	}
	return nil, fmt.Errorf("%w %q", ErrInvalidLogType, logType)
}
