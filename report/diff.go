// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package report

import (
	"sort"
	"strings"

	"github.com/r3labs/diff/v3"
)

// Change between two reports of the same challenge. Type is one of create,
// update or delete, and Path names the finding key and, for updates, the
// field that changed.
type Change struct {
	Type string      `json:"type"`
	Path string      `json:"path"`
	From interface{} `json:"from,omitempty"`
	To   interface{} `json:"to,omitempty"`
}

type findingView struct {
	Expected uint64 `diff:"expected"`
	Actual   uint64 `diff:"actual"`
	Detail   string `diff:"detail"`
}

func view(r *ChallengeReport) map[string]findingView {
	out := make(map[string]findingView)
	if r == nil {
		return out
	}
	for _, f := range r.All() {
		out[f.Key()] = findingView{Expected: f.Expected, Actual: f.Actual, Detail: f.Detail}
	}
	return out
}

// Diff lists the findings that appeared, disappeared or changed between two
// passes over the same challenge. A nil prev is treated as an empty report.
func Diff(prev, next *ChallengeReport) ([]Change, error) {
	changelog, err := diff.Diff(view(prev), view(next), diff.DisableStructValues())
	if err != nil {
		return nil, err
	}
	out := make([]Change, 0, len(changelog))
	for _, c := range changelog {
		out = append(out, Change{
			Type: c.Type,
			Path: strings.Join(c.Path, "."),
			From: c.From,
			To:   c.To,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}
