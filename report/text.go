// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/enescakir/emoji"
	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/bold-verifier/util/colors"
	"github.com/offchainlabs/bold-verifier/util/pretty"
)

func marker(k Kind) emoji.Emoji {
	switch {
	case k.Violation():
		return emoji.RedCircle
	case k.Actionable():
		return emoji.YellowCircle
	default:
		return emoji.WhiteCircle
	}
}

func paint(p colors.Painter, k Kind, text string) string {
	switch {
	case k.Violation():
		return p.Red(text)
	case k.Actionable():
		return p.Yellow(text)
	default:
		return p.Grey(text)
	}
}

// Describe renders a one line, human readable description of a finding.
func Describe(f Finding) string {
	edge := pretty.PrefixHash(f.EdgeId)
	switch f.Kind {
	case OrphanAncestor:
		return fmt.Sprintf("edge %s lists ancestor %s which is not a royal edge of its origin", edge, f.Detail)
	case TimerMismatch:
		if f.Expected == 0 && f.Detail != "" {
			return fmt.Sprintf("edge %s cumulative path timer is %d: %s", edge, f.Actual, f.Detail)
		}
		return fmt.Sprintf("edge %s cumulative path timer is %d, expected %d", edge, f.Actual, f.Expected)
	case PendingConfirmable:
		return fmt.Sprintf("edge %s unrivaled for %d blocks (confirm period %d) but not confirmed", edge, f.Actual, f.Expected)
	case UnconfirmedClaim:
		return fmt.Sprintf("claim %s of edge %s is not confirmed", pretty.PrefixHash(f.ClaimId), edge)
	default:
		if f.EdgeId == (common.Hash{}) {
			return f.Detail
		}
		return fmt.Sprintf("edge %s: %s", edge, f.Detail)
	}
}

// WriteText writes a report for terminals, optionally with colors.
func WriteText(w io.Writer, r *ChallengeReport, colored bool) error {
	p := colors.Painter{Enabled: colored}
	status := fmt.Sprintf("%v %s", emoji.GreenCircle, p.Mint("OK"))
	if !r.OK() {
		status = fmt.Sprintf("%v %s", emoji.RedCircle, p.Red(fmt.Sprintf("%d violation(s)", len(r.Violations()))))
	}
	if _, err := fmt.Fprintf(
		w,
		"challenge on assertion %s: %s, %d edges checked\n",
		p.Blue(pretty.PrefixHash(r.AssertionHash)),
		status,
		r.EdgesChecked,
	); err != nil {
		return err
	}
	for _, o := range r.Origins {
		window := p.Grey("window unresolved")
		if o.WindowResolved {
			window = fmt.Sprintf("window %d", o.Window)
		}
		if _, err := fmt.Fprintf(
			w,
			"  origin %s level %d, %s, %d royal edges\n",
			pretty.PrefixHash(o.OriginId),
			o.ChallengeLevel,
			window,
			o.EdgesChecked,
		); err != nil {
			return err
		}
		for _, f := range o.Findings {
			if err := writeFinding(w, p, "    ", f); err != nil {
				return err
			}
		}
	}
	for _, f := range r.Findings {
		if err := writeFinding(w, p, "  ", f); err != nil {
			return err
		}
	}
	return nil
}

func writeFinding(w io.Writer, p colors.Painter, indent string, f Finding) error {
	_, err := fmt.Fprintf(w, "%s%v %s %s\n", indent, marker(f.Kind), paint(p, f.Kind, f.Kind.String()), Describe(f))
	return err
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *ChallengeReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
