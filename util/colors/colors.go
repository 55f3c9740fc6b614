// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package colors

import (
	"regexp"
)

var Red = "\033[31;1m"
var Blue = "\033[34;1m"
var Yellow = "\033[33;1m"
var Mint = "\033[38;5;48;1m"
var Grey = "\033[90m"

var Clear = "\033[0;0m"

// Painter wraps text in terminal colors when enabled and passes it through
// untouched otherwise, so renderers can write to files and pipes.
type Painter struct {
	Enabled bool
}

func (p Painter) Paint(color, text string) string {
	if !p.Enabled {
		return text
	}
	return color + text + Clear
}

func (p Painter) Red(text string) string    { return p.Paint(Red, text) }
func (p Painter) Blue(text string) string   { return p.Paint(Blue, text) }
func (p Painter) Yellow(text string) string { return p.Paint(Yellow, text) }
func (p Painter) Mint(text string) string   { return p.Paint(Mint, text) }
func (p Painter) Grey(text string) string   { return p.Paint(Grey, text) }

var uncolor = regexp.MustCompile("\x1b\\[([0-9]+;)*[0-9]+m")

func Uncolor(text string) string {
	return uncolor.ReplaceAllString(text, "")
}
