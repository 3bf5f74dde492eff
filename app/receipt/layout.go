// Package receipt renders orders into thermal printer receipts.
//
// A receipt is first built as a Document (ordered sections of styled lines)
// for a fixed column count, then either encoded into ESC/POS bytes for the
// printer or rendered as HTML for on-screen preview. All fixed-width math
// goes through Layout.
package receipt

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = ".."

// Layout computes fixed-width text for a given column count.
// Lengths are measured in runes.
type Layout struct {
	Width int
}

// NewLayout returns a layout for the given number of columns
func NewLayout(width int) Layout {
	return Layout{Width: width}
}

// PadLine joins left and right with enough spaces to fill the line.
// When both sides together reach the width, exactly one space separates them.
func (l Layout) PadLine(left, right string) string {
	gap := l.Width - runeLen(left) - runeLen(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// Center left-pads text so it sits in the middle of the line.
// Text wider than the line is returned as is.
func (l Layout) Center(text string) string {
	n := runeLen(text)
	if n >= l.Width {
		return text
	}
	return strings.Repeat(" ", (l.Width-n)/2) + text
}

// Truncate shortens text to maxLen runes, marking the cut with "..".
// Callers must pass maxLen >= 3; smaller values fall back to a hard cut.
func (l Layout) Truncate(text string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if runeLen(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen < len(ellipsis)+1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

// Divider returns a light rule spanning the whole line
func (l Layout) Divider() string {
	return strings.Repeat("-", l.Width)
}

// DoubleDivider returns a heavy rule spanning the whole line
func (l Layout) DoubleDivider() string {
	return strings.Repeat("=", l.Width)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
