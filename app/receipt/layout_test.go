package receipt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPadLineFillsWidth(t *testing.T) {
	for _, width := range []int{32, 42, 48} {
		l := NewLayout(width)
		cases := []struct{ left, right string }{
			{"Subtotal:", "$70.00"},
			{"", "$1.00"},
			{"TOTAL", ""},
			{"  2 x $35.00", "$70.00"},
			{"Açaí com granola", "$12.50"},
		}
		for _, c := range cases {
			out := l.PadLine(c.left, c.right)
			assert.Equal(t, width, utf8.RuneCountInString(out), "width %d: %q", width, out)
			assert.True(t, strings.HasPrefix(out, c.left))
			assert.True(t, strings.HasSuffix(out, c.right))
		}
	}
}

func TestPadLineOverflowKeepsOneSpace(t *testing.T) {
	l := NewLayout(10)

	out := l.PadLine("abcdef", "ghij")
	assert.Equal(t, "abcdef ghij", out)

	out = l.PadLine("a very long left side", "right")
	assert.Equal(t, "a very long left side right", out)
}

func TestCenter(t *testing.T) {
	l := NewLayout(10)

	assert.Equal(t, "   abcd", l.Center("abcd"))
	assert.Equal(t, "   abc", l.Center("abc"))
	assert.Equal(t, "0123456789", l.Center("0123456789"))
	assert.Equal(t, "longer than ten", l.Center("longer than ten"))
}

func TestTruncateLaw(t *testing.T) {
	l := NewLayout(32)
	inputs := []string{"", "a", "abc", "Margherita Pizza", "Calabresa com cebola e azeitonas", "ñandú"}

	for _, s := range inputs {
		for n := 3; n <= 40; n++ {
			out := l.Truncate(s, n)
			assert.LessOrEqual(t, utf8.RuneCountInString(out), n, "truncate(%q, %d)", s, n)
			if utf8.RuneCountInString(s) <= n {
				assert.Equal(t, s, out)
			} else {
				assert.True(t, strings.HasSuffix(out, ".."))
				assert.Equal(t, n, utf8.RuneCountInString(out))
			}
		}
	}
}

func TestTruncateBelowMinimumHardCuts(t *testing.T) {
	l := NewLayout(32)

	assert.Equal(t, "ab", l.Truncate("abcdef", 2))
	assert.Equal(t, "", l.Truncate("abcdef", 0))
}

func TestDividers(t *testing.T) {
	l := NewLayout(42)

	assert.Equal(t, strings.Repeat("-", 42), l.Divider())
	assert.Equal(t, strings.Repeat("=", 42), l.DoubleDivider())
}
