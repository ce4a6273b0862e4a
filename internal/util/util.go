// Package util provides small string helpers shared across wayfindr.
package util

import (
	"strings"
	"unicode"
)

// SafeFileName maps a session key onto a name that is valid on every
// common filesystem. [A-Za-z0-9.-] is kept as is, except for a leading dot.
// Every other byte, underscore included, becomes _XX in lower-case hex, so
// distinct keys never share a name.
func SafeFileName(key string) string {
	if key == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		case c == '.' && i > 0:
			b.WriteByte(c)
		default:
			b.WriteByte('_')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

const hexDigits = "0123456789abcdef"

// SplitArgs splits a command line on whitespace. Double quoted sections
// are kept together with the quotes removed. An unterminated quote runs to
// the end of the line.
func SplitArgs(line string) []string {
	var args []string
	var cur strings.Builder
	inQuotes, started := false, false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			started = true
		case unicode.IsSpace(r) && !inQuotes:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}
