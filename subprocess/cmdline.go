package subprocess

import (
	"strings"
	"unicode"
)

// Runes that never force quoting when joining arguments into a single
// command-line string.
const cmdlineSafeRunes = "@%-+=:,./|_"

// NeedsQuoting reports whether arg must be quoted before being joined into a
// single command-line string. Empty arguments and arguments containing any
// rune outside the safe set require quoting.
func NeedsQuoting(arg string) bool {
	if arg == "" {
		return true
	}
	for _, r := range arg {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		if strings.ContainsRune(cmdlineSafeRunes, r) {
			continue
		}
		return true
	}
	return false
}

// QuoteArg returns arg quoted for inclusion in a single command-line string,
// escaping embedded backslashes and double quotes. Arguments that need no
// quoting are returned unchanged.
func QuoteArg(arg string) string {
	if !NeedsQuoting(arg) {
		return arg
	}
	var b strings.Builder
	b.Grow(len(arg) + 2)
	b.WriteByte('"')
	for _, r := range arg {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// JoinCommandLine joins an argument vector into the single command-line
// string expected by Windows process creation, quoting each argument as
// needed.
func JoinCommandLine(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		parts[i] = QuoteArg(arg)
	}
	return strings.Join(parts, " ")
}
