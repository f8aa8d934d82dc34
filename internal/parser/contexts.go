package parser

import (
	"strings"
	"unicode"
)

// tabWidth is the number of columns a leading tab counts for.
const tabWidth = 4

// Contexts finds every marker referencing target in body and returns the
// marker count together with one context block per line that mentions it.
//
// A block is the mentioning line followed by every subsequent line that is
// blank or indented deeper than it. The first non-blank line at or above the
// mentioning line's depth ends the block and is not part of it.
//
// The count uses the exact marker pattern while blocks start on any line that
// contains "[[target", so a line holding only [[targetSuffix]] still opens a
// block once at least one exact marker exists somewhere in body.
func Contexts(body, target string) (int, []string) {
	count := CountMarkers(body, target)
	if count == 0 {
		return 0, nil
	}

	lines := strings.Split(body, "\n")
	prefix := "[[" + target

	var contexts []string
	for i, line := range lines {
		if !strings.Contains(line, prefix) {
			continue
		}
		contexts = append(contexts, strings.Join(block(lines, i), "\n"))
	}
	return count, contexts
}

// block collects lines[start] and its nested sub-tree.
func block(lines []string, start int) []string {
	depth := IndentLevel(lines[start])
	out := []string{lines[start]}
	for _, next := range lines[start+1:] {
		if isBlank(next) {
			out = append(out, next)
			continue
		}
		if IndentLevel(next) <= depth {
			break
		}
		out = append(out, next)
	}
	return out
}

// isSpace reports whether r is indentation whitespace. A byte order mark
// counts as whitespace and NEL does not.
func isSpace(r rune) bool {
	switch r {
	case '\ufeff':
		return true
	case '\u0085':
		return false
	}
	return unicode.IsSpace(r)
}

// IndentLevel returns the width of the leading whitespace of line, with
// tabs counted as four columns and any other whitespace rune as one.
func IndentLevel(line string) int {
	level := 0
	for _, r := range line {
		switch {
		case r == '\t':
			level += tabWidth
		case isSpace(r):
			level++
		default:
			return level
		}
	}
	return level
}

func isBlank(line string) bool {
	return strings.TrimFunc(line, isSpace) == ""
}
