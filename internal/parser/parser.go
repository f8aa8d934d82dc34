// Package parser scans Markdown note bodies for wikilinks and the outline
// context surrounding them.
package parser

import (
	"regexp"
	"strings"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Links returns deduplicated wikilink targets in order of first appearance,
// normalising aliases.
func Links(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		// [[Target|Alias]] → Target.
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// markerPattern matches [[target]] and [[target|alias]]. The target is
// quoted so names such as "Meeting (2024)" match literally.
func markerPattern(target string) *regexp.Regexp {
	return regexp.MustCompile(`\[\[` + regexp.QuoteMeta(target) + `(?:\|[^\]]+)?\]\]`)
}

// CountMarkers returns the number of non-overlapping [[target]] or
// [[target|alias]] markers in body.
func CountMarkers(body, target string) int {
	if body == "" {
		return 0
	}
	return len(markerPattern(target).FindAllStringIndex(body, -1))
}
