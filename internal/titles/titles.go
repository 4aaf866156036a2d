// Package titles provides series title normalization and similarity
// helpers shared by the playback-history providers and the webhook
// series matcher.
package titles

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

var (
	yearSuffixRegex = regexp.MustCompile(`\s*\(\d{4}\)$`)
	yearAnyRegex    = regexp.MustCompile(`\s*\(\d{4}\)`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spaceRegex      = regexp.MustCompile(`\s+`)
)

// Normalize lowercases a title, strips any parenthesized year, replaces
// punctuation with spaces, and collapses whitespace. Two titles that
// normalize equal are considered the same show.
func Normalize(title string) string {
	t := strings.ToLower(title)
	t = yearAnyRegex.ReplaceAllString(t, "")
	t = punctRegex.ReplaceAllString(t, " ")
	return strings.TrimSpace(spaceRegex.ReplaceAllString(t, " "))
}

// StripYear removes a trailing "(YYYY)" suffix, e.g. "The Office (2005)".
func StripYear(title string) string {
	return strings.TrimSpace(yearSuffixRegex.ReplaceAllString(title, ""))
}

// Contains reports whether either normalized title contains the other.
// This is the loose match the playback-history providers use.
func Contains(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// CloseMatch pairs a candidate title with its similarity score.
type CloseMatch struct {
	Title string
	Score float64
}

// CloseMatches ranks candidates by Jaro-Winkler similarity against the
// wanted title and returns up to limit candidates scoring at least
// minScore, best first. Used for the operator-review log when no match
// strategy succeeds.
func CloseMatches(wanted string, candidates []string, minScore float64, limit int) []CloseMatch {
	normalized := Normalize(wanted)

	matches := make([]CloseMatch, 0, len(candidates))
	for _, candidate := range candidates {
		score := float64(edlib.JaroWinklerSimilarity(normalized, Normalize(candidate)))
		if score >= minScore {
			matches = append(matches, CloseMatch{Title: candidate, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Variations returns search-friendly variants of a title, most specific
// first: the original, the year-stripped form, and colon replacements.
// Duplicates are removed preserving order.
func Variations(title string) []string {
	raw := []string{
		title,
		StripYear(title),
		strings.ReplaceAll(title, ": ", " - "),
		strings.ReplaceAll(title, ": ", " "),
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
