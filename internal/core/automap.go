package core

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Normalize lower-cases s and drops underscores, hyphens and whitespace.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// MatchField reports whether a source header plausibly refers to field.
// The normalized header and the normalized field identifier or label match
// when either contains the other. Headers that normalize to "" never match.
func MatchField(header string, field TargetField) bool {
	h := Normalize(header)
	if h == "" {
		return false
	}
	id := Normalize(field.Field)
	label := Normalize(field.Label)
	return strings.Contains(h, id) ||
		strings.Contains(id, h) ||
		strings.Contains(h, label) ||
		strings.Contains(label, h)
}

// AutoMap proposes one mapping per header. The first field in registry order
// that matches wins; headers with no match map to SkipField. Several headers
// may map to the same field.
func AutoMap(headers []string, kind ImportKind) []ColumnMapping {
	fields := Fields(kind)
	mappings := make([]ColumnMapping, len(headers))
	for i, h := range headers {
		mappings[i] = ColumnMapping{SourceColumn: h, TargetField: SkipField}
		for _, f := range fields {
			if MatchField(h, f) {
				mappings[i].TargetField = f.Field
				break
			}
		}
	}
	return mappings
}

// Suggestion is a candidate target for a source column.
type Suggestion struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Exact    bool   `json:"exact"`    // Matched by the auto-mapping rule
	Distance int    `json:"distance"` // Edit distance between normalized header and label
}

// Suggest ranks candidate fields for manually overriding a column mapping.
// Fields matched by MatchField come first in registry order, followed by
// fuzzy matches ordered by edit distance. AutoMap never consults Suggest.
func Suggest(header string, kind ImportKind) []Suggestion {
	h := Normalize(header)
	if h == "" {
		return nil
	}

	fields := Fields(kind)
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = Normalize(f.Label)
	}

	var exact, near []Suggestion
	taken := make(map[int]bool)
	for i, f := range fields {
		if MatchField(header, f) {
			exact = append(exact, Suggestion{Field: f.Field, Label: f.Label, Exact: true, Distance: levenshtein.ComputeDistance(h, labels[i])})
			taken[i] = true
		}
	}

	candidates := make(map[int]bool)
	for _, rank := range fuzzy.RankFindNormalizedFold(h, labels) {
		candidates[rank.OriginalIndex] = true
	}
	for i, label := range labels {
		if levenshtein.ComputeDistance(h, label) <= maxTypos(h) {
			candidates[i] = true
		}
	}

	for i := range candidates {
		if taken[i] {
			continue
		}
		near = append(near, Suggestion{Field: fields[i].Field, Label: fields[i].Label, Distance: levenshtein.ComputeDistance(h, labels[i])})
	}

	order := make(map[string]int, len(fields))
	for i, f := range fields {
		order[f.Field] = i
	}
	sort.Slice(near, func(i, j int) bool {
		if near[i].Distance != near[j].Distance {
			return near[i].Distance < near[j].Distance
		}
		return order[near[i].Field] < order[near[j].Field]
	})

	return append(exact, near...)
}

// maxTypos allows roughly one edit per three characters, at least two.
func maxTypos(s string) int {
	n := len([]rune(s)) / 3
	if n < 2 {
		return 2
	}
	return n
}
