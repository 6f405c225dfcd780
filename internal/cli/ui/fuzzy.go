package ui

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxDistance is the largest edit distance still offered as a suggestion
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions caps the number of suggestions
	DefaultMaxSuggestions = 3
)

type suggestion struct {
	value    string
	distance int
}

// SuggestClasses returns class internal names close to target. Matching is
// case-insensitive, accepts dotted names, and also compares against the
// simple name so "bulet" finds "game/Bullet".
func SuggestClasses(target string, classes []string) []string {
	target = strings.ToLower(strings.ReplaceAll(target, ".", "/"))

	var found []suggestion
	for _, class := range classes {
		lower := strings.ToLower(class)
		dist := LevenshteinDistance(target, lower)
		if !strings.Contains(target, "/") {
			dist = min(dist, LevenshteinDistance(target, simpleName(lower)))
		}
		if dist <= DefaultMaxDistance {
			found = append(found, suggestion{value: class, distance: dist})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].distance != found[j].distance {
			return found[i].distance < found[j].distance
		}
		return found[i].value < found[j].value
	})

	result := make([]string, 0, DefaultMaxSuggestions)
	for i := 0; i < len(found) && i < DefaultMaxSuggestions; i++ {
		result = append(result, found[i].value)
	}
	return result
}

func simpleName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// LevenshteinDistance calculates the minimum number of single-byte edits
// between two strings.
//
// Example:
//
//	LevenshteinDistance("kitten", "sitting") // Returns: 3
func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// Two rows of the full matrix are enough
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
