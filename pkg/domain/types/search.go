package types

import "fmt"

// MatchKind identifies which retrieval path produced a search result.
// Lexical and semantic scores are not numerically comparable, so the
// kind is always surfaced to the caller instead of merging rankings.
type MatchKind string

const (
	MatchKindLexical  MatchKind = "lexical"
	MatchKindSemantic MatchKind = "semantic"
)

// String returns the string representation of the match kind
func (k MatchKind) String() string {
	return string(k)
}

// SearchFormat selects the response projection for a search call
type SearchFormat string

const (
	// SearchFormatIndex returns compact entries for result selection
	SearchFormatIndex SearchFormat = "index"

	// SearchFormatFull returns complete observations
	SearchFormatFull SearchFormat = "full"
)

// IsValid checks if the search format is valid
func (f SearchFormat) IsValid() bool {
	switch f {
	case SearchFormatIndex, SearchFormatFull:
		return true
	default:
		return false
	}
}

// Normalize returns the format, treating empty as index
func (f SearchFormat) Normalize() SearchFormat {
	if f == "" {
		return SearchFormatIndex
	}
	return f
}

// String returns the string representation of the search format
func (f SearchFormat) String() string {
	return string(f)
}

// ParseSearchFormat parses a string into a SearchFormat
func ParseSearchFormat(s string) (SearchFormat, error) {
	f := SearchFormat(s).Normalize()
	if !f.IsValid() {
		return "", fmt.Errorf("invalid search format: %s", s)
	}
	return f, nil
}
