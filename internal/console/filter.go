package console

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter types accepted by NewOutputFilter.
const (
	FilterNone   = "none"
	FilterErrors = "errors"
	FilterSearch = "search"
	FilterRegex  = "regex"
)

// OutputFilter filters console output based on criteria
type OutputFilter struct {
	FilterType    string
	Pattern       string
	CaseSensitive bool
	regex         *regexp.Regexp
}

// Markers of problem lines in server output. Minecraft tags levels as
// "/WARN]" and "/ERROR]" in the thread prefix.
var problemMarkers = []string{
	"/warn]",
	"/error]",
	"/fatal]",
	"exception",
	"error",
	"failed",
	"can't keep up",
}

// NewOutputFilter creates a new output filter
func NewOutputFilter(filterType, pattern string, caseSensitive bool) (*OutputFilter, error) {
	if filterType == "" {
		filterType = FilterNone
	}
	filter := &OutputFilter{
		FilterType:    filterType,
		Pattern:       pattern,
		CaseSensitive: caseSensitive,
	}

	switch filterType {
	case FilterNone, FilterErrors, FilterSearch:
	case FilterRegex:
		if pattern == "" {
			break
		}
		flags := ""
		if !caseSensitive {
			flags = "(?i)"
		}
		compiled, err := regexp.Compile(flags + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		filter.regex = compiled
	default:
		return nil, fmt.Errorf("unknown filter type %q", filterType)
	}

	return filter, nil
}

// Match reports whether line passes the filter
func (f *OutputFilter) Match(line string) bool {
	switch f.FilterType {
	case FilterErrors:
		lower := strings.ToLower(line)
		for _, marker := range problemMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
		return false

	case FilterSearch:
		if f.Pattern == "" {
			return true
		}
		if f.CaseSensitive {
			return strings.Contains(line, f.Pattern)
		}
		return strings.Contains(strings.ToLower(line), strings.ToLower(f.Pattern))

	case FilterRegex:
		if f.regex == nil {
			return true
		}
		return f.regex.MatchString(line)

	default:
		return true
	}
}

// FilterLines applies the filter to multiple lines
func (f *OutputFilter) FilterLines(lines []string) []string {
	if f.FilterType == FilterNone {
		return lines
	}

	filtered := []string{}
	for _, line := range lines {
		if f.Match(line) {
			filtered = append(filtered, line)
		}
	}
	return filtered
}
