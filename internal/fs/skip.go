package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultSkipPatterns are always applied when expanding a directory into
// import sources.
var defaultSkipPatterns = []string{".fvskip"}

// skipPattern is a parsed skip pattern with its matching strategy.
type skipPattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against basename only
}

// SkipMatcher checks file paths against a set of skip patterns so directory
// imports can leave uninteresting files behind.
// Patterns without '/' match against the file's basename only.
// Patterns with '/' match against the full relative path from the directory root.
type SkipMatcher struct {
	patterns []skipPattern
}

// NewSkipMatcher creates a SkipMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewSkipMatcher(rawPatterns []string) *SkipMatcher {
	var patterns []skipPattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, skipPattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &SkipMatcher{patterns: patterns}
}

// DefaultSkipMatcher returns a matcher over the given patterns plus the
// built-in defaults.
func DefaultSkipMatcher(rawPatterns []string) *SkipMatcher {
	return NewSkipMatcher(append(append([]string{}, defaultSkipPatterns...), rawPatterns...))
}

// Match reports whether the given relative path should be skipped.
// relativePath should use filepath separators and be relative to the
// directory being expanded.
func (m *SkipMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 {
		return false
	}

	// Normalize to forward slashes for consistent matching.
	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.pattern, normalized)
		} else {
			matched, err = filepath.Match(p.pattern, basename)
		}
		if err != nil {
			// Bad pattern, skip rather than crash.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseSkipFile reads a .fvskip file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseSkipFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening skip file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading skip file: %w", err)
	}
	return patterns, nil
}
