// Package exclude compiles glob-style exclude patterns and decides
// whether a relative path is excluded from the mirror.
//
// Pattern grammar: literal text plus '*', which matches any run of
// zero-or-more characters within a single path segment. There is no
// escaping and no cross-segment wildcard.
//
// A pattern containing '/' is anchored at the archive root and matches
// a path when its segments match a leading run of the path's segments;
// matching a directory ancestor excludes everything beneath it. A
// pattern without '/' matches any single segment at any depth, so
// "*.zip" excludes zip files in every directory and "betas" excludes
// every subtree named betas.
package exclude

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"mirrorsync/internal/domain"
)

// Matcher holds a compiled, read-only set of exclude rules. Safe for
// concurrent use once compiled.
type Matcher struct {
	rules []rule
}

type rule struct {
	raw      string
	segments []string
	anchored bool
}

// Compile builds a Matcher from raw pattern strings. Patterns are
// validated up front so malformed configuration fails before any
// network activity begins.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		r, err := compileOne(p)
		if err != nil {
			return nil, err
		}
		m.rules = append(m.rules, r)
	}
	return m, nil
}

func compileOne(pattern string) (rule, error) {
	trimmed := strings.Trim(strings.TrimSpace(pattern), "/")
	if trimmed == "" {
		return rule{}, fmt.Errorf("%w: empty pattern %q", domain.ErrInvalidPattern, pattern)
	}
	if strings.Contains(trimmed, "\\") {
		return rule{}, fmt.Errorf("%w: %q contains a backslash", domain.ErrInvalidPattern, pattern)
	}

	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if seg == "" {
			return rule{}, fmt.Errorf("%w: %q has an empty segment", domain.ErrInvalidPattern, pattern)
		}
		if seg == "." || seg == ".." {
			return rule{}, fmt.Errorf("%w: %q contains a relative segment", domain.ErrInvalidPattern, pattern)
		}
	}

	return rule{
		raw:      pattern,
		segments: segments,
		anchored: len(segments) > 1,
	}, nil
}

// IsExcluded reports whether the relative path, or any of its
// directory ancestors, matches a compiled pattern.
func (m *Matcher) IsExcluded(relPath string) bool {
	if m == nil || len(m.rules) == 0 {
		return false
	}

	path := strings.Trim(relPath, "/")
	if path == "" {
		return false
	}
	segments := strings.Split(path, "/")

	for _, r := range m.rules {
		if r.matches(segments) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled rules
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

func (r rule) matches(pathSegments []string) bool {
	if r.anchored {
		// Anchored patterns match the full path or any ancestor prefix
		if len(r.segments) > len(pathSegments) {
			return false
		}
		for i, pat := range r.segments {
			if !segmentMatch(pat, pathSegments[i]) {
				return false
			}
		}
		return true
	}

	// Single-segment patterns match any segment at any depth; a match
	// on a directory segment excludes everything beneath it.
	for _, seg := range pathSegments {
		if segmentMatch(r.segments[0], seg) {
			return true
		}
	}
	return false
}

// segmentMatch matches a single pattern segment against a single path
// segment, expanding '*' as an intra-segment wildcard.
func segmentMatch(pattern, s string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == s
	}

	parts := strings.Split(pattern, "*")

	// Fixed prefix before the first '*'
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	// Fixed suffix after the last '*'
	last := parts[len(parts)-1]
	if !strings.HasSuffix(s, last) {
		return false
	}
	s = s[:len(s)-len(last)]

	// Interior literals must appear in order
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return true
}

// LoadPatternFile reads one pattern per line from an exclude file.
// Blank lines and lines starting with '#' are not patterns.
func LoadPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open exclude file: %w", err)
	}
	defer f.Close()

	return readPatterns(f)
}

func readPatterns(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read exclude file: %w", err)
	}
	return patterns, nil
}
