// Package pathmatch provides Ant-style URL path pattern matching.
//
// Supported syntax:
//
//	?        matches one character within a path segment
//	*        matches zero or more characters within a path segment
//	**       matches zero or more path segments
//	{name}   matches one path segment and captures it as a template variable
package pathmatch

import (
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher is the path-matching contract consumed by the mapping
// registries. Implementations must be safe for concurrent use.
type Matcher interface {
	// IsPattern reports whether the given string contains wildcard or
	// template syntax (as opposed to a literal path).
	IsPattern(pattern string) bool

	// Match reports whether the given concrete path matches the pattern.
	Match(pattern, path string) bool

	// ExtractPathWithinPattern returns the part of the path dynamically
	// matched by the pattern's wildcards, e.g. for pattern
	// "/docs/**" and path "/docs/api/index.html" it returns
	// "api/index.html".
	ExtractPathWithinPattern(pattern, path string) string

	// ExtractURITemplateVariables returns the template variables bound
	// by matching the pattern against the path, e.g. for pattern
	// "/users/{id}" and path "/users/42" it returns {"id": "42"}.
	ExtractURITemplateVariables(pattern, path string) map[string]string

	// PatternComparator returns a comparator that orders patterns by
	// specificity with respect to the given path. More specific
	// patterns sort first.
	PatternComparator(path string) func(a, b string) int
}

// templateVarPattern matches {name} template segments.
var templateVarPattern = regexp.MustCompile(`\{[^/{}]+\}`)

// AntMatcher is the default Matcher implementation. Raw wildcard
// matching is delegated to doublestar glob semantics; template
// variables are handled by a regex translation layered on top.
type AntMatcher struct{}

// NewAntMatcher creates a new AntMatcher.
func NewAntMatcher() *AntMatcher {
	return &AntMatcher{}
}

// IsPattern reports whether the string contains wildcard or template syntax.
func (m *AntMatcher) IsPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?{")
}

// Match checks the path against the pattern. Template variables match
// like single-segment wildcards.
func (m *AntMatcher) Match(pattern, path string) bool {
	if !m.IsPattern(pattern) {
		return pattern == path
	}
	// A path with an empty final segment only matches a pattern that
	// ends in the separator itself or in a multi-segment wildcard;
	// "*" and "{var}" require at least one character.
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(pattern, "/") &&
		!strings.HasSuffix(pattern, "**") {
		return false
	}
	glob := templateVarPattern.ReplaceAllString(pattern, "*")
	ok, err := doublestar.Match(glob, path)
	return err == nil && ok
}

// ExtractPathWithinPattern returns the path segments matched by the
// first wildcard segment onward. Returns "" when the pattern has no
// wildcard segments.
func (m *AntMatcher) ExtractPathWithinPattern(pattern, path string) string {
	patternParts := tokenize(pattern)
	pathParts := tokenize(path)

	for i, part := range patternParts {
		if strings.ContainsAny(part, "*?{") {
			if i < len(pathParts) {
				return strings.Join(pathParts[i:], "/")
			}
			return ""
		}
	}
	return ""
}

// ExtractURITemplateVariables matches the pattern against the path and
// returns the captured template variables. The pattern is expected to
// match; non-matching input yields an empty map.
func (m *AntMatcher) ExtractURITemplateVariables(pattern, path string) map[string]string {
	vars := make(map[string]string)
	if !strings.Contains(pattern, "{") {
		return vars
	}

	re, names, err := compilePattern(pattern)
	if err != nil {
		return vars
	}

	matches := re.FindStringSubmatch(path)
	if matches == nil {
		return vars
	}
	for i, name := range names {
		if i+1 < len(matches) {
			vars[name] = matches[i+1]
		}
	}
	return vars
}

// tokenize splits a path into its non-empty segments.
func tokenize(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// patternRegexMaxSize is the maximum number of entries in the compiled
// pattern cache.
const patternRegexMaxSize = 1000

// patternRegexEntry holds a compiled pattern and its access order for
// LRU eviction.
type patternRegexEntry struct {
	regex       *regexp.Regexp
	names       []string
	accessOrder int64
}

// patternRegexCache is a bounded LRU cache for compiled patterns.
var (
	patternRegexCache   = make(map[string]*patternRegexEntry)
	patternRegexMu      sync.RWMutex
	patternRegexCounter int64
)

// compilePattern translates an Ant-style pattern into a regular
// expression with one capture group per template variable. Compiled
// patterns are cached.
func compilePattern(pattern string) (re *regexp.Regexp, names []string, err error) {
	metrics := getPatternCacheMetrics()

	patternRegexMu.Lock()
	if entry, ok := patternRegexCache[pattern]; ok {
		patternRegexCounter++
		entry.accessOrder = patternRegexCounter
		patternRegexMu.Unlock()

		metrics.cacheHits.Inc()
		return entry.regex, entry.names, nil
	}
	patternRegexMu.Unlock()

	metrics.cacheMisses.Inc()

	// Compile outside the lock (expensive operation)
	expr, names := translatePattern(pattern)
	re, err = regexp.Compile(expr)
	if err != nil {
		return nil, nil, err
	}

	patternRegexMu.Lock()
	// Double-check after acquiring lock (another goroutine may have added it)
	if entry, ok := patternRegexCache[pattern]; ok {
		patternRegexCounter++
		entry.accessOrder = patternRegexCounter
		patternRegexMu.Unlock()
		return entry.regex, entry.names, nil
	}

	if len(patternRegexCache) >= patternRegexMaxSize {
		evictLRUPatternEntry()
		metrics.cacheEvictions.Inc()
	}

	patternRegexCounter++
	patternRegexCache[pattern] = &patternRegexEntry{
		regex:       re,
		names:       names,
		accessOrder: patternRegexCounter,
	}
	metrics.cacheSize.Set(float64(len(patternRegexCache)))
	patternRegexMu.Unlock()

	return re, names, nil
}

// evictLRUPatternEntry removes the least recently used entry from the
// cache. Must be called with patternRegexMu held.
func evictLRUPatternEntry() {
	var lruKey string
	var lruOrder int64 = -1

	for key, entry := range patternRegexCache {
		if lruOrder == -1 || entry.accessOrder < lruOrder {
			lruOrder = entry.accessOrder
			lruKey = key
		}
	}

	if lruKey != "" {
		delete(patternRegexCache, lruKey)
	}
}

// translatePattern converts an Ant-style pattern into a regex source
// string, returning the template variable names in capture order.
func translatePattern(pattern string) (expr string, names []string) {
	var b strings.Builder
	b.WriteString("^")

	i := 0
	for i < len(pattern) {
		switch {
		case strings.HasPrefix(pattern[i:], "/**"):
			// Optional trailing segments, including none
			b.WriteString("(?:/.*)?")
			i += 3
		case strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i += 2
		case pattern[i] == '*':
			b.WriteString("[^/]*")
			i++
		case pattern[i] == '?':
			b.WriteString("[^/]")
			i++
		case pattern[i] == '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				b.WriteString(regexp.QuoteMeta(string(pattern[i])))
				i++
				continue
			}
			names = append(names, pattern[i+1:i+end])
			b.WriteString("([^/]+)")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}

	b.WriteString("$")
	return b.String(), names
}
