package pathmatch

import "strings"

// PatternComparator returns a comparator ordering patterns by
// specificity for the given path. The returned function follows
// strcmp conventions: negative when a is more specific than b.
//
// Ordering rules, most significant first:
//
//  1. the catch-all pattern "/**" is least specific
//  2. a pattern exactly equal to the path is most specific
//  3. prefix patterns ("/x/**") lose to patterns without double
//     wildcards
//  4. fewer wildcards and template variables win (a double wildcard
//     counts twice)
//  5. longer patterns win (template variables counted as one character)
//  6. fewer single wildcards win
//  7. fewer template variables win
func (m *AntMatcher) PatternComparator(path string) func(a, b string) int {
	return func(a, b string) int {
		infoA := newPatternInfo(a)
		infoB := newPatternInfo(b)

		switch {
		case infoA.leastSpecific() && infoB.leastSpecific():
			return 0
		case infoA.leastSpecific():
			return 1
		case infoB.leastSpecific():
			return -1
		}

		aEqualsPath := a == path
		bEqualsPath := b == path
		switch {
		case aEqualsPath && bEqualsPath:
			return 0
		case aEqualsPath:
			return -1
		case bEqualsPath:
			return 1
		}

		if infoA.prefixPattern && infoB.doubleWildcards == 0 {
			return 1
		} else if infoB.prefixPattern && infoA.doubleWildcards == 0 {
			return -1
		}

		if infoA.totalCount() != infoB.totalCount() {
			return infoA.totalCount() - infoB.totalCount()
		}

		if infoA.length != infoB.length {
			return infoB.length - infoA.length
		}

		if infoA.singleWildcards < infoB.singleWildcards {
			return -1
		} else if infoB.singleWildcards < infoA.singleWildcards {
			return 1
		}

		if infoA.uriVars < infoB.uriVars {
			return -1
		} else if infoB.uriVars < infoA.uriVars {
			return 1
		}

		return 0
	}
}

// patternInfo holds the specificity counters for one pattern.
type patternInfo struct {
	uriVars         int
	singleWildcards int
	doubleWildcards int
	catchAllPattern bool
	prefixPattern   bool
	length          int
}

func newPatternInfo(pattern string) patternInfo {
	info := patternInfo{
		catchAllPattern: pattern == "/**",
		prefixPattern:   strings.HasSuffix(pattern, "/**"),
	}

	pos := 0
	for pos < len(pattern) {
		switch pattern[pos] {
		case '{':
			info.uriVars++
			if end := strings.IndexByte(pattern[pos:], '}'); end > 0 {
				pos += end
			}
			pos++
		case '*':
			if pos+1 < len(pattern) && pattern[pos+1] == '*' {
				info.doubleWildcards++
				pos += 2
			} else {
				info.singleWildcards++
				pos++
			}
		default:
			pos++
		}
	}

	// Template variables count as a single character for length purposes
	info.length = len(templateVarPattern.ReplaceAllString(pattern, "#"))
	return info
}

// totalCount weighs double wildcards twice as heavily as single
// wildcards and template variables.
func (i patternInfo) totalCount() int {
	return i.uriVars + i.singleWildcards + 2*i.doubleWildcards
}

// leastSpecific reports whether the pattern is the catch-all.
func (i patternInfo) leastSpecific() bool {
	return i.catchAllPattern
}
