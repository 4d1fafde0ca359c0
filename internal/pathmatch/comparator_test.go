package pathmatch

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternComparator(t *testing.T) {
	t.Parallel()

	m := NewAntMatcher()
	cmp := m.PatternComparator("/hotels/new")

	tests := []struct {
		name string
		a    string
		b    string
		sign int
	}{
		{name: "equal literals", a: "/hotels/new", b: "/hotels/new", sign: 0},
		{name: "exact path beats variable", a: "/hotels/new", b: "/hotels/{hotel}", sign: -1},
		{name: "variable loses to exact path", a: "/hotels/{hotel}", b: "/hotels/new", sign: 1},
		{name: "variable beats single wildcard", a: "/hotels/{hotel}", b: "/hotels/*", sign: -1},
		{name: "single beats double wildcard", a: "/hotels/*", b: "/hotels/**", sign: -1},
		{name: "variable beats prefix pattern", a: "/hotels/{hotel}", b: "/hotels/**", sign: -1},
		{name: "catch all is least specific", a: "/hotels/new", b: "/**", sign: -1},
		{name: "catch all against itself", a: "/**", b: "/**", sign: 0},
		{name: "catch all loses to anything", a: "/**", b: "/hotels/{hotel}", sign: 1},
		{name: "longer pattern wins", a: "/hotels/new.*", b: "/hotels/*", sign: -1},
		{name: "fewer variables win", a: "/hotels/{hotel}/bookings", b: "/hotels/{hotel}/{booking}", sign: -1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cmp(tt.a, tt.b)
			switch {
			case tt.sign < 0:
				assert.Negative(t, got)
			case tt.sign > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestPatternComparatorSort(t *testing.T) {
	t.Parallel()

	m := NewAntMatcher()
	cmp := m.PatternComparator("/hotels/new")

	patterns := []string{"/**", "/hotels/*", "/hotels/{hotel}", "/hotels/new", "/hotels/**"}
	sort.SliceStable(patterns, func(i, j int) bool {
		return cmp(patterns[i], patterns[j]) < 0
	})

	assert.Equal(t, []string{"/hotels/new", "/hotels/{hotel}", "/hotels/*", "/hotels/**", "/**"}, patterns)
}

func TestPatternInfo(t *testing.T) {
	t.Parallel()

	info := newPatternInfo("/hotels/{hotel}/bookings/**")
	assert.Equal(t, 1, info.uriVars)
	assert.Equal(t, 0, info.singleWildcards)
	assert.Equal(t, 1, info.doubleWildcards)
	assert.True(t, info.prefixPattern)
	assert.False(t, info.catchAllPattern)
	assert.Equal(t, 3, info.totalCount())

	assert.True(t, newPatternInfo("/**").catchAllPattern)
}
