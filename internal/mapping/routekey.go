package mapping

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gatewaylab/routemap/internal/cors"
	"github.com/gatewaylab/routemap/internal/handler"
	"github.com/gatewaylab/routemap/internal/pathmatch"
)

// RouteKey is the default mapping key: a set of URL path patterns plus
// an optional HTTP method restriction. It is a comparable value type;
// two keys with the same patterns and methods are equal regardless of
// construction order.
type RouteKey struct {
	patterns string // "\n"-joined, order preserved (first = primary)
	methods  string // ","-joined, sorted, upper-case
}

// NewRouteKey creates a key from path patterns and allowed methods.
// An empty method list means any method.
func NewRouteKey(patterns []string, methods []string) RouteKey {
	normalized := make([]string, len(methods))
	for i, m := range methods {
		normalized[i] = strings.ToUpper(m)
	}
	sort.Strings(normalized)
	return RouteKey{
		patterns: strings.Join(patterns, "\n"),
		methods:  strings.Join(normalized, ","),
	}
}

// Patterns returns the key's path patterns.
func (k RouteKey) Patterns() []string {
	if k.patterns == "" {
		return nil
	}
	return strings.Split(k.patterns, "\n")
}

// Methods returns the key's allowed HTTP methods; empty means any.
func (k RouteKey) Methods() []string {
	if k.methods == "" {
		return nil
	}
	return strings.Split(k.methods, ",")
}

// String renders the key as "{[/a /b],methods=[GET]}".
func (k RouteKey) String() string {
	if k.methods == "" {
		return fmt.Sprintf("{%v}", k.Patterns())
	}
	return fmt.Sprintf("{%v,methods=%v}", k.Patterns(), k.Methods())
}

// allowsMethod checks the method restriction. HEAD is served by GET
// mappings.
func (k RouteKey) allowsMethod(method string) bool {
	if k.methods == "" {
		return true
	}
	method = strings.ToUpper(method)
	for _, m := range k.Methods() {
		if m == method {
			return true
		}
		if method == http.MethodHead && m == http.MethodGet {
			return true
		}
	}
	return false
}

// RouteKeyAdapter implements the Adapter contract for RouteKey, along
// with naming and match binding.
type RouteKeyAdapter struct {
	matcher pathmatch.Matcher

	// TrailingSlashMatch also tries each pattern with a trailing
	// slash appended.
	TrailingSlashMatch bool
}

// NewRouteKeyAdapter creates an adapter using the given matcher.
func NewRouteKeyAdapter(matcher pathmatch.Matcher) *RouteKeyAdapter {
	if matcher == nil {
		matcher = pathmatch.NewAntMatcher()
	}
	return &RouteKeyAdapter{matcher: matcher}
}

// PathPatterns returns the key's patterns.
func (a *RouteKeyAdapter) PathPatterns(key RouteKey) []string {
	return key.Patterns()
}

// MatchRequest checks the key against the request. On a match it
// returns a narrowed key whose patterns are the matching ones ordered
// best-first and whose method restriction is collapsed to the request
// method. A CORS preflight probe is matched against the method it
// announces rather than OPTIONS.
func (a *RouteKeyAdapter) MatchRequest(key RouteKey, r *http.Request) (RouteKey, bool) {
	method := r.Method
	if cors.IsPreflight(r) {
		method = r.Header.Get("Access-Control-Request-Method")
	}
	if !key.allowsMethod(method) {
		return RouteKey{}, false
	}

	lookupPath := CleanLookupPath(r.URL.Path)
	var matching []string
	for _, pattern := range key.Patterns() {
		switch {
		case a.matcher.Match(pattern, lookupPath):
			matching = append(matching, pattern)
		case a.TrailingSlashMatch && !strings.HasSuffix(pattern, "/") &&
			a.matcher.Match(pattern+"/", lookupPath):
			matching = append(matching, pattern+"/")
		}
	}
	if len(matching) == 0 {
		return RouteKey{}, false
	}

	cmp := a.matcher.PatternComparator(lookupPath)
	sort.SliceStable(matching, func(i, j int) bool {
		return cmp(matching[i], matching[j]) < 0
	})

	methods := key.Methods()
	if len(methods) > 0 {
		methods = []string{strings.ToUpper(method)}
	}
	return NewRouteKey(matching, methods), true
}

// CompareForRequest ranks keys by the specificity of their primary
// pattern for the request path; on a tie an explicit method
// restriction wins over none.
func (a *RouteKeyAdapter) CompareForRequest(r *http.Request) func(x, y RouteKey) int {
	cmp := a.matcher.PatternComparator(CleanLookupPath(r.URL.Path))
	return func(x, y RouteKey) int {
		if c := cmp(primaryPattern(x), primaryPattern(y)); c != 0 {
			return c
		}
		return len(y.Methods()) - len(x.Methods())
	}
}

// DescribeMapping renders the key for diagnostics.
func (a *RouteKeyAdapter) DescribeMapping(key RouteKey) string {
	return key.String()
}

// Name derives the default mapping name: the upper-case letters of the
// handler identifier, "#", and the method name.
func (a *RouteKeyAdapter) Name(hm *handler.Method, _ RouteKey) string {
	ident := hm.Ref().Name()
	if ident == "" {
		ident = fmt.Sprintf("%T", hm.Ref().Instance())
	}
	var initials strings.Builder
	for _, c := range ident {
		if c >= 'A' && c <= 'Z' {
			initials.WriteRune(c)
		}
	}
	if initials.Len() == 0 {
		initials.WriteString(strings.ToUpper(ident))
	}
	return initials.String() + "#" + hm.MethodName()
}

// BindMatch exposes the best pattern, the path within the mapping and
// the URI template variables on the request context.
func (a *RouteKeyAdapter) BindMatch(key RouteKey, lookupPath string, r *http.Request) *http.Request {
	best := primaryPattern(key)
	ctx := ContextWithBestPattern(r.Context(), best)
	ctx = ContextWithPathWithinMapping(ctx, a.matcher.ExtractPathWithinPattern(best, lookupPath))

	// Patterns tying with the best one all contribute variables
	cmp := a.matcher.PatternComparator(lookupPath)
	vars := make(map[string]string)
	for _, pattern := range key.Patterns() {
		if cmp(best, pattern) == 0 {
			for name, value := range a.matcher.ExtractURITemplateVariables(pattern, lookupPath) {
				vars[name] = value
			}
		}
	}
	if len(vars) > 0 {
		ctx = ContextWithURIVariables(ctx, vars)
	}
	return r.WithContext(ctx)
}

// primaryPattern returns the key's first pattern, which after
// narrowing is the best-matching one.
func primaryPattern(key RouteKey) string {
	patterns := key.Patterns()
	if len(patterns) == 0 {
		return ""
	}
	return patterns[0]
}
