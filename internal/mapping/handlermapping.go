package mapping

import (
	"net/http"
	"path"
	"sort"

	"github.com/gatewaylab/routemap/internal/cors"
	"github.com/gatewaylab/routemap/internal/handler"
	"github.com/gatewaylab/routemap/internal/observability"
	"github.com/gatewaylab/routemap/internal/pathmatch"
	"github.com/gatewaylab/routemap/internal/util"
)

// PreflightAmbiguousMatch is the sentinel handler method returned for
// CORS preflight probes whose route resolution is ambiguous. Preflight
// negotiation must not fail on downstream route ambiguity; the CORS
// layer answers such probes with the allow-all policy. The sentinel's
// callable is never meant to run.
var PreflightAmbiguousMatch = handler.NewMethod(
	handler.BoundRef(&emptyHandler{}), "Handle",
	func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not implemented", http.StatusNotImplemented)
	},
)

type emptyHandler struct{}

// HandlerMapping resolves inbound request paths to handler methods
// through a Registry, selecting the best match deterministically and
// surfacing ambiguity. Safe for concurrent use; registration and
// unregistration may run concurrently with lookups.
type HandlerMapping[T comparable] struct {
	registry *Registry[T]
	adapter  Adapter[T]
	matcher  pathmatch.Matcher
	resolver handler.Resolver
	logger   observability.Logger

	// lazyResolution defers named-handler resolution to each lookup
	// instead of caching the resolved method.
	lazyResolution bool
}

// Option configures a HandlerMapping.
type Option[T comparable] func(*HandlerMapping[T])

// WithMatcher sets the path matcher.
func WithMatcher[T comparable](m pathmatch.Matcher) Option[T] {
	return func(hm *HandlerMapping[T]) {
		hm.matcher = m
	}
}

// WithResolver sets the resolver for symbolic handler references.
func WithResolver[T comparable](r handler.Resolver) Option[T] {
	return func(hm *HandlerMapping[T]) {
		hm.resolver = r
	}
}

// WithLogger sets the logger.
func WithLogger[T comparable](l observability.Logger) Option[T] {
	return func(hm *HandlerMapping[T]) {
		hm.logger = l
	}
}

// WithNamer sets the naming strategy for the name index.
func WithNamer[T comparable](n Namer[T]) Option[T] {
	return func(hm *HandlerMapping[T]) {
		hm.registry.SetNamer(n)
	}
}

// WithCORSSource sets the CORS policy extraction.
func WithCORSSource[T comparable](s CORSSource[T]) Option[T] {
	return func(hm *HandlerMapping[T]) {
		hm.registry.SetCORSSource(s)
	}
}

// WithLazyResolution defers named-handler resolution to lookup time.
func WithLazyResolution[T comparable]() Option[T] {
	return func(hm *HandlerMapping[T]) {
		hm.lazyResolution = true
	}
}

// New creates a HandlerMapping driven by the given adapter.
func New[T comparable](adapter Adapter[T], opts ...Option[T]) *HandlerMapping[T] {
	hm := &HandlerMapping[T]{
		adapter: adapter,
		matcher: pathmatch.NewAntMatcher(),
		logger:  observability.NopLogger(),
	}
	hm.registry = NewRegistry(adapter, hm.matcher, hm.logger)
	for _, opt := range opts {
		opt(hm)
	}
	hm.registry.matcher = hm.matcher
	hm.registry.logger = hm.logger
	return hm
}

// Registry exposes the internal registry, mainly for tests.
func (m *HandlerMapping[T]) Registry() *Registry[T] {
	return m.registry
}

// RegisterMapping registers a handler method under the mapping key.
// May be invoked at runtime, concurrently with lookups. Named handler
// references are resolved eagerly unless lazy resolution is enabled.
func (m *HandlerMapping[T]) RegisterMapping(mapping T, ref handler.Ref, methodName string, fn http.HandlerFunc) error {
	hm := handler.NewMethod(ref, methodName, fn)
	if !m.lazyResolution && ref.IsNamed() && m.resolver != nil {
		resolved, err := hm.ResolveWith(m.resolver)
		if err != nil {
			return err
		}
		hm = resolved
	}
	return m.registry.Register(mapping, hm)
}

// UnregisterMapping removes the mapping. May be invoked at runtime.
func (m *HandlerMapping[T]) UnregisterMapping(mapping T) {
	m.registry.Unregister(mapping)
}

// DetectHandlers registers every handler method the catalog yields.
func (m *HandlerMapping[T]) DetectHandlers(catalog Catalog[T]) error {
	detected := catalog.HandlerMethods()
	m.logger.Debug("handler methods detected", observability.Int("count", len(detected)))
	for _, d := range detected {
		if err := m.RegisterMapping(d.Mapping, d.Ref, d.MethodName, d.Fn); err != nil {
			return err
		}
	}
	return nil
}

// HandlerMethods returns a snapshot of all registered mappings and
// their handler methods.
func (m *HandlerMapping[T]) HandlerMethods() map[T]*handler.Method {
	m.registry.RLock()
	defer m.registry.RUnlock()

	snapshot := make(map[T]*handler.Method, len(m.registry.Mappings()))
	for mapping, hm := range m.registry.Mappings() {
		snapshot[mapping] = hm
	}
	return snapshot
}

// HandlersForName returns the handler methods registered under the
// given mapping name. Safe without further locking.
func (m *HandlerMapping[T]) HandlersForName(name string) []*handler.Method {
	return m.registry.HandlersByName(name)
}

// HandlerForRequest resolves the best-matching handler method for the
// request. On a winning match the returned request carries the bound
// match attributes in its context. A nil handler with a nil error
// means no mapping matched.
func (m *HandlerMapping[T]) HandlerForRequest(r *http.Request) (*handler.Method, *http.Request, error) {
	lookupPath := CleanLookupPath(r.URL.Path)

	m.registry.RLock()
	hm, matched, err := m.lookupHandlerMethod(lookupPath, r)
	m.registry.RUnlock()
	if err != nil || hm == nil {
		return nil, r, err
	}

	if hm == PreflightAmbiguousMatch {
		return hm, matched, nil
	}
	resolved, err := hm.ResolveWith(m.resolver)
	if err != nil {
		return nil, r, err
	}
	return resolved, matched, nil
}

// match pairs a request-narrowed mapping key with its handler method
// for best-match comparison.
type match[T comparable] struct {
	mapping T
	hm      *handler.Method
}

// lookupHandlerMethod finds all matching mappings for the lookup path,
// then selects the single best one. Must run under the read lock.
func (m *HandlerMapping[T]) lookupHandlerMethod(lookupPath string, r *http.Request) (*handler.Method, *http.Request, error) {
	var matches []match[T]

	directPathMatches := m.registry.MappingsByPath(lookupPath)
	matches = m.addMatchingMappings(directPathMatches, matches, r)
	direct := len(matches) > 0
	if !direct {
		// No choice but to go through all mappings
		all := make([]T, 0, len(m.registry.Mappings()))
		for mapping := range m.registry.Mappings() {
			all = append(all, mapping)
		}
		matches = m.addMatchingMappings(all, matches, r)
	}

	if len(matches) == 0 {
		lookupMetrics().outcomes.WithLabelValues(outcomeNone).Inc()
		return nil, r, nil
	}

	cmp := m.adapter.CompareForRequest(r)
	sort.SliceStable(matches, func(i, j int) bool {
		return cmp(matches[i].mapping, matches[j].mapping) < 0
	})

	best := matches[0]
	if len(matches) > 1 {
		m.logger.Debug("multiple matching mappings",
			observability.String("path", lookupPath),
			observability.Int("count", len(matches)),
		)
		if cors.IsPreflight(r) {
			lookupMetrics().outcomes.WithLabelValues(outcomePreflightAmbiguous).Inc()
			return PreflightAmbiguousMatch, r, nil
		}
		second := matches[1]
		if cmp(best.mapping, second.mapping) == 0 {
			lookupMetrics().outcomes.WithLabelValues(outcomeAmbiguous).Inc()
			return nil, r, util.NewAmbiguousMatchError(lookupPath, best.hm.String(), second.hm.String())
		}
	}

	if direct {
		lookupMetrics().outcomes.WithLabelValues(outcomeDirect).Inc()
	} else {
		lookupMetrics().outcomes.WithLabelValues(outcomeScanned).Inc()
	}

	return best.hm, m.handleMatch(best.mapping, lookupPath, r), nil
}

// addMatchingMappings evaluates each candidate key against the live
// request and collects the narrowed matches.
func (m *HandlerMapping[T]) addMatchingMappings(candidates []T, matches []match[T], r *http.Request) []match[T] {
	for _, mapping := range candidates {
		narrowed, ok := m.adapter.MatchRequest(mapping, r)
		if !ok {
			continue
		}
		matches = append(matches, match[T]{
			mapping: narrowed,
			hm:      m.registry.Mappings()[mapping],
		})
	}
	return matches
}

// handleMatch binds request-scoped match context for downstream
// consumption.
func (m *HandlerMapping[T]) handleMatch(mapping T, lookupPath string, r *http.Request) *http.Request {
	if binder, ok := m.adapter.(MatchBinder[T]); ok {
		return binder.BindMatch(mapping, lookupPath, r)
	}
	return r.WithContext(ContextWithPathWithinMapping(r.Context(), lookupPath))
}

// CORSConfigForHandler returns the CORS policy for a matched handler
// method: the allow-all policy for the preflight ambiguity sentinel,
// otherwise the policy registered for the method, if any.
func (m *HandlerMapping[T]) CORSConfigForHandler(hm *handler.Method) *cors.Config {
	if hm == PreflightAmbiguousMatch {
		return cors.AllowAll()
	}
	return m.registry.CORSConfig(hm)
}

// CleanLookupPath normalizes a request path for registry lookup:
// empty becomes "/", dot segments are resolved, and a trailing slash
// is preserved.
func CleanLookupPath(p string) string {
	if p == "" {
		return "/"
	}
	trailing := len(p) > 1 && p[len(p)-1] == '/'
	cleaned := path.Clean(p)
	if trailing && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}
