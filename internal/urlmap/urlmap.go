// Package urlmap provides a coarse URL-pattern-to-handler mapping
// without per-method granularity: one handler per literal or glob
// path, with distinguished root and catch-all slots.
package urlmap

import (
	"sort"
	"strings"
	"sync"

	"github.com/gatewaylab/routemap/internal/handler"
	"github.com/gatewaylab/routemap/internal/observability"
	"github.com/gatewaylab/routemap/internal/pathmatch"
	"github.com/gatewaylab/routemap/internal/util"
)

// Match is the result of a successful lookup: the resolved handler,
// the best-matching pattern, the path within the mapping, and the URI
// template variables of every pattern tying for best.
type Match struct {
	Handler           any
	BestPattern       string
	PathWithinMapping string
	Variables         map[string]string
}

// URLHandlerMapping maps URL paths and patterns to handler references.
// The root path "/" and the catch-all "/*" are held outside the main
// table as the root and default handlers.
type URLHandlerMapping struct {
	mu             sync.RWMutex
	handlerMap     map[string]handler.Ref
	rootHandler    handler.Ref
	defaultHandler handler.Ref

	matcher  pathmatch.Matcher
	resolver handler.Resolver
	logger   observability.Logger

	// trailingSlashMatch also tries each registered pattern with a
	// trailing slash appended.
	trailingSlashMatch bool

	// lazyInit defers named-handler resolution to lookup time.
	lazyInit bool
}

// Option configures a URLHandlerMapping.
type Option func(*URLHandlerMapping)

// WithMatcher sets the path matcher.
func WithMatcher(m pathmatch.Matcher) Option {
	return func(u *URLHandlerMapping) {
		u.matcher = m
	}
}

// WithResolver sets the resolver for symbolic handler references.
func WithResolver(r handler.Resolver) Option {
	return func(u *URLHandlerMapping) {
		u.resolver = r
	}
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(u *URLHandlerMapping) {
		u.logger = l
	}
}

// WithTrailingSlashMatch matches URLs irrespective of a trailing slash:
// a registered "/users" also matches "/users/".
func WithTrailingSlashMatch() Option {
	return func(u *URLHandlerMapping) {
		u.trailingSlashMatch = true
	}
}

// WithLazyInit defers named-handler resolution to each lookup instead
// of resolving at registration.
func WithLazyInit() Option {
	return func(u *URLHandlerMapping) {
		u.lazyInit = true
	}
}

// New creates an empty URLHandlerMapping.
func New(opts ...Option) *URLHandlerMapping {
	u := &URLHandlerMapping{
		handlerMap: make(map[string]handler.Ref),
		matcher:    pathmatch.NewAntMatcher(),
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// RegisterHandler maps the URL path to the handler reference.
//
// "/" registers the root handler and "/*" the default handler. Unless
// lazy initialization is enabled, named references are resolved
// eagerly. Re-registering a path with an equal resolved handler is a
// no-op; with a different one it fails with a
// ConflictingHandlerError.
func (u *URLHandlerMapping) RegisterHandler(urlPath string, ref handler.Ref) error {
	if urlPath == "" {
		return util.NewConfigError("urlPath", "URL path must not be empty")
	}

	resolved := ref
	if !u.lazyInit && ref.IsNamed() {
		instance, err := u.resolve(ref)
		if err != nil {
			return err
		}
		resolved = handler.BoundRef(instance)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if mapped, ok := u.handlerMap[urlPath]; ok {
		if mapped != resolved {
			return util.NewConflictingHandlerError(urlPath, mapped.String(), ref.String())
		}
		return nil
	}

	switch urlPath {
	case "/":
		u.logger.Info("root mapping", observability.String("handler", ref.String()))
		u.rootHandler = resolved
	case "/*":
		u.logger.Info("default mapping", observability.String("handler", ref.String()))
		u.defaultHandler = resolved
	default:
		u.handlerMap[urlPath] = resolved
		u.logger.Info("mapped URL path",
			observability.String("path", urlPath),
			observability.String("handler", ref.String()),
		)
	}
	return nil
}

// RegisterHandlers maps every entry of the URL map.
func (u *URLHandlerMapping) RegisterHandlers(urlMap map[string]handler.Ref) error {
	// Deterministic registration order for deterministic conflicts
	paths := make([]string, 0, len(urlMap))
	for p := range urlMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := u.RegisterHandler(p, urlMap[p]); err != nil {
			return err
		}
	}
	return nil
}

// SetRootHandler sets the handler for the root path "/".
func (u *URLHandlerMapping) SetRootHandler(ref handler.Ref) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rootHandler = ref
}

// SetDefaultHandler sets the catch-all handler.
func (u *URLHandlerMapping) SetDefaultHandler(ref handler.Ref) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.defaultHandler = ref
}

// HandlerMap returns a snapshot of the registered paths and handlers.
func (u *URLHandlerMapping) HandlerMap() map[string]handler.Ref {
	u.mu.RLock()
	defer u.mu.RUnlock()
	snapshot := make(map[string]handler.Ref, len(u.handlerMap))
	for p, ref := range u.handlerMap {
		snapshot[p] = ref
	}
	return snapshot
}

// HandlerForPath looks up the handler for the URL path. Falls back to
// the root handler for "/" and to the default handler otherwise. A nil
// Match with a nil error means nothing matched.
func (u *URLHandlerMapping) HandlerForPath(lookupPath string) (*Match, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	m, err := u.lookupHandler(lookupPath)
	if err != nil || m != nil {
		return m, err
	}

	// Root and default fallbacks also expose the lookup path
	raw := u.defaultHandler
	if lookupPath == "/" && u.rootHandler != (handler.Ref{}) {
		raw = u.rootHandler
	}
	if raw == (handler.Ref{}) {
		u.logger.Debug("no handler mapping found", observability.String("path", lookupPath))
		return nil, nil
	}
	instance, err := u.resolve(raw)
	if err != nil {
		return nil, err
	}
	return &Match{
		Handler:           instance,
		BestPattern:       lookupPath,
		PathWithinMapping: lookupPath,
	}, nil
}

// lookupHandler tries a direct match, then scans all registered
// patterns and selects the most specific. Caller holds the read lock.
func (u *URLHandlerMapping) lookupHandler(lookupPath string) (*Match, error) {
	// Direct match?
	if ref, ok := u.handlerMap[lookupPath]; ok {
		instance, err := u.resolve(ref)
		if err != nil {
			return nil, err
		}
		return &Match{
			Handler:           instance,
			BestPattern:       lookupPath,
			PathWithinMapping: lookupPath,
		}, nil
	}

	// Pattern match?
	var matchingPatterns []string
	for registeredPattern := range u.handlerMap {
		if u.matcher.Match(registeredPattern, lookupPath) {
			matchingPatterns = append(matchingPatterns, registeredPattern)
		} else if u.trailingSlashMatch &&
			!strings.HasSuffix(registeredPattern, "/") &&
			u.matcher.Match(registeredPattern+"/", lookupPath) {
			matchingPatterns = append(matchingPatterns, registeredPattern+"/")
		}
	}
	if len(matchingPatterns) == 0 {
		return nil, nil
	}

	comparator := u.matcher.PatternComparator(lookupPath)
	sort.SliceStable(matchingPatterns, func(i, j int) bool {
		return comparator(matchingPatterns[i], matchingPatterns[j]) < 0
	})
	bestMatch := matchingPatterns[0]
	u.logger.Debug("matching patterns",
		observability.String("path", lookupPath),
		observability.Strings("patterns", matchingPatterns),
	)

	ref, ok := u.handlerMap[bestMatch]
	if !ok {
		if strings.HasSuffix(bestMatch, "/") {
			ref, ok = u.handlerMap[bestMatch[:len(bestMatch)-1]]
		}
		if !ok {
			return nil, util.NewBestPatternError(bestMatch)
		}
	}
	instance, err := u.resolve(ref)
	if err != nil {
		return nil, err
	}

	pathWithinMapping := u.matcher.ExtractPathWithinPattern(bestMatch, lookupPath)

	// There might be multiple best patterns; collect the template
	// variables of all of them
	variables := make(map[string]string)
	for _, pattern := range matchingPatterns {
		if comparator(bestMatch, pattern) == 0 {
			for name, value := range u.matcher.ExtractURITemplateVariables(pattern, lookupPath) {
				variables[name] = value
			}
		}
	}

	return &Match{
		Handler:           instance,
		BestPattern:       bestMatch,
		PathWithinMapping: pathWithinMapping,
		Variables:         variables,
	}, nil
}

// resolve turns a handler reference into a concrete instance.
func (u *URLHandlerMapping) resolve(ref handler.Ref) (any, error) {
	if !ref.IsNamed() {
		return ref.Instance(), nil
	}
	if u.resolver == nil {
		return nil, util.NewResolveError(ref.Name(), nil)
	}
	return u.resolver.Resolve(ref.Name())
}
