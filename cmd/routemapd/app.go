package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gatewaylab/routemap/internal/config"
	"github.com/gatewaylab/routemap/internal/cors"
	"github.com/gatewaylab/routemap/internal/handler"
	"github.com/gatewaylab/routemap/internal/mapping"
	"github.com/gatewaylab/routemap/internal/observability"
	"github.com/gatewaylab/routemap/internal/pathmatch"
	"github.com/gatewaylab/routemap/internal/urlmap"
)

// handlerRegistry resolves symbolic handler names from the route table
// to concrete handlers. It implements handler.Resolver.
type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]any
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{handlers: make(map[string]any)}
}

// RegisterHandler makes a handler available under the given name.
func (r *handlerRegistry) RegisterHandler(name string, h any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Resolve implements handler.Resolver.
func (r *handlerRegistry) Resolve(name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("no handler registered under %q", name)
	}
	return h, nil
}

// corsTable is the CORS source consulted at registration time. Entries
// are written by applyRouteTable before the corresponding mapping is
// registered.
type corsTable struct {
	mu    sync.RWMutex
	byKey map[mapping.RouteKey]*cors.Config
}

func newCORSTable() *corsTable {
	return &corsTable{byKey: make(map[mapping.RouteKey]*cors.Config)}
}

func (t *corsTable) set(key mapping.RouteKey, cfg *cors.Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cfg == nil {
		delete(t.byKey, key)
		return
	}
	t.byKey[key] = cfg
}

// CORSConfig implements mapping.CORSSource.
func (t *corsTable) CORSConfig(_ *handler.Method, key mapping.RouteKey) *cors.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byKey[key]
}

// application holds all application components.
type application struct {
	logger    observability.Logger
	registry  *handlerRegistry
	corsTable *corsTable
	engine    *mapping.HandlerMapping[mapping.RouteKey]
	processor *cors.Processor

	// urls is swapped wholesale on reload
	urls atomic.Pointer[urlmap.URLHandlerMapping]

	mu      sync.Mutex
	applied map[string]mapping.RouteKey
	config  *config.RouteTable
}

// initApplication initializes all application components.
func initApplication(cfg *config.RouteTable, logger observability.Logger) *application {
	registry := newHandlerRegistry()
	registerBuiltinHandlers(registry)

	matcher := pathmatch.NewAntMatcher()
	adapter := mapping.NewRouteKeyAdapter(matcher)
	adapter.TrailingSlashMatch = cfg.Server.TrailingSlashMatch

	corsTbl := newCORSTable()

	opts := []mapping.Option[mapping.RouteKey]{
		mapping.WithMatcher[mapping.RouteKey](matcher),
		mapping.WithResolver[mapping.RouteKey](registry),
		mapping.WithLogger[mapping.RouteKey](logger),
		mapping.WithNamer[mapping.RouteKey](adapter),
		mapping.WithCORSSource[mapping.RouteKey](corsTbl),
	}
	if cfg.Server.LazyResolution {
		opts = append(opts, mapping.WithLazyResolution[mapping.RouteKey]())
	}
	engine := mapping.New[mapping.RouteKey](adapter, opts...)

	app := &application{
		logger:    logger,
		registry:  registry,
		corsTable: corsTbl,
		engine:    engine,
		processor: cors.NewProcessor(),
		applied:   make(map[string]mapping.RouteKey),
	}

	if err := app.applyRouteTable(cfg); err != nil {
		logger.Fatal("failed to apply route table", observability.Error(err))
	}

	return app
}

// applyRouteTable replaces the applied mappings and URL map with the
// contents of the given table.
func (a *application) applyRouteTable(cfg *config.RouteTable) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Rebuild the table wholesale; a route may keep its key while
	// changing handler or CORS policy, which a diff would miss
	for _, key := range a.applied {
		a.engine.UnregisterMapping(key)
		a.corsTable.set(key, nil)
	}

	desired := make(map[string]mapping.RouteKey, len(cfg.Routes))
	for _, route := range cfg.Routes {
		key := mapping.NewRouteKey(route.Paths, route.Methods)
		desired[route.Name] = key
		policy := cfg.CORS.ToPolicy().Combine(route.CORS.ToPolicy())
		a.corsTable.set(key, policy)
		if err := a.engine.RegisterMapping(key, handler.NamedRef(route.Handler), route.Method, nil); err != nil {
			return fmt.Errorf("route %s: %w", route.Name, err)
		}
	}

	urls, err := a.buildURLMap(cfg)
	if err != nil {
		return err
	}
	a.urls.Store(urls)

	a.applied = desired
	a.config = cfg
	a.logger.Info("route table applied",
		observability.String("name", cfg.Metadata.Name),
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("url_mappings", len(cfg.URLMap)),
	)
	return nil
}

// buildURLMap builds a fresh URL handler mapping from the table.
func (a *application) buildURLMap(cfg *config.RouteTable) (*urlmap.URLHandlerMapping, error) {
	opts := []urlmap.Option{
		urlmap.WithResolver(a.registry),
		urlmap.WithLogger(a.logger),
	}
	if cfg.Server.TrailingSlashMatch {
		opts = append(opts, urlmap.WithTrailingSlashMatch())
	}
	if cfg.Server.LazyResolution {
		opts = append(opts, urlmap.WithLazyInit())
	}
	urls := urlmap.New(opts...)

	urlMap := make(map[string]handler.Ref, len(cfg.URLMap))
	for _, entry := range cfg.URLMap {
		urlMap[entry.Path] = handler.NamedRef(entry.Handler)
	}
	if err := urls.RegisterHandlers(urlMap); err != nil {
		return nil, err
	}
	return urls, nil
}

// registerBuiltinHandlers wires the handlers a bare route table can
// reference out of the box.
func registerBuiltinHandlers(r *handlerRegistry) {
	r.RegisterHandler("echo", &echoHandler{})
	r.RegisterHandler("health", &healthHandler{})
	r.RegisterHandler("notFound", &notFoundHandler{})
}

// notFoundHandler answers 404. A dedicated type rather than
// http.NotFoundHandler so the instance stays comparable for conflict
// detection.
type notFoundHandler struct{}

func (h *notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

// echoHandler reports what the mapping engine decided for the request.
type echoHandler struct{}

func (h *echoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"method":            r.Method,
		"path":              r.URL.Path,
		"bestPattern":       mapping.BestPatternFromContext(ctx),
		"pathWithinMapping": mapping.PathWithinMappingFromContext(ctx),
		"variables":         mapping.URIVariablesFromContext(ctx),
	})
}

// healthHandler answers liveness probes.
type healthHandler struct{}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version,
	})
}
