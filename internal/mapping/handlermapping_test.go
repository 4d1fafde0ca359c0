package mapping

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylab/routemap/internal/cors"
	"github.com/gatewaylab/routemap/internal/handler"
	"github.com/gatewaylab/routemap/internal/pathmatch"
	"github.com/gatewaylab/routemap/internal/util"
)

type recordingHandler struct {
	name string
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-Handler", h.name)
	w.WriteHeader(http.StatusOK)
}

type staticCORSSource struct {
	cfg *cors.Config
}

func (s *staticCORSSource) CORSConfig(_ *handler.Method, _ RouteKey) *cors.Config {
	return s.cfg
}

func newTestMapping(opts ...Option[RouteKey]) (*HandlerMapping[RouteKey], *RouteKeyAdapter) {
	adapter := NewRouteKeyAdapter(pathmatch.NewAntMatcher())
	return New[RouteKey](adapter, opts...), adapter
}

func mustRegister(t *testing.T, m *HandlerMapping[RouteKey], key RouteKey, h *recordingHandler) {
	t.Helper()
	require.NoError(t, m.RegisterMapping(key, handler.BoundRef(h), "ServeHTTP", h.ServeHTTP))
}

func TestHandlerForRequestDirectPath(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	h := &recordingHandler{name: "users"}
	mustRegister(t, m, NewRouteKey([]string{"/users"}, []string{"GET"}), h)

	hm, matched, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/users", nil))
	require.NoError(t, err)
	require.NotNil(t, hm)

	assert.Equal(t, "/users", BestPatternFromContext(matched.Context()))

	rec := httptest.NewRecorder()
	hm.Func()(rec, matched)
	assert.Equal(t, "users", rec.Header().Get("X-Handler"))
}

func TestHandlerForRequestBestMatch(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	exact := &recordingHandler{name: "exact"}
	variable := &recordingHandler{name: "variable"}
	mustRegister(t, m, NewRouteKey([]string{"/hotels/new"}, nil), exact)
	mustRegister(t, m, NewRouteKey([]string{"/hotels/{hotel}"}, nil), variable)

	hm, matched, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/hotels/new", nil))
	require.NoError(t, err)
	require.NotNil(t, hm)
	rec := httptest.NewRecorder()
	hm.Func()(rec, matched)
	assert.Equal(t, "exact", rec.Header().Get("X-Handler"))

	hm, matched, err = m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/hotels/ritz", nil))
	require.NoError(t, err)
	require.NotNil(t, hm)
	rec = httptest.NewRecorder()
	hm.Func()(rec, matched)
	assert.Equal(t, "variable", rec.Header().Get("X-Handler"))
	assert.Equal(t, map[string]string{"hotel": "ritz"}, URIVariablesFromContext(matched.Context()))
	assert.Equal(t, "/hotels/{hotel}", BestPatternFromContext(matched.Context()))
}

func TestHandlerForRequestNoMatch(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	mustRegister(t, m, NewRouteKey([]string{"/users"}, []string{"GET"}), &recordingHandler{name: "users"})

	// Unknown path
	hm, _, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.NoError(t, err)
	assert.Nil(t, hm)

	// Known path, disallowed method
	hm, _, err = m.HandlerForRequest(httptest.NewRequest(http.MethodDelete, "/users", nil))
	require.NoError(t, err)
	assert.Nil(t, hm)

	// HEAD is served by the GET mapping
	hm, _, err = m.HandlerForRequest(httptest.NewRequest(http.MethodHead, "/users", nil))
	require.NoError(t, err)
	assert.NotNil(t, hm)
}

func TestHandlerForRequestAmbiguous(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	mustRegister(t, m, NewRouteKey([]string{"/x/{a}"}, nil), &recordingHandler{name: "a"})
	mustRegister(t, m, NewRouteKey([]string{"/x/{b}"}, nil), &recordingHandler{name: "b"})

	hm, _, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/x/1", nil))
	require.Error(t, err)
	assert.Nil(t, hm)

	var ambiguous *util.AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "/x/1", ambiguous.Path)
}

func TestHandlerForRequestPreflightAmbiguous(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	mustRegister(t, m, NewRouteKey([]string{"/x/{a}"}, nil), &recordingHandler{name: "a"})
	mustRegister(t, m, NewRouteKey([]string{"/x/{b}"}, nil), &recordingHandler{name: "b"})

	r := httptest.NewRequest(http.MethodOptions, "/x/1", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", "POST")

	hm, _, err := m.HandlerForRequest(r)
	require.NoError(t, err)
	assert.Same(t, PreflightAmbiguousMatch, hm)

	// The sentinel is paired with the allow-all policy
	assert.Equal(t, cors.AllowAll(), m.CORSConfigForHandler(hm))
}

func TestRegisterMappingIdempotent(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	key := NewRouteKey([]string{"/users"}, []string{"GET"})
	h := &recordingHandler{name: "users"}

	require.NoError(t, m.RegisterMapping(key, handler.BoundRef(h), "ServeHTTP", h.ServeHTTP))
	require.NoError(t, m.RegisterMapping(key, handler.BoundRef(h), "ServeHTTP", h.ServeHTTP))
	assert.Len(t, m.HandlerMethods(), 1)
}

func TestRegisterMappingConflict(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	key := NewRouteKey([]string{"/users"}, []string{"GET"})
	mustRegister(t, m, key, &recordingHandler{name: "first"})

	other := &recordingHandler{name: "second"}
	err := m.RegisterMapping(key, handler.BoundRef(other), "ServeHTTP", other.ServeHTTP)
	require.Error(t, err)

	var ambiguous *util.AmbiguousMappingError
	assert.ErrorAs(t, err, &ambiguous)
	assert.Len(t, m.HandlerMethods(), 1)
}

func TestUnregisterMapping(t *testing.T) {
	t.Parallel()

	corsCfg := &cors.Config{AllowOrigins: []string{"https://app.example.com"}}
	adapter := NewRouteKeyAdapter(pathmatch.NewAntMatcher())
	m := New[RouteKey](adapter,
		WithNamer[RouteKey](adapter),
		WithCORSSource[RouteKey](&staticCORSSource{cfg: corsCfg}),
	)

	key := NewRouteKey([]string{"/users"}, []string{"GET"})
	h := &recordingHandler{name: "users"}
	mustRegister(t, m, key, h)

	name := adapter.Name(handler.NewMethod(handler.BoundRef(h), "ServeHTTP", nil), key)
	require.Len(t, m.HandlersForName(name), 1)

	hm, _, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/users", nil))
	require.NoError(t, err)
	require.NotNil(t, hm)
	assert.Equal(t, corsCfg, m.CORSConfigForHandler(hm))

	m.UnregisterMapping(key)

	// Gone from every index
	gone, _, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/users", nil))
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Empty(t, m.HandlersForName(name))
	assert.Nil(t, m.CORSConfigForHandler(hm))
	assert.Empty(t, m.HandlerMethods())

	// Unregistering again is a no-op
	m.UnregisterMapping(key)
}

func TestDirectPathIndex(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	literal := NewRouteKey([]string{"/users"}, nil)
	pattern := NewRouteKey([]string{"/orders/{id}"}, nil)
	mustRegister(t, m, literal, &recordingHandler{name: "users"})
	mustRegister(t, m, pattern, &recordingHandler{name: "orders"})

	registry := m.Registry()
	registry.RLock()
	assert.Equal(t, []RouteKey{literal}, registry.MappingsByPath("/users"))
	assert.Empty(t, registry.MappingsByPath("/orders/{id}"))
	registry.RUnlock()
}

func TestDirectPathIndexSharedLiteral(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	get := NewRouteKey([]string{"/users"}, []string{"GET"})
	post := NewRouteKey([]string{"/users"}, []string{"POST"})
	mustRegister(t, m, get, &recordingHandler{name: "list"})
	mustRegister(t, m, post, &recordingHandler{name: "create"})

	registry := m.Registry()
	registry.RLock()
	assert.ElementsMatch(t, []RouteKey{get, post}, registry.MappingsByPath("/users"))
	registry.RUnlock()

	// Both keys stay independently dispatchable
	hm, matched, err := m.HandlerForRequest(httptest.NewRequest(http.MethodPost, "/users", nil))
	require.NoError(t, err)
	require.NotNil(t, hm)
	rec := httptest.NewRecorder()
	hm.Func()(rec, matched)
	assert.Equal(t, "create", rec.Header().Get("X-Handler"))

	// Removing one leaves the other in the index
	m.UnregisterMapping(get)
	registry.RLock()
	assert.Equal(t, []RouteKey{post}, registry.MappingsByPath("/users"))
	registry.RUnlock()

	hm, _, err = m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/users", nil))
	require.NoError(t, err)
	assert.Nil(t, hm)
}

func TestHandlersForNameClash(t *testing.T) {
	t.Parallel()

	adapter := NewRouteKeyAdapter(pathmatch.NewAntMatcher())
	m := New[RouteKey](adapter, WithNamer[RouteKey](adapter))

	// Two different handlers sharing the derived name
	require.NoError(t, m.RegisterMapping(NewRouteKey([]string{"/a"}, nil),
		handler.NamedRef("UserHandler"), "List", func(http.ResponseWriter, *http.Request) {}))
	require.NoError(t, m.RegisterMapping(NewRouteKey([]string{"/b"}, nil),
		handler.NamedRef("UrgentHandler"), "List", func(http.ResponseWriter, *http.Request) {}))

	assert.Len(t, m.HandlersForName("UH#List"), 2)
}

func TestResolutionModes(t *testing.T) {
	t.Parallel()

	t.Run("eager resolves at registration", func(t *testing.T) {
		t.Parallel()
		calls := 0
		instance := &recordingHandler{name: "users"}
		resolver := handler.ResolverFunc(func(string) (any, error) {
			calls++
			return instance, nil
		})

		m, _ := newTestMapping(WithResolver[RouteKey](resolver))
		require.NoError(t, m.RegisterMapping(NewRouteKey([]string{"/users"}, nil),
			handler.NamedRef("users"), "ServeHTTP", nil))
		assert.Equal(t, 1, calls)

		for n := 0; n < 3; n++ {
			hm, _, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/users", nil))
			require.NoError(t, err)
			require.NotNil(t, hm)
			assert.Same(t, instance, hm.Ref().Instance())
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("lazy resolves per lookup", func(t *testing.T) {
		t.Parallel()
		calls := 0
		resolver := handler.ResolverFunc(func(string) (any, error) {
			calls++
			return &recordingHandler{name: "users"}, nil
		})

		m, _ := newTestMapping(WithResolver[RouteKey](resolver), WithLazyResolution[RouteKey]())
		require.NoError(t, m.RegisterMapping(NewRouteKey([]string{"/users"}, nil),
			handler.NamedRef("users"), "ServeHTTP", nil))
		assert.Equal(t, 0, calls)

		for i := 1; i <= 3; i++ {
			hm, _, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/users", nil))
			require.NoError(t, err)
			require.NotNil(t, hm)
			require.NotNil(t, hm.Func())
			assert.Equal(t, i, calls)
		}
	})

	t.Run("lazy resolution failure surfaces at lookup", func(t *testing.T) {
		t.Parallel()
		resolver := handler.ResolverFunc(func(name string) (any, error) {
			return nil, fmt.Errorf("no such handler %q", name)
		})

		m, _ := newTestMapping(WithResolver[RouteKey](resolver), WithLazyResolution[RouteKey]())
		require.NoError(t, m.RegisterMapping(NewRouteKey([]string{"/users"}, nil),
			handler.NamedRef("users"), "ServeHTTP", nil))

		_, _, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/users", nil))
		assert.Error(t, err)
	})
}

func TestDetectHandlers(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	h := &recordingHandler{name: "users"}
	catalog := CatalogFunc[RouteKey](func() []DetectedMethod[RouteKey] {
		return []DetectedMethod[RouteKey]{
			{Mapping: NewRouteKey([]string{"/users"}, []string{"GET"}), Ref: handler.BoundRef(h), MethodName: "List", Fn: h.ServeHTTP},
			{Mapping: NewRouteKey([]string{"/users"}, []string{"POST"}), Ref: handler.BoundRef(h), MethodName: "Create", Fn: h.ServeHTTP},
		}
	})

	require.NoError(t, m.DetectHandlers(catalog))
	assert.Len(t, m.HandlerMethods(), 2)
}

func TestConcurrentRegisterAndLookup(t *testing.T) {
	t.Parallel()

	m, _ := newTestMapping()
	h := &recordingHandler{name: "stable"}
	mustRegister(t, m, NewRouteKey([]string{"/stable"}, nil), h)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		key := NewRouteKey([]string{fmt.Sprintf("/worker/%d", i)}, nil)
		go func() {
			defer wg.Done()
			worker := &recordingHandler{name: "worker"}
			for n := 0; n < 50; n++ {
				_ = m.RegisterMapping(key, handler.BoundRef(worker), "ServeHTTP", worker.ServeHTTP)
				m.UnregisterMapping(key)
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				hm, _, err := m.HandlerForRequest(httptest.NewRequest(http.MethodGet, "/stable", nil))
				assert.NoError(t, err)
				assert.NotNil(t, hm)
			}
		}()
	}
	wg.Wait()
}
