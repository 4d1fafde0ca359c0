package mapping

import (
	"net/http"

	"github.com/gatewaylab/routemap/internal/cors"
	"github.com/gatewaylab/routemap/internal/handler"
)

// Adapter supplies the key-type-specific behavior the registry and the
// lookup engine need. The engine assumes nothing about the key beyond
// comparability and this contract.
type Adapter[T comparable] interface {
	// PathPatterns returns the URL path patterns contained in the
	// mapping key, literal paths included.
	PathPatterns(mapping T) []string

	// MatchRequest checks the mapping key against the live request and
	// returns a (possibly narrowed) key representing the matched
	// subset of conditions, or false when the key does not match.
	MatchRequest(mapping T, r *http.Request) (T, bool)

	// CompareForRequest returns a comparator ranking two keys by how
	// well they match the given request; lower means more specific.
	// Keys matching the same request must be totally ordered.
	CompareForRequest(r *http.Request) func(a, b T) int

	// DescribeMapping renders the key for log and error messages.
	DescribeMapping(mapping T) string
}

// Namer derives a human-readable name for a registered handler method.
// Optional: when configured, the registry maintains the name index.
type Namer[T comparable] interface {
	Name(hm *handler.Method, mapping T) string
}

// CORSSource extracts the CORS policy bound to a handler method at
// registration time. Optional.
type CORSSource[T comparable] interface {
	CORSConfig(hm *handler.Method, mapping T) *cors.Config
}

// MatchBinder lets an adapter bind request-scoped match context
// (best pattern, template variables) after a winning match. Optional;
// without it the engine binds only the lookup path.
type MatchBinder[T comparable] interface {
	BindMatch(mapping T, lookupPath string, r *http.Request) *http.Request
}

// DetectedMethod is one (mapping key, handler method) pair yielded by
// a Catalog.
type DetectedMethod[T comparable] struct {
	Mapping    T
	Ref        handler.Ref
	MethodName string
	Fn         http.HandlerFunc
}

// Catalog enumerates the handler methods of an application, decoupling
// the registry from any particular discovery mechanism.
type Catalog[T comparable] interface {
	HandlerMethods() []DetectedMethod[T]
}

// CatalogFunc adapts a function to the Catalog interface.
type CatalogFunc[T comparable] func() []DetectedMethod[T]

// HandlerMethods implements Catalog.
func (f CatalogFunc[T]) HandlerMethods() []DetectedMethod[T] {
	return f()
}
