// Package mapping implements the URL-to-handler-method mapping engine:
// a concurrent, mutable routing table with deterministic best-match
// selection, ambiguity detection, and CORS-aware handler resolution.
//
// The engine is generic over the mapping key type. A key is an opaque,
// comparable descriptor of a route's matching conditions; everything
// key-specific (direct URLs, request matching, specificity ordering)
// is supplied through the Adapter contract. RouteKey is the default
// key shipped with the package.
//
// Registrations and lookups may run concurrently: writes hold the
// registry write lock for their whole duration, bulk reads take the
// read lock, and point lookups by name or handler use lock-free
// indexes.
package mapping
