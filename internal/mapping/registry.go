package mapping

import (
	"sync"

	"github.com/gatewaylab/routemap/internal/cors"
	"github.com/gatewaylab/routemap/internal/handler"
	"github.com/gatewaylab/routemap/internal/observability"
	"github.com/gatewaylab/routemap/internal/pathmatch"
	"github.com/gatewaylab/routemap/internal/util"
)

// Registration is the immutable record of one registered mapping: the
// key, its handler method, the literal (non-pattern) URLs derived from
// the key, and an optional mapping name.
type Registration[T comparable] struct {
	Mapping       T
	HandlerMethod *handler.Method
	DirectPaths   []string
	Name          string
}

// Registry maintains the authoritative table of mapping key to handler
// method, plus the derived indexes used for lookups.
//
// A single reader-writer lock guards the registration table, the
// primary mapping index and the direct-URL index; writers update all
// of them in one critical section. The name and CORS indexes are
// lock-free concurrent maps: point lookups on them do not need the
// read lock and may transiently lag an in-flight write.
type Registry[T comparable] struct {
	mu            sync.RWMutex
	registrations map[T]*Registration[T]
	mappingLookup map[T]*handler.Method
	urlLookup     map[string][]T

	nameLookup sync.Map // string -> []*handler.Method
	corsLookup sync.Map // *handler.Method -> *cors.Config

	adapter    Adapter[T]
	matcher    pathmatch.Matcher
	namer      Namer[T]
	corsSource CORSSource[T]
	logger     observability.Logger
}

// NewRegistry creates an empty registry driven by the given adapter.
func NewRegistry[T comparable](adapter Adapter[T], matcher pathmatch.Matcher, logger observability.Logger) *Registry[T] {
	if matcher == nil {
		matcher = pathmatch.NewAntMatcher()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registry[T]{
		registrations: make(map[T]*Registration[T]),
		mappingLookup: make(map[T]*handler.Method),
		urlLookup:     make(map[string][]T),
		adapter:       adapter,
		matcher:       matcher,
		logger:        logger,
	}
}

// SetNamer configures the naming strategy used to index handler
// methods by name. Must be called before any registration.
func (r *Registry[T]) SetNamer(namer Namer[T]) {
	r.namer = namer
}

// SetCORSSource configures the CORS policy extraction used at
// registration time. Must be called before any registration.
func (r *Registry[T]) SetCORSSource(src CORSSource[T]) {
	r.corsSource = src
}

// RLock acquires the read lock. Required around Mappings and
// MappingsByPath, held until their results are no longer used.
func (r *Registry[T]) RLock() {
	r.mu.RLock()
}

// RUnlock releases the read lock.
func (r *Registry[T]) RUnlock() {
	r.mu.RUnlock()
}

// Mappings returns the primary mapping index. Not safe against
// concurrent writes: the caller must hold the read lock.
func (r *Registry[T]) Mappings() map[T]*handler.Method {
	return r.mappingLookup
}

// MappingsByPath returns the mapping keys registered under the given
// literal URL. Not safe against concurrent writes: the caller must
// hold the read lock.
func (r *Registry[T]) MappingsByPath(path string) []T {
	return r.urlLookup[path]
}

// HandlersByName returns the handler methods indexed under the given
// mapping name. Safe for concurrent use without the read lock.
func (r *Registry[T]) HandlersByName(name string) []*handler.Method {
	if v, ok := r.nameLookup.Load(name); ok {
		return v.([]*handler.Method)
	}
	return nil
}

// CORSConfig returns the CORS policy bound to the handler method, or
// nil. The index is keyed by the original registration, so a resolved
// method is looked up through its origin. Safe for concurrent use
// without the read lock.
func (r *Registry[T]) CORSConfig(hm *handler.Method) *cors.Config {
	if hm == nil {
		return nil
	}
	if v, ok := r.corsLookup.Load(originalMethod(hm)); ok {
		return v.(*cors.Config)
	}
	return nil
}

// Register binds the mapping key to the given handler method. All
// indexes are updated in one atomic write section.
//
// Registering an equal key with an equal handler method is a no-op.
// Registering an equal key with a different handler method fails with
// an AmbiguousMappingError.
func (r *Registry[T]) Register(mapping T, hm *handler.Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.mappingLookup[mapping]; existing != nil {
		if existing.Equal(hm) {
			return nil
		}
		return util.NewAmbiguousMappingError(
			r.adapter.DescribeMapping(mapping), existing.String(), hm.String())
	}

	r.logger.Info("mapped handler method",
		observability.String("mapping", r.adapter.DescribeMapping(mapping)),
		observability.String("handler", hm.String()),
	)

	r.mappingLookup[mapping] = hm

	directPaths := r.directPaths(mapping)
	for _, path := range directPaths {
		r.urlLookup[path] = append(r.urlLookup[path], mapping)
	}

	var name string
	if r.namer != nil {
		name = r.namer.Name(hm, mapping)
		r.addMappingName(name, hm)
	}

	if r.corsSource != nil {
		if cfg := r.corsSource.CORSConfig(hm, mapping); cfg != nil {
			// Keyed by the original, un-resolved handler method
			r.corsLookup.Store(originalMethod(hm), cfg)
		}
	}

	r.registrations[mapping] = &Registration[T]{
		Mapping:       mapping,
		HandlerMethod: hm,
		DirectPaths:   directPaths,
		Name:          name,
	}
	return nil
}

// Unregister removes the mapping and every index entry derived from
// it. Removing an unknown mapping is a no-op. Atomic.
func (r *Registry[T]) Unregister(mapping T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registration := r.registrations[mapping]
	if registration == nil {
		return
	}
	delete(r.registrations, mapping)
	delete(r.mappingLookup, mapping)

	for _, path := range registration.DirectPaths {
		list := r.urlLookup[path]
		for i, m := range list {
			if m == mapping {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(r.urlLookup, path)
		} else {
			r.urlLookup[path] = list
		}
	}

	r.removeMappingName(registration)
	r.corsLookup.Delete(originalMethod(registration.HandlerMethod))
}

// originalMethod follows a resolved handler method back to its
// original registration.
func originalMethod(hm *handler.Method) *handler.Method {
	if from := hm.ResolvedFrom(); from != nil {
		return from
	}
	return hm
}

// directPaths filters the mapping's path patterns down to the literal
// URLs eligible for the direct-URL index.
func (r *Registry[T]) directPaths(mapping T) []string {
	var paths []string
	for _, pattern := range r.adapter.PathPatterns(mapping) {
		if !r.matcher.IsPattern(pattern) {
			paths = append(paths, pattern)
		}
	}
	return paths
}

// addMappingName appends the handler method to the name index unless
// an equal method is already present.
func (r *Registry[T]) addMappingName(name string, hm *handler.Method) {
	var oldList []*handler.Method
	if v, ok := r.nameLookup.Load(name); ok {
		oldList = v.([]*handler.Method)
	}

	for _, current := range oldList {
		if current.Equal(hm) {
			return
		}
	}

	newList := make([]*handler.Method, 0, len(oldList)+1)
	newList = append(newList, oldList...)
	newList = append(newList, hm)
	r.nameLookup.Store(name, newList)

	if len(newList) > 1 {
		r.logger.Debug("mapping name clash",
			observability.String("name", name),
			observability.Int("handlers", len(newList)),
		)
	}
}

// removeMappingName drops the handler method from the name index,
// pruning the name entry when it was the last one.
func (r *Registry[T]) removeMappingName(registration *Registration[T]) {
	name := registration.Name
	if name == "" {
		return
	}
	v, ok := r.nameLookup.Load(name)
	if !ok {
		return
	}
	oldList := v.([]*handler.Method)
	if len(oldList) <= 1 {
		r.nameLookup.Delete(name)
		return
	}
	newList := make([]*handler.Method, 0, len(oldList)-1)
	for _, current := range oldList {
		if !current.Equal(registration.HandlerMethod) {
			newList = append(newList, current)
		}
	}
	r.nameLookup.Store(name, newList)
}
