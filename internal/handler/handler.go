// Package handler defines the handler reference and handler method
// types shared by the mapping registries.
package handler

import (
	"fmt"
	"net/http"
	"reflect"

	"github.com/gatewaylab/routemap/internal/util"
)

// Ref is a tagged reference to a handler: either a symbolic name to be
// resolved through a Resolver, or a directly bound instance.
type Ref struct {
	name     string
	instance any
}

// NamedRef creates a Ref holding a symbolic handler name.
func NamedRef(name string) Ref {
	return Ref{name: name}
}

// BoundRef creates a Ref holding a concrete handler instance. The
// instance must be comparable (typically a pointer): handler identity
// is part of method equality. Binding an uncomparable instance such as
// a bare func value panics here rather than later inside equality
// checks.
func BoundRef(instance any) Ref {
	if instance != nil && !reflect.TypeOf(instance).Comparable() {
		panic(fmt.Sprintf("handler: cannot bind instance of uncomparable type %T", instance))
	}
	return Ref{instance: instance}
}

// IsNamed reports whether the reference is symbolic.
func (r Ref) IsNamed() bool {
	return r.instance == nil && r.name != ""
}

// Name returns the symbolic name, or "" for a bound reference.
func (r Ref) Name() string {
	return r.name
}

// Instance returns the bound instance, or nil for a named reference.
func (r Ref) Instance() any {
	return r.instance
}

// String describes the reference for diagnostics.
func (r Ref) String() string {
	if r.IsNamed() {
		return fmt.Sprintf("handler %q", r.name)
	}
	return fmt.Sprintf("handler of type %T", r.instance)
}

// Resolver resolves a symbolic handler name to a concrete instance.
// Supplied by the surrounding application (e.g. a service container).
type Resolver interface {
	Resolve(name string) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) (any, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(name string) (any, error) {
	return f(name)
}

// Method is an immutable pair of a handler reference and the callable
// it exposes for a route. Equality is by underlying handler identity
// plus method name.
type Method struct {
	ref          Ref
	methodName   string
	fn           http.HandlerFunc
	resolvedFrom *Method
}

// NewMethod creates a handler method for the given reference.
func NewMethod(ref Ref, methodName string, fn http.HandlerFunc) *Method {
	return &Method{ref: ref, methodName: methodName, fn: fn}
}

// Ref returns the handler reference.
func (m *Method) Ref() Ref {
	return m.ref
}

// MethodName returns the name of the exposed callable.
func (m *Method) MethodName() string {
	return m.methodName
}

// Func returns the callable, which is nil until the method is resolved
// when the reference is symbolic and carries no function.
func (m *Method) Func() http.HandlerFunc {
	return m.fn
}

// ResolvedFrom returns the original method this one was resolved from,
// or nil if this method is the original registration.
func (m *Method) ResolvedFrom() *Method {
	return m.resolvedFrom
}

// ResolveWith returns a copy of the method with the handler instance
// bound through the resolver. Bound references are returned as a copy
// that remembers the original. Resolution of a named reference that
// yields an http.Handler also binds the callable when none was set.
func (m *Method) ResolveWith(resolver Resolver) (*Method, error) {
	resolved := *m
	resolved.resolvedFrom = m.original()

	if !m.ref.IsNamed() {
		return &resolved, nil
	}

	if resolver == nil {
		return nil, util.NewResolveError(m.ref.Name(), nil)
	}
	instance, err := resolver.Resolve(m.ref.Name())
	if err != nil {
		return nil, util.NewResolveError(m.ref.Name(), err)
	}
	resolved.ref = BoundRef(instance)
	if resolved.fn == nil {
		if h, ok := instance.(http.Handler); ok {
			resolved.fn = h.ServeHTTP
		}
	}
	return &resolved, nil
}

// Equal reports whether two methods refer to the same handler and
// callable. A resolved method is equal to its original.
func (m *Method) Equal(other *Method) bool {
	if m == nil || other == nil {
		return m == other
	}
	a, b := m.original(), other.original()
	if a == b {
		return true
	}
	return a.ref == b.ref && a.methodName == b.methodName
}

func (m *Method) original() *Method {
	if m.resolvedFrom != nil {
		return m.resolvedFrom
	}
	return m
}

// String describes the method for diagnostics.
func (m *Method) String() string {
	return fmt.Sprintf("%s#%s", m.ref, m.methodName)
}
