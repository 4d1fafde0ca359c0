// Package util provides utility types for the handler mapping engine.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., AmbiguousMappingError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrAmbiguousMapping = errors.New("ambiguous mapping")
	ErrInternalState    = errors.New("internal state violation")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// AmbiguousMappingError is raised at registration time when a mapping
// key is already bound to a different handler method.
type AmbiguousMappingError struct {
	Mapping  string
	Existing string
	New      string
}

// Error implements the error interface.
func (e *AmbiguousMappingError) Error() string {
	return fmt.Sprintf("ambiguous mapping: cannot map %s to %s, %s is already mapped",
		e.New, e.Mapping, e.Existing)
}

// Is checks if the error matches the target.
func (e *AmbiguousMappingError) Is(target error) bool {
	if target == ErrAmbiguousMapping {
		return true
	}
	_, ok := target.(*AmbiguousMappingError)
	return ok
}

// NewAmbiguousMappingError creates a new AmbiguousMappingError.
func NewAmbiguousMappingError(mapping, existing, newHandler string) *AmbiguousMappingError {
	return &AmbiguousMappingError{Mapping: mapping, Existing: existing, New: newHandler}
}

// AmbiguousMatchError is raised at request time when two mappings tie
// for best match on a specific request path.
type AmbiguousMatchError struct {
	Path   string
	First  string
	Second string
}

// Error implements the error interface.
func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous handler methods mapped for path %q: {%s, %s}",
		e.Path, e.First, e.Second)
}

// Is checks if the error matches the target.
func (e *AmbiguousMatchError) Is(target error) bool {
	if target == ErrAmbiguousMapping {
		return true
	}
	_, ok := target.(*AmbiguousMatchError)
	return ok
}

// NewAmbiguousMatchError creates a new AmbiguousMatchError.
func NewAmbiguousMatchError(path, first, second string) *AmbiguousMatchError {
	return &AmbiguousMatchError{Path: path, First: first, Second: second}
}

// ConflictingHandlerError is raised when a URL path is registered with
// a handler different from the one already mapped to it.
type ConflictingHandlerError struct {
	Path     string
	Existing string
	New      string
}

// Error implements the error interface.
func (e *ConflictingHandlerError) Error() string {
	return fmt.Sprintf("cannot map %s to URL path %q: %s is already mapped",
		e.New, e.Path, e.Existing)
}

// Is checks if the error matches the target.
func (e *ConflictingHandlerError) Is(target error) bool {
	if target == ErrAmbiguousMapping {
		return true
	}
	_, ok := target.(*ConflictingHandlerError)
	return ok
}

// NewConflictingHandlerError creates a new ConflictingHandlerError.
func NewConflictingHandlerError(path, existing, newHandler string) *ConflictingHandlerError {
	return &ConflictingHandlerError{Path: path, Existing: existing, New: newHandler}
}

// BestPatternError signals that the best-matching pattern selected
// during lookup resolved to no stored handler. This is a registry bug,
// not a user-facing condition.
type BestPatternError struct {
	Pattern string
}

// Error implements the error interface.
func (e *BestPatternError) Error() string {
	return fmt.Sprintf("could not find handler for best pattern match %q", e.Pattern)
}

// Is checks if the error matches the target.
func (e *BestPatternError) Is(target error) bool {
	if target == ErrInternalState {
		return true
	}
	_, ok := target.(*BestPatternError)
	return ok
}

// NewBestPatternError creates a new BestPatternError.
func NewBestPatternError(pattern string) *BestPatternError {
	return &BestPatternError{Pattern: pattern}
}

// ResolveError represents a failure to resolve a named handler
// reference to a concrete instance.
type ResolveError struct {
	Name  string
	Cause error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot resolve handler %q: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("cannot resolve handler %q", e.Name)
}

// Unwrap returns the underlying error.
func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ResolveError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	_, ok := target.(*ResolveError)
	return ok || errors.Is(e.Cause, target)
}

// NewResolveError creates a new ResolveError.
func NewResolveError(name string, cause error) *ResolveError {
	return &ResolveError{Name: name, Cause: cause}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsFatalMapping returns true if the error is a fatal mapping
// consistency violation rather than a recoverable condition.
func IsFatalMapping(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAmbiguousMapping) || errors.Is(err, ErrInternalState)
}
