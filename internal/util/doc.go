// Package util provides shared utility types for the handler
// mapping engine.
//
// This package contains the structured error types used across the
// module:
//
//   - AmbiguousMappingError: conflicting registration under one key
//   - AmbiguousMatchError: request-time best-match tie
//   - ConflictingHandlerError: URL path bound to two different handlers
//   - BestPatternError: internal registry invariant violation
//   - ConfigError: configuration validation errors
//   - Common sentinel errors: ErrNotFound, ErrInvalidInput, etc.
//
// See errors.go for the error conventions followed by every package.
package util
