package mapping

import "context"

// contextKey is the key type for match attributes bound to the
// request context after a winning lookup.
type contextKey string

const (
	bestPatternKey       contextKey = "best-matching-pattern"
	pathWithinMappingKey contextKey = "path-within-mapping"
	uriVariablesKey      contextKey = "uri-template-variables"
)

// ContextWithBestPattern binds the best-matching pattern.
func ContextWithBestPattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, bestPatternKey, pattern)
}

// BestPatternFromContext returns the best-matching pattern, or "".
func BestPatternFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(bestPatternKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithPathWithinMapping binds the path within the mapping.
func ContextWithPathWithinMapping(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, pathWithinMappingKey, path)
}

// PathWithinMappingFromContext returns the path within the mapping, or "".
func PathWithinMappingFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(pathWithinMappingKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithURIVariables binds the extracted URI template variables.
func ContextWithURIVariables(ctx context.Context, vars map[string]string) context.Context {
	return context.WithValue(ctx, uriVariablesKey, vars)
}

// URIVariablesFromContext returns the URI template variables, or nil.
func URIVariablesFromContext(ctx context.Context) map[string]string {
	if v, ok := ctx.Value(uriVariablesKey).(map[string]string); ok {
		return v
	}
	return nil
}
