// Package cors provides CORS configuration and request processing for
// the handler mapping engine.
package cors

import "strings"

// Config contains the CORS policy bound to a handler.
type Config struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultConfig returns the default CORS policy.
func DefaultConfig() *Config {
	return &Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		MaxAge:       86400,
	}
}

// AllowAll returns the most permissive policy. It is paired with the
// preflight ambiguous-match handler so that preflight probes are never
// blocked by route ambiguity.
func AllowAll() *Config {
	return &Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}
}

// Combine merges another policy into this one, the other policy's
// entries taking precedence where set. Either receiver or argument may
// be nil.
func (c *Config) Combine(other *Config) *Config {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	merged := &Config{
		AllowOrigins:     combineLists(c.AllowOrigins, other.AllowOrigins),
		AllowMethods:     combineLists(c.AllowMethods, other.AllowMethods),
		AllowHeaders:     combineLists(c.AllowHeaders, other.AllowHeaders),
		ExposeHeaders:    combineLists(c.ExposeHeaders, other.ExposeHeaders),
		AllowCredentials: c.AllowCredentials || other.AllowCredentials,
		MaxAge:           c.MaxAge,
	}
	if other.MaxAge > 0 {
		merged.MaxAge = other.MaxAge
	}
	return merged
}

func combineLists(base, override []string) []string {
	if len(override) > 0 {
		return override
	}
	return base
}

// AllowsOrigin reports whether the given origin is permitted. Origins
// may be listed exactly, as "*", or as wildcard subdomain patterns
// like "*.example.com".
func (c *Config) AllowsOrigin(origin string) bool {
	if c == nil || origin == "" {
		return false
	}
	for _, allowed := range c.AllowOrigins {
		switch {
		case allowed == "*":
			return true
		case strings.HasPrefix(allowed, "*."):
			if matchWildcardOrigin(origin, allowed) {
				return true
			}
		case allowed == origin:
			return true
		}
	}
	return false
}

// matchWildcardOrigin checks if an origin matches a wildcard pattern.
// Pattern format: "*.example.com" matches "sub.example.com",
// "api.example.com", etc.
func matchWildcardOrigin(origin, pattern string) bool {
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}

	suffix := pattern[1:] // ".example.com"

	// Origin format: "https://sub.example.com" or "http://sub.example.com:8080"
	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	// Require at least one character before the suffix (the subdomain)
	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}

// AllowsMethod reports whether the given HTTP method is permitted.
func (c *Config) AllowsMethod(method string) bool {
	if c == nil {
		return false
	}
	method = strings.ToUpper(method)
	for _, allowed := range c.AllowMethods {
		if allowed == "*" || strings.ToUpper(allowed) == method {
			return true
		}
	}
	return false
}

// AllowsHeaders reports whether every requested header is permitted.
// An empty request list is always permitted.
func (c *Config) AllowsHeaders(requested []string) bool {
	if c == nil {
		return len(requested) == 0
	}
	for _, header := range requested {
		if !c.allowsHeader(header) {
			return false
		}
	}
	return true
}

func (c *Config) allowsHeader(header string) bool {
	for _, allowed := range c.AllowHeaders {
		if allowed == "*" || strings.EqualFold(allowed, header) {
			return true
		}
	}
	return false
}
