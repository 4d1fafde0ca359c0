package cors

import (
	"net/http"
	"strconv"
	"strings"
)

// IsCORSRequest reports whether the request carries an Origin header
// naming a different origin than the request host.
func IsCORSRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	return !isSameOrigin(r, origin)
}

// IsPreflight reports whether the request is a CORS preflight probe:
// an OPTIONS request with both an Origin and an
// Access-Control-Request-Method header.
func IsPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

// isSameOrigin compares the Origin header against the request's own
// scheme and host.
func isSameOrigin(r *http.Request, origin string) bool {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return origin == scheme+"://"+r.Host
}

// Processor validates CORS requests against a policy and writes the
// response headers. A nil policy skips header emission for actual
// requests and rejects preflights.
type Processor struct{}

// NewProcessor creates a new Processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process applies the policy to the request. It returns false when the
// request was rejected and the response is complete; handlers must not
// run in that case.
func (p *Processor) Process(cfg *Config, w http.ResponseWriter, r *http.Request) bool {
	if !IsCORSRequest(r) {
		return true
	}

	// Another layer already handled CORS for this response
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		return true
	}

	preflight := IsPreflight(r)
	if cfg == nil {
		if preflight {
			p.reject(w)
			return false
		}
		return true
	}

	origin := r.Header.Get("Origin")
	if !cfg.AllowsOrigin(origin) {
		p.reject(w)
		return false
	}

	method := r.Method
	if preflight {
		method = r.Header.Get("Access-Control-Request-Method")
	}
	if !cfg.AllowsMethod(method) {
		p.reject(w)
		return false
	}

	requestedHeaders := parseRequestHeaders(r)
	if preflight && !cfg.AllowsHeaders(requestedHeaders) {
		p.reject(w)
		return false
	}

	p.writeHeaders(cfg, w, origin, preflight, requestedHeaders)

	if preflight {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	return true
}

// reject marks the response as an invalid CORS request.
func (p *Processor) reject(w http.ResponseWriter) {
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("Invalid CORS request"))
}

// writeHeaders emits the response headers for an allowed request.
func (p *Processor) writeHeaders(cfg *Config, w http.ResponseWriter, origin string, preflight bool, requestedHeaders []string) {
	h := w.Header()

	// Echo the specific origin; required when credentials are allowed
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")

	if cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	if preflight {
		h.Add("Vary", "Access-Control-Request-Method")
		h.Add("Vary", "Access-Control-Request-Headers")

		if len(cfg.AllowMethods) > 0 {
			h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
		}
		if len(requestedHeaders) > 0 {
			h.Set("Access-Control-Allow-Headers", strings.Join(requestedHeaders, ", "))
		} else if len(cfg.AllowHeaders) > 0 {
			h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
		}
		if cfg.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}
		return
	}

	if len(cfg.ExposeHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
	}
}

// parseRequestHeaders splits the Access-Control-Request-Headers list.
func parseRequestHeaders(r *http.Request) []string {
	raw := r.Header.Get("Access-Control-Request-Headers")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	headers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			headers = append(headers, trimmed)
		}
	}
	return headers
}
