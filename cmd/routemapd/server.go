package main

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatewaylab/routemap/internal/mapping"
	"github.com/gatewaylab/routemap/internal/observability"
	"github.com/gatewaylab/routemap/internal/util"
)

// buildHTTPHandler assembles the daemon's HTTP surface: the metrics
// endpoint plus the mapping engine front door.
func (a *application) buildHTTPHandler(metricsPath string) http.Handler {
	mux := http.NewServeMux()
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	mux.Handle(metricsPath, promhttp.Handler())
	mux.Handle("/", requestIDMiddleware(http.HandlerFunc(a.serve)))
	return mux
}

// serve dispatches a request through the handler method engine, falling
// back to the URL map.
func (a *application) serve(w http.ResponseWriter, r *http.Request) {
	hm, r, err := a.engine.HandlerForRequest(r)
	if err != nil {
		a.writeLookupError(w, r, err)
		return
	}
	if hm != nil {
		policy := a.engine.CORSConfigForHandler(hm)
		if !a.processor.Process(policy, w, r) {
			return
		}
		if fn := hm.Func(); fn != nil {
			fn(w, r)
			return
		}
		if h, ok := hm.Ref().Instance().(http.Handler); ok {
			h.ServeHTTP(w, r)
			return
		}
		a.logger.Error("matched handler method is not callable",
			observability.String("handler", hm.String()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	a.serveFromURLMap(w, r)
}

// serveFromURLMap consults the coarse URL map after the method engine
// found nothing.
func (a *application) serveFromURLMap(w http.ResponseWriter, r *http.Request) {
	lookupPath := mapping.CleanLookupPath(r.URL.Path)
	m, err := a.urls.Load().HandlerForPath(lookupPath)
	if err != nil {
		a.writeLookupError(w, r, err)
		return
	}
	if m == nil {
		http.NotFound(w, r)
		return
	}

	ctx := mapping.ContextWithBestPattern(r.Context(), m.BestPattern)
	ctx = mapping.ContextWithPathWithinMapping(ctx, m.PathWithinMapping)
	if len(m.Variables) > 0 {
		ctx = mapping.ContextWithURIVariables(ctx, m.Variables)
	}

	h, ok := m.Handler.(http.Handler)
	if !ok {
		a.logger.Error("mapped handler does not implement http.Handler",
			observability.String("pattern", m.BestPattern),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.ServeHTTP(w, r.WithContext(ctx))
}

// writeLookupError maps lookup failures to HTTP responses.
func (a *application) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	log := a.logger.WithContext(r.Context())

	var ambiguous *util.AmbiguousMatchError
	if errors.As(err, &ambiguous) {
		log.Error("ambiguous handler mapping",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		http.Error(w, "ambiguous handler mapping", http.StatusInternalServerError)
		return
	}

	log.Error("handler lookup failed",
		observability.String("path", r.URL.Path),
		observability.Error(err),
	)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// requestIDMiddleware assigns each request an ID, honoring one supplied
// by the client.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := observability.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
