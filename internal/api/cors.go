package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig is the cross-origin policy for viewers hosted elsewhere. The
// frame headers are exposed so such a viewer can follow X-Frame-Seq and send
// If-None-Match polls.
type CORSConfig struct {
	AllowOrigin   string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int
}

// DefaultCORSConfig allows any origin to read frames and flip the toggle.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:   "*",
		AllowMethods:  []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Authorization", "If-None-Match", "Accept"},
		ExposeHeaders: []string{"ETag", "X-Frame-Seq", "X-Frame-Size"},
		MaxAge:        600,
	}
}

// headerList is a precomputed set of response headers.
type headerList [][2]string

func (c CORSConfig) responseHeaders() headerList {
	return headerList{
		{"Access-Control-Allow-Origin", c.AllowOrigin},
		{"Access-Control-Expose-Headers", strings.Join(c.ExposeHeaders, ", ")},
	}
}

func (c CORSConfig) preflightHeaders() headerList {
	return append(c.responseHeaders(),
		[2]string{"Access-Control-Allow-Methods", strings.Join(c.AllowMethods, ", ")},
		[2]string{"Access-Control-Allow-Headers", strings.Join(c.AllowHeaders, ", ")},
		[2]string{"Access-Control-Max-Age", strconv.Itoa(c.MaxAge)},
	)
}

func (h headerList) apply(set func(name, value string)) {
	for _, kv := range h {
		set(kv[0], kv[1])
	}
}

// NewCORSMiddleware adds the response headers to every huma operation.
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	headers := config.responseHeaders()
	return func(ctx huma.Context, next func(huma.Context)) {
		headers.apply(ctx.SetHeader)
		next(ctx)
	}
}

// withCORS does the same for routes registered on the mux directly, which
// huma middleware never sees.
func withCORS(config CORSConfig, next http.Handler) http.Handler {
	headers := config.responseHeaders()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers.apply(w.Header().Set)
		next.ServeHTTP(w, r)
	})
}

// AddCORSHandler answers preflight requests for every path. Huma routes
// are method specific, so OPTIONS never reaches its middleware.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	headers := config.preflightHeaders()
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		headers.apply(w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}
