package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates an HTTP server with all routes configured. When gatherer
// is nil /metrics is not exposed.
func NewServer(port string, handler *Handler, adminAPIKey string, gatherer prometheus.Gatherer) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewMux(handler, adminAPIKey, gatherer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers the API routes.
func NewMux(handler *Handler, adminAPIKey string, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/assets", handler.ListAssets)
	mux.HandleFunc("GET /api/v1/assets/{id}", handler.GetAsset)
	mux.HandleFunc("GET /api/v1/assets/{id}/compute", handler.ComputeAsset)
	mux.HandleFunc("GET /api/v1/assets/{id}/latest", handler.LatestQuote)
	mux.HandleFunc("POST /api/v1/preview", handler.PreviewImpact)

	calcHandler := http.HandlerFunc(handler.RunCalculation)
	if adminAPIKey != "" {
		mux.Handle("POST /api/v1/calculations", requireAuth(adminAPIKey, calcHandler))
	} else {
		mux.Handle("POST /api/v1/calculations", calcHandler)
	}

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
