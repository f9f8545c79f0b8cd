package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vantari/taskweave/internal/capability"
	"github.com/vantari/taskweave/internal/gateway"
	"github.com/vantari/taskweave/internal/provider"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	providers    *provider.Router
	capabilities *capability.Registry
	restGW       *gateway.RESTAdapter
	gw           *gateway.Gateway
	logger       *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	providers *provider.Router,
	capabilities *capability.Registry,
	restGW *gateway.RESTAdapter,
	gw *gateway.Gateway,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		providers:    providers,
		capabilities: capabilities,
		restGW:       restGW,
		gw:           gw,
		logger:       logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/capabilities", h.listCapabilities)
		r.Get("/providers", h.listProviders)
		r.Get("/gateways", h.listGateways)
		r.Mount("/gateway/rest", h.restGW.Routes())
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "taskweave"})
}

func (h *Handler) listCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.capabilities.Types())
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	type providerInfo struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Healthy bool   `json:"healthy"`
	}
	var out []providerInfo
	for _, p := range h.providers.ListProviders() {
		out = append(out, providerInfo{
			ID:      p.ID(),
			Name:    p.Name(),
			Healthy: p.HealthCheck(r.Context()) == nil,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listGateways(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gw.Adapters())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
