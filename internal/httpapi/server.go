// Package httpapi is the request gateway: it validates untrusted form
// input, drives the registry, provider, and simulation layers, and
// translates their failures into HTTP status codes. No other layer
// knows about status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/chatcc/evalsim/internal/config"
	"github.com/chatcc/evalsim/internal/observability"
	"github.com/chatcc/evalsim/internal/provider"
	"github.com/chatcc/evalsim/internal/registry"
	"github.com/chatcc/evalsim/internal/simulate"
	"github.com/chatcc/evalsim/internal/store"
)

// Registry is the slice of the prompt registry the gateway needs.
type Registry interface {
	ListPrompts(ctx context.Context) ([]string, error)
	Pull(ctx context.Context, promptID string) (*registry.Template, error)
}

type Server struct {
	cfg      config.Config
	store    store.Store
	registry Registry
	sim      *simulate.Service
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, st store.Store, reg Registry, sim *simulate.Service, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		registry: reg,
		sim:      sim,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(cfg, r)
			},
		},
	}
}

// originAllowed mirrors the CORS policy for websocket upgrades:
// any origin when configured, otherwise same-host only. Non-browser
// clients without an Origin header are always allowed.
func originAllowed(cfg config.Config, r *http.Request) bool {
	if cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return originAllowed(s.cfg, r)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/simulate", s.handleSimulate)
	r.Get("/prompts", s.handleListPrompts)
	r.Get("/prompt-variables", s.handlePromptVariables)

	r.Get("/v1/datasets", s.handleListDatasets)
	r.Post("/v1/datasets", s.handleCreateDataset)
	r.Delete("/v1/datasets/{name}", s.handleDeleteDataset)
	r.Post("/v1/datasets/{name}/rename", s.handleRenameDataset)

	r.Get("/v1/datasets/{name}/conversations", s.handleListConversations)
	r.Post("/v1/datasets/{name}/conversations", s.handleUploadConversation)
	r.Put("/v1/datasets/{name}/conversations/{id}", s.handleSaveConversation)
	r.Delete("/v1/datasets/{name}/conversations/{id}", s.handleDeleteConversation)
	r.Post("/v1/datasets/{name}/conversations/{id}/duplicate", s.handleDuplicateConversation)
	r.Post("/v1/datasets/{name}/conversations/{id}/simulate", s.handleSimulateConversation)

	r.Post("/v1/datasets/{name}/simulate", s.handleSimulateDataset)
	r.Get("/v1/datasets/{name}/simulate/ws", s.handleSimulateDatasetWS)

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"message": "Evaluation Simulation backend is live!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// detailResponse is the error body shape the dashboard surfaces
// verbatim.
type detailResponse struct {
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, detailResponse{Detail: detail})
}

// respondStoreError maps store failures: caller mistakes are 400,
// missing documents 404, anything else 500.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalid):
		respondDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondDetail(w, http.StatusNotFound, err.Error())
	default:
		respondDetail(w, http.StatusInternalServerError, err.Error())
	}
}

// respondSimulationError maps the simulate path's failures per the
// gateway contract: bad prompt/model input is 400, throttled provider
// calls 429, everything else 500 with the error text.
func respondSimulationError(w http.ResponseWriter, err error) {
	var unsupported *provider.UnsupportedModelError
	switch {
	case errors.As(err, &unsupported),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, registry.ErrAuth):
		respondDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondDetail(w, http.StatusNotFound, err.Error())
	case provider.IsThrottled(err):
		respondDetail(w, http.StatusTooManyRequests, "The model provider is rate limiting requests. Please retry later.")
	default:
		respondDetail(w, http.StatusInternalServerError, "Simulation failed: "+err.Error())
	}
}

func decodeJSONBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
