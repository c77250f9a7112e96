package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localchat/internal/catalog"
	"localchat/internal/ollama"
	"localchat/internal/session"
	"localchat/internal/settings"
	"localchat/pkg/types"
)

const readyTimeout = 2 * time.Second

// Catalog is the cached model list served by /models.
type Catalog interface {
	Lookup(ctx context.Context, bypass bool) (catalog.Snapshot, error)
	Invalidate()
	TTL() time.Duration
}

// Pinger reports whether Ollama is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the HTTP layer exposes. Nil members disable the
// routes that need them (503), except Settings which falls back to memory.
type Deps struct {
	Streamer session.Streamer
	Catalog  Catalog
	Registry *session.Registry
	Settings settings.Store
	Pinger   Pinger
}

type api struct {
	Deps
}

// NewMux builds the router.
func NewMux(d Deps) http.Handler {
	if d.Settings == nil {
		d.Settings = settings.NewMemoryStore(types.Settings{})
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	// Streaming routes stay uncompressed so every event is flushed as is
	// and the WebSocket upgrade can hijack the connection.
	r.Get("/ws", a.serveWS)
	r.Post("/infer", a.infer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json"))
		r.Get("/models", a.listModels)
		r.Post("/models/invalidate", a.invalidateModels)
		r.Get("/settings", a.getSettings)
		r.Put("/settings", a.putSettings)
		r.Get("/sessions", a.listSessions)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.readyz)

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// listModels godoc
// @Summary      List available models
// @Description  Returns the normalized Ollama model list, cached for ttl_ms. debug=1 bypasses the cache and logs the raw payload.
// @Tags         models
// @Produce      json
// @Param        debug  query     bool  false  "Bypass the cache"
// @Success      200    {object}  types.ModelsResponse
// @Failure      502    {object}  types.ErrorResponse
// @Router       /models [get]
func (a *api) listModels(w http.ResponseWriter, r *http.Request) {
	if a.Catalog == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "model catalog not configured")
		return
	}
	bypass := truthy(r.URL.Query().Get("debug"))
	snap, err := a.Catalog.Lookup(r.Context(), bypass)
	if err != nil {
		log := requestLogger(r)
		if ollama.IsForbidden(err) {
			catalogLookups.WithLabelValues("forbidden").Inc()
			log.Warn().Err(err).Msg("Ollama rejected the origin; add it to OLLAMA_ORIGINS")
		} else {
			catalogLookups.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("model catalog unavailable")
		}
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	result := "fetched"
	if snap.Cached {
		result = "cached"
	}
	catalogLookups.WithLabelValues(result).Inc()
	models := snap.Models
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{
		Models:      models,
		TTLMs:       a.Catalog.TTL().Milliseconds(),
		Cached:      snap.Cached,
		FetchedAtMs: snap.FetchedAt.UnixMilli(),
	})
}

// invalidateModels godoc
// @Summary  Clear the model cache
// @Tags     models
// @Produce  json
// @Success  200  {object}  types.AckResponse
// @Router   /models/invalidate [post]
func (a *api) invalidateModels(w http.ResponseWriter, r *http.Request) {
	if a.Catalog == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "model catalog not configured")
		return
	}
	a.Catalog.Invalidate()
	writeJSON(w, http.StatusOK, types.AckResponse{OK: true})
}

// getSettings godoc
// @Summary  Read persisted settings
// @Tags     settings
// @Produce  json
// @Success  200  {object}  types.Settings
// @Router   /settings [get]
func (a *api) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := a.Settings.Get(r.Context())
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// putSettings godoc
// @Summary  Update persisted settings
// @Description Omitted fields are unchanged. An empty model clears the persisted choice.
// @Tags     settings
// @Accept   json
// @Produce  json
// @Param    body  body      types.SettingsPatch  true  "Fields to change"
// @Success  200   {object}  types.Settings
// @Failure  400   {object}  types.ErrorResponse
// @Router   /settings [put]
func (a *api) putSettings(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var patch types.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeDecodeError(w, err)
		return
	}
	st, err := a.Settings.Update(r.Context(), patch)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	log := requestLogger(r)
	log.Info().Str("model", st.Model).Bool("debug", st.Debug).Msg("settings updated")
	writeJSON(w, http.StatusOK, st)
}

// listSessions godoc
// @Summary  List connected consumers
// @Tags     sessions
// @Produce  json
// @Success  200  {object}  types.SessionsResponse
// @Router   /sessions [get]
func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	out := types.SessionsResponse{Sessions: []types.SessionInfo{}}
	if a.Registry != nil {
		out.Sessions = a.Registry.Sessions()
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) readyz(w http.ResponseWriter, r *http.Request) {
	if a.Pinger == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := a.Pinger.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("ollama unreachable: " + err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct != "" && strings.HasPrefix(strings.ToLower(ct), "application/json")
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
}

func truthy(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
