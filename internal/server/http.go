package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/config"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
	httperrors "github.com/gokatarajesh/challenge-engine/pkg/http/errors"
)

// Registrar mounts a set of routes on a mux.
type Registrar interface {
	Register(mux *http.ServeMux)
}

// NewHTTPServer wires base routes (health, metrics, ping) plus the given
// route sets. pool and redis may be nil when the deployment does not use them.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, routes ...Registrar) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(logger, pool, redis, routes...),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the root handler.
func NewHandler(logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, routes ...Registrar) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redis); err != nil {
			l := logging.FromContext(r.Context(), logger)
			l.Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, "upstream error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	for _, r := range routes {
		r.Register(mux)
	}

	// Anything else under /v1/{variant}/ is either an unknown variant or an
	// unknown route of a known one.
	mux.HandleFunc("/v1/{variant}/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := challenge.ParseVariant(r.PathValue("variant")); err != nil {
			httperrors.RespondError(w, http.StatusNotFound, httperrors.ErrCodeUnknownVariant, err.Error())
			return
		}
		httperrors.RespondNotFound(w, "route not found")
	})

	return withRequestLogger(mux, logger)
}

// withRequestLogger attaches a request-scoped logger to the context.
func withRequestLogger(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		reqLogger := logger.With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))
	})
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if redis != nil {
		if err := redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
