// Package adminhttp exposes the operator-facing admin surface: /healthz and
// /metrics, gated behind a bearer JWT and never reachable from the chat
// surface (spec.md §6 notes the bot has no inbound network listener of its
// own for chat; this one is operator-only).
package adminhttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthConfig configures bearer-token verification for the admin surface.
// Enabled=false disables authentication entirely, which is only
// appropriate for local/staging use; with Enabled set and an empty
// HMACSecret, every token is rejected.
type AuthConfig struct {
	Enabled    bool
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

// Authenticator verifies HS256 bearer tokens on admin requests.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	logger *slog.Logger
}

// NewAuthenticator builds an Authenticator from cfg.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret)), logger: logger}
}

func (a *Authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := a.verify(tokenString); err != nil {
			a.logger.Warn("admin auth rejected", slog.String("error", err.Error()))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) verify(tokenString string) error {
	if len(a.secret) == 0 {
		return errors.New("admin auth secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew))
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("claims not a map")
	}
	if a.cfg.Issuer != "" {
		iss, _ := claims["iss"].(string)
		if iss != a.cfg.Issuer {
			return errors.New("issuer mismatch")
		}
	}
	return nil
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// HealthStatus reports liveness for /healthz, which writes detail as
// text/plain and answers 503 when ok is false.
type HealthStatus func() (ok bool, detail string)

// New builds the admin HTTP handler: GET /healthz (unauthenticated liveness
// probe) and GET /metrics (JWT-gated Prometheus scrape endpoint).
func New(auth *Authenticator, health HealthStatus) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ok, detail := true, "ok"
		if health != nil {
			ok, detail = health()
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte(detail))
	})

	metricsHandler := promhttp.Handler()
	r.Group(func(gr chi.Router) {
		if auth != nil {
			gr.Use(auth.middleware)
		}
		gr.Get("/metrics", metricsHandler.ServeHTTP)
	})

	return r
}
