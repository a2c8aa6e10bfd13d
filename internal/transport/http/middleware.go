package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// RequestLogger attaches a request-scoped logger to the context and logs
// method, path, status and latency once the handler returns.
func RequestLogger(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLogger := logger.With().Str("request_id", uuid.NewString()).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		event := reqLogger.Info()
		if rec.status >= http.StatusInternalServerError {
			event = reqLogger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

type agentKey struct{}

// AgentResolver maps request credentials to an agent.
type AgentResolver interface {
	Resolve(authorization, apiKey string) domain.Agent
}

// Authenticate stores the caller's identity in the request context.
// Callers without valid credentials become spectators.
func Authenticate(resolver AgentResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent := resolver.Resolve(r.Header.Get("Authorization"), r.Header.Get("X-API-Key"))
		ctx := context.WithValue(r.Context(), agentKey{}, agent)
		if !agent.IsSpectator() {
			l := zerolog.Ctx(ctx).With().Str("agent_id", agent.ID).Logger()
			ctx = l.WithContext(ctx)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AgentFromContext returns the caller, or a spectator when none was set.
func AgentFromContext(ctx context.Context) domain.Agent {
	agent, ok := ctx.Value(agentKey{}).(domain.Agent)
	if !ok {
		return domain.Spectator()
	}
	return agent
}

// requireAgent writes 401 and returns false for spectators.
func requireAgent(w http.ResponseWriter, r *http.Request) (domain.Agent, bool) {
	agent := AgentFromContext(r.Context())
	if agent.IsSpectator() {
		writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Code, domain.ErrUnauthorized.Message)
		return domain.Agent{}, false
	}
	return agent, true
}
