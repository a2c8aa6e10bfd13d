// Package auth resolves the calling agent from a bearer token or API key.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// Claims carried by agent tokens.
type Claims struct {
	AgentID         string `json:"agentId"`
	OpenclawAgentID string `json:"openclawAgentId"`
	Name            string `json:"name"`
	jwt.RegisteredClaims
}

var errNoSecret = errors.New("jwt secret not configured")

type Verifier struct {
	secret       []byte
	allowAPIKeys bool
	logger       zerolog.Logger
}

type Option func(*Verifier)

// WithAPIKeys enables the X-API-Key fallback.
func WithAPIKeys(enabled bool) Option {
	return func(v *Verifier) {
		v.allowAPIKeys = enabled
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{secret: []byte(secret), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Resolve returns the agent named by authorization (a "Bearer <jwt>" header
// value) or, failing that, by apiKey. Callers that present neither a valid
// token nor an accepted key are spectators.
func (v *Verifier) Resolve(authorization, apiKey string) domain.Agent {
	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		claims, err := v.Verify(strings.TrimSpace(token))
		if err == nil {
			return domain.Agent{ID: claims.AgentID, ExternalID: claims.OpenclawAgentID, Name: claims.Name}
		}
		v.logger.Warn().Err(err).Msg("invalid bearer token")
	}

	if v.allowAPIKeys {
		if agent, ok := agentFromAPIKey(apiKey); ok {
			return agent
		}
	}
	return domain.Spectator()
}

// Verify parses an HS256 token and checks its expiry and agent claim.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, errNoSecret
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.AgentID == "" || claims.AgentID == domain.SpectatorID {
		return nil, errors.New("token has no agent")
	}
	return claims, nil
}

// Sign issues an HS256 token for agent valid for ttl.
func (v *Verifier) Sign(agent domain.Agent, ttl time.Duration, now time.Time) (string, error) {
	if len(v.secret) == 0 {
		return "", errNoSecret
	}
	claims := Claims{
		AgentID:         agent.ID,
		OpenclawAgentID: agent.ExternalID,
		Name:            agent.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func agentFromAPIKey(key string) (domain.Agent, bool) {
	key = strings.TrimSpace(key)
	if len(key) < 8 {
		return domain.Agent{}, false
	}
	return domain.Agent{
		ID:         "agent_" + key[:8],
		ExternalID: key,
		Name:       "Agent_" + key[:6],
	}, true
}
