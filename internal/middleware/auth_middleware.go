package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"cpq-engine-api/internal/audit"
	"cpq-engine-api/internal/model"
	mongorepo "cpq-engine-api/internal/repository/mongo"
	"cpq-engine-api/internal/service"

	"github.com/google/uuid"
)

type contextKey string

const (
	actorIDContextKey contextKey = "actorID"
	actorContextKey   contextKey = "actor"
)

// AuthMiddleware handles JWT authentication for actor identities.
type AuthMiddleware struct {
	jwt       *service.JWTService
	actorRepo *mongorepo.ActorRepository
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(jwt *service.JWTService, actorRepo *mongorepo.ActorRepository) *AuthMiddleware {
	return &AuthMiddleware{
		jwt:       jwt,
		actorRepo: actorRepo,
	}
}

// RequireAuth is a standard HTTP middleware that enforces JWT auth and
// attaches a correlation id to the request context so every downstream
// audit event and error response can be tied back to this request.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorizedJSON(w, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorizedJSON(w, "invalid Authorization header format")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			unauthorizedJSON(w, "empty token")
			return
		}

		claims, err := m.jwt.ParseToken(tokenStr)
		if err != nil {
			unauthorizedJSON(w, "invalid or expired token")
			return
		}

		actorID := claims.ActorID
		if actorID == "" {
			unauthorizedJSON(w, "invalid token: missing actor_id")
			return
		}

		ctx := context.WithValue(r.Context(), actorIDContextKey, actorID)

		if m.actorRepo != nil {
			actor, err := m.actorRepo.GetByIDString(ctx, actorID)
			if err == nil && actor != nil {
				if !actor.Active {
					unauthorizedJSON(w, "actor is inactive")
					return
				}
				ctx = context.WithValue(ctx, actorContextKey, actor)
			}
		}

		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		ctx = audit.WithCorrelation(ctx, audit.CorrelationContext{CorrelationId: correlationID})
		w.Header().Set("X-Correlation-Id", correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorizedJSON(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// ActorIDFromContext returns the actor ID stored by the auth middleware, or
// "" if not present.
func ActorIDFromContext(ctx context.Context) string {
	v := ctx.Value(actorIDContextKey)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// ActorFromContext returns the full actor object stored by the auth
// middleware, or nil if not present.
func ActorFromContext(ctx context.Context) *model.Actor {
	v := ctx.Value(actorContextKey)
	if v == nil {
		return nil
	}
	if a, ok := v.(*model.Actor); ok {
		return a
	}
	return nil
}
