package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"glowbook/internal/config"
	"glowbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errMissingToken = errors.New("missing authorization header")
	errInvalidToken = errors.New("invalid token")
	errUnknownRole  = errors.New("unknown role")
)

// Claims is the access token payload issued by the identity provider.
type Claims struct {
	Email        string       `json:"email,omitempty"`
	AppRole      string       `json:"app_role,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

type UserMetadata struct {
	Role string `json:"role,omitempty"`
}

// JWTAuth verifies HS256 bearer tokens and resolves the caller's role once.
type JWTAuth struct {
	secret   []byte
	audience string
}

func NewJWTAuth(cfg config.APIAuthConfig) *JWTAuth {
	return &JWTAuth{secret: []byte(cfg.JWTSecret), audience: cfg.JWTAudience}
}

// Authenticate parses a raw token into an Actor. A token without any role
// claim belongs to a client.
func (a *JWTAuth) Authenticate(tokenString string) (models.Actor, error) {
	if len(a.secret) == 0 {
		return models.Actor{}, fmt.Errorf("%w: auth is not configured", errInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return models.Actor{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: subject is not a user id", errInvalidToken)
	}

	rawRole := claims.AppRole
	if rawRole == "" {
		rawRole = claims.UserMetadata.Role
	}
	role := models.RoleClient
	if rawRole != "" {
		if role, err = models.ParseRole(rawRole); err != nil {
			return models.Actor{}, fmt.Errorf("%w: %v", errUnknownRole, err)
		}
	}

	return models.Actor{UserID: userID.String(), Role: role}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// Actor in the request context.
func (a *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, errMissingToken.Error())
			return
		}

		actor, err := a.Authenticate(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			statusCode := http.StatusUnauthorized
			if errors.Is(err, errUnknownRole) {
				statusCode = http.StatusForbidden
			}
			writeError(w, statusCode, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}
