package middleware

import (
	"context"
	"log/slog"
	"strings"

	"sceneit-backend/internal/apperror"
	"sceneit-backend/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeaderKey = "Authorization"
	bearerPrefix           = "Bearer "
	principalKey           = "principal"
)

// TokenVerifier is the part of the token service the filter needs.
type TokenVerifier interface {
	ValidateJWT(token string) bool
	UsernameFromJWT(token string) (string, error)
}

// UserLookup resolves the username carried by a token.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Authenticate runs once per request. A valid bearer token resolves to a
// principal stored on the context; anything else lets the request continue
// unauthenticated so the route's policy decides. It never aborts.
func Authenticate(tokens TokenVerifier, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, done := c.Get(principalKey); done {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader(authorizationHeaderKey))
		if ok && tokens.ValidateJWT(token) {
			if principal, err := resolvePrincipal(c.Request.Context(), tokens, users, token); err != nil {
				slog.ErrorContext(c.Request.Context(), "cannot set user authentication",
					slog.String("path", c.Request.URL.Path),
					slog.Any("error", err),
				)
			} else {
				c.Set(principalKey, principal)
			}
		}

		c.Next()
	}
}

func resolvePrincipal(ctx context.Context, tokens TokenVerifier, users UserLookup, token string) (*models.Principal, error) {
	username, err := tokens.UsernameFromJWT(token)
	if err != nil {
		return nil, err
	}
	user, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.ToPrincipal(), nil
}

// bearerToken extracts the credential from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// RequireAuth rejects requests without a principal with the generic 401
// entry-point body.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFrom(c); !ok {
			slog.InfoContext(c.Request.Context(), "unauthorized request",
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
			)
			apperror.Abort(c, apperror.Unauthenticated())
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller of this request.
func PrincipalFrom(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok && p != nil
}

// SetPrincipal attaches p to the request.
func SetPrincipal(c *gin.Context, p *models.Principal) {
	c.Set(principalKey, p)
}
