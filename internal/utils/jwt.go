package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "sceneit-backend"

// Claims defines the structure of our JWT claims. The username travels in
// the registered "sub" claim.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies HMAC-signed bearer tokens. It holds no
// per-token state.
type TokenService struct {
	secret []byte
	maxAge time.Duration
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenService picks the HMAC variant from the key length the same way
// strong-key HMAC helpers do: 64+ bytes HS512, 48+ HS384, otherwise HS256.
func NewTokenService(secret []byte, maxAge time.Duration) *TokenService {
	var method jwt.SigningMethod = jwt.SigningMethodHS256
	switch {
	case len(secret) >= 64:
		method = jwt.SigningMethodHS512
	case len(secret) >= 48:
		method = jwt.SigningMethodHS384
	}
	return &TokenService{
		secret: secret,
		maxAge: maxAge,
		method: method,
		now:    time.Now,
	}
}

// WithClock replaces the time source; used to exercise expiry.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	c := *s
	c.now = now
	return &c
}

func (s *TokenService) MaxAge() time.Duration { return s.maxAge }

// GenerateJWT issues a token for username valid for the configured max age.
func (s *TokenService) GenerateJWT(username string) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("JWT secret is not configured")
	}
	if s.maxAge <= 0 {
		return "", fmt.Errorf("token max age is not configured or invalid")
	}

	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
			Issuer:    tokenIssuer,
		},
	}

	signedToken, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

func (s *TokenService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	return claims, nil
}

// ValidateJWT reports whether tokenString carries a valid signature and has
// not expired. Failures are logged with their reason and never returned.
func (s *TokenService) ValidateJWT(tokenString string) bool {
	if len(s.secret) == 0 {
		slog.Error("JWT secret is not configured for validation")
		return false
	}
	if _, err := s.parse(tokenString); err != nil {
		slog.Warn("rejected bearer token", slog.String("reason", rejectReason(err)), slog.Any("error", err))
		return false
	}
	return true
}

// UsernameFromJWT returns the subject of a token that already passed
// ValidateJWT.
func (s *TokenService) UsernameFromJWT(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", fmt.Errorf("failed to parse or validate token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unsupported"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claim"
	default:
		return "invalid"
	}
}
