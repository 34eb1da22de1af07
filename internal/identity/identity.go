package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Roles carried in the role claim
const (
	RoleAuthenticated = "authenticated"
	RoleAdmin         = "admin"
)

type contextKey struct{}

type roleKey struct{}

// WithUserID returns a context carrying userID. An empty id is the anonymous user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the current user id, or "" for the anonymous user
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(contextKey{}).(string)
	return userID
}

// WithRole returns a context carrying the role of the current user
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// Role returns the role of the current user, or "" for the anonymous user
func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}

// Claims are the token claims the service reads
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues an HS256 token for userID
func Generate(secret string, userID string, ttl time.Duration) (string, time.Time, error) {
	return GenerateWithRole(secret, userID, RoleAuthenticated, ttl)
}

// GenerateWithRole issues an HS256 token for userID carrying role
func GenerateWithRole(secret, userID, role string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	return signed, exp, err
}

// Verifier resolves the user behind a bearer token
type Verifier struct {
	secret []byte
	logger *zap.Logger
}

// NewVerifier creates a verifier. With an empty secret every caller is anonymous.
func NewVerifier(secret string, logger *zap.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), logger: logger}
}

// Verify validates tokenString and returns its subject
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims, err := v.VerifyClaims(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyClaims validates tokenString and returns its claims
func (v *Verifier) VerifyClaims(tokenString string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("token verification is disabled")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// UserFromRequest returns the user of a request. A missing or invalid
// token is the anonymous user, never an error.
func (v *Verifier) UserFromRequest(r *http.Request) string {
	userID, _ := v.FromRequest(r)
	return userID
}

// FromRequest returns the user and role of a request, both empty for
// the anonymous user
func (v *Verifier) FromRequest(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ""
	}

	claims, err := v.VerifyClaims(parts[1])
	if err != nil {
		v.logger.Debug("Treating request as anonymous", zap.Error(err))
		return "", ""
	}
	return claims.Subject, claims.Role
}
