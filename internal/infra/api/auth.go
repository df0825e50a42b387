package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"jobflow/internal/domain/model"
	"jobflow/internal/infra/logging"
	"jobflow/internal/usecase"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ===== Bearer JWT primitives =====

const RoleAdmin = "admin"

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// Claims are issued by the identity provider. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

// Mint signs an HS256 token. It backs the development token command and tests.
func (a *AuthManager) Mint(sub, email, name, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Name:  name,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   sub,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*Claims, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errMissingToken
	}
	return a.Parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) Parse(tok string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// ===== Request principal =====

type principalKey struct{}

type principal struct {
	User *model.User
	Role string
}

func withPrincipal(ctx context.Context, p *principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(principalKey{}).(*principal)
	return p
}

// currentUser returns the authenticated user; only valid behind Authenticate.
func currentUser(r *http.Request) *model.User {
	if p := principalFrom(r.Context()); p != nil {
		return p.User
	}
	return nil
}

// Authenticate verifies the bearer token and mirrors the claims into the users table.
func Authenticate(am *AuthManager, users usecase.UserUseCase, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := am.ParseFromRequest(r)
			if err != nil {
				writeMessage(w, r, http.StatusUnauthorized, msgUnauthorized)
				return
			}

			ctx := logging.WithUserID(r.Context(), claims.Subject)
			user, err := users.EnsureUser(ctx, claims.Subject, claims.Email, claims.Name)
			if err != nil {
				writeError(w, r.WithContext(ctx), logger, err)
				return
			}
			noteUser(w, user.ID)

			ctx = withPrincipal(ctx, &principal{User: user, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must sit behind Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r.Context())
		if p == nil {
			writeMessage(w, r, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		if p.Role != RoleAdmin {
			writeMessage(w, r, http.StatusForbidden, msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
