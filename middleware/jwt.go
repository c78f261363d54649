// middleware/jwt.go
package middleware

import (
	"context"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"p9e.in/dabs/utils"
)

// Grab your secret from env (or config)
var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// Claims are the custom payload in your JWT
type Claims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ProjectID uint   `json:"project_id"`
	jwt.RegisteredClaims
}

// Scope is the explicit tenant/request context extracted from the token:
// who is acting and which project their data lives in. Handlers receive
// this struct; nothing reads ambient session state.
type Scope struct {
	UserID    uint
	Username  string
	Name      string
	Role      string
	ProjectID uint
}

// unexported type prevents collisions in context
type ctxKey int

const (
	scopeKey ctxKey = iota
)

// GenerateToken creates a signed JWT valid for 24 h
func GenerateToken(userID uint, username, name, role string, projectID uint) (string, error) {
	claims := Claims{
		UserID:    userID,
		Username:  username,
		Name:      name,
		Role:      role,
		ProjectID: projectID,

		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// JWTMiddleware validates the token and stashes the request Scope in ctx.
// Failures answer the AUTH_REQUIRED envelope before any entity logic runs,
// so an unauthenticated request can never reach a mutation.
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			authRequired(w)
			return
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			authRequired(w)
			return
		}

		tokenStr := parts[1]
		token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			authRequired(w)
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			authRequired(w)
			return
		}

		scope := Scope{
			UserID:    claims.UserID,
			Username:  claims.Username,
			Name:      claims.Name,
			Role:      claims.Role,
			ProjectID: claims.ProjectID,
		}
		next.ServeHTTP(w, WithScope(r, scope))
	})
}

// WithScope returns a request whose context carries s.
func WithScope(r *http.Request, s Scope) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), scopeKey, s))
}

// RequireRole guards a subrouter: the scope's role must be one of roles,
// drawn from the fixed set {user, manager, admin}.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, ok := GetScope(r)
			if !ok {
				authRequired(w)
				return
			}
			if slices.Contains(roles, scope.Role) {
				next.ServeHTTP(w, r)
				return
			}
			utils.Write(w, map[string]interface{}{
				"ok":         false,
				"error":      "Access denied",
				"error_code": utils.CodeAuthRequired,
				"message":    "This area requires a higher role",
			})
		})
	}
}

// GetScope pulls the request Scope out of the context.
func GetScope(r *http.Request) (Scope, bool) {
	s, ok := r.Context().Value(scopeKey).(Scope)
	return s, ok
}

func authRequired(w http.ResponseWriter) {
	utils.Write(w, map[string]interface{}{
		"ok":         false,
		"error":      "Authentication required",
		"error_code": utils.CodeAuthRequired,
		"message":    "Please log in to continue",
		"redirect":   "/login",
	})
}
