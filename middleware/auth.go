package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tradeshield/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// Auth holds the logger shared by the authentication middlewares.
type Auth struct {
	log *zap.Logger
}

func NewAuth(log *zap.Logger) *Auth {
	return &Auth{log: log.Named("auth")}
}

func (a *Auth) JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.log.Debug("missing authorization header", zap.String("path", r.URL.Path))
			writeJSONError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			a.log.Debug("invalid authorization header format", zap.String("path", r.URL.Path))
			writeJSONError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := utils.ValidateToken(bearerToken[1])
		if err != nil {
			a.log.Info("token validation failed", zap.String("path", r.URL.Path), zap.Error(err))
			writeJSONError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r)
		if claims == nil {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized - No user context")
			return
		}

		if !claims.IsAdmin() {
			a.log.Warn("non-admin access to admin endpoint",
				zap.Uint("user_id", claims.UserID),
				zap.String("path", r.URL.Path))
			writeJSONError(w, http.StatusForbidden, "Admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func GetUserFromContext(r *http.Request) *utils.Claims {
	if claims, ok := r.Context().Value(UserContextKey).(*utils.Claims); ok {
		return claims
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
