package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/floresloli/pedidos-factura-service/internal/common"
)

type contextKey string

const claimsKey contextKey = "claims"

var (
	jwtSecret []byte
	tokenTTL  = 24 * time.Hour
)

// PublicPaths are served without a token
var PublicPaths = map[string]bool{
	"/health":    true,
	"/info":      true,
	"/ejemplos":  true,
	"/api/login": true,
}

// Claims carried in staff tokens
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Nombre string `json:"nombre"`
	Rol    string `json:"rol"`
	jwt.RegisteredClaims
}

// Init sets the signing secret and token lifetime
func Init(secret string, ttl time.Duration) error {
	if secret == "" {
		return errors.New("JWT secret is required")
	}
	jwtSecret = []byte(secret)
	if ttl > 0 {
		tokenTTL = ttl
	}
	return nil
}

// GenerateToken issues a signed HS256 token
func GenerateToken(userID, email, nombre, rol string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("auth not initialized")
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Nombre: nombre,
		Rol:    rol,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			Issuer:    "pedidos-factura-service",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateToken parses and verifies a token
func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, common.NewAppError("INVALID_TOKEN", err.Error(), common.ErrUnauthorized)
	}
	if !token.Valid {
		return nil, common.NewAppError("INVALID_TOKEN", "token is not valid", common.ErrUnauthorized)
	}
	return claims, nil
}

// JWTMiddleware rejects requests without a valid Bearer token, except on PublicPaths
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PublicPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w, "missing bearer token")
			return
		}

		claims, err := ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaimsFromContext returns the claims stored by JWTMiddleware
func GetClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	if !ok || claims == nil {
		return nil, common.ErrUnauthorized
	}
	return claims, nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
