// Package middleware holds the gin middleware shared by the api routes.
package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AdminSubjectKey is the gin context key holding the authenticated admin's subject.
const AdminSubjectKey = "admin_subject"

var errNotAdmin = errors.New("token does not carry the admin role")

// AdminClaims are the claims of an externally issued admin token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseAdminToken verifies an HS256 token signed with secret and requires role=admin.
func ParseAdminToken(raw string, secret []byte) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Role != "admin" {
		return nil, errNotAdmin
	}
	return claims, nil
}

// AdminAuth rejects requests without a valid admin bearer token.
func AdminAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_bearer_token"})
			return
		}
		claims, err := ParseAdminToken(raw, key)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errNotAdmin) {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "invalid_admin_token", "msg": err.Error()})
			return
		}
		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[http] %s %s status=%d dur=%s request_id=%s",
			c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Millisecond), c.GetHeader("X-Request-Id"))
	}
}
