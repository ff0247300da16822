package devbroker

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/portal-inbox/internal/credential"
)

// ctxKeyUserID is the gin context key holding the authenticated user.
const ctxKeyUserID = "user_id"

// GenerateToken signs an HS256 session token for userID, valid for ttl.
func GenerateToken(secret, userID, email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := credential.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "portal-devbroker",
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// verify parses and validates a bearer token, returning the user id.
func verify(secret []byte, tokenString string) (string, error) {
	claims := &credential.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", credential.ErrNoRecipient
	}
	return userID, nil
}

// jwtAuth rejects requests without a valid bearer token and records the
// user id in the context.
func jwtAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		userID, err := verify(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Set(ctxKeyUserID, userID)
		c.Next()
	}
}

// userID returns the authenticated user set by jwtAuth.
func userID(c *gin.Context) string {
	v, _ := c.Get(ctxKeyUserID)
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}
