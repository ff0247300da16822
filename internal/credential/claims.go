package credential

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoRecipient is returned when a token carries no usable user id.
var ErrNoRecipient = errors.New("token has no user id claim")

// Claims is the subset of the portal's session token claims the client
// reads. The broker verifies the signature; the client only needs the
// recipient identity to join its room.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// RecipientID extracts the mailbox owner from a session token without
// verifying it. user_id is preferred; the standard sub claim is the
// fallback.
func RecipientID(token string) (string, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return "", err
	}

	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", ErrNoRecipient
}

// ParseClaims decodes the token's claims without signature verification.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parsing session token: %w", err)
	}
	return claims, nil
}
