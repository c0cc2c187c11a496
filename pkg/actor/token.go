package actor

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pharmatrack/pharmatrack-backend/pkg/config"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
)

// Claims represents the identity claims carried in an actor token.
// Tokens are minted by the surrounding auth layer; this service only
// verifies them to attribute movements and counts to a user.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Verifier validates actor tokens
type Verifier struct {
	config *config.AuthConfig
}

// NewVerifier creates a new token verifier
func NewVerifier(cfg *config.AuthConfig) *Verifier {
	return &Verifier{config: cfg}
}

// Verify validates a token string and returns the Actor it identifies.
func (v *Verifier) Verify(tokenString string) (*Actor, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.BadRequest("unexpected signing method")
		}
		return []byte(v.config.TokenSecret), nil
	}, jwt.WithIssuer(v.config.Issuer))

	if err != nil {
		return nil, errors.Wrap(err, "TOKEN_INVALID", "invalid actor token", 401)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("TOKEN_INVALID", "invalid actor token", 401)
	}

	return &Actor{
		ID:   claims.UserID,
		Name: claims.Name,
		Role: claims.Role,
	}, nil
}
