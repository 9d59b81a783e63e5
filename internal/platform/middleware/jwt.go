package middleware

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HS256Validator validates HS256-signed tokens issued by the platform's
// auth service. Claims carry the actor id as subject plus tenant/school scope.
type HS256Validator struct {
	signingKey []byte
}

func NewHS256Validator(signingKey string) *HS256Validator {
	return &HS256Validator{signingKey: []byte(signingKey)}
}

type scopeClaims struct {
	TenantID string `json:"tenant_id,omitempty"`
	SchoolID string `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies the token signature and expiry.
func (v *HS256Validator) ValidateToken(tokenString string) (*JWTClaims, error) {
	var claims scopeClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return &JWTClaims{
		ActorID:  claims.Subject,
		TenantID: claims.TenantID,
		SchoolID: claims.SchoolID,
	}, nil
}
