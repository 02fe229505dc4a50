// Package token mints and validates the signed proofs attached to durable
// identities. Verifying the token lets any party confirm the email to
// visitor binding without a store lookup.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "consentgate/pkg/domain-errors"
)

// Claims carried by an identity proof token.
type Claims struct {
	Email     string `json:"email"`
	VisitorID string `json:"visitor_id"`
	jwt.RegisteredClaims
}

// Service signs and validates identity proofs with a shared HMAC key.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// MintIdentityProof signs a proof binding email to visitorID. Proofs do not
// expire on their own, the identity record controls their lifetime.
func (s *Service) MintIdentityProof(email, visitorID string) (string, error) {
	proof := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:     email,
		VisitorID: visitorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   s.issuer,
			Subject:  visitorID,
			ID:       uuid.NewString(),
		},
	})

	signed, err := proof.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ValidateIdentityProof parses and verifies a proof token.
func (s *Service) ValidateIdentityProof(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeNotPermitted, "identity proof has expired")
		}
		return nil, dErrors.New(dErrors.CodeNotPermitted, "invalid identity proof")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeNotPermitted, "invalid identity proof")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotPermitted, "invalid identity proof claims")
	}
	return claims, nil
}
