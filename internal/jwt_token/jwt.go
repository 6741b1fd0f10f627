// Package jwttoken issues and validates the bearer tokens API callers present.
// A token binds an operator to the wallet they act as.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	authmw "secutoken/pkg/platform/middleware/auth"
)

// Claims are the access token claims.
type Claims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	clock      func() time.Time
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		clock:      time.Now,
	}
}

// GenerateAccessToken mints a token for subject acting as wallet.
func (s *JWTService) GenerateAccessToken(wallet id.Address, subject string, expiresIn time.Duration) (string, error) {
	now := s.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Wallet: wallet.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Wallet == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries no wallet")
	}
	return claims, nil
}

// Validator adapts the service to the auth middleware, which only needs the
// caller wallet and the token id for revocation lookups.
func (s *JWTService) Validator() authmw.JWTValidator {
	return validatorFunc(func(raw string) (*authmw.JWTClaims, error) {
		claims, err := s.ValidateToken(raw)
		if err != nil {
			return nil, err
		}
		return &authmw.JWTClaims{Wallet: claims.Wallet, Subject: claims.Subject, JTI: claims.ID}, nil
	})
}

type validatorFunc func(string) (*authmw.JWTClaims, error)

func (f validatorFunc) ValidateToken(raw string) (*authmw.JWTClaims, error) { return f(raw) }
