package jwttoken

import (
	"errors"
	"strings"
	"time"

	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/middleware/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuerTokenClaims represents the JWT claims carried by issuer bearer tokens.
// The subject is the issuer ID recorded on every credential it mints.
type IssuerTokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService mints and validates HS256 issuer tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

// GenerateIssuerToken signs a token for issuerID with the given role.
func (s *JWTService) GenerateIssuerToken(issuerID, role string) (string, error) {
	issuerID = strings.TrimSpace(issuerID)
	if issuerID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "issuer id is required")
	}
	if role == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role is required")
	}

	now := s.now()
	claims := IssuerTokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   issuerID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign issuer token")
	}
	return signed, nil
}

// ValidateToken parses and verifies an issuer token. Only HS256 is accepted.
func (s *JWTService) ValidateToken(tokenString string) (*IssuerTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &IssuerTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token")
	}

	claims, ok := parsed.Claims.(*IssuerTokenClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token claims")
	}

	if claims.Issuer != s.issuer {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token issuer")
	}

	return claims, nil
}

// ToMiddlewareClaims converts verified token claims into the auth middleware's view.
func ToMiddlewareClaims(claims *IssuerTokenClaims) *auth.IssuerClaims {
	return &auth.IssuerClaims{
		IssuerID: claims.Subject,
		Role:     claims.Role,
	}
}
