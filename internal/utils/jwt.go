package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenManager signs and parses HS256 bearer tokens.
type TokenManager struct {
	Secret []byte
	Issuer string
	// Now overrides the clock used for issuing and validating; nil means time.Now.
	Now func() time.Time
}

type Claims struct {
	UserID  string `json:"sub"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

func (m TokenManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m TokenManager) Issue(subject string, purpose string, ttl time.Duration) (string, time.Duration, error) {
	if len(m.Secret) == 0 || subject == "" || ttl <= 0 {
		return "", 0, ErrInvalidToken
	}
	now := m.now()
	claims := Claims{
		UserID:  subject,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.Secret)
	if err != nil {
		return "", 0, err
	}
	return signed, ttl, nil
}

// Parse validates signature, algorithm, issuer and expiry. Every failure is
// reported as ErrInvalidToken.
func (m TokenManager) Parse(tokenString string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.Secret, nil
	}, options...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
