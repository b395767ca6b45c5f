package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenSubject is returned when a token was issued for another registrant.
var ErrTokenSubject = errors.New("server: token subject mismatch")

// IssueToken returns an HS256 token for registrant id.
func IssueToken(secret []byte, id int64, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(id, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyToken checks signed against secret and that its subject is id.
func VerifyToken(secret []byte, signed string, id int64, now time.Time) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(signed, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if claims.Subject != strconv.FormatInt(id, 10) {
		return ErrTokenSubject
	}
	return nil
}
