// Package security provides bearer credential inspection utilities
package security

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
)

var (
	errMissingSubject = errors.New("credential subject is missing or empty")
	errMissingExpiry  = errors.New("credential expiry is missing or non-numeric")
)

// IsStructurallyValid reports whether a credential splits into exactly three
// non-empty segments and its middle segment decodes to a claims object with
// a non-empty subject and a numeric expiry. It never panics; every decode
// error maps to false. The signature is NOT verified here - the backend owns
// that trust decision.
func IsStructurallyValid(token string) bool {
	if token == "" {
		return false
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return false
	}
	for _, segment := range segments {
		if segment == "" {
			return false
		}
	}

	_, err := decodeClaims(token)
	return err == nil
}

// ReadClaims decodes the middle segment of a credential without verifying
// the signature. Callers are expected to gate on IsStructurallyValid first.
func ReadClaims(token string) (session.Claims, error) {
	return decodeClaims(token)
}

func decodeClaims(token string) (session.Claims, error) {
	parser := jwt.NewParser()

	mapClaims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, mapClaims); err != nil {
		return session.Claims{}, err
	}

	claims := session.Claims{}

	sub, ok := mapClaims["sub"].(string)
	if !ok || sub == "" {
		return session.Claims{}, errMissingSubject
	}
	claims.Subject = sub

	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}

	switch exp := mapClaims["exp"].(type) {
	case float64:
		claims.Expiry = int64(exp)
	case int64:
		claims.Expiry = exp
	default:
		return session.Claims{}, errMissingExpiry
	}

	return claims, nil
}
