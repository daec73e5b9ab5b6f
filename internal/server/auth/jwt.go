// Package auth issues and verifies the two kinds of bearer tokens the server
// accepts: session tokens naming a user, and public link tokens naming a
// single document.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
)

const publicAudience = "public-sign"

// Claims carries the user id of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// DocumentClaims carries the document id of a public link token.
type DocumentClaims struct {
	jwt.RegisteredClaims
	DocumentID string `json:"documentId"`
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken returns common.ErrTokenExpired for expired tokens and
// common.ErrInvalidToken for anything else that fails verification.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}

// GenerateDocumentToken signs a public link token for documentID. Tokens are
// not stored; every token stays valid until it expires.
func GenerateDocumentToken(documentID string, secretKey []byte, validityDuration time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(validityDuration)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, DocumentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{publicAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		DocumentID: documentID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// GetDocumentIDFromToken verifies a public link token. Every failure,
// expiry included, is reported as common.ErrInvalidToken.
func GetDocumentIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &DocumentClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(publicAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.DocumentID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.DocumentID, nil
}
