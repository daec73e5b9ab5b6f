package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	userID := "user-123"

	tok, err := GenerateToken(userID, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	gotUserID, err := GetUserIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetUserIDFromToken error: %v", err)
	}
	if gotUserID != userID {
		t.Fatalf("userID mismatch: got %q want %q", gotUserID, userID)
	}
}

func TestGetUserIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("u1", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, secret)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestGetUserIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUserIDFromToken(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetUserIDFromToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := GetUserIDFromToken("not.a.jwt", []byte("k"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetUserIDFromToken_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "admin"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := GetUserIDFromToken(s, []byte("k")); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestDocumentToken_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("public-secret")
	tok, expiresAt, err := GenerateDocumentToken("doc-A", secret, 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateDocumentToken error: %v", err)
	}
	if d := time.Until(expiresAt); d < 23*time.Hour || d > 25*time.Hour {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	docID, err := GetDocumentIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetDocumentIDFromToken error: %v", err)
	}
	if docID != "doc-A" {
		t.Fatalf("docID mismatch: %q", docID)
	}
}

func TestDocumentToken_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	secret := []byte("public-secret")
	expired, _, err := GenerateDocumentToken("doc-A", secret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	good, _, err := GenerateDocumentToken("doc-A", secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	session, err := GenerateToken("user-1", secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"expired":         expired,
		"tampered":        good[:len(good)-2] + "xx",
		"garbage":         "garbage",
		"empty":           "",
		"session as link": session,
	}
	var first error
	for name, tok := range cases {
		_, err := GetDocumentIDFromToken(tok, secret)
		if !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("%s: expected common.ErrInvalidToken, got %v", name, err)
		}
		if first == nil {
			first = err
		} else if err.Error() != first.Error() {
			t.Fatalf("%s: error text differs: %q vs %q", name, err, first)
		}
	}

	if _, err := GetDocumentIDFromToken(good, []byte("other")); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("wrong secret: expected common.ErrInvalidToken, got %v", err)
	}
}
