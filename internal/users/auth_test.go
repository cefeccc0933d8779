package users

import (
	"strings"
	"testing"
	"time"

	"moviestream/catalogservice/internal/domain"
)

func TestTokenSignAndParse(t *testing.T) {
	ts := TokenService{Secret: []byte("test-secret"), Issuer: "movie-catalog", Duration: time.Hour}
	user := &domain.User{ID: "user-1", Name: "Test User", Email: "person@example.com"}

	token, expiresAt, err := ts.Sign(user)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if until := time.Until(expiresAt); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}

	claims, err := ts.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "person@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Subject != "user-1" || claims.Issuer != "movie-catalog" {
		t.Fatalf("unexpected registered claims: %+v", claims.RegisteredClaims)
	}
}

func TestTokenParseRejectsWrongSecret(t *testing.T) {
	ts := TokenService{Secret: []byte("right"), Issuer: "movie-catalog", Duration: time.Hour}
	token, _, err := ts.Sign(&domain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other := TokenService{Secret: []byte("wrong"), Issuer: "movie-catalog", Duration: time.Hour}
	if _, err := other.Parse(token); err == nil {
		t.Fatal("expected parse failure with a different secret")
	}
}

func TestTokenParseRejectsExpired(t *testing.T) {
	ts := TokenService{Secret: []byte("secret"), Issuer: "movie-catalog", Duration: -time.Minute}
	token, _, err := ts.Sign(&domain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ts.Parse(token); err == nil {
		t.Fatal("expected parse failure for expired token")
	}
}

func TestTokenParseRejectsGarbage(t *testing.T) {
	ts := TokenService{Secret: []byte("secret"), Issuer: "movie-catalog", Duration: time.Hour}
	if _, err := ts.Parse("not.a.token"); err == nil {
		t.Fatal("expected parse failure for malformed token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if strings.Contains(hash, "correct horse") {
		t.Fatal("hash must not contain the plaintext")
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong password") {
		t.Fatal("expected mismatching password to fail")
	}
}
