package identitytoken

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestNewVerifierRequiresJWKSURL(t *testing.T) {
	if _, err := NewVerifier(Config{}); err == nil {
		t.Fatalf("expected missing jwks url to fail")
	}
}

func TestVerifyExtractsProfileAndRefreshesOnUnknownKid(t *testing.T) {
	key1, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key1: %v", err)
	}
	key2, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key2: %v", err)
	}

	active := "kid-1"
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		key := key1.PublicKey
		if active == "kid-2" {
			key = key2.PublicKey
		}
		resp := map[string]any{"keys": []map[string]string{toJWK(active, key)}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer jwksServer.Close()

	v, err := NewVerifier(Config{
		JWKSURL:  jwksServer.URL,
		Issuer:   "issuer-a",
		Audience: "aud-a",
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	signed1 := signToken(t, key1, "kid-1", "user-a", "a@example.com")
	claims, err := v.Verify(signed1)
	if err != nil {
		t.Fatalf("verify token1: %v", err)
	}
	if claims.Subject != "user-a" || claims.Email != "a@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.DisplayName != "Test User" || claims.PhotoURL != "https://example.com/photo.png" {
		t.Fatalf("profile claims not extracted: %+v", claims)
	}

	// Rotate to kid-2; verifier should refresh JWKS on unknown kid and pass.
	active = "kid-2"
	signed2 := signToken(t, key2, "kid-2", "user-b", "b@example.com")
	claims, err = v.Verify(signed2)
	if err != nil {
		t.Fatalf("verify token2: %v", err)
	}
	if claims.Subject != "user-b" {
		t.Fatalf("unexpected subject after rotation: %s", claims.Subject)
	}
}

func TestVerifyRejectsMissingEmail(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{"keys": []map[string]string{toJWK("kid-1", key.PublicKey)}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer jwksServer.Close()

	v, err := NewVerifier(Config{
		JWKSURL:  jwksServer.URL,
		Issuer:   "issuer-a",
		Audience: "aud-a",
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	signed := signToken(t, key, "kid-1", "user-1", "")
	if _, err := v.Verify(signed); err == nil {
		t.Fatalf("expected token without email to fail")
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{"keys": []map[string]string{toJWK("kid-1", key.PublicKey)}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer jwksServer.Close()

	v, err := NewVerifier(Config{
		JWKSURL:  jwksServer.URL,
		Issuer:   "issuer-a",
		Audience: "aud-other",
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	signed := signToken(t, key, "kid-1", "user-1", "u@example.com")
	if _, err := v.Verify(signed); err == nil {
		t.Fatalf("expected wrong-audience token to fail")
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid, subject, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "issuer-a",
			Audience:  jwt.ClaimStrings{"aud-a"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Second)),
		},
		Email:   email,
		Name:    "Test User",
		Picture: "https://example.com/photo.png",
	})
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func toJWK(kid string, key rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}
