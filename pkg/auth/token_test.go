package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/brandpay-backend/pkg/config"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "brandpay", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testConfig()
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: "buyer-1", BrandID: "shop"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != "buyer-1" || claims.BrandID != "shop" {
		t.Fatalf("identity not preserved: %+v", claims)
	}
	if claims.Role != RoleUser || claims.IsAdmin() {
		t.Fatalf("expected default user role, got %q", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("issuer mismatch: %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %s", got)
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testConfig()
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{}); err == nil {
		t.Fatalf("expected missing user id to fail")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: "u", Role: "root"}); err == nil {
		t.Fatalf("expected invalid role to fail")
	}
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: "u"}); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	cfg := testConfig()
	expired, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: "u"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	other := cfg
	other.Issuer = "someone-else"
	foreign, err := MintAccessToken(other, time.Now(), AccessTokenPayload{UserID: "u"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, foreign); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{UserID: "u"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseAccessToken(cfg, unsigned); err == nil {
		t.Fatalf("expected unsigned token to fail")
	}

	admin, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: "ops", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("mint admin: %v", err)
	}
	claims, err := ParseAccessToken(cfg, admin)
	if err != nil || !claims.IsAdmin() {
		t.Fatalf("expected admin claims, got %v %v", claims, err)
	}
}
