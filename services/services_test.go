package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cityflow/config"
)

func newTestAuthService() *AuthService {
	return NewAuthService(config.JWTConfig{
		Secret:      "test-secret-key",
		ExpiryHours: 24,
	})
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestAuthService()

	hash, err := svc.HashPassword("mypassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == "mypassword123" {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !svc.CheckPassword(hash, "mypassword123") {
		t.Error("CheckPassword should return true for correct password")
	}
	if svc.CheckPassword(hash, "wrongpassword") {
		t.Error("CheckPassword should return false for wrong password")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestAuthService()

	token, err := svc.GenerateToken(42, "admin@city.flow", AdminRole)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "admin@city.flow" || !claims.IsAdmin() {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Error("ExpiresAt and IssuedAt should be set")
	}
	if claims.Issuer != "cityflow" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newTestAuthService()
	other := NewAuthService(config.JWTConfig{Secret: "secret-2", ExpiryHours: 24})
	expired := NewAuthService(config.JWTConfig{Secret: "test-secret-key", ExpiryHours: -1})

	fromOther, _ := other.GenerateToken(1, "user@test.com", DefaultRole)
	stale, _ := expired.GenerateToken(1, "user@test.com", DefaultRole)

	tests := map[string]string{
		"garbage":      "invalid.token.string",
		"wrong secret": fromOther,
		"expired":      stale,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ValidateToken(token); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCacheServiceWithoutRedis(t *testing.T) {
	var svc CacheService
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if svc.Available() {
		t.Fatal("zero CacheService should be unavailable")
	}
	var dest map[string]any
	if err := svc.Get(ctx, "k", &dest); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get err = %v, want ErrCacheMiss", err)
	}
	if err := svc.Set(ctx, "k", 1, time.Second); err != nil {
		t.Errorf("Set err = %v", err)
	}
	if ps := svc.Subscribe(ctx, "cityflow:accidents"); ps != nil {
		t.Error("Subscribe should return nil without redis")
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Close err = %v", err)
	}
}
