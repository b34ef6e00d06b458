package service

import (
	"testing"
	"time"
)

func TestMintAndValidate(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)

	tok, err := auth.Mint(TokenTypeAdmin, "admin-7", []string{"tests:write"})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := auth.ValidateToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "admin-7" || claims.TokenType != TokenTypeAdmin {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "tests:write" {
		t.Errorf("permissions = %v", claims.Permissions)
	}
}

func TestValidateRejects(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)
	other := NewAuthService("other", time.Hour)
	expired := NewAuthService("secret", -time.Minute)

	foreign, _ := other.Mint(TokenTypeStudent, "s1", nil)
	stale, _ := expired.Mint(TokenTypeStudent, "s1", nil)

	if _, err := auth.ValidateToken(foreign); err == nil {
		t.Error("token signed with another secret was accepted")
	}
	_, err := auth.ValidateToken(stale)
	if err == nil || !IsExpired(err) {
		t.Errorf("expired token: err = %v", err)
	}
	if _, err := auth.ValidateToken("not-a-jwt"); err == nil {
		t.Error("garbage accepted")
	}
	if _, err := auth.Mint(TokenTypeStudent, "", nil); err == nil {
		t.Error("empty user id accepted")
	}
}
