package auth

import (
	"testing"
	"time"
)

func TestJWTManager_MintAndValidateRoundTrip(t *testing.T) {
	m := NewJWTManager("s3cret", "coreserver", time.Hour)
	token, err := m.Mint("acct-1", "player,vip")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.AccountID != "acct-1" {
		t.Errorf("AccountID = %q, want acct-1", claims.AccountID)
	}
	if claims.Roles != "player,vip" {
		t.Errorf("Roles = %q, want player,vip", claims.Roles)
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	m1 := NewJWTManager("secret-a", "coreserver", time.Hour)
	m2 := NewJWTManager("secret-b", "coreserver", time.Hour)

	token, _ := m1.Mint("acct-1", "")
	if _, err := m2.Validate(token); err == nil {
		t.Error("Validate() should reject a token signed with a different secret")
	}
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("secret", "coreserver", -time.Second)
	token, _ := m.Mint("acct-1", "")
	if _, err := m.Validate(token); err == nil {
		t.Error("Validate() should reject an expired token")
	}
}
