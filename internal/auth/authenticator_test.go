package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errNotFoundStub = errors.New("auth test: account not found")

type fakeVerifier struct {
	accountID string
	err       error
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (string, error) {
	return f.accountID, f.err
}

type memAccountStore struct {
	accounts map[string]Account
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[string]Account)}
}

func (m *memAccountStore) Load(ctx context.Context, id string) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, errNotFoundStub
	}
	return a, nil
}

func (m *memAccountStore) Save(ctx context.Context, id, ownerAccount string, value Account) error {
	m.accounts[id] = value
	return nil
}

func TestAuthenticator_ThirdPartySuccess(t *testing.T) {
	store := newMemAccountStore()
	store.accounts["wallet-1"] = Account{ID: "wallet-1", Roles: "player,vip"}
	a := New(&fakeVerifier{accountID: "wallet-1"}, NewJWTManager("secret", "coreserver", time.Hour), NewIPRateLimiter(5, 2, time.Hour), store, Config{})

	result, err := a.Authenticate(context.Background(), "1.2.3.4", "sometoken", "")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if result.AccountID != "wallet-1" {
		t.Errorf("AccountID = %q, want wallet-1", result.AccountID)
	}
	if len(result.Roles) != 2 {
		t.Errorf("Roles = %v, want 2 entries", result.Roles)
	}
	if result.Token == "" {
		t.Error("Authenticate() should always mint a fresh token")
	}
}

func TestAuthenticator_LocalJWTFallback(t *testing.T) {
	store := newMemAccountStore()
	jwtMgr := NewJWTManager("secret", "coreserver", time.Hour)
	existing, _ := jwtMgr.Mint("acct-1", "player")
	a := New(nil, jwtMgr, NewIPRateLimiter(5, 2, time.Hour), store, Config{})

	result, err := a.Authenticate(context.Background(), "1.2.3.4", "", existing)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if result.AccountID != "acct-1" {
		t.Errorf("AccountID = %q, want acct-1", result.AccountID)
	}
}

func TestAuthenticator_AnonymousRateLimited(t *testing.T) {
	store := newMemAccountStore()
	a := New(nil, NewJWTManager("secret", "coreserver", time.Hour), NewIPRateLimiter(1, 1, time.Hour), store, Config{})

	if _, err := a.Authenticate(context.Background(), "9.9.9.9", "", ""); err != nil {
		t.Fatalf("first anonymous Authenticate() error = %v", err)
	}
	if _, err := a.Authenticate(context.Background(), "9.9.9.9", "", ""); err == nil {
		t.Error("second anonymous Authenticate() should be rate limited")
	}
}

func TestAuthenticator_DevModeGrantsAdminWhenNoAdminCode(t *testing.T) {
	store := newMemAccountStore()
	store.accounts["acct-1"] = Account{ID: "acct-1", Roles: "player"}
	jwtMgr := NewJWTManager("secret", "coreserver", time.Hour)
	existing, _ := jwtMgr.Mint("acct-1", "player")
	a := New(nil, jwtMgr, NewIPRateLimiter(5, 2, time.Hour), store, Config{DevMode: true})

	result, err := a.Authenticate(context.Background(), "1.2.3.4", "", existing)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	found := false
	for _, r := range result.Roles {
		if r == "~admin" {
			found = true
		}
	}
	if !found {
		t.Error("dev mode with no admin code should grant ~admin")
	}
}

func TestExpandRoles(t *testing.T) {
	roles := ExpandRoles("player, vip,  ,admin")
	want := []string{"player", "vip", "admin"}
	if len(roles) != len(want) {
		t.Fatalf("ExpandRoles() = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("ExpandRoles()[%d] = %q, want %q", i, roles[i], want[i])
		}
	}
}
