package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperscape/coreserver/internal/network"
)

// ThirdPartyVerifier validates an external wallet/social token and
// returns the account id it maps to. Implementations live outside
// this package (wallet signature checks, OAuth introspection, ...);
// a nil verifier means third-party auth is disabled.
type ThirdPartyVerifier interface {
	Verify(ctx context.Context, token string) (accountID string, err error)
}

// AccountStore is the persistence surface Authenticator needs,
// satisfied by storage.Store[Account].
type AccountStore interface {
	Load(ctx context.Context, id string) (Account, error)
	Save(ctx context.Context, id, ownerAccount string, value Account) error
}

// Config tunes Authenticator behavior beyond rate limiting.
type Config struct {
	AdminCode string // non-empty disables the dev-only ~admin grant
	DevMode   bool
}

// Authenticator runs the authentication chain: third-party token,
// then local JWT, then anonymous creation under a per-IP rate limit.
type Authenticator struct {
	thirdParty ThirdPartyVerifier
	jwt        *JWTManager
	limiter    *IPRateLimiter
	accounts   AccountStore
	cfg        Config
}

// New wires an Authenticator. thirdParty may be nil to skip that
// stage entirely.
func New(thirdParty ThirdPartyVerifier, jwtMgr *JWTManager, limiter *IPRateLimiter, accounts AccountStore, cfg Config) *Authenticator {
	return &Authenticator{thirdParty: thirdParty, jwt: jwtMgr, limiter: limiter, accounts: accounts, cfg: cfg}
}

// Authenticate implements network.Authenticator. It tries third-party
// tokens, falls back to a local JWT, and finally mints an anonymous
// account subject to the per-IP rate limit. A successful return always
// carries a freshly-minted local JWT.
func (a *Authenticator) Authenticate(ctx context.Context, clientIP string, thirdPartyToken, localJWT string) (*network.AuthResult, error) {
	if accountID, ok := a.tryThirdParty(ctx, thirdPartyToken); ok {
		return a.finish(ctx, accountID)
	}

	if accountID, ok := a.tryLocalJWT(localJWT); ok {
		return a.finish(ctx, accountID)
	}

	if !a.limiter.Allow(clientIP) {
		return nil, fmt.Errorf("auth: anonymous account rate limit exceeded for %s", clientIP)
	}
	accountID, err := a.createAnonymousAccount(ctx)
	if err != nil {
		return nil, err
	}
	return a.finish(ctx, accountID)
}

func (a *Authenticator) tryThirdParty(ctx context.Context, token string) (string, bool) {
	if a.thirdParty == nil || token == "" {
		return "", false
	}
	accountID, err := a.thirdParty.Verify(ctx, token)
	if err != nil {
		return "", false
	}
	return accountID, true
}

func (a *Authenticator) tryLocalJWT(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	claims, err := a.jwt.Validate(token)
	if err != nil {
		return "", false
	}
	return claims.AccountID, true
}

func (a *Authenticator) createAnonymousAccount(ctx context.Context) (string, error) {
	id := uuid.NewString()
	account := Account{ID: id, Anonymous: true, CreatedAt: time.Now()}
	if err := a.accounts.Save(ctx, id, id, account); err != nil {
		return "", fmt.Errorf("auth: creating anonymous account: %w", err)
	}
	return id, nil
}

// finish loads the account's stored roles, applies the dev-only
// ~admin grant, mints a fresh local JWT, and returns the auth result.
func (a *Authenticator) finish(ctx context.Context, accountID string) (*network.AuthResult, error) {
	account, err := a.accounts.Load(ctx, accountID)
	if err != nil {
		account = Account{ID: accountID}
	}

	roles := ExpandRoles(account.Roles)
	if a.cfg.DevMode && a.cfg.AdminCode == "" {
		roles = append(roles, "~admin")
	}

	token, err := a.jwt.Mint(accountID, account.Roles)
	if err != nil {
		return nil, fmt.Errorf("auth: minting token: %w", err)
	}

	return &network.AuthResult{AccountID: accountID, Roles: roles, Token: token}, nil
}
