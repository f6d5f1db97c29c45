package network

import (
	"context"
	"testing"
	"time"

	"github.com/hyperscape/coreserver/internal/model"
)

type fakeAuth struct {
	result *AuthResult
	err    error
}

func (f *fakeAuth) Authenticate(ctx context.Context, clientIP, thirdPartyToken, localJWT string) (*AuthResult, error) {
	return f.result, f.err
}

type fakeChars struct {
	list []CharacterSummary
}

func (f *fakeChars) ListCharacters(ctx context.Context, accountID string) ([]CharacterSummary, error) {
	return f.list, nil
}

type fakeTerrain struct {
	ready  bool
	height float64
}

func (f *fakeTerrain) Height(x, z float64) (float64, bool) { return f.height, f.ready }

func TestComputeSpawn_SavedWithinBand(t *testing.T) {
	saved := model.Vector3{X: 1, Y: 10, Z: 2}
	sp := ComputeSpawn(&saved, model.Vector3{X: 99, Y: 99, Z: 99}, nil)
	if sp.Position.X != 1 || sp.Position.Z != 2 {
		t.Errorf("ComputeSpawn() with no terrain = %+v, want saved XZ kept", sp.Position)
	}
}

func TestComputeSpawn_SavedOutsideBandFallsBack(t *testing.T) {
	saved := model.Vector3{X: 1, Y: 500, Z: 2} // outside [-5, 200]
	sp := ComputeSpawn(&saved, model.Vector3{X: 9, Y: 9, Z: 9}, nil)
	if sp.Position.X != 9 {
		t.Errorf("ComputeSpawn() should fall back to default, got %+v", sp.Position)
	}
}

func TestComputeSpawn_SnapsToTerrainWhenReady(t *testing.T) {
	saved := model.Vector3{X: 1, Y: 10, Z: 2}
	sp := ComputeSpawn(&saved, model.Vector3{}, &fakeTerrain{ready: true, height: 50})
	if sp.Position.Y != 50.1 {
		t.Errorf("ComputeSpawn() Y = %v, want 50.1", sp.Position.Y)
	}
}

func TestConnectionHandler_Accept_PlayerLimit(t *testing.T) {
	reg := NewRegistry()
	h := NewConnectionHandler(HandlerConfig{PlayerLimit: 0}, reg, &fakeAuth{}, &fakeChars{}, nil)

	_, _, err := h.Accept(context.Background(), nil, "1.2.3.4", "", "")
	kicked, ok := err.(*ErrKicked)
	if !ok || kicked.Reason != "player_limit" {
		t.Fatalf("Accept() error = %v, want player_limit kick", err)
	}
}

func TestConnectionHandler_Accept_AuthFailure(t *testing.T) {
	reg := NewRegistry()
	h := NewConnectionHandler(DefaultHandlerConfig(), reg, &fakeAuth{err: errClosed}, &fakeChars{}, nil)

	_, _, err := h.Accept(context.Background(), nil, "1.2.3.4", "", "")
	kicked, ok := err.(*ErrKicked)
	if !ok || kicked.Reason != "rate_limited" {
		t.Fatalf("Accept() error = %v, want rate_limited kick", err)
	}
}

func TestRegistry_AddRemoveAndLookup(t *testing.T) {
	reg := NewRegistry()
	session := model.NewSession("sock1")
	reg.Add(&Conn{socketID: "sock1"}, session)

	if reg.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", reg.Count())
	}
	if _, ok := reg.Session("sock1"); !ok {
		t.Error("Session() should find registered socket")
	}

	reg.BindPlayer("char1", "sock1")
	if s, ok := reg.SocketForPlayer("char1"); !ok || s != "sock1" {
		t.Errorf("SocketForPlayer() = %q,%v want sock1,true", s, ok)
	}

	reg.Remove("sock1")
	if reg.Count() != 0 {
		t.Errorf("Count() after Remove = %d, want 0", reg.Count())
	}
	if _, ok := reg.SocketForPlayer("char1"); ok {
		t.Error("SocketForPlayer() should forget binding after Remove")
	}
}

func TestRegistry_ClaimPlayer_RejectsWhileOwnerAlive(t *testing.T) {
	reg := NewRegistry()
	owner := model.NewSession("sock1")
	reg.Add(&Conn{socketID: "sock1"}, owner)
	if !reg.ClaimPlayer("char1", "sock1") {
		t.Fatal("ClaimPlayer() should succeed for the first claimant")
	}

	challenger := model.NewSession("sock2")
	reg.Add(&Conn{socketID: "sock2"}, challenger)
	if reg.ClaimPlayer("char1", "sock2") {
		t.Error("ClaimPlayer() should fail while the current owner's socket is alive")
	}

	owner.MarkDead()
	if !reg.ClaimPlayer("char1", "sock2") {
		t.Error("ClaimPlayer() should succeed once the current owner's socket is dead")
	}
}

func TestRegistry_SessionsForAccount(t *testing.T) {
	reg := NewRegistry()
	s1 := model.NewSession("sock1")
	s1.SetAccountID("acct1")
	reg.Add(&Conn{socketID: "sock1"}, s1)

	sessions := reg.SessionsForAccount("acct1")
	if len(sessions) != 1 {
		t.Fatalf("SessionsForAccount() = %d sessions, want 1", len(sessions))
	}

	s1.MarkDead()
	sessions = reg.SessionsForAccount("acct1")
	if len(sessions) != 0 {
		t.Errorf("SessionsForAccount() should exclude dead sessions, got %d", len(sessions))
	}
}

func TestConnectionHandler_EnterSpectator_RejectsUnownedCharacter(t *testing.T) {
	reg := NewRegistry()
	h := NewConnectionHandler(DefaultHandlerConfig(), reg, &fakeAuth{result: &AuthResult{AccountID: "acct1"}}, &fakeChars{list: []CharacterSummary{{ID: "char1", Name: "Owned"}}}, nil)

	_, _, err := h.EnterSpectator(context.Background(), nil, "1.2.3.4", "", "", "char2")
	kicked, ok := err.(*ErrKicked)
	if !ok || kicked.Reason != "not_owned" {
		t.Fatalf("EnterSpectator() error = %v, want not_owned kick", err)
	}
}

func TestConnectionHandler_EnterSpectator_OwnedCharacterGetsReducedSnapshot(t *testing.T) {
	reg := NewRegistry()
	h := NewConnectionHandler(DefaultHandlerConfig(), reg, &fakeAuth{result: &AuthResult{AccountID: "acct1", Token: "jwt-token"}}, &fakeChars{list: []CharacterSummary{{ID: "char1", Name: "Owned"}}}, nil)

	session, snapshot, err := h.EnterSpectator(context.Background(), &Conn{socketID: "sock1"}, "1.2.3.4", "", "", "char1")
	if err != nil {
		t.Fatalf("EnterSpectator() error = %v, want nil", err)
	}
	if !session.IsSpectator() {
		t.Error("EnterSpectator() should mark the session as a spectator")
	}
	if !snapshot.SpectatorMode {
		t.Error("EnterSpectator() snapshot should set spectatorMode")
	}
	if snapshot.AuthToken != "" {
		t.Error("EnterSpectator() snapshot should carry no auth token")
	}
	if len(snapshot.Characters) != 0 {
		t.Error("EnterSpectator() snapshot should carry no characters")
	}
	if snapshot.FollowEntity != "char1" {
		t.Errorf("EnterSpectator() FollowEntity = %q, want char1", snapshot.FollowEntity)
	}
}

func TestConnectionHandler_ReconcileRejectsNewConnectionWithinGraceUnspawned(t *testing.T) {
	reg := NewRegistry()
	h := NewConnectionHandler(DefaultHandlerConfig(), reg, &fakeAuth{}, &fakeChars{}, nil)

	existing := model.NewSession("sock-existing")
	existing.SetAccountID("acct1")
	reg.Add(&Conn{socketID: "sock-existing", closeCh: make(chan struct{}), sendCh: make(chan []byte, 1)}, existing)

	if rejectNew := h.reconcileReconnects("acct1"); !rejectNew {
		t.Fatal("reconcileReconnects() = false, want true for an in-grace unspawned socket")
	}
	if _, ok := reg.Session("sock-existing"); !ok {
		t.Error("reconcileReconnects should leave the in-grace unspawned socket registered")
	}
}

func TestConnectionHandler_Accept_RejectsWhenAccountAlreadyConnecting(t *testing.T) {
	reg := NewRegistry()
	h := NewConnectionHandler(DefaultHandlerConfig(), reg, &fakeAuth{result: &AuthResult{AccountID: "acct1"}}, &fakeChars{}, nil)

	existing := model.NewSession("sock-existing")
	existing.SetAccountID("acct1")
	reg.Add(&Conn{socketID: "sock-existing", closeCh: make(chan struct{}), sendCh: make(chan []byte, 1)}, existing)

	_, _, err := h.Accept(context.Background(), &Conn{socketID: "sock-new"}, "1.2.3.4", "", "")
	kicked, ok := err.(*ErrKicked)
	if !ok || kicked.Reason != "already_connecting" {
		t.Fatalf("Accept() error = %v, want already_connecting kick", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Accept() should not register the rejected connection, Count() = %d, want 1", reg.Count())
	}
}

func TestConnectionHandler_ReconcileClosesStaleSpawnedSession(t *testing.T) {
	reg := NewRegistry()
	h := NewConnectionHandler(DefaultHandlerConfig(), reg, &fakeAuth{result: &AuthResult{AccountID: "acct1"}}, &fakeChars{}, nil)

	old := model.NewSession("sock-old")
	old.SetAccountID("acct1")
	old.SetCharacterID("char1") // already spawned
	reg.Add(&Conn{socketID: "sock-old", closeCh: make(chan struct{}), sendCh: make(chan []byte, 1)}, old)

	h.reconcileReconnects("acct1")

	if _, ok := reg.Session("sock-old"); ok {
		t.Error("reconcileReconnects should remove a spawned session on the same account")
	}
	_ = time.Second
}
