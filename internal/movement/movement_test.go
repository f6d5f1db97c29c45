package movement

import (
	"testing"

	"github.com/hyperscape/coreserver/internal/batch"
	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/throttle"
	"github.com/hyperscape/coreserver/internal/world"
)

type nopSender struct{}

func (nopSender) SendBinary(string, []byte) error { return nil }
func (nopSender) SendJSON(string, any) error       { return nil }

type capturingSender struct {
	frames map[string][]byte
}

func (c *capturingSender) SendBinary(socketID string, payload []byte) error {
	c.frames[socketID] = payload
	return nil
}
func (c *capturingSender) SendJSON(string, any) error { return nil }

func newTestManager() (*Manager, *players.Manager) {
	aoi := world.NewAOIManager(16, 2)
	th := throttle.New(throttle.DefaultTiers())
	bc := broadcast.NewOptimizedBroadcaster(aoi, th, nopSender{})
	pm := players.NewManager()
	return NewManager(pm, nil, bc), pm
}

func TestMoveRequest_SetsMovementTarget(t *testing.T) {
	mgr, pm := newTestManager()
	p := model.NewPlayer("sock1", "acct1", "char1")
	pm.Add(p)

	target := model.Vector3{X: 10, Y: 0, Z: 10}
	mgr.MoveRequest("char1", &target, true, false)

	mt := p.Movement()
	if mt == nil {
		t.Fatal("MoveRequest() should set a movement target")
	}
	if mt.MaxSpeed != model.RunSpeed {
		t.Errorf("MaxSpeed = %v, want RunSpeed", mt.MaxSpeed)
	}
}

func TestMoveRequest_CancelClearsMovement(t *testing.T) {
	mgr, pm := newTestManager()
	p := model.NewPlayer("sock1", "acct1", "char1")
	pm.Add(p)

	target := model.Vector3{X: 10}
	mgr.MoveRequest("char1", &target, false, false)
	mgr.MoveRequest("char1", nil, false, true)

	if p.Movement() != nil {
		t.Error("cancel should clear the movement target")
	}
}

func TestMoveRequest_ImmediatelyFacesTarget(t *testing.T) {
	aoi := world.NewAOIManager(16, 2)
	th := throttle.New(throttle.DefaultTiers())
	sender := &capturingSender{frames: make(map[string][]byte)}
	bc := broadcast.NewOptimizedBroadcaster(aoi, th, sender)
	pm := players.NewManager()
	mgr := NewManager(pm, nil, bc)

	p := model.NewPlayer("sock1", "acct1", "char1")
	pm.Add(p)

	start := model.Vector3{X: 0, Y: 0, Z: 0}
	bc.MovePlayer("char1", "sock1", start)

	target := model.Vector3{X: 0, Y: 0, Z: 10}
	mgr.MoveRequest("char1", &target, false, false)
	bc.Flush(1)

	frame, ok := sender.frames["sock1"]
	if !ok {
		t.Fatal("MoveRequest() should have queued an update flushed to the subscribed socket")
	}
	records, err := batch.Decode(frame)
	if err != nil {
		t.Fatalf("batch.Decode() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Decode() records = %d, want 1", len(records))
	}
	if records[0].Flags&batch.FlagRotation == 0 {
		t.Fatal("MoveRequest() should queue a rotation immediately, before the first Update() tick")
	}
	want := QuaternionFromYaw(0, 10)
	if records[0].Rotation != want {
		t.Errorf("rotation = %+v, want facing toward target %+v", records[0].Rotation, want)
	}
}

func TestUpdate_SnapsToTargetWithinThreshold(t *testing.T) {
	mgr, pm := newTestManager()
	p := model.NewPlayer("sock1", "acct1", "char1")
	pm.Add(p)

	target := model.Vector3{X: 10, Y: 0, Z: 10}
	mgr.MoveRequest("char1", &target, false, false)

	pos := model.Vector3{X: 9.98, Y: 0, Z: 10}
	var newPos model.Vector3
	mgr.Update(0.1,
		func(string) model.Vector3 { return pos },
		func(_ string, p model.Vector3) { newPos = p },
	)

	if p.Movement() != nil {
		t.Error("Update() should clear movement once snapped")
	}
	if newPos.X != 10 {
		t.Errorf("newPos.X = %v, want snapped to 10", newPos.X)
	}
}

func TestUpdate_StepsTowardDistantTarget(t *testing.T) {
	mgr, pm := newTestManager()
	p := model.NewPlayer("sock1", "acct1", "char1")
	pm.Add(p)

	target := model.Vector3{X: 100, Y: 0, Z: 0}
	mgr.MoveRequest("char1", &target, true, false)

	pos := model.Vector3{}
	var newPos model.Vector3
	mgr.Update(0.1,
		func(string) model.Vector3 { return pos },
		func(_ string, p model.Vector3) { newPos = p },
	)

	if newPos.X <= 0 || newPos.X >= 100 {
		t.Errorf("newPos.X = %v, want a partial step toward 100", newPos.X)
	}
	if p.Movement() == nil {
		t.Error("Update() should keep the movement target while still en route")
	}
}

func TestQuaternionFromYaw_ZeroVelocityIsIdentity(t *testing.T) {
	q := QuaternionFromYaw(0, 0)
	if q != model.IdentityQuaternion {
		t.Errorf("QuaternionFromYaw(0,0) = %v, want identity", q)
	}
}
