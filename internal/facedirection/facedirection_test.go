package facedirection

import (
	"testing"

	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/throttle"
	"github.com/hyperscape/coreserver/internal/world"
)

type nopSender struct{}

func (nopSender) SendBinary(string, []byte) error { return nil }
func (nopSender) SendJSON(string, any) error       { return nil }

func newTestProcessor() (*Processor, *players.Manager) {
	aoi := world.NewAOIManager(16, 2)
	th := throttle.New(throttle.DefaultTiers())
	bc := broadcast.NewOptimizedBroadcaster(aoi, th, nopSender{})
	pm := players.NewManager()
	return NewProcessor(pm, bc), pm
}

func TestSetFaceTarget_ClearsMovedThisTick(t *testing.T) {
	proc, pm := newTestProcessor()
	p := model.NewPlayer("s1", "a1", "c1")
	p.SetMovedThisTick(true)
	pm.Add(p)

	proc.SetFaceTarget("c1", model.Vector3{X: 15, Z: 10})

	if p.MovedThisTick() {
		t.Error("SetFaceTarget() should clear movedThisTick")
	}
	if p.FaceDirection().FaceTarget == nil {
		t.Error("SetFaceTarget() should set a face target")
	}
}

func TestProcessFaceDirection_SkipsWhenMoved(t *testing.T) {
	proc, pm := newTestProcessor()
	p := model.NewPlayer("s1", "a1", "c1")
	pm.Add(p)
	proc.SetFaceTarget("c1", model.Vector3{X: 15, Z: 10})
	p.SetMovedThisTick(true)

	proc.ProcessFaceDirection(func(string) model.Vector3 { return model.Vector3{X: 10, Z: 10} })

	if p.FaceDirection().FaceTarget == nil {
		t.Error("ProcessFaceDirection() should leave the target pending when movedThisTick is true")
	}
}

func TestProcessFaceDirection_AppliesAndClearsWhenStationary(t *testing.T) {
	proc, pm := newTestProcessor()
	p := model.NewPlayer("s1", "a1", "c1")
	pm.Add(p)
	proc.SetFaceTarget("c1", model.Vector3{X: 15, Z: 10})

	proc.ProcessFaceDirection(func(string) model.Vector3 { return model.Vector3{X: 10, Z: 10} })

	if p.FaceDirection().HasTarget() {
		t.Error("ProcessFaceDirection() should clear the target once resolved")
	}
}

func TestProcessFaceDirection_CardinalTakesPriority(t *testing.T) {
	proc, pm := newTestProcessor()
	p := model.NewPlayer("s1", "a1", "c1")
	pm.Add(p)

	proc.SetCardinalFaceTarget("c1", model.Vector3{X: 10, Z: 10}, model.Vector3{X: 10, Z: 5})
	state := p.FaceDirection()
	if state.CardinalFaceDirection == nil || *state.CardinalFaceDirection != model.North {
		t.Fatalf("SetCardinalFaceTarget() = %+v, want North", state)
	}

	proc.ProcessFaceDirection(func(string) model.Vector3 { return model.Vector3{X: 10, Z: 10} })
	if p.FaceDirection().HasTarget() {
		t.Error("ProcessFaceDirection() should clear the cardinal target once resolved")
	}
}

func TestSetCardinalFaceTarget_FallsBackToPointTarget(t *testing.T) {
	proc, pm := newTestProcessor()
	p := model.NewPlayer("s1", "a1", "c1")
	pm.Add(p)

	// Diagonal offset: not aligned on either axis, should fall back.
	proc.SetCardinalFaceTarget("c1", model.Vector3{X: 10, Z: 10}, model.Vector3{X: 13, Z: 13})

	state := p.FaceDirection()
	if state.CardinalFaceDirection != nil {
		t.Error("SetCardinalFaceTarget() should not set a cardinal when not axis-aligned")
	}
	if state.FaceTarget == nil {
		t.Error("SetCardinalFaceTarget() should fall back to a point target")
	}
}

func TestResetMovementFlags_ClearsAllPlayers(t *testing.T) {
	proc, pm := newTestProcessor()
	p1 := model.NewPlayer("s1", "a1", "c1")
	p2 := model.NewPlayer("s2", "a2", "c2")
	p1.SetMovedThisTick(true)
	p2.SetMovedThisTick(true)
	pm.Add(p1)
	pm.Add(p2)

	proc.ResetMovementFlags()

	if p1.MovedThisTick() || p2.MovedThisTick() {
		t.Error("ResetMovementFlags() should clear movedThisTick for every player")
	}
}
