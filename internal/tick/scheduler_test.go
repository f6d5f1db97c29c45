package tick

import (
	"context"
	"testing"
	"time"

	"github.com/hyperscape/coreserver/internal/anticheat"
	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/config"
	"github.com/hyperscape/coreserver/internal/eventbridge"
	"github.com/hyperscape/coreserver/internal/facedirection"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/movement"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/throttle"
	"github.com/hyperscape/coreserver/internal/trade"
	"github.com/hyperscape/coreserver/internal/world"
)

type nopSender struct{}

func (nopSender) SendBinary(string, []byte) error { return nil }
func (nopSender) SendJSON(string, any) error       { return nil }

type nopLocator struct{}

func (nopLocator) SocketForPlayer(string) (string, bool) { return "", false }

func newTestScheduler(t *testing.T) (*Scheduler, *players.Manager, *broadcast.OptimizedBroadcaster) {
	t.Helper()
	aoi := world.NewAOIManager(16, 2)
	th := throttle.New(throttle.DefaultTiers())
	bc := broadcast.NewOptimizedBroadcaster(aoi, th, nopSender{})
	pm := players.NewManager()
	mv := movement.NewManager(pm, nil, bc)
	face := facedirection.NewProcessor(pm, bc)
	ac := anticheat.NewValidator(pm, nil, bc, config.Default().AntiCheat, nil)
	bus := eventbridge.NewBus(nil)
	bridge := eventbridge.New(bus, broadcast.NewManager(nopSender{}, &stubRegistry{}), pm, nil, nil, nil, nil)
	trades := trade.NewSystem(config.Default().Trade, nil, nil, nil)

	s := New(config.TickConfig{RateHz: 20}, pm, nopLocator{}, bc, mv, face, ac, bridge, trades, nil)
	return s, pm, bc
}

type stubRegistry struct{}

func (stubRegistry) AllSocketIDs() []string                       { return nil }
func (stubRegistry) SocketForPlayer(string) (string, bool)        { return "", false }

func TestScheduler_StepAdvancesTickCounter(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	if s.Tick() != 0 {
		t.Fatalf("Tick() before any Step = %d, want 0", s.Tick())
	}
	tick := s.Step(context.Background(), 0.05, time.Now())
	if tick != 1 {
		t.Errorf("Step() returned %d, want 1", tick)
	}
	if s.Tick() != 1 {
		t.Errorf("Tick() after Step = %d, want 1", s.Tick())
	}
}

func TestScheduler_MovementIntegratesDuringStep(t *testing.T) {
	s, pm, bc := newTestScheduler(t)

	p := model.NewPlayer("sock1", "acct1", "char1")
	pm.Add(p)
	bc.UpdateEntityPosition("char1", model.Vector3{})

	target := model.Vector3{X: 100, Y: 0, Z: 0}
	s.movement.MoveRequest("char1", &target, true, false)

	s.Step(context.Background(), 1.0, time.Now())

	pos, ok := bc.Position("char1")
	if !ok {
		t.Fatal("expected a recorded position after stepping")
	}
	if pos.X <= 0 {
		t.Errorf("expected player to have moved toward target, got x=%v", pos.X)
	}
}

func TestScheduler_FaceDirectionResolvesWhenStationary(t *testing.T) {
	s, pm, bc := newTestScheduler(t)

	p := model.NewPlayer("sock1", "acct1", "char1")
	pm.Add(p)
	bc.UpdateEntityPosition("char1", model.Vector3{X: 0, Y: 0, Z: 0})

	s.face.SetFaceTarget("char1", model.Vector3{X: 1, Y: 0, Z: 1})
	s.Step(context.Background(), 0.05, time.Now())

	state := p.FaceDirection()
	if state.HasTarget() {
		t.Error("face target should be resolved and cleared on a stationary tick")
	}
}
