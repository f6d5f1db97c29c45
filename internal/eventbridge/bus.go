package eventbridge

import "go.uber.org/zap"

// defaultBusCapacity bounds how many undrained events the bus holds
// before Publish starts dropping. A tick drains the bus completely
// every cycle, so backlog only builds up if the bridge itself is
// falling behind, which should never happen at 20Hz.
const defaultBusCapacity = 4096

// Bus is a single-topic event queue: every gameplay system publishes
// onto it, and exactly one Bridge drains it once per tick. It is
// deliberately not a fan-out pub/sub registry - the spec requires a
// single broadcast policy, which a single consumer enforces more
// simply than a topic registry would.
type Bus struct {
	events chan Event
	log    *zap.Logger
}

// NewBus creates a Bus with the default capacity.
func NewBus(log *zap.Logger) *Bus {
	return &Bus{events: make(chan Event, defaultBusCapacity), log: log}
}

// Publish enqueues an event for the next Drain. A full bus drops the
// event and logs it rather than block the publishing goroutine -
// gameplay systems must never stall waiting on the event bridge.
func (b *Bus) Publish(e Event) {
	select {
	case b.events <- e:
	default:
		if b.log != nil {
			b.log.Warn("eventbridge: bus full, dropping event", zap.String("kind", e.Kind()))
		}
	}
}
