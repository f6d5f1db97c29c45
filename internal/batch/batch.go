// Package batch implements the per-subscriber binary frame
// accumulator that coalesces entity deltas into one framed packet per
// flush.
package batch

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/hyperscape/coreserver/internal/model"
)

// Flag is one bit of an update record's field bitset.
type Flag uint8

const (
	FlagPosition Flag = 1 << iota
	FlagRotation
	FlagHealth
	FlagState
	FlagVelocity
)

// MaxUpdatesPerBatch bounds one flush; excess stays queued for the
// next one.
const MaxUpdatesPerBatch = 256

// pending is one entity's accumulated, not-yet-flushed update.
type pending struct {
	flags    Flag
	position model.Vector3
	velocity model.Vector3
	rotation model.Quaternion
	healthCur, healthMax uint16
	state    uint8
}

// Updater coalesces per-entity updates for one subscriber into a
// single binary frame per flush. Safe for concurrent use: every
// exported method holds mu for its whole body.
type Updater struct {
	mu      sync.Mutex
	order   []string // entity ids, insertion order, for deterministic flush order
	pending map[string]*pending
}

// NewUpdater creates an empty per-subscriber batch updater.
func NewUpdater() *Updater {
	return &Updater{pending: make(map[string]*pending)}
}

func (u *Updater) entry(entityID string) *pending {
	p, ok := u.pending[entityID]
	if !ok {
		p = &pending{}
		u.pending[entityID] = p
		u.order = append(u.order, entityID)
	}
	return p
}

// QueuePositionUpdate merges a position delta into entityID's pending
// record.
func (u *Updater) QueuePositionUpdate(entityID string, pos model.Vector3) {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.entry(entityID)
	e.flags |= FlagPosition
	e.position = pos
}

// QueueRotationUpdate merges a rotation delta into entityID's pending
// record.
func (u *Updater) QueueRotationUpdate(entityID string, rot model.Quaternion) {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.entry(entityID)
	e.flags |= FlagRotation
	e.rotation = rot
}

// QueueTransformUpdate merges both position and rotation in one call.
func (u *Updater) QueueTransformUpdate(entityID string, pos model.Vector3, rot model.Quaternion) {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.entry(entityID)
	e.flags |= FlagPosition | FlagRotation
	e.position = pos
	e.rotation = rot
}

// QueueHealthUpdate merges a health delta into entityID's pending
// record.
func (u *Updater) QueueHealthUpdate(entityID string, current, max uint16) {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.entry(entityID)
	e.flags |= FlagHealth
	e.healthCur = current
	e.healthMax = max
}

// QueueStateUpdate merges a state byte into entityID's pending record.
func (u *Updater) QueueStateUpdate(entityID string, state uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.entry(entityID)
	e.flags |= FlagState
	e.state = state
}

// QueueVelocityUpdate merges a velocity delta into entityID's pending
// record.
func (u *Updater) QueueVelocityUpdate(entityID string, vel model.Vector3) {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.entry(entityID)
	e.flags |= FlagVelocity
	e.velocity = vel
}

// EntityHash computes the 32-bit id transmitted on the wire in place
// of the full string entity id; the client resolves it against its
// local entity table.
func EntityHash(entityID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(entityID))
	return h.Sum32()
}

// Flush produces one framed payload of at most MaxUpdatesPerBatch
// records and clears those records from the queue. Entities beyond
// the cap remain queued for the next flush. Returns nil if there is
// nothing to send.
func (u *Updater) Flush() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.order) == 0 {
		return nil
	}

	n := len(u.order)
	if n > MaxUpdatesPerBatch {
		n = MaxUpdatesPerBatch
	}
	flushing := u.order[:n]
	u.order = u.order[n:]

	buf := make([]byte, 2, 2+n*32)
	binary.LittleEndian.PutUint16(buf, uint16(n))

	for _, id := range flushing {
		p := u.pending[id]
		delete(u.pending, id)

		var rec [4]byte
		binary.LittleEndian.PutUint32(rec[:], EntityHash(id))
		buf = append(buf, rec[:]...)
		buf = append(buf, byte(p.flags))

		if p.flags&FlagPosition != 0 {
			buf = appendFloat32(buf, float32(p.position.X))
			buf = appendFloat32(buf, float32(p.position.Y))
			buf = appendFloat32(buf, float32(p.position.Z))
		}
		if p.flags&FlagRotation != 0 {
			buf = appendFloat32(buf, float32(p.rotation.X))
			buf = appendFloat32(buf, float32(p.rotation.Y))
			buf = appendFloat32(buf, float32(p.rotation.Z))
			buf = appendFloat32(buf, float32(p.rotation.W))
		}
		if p.flags&FlagHealth != 0 {
			var hb [4]byte
			binary.LittleEndian.PutUint16(hb[0:2], p.healthCur)
			binary.LittleEndian.PutUint16(hb[2:4], p.healthMax)
			buf = append(buf, hb[:]...)
		}
		if p.flags&FlagState != 0 {
			buf = append(buf, p.state)
		}
		if p.flags&FlagVelocity != 0 {
			buf = appendFloat32(buf, float32(p.velocity.X))
			buf = appendFloat32(buf, float32(p.velocity.Y))
			buf = appendFloat32(buf, float32(p.velocity.Z))
		}
	}

	return buf
}

func appendFloat32(buf []byte, f float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
	return append(buf, b[:]...)
}

func readFloat32(buf []byte, off int) (float32, int, error) {
	if off+4 > len(buf) {
		return 0, off, fmt.Errorf("batch: truncated float32 at offset %d", off)
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4])), off + 4, nil
}

// BatchRecord is the decoded form of one entity's record within a
// flushed frame, the inverse of the per-entity record Flush encodes.
type BatchRecord struct {
	EntityHash uint32
	Flags      Flag
	Position   model.Vector3
	Rotation   model.Quaternion
	HealthCur  uint16
	HealthMax  uint16
	State      uint8
	Velocity   model.Vector3
}

// Decode parses a frame produced by Flush back into its constituent
// records. It is the wire format's executable specification: no client
// ships in this repo, but anything that asserts what a session would
// have received decodes through this function rather than re-deriving
// the byte layout by hand.
func Decode(buf []byte) ([]BatchRecord, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("batch: frame too short for count header (%d bytes)", len(buf))
	}
	count := binary.LittleEndian.Uint16(buf[0:2])
	records := make([]BatchRecord, 0, count)

	off := 2
	for i := 0; i < int(count); i++ {
		if off+5 > len(buf) {
			return nil, fmt.Errorf("batch: truncated record header at index %d", i)
		}
		var rec BatchRecord
		rec.EntityHash = binary.LittleEndian.Uint32(buf[off : off+4])
		rec.Flags = Flag(buf[off+4])
		off += 5

		if rec.Flags&FlagPosition != 0 {
			vals := make([]float64, 3)
			for j := range vals {
				f, o, err := readFloat32(buf, off)
				if err != nil {
					return nil, err
				}
				vals[j], off = float64(f), o
			}
			rec.Position = model.Vector3{X: vals[0], Y: vals[1], Z: vals[2]}
		}
		if rec.Flags&FlagRotation != 0 {
			vals := make([]float64, 4)
			for j := range vals {
				f, o, err := readFloat32(buf, off)
				if err != nil {
					return nil, err
				}
				vals[j], off = float64(f), o
			}
			rec.Rotation = model.Quaternion{X: vals[0], Y: vals[1], Z: vals[2], W: vals[3]}
		}
		if rec.Flags&FlagHealth != 0 {
			if off+4 > len(buf) {
				return nil, fmt.Errorf("batch: truncated health field at index %d", i)
			}
			rec.HealthCur = binary.LittleEndian.Uint16(buf[off : off+2])
			rec.HealthMax = binary.LittleEndian.Uint16(buf[off+2 : off+4])
			off += 4
		}
		if rec.Flags&FlagState != 0 {
			if off+1 > len(buf) {
				return nil, fmt.Errorf("batch: truncated state field at index %d", i)
			}
			rec.State = buf[off]
			off++
		}
		if rec.Flags&FlagVelocity != 0 {
			vals := make([]float64, 3)
			for j := range vals {
				f, o, err := readFloat32(buf, off)
				if err != nil {
					return nil, err
				}
				vals[j], off = float64(f), o
			}
			rec.Velocity = model.Vector3{X: vals[0], Y: vals[1], Z: vals[2]}
		}

		records = append(records, rec)
	}

	return records, nil
}

// PendingCount reports how many entities currently have an
// un-flushed record. Exposed for tests and metrics.
func (u *Updater) PendingCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.order)
}
