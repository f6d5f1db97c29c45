package batch

import (
	"encoding/binary"
	"testing"

	"github.com/hyperscape/coreserver/internal/model"
)

func TestUpdater_FlushEmpty(t *testing.T) {
	u := NewUpdater()
	if got := u.Flush(); got != nil {
		t.Errorf("Flush() on empty updater = %v, want nil", got)
	}
}

func TestUpdater_MergesMultipleQueuesForSameEntity(t *testing.T) {
	u := NewUpdater()
	u.QueuePositionUpdate("e1", model.Vector3{X: 1, Y: 2, Z: 3})
	u.QueueHealthUpdate("e1", 50, 100)

	if u.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1 (merged record)", u.PendingCount())
	}

	frame := u.Flush()
	count := binary.LittleEndian.Uint16(frame[0:2])
	if count != 1 {
		t.Errorf("frame count = %d, want 1", count)
	}
	flags := frame[6]
	if Flag(flags)&FlagPosition == 0 || Flag(flags)&FlagHealth == 0 {
		t.Errorf("flags = %08b, want both position and health set", flags)
	}
}

func TestUpdater_FlushClearsQueue(t *testing.T) {
	u := NewUpdater()
	u.QueuePositionUpdate("e1", model.Vector3{})
	u.Flush()

	if u.PendingCount() != 0 {
		t.Errorf("PendingCount() after Flush = %d, want 0", u.PendingCount())
	}
	if got := u.Flush(); got != nil {
		t.Errorf("second Flush() = %v, want nil", got)
	}
}

func TestUpdater_BoundedToMaxUpdatesPerBatch(t *testing.T) {
	u := NewUpdater()
	for i := 0; i < MaxUpdatesPerBatch+10; i++ {
		u.QueueStateUpdate(string(rune('a'))+itoa(i), uint8(i))
	}

	frame := u.Flush()
	count := binary.LittleEndian.Uint16(frame[0:2])
	if int(count) != MaxUpdatesPerBatch {
		t.Errorf("first flush count = %d, want %d", count, MaxUpdatesPerBatch)
	}
	if u.PendingCount() != 10 {
		t.Errorf("remaining after first flush = %d, want 10", u.PendingCount())
	}

	frame2 := u.Flush()
	count2 := binary.LittleEndian.Uint16(frame2[0:2])
	if int(count2) != 10 {
		t.Errorf("second flush count = %d, want 10", count2)
	}
}

func TestEntityHash_Deterministic(t *testing.T) {
	a := EntityHash("player-123")
	b := EntityHash("player-123")
	if a != b {
		t.Errorf("EntityHash() not deterministic: %d vs %d", a, b)
	}
	if EntityHash("player-123") == EntityHash("player-124") {
		t.Error("EntityHash() collided for distinct ids in this trivial test (unexpected)")
	}
}

func TestDecode_RoundTripsAllFieldKinds(t *testing.T) {
	u := NewUpdater()
	u.QueueTransformUpdate("e1", model.Vector3{X: 1.5, Y: 2.5, Z: 3.5}, model.Quaternion{X: 0, Y: 0, Z: 0, W: 1})
	u.QueueHealthUpdate("e1", 42, 100)
	u.QueueStateUpdate("e1", 7)
	u.QueueVelocityUpdate("e2", model.Vector3{X: -1, Y: 0, Z: 4})

	frame := u.Flush()
	records, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Decode() returned %d records, want 2", len(records))
	}

	e1 := records[0]
	if e1.EntityHash != EntityHash("e1") {
		t.Errorf("records[0].EntityHash = %d, want hash of e1", e1.EntityHash)
	}
	wantFlags := FlagPosition | FlagRotation | FlagHealth | FlagState
	if e1.Flags != wantFlags {
		t.Errorf("records[0].Flags = %08b, want %08b", e1.Flags, wantFlags)
	}
	if e1.Position != (model.Vector3{X: 1.5, Y: 2.5, Z: 3.5}) {
		t.Errorf("records[0].Position = %+v, want {1.5 2.5 3.5}", e1.Position)
	}
	if e1.HealthCur != 42 || e1.HealthMax != 100 {
		t.Errorf("records[0] health = %d/%d, want 42/100", e1.HealthCur, e1.HealthMax)
	}
	if e1.State != 7 {
		t.Errorf("records[0].State = %d, want 7", e1.State)
	}

	e2 := records[1]
	if e2.Flags != FlagVelocity {
		t.Errorf("records[1].Flags = %08b, want FlagVelocity only", e2.Flags)
	}
	if e2.Velocity != (model.Vector3{X: -1, Y: 0, Z: 4}) {
		t.Errorf("records[1].Velocity = %+v, want {-1 0 4}", e2.Velocity)
	}
}

func TestDecode_EmptyFrame(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Error("Decode(nil) should error, frame is too short for a count header")
	}
}

func TestDecode_TruncatedFrame(t *testing.T) {
	u := NewUpdater()
	u.QueuePositionUpdate("e1", model.Vector3{X: 1, Y: 2, Z: 3})
	frame := u.Flush()

	if _, err := Decode(frame[:len(frame)-2]); err == nil {
		t.Error("Decode() on a truncated frame should error, not silently short-read")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
