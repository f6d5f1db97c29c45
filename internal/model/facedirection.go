package model

// Cardinal is one of the four OSRS cardinal facing directions.
type Cardinal string

const (
	North Cardinal = "N"
	South Cardinal = "S"
	East  Cardinal = "E"
	West  Cardinal = "W"
)

// FaceDirectionState is the per-player tick-deferred rotation target.
// Invariant: at most one of FaceTarget and CardinalFaceDirection is set
// at a time; when both are set, cardinal takes priority.
type FaceDirectionState struct {
	FaceTarget           *Vector3
	CardinalFaceDirection *Cardinal
	MovedThisTick        bool
}

// ClearTargets clears both target kinds, leaving MovedThisTick untouched.
func (s *FaceDirectionState) ClearTargets() {
	s.FaceTarget = nil
	s.CardinalFaceDirection = nil
}

// HasTarget reports whether a face target of either kind is pending.
func (s FaceDirectionState) HasTarget() bool {
	return s.FaceTarget != nil || s.CardinalFaceDirection != nil
}
