package game

// Phase is the per-room round phase.
//
// WARMUP is the lobby/ready-check state, COUNTDOWN the fixed pre-round
// delay, ACTIVE the window in which combat resolves. Attack animations
// replicate in every phase; damage only lands in ACTIVE.
type Phase string

const (
	PhaseWarmup    Phase = "WARMUP"
	PhaseCountdown Phase = "COUNTDOWN"
	PhaseActive    Phase = "ACTIVE"
)

// CanStartCountdown reports whether a ready-check may move the room out of
// WARMUP: both slots filled, everyone ready, and no round already pending or
// running. A second ready trigger during COUNTDOWN or ACTIVE must be a no-op.
func CanStartCountdown(phase Phase, playerCount, readyCount int) bool {
	return phase == PhaseWarmup && playerCount >= RoomCapacity && readyCount >= RoomCapacity
}
