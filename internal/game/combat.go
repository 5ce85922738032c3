package game

import (
	"math"
	"time"
)

// Distance is the Euclidean distance between two points.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// MeleeInRange reports whether a melee swing from the claimed attacker
// position reaches the target's server-held position.
func MeleeInRange(attackX, attackY float64, target *PlayerState) bool {
	return Distance(attackX, attackY, target.X, target.Y) < MeleeRange
}

// ApplyDamage subtracts damage from the target, clamped at zero, and reports
// whether the hit was a knockout. Guarding targets take no damage.
func ApplyDamage(target *PlayerState, damage int) (knockout bool) {
	if target.Guarding {
		return false
	}
	target.HP = ClampHP(target.HP - damage)
	return target.HP == 0
}

// ProjectileEligible reports whether a shot fired from (shotX, shotY) toward
// dir can ever reach the target: the target must lie ahead of the shot along
// the firing axis, within horizontal range, and inside the vertical
// tolerance band of the firing line.
func ProjectileEligible(shotX, shotY float64, dir Direction, target *PlayerState) bool {
	dx := target.X - shotX
	dy := target.Y - shotY
	if dx*dir.Sign() <= 0 {
		return false
	}
	if math.Abs(dx) > ProjectileRange || math.Abs(dy) > ProjectileVerticalTolerance {
		return false
	}
	return true
}

// TravelTime is the scheduled delay before a projectile reaches a target at
// horizontal offset dx, capped at the projectile lifetime. The server never
// simulates the shot per tick; this single delay stands in for its flight.
func TravelTime(dx float64) time.Duration {
	d := time.Duration(math.Abs(dx) / ProjectileSpeed * float64(time.Second))
	if d > ProjectileLifetime {
		return ProjectileLifetime
	}
	return d
}
