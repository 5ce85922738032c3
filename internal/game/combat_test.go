package game

import (
	"testing"
	"time"
)

func TestMeleeInRange(t *testing.T) {
	cases := []struct {
		name     string
		ax, ay   float64
		tx, ty   float64
		expected bool
	}{
		{
			name: "close hit lands",
			ax:   100, ay: 500,
			tx: 130, ty: 500,
			expected: true,
		},
		{
			name: "exactly at range misses",
			ax:   100, ay: 500,
			tx: 160, ty: 500,
			expected: false,
		},
		{
			name: "diagonal distance counts",
			ax:   100, ay: 500,
			tx: 140, ty: 550, // hypot(40,50) ≈ 64
			expected: false,
		},
		{
			name: "far away misses",
			ax:   100, ay: 500,
			tx: 600, ty: 500,
			expected: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := &PlayerState{X: tc.tx, Y: tc.ty}
			if got := MeleeInRange(tc.ax, tc.ay, target); got != tc.expected {
				t.Fatalf("MeleeInRange: got %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestApplyDamage(t *testing.T) {
	cases := []struct {
		name         string
		hp           int
		guarding     bool
		damage       int
		wantHP       int
		wantKnockout bool
	}{
		{name: "normal hit", hp: 100, damage: 10, wantHP: 90},
		{name: "guard nullifies", hp: 100, guarding: true, damage: 10, wantHP: 100},
		{name: "clamps at zero", hp: 5, damage: 15, wantHP: 0, wantKnockout: true},
		{name: "exact knockout", hp: 10, damage: 10, wantHP: 0, wantKnockout: true},
		{name: "guarded at low hp survives", hp: 5, guarding: true, damage: 15, wantHP: 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &PlayerState{HP: tc.hp, Guarding: tc.guarding}
			knockout := ApplyDamage(p, tc.damage)
			if p.HP != tc.wantHP {
				t.Fatalf("hp: got %d, want %d", p.HP, tc.wantHP)
			}
			if knockout != tc.wantKnockout {
				t.Fatalf("knockout: got %v, want %v", knockout, tc.wantKnockout)
			}
		})
	}
}

func TestProjectileEligible(t *testing.T) {
	cases := []struct {
		name     string
		dir      Direction
		tx, ty   float64
		expected bool
	}{
		{name: "ahead and level", dir: DirRight, tx: 750, ty: 500, expected: true},
		{name: "behind the shooter", dir: DirRight, tx: 50, ty: 500, expected: false},
		{name: "leftward shot at left target", dir: DirLeft, tx: 50, ty: 500, expected: true},
		{name: "leftward shot at right target", dir: DirLeft, tx: 750, ty: 500, expected: false},
		{name: "same column never eligible", dir: DirRight, tx: 100, ty: 500, expected: false},
		{name: "out of horizontal range", dir: DirRight, tx: 950, ty: 500, expected: false},
		{name: "outside vertical tolerance", dir: DirRight, tx: 400, ty: 580, expected: false},
		{name: "inside vertical tolerance", dir: DirRight, tx: 400, ty: 550, expected: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := &PlayerState{X: tc.tx, Y: tc.ty}
			if got := ProjectileEligible(100, 500, tc.dir, target); got != tc.expected {
				t.Fatalf("eligible: got %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestTravelTime(t *testing.T) {
	// 650 units at 520 units/s = 1250ms.
	if got := TravelTime(650); got != 1250*time.Millisecond {
		t.Fatalf("travel: got %v, want 1250ms", got)
	}
	// Direction does not matter, only magnitude.
	if got := TravelTime(-650); got != 1250*time.Millisecond {
		t.Fatalf("travel: got %v, want 1250ms", got)
	}
	// Long shots cap at the projectile lifetime.
	if got := TravelTime(5000); got != ProjectileLifetime {
		t.Fatalf("travel: got %v, want lifetime cap %v", got, ProjectileLifetime)
	}
}
