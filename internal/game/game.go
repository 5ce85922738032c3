package game

import (
	"strings"
	"time"
)

const (
	MaxHP              = 100
	DefaultProjectiles = 5
	MaxProjectiles     = 5

	MeleeRange  = 60.0
	MeleeDamage = 10

	ProjectileDamage            = 15
	ProjectileSpeed             = 520.0 // units per second
	ProjectileLifetime          = 2200 * time.Millisecond
	ProjectileRange             = 800.0
	ProjectileVerticalTolerance = 60.0

	RoomCapacity      = 2
	MaxRoomIDLength   = 32
	MaxNameLength     = 16
	CountdownDuration = 4000 * time.Millisecond
)

type Position struct {
	X float64
	Y float64
}

// SpawnPositions are the fixed starting slots; a slot index is held uniquely
// within a room while occupied.
var SpawnPositions = []Position{
	{X: 200, Y: 500},
	{X: 600, Y: 500},
}

type Direction int

const (
	DirLeft Direction = iota
	DirRight
)

// Sign is the unit displacement along the firing axis.
func (d Direction) Sign() float64 {
	if d == DirLeft {
		return -1
	}
	return 1
}

func (d Direction) String() string {
	if d == DirLeft {
		return "left"
	}
	return "right"
}

// ParseDirection collapses a wire value to left/right; anything unknown
// fires right, matching the reference behavior.
func ParseDirection(s string) Direction {
	if s == "left" {
		return DirLeft
	}
	return DirRight
}

// PlayerState is the replicated record for one connected participant. It is
// owned by its room and mutated only by that room's handlers and timers.
type PlayerState struct {
	ID                   string
	X                    float64
	Y                    float64
	HP                   int
	Guarding             bool
	Color                int
	Name                 string
	ProjectilesRemaining int
	SpawnIndex           int
}

// NewPlayerState creates the default record at the given spawn slot.
func NewPlayerState(id string, spawnIndex int) *PlayerState {
	spawn := SpawnFor(spawnIndex)
	return &PlayerState{
		ID:                   id,
		X:                    spawn.X,
		Y:                    spawn.Y,
		HP:                   MaxHP,
		ProjectilesRemaining: DefaultProjectiles,
		SpawnIndex:           spawnIndex,
	}
}

// SpawnFor maps a slot index to its position, falling back to slot 0 for
// out-of-range indices.
func SpawnFor(index int) Position {
	if index < 0 || index >= len(SpawnPositions) {
		return SpawnPositions[0]
	}
	return SpawnPositions[index]
}

// ResetForRound puts the player back at its spawn with full hp and ammo.
func (p *PlayerState) ResetForRound() {
	spawn := SpawnFor(p.SpawnIndex)
	p.X = spawn.X
	p.Y = spawn.Y
	p.HP = MaxHP
	p.Guarding = false
	p.ProjectilesRemaining = DefaultProjectiles
}

// StateUpdate is a partial state push. Nil fields keep the previous value;
// the guard flag always overwrites (absent means not guarding).
type StateUpdate struct {
	X        *float64
	Y        *float64
	HP       *float64
	Guarding bool
	Color    *int
	Name     *string
}

// Apply merges the push into the player record. This is the single place the
// missing-field-retains-previous policy lives for update messages.
func (p *PlayerState) Apply(u StateUpdate) {
	if u.X != nil {
		p.X = *u.X
	}
	if u.Y != nil {
		p.Y = *u.Y
	}
	if u.HP != nil {
		p.HP = ClampHP(int(*u.HP))
	}
	p.Guarding = u.Guarding
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.Name != nil {
		p.Name = SanitizeName(*u.Name)
	}
}

func ClampHP(hp int) int {
	if hp < 0 {
		return 0
	}
	if hp > MaxHP {
		return MaxHP
	}
	return hp
}

// SanitizeName trims and truncates a display name to MaxNameLength runes.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	runes := []rune(name)
	if len(runes) > MaxNameLength {
		return string(runes[:MaxNameLength])
	}
	return name
}

// SanitizeRoomID trims and truncates a user-chosen room id; empty ids are
// rejected.
func SanitizeRoomID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	runes := []rune(id)
	if len(runes) > MaxRoomIDLength {
		id = string(runes[:MaxRoomIDLength])
	}
	if id == "" {
		return "", false
	}
	return id, true
}

// NextSpawnIndex returns the lowest spawn slot not currently occupied,
// falling back to slot 0 when every slot is taken.
func NextSpawnIndex(occupied map[int]bool) int {
	for i := range SpawnPositions {
		if !occupied[i] {
			return i
		}
	}
	return 0
}
