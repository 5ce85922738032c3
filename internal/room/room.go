package room

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stickduel/backend/internal/game"
	"github.com/stickduel/backend/pkg/protocol"
)

var ErrRoomFull = errors.New("room full")

// Scope selects the recipient set for a publish.
type Scope int

const (
	// ScopeSelf targets a single connection, member or not.
	ScopeSelf Scope = iota
	// ScopeRoomOthers targets every room member except the subject connection.
	ScopeRoomOthers
	// ScopeRoomAll targets every room member.
	ScopeRoomAll
	// ScopeGlobal targets every connected session.
	ScopeGlobal
)

// Publisher delivers an outbound message to a recipient set. The hub
// implements it on top of its session table; rooms never talk to sockets
// directly.
type Publisher interface {
	Publish(scope Scope, r *Room, connID string, msg protocol.Outbound)
}

// CancelFunc stops a scheduled task. Stopping is best-effort: a task that
// already fired is additionally dropped by the generation check at run time.
type CancelFunc func()

// Scheduler runs fn after d on the loop that serializes this room's
// mutations. The hub's scheduler posts fn back into its inbox, so delayed
// effects never race ordinary message handling.
type Scheduler func(d time.Duration, fn func()) CancelFunc

// Room is an isolated match instance: at most two players, a ready set, and
// a round phase machine. All methods must be called from the owning hub
// loop; scheduled callbacks re-enter through the Scheduler for the same
// guarantee.
type Room struct {
	id      string
	players map[string]*game.PlayerState
	ready   map[string]bool
	phase   game.Phase

	// countdownGen invalidates in-flight countdown timers: a fire whose
	// generation no longer matches is stale and must do nothing.
	countdownGen    int
	cancelCountdown CancelFunc

	pub      Publisher
	schedule Scheduler
	log      *zap.SugaredLogger
}

func New(id string, pub Publisher, schedule Scheduler, log *zap.SugaredLogger) *Room {
	return &Room{
		id:       id,
		players:  make(map[string]*game.PlayerState),
		ready:    make(map[string]bool),
		phase:    game.PhaseWarmup,
		pub:      pub,
		schedule: schedule,
		log:      log,
	}
}

func (r *Room) ID() string        { return r.id }
func (r *Room) Phase() game.Phase { return r.phase }
func (r *Room) PlayerCount() int  { return len(r.players) }
func (r *Room) ReadyCount() int   { return len(r.ready) }
func (r *Room) Empty() bool       { return len(r.players) == 0 }

func (r *Room) Has(connID string) bool {
	_, ok := r.players[connID]
	return ok
}

// Player returns the live record for a member, or nil.
func (r *Room) Player(connID string) *game.PlayerState {
	return r.players[connID]
}

// MemberIDs lists members in spawn-slot order. Combat target selection and
// join syncs iterate this, so tie-breaks are deterministic.
func (r *Room) MemberIDs() []string {
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.players[ids[i]], r.players[ids[j]]
		if a.SpawnIndex != b.SpawnIndex {
			return a.SpawnIndex < b.SpawnIndex
		}
		return a.ID < b.ID
	})
	return ids
}

func (r *Room) Summary() protocol.RoomSummary {
	return protocol.RoomSummary{
		ID:          r.id,
		PlayerCount: len(r.players),
		ReadyCount:  len(r.ready),
		Capacity:    game.RoomCapacity,
	}
}

// Join adds the connection at the lowest free spawn slot and runs the
// late-join sync in both directions. Joining a room the connection is
// already in re-emits the current state and succeeds.
func (r *Room) Join(connID string) error {
	if r.Has(connID) {
		r.syncJoiner(connID)
		return nil
	}
	if len(r.players) >= game.RoomCapacity {
		return ErrRoomFull
	}

	occupied := make(map[int]bool, len(r.players))
	for _, p := range r.players {
		occupied[p.SpawnIndex] = true
	}
	p := game.NewPlayerState(connID, game.NextSpawnIndex(occupied))
	r.players[connID] = p

	r.log.Infow("player joined", "room", r.id, "player", connID, "spawn", p.SpawnIndex)

	r.syncJoiner(connID)
	r.pub.Publish(ScopeRoomOthers, r, connID, protocol.Outbound{Type: protocol.TypePlayerUpdate, Data: playerData(p)})
	r.pub.Publish(ScopeRoomOthers, r, connID, protocol.Outbound{Type: protocol.TypeSpawnInfo, Data: protocol.SpawnInfoData{ID: connID, SpawnIndex: p.SpawnIndex}})
	r.broadcastReady()
	return nil
}

// syncJoiner replays every member's full state and spawn assignment to one
// connection, its own record included.
func (r *Room) syncJoiner(connID string) {
	r.pub.Publish(ScopeSelf, r, connID, protocol.Outbound{Type: protocol.TypeRoomJoined, Data: protocol.RoomJoinedData{RoomID: r.id}})
	for _, id := range r.MemberIDs() {
		p := r.players[id]
		r.pub.Publish(ScopeSelf, r, connID, protocol.Outbound{Type: protocol.TypePlayerUpdate, Data: playerData(p)})
		r.pub.Publish(ScopeSelf, r, connID, protocol.Outbound{Type: protocol.TypeSpawnInfo, Data: protocol.SpawnInfoData{ID: id, SpawnIndex: p.SpawnIndex}})
	}
}

// Leave removes the connection's player and ready flag. Dropping below two
// members forces the phase machine back to WARMUP, cancelling any in-flight
// countdown. Reports whether the connection was a member.
func (r *Room) Leave(connID string) bool {
	if !r.Has(connID) {
		return false
	}
	delete(r.players, connID)
	delete(r.ready, connID)

	r.log.Infow("player left", "room", r.id, "player", connID, "remaining", len(r.players))

	r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypePlayerLeft, Data: protocol.PlayerLeftData{ID: connID}})

	if len(r.players) < game.RoomCapacity && r.phase != game.PhaseWarmup {
		r.revertToWarmup(true)
	} else {
		r.broadcastReady()
	}
	return true
}

// SetReady toggles the connection's ready flag. Readiness is only meaningful
// during WARMUP; a trigger in any other phase is a no-op, which is the guard
// against starting a second countdown concurrently.
func (r *Room) SetReady(connID string, ready bool) {
	if !r.Has(connID) || r.phase != game.PhaseWarmup {
		return
	}
	if ready {
		r.ready[connID] = true
	} else {
		delete(r.ready, connID)
	}
	r.broadcastReady()

	if game.CanStartCountdown(r.phase, len(r.players), len(r.ready)) {
		r.startCountdown()
	}
}

// startCountdown enters COUNTDOWN: resets every player to its spawn state,
// tells each its authoritative hp, announces the restart and phase, and arms
// the completion timer.
func (r *Room) startCountdown() {
	r.phase = game.PhaseCountdown
	clear(r.ready)

	for _, id := range r.MemberIDs() {
		p := r.players[id]
		p.ResetForRound()
		r.pub.Publish(ScopeSelf, r, id, protocol.Outbound{Type: protocol.TypeAttacked, Data: protocol.AttackedData{HP: p.HP}})
	}

	r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypeRestartGame})
	for _, id := range r.MemberIDs() {
		r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypePlayerUpdate, Data: playerData(r.players[id])})
	}
	r.broadcastPhase()
	r.broadcastReady()

	r.countdownGen++
	gen := r.countdownGen
	r.cancelCountdown = r.schedule(game.CountdownDuration, func() {
		r.countdownFired(gen)
	})

	r.log.Infow("countdown started", "room", r.id, "gen", gen)
}

// countdownFired completes COUNTDOWN -> ACTIVE unless the timer was
// invalidated in the interim.
func (r *Room) countdownFired(gen int) {
	if gen != r.countdownGen || r.phase != game.PhaseCountdown {
		r.log.Debugw("stale countdown fire dropped", "room", r.id, "gen", gen)
		return
	}
	r.cancelCountdown = nil
	r.phase = game.PhaseActive
	r.broadcastPhase()
	r.log.Infow("round active", "room", r.id)
}

// revertToWarmup forces the phase machine back to WARMUP, invalidating any
// pending countdown. The cancellation notice goes out only when a countdown
// was actually in flight and the reversion was not a knockout.
func (r *Room) revertToWarmup(notifyCancel bool) {
	if r.phase == game.PhaseCountdown {
		if r.cancelCountdown != nil {
			r.cancelCountdown()
			r.cancelCountdown = nil
		}
		r.countdownGen++
		if notifyCancel {
			r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypeRoundCountdownCancelled})
			r.log.Infow("countdown cancelled", "room", r.id)
		}
	}
	r.phase = game.PhaseWarmup
	clear(r.ready)
	r.broadcastPhase()
	r.broadcastReady()
}

// Update merges a client state push and replicates it to the other members.
// The sender is excluded: it already holds its own presentation state.
func (r *Room) Update(connID string, u game.StateUpdate) {
	p := r.players[connID]
	if p == nil {
		return
	}
	p.Apply(u)
	r.pub.Publish(ScopeRoomOthers, r, connID, protocol.Outbound{Type: protocol.TypePlayerUpdate, Data: playerData(p)})
}

// Attack resolves a melee swing. The animation notice goes to the other
// members in every phase; damage only lands while the round is ACTIVE.
// Missing claimed coordinates fall back to the attacker's server-held
// position.
func (r *Room) Attack(connID string, claimedX, claimedY *float64) {
	attacker := r.players[connID]
	if attacker == nil {
		return
	}

	r.pub.Publish(ScopeRoomOthers, r, connID, protocol.Outbound{Type: protocol.TypeOpponentAttack, Data: protocol.OpponentAttackData{AttackerID: connID}})

	if r.phase != game.PhaseActive {
		return
	}

	x, y := attacker.X, attacker.Y
	if claimedX != nil {
		x = *claimedX
	}
	if claimedY != nil {
		y = *claimedY
	}

	for _, id := range r.MemberIDs() {
		if id == connID {
			continue
		}
		target := r.players[id]
		if !game.MeleeInRange(x, y, target) {
			continue
		}
		knockout := game.ApplyDamage(target, game.MeleeDamage)
		if !target.Guarding {
			r.pub.Publish(ScopeSelf, r, id, protocol.Outbound{Type: protocol.TypeAttacked, Data: protocol.AttackedData{HP: target.HP}})
		}
		// In-range targets get a state refresh whether or not damage landed.
		r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypePlayerUpdate, Data: playerData(target)})
		if knockout {
			r.knockout(connID, id)
			return
		}
	}
}

// FireProjectile resolves a ranged shot. Outside ACTIVE the shot is
// visual-only: it neither consumes ammo nor schedules an impact, but the
// fired event still replicates. While ACTIVE, an empty launcher rejects the
// shot silently.
func (r *Room) FireProjectile(connID string, dir game.Direction) {
	shooter := r.players[connID]
	if shooter == nil {
		return
	}

	active := r.phase == game.PhaseActive
	if active {
		if shooter.ProjectilesRemaining <= 0 {
			return
		}
		shooter.ProjectilesRemaining--
	}

	r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypePlayerUpdate, Data: playerData(shooter)})
	r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypeProjectileFired, Data: protocol.ProjectileFiredData{
		ShooterID: connID,
		X:         shooter.X,
		Y:         shooter.Y,
		Direction: dir.String(),
		Color:     shooter.Color,
	}})

	if !active {
		return
	}

	// Single-target semantics: the first eligible member in spawn-slot order
	// takes the hit, everyone behind it is untouched.
	shotX, shotY := shooter.X, shooter.Y
	for _, id := range r.MemberIDs() {
		if id == connID {
			continue
		}
		target := r.players[id]
		if !game.ProjectileEligible(shotX, shotY, dir, target) {
			continue
		}
		targetID := id
		travel := game.TravelTime(target.X - shotX)
		r.schedule(travel, func() {
			r.projectileLanded(connID, targetID)
		})
		break
	}
}

// projectileLanded applies a scheduled impact. The world may have moved on
// since the shot was fired, so everything is re-validated: the round must
// still be ACTIVE and the target must still exist with hp above zero.
// Failing any of that, the effect drops silently.
func (r *Room) projectileLanded(shooterID, targetID string) {
	target := r.players[targetID]
	if r.phase != game.PhaseActive || target == nil || target.HP <= 0 {
		r.log.Debugw("stale projectile dropped", "room", r.id, "shooter", shooterID, "target", targetID)
		return
	}

	knockout := game.ApplyDamage(target, game.ProjectileDamage)
	if target.Guarding {
		// Blocked: no damage, but the room still gets a state refresh.
		r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypePlayerUpdate, Data: playerData(target)})
		return
	}

	r.pub.Publish(ScopeSelf, r, targetID, protocol.Outbound{Type: protocol.TypeAttacked, Data: protocol.AttackedData{HP: target.HP}})
	r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypePlayerUpdate, Data: playerData(target)})
	if knockout {
		r.knockout(shooterID, targetID)
	}
}

// knockout signals the round outcome privately to both sides and drives the
// phase machine back to WARMUP with a fresh readiness broadcast.
func (r *Room) knockout(winnerID, loserID string) {
	r.log.Infow("knockout", "room", r.id, "winner", winnerID, "loser", loserID)
	r.pub.Publish(ScopeSelf, r, loserID, protocol.Outbound{Type: protocol.TypeGameover, Data: protocol.GameoverData{Result: protocol.ResultLose}})
	r.pub.Publish(ScopeSelf, r, winnerID, protocol.Outbound{Type: protocol.TypeGameover, Data: protocol.GameoverData{Result: protocol.ResultWin}})
	r.revertToWarmup(false)
}

func (r *Room) broadcastPhase() {
	r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypeRoundPhase, Data: protocol.RoundPhaseData{Phase: string(r.phase)}})
}

func (r *Room) broadcastReady() {
	ids := make([]string, 0, len(r.ready))
	for _, id := range r.MemberIDs() {
		if r.ready[id] {
			ids = append(ids, id)
		}
	}
	r.pub.Publish(ScopeRoomAll, r, "", protocol.Outbound{Type: protocol.TypeReadyStates, Data: protocol.ReadyStatesData{
		ReadyPlayerIDs: ids,
		TotalPlayers:   len(r.players),
	}})
}

// View is a race-free copy of a room's state for queries and tests.
type View struct {
	Phase      game.Phase
	ReadyCount int
	Players    []protocol.PlayerUpdateData
}

func (r *Room) View() View {
	v := View{Phase: r.phase, ReadyCount: len(r.ready)}
	for _, id := range r.MemberIDs() {
		v.Players = append(v.Players, playerData(r.players[id]))
	}
	return v
}

func playerData(p *game.PlayerState) protocol.PlayerUpdateData {
	return protocol.PlayerUpdateData{
		ID:                   p.ID,
		X:                    p.X,
		Y:                    p.Y,
		HP:                   p.HP,
		Guarding:             p.Guarding,
		Color:                p.Color,
		Name:                 p.Name,
		ProjectilesRemaining: p.ProjectilesRemaining,
		SpawnIndex:           p.SpawnIndex,
	}
}
