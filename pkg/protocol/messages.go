package protocol

import "encoding/json"

// Message type names, client -> server:
//   requestRoomList, joinRoom, setReadyState, update, attack, projectile,
//   latencyTest
//
// Server -> client:
//   yourId, roomList, roomJoined, roomJoinError, spawnInfo, readyStates,
//   roundPhase, roundCountdownCancelled, playerUpdate, opponentAttack,
//   projectileFired, attacked, gameover, restartGame, playerLeft, latencyPong
const (
	TypeYourID                  = "yourId"
	TypeRoomList                = "roomList"
	TypeRequestRoomList         = "requestRoomList"
	TypeJoinRoom                = "joinRoom"
	TypeRoomJoined              = "roomJoined"
	TypeRoomJoinError           = "roomJoinError"
	TypeSpawnInfo               = "spawnInfo"
	TypeSetReadyState           = "setReadyState"
	TypeReadyStates             = "readyStates"
	TypeRoundPhase              = "roundPhase"
	TypeRoundCountdownCancelled = "roundCountdownCancelled"
	TypeUpdate                  = "update"
	TypePlayerUpdate            = "playerUpdate"
	TypeAttack                  = "attack"
	TypeOpponentAttack          = "opponentAttack"
	TypeProjectile              = "projectile"
	TypeProjectileFired         = "projectileFired"
	TypeAttacked                = "attacked"
	TypeGameover                = "gameover"
	TypeRestartGame             = "restartGame"
	TypePlayerLeft              = "playerLeft"
	TypeLatencyTest             = "latencyTest"
	TypeLatencyPong             = "latencyPong"
)

// Envelope is the frame for client -> server messages. Data stays raw until
// the session layer knows the type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the frame for server -> client messages.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type RoomSummary struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"playerCount"`
	ReadyCount  int    `json:"readyCount"`
	Capacity    int    `json:"capacity"`
}

type RoomListData struct {
	Rooms []RoomSummary `json:"rooms"`
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

type RoomJoinedData struct {
	RoomID string `json:"roomId"`
}

type RoomJoinErrorData struct {
	Message string `json:"message"`
}

type SpawnInfoData struct {
	ID         string `json:"id"`
	SpawnIndex int    `json:"spawnIndex"`
}

type SetReadyStateData struct {
	Ready bool `json:"ready"`
}

type ReadyStatesData struct {
	ReadyPlayerIDs []string `json:"readyPlayerIds"`
	TotalPlayers   int      `json:"totalPlayers"`
}

type RoundPhaseData struct {
	Phase string `json:"phase"`
}

type PlayerUpdateData struct {
	ID                   string  `json:"id"`
	X                    float64 `json:"x"`
	Y                    float64 `json:"y"`
	HP                   int     `json:"hp"`
	Guarding             bool    `json:"guarding"`
	Color                int     `json:"color"`
	Name                 string  `json:"name"`
	ProjectilesRemaining int     `json:"projectilesRemaining"`
	SpawnIndex           int     `json:"spawnIndex"`
}

type OpponentAttackData struct {
	AttackerID string `json:"attackerId"`
}

type ProjectileFiredData struct {
	ShooterID string  `json:"shooterId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction string  `json:"direction"`
	Color     int     `json:"color"`
}

type AttackedData struct {
	HP int `json:"hp"`
}

const (
	ResultWin  = "WIN"
	ResultLose = "LOSE"
)

type GameoverData struct {
	Result string `json:"result"`
}

type PlayerLeftData struct {
	ID string `json:"id"`
}

type LatencyTestData struct {
	ClientTime *float64 `json:"clientTime"`
}

type LatencyPongData struct {
	ClientTime float64 `json:"clientTime"`
}

// UpdateData carries a client state push. Every field is optional: a missing
// or wrong-typed field keeps the previous server-held value, which is why the
// decoder inspects fields one by one instead of failing the whole payload.
// The guard flag is the exception and coerces to false when absent.
type UpdateData struct {
	X        *float64
	Y        *float64
	HP       *float64
	Guarding bool
	Color    *int
	Name     *string
}

func (u *UpdateData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		// Not an object at all: treat as an empty push.
		return nil
	}
	u.X = numberField(raw, "x")
	u.Y = numberField(raw, "y")
	u.HP = numberField(raw, "hp")
	u.Guarding = boolField(raw, "guarding")
	if c := numberField(raw, "color"); c != nil {
		v := int(*c)
		u.Color = &v
	}
	u.Name = stringField(raw, "name")
	return nil
}

// AttackData carries the attacker's claimed position. Missing coordinates
// fall back to the attacker's server-held position.
type AttackData struct {
	X *float64
	Y *float64
}

func (a *AttackData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	a.X = numberField(raw, "x")
	a.Y = numberField(raw, "y")
	return nil
}

const (
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// ProjectileData carries the firing direction; anything that is not "left"
// normalizes to "right".
type ProjectileData struct {
	Direction string `json:"direction"`
}

func (p ProjectileData) NormalizedDirection() string {
	if p.Direction == DirectionLeft {
		return DirectionLeft
	}
	return DirectionRight
}

func numberField(raw map[string]json.RawMessage, key string) *float64 {
	r, ok := raw[key]
	if !ok {
		return nil
	}
	var v float64
	if err := json.Unmarshal(r, &v); err != nil {
		return nil
	}
	return &v
}

func boolField(raw map[string]json.RawMessage, key string) bool {
	r, ok := raw[key]
	if !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal(r, &v); err != nil {
		return false
	}
	return v
}

func stringField(raw map[string]json.RawMessage, key string) *string {
	r, ok := raw[key]
	if !ok {
		return nil
	}
	var v string
	if err := json.Unmarshal(r, &v); err != nil {
		return nil
	}
	return &v
}
