package server

import (
	"encoding/json"

	"quizarena/arena"
)

// Envelope 所有客户端 <-> 服务端消息的统一外壳
// 示例：{"type":"join-room","content":{"code":"ABCDE","name":"Ava"}}
type Envelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// 客户端 -> 服务端
const (
	MsgCreateRoom      = "create-room"
	MsgJoinRoom        = "join-room"
	MsgRejoinRoom      = "rejoin-room"
	MsgRejoinDashboard = "rejoin-dashboard"
	MsgStartGame       = "start-game"
	MsgEndGame         = "end-game"
	MsgGetState        = "get-state"
	MsgUpdatePosition  = "update-position"
	MsgUpdateScore     = "update-score"
	MsgUpdateTimer     = "update-timer"
	MsgPickupCollect   = "pickup-collect"
)

// 双向：战斗事件转发
const (
	MsgBulletSpawn   = "bullet-spawn"
	MsgBulletDestroy = "bullet-destroy"
	MsgPlayerHit     = "player-hit"
	MsgPlayerDeath   = "player-death"
	MsgPlayerRespawn = "player-respawn"
)

// 服务端 -> 客户端
const (
	MsgRoomCreated       = "room-created"
	MsgJoinedRoom        = "joined-room"
	MsgRejoinedRoom      = "rejoined-room"
	MsgRejoinedDashboard = "rejoined-dashboard"
	MsgGameStarted       = "game-started"
	MsgGameEnded         = "game-ended"
	MsgInitialState      = "initial-state"
	MsgGameUpdate        = "game-update"
	MsgPickupCollected   = "pickup-collected"
	MsgError             = "error"
)

// JoinRoomMsg 玩家以名字加入房间
type JoinRoomMsg struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RejoinRoomMsg 玩家断线重连
type RejoinRoomMsg struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
}

// RoomCodeMsg 只携带房间码的请求（rejoin-dashboard / get-state）
type RoomCodeMsg struct {
	Code string `json:"code"`
}

// PositionUpdate 客户端上报的瞬时状态（服务端不校验合理性）
type PositionUpdate struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Animation   string  `json:"animation"`
	Direction   string  `json:"direction"`
	AimRotation float64 `json:"aimRotation"`
	Flip        bool    `json:"flip"`
	Weapon      int     `json:"weapon"`
}

// ScoreUpdate 累计计数
type ScoreUpdate struct {
	CorrectAnswers     int `json:"correctAnswers"`
	QuestionsAttempted int `json:"questionsAttempted"`
	Kills              int `json:"kills"`
}

// TimerUpdate 倒计时（秒）
type TimerUpdate struct {
	Timer int `json:"timer"`
}

// HitReport 命中上报，服务端原样转发
type HitReport struct {
	BulletID        string  `json:"bulletId"`
	ShooterID       string  `json:"shooterId"`
	TargetID        string  `json:"targetId"`
	Damage          float64 `json:"damage"`
	ResultingHealth float64 `json:"resultingHealth"`
	IsDead          bool    `json:"isDead"`
}

// DeathReport 死亡上报；PlayerID 为空时表示发送者本人
type DeathReport struct {
	PlayerID string `json:"playerId"`
	KillerID string `json:"killerId,omitempty"`
}

// PickupCollectMsg 拾取地图上的道具 / 宝箱
type PickupCollectMsg struct {
	ObjectIndex int `json:"objectIndex"`
}

// RoomCreated 房间创建回执（发给主持端）
type RoomCreated struct {
	Code    string `json:"code"`
	JoinURL string `json:"joinUrl"`
	QRURL   string `json:"qrUrl"`
}

// JoinedRoom join / rejoin 回执
type JoinedRoom struct {
	Code   string `json:"code"`
	Player Player `json:"player"`
}

// PhaseChange 阶段切换广播
type PhaseChange struct {
	Phase  GamePhase      `json:"gamePhase"`
	Scores map[string]int `json:"score,omitempty"`
}

// InitialState 地图 + 完整状态，每个连接生命周期只发送一次
type InitialState struct {
	Code  string         `json:"code"`
	Map   *arena.MapData `json:"map"`
	State StateSnapshot  `json:"state"`
}

// RespawnNotice 服务端选择的重生位置
type RespawnNotice struct {
	PlayerID       string  `json:"playerId"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	IsProtected    bool    `json:"isProtected"`
	ProtectedUntil int64   `json:"protectedUntil"` // unix 毫秒
}

// PickupCollected 拾取广播
type PickupCollected struct {
	ObjectIndex int              `json:"objectIndex"`
	Kind        arena.ObjectKind `json:"kind"`
	PlayerID    string           `json:"playerId"`
}

// ErrorMsg 可恢复错误，附带可读原因
type ErrorMsg struct {
	Message string `json:"message"`
}

type outgoing struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

// encode 序列化出站消息；失败时记录日志并返回 nil
func encode(typ string, content any) []byte {
	b, err := json.Marshal(outgoing{Type: typ, Content: content})
	if err != nil {
		Log.Errorw("encode message failed", "type", typ, "error", err)
		return nil
	}
	return b
}

// encodeRaw 原样转发客户端载荷
func encodeRaw(typ string, content json.RawMessage) []byte {
	if len(content) == 0 {
		return encode(typ, nil)
	}
	return encode(typ, content)
}
