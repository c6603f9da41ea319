package server

// GamePhase 比赛阶段，只能 waiting -> playing -> ended 单向推进
type GamePhase string

const (
	PhaseWaiting GamePhase = "waiting"
	PhasePlaying GamePhase = "playing"
	PhaseEnded   GamePhase = "ended"
)

func (p GamePhase) rank() int {
	switch p {
	case PhasePlaying:
		return 1
	case PhaseEnded:
		return 2
	}
	return 0
}

// PlayerState 玩家记录的生命周期
type PlayerState string

const (
	// StateActive 有活动连接
	StateActive PlayerState = "active"
	// StateDisconnected 连接断开但记录保留，用于重连恢复身份与战绩
	StateDisconnected PlayerState = "disconnected"
)

// playerColors 按加入顺序分配的显示颜色
var playerColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080", "#e6beff",
}

// Player 房间内的玩家实体（服务端存储，客户端上报）
type Player struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Color string      `json:"color"`
	State PlayerState `json:"state"`

	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Animation   string  `json:"animation"`
	Direction   string  `json:"direction"`
	AimRotation float64 `json:"aimRotation"`
	Flip        bool    `json:"flip"`
	Weapon      int     `json:"weapon"`
	IsDead      bool    `json:"isDead"`

	IsProtected    bool  `json:"isProtected"`
	ProtectedUntil int64 `json:"protectedUntil"` // unix 毫秒，0 表示无

	Kills              int `json:"kills"`
	CorrectAnswers     int `json:"correctAnswers"`
	QuestionsAttempted int `json:"questionsAttempted"`
}

// clearProtection 取消出生保护
func (p *Player) clearProtection() {
	p.IsProtected = false
	p.ProtectedUntil = 0
}
