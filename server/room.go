package server

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"quizarena/arena"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomClosed     = errors.New("room closed")
	ErrPlayerNotFound = errors.New("player not found")
)

// Room 一局比赛的权威状态。
//
// 两套并发机制并存：
//   - mu 读写锁保护玩家 / 分数 / 阶段等记录，高频的位置与战斗事件直接走锁路径；
//   - run 单消费者循环按顺序处理连接注册、注销与出站广播，
//     保证“谁在线”的变化与广播严格有序。
//
// 持有 mu 时禁止向循环的通道发送（循环内部会获取 mu）。
type Room struct {
	Code      string
	CreatedAt time.Time

	cfg     RoomConfig
	arena   *arena.MapData
	spawns  []arena.Tile
	metrics *RoomMetrics
	now     func() time.Time

	mu        sync.RWMutex
	rng       *rand.Rand
	players   map[string]*Player
	scores    map[string]int
	consumed  map[int]bool
	phase     GamePhase
	timer     int
	colorIdx  int
	updatedAt time.Time
	closed    bool

	// 连接表只由 run 循环写入；其他 goroutine 读取时持 connMu 读锁
	connMu      sync.RWMutex
	conns       map[string]Outbound
	host        Outbound
	activeConns atomic.Int32

	register   chan registration
	unregister chan departure
	events     chan delivery
	done       chan struct{}

	loopOnce  sync.Once
	tickOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRoom 创建房间（waiting 阶段，无玩家），需调用 Start 启动后台任务
func NewRoom(code string, m *arena.MapData, cfg RoomConfig) *Room {
	now := time.Now()
	return &Room{
		Code:       code,
		CreatedAt:  now,
		cfg:        cfg,
		arena:      m,
		spawns:     m.SpawnTiles(),
		metrics:    &RoomMetrics{},
		now:        time.Now,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		players:    make(map[string]*Player),
		scores:     make(map[string]int),
		consumed:   make(map[int]bool),
		phase:      PhaseWaiting,
		updatedAt:  now,
		conns:      make(map[string]Outbound),
		register:   make(chan registration, cfg.RegisterQueue),
		unregister: make(chan departure, cfg.RegisterQueue),
		events:     make(chan delivery, cfg.EventQueue),
		done:       make(chan struct{}),
	}
}

// Start 启动顺序处理循环与 Tick 广播
func (r *Room) Start() {
	r.startLoop()
	r.startTicker()
}

// Close 停止后台任务并关闭所有连接队列；可重复调用
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.done)
		r.wg.Wait()
		// 循环未启动时也要释放连接
		r.closeConnections()
	})
}

// Join 新玩家加入：分配出生点，写入权威玩家表并注册连接
func (r *Room) Join(name string, conn Outbound) (Player, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Player{}, ErrRoomClosed
	}
	p := r.newPlayerLocked(uuid.NewString(), name)
	snapshot := *p
	msgs := [][]byte{
		encode(MsgJoinedRoom, JoinedRoom{Code: r.Code, Player: snapshot}),
		encode(MsgInitialState, r.initialStateLocked()),
	}
	r.mu.Unlock()

	if err := r.attach(registration{conn: conn, playerID: p.ID, messages: msgs}); err != nil {
		return Player{}, err
	}
	Log.Infow("player joined", "room", r.Code, "player", p.ID, "name", p.Name)
	return snapshot, nil
}

// Rejoin 断线重连：保留身份、颜色与战绩，但总是重新抽取出生点并清除保护。
// 未知 playerID 等同于以默认名字加入。
func (r *Room) Rejoin(playerID string, conn Outbound) (Player, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Player{}, ErrRoomClosed
	}
	p, ok := r.players[playerID]
	if ok {
		r.placeAtSpawnLocked(p)
		p.clearProtection()
		p.IsDead = false
		p.State = StateActive
		r.touchLocked()
	} else {
		if playerID == "" {
			playerID = uuid.NewString()
		}
		p = r.newPlayerLocked(playerID, fmt.Sprintf("Player %d", len(r.players)+1))
	}
	snapshot := *p
	msgs := [][]byte{
		encode(MsgRejoinedRoom, JoinedRoom{Code: r.Code, Player: snapshot}),
		encode(MsgInitialState, r.initialStateLocked()),
	}
	r.mu.Unlock()

	if err := r.attach(registration{conn: conn, playerID: snapshot.ID, messages: msgs}); err != nil {
		return Player{}, err
	}
	Log.Infow("player rejoined", "room", r.Code, "player", snapshot.ID, "known", ok)
	return snapshot, nil
}

// AttachHost 绑定主持端（大屏）连接；greeting 在 initial-state 之前发送
func (r *Room) AttachHost(conn Outbound, greeting []byte) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	msgs := [][]byte{greeting, encode(MsgInitialState, r.initialStateLocked())}
	r.touchLocked()
	r.mu.Unlock()

	if err := r.attach(registration{conn: conn, messages: msgs}); err != nil {
		return err
	}
	Log.Infow("host attached", "room", r.Code)
	return nil
}

// Disconnect 注销连接；玩家记录保留以便重连
func (r *Room) Disconnect(conn Outbound) {
	d := departure{conn: conn, ack: make(chan struct{})}
	select {
	case r.unregister <- d:
	case <-r.done:
		return
	}
	select {
	case <-d.ack:
	case <-r.done:
	}
}

// Player 查询玩家记录副本
func (r *Room) Player(id string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Phase 当前阶段
func (r *Room) Phase() GamePhase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// PlayerCount 权威玩家表大小（含断线保留的玩家）
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// ActiveConnections 当前在线连接数（主持端 + 玩家）
func (r *Room) ActiveConnections() int {
	return int(r.activeConns.Load())
}

// Map 房间地图（只读）
func (r *Room) Map() *arena.MapData {
	return r.arena
}

// Metrics 运行指标
func (r *Room) Metrics() *RoomMetrics {
	return r.metrics
}

// Idle 无在线连接且最后更新早于 ttl
func (r *Room) Idle(now time.Time, ttl time.Duration) bool {
	if r.ActiveConnections() > 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return now.Sub(r.updatedAt) >= ttl
}

// RoomInfo 管理接口使用的房间概要
type RoomInfo struct {
	Code              string    `json:"code"`
	Phase             GamePhase `json:"gamePhase"`
	Players           int       `json:"players"`
	ActiveConnections int       `json:"activeConnections"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Info 房间概要
func (r *Room) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomInfo{
		Code:              r.Code,
		Phase:             r.phase,
		Players:           len(r.players),
		ActiveConnections: r.ActiveConnections(),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.updatedAt,
	}
}

func (r *Room) newPlayerLocked(id, name string) *Player {
	p := &Player{
		ID:        id,
		Name:      name,
		Color:     playerColors[r.colorIdx%len(playerColors)],
		State:     StateActive,
		Animation: "idle",
		Direction: "down",
	}
	r.colorIdx++
	r.placeAtSpawnLocked(p)
	r.players[id] = p
	r.scores[id] = 0
	r.touchLocked()
	return p
}

// placeAtSpawnLocked 从可行走且无阻挡的格子中均匀抽取出生点
func (r *Room) placeAtSpawnLocked(p *Player) {
	t := arena.Center()
	if len(r.spawns) > 0 {
		t = r.spawns[r.rng.IntN(len(r.spawns))]
	}
	p.X, p.Y = arena.TileCenter(t)
}

func (r *Room) touchLocked() {
	r.updatedAt = r.now()
}

// initialStateLocked 地图（叠加已拾取标记）+ 完整状态
func (r *Room) initialStateLocked() InitialState {
	m := *r.arena
	m.Objects = make([]arena.MapObject, len(r.arena.Objects))
	copy(m.Objects, r.arena.Objects)
	for idx := range r.consumed {
		m.Objects[idx].IsConsumed = true
	}
	return InitialState{Code: r.Code, Map: &m, State: r.snapshotLocked()}
}
