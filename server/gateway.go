package server

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// Session 单个连接的会话上下文，只在该连接的读协程中访问
type Session struct {
	out      Outbound
	room     *Room
	playerID string
	host     bool
}

// NewSession 绑定连接的出站队列
func NewSession(out Outbound) *Session {
	return &Session{out: out}
}

func (s *Session) Room() *Room      { return s.room }
func (s *Session) PlayerID() string { return s.playerID }
func (s *Session) IsHost() bool     { return s.host }

// Gateway 把入站消息分发到房间操作
type Gateway struct {
	rooms   *RoomManager
	cfg     Config
	metrics *GatewayMetrics
}

// NewGateway 创建分发层
func NewGateway(rooms *RoomManager, cfg Config) *Gateway {
	return &Gateway{
		rooms:   rooms,
		cfg:     cfg,
		metrics: &GatewayMetrics{},
	}
}

// Metrics 分发层指标
func (g *Gateway) Metrics() *GatewayMetrics {
	return g.metrics
}

// Handle 处理一条入站消息。格式错误只记录日志，不影响房间状态
func (g *Gateway) Handle(s *Session, raw []byte) {
	g.metrics.IncMessages()
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		g.metrics.IncMalformed()
		Log.Warnw("malformed message", "error", err, "bytes", len(raw))
		return
	}

	switch env.Type {
	case MsgCreateRoom:
		g.handleCreateRoom(s)
	case MsgJoinRoom:
		g.handleJoinRoom(s, env)
	case MsgRejoinRoom:
		g.handleRejoinRoom(s, env)
	case MsgRejoinDashboard:
		g.handleRejoinDashboard(s, env)
	case MsgGetState:
		g.handleGetState(s, env)
	case MsgStartGame:
		if s.room != nil {
			s.room.StartGame(s.out)
		}
	case MsgEndGame:
		if s.room != nil {
			s.room.EndGame(s.out)
		}
	case MsgUpdateTimer:
		var t TimerUpdate
		if s.room != nil && g.decode(env, &t) {
			s.room.SetTimer(s.out, t.Timer)
		}
	case MsgUpdatePosition, MsgUpdateScore, MsgBulletSpawn, MsgBulletDestroy,
		MsgPlayerHit, MsgPlayerDeath, MsgPlayerRespawn, MsgPickupCollect:
		g.handlePlayerEvent(s, env)
	default:
		g.metrics.IncUnknown()
		Log.Debugw("unknown message type", "type", env.Type)
	}
}

// Disconnect 连接关闭时调用
func (g *Gateway) Disconnect(s *Session) {
	g.leave(s)
}

func (g *Gateway) handleCreateRoom(s *Session) {
	room, err := g.rooms.CreateRoom()
	if err != nil {
		Log.Errorw("create room failed", "error", err)
		g.sendError(s, "could not create room")
		return
	}
	g.leave(s)
	greeting := encode(MsgRoomCreated, RoomCreated{
		Code:    room.Code,
		JoinURL: g.joinURL(room.Code),
		QRURL:   "/api/rooms/" + room.Code + "/qr",
	})
	if err := room.AttachHost(s.out, greeting); err != nil {
		g.sendError(s, ErrRoomNotFound.Error())
		return
	}
	s.room, s.host = room, true
}

func (g *Gateway) handleJoinRoom(s *Session, env Envelope) {
	var msg JoinRoomMsg
	if !g.decode(env, &msg) {
		return
	}
	room, ok := g.lookup(s, msg.Code)
	if !ok {
		return
	}
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = "Player"
	}
	g.leave(s)
	p, err := room.Join(name, s.out)
	if err != nil {
		g.roomError(s, err)
		return
	}
	s.room, s.playerID = room, p.ID
}

func (g *Gateway) handleRejoinRoom(s *Session, env Envelope) {
	var msg RejoinRoomMsg
	if !g.decode(env, &msg) {
		return
	}
	room, ok := g.lookup(s, msg.Code)
	if !ok {
		return
	}
	g.leave(s)
	p, err := room.Rejoin(msg.PlayerID, s.out)
	if err != nil {
		g.roomError(s, err)
		return
	}
	s.room, s.playerID = room, p.ID
}

func (g *Gateway) handleRejoinDashboard(s *Session, env Envelope) {
	var msg RoomCodeMsg
	if !g.decode(env, &msg) {
		return
	}
	room, ok := g.lookup(s, msg.Code)
	if !ok {
		return
	}
	g.leave(s)
	if err := room.AttachHost(s.out, encode(MsgRejoinedDashboard, msg)); err != nil {
		g.roomError(s, err)
		return
	}
	s.room, s.host = room, true
}

// handleGetState 只回复请求者，不重发地图
func (g *Gateway) handleGetState(s *Session, env Envelope) {
	var msg RoomCodeMsg
	if len(env.Content) > 0 && !g.decode(env, &msg) {
		return
	}
	room := s.room
	if msg.Code != "" {
		var ok bool
		if room, ok = g.lookup(s, msg.Code); !ok {
			return
		}
	}
	if room == nil {
		g.metrics.IncNotFound()
		g.sendError(s, ErrRoomNotFound.Error())
		return
	}
	s.out.Enqueue(encode(MsgGameUpdate, room.Snapshot()))
}

// handlePlayerEvent 需要玩家身份的事件；无上下文时忽略
func (g *Gateway) handlePlayerEvent(s *Session, env Envelope) {
	room, id := s.room, s.playerID
	if room == nil || id == "" {
		g.metrics.IncIgnored()
		Log.Debugw("player event without player context", "type", env.Type)
		return
	}

	var err error
	switch env.Type {
	case MsgUpdatePosition:
		var u PositionUpdate
		if g.decode(env, &u) {
			err = room.UpdatePosition(id, u)
		}
	case MsgUpdateScore:
		var u ScoreUpdate
		if g.decode(env, &u) {
			_, err = room.UpdateScore(id, u)
		}
	case MsgBulletSpawn:
		err = room.SpawnBullet(id, env.Content)
	case MsgBulletDestroy:
		err = room.DestroyBullet(id, env.Content)
	case MsgPlayerHit:
		var hit HitReport
		if g.decode(env, &hit) {
			err = room.ReportHit(id, hit)
		}
	case MsgPlayerDeath:
		var d DeathReport
		if len(env.Content) > 0 && !g.decode(env, &d) {
			return
		}
		if d.PlayerID == "" {
			d.PlayerID = id
		}
		err = room.ReportDeath(d.PlayerID, d.KillerID)
	case MsgPlayerRespawn:
		_, err = room.Respawn(id)
	case MsgPickupCollect:
		var c PickupCollectMsg
		if g.decode(env, &c) {
			_, err = room.CollectPickup(id, c.ObjectIndex)
		}
	}
	if err != nil {
		g.roomError(s, err)
	}
}

// leave 会话切换房间或断开时注销旧连接
func (g *Gateway) leave(s *Session) {
	if s.room != nil {
		s.room.Disconnect(s.out)
	}
	s.room, s.playerID, s.host = nil, "", false
}

func (g *Gateway) lookup(s *Session, code string) (*Room, bool) {
	room, err := g.rooms.GetRoom(code)
	if err != nil {
		g.metrics.IncNotFound()
		Log.Infow("room lookup failed", "room", code)
		g.sendError(s, err.Error())
		return nil, false
	}
	return room, true
}

func (g *Gateway) decode(env Envelope, v any) bool {
	if err := json.Unmarshal(env.Content, v); err != nil {
		g.metrics.IncMalformed()
		Log.Warnw("malformed message content", "type", env.Type, "error", err)
		return false
	}
	return true
}

// roomError 房间已关闭视同不存在；其余错误只记录
func (g *Gateway) roomError(s *Session, err error) {
	switch {
	case errors.Is(err, ErrRoomClosed), errors.Is(err, ErrRoomNotFound):
		g.metrics.IncNotFound()
		g.sendError(s, ErrRoomNotFound.Error())
	default:
		Log.Warnw("room operation failed", "player", s.playerID, "error", err)
	}
}

func (g *Gateway) sendError(s *Session, message string) {
	s.out.Enqueue(encode(MsgError, ErrorMsg{Message: message}))
}

func (g *Gateway) joinURL(code string) string {
	base := strings.TrimRight(g.cfg.Server.PublicURL, "/")
	return base + "/?room=" + url.QueryEscape(code)
}
