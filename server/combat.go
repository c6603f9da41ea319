package server

import (
	"encoding/json"
	"time"

	"quizarena/arena"
)

// UpdatePosition 覆盖玩家的瞬时字段（客户端来源，不做合理性校验）
func (r *Room) UpdatePosition(playerID string, u PositionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.playerLocked(playerID)
	if err != nil {
		return err
	}
	p.X, p.Y = u.X, u.Y
	p.Animation = u.Animation
	p.Direction = u.Direction
	p.AimRotation = u.AimRotation
	p.Flip = u.Flip
	p.Weapon = u.Weapon
	r.touchLocked()
	return nil
}

// SpawnBullet 原样转发给除发送者以外的所有连接；开火立即解除出生保护
func (r *Room) SpawnBullet(ownerID string, payload json.RawMessage) error {
	r.mu.Lock()
	p, err := r.playerLocked(ownerID)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if p.IsProtected {
		p.clearProtection()
	}
	r.touchLocked()
	r.mu.Unlock()

	r.relay(encodeRaw(MsgBulletSpawn, payload), ownerID)
	return nil
}

// DestroyBullet 原样转发给除发送者以外的所有连接
func (r *Room) DestroyBullet(senderID string, payload json.RawMessage) error {
	if err := r.checkPlayer(senderID); err != nil {
		return err
	}
	r.relay(encodeRaw(MsgBulletDestroy, payload), senderID)
	return nil
}

// ReportHit 命中结果由客户端计算，服务端只做转发（包括发送者本人）
func (r *Room) ReportHit(shooterID string, hit HitReport) error {
	if err := r.checkPlayer(shooterID); err != nil {
		return err
	}
	hit.ShooterID = shooterID
	r.relay(encode(MsgPlayerHit, hit), "")
	return nil
}

// ReportDeath 标记死亡并广播
func (r *Room) ReportDeath(playerID, killerID string) error {
	r.mu.Lock()
	p, err := r.playerLocked(playerID)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	p.IsDead = true
	p.clearProtection()
	r.touchLocked()
	r.mu.Unlock()

	r.relay(encode(MsgPlayerDeath, DeathReport{PlayerID: playerID, KillerID: killerID}), "")
	return nil
}

// Respawn 由服务端选择重生点并开启出生保护，覆盖客户端提交的任何位置
func (r *Room) Respawn(playerID string) (RespawnNotice, error) {
	r.mu.Lock()
	p, err := r.playerLocked(playerID)
	if err != nil {
		r.mu.Unlock()
		return RespawnNotice{}, err
	}
	r.placeAtSpawnLocked(p)
	p.IsDead = false
	p.IsProtected = true
	p.ProtectedUntil = r.now().Add(r.cfg.Protection).UnixMilli()
	r.touchLocked()
	notice := RespawnNotice{
		PlayerID:       p.ID,
		X:              p.X,
		Y:              p.Y,
		IsProtected:    true,
		ProtectedUntil: p.ProtectedUntil,
	}
	r.mu.Unlock()

	r.relay(encode(MsgPlayerRespawn, notice), "")
	return notice, nil
}

// UpdateScore 保存累计计数并重新计算总分
func (r *Room) UpdateScore(playerID string, s ScoreUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.playerLocked(playerID)
	if err != nil {
		return 0, err
	}
	p.CorrectAnswers = s.CorrectAnswers
	p.QuestionsAttempted = s.QuestionsAttempted
	p.Kills = s.Kills
	total := s.CorrectAnswers*r.cfg.CorrectAnswerWeight + s.Kills*r.cfg.KillWeight
	r.scores[playerID] = total
	r.touchLocked()
	return total, nil
}

// CollectPickup 标记道具 / 宝箱已被拾取；重复拾取返回 false
func (r *Room) CollectPickup(playerID string, index int) (bool, error) {
	r.mu.Lock()
	if _, err := r.playerLocked(playerID); err != nil {
		r.mu.Unlock()
		return false, err
	}
	if index < 0 || index >= len(r.arena.Objects) || !r.arena.Objects[index].Kind.Collectible() || r.consumed[index] {
		r.mu.Unlock()
		return false, nil
	}
	r.consumed[index] = true
	kind := r.arena.Objects[index].Kind
	r.touchLocked()
	r.mu.Unlock()

	r.relay(encode(MsgPickupCollected, PickupCollected{ObjectIndex: index, Kind: kind, PlayerID: playerID}), "")
	return true, nil
}

// StartGame 仅主持端可调用，非主持端静默忽略
func (r *Room) StartGame(conn Outbound) bool {
	if !r.isHost(conn) {
		Log.Debugw("start-game from non-host ignored", "room", r.Code)
		return false
	}
	r.mu.Lock()
	if !r.advancePhaseLocked(PhasePlaying) {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	Log.Infow("game started", "room", r.Code)
	r.relay(encode(MsgGameStarted, PhaseChange{Phase: PhasePlaying}), "")
	return true
}

// EndGame 仅主持端可调用；广播最终分数
func (r *Room) EndGame(conn Outbound) bool {
	if !r.isHost(conn) {
		Log.Debugw("end-game from non-host ignored", "room", r.Code)
		return false
	}
	r.mu.Lock()
	if !r.advancePhaseLocked(PhaseEnded) {
		r.mu.Unlock()
		return false
	}
	scores := make(map[string]int, len(r.scores))
	for id, s := range r.scores {
		scores[id] = s
	}
	r.mu.Unlock()

	Log.Infow("game ended", "room", r.Code, "players", len(scores))
	r.relay(encode(MsgGameEnded, PhaseChange{Phase: PhaseEnded, Scores: scores}), "")
	return true
}

// SetTimer 仅主持端可调用，倒计时随每个 Tick 下发
func (r *Room) SetTimer(conn Outbound, seconds int) bool {
	if !r.isHost(conn) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.timer = seconds
	r.touchLocked()
	return true
}

// advancePhaseLocked 只允许前进一步
func (r *Room) advancePhaseLocked(to GamePhase) bool {
	if r.closed || to.rank() != r.phase.rank()+1 {
		return false
	}
	r.phase = to
	r.touchLocked()
	return true
}

func (r *Room) isHost(conn Outbound) bool {
	if conn == nil {
		return false
	}
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	return r.host != nil && r.host == conn
}

func (r *Room) playerLocked(id string) (*Player, error) {
	if r.closed {
		return nil, ErrRoomClosed
	}
	p, ok := r.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

func (r *Room) checkPlayer(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.playerLocked(id)
	return err
}

// relay 交给顺序循环广播
func (r *Room) relay(payload []byte, excludeID string) {
	r.publish(delivery{payload: payload, excludeID: excludeID})
	r.metrics.IncRelayed()
}

// SpawnTile 玩家当前所在格子
func SpawnTile(p Player) arena.Tile {
	return arena.Tile{X: int(p.X) / arena.TileSize, Y: int(p.Y) / arena.TileSize}
}

// protectionExpired 出生保护是否已到期
func protectionExpired(p *Player, now time.Time) bool {
	return p.IsProtected && now.UnixMilli() >= p.ProtectedUntil
}
