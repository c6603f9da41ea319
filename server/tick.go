package server

import (
	"sort"
	"time"
)

// StateSnapshot 每个 Tick 下发的完整状态（覆盖式，不是增量），不含地图
type StateSnapshot struct {
	Players   map[string]Player `json:"players"`
	GamePhase GamePhase         `json:"gamePhase"`
	Timer     int               `json:"timer"`
	Score     map[string]int    `json:"score"`
	Consumed  []int             `json:"consumed"`
}

// startTicker 启动房间的 Tick 循环：清理过期保护 -> 快照 -> 广播
func (r *Room) startTicker() {
	r.tickOnce.Do(func() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ticker := time.NewTicker(r.cfg.TickInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.tick()
				case <-r.done:
					return
				}
			}
		}()
	})
}

func (r *Room) tick() {
	start := time.Now()
	r.expireProtection(r.now())
	r.publishSnapshot(encode(MsgGameUpdate, r.Snapshot()))
	r.metrics.AddTick(time.Since(start).Nanoseconds())
}

// expireProtection 写锁下清除 now >= 到期时间的出生保护
func (r *Room) expireProtection(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.players {
		if protectionExpired(p, now) {
			p.clearProtection()
			n++
		}
	}
	if n > 0 {
		r.metrics.AddProtectionExpired(int64(n))
	}
	return n
}

// Snapshot 读锁下复制当前状态
func (r *Room) Snapshot() StateSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() StateSnapshot {
	s := StateSnapshot{
		Players:   make(map[string]Player, len(r.players)),
		GamePhase: r.phase,
		Timer:     r.timer,
		Score:     make(map[string]int, len(r.scores)),
		Consumed:  make([]int, 0, len(r.consumed)),
	}
	for id, p := range r.players {
		s.Players[id] = *p
	}
	for id, v := range r.scores {
		s.Score[id] = v
	}
	for idx := range r.consumed {
		s.Consumed = append(s.Consumed, idx)
	}
	sort.Ints(s.Consumed)
	return s
}
