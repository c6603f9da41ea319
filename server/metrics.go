package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
	Broadcasts        int64 // 循环完成的广播次数
	Relayed           int64 // 转发的战斗 / 阶段事件数
	OutboundDropped   int64 // 因连接队列满被丢弃的消息数
	SnapshotsDropped  int64 // 因房间队列满被丢弃的快照数
	ProtectionExpired int64 // Tick 清除的到期保护数
}

func (m *RoomMetrics) IncBroadcasts()       { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RoomMetrics) IncRelayed()          { atomic.AddInt64(&m.Relayed, 1) }
func (m *RoomMetrics) IncOutboundDropped()  { atomic.AddInt64(&m.OutboundDropped, 1) }
func (m *RoomMetrics) IncSnapshotsDropped() { atomic.AddInt64(&m.SnapshotsDropped, 1) }
func (m *RoomMetrics) AddProtectionExpired(n int64) {
	atomic.AddInt64(&m.ProtectionExpired, n)
}
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":         tick,
		"avg_tick_ms":        avgMs,
		"broadcasts":         atomic.LoadInt64(&m.Broadcasts),
		"relayed":            atomic.LoadInt64(&m.Relayed),
		"outbound_dropped":   atomic.LoadInt64(&m.OutboundDropped),
		"snapshots_dropped":  atomic.LoadInt64(&m.SnapshotsDropped),
		"protection_expired": atomic.LoadInt64(&m.ProtectionExpired),
	}
}

// GatewayMetrics 消息分发层指标
type GatewayMetrics struct {
	Messages   int64 // 收到的消息数
	Malformed  int64 // 无法解析的消息数
	Unknown    int64 // 未知类型
	NotFound   int64 // 房间不存在
	Ignored    int64 // 无会话上下文而忽略
	Connection int64 // 当前连接数
}

func (m *GatewayMetrics) IncMessages()  { atomic.AddInt64(&m.Messages, 1) }
func (m *GatewayMetrics) IncMalformed() { atomic.AddInt64(&m.Malformed, 1) }
func (m *GatewayMetrics) IncUnknown()   { atomic.AddInt64(&m.Unknown, 1) }
func (m *GatewayMetrics) IncNotFound()  { atomic.AddInt64(&m.NotFound, 1) }
func (m *GatewayMetrics) IncIgnored()   { atomic.AddInt64(&m.Ignored, 1) }
func (m *GatewayMetrics) AddConnections(n int64) {
	atomic.AddInt64(&m.Connection, n)
}

// Snapshot 返回只读副本
func (m *GatewayMetrics) Snapshot() map[string]any {
	return map[string]any{
		"messages":    atomic.LoadInt64(&m.Messages),
		"malformed":   atomic.LoadInt64(&m.Malformed),
		"unknown":     atomic.LoadInt64(&m.Unknown),
		"not_found":   atomic.LoadInt64(&m.NotFound),
		"ignored":     atomic.LoadInt64(&m.Ignored),
		"connections": atomic.LoadInt64(&m.Connection),
	}
}
