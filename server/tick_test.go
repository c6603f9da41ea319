package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTick_ProtectionExpiresExactlyAtDeadline(t *testing.T) {
	r, clock := newTestRoom(t)
	p, _ := joinPlayer(t, r, "A")
	_, err := r.Respawn(p.ID)
	require.NoError(t, err)

	clock.Advance(3*time.Second - time.Millisecond)
	r.tick()
	got, _ := r.Player(p.ID)
	assert.True(t, got.IsProtected, "still protected 1ms before deadline")

	clock.Advance(time.Millisecond)
	r.tick()
	got, _ = r.Player(p.ID)
	assert.False(t, got.IsProtected)
	assert.Zero(t, got.ProtectedUntil)
	assert.EqualValues(t, 1, r.Metrics().Snapshot()["protection_expired"])
}

func TestTick_ExpireProtectionCountsOnlyDue(t *testing.T) {
	r, clock := newTestRoom(t)
	a, _ := joinPlayer(t, r, "A")
	b, _ := joinPlayer(t, r, "B")
	_, _ = joinPlayer(t, r, "C")

	_, err := r.Respawn(a.ID)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = r.Respawn(b.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, r.expireProtection(clock.Now()))
	assert.Equal(t, 1, r.expireProtection(clock.Now().Add(2*time.Second)))
	assert.Equal(t, 1, r.expireProtection(clock.Now().Add(3*time.Second)))
	assert.Equal(t, 0, r.expireProtection(clock.Now().Add(time.Hour)))
}

func TestTick_BroadcastsSnapshotToEveryone(t *testing.T) {
	r, _ := newTestRoom(t)
	host := attachHost(t, r)
	a, connA := joinPlayer(t, r, "A")
	_, connB := joinPlayer(t, r, "B")
	require.NoError(t, r.UpdatePosition(a.ID, PositionUpdate{X: 100, Y: 200}))

	r.tick()
	flush(t, r)

	for _, c := range []*fakeConn{host, connA, connB} {
		var snap StateSnapshot
		require.True(t, c.last(t, MsgGameUpdate, &snap))
		assert.Len(t, snap.Players, 2)
		assert.Equal(t, 100.0, snap.Players[a.ID].X)
		assert.Equal(t, PhaseWaiting, snap.GamePhase)
		// 快照不含地图
		assert.Equal(t, 0, c.count(MsgInitialState))
	}
	assert.EqualValues(t, 1, r.Metrics().Snapshot()["tick_count"])
}

func TestTick_SnapshotDroppedWhenQueueFull(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.EventQueue = 1
	// 不启动循环，队列不会被消费
	r := NewRoom("FULL1", testMap(), cfg)
	t.Cleanup(r.Close)

	assert.True(t, r.publishSnapshot([]byte(`{"type":"game-update"}`)))
	assert.False(t, r.publishSnapshot([]byte(`{"type":"game-update"}`)))
	assert.False(t, r.publishSnapshot(nil))
	assert.EqualValues(t, 1, r.Metrics().Snapshot()["snapshots_dropped"])
}

func TestTick_SlowConnectionDoesNotBlockOthers(t *testing.T) {
	r, _ := newTestRoom(t)
	_, slow := joinPlayer(t, r, "slow")
	_, fast := joinPlayer(t, r, "fast")
	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	for i := 0; i < 5; i++ {
		r.tick()
	}
	flush(t, r)

	assert.Equal(t, 5, fast.count(MsgGameUpdate))
	assert.Equal(t, 0, slow.count(MsgGameUpdate))
	assert.EqualValues(t, 5, r.Metrics().Snapshot()["outbound_dropped"])
}

func TestTick_TickerStopsOnClose(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.TickRate = 200
	r := NewRoom("LIVE1", testMap(), cfg)
	conn := &fakeConn{}
	r.Start()
	_, err := r.Join("A", conn)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return conn.count(MsgGameUpdate) >= 3 },
		2*time.Second, 5*time.Millisecond)
	r.Close()
	assert.True(t, conn.isClosed())
}
