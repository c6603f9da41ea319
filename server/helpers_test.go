package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quizarena/arena"
)

// fakeConn 记录收到的消息；full 为 true 时模拟队列已满
type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	full   bool
}

func (c *fakeConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	c.msgs = append(c.msgs, b)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) envelopes() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, 0, len(c.msgs))
	for _, b := range c.msgs {
		var env Envelope
		if json.Unmarshal(b, &env) == nil {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) types() []string {
	var ts []string
	for _, env := range c.envelopes() {
		ts = append(ts, env.Type)
	}
	return ts
}

func (c *fakeConn) count(typ string) int {
	n := 0
	for _, env := range c.envelopes() {
		if env.Type == typ {
			n++
		}
	}
	return n
}

// last 最近一条指定类型的消息，content 解码到 v
func (c *fakeConn) last(t *testing.T, typ string, v any) bool {
	t.Helper()
	envs := c.envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == typ {
			if v != nil {
				require.NoError(t, json.Unmarshal(envs[i].Content, v))
			}
			return true
		}
	}
	return false
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

// testMap 手工地图：(4,4)-(19,19) 为地面，(10,10) 掩体，(12,12) 宝箱，(14,14) 弹药
func testMap() *arena.MapData {
	m := &arena.MapData{Width: arena.MapSize, Height: arena.MapSize}
	for y := 4; y < 20; y++ {
		for x := 4; x < 20; x++ {
			m.Terrain[y][x] = arena.TerrainFloor + (x+y)%arena.TerrainFloorMax
		}
	}
	m.Objects = []arena.MapObject{
		{Kind: arena.KindCover, X: 10, Y: 10},
		{Kind: arena.KindChest, X: 12, Y: 12},
		{Kind: arena.KindAmmo, X: 14, Y: 14},
	}
	return m
}

const (
	coverIndex = 0
	chestIndex = 1
	ammoIndex  = 2
)

// newTestRoom 只启动顺序循环，Tick 由测试手动触发
func newTestRoom(t *testing.T, mutate ...func(*RoomConfig)) (*Room, *fakeClock) {
	t.Helper()
	cfg := DefaultRoomConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	r := NewRoom("TEST1", testMap(), cfg)
	clock := newFakeClock()
	r.now = clock.Now
	r.updatedAt = clock.Now()
	r.startLoop()
	t.Cleanup(r.Close)
	return r, clock
}

// flush 等待此前入队的广播全部处理完
func flush(t *testing.T, r *Room) {
	t.Helper()
	marker := &fakeConn{}
	r.publish(delivery{payload: []byte(`{"type":"flush"}`), to: marker})
	require.Eventually(t, func() bool { return len(marker.envelopes()) > 0 },
		time.Second, time.Millisecond)
}

// joinPlayer 加入并清空回执消息
func joinPlayer(t *testing.T, r *Room, name string) (Player, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	p, err := r.Join(name, conn)
	require.NoError(t, err)
	conn.reset()
	return p, conn
}

func attachHost(t *testing.T, r *Room) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	require.NoError(t, r.AttachHost(conn, encode(MsgRoomCreated, RoomCreated{Code: r.Code})))
	conn.reset()
	return conn
}
