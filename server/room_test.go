package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizarena/arena"
)

func TestRoom_JoinSendsAckAndInitialState(t *testing.T) {
	r, _ := newTestRoom(t)
	conn := &fakeConn{}

	p, err := r.Join("Ava", conn)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Ava", p.Name)
	assert.Equal(t, StateActive, p.State)
	assert.NotEmpty(t, p.Color)

	// 回执在 Join 返回前已投递，且只发送一次地图
	assert.Equal(t, []string{MsgJoinedRoom, MsgInitialState}, conn.types())

	var joined JoinedRoom
	require.True(t, conn.last(t, MsgJoinedRoom, &joined))
	assert.Equal(t, "TEST1", joined.Code)
	assert.Equal(t, p.ID, joined.Player.ID)

	var init InitialState
	require.True(t, conn.last(t, MsgInitialState, &init))
	require.NotNil(t, init.Map)
	assert.Len(t, init.Map.Objects, 3)
	assert.Contains(t, init.State.Players, p.ID)
	assert.Equal(t, PhaseWaiting, init.State.GamePhase)
	assert.Equal(t, 0, init.State.Score[p.ID])
	assert.Equal(t, 1, r.ActiveConnections())
}

func TestRoom_SpawnIsWalkableAndUnblocked(t *testing.T) {
	r, _ := newTestRoom(t)
	m := r.Map()
	for i := 0; i < 50; i++ {
		p, _ := joinPlayer(t, r, "p")
		tile := SpawnTile(p)
		assert.True(t, m.IsWalkable(tile.X, tile.Y), "spawn %v not walkable", tile)
		assert.False(t, m.BlockedAt(tile.X, tile.Y), "spawn %v blocked", tile)
		cx, cy := arena.TileCenter(tile)
		assert.Equal(t, cx, p.X)
		assert.Equal(t, cy, p.Y)
	}
}

func TestRoom_ColorsFollowJoinOrder(t *testing.T) {
	r, _ := newTestRoom(t)
	a, _ := joinPlayer(t, r, "a")
	b, _ := joinPlayer(t, r, "b")
	assert.Equal(t, playerColors[0], a.Color)
	assert.Equal(t, playerColors[1], b.Color)
}

func TestRoom_DisconnectRetainsRecord(t *testing.T) {
	r, _ := newTestRoom(t)
	p, conn := joinPlayer(t, r, "Ava")

	r.Disconnect(conn)

	got, ok := r.Player(p.ID)
	require.True(t, ok)
	assert.Equal(t, StateDisconnected, got.State)
	assert.Equal(t, 0, r.ActiveConnections())
	assert.Equal(t, 1, r.PlayerCount())
}

func TestRoom_RejoinKeepsIdentityAndStats(t *testing.T) {
	r, _ := newTestRoom(t)
	p, conn := joinPlayer(t, r, "Ava")
	_, err := r.UpdateScore(p.ID, ScoreUpdate{CorrectAnswers: 2, QuestionsAttempted: 3, Kills: 1})
	require.NoError(t, err)
	_, err = r.Respawn(p.ID)
	require.NoError(t, err)
	r.Disconnect(conn)

	conn2 := &fakeConn{}
	back, err := r.Rejoin(p.ID, conn2)
	require.NoError(t, err)

	assert.Equal(t, p.ID, back.ID)
	assert.Equal(t, "Ava", back.Name)
	assert.Equal(t, p.Color, back.Color)
	assert.Equal(t, 2, back.CorrectAnswers)
	assert.Equal(t, 1, back.Kills)
	assert.Equal(t, StateActive, back.State)
	// 重连总是清除保护
	assert.False(t, back.IsProtected)
	assert.Zero(t, back.ProtectedUntil)

	tile := SpawnTile(back)
	assert.True(t, r.Map().IsWalkable(tile.X, tile.Y))
	assert.Equal(t, []string{MsgRejoinedRoom, MsgInitialState}, conn2.types())
	assert.Equal(t, 1, r.PlayerCount())
}

func TestRoom_RejoinUnknownCreatesPlayer(t *testing.T) {
	r, _ := newTestRoom(t)
	_, _ = joinPlayer(t, r, "Ava")

	conn := &fakeConn{}
	p, err := r.Rejoin("ghost-id", conn)
	require.NoError(t, err)
	assert.Equal(t, "ghost-id", p.ID)
	assert.Equal(t, "Player 2", p.Name)
	assert.Equal(t, 2, r.PlayerCount())

	p2, err := r.Rejoin("", &fakeConn{})
	require.NoError(t, err)
	assert.NotEmpty(t, p2.ID)
}

func TestRoom_DuplicateConnectionReplacesOld(t *testing.T) {
	r, _ := newTestRoom(t)
	p, old := joinPlayer(t, r, "Ava")

	fresh := &fakeConn{}
	_, err := r.Rejoin(p.ID, fresh)
	require.NoError(t, err)

	assert.True(t, old.isClosed())
	assert.False(t, fresh.isClosed())
	assert.Equal(t, 1, r.ActiveConnections())

	// 旧连接迟到的断开不影响新连接
	r.Disconnect(old)
	got, _ := r.Player(p.ID)
	assert.Equal(t, StateActive, got.State)
	assert.Equal(t, 1, r.ActiveConnections())
}

func TestRoom_ClosedRoomRejectsJoin(t *testing.T) {
	r, _ := newTestRoom(t)
	_, conn := joinPlayer(t, r, "Ava")
	r.Close()

	_, err := r.Join("Bob", &fakeConn{})
	assert.ErrorIs(t, err, ErrRoomClosed)
	_, err = r.Rejoin("x", &fakeConn{})
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.ErrorIs(t, r.AttachHost(&fakeConn{}, nil), ErrRoomClosed)
	assert.True(t, conn.isClosed())
	assert.Equal(t, 0, r.ActiveConnections())

	// 重复关闭与关闭后的断开都是安全的
	r.Close()
	r.Disconnect(conn)
}

func TestRoom_InitialStateMarksConsumedObjects(t *testing.T) {
	r, _ := newTestRoom(t)
	p, _ := joinPlayer(t, r, "Ava")
	ok, err := r.CollectPickup(p.ID, chestIndex)
	require.NoError(t, err)
	require.True(t, ok)

	conn := &fakeConn{}
	_, err = r.Join("Bob", conn)
	require.NoError(t, err)
	var init InitialState
	require.True(t, conn.last(t, MsgInitialState, &init))
	assert.True(t, init.Map.Objects[chestIndex].IsConsumed)
	assert.False(t, init.Map.Objects[ammoIndex].IsConsumed)
	assert.Equal(t, []int{chestIndex}, init.State.Consumed)

	// 房间地图本身保持不变
	assert.False(t, r.Map().Objects[chestIndex].IsConsumed)
}

func TestRoom_Idle(t *testing.T) {
	r, clock := newTestRoom(t)
	ttl := r.cfg.IdleTTL

	assert.False(t, r.Idle(clock.Now(), ttl))
	assert.True(t, r.Idle(clock.Now().Add(ttl), ttl))

	_, conn := joinPlayer(t, r, "Ava")
	assert.False(t, r.Idle(clock.Now().Add(2*ttl), ttl), "connected room is never idle")

	r.Disconnect(conn)
	assert.True(t, r.Idle(clock.Now().Add(ttl), ttl))
}

func TestRoom_Info(t *testing.T) {
	r, _ := newTestRoom(t)
	_, _ = joinPlayer(t, r, "Ava")
	_ = attachHost(t, r)

	info := r.Info()
	assert.Equal(t, "TEST1", info.Code)
	assert.Equal(t, PhaseWaiting, info.Phase)
	assert.Equal(t, 1, info.Players)
	assert.Equal(t, 2, info.ActiveConnections)
}
