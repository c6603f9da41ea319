package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *RoomManager, *Gateway) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Room.CleanupInterval = 0
	cfg.Server.StaticDir = ""
	rooms := NewRoomManager(cfg.Room, testMap)
	gw := NewGateway(rooms, cfg)
	srv := httptest.NewServer(NewRouter(cfg, rooms, gw))
	t.Cleanup(func() {
		srv.Close()
		rooms.Stop()
	})
	return srv, rooms, gw
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, typ string, content any) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, msg(t, typ, content)))
}

// readUntil 读取直到出现指定类型的消息，跳过 Tick 快照等其他消息
func readUntil(t *testing.T, ws *websocket.Conn, typ string, v any) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type != typ {
			continue
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(env.Content, v))
		}
		return
	}
}

func TestWS_HostAndPlayerSession(t *testing.T) {
	srv, rooms, gw := newTestServer(t)

	host := dial(t, srv)
	send(t, host, MsgCreateRoom, nil)
	var created RoomCreated
	readUntil(t, host, MsgRoomCreated, &created)
	require.Len(t, created.Code, 5)

	player := dial(t, srv)
	send(t, player, MsgJoinRoom, JoinRoomMsg{Code: created.Code, Name: "Ava"})
	var joined JoinedRoom
	readUntil(t, player, MsgJoinedRoom, &joined)
	assert.Equal(t, "Ava", joined.Player.Name)

	var init InitialState
	readUntil(t, player, MsgInitialState, &init)
	assert.Equal(t, created.Code, init.Code)
	assert.Contains(t, init.State.Players, joined.Player.ID)

	// 60Hz 快照会推送到所有连接
	var snap StateSnapshot
	readUntil(t, player, MsgGameUpdate, &snap)
	assert.Contains(t, snap.Players, joined.Player.ID)

	send(t, host, MsgStartGame, nil)
	var started PhaseChange
	readUntil(t, player, MsgGameStarted, &started)
	assert.Equal(t, PhasePlaying, started.Phase)

	room, err := rooms.GetRoom(created.Code)
	require.NoError(t, err)
	assert.Equal(t, 2, room.ActiveConnections())
	assert.EqualValues(t, 2, gw.Metrics().Snapshot()["connections"])

	// 玩家断开：连接注销，记录保留
	require.NoError(t, player.Close())
	require.Eventually(t, func() bool { return room.ActiveConnections() == 1 }, 3*time.Second, 10*time.Millisecond)
	p, ok := room.Player(joined.Player.ID)
	require.True(t, ok)
	assert.Equal(t, StateDisconnected, p.State)
}

func TestWS_UnknownRoomError(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ws := dial(t, srv)

	send(t, ws, MsgJoinRoom, JoinRoomMsg{Code: "QQQQQ", Name: "Ava"})
	var e ErrorMsg
	readUntil(t, ws, MsgError, &e)
	assert.Equal(t, "room not found", e.Message)
}

func TestClientConn_EnqueueAfterClose(t *testing.T) {
	c := &ClientConn{send: make(chan []byte, 1)}

	assert.True(t, c.Enqueue([]byte("a")))
	assert.False(t, c.Enqueue([]byte("b")), "full queue drops")

	c.Close()
	c.Close()
	assert.False(t, c.Enqueue([]byte("c")))
}
