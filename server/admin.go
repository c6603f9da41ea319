package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	qr "github.com/skip2/go-qrcode"
)

// Admin 管理与监控接口
type Admin struct {
	rooms   *RoomManager
	gateway *Gateway
	cfg     Config
}

func NewAdmin(rooms *RoomManager, gateway *Gateway, cfg Config) *Admin {
	return &Admin{rooms: rooms, gateway: gateway, cfg: cfg}
}

// HandleConfig 返回当前生效配置（只读）
// GET /admin/config
func (a *Admin) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg)
}

// HandleRooms 房间列表
// GET /admin/rooms
func (a *Admin) HandleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count": a.rooms.Count(),
		"rooms": a.rooms.Rooms(),
	})
}

// HandleRemoveRoom 强制关闭房间
// DELETE /admin/rooms/{code}
func (a *Admin) HandleRemoveRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if !a.rooms.RemoveRoom(code) {
		http.Error(w, ErrRoomNotFound.Error(), http.StatusNotFound)
		return
	}
	Log.Infow("room removed by admin", "room", code, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleMetrics 输出指定房间或全部房间的运行指标
// GET /metrics?room=ABCDE
func (a *Admin) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("room"); code != "" {
		room, err := a.rooms.GetRoom(code)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"room":    room.Code,
			"info":    room.Info(),
			"metrics": room.Metrics().Snapshot(),
		})
		return
	}

	infos := a.rooms.Rooms()
	var ticks, broadcasts, dropped int64
	for _, info := range infos {
		room, err := a.rooms.GetRoom(info.Code)
		if err != nil {
			continue
		}
		s := room.Metrics().Snapshot()
		ticks += s["tick_count"].(int64)
		broadcasts += s["broadcasts"].(int64)
		dropped += s["outbound_dropped"].(int64)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms":            len(infos),
		"tick_count":       ticks,
		"broadcasts":       broadcasts,
		"outbound_dropped": dropped,
		"gateway":          a.gateway.Metrics().Snapshot(),
	})
}

// HandleQRCode 房间加入地址的二维码（PNG）
// GET /api/rooms/{code}/qr
func (a *Admin) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	room, err := a.rooms.GetRoom(mux.Vars(r)["code"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	png, err := qr.Encode(a.gateway.joinURL(room.Code), qr.Medium, 256)
	if err != nil {
		Log.Errorw("qr encode failed", "room", room.Code, "error", err)
		http.Error(w, "qr encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}

// HandleHealth 存活检查
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Log.Warnw("write json failed", "error", err)
	}
}
