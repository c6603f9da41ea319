package server

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter 组装全部 HTTP 路由：WS 接入、管理接口、二维码与静态资源
func NewRouter(cfg Config, rooms *RoomManager, gateway *Gateway) http.Handler {
	admin := NewAdmin(rooms, gateway, cfg)

	router := mux.NewRouter()
	router.HandleFunc("/ws", gateway.HandleWS).Methods(http.MethodGet)
	router.HandleFunc("/healthz", HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/metrics", admin.HandleMetrics).Methods(http.MethodGet)

	router.HandleFunc("/admin/config", admin.HandleConfig).Methods(http.MethodGet)
	router.HandleFunc("/admin/rooms", admin.HandleRooms).Methods(http.MethodGet)
	router.HandleFunc("/admin/rooms/{code:[A-Za-z0-9]+}", admin.HandleRemoveRoom).Methods(http.MethodDelete)
	router.HandleFunc("/api/rooms/{code:[A-Za-z0-9]+}/qr", admin.HandleQRCode).Methods(http.MethodGet)

	// 前后端分离：其余路径映射到静态资源目录
	if cfg.Server.StaticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	var h http.Handler = router
	if cfg.Server.AccessLog {
		h = handlers.CombinedLoggingHandler(zap.NewStdLog(Log.Desugar()).Writer(), h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(h)
}

// recoveryLogger 把 handler panic 写进 zap
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...any) {
	Log.Errorw("http handler panic", "detail", v)
}
