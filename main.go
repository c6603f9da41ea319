package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizarena/arena"
	"quizarena/server"
)

// QuizArena 入口：加载配置，启动 HTTP + WebSocket 服务与房间管理器
func main() {
	var (
		configPath string
		addr       string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to YAML config file")
	flag.StringVar(&addr, "addr", "", "server listen address, overrides server.addr, e.g. :8080")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer server.SyncLogger()

	rooms := server.NewRoomManager(cfg.Room, func() *arena.MapData {
		return arena.New(cfg.Arena, nil).Generate()
	})
	gateway := server.NewGateway(rooms, cfg)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.NewRouter(cfg, rooms, gateway),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		server.Log.Infof("QuizArena listening on %s; open %s/", cfg.Server.Addr, cfg.Server.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnw("http shutdown", "error", err)
	}
	rooms.Stop()
}
