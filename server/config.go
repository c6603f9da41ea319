package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quizarena/arena"
)

// Config 服务整体配置（config.yaml）
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Room   RoomConfig   `yaml:"room" json:"room"`
	Arena  arena.Config `yaml:"arena" json:"arena"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	PublicURL    string        `yaml:"public_url" json:"publicUrl"` // 二维码中的加入地址前缀
	StaticDir    string        `yaml:"static_dir" json:"staticDir"`
	AccessLog    bool          `yaml:"access_log" json:"accessLog"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"readTimeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"writeTimeout"`
}

// LogConfig 日志配置（zap + lumberjack）
type LogConfig struct {
	File       string `yaml:"file" json:"file"`
	Level      string `yaml:"level" json:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"maxSizeMb"`
	MaxBackups int    `yaml:"max_backups" json:"maxBackups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"maxAgeDays"`
	Console    bool   `yaml:"console" json:"console"`
}

// RoomConfig 房间运行参数
type RoomConfig struct {
	TickRate            int           `yaml:"tick_rate" json:"tickRate"`
	Protection          time.Duration `yaml:"protection" json:"protection"`
	OutboundQueue       int           `yaml:"outbound_queue" json:"outboundQueue"`
	EventQueue          int           `yaml:"event_queue" json:"eventQueue"`
	RegisterQueue       int           `yaml:"register_queue" json:"registerQueue"`
	IdleTTL             time.Duration `yaml:"idle_ttl" json:"idleTtl"`
	CleanupInterval     time.Duration `yaml:"cleanup_interval" json:"cleanupInterval"`
	CodeLength          int           `yaml:"code_length" json:"codeLength"`
	CorrectAnswerWeight int           `yaml:"correct_answer_weight" json:"correctAnswerWeight"`
	KillWeight          int           `yaml:"kill_weight" json:"killWeight"`
}

// TickInterval 由 TickRate 推导出的 Tick 间隔
func (c RoomConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			PublicURL:    "http://localhost:8080",
			StaticDir:    "web",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			File:       "app.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Room:  DefaultRoomConfig(),
		Arena: arena.DefaultConfig(),
	}
}

// DefaultRoomConfig 房间默认参数：60 TPS，出生保护 3 秒
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		TickRate:            60,
		Protection:          3 * time.Second,
		OutboundQueue:       64,
		EventQueue:          256,
		RegisterQueue:       32,
		IdleTTL:             10 * time.Minute,
		CleanupInterval:     time.Minute,
		CodeLength:          5,
		CorrectAnswerWeight: 10,
		KillWeight:          5,
	}
}

// LoadConfig 读取 YAML 配置；文件不存在时返回默认配置
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 校验关键参数
func (c Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("server.addr is required")
	case c.Room.TickRate <= 0:
		return fmt.Errorf("room.tick_rate must be positive, got %d", c.Room.TickRate)
	case c.Room.OutboundQueue <= 0 || c.Room.EventQueue <= 0 || c.Room.RegisterQueue <= 0:
		return errors.New("room queue sizes must be positive")
	case c.Room.CodeLength < 3:
		return fmt.Errorf("room.code_length must be at least 3, got %d", c.Room.CodeLength)
	case c.Room.Protection < 0:
		return errors.New("room.protection must not be negative")
	}
	return nil
}
