package server

import (
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"quizarena/arena"
)

// codeAlphabet 去掉易混淆的 0/O/1/I
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 64

var ErrCodeSpaceExhausted = errors.New("no free room code")

// MapGenerator 每次建房调用一次
type MapGenerator func() *arena.MapData

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg      RoomConfig
	generate MapGenerator
	newCode  func() string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRoomManager 创建房间管理器；CleanupInterval > 0 时启动空闲房间清理
func NewRoomManager(cfg RoomConfig, generate MapGenerator) *RoomManager {
	if generate == nil {
		generate = arena.Generate
	}
	m := &RoomManager{
		rooms:    make(map[string]*Room),
		cfg:      cfg,
		generate: generate,
		stopCh:   make(chan struct{}),
	}
	m.newCode = func() string { return randomCode(cfg.CodeLength) }

	if cfg.CleanupInterval > 0 && cfg.IdleTTL > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}
	return m
}

// CreateRoom 抽取唯一房间码、生成地图、启动后台任务并登记
func (m *RoomManager) CreateRoom() (*Room, error) {
	start := time.Now()
	data := m.generate()
	genTime := time.Since(start)

	m.mu.Lock()
	code := ""
	for i := 0; i < maxCodeAttempts; i++ {
		c := m.newCode()
		if _, exists := m.rooms[c]; !exists {
			code = c
			break
		}
	}
	if code == "" {
		m.mu.Unlock()
		return nil, ErrCodeSpaceExhausted
	}
	room := NewRoom(code, data, m.cfg)
	m.rooms[code] = room
	m.mu.Unlock()

	room.Start()
	Log.Infow("room created",
		"room", code,
		"floor_tiles", data.FloorCount(),
		"objects", len(data.Objects),
		"gen_ms", genTime.Milliseconds())
	return room, nil
}

// GetRoom 按房间码查找（不区分大小写）
func (m *RoomManager) GetRoom(code string) (*Room, error) {
	m.mu.RLock()
	room, ok := m.rooms[strings.ToUpper(strings.TrimSpace(code))]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RemoveRoom 停止房间后台任务并移除
func (m *RoomManager) RemoveRoom(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	m.mu.Lock()
	room, ok := m.rooms[code]
	if ok {
		delete(m.rooms, code)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	room.Close()
	Log.Infow("room removed", "room", code)
	return true
}

// Rooms 按创建时间排序的房间概要
func (m *RoomManager) Rooms() []RoomInfo {
	m.mu.RLock()
	list := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		list = append(list, r)
	}
	m.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(list))
	for _, r := range list {
		infos = append(infos, r.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// Count 房间数
func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Cleanup 移除所有空闲房间，返回移除数量
func (m *RoomManager) Cleanup(now time.Time) int {
	m.mu.RLock()
	var idle []string
	for code, r := range m.rooms {
		if r.Idle(now, m.cfg.IdleTTL) {
			idle = append(idle, code)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, code := range idle {
		if m.RemoveRoom(code) {
			Log.Infow("idle room evicted", "room", code)
			n++
		}
	}
	return n
}

func (m *RoomManager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			m.Cleanup(now)
		case <-m.stopCh:
			return
		}
	}
}

// Stop 停止清理并关闭所有房间
func (m *RoomManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()

		m.mu.Lock()
		rooms := m.rooms
		m.rooms = make(map[string]*Room)
		m.mu.Unlock()
		for _, r := range rooms {
			r.Close()
		}
		Log.Infow("room manager stopped", "rooms", len(rooms))
	})
}

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}
