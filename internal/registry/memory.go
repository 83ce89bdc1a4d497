// Package registry provides the room stores behind the game.Registry
// interface: an in-process map for single-node deployments and a redis
// store for shared ones. Both serialize mutations per room and expire
// idle rooms after the configured TTL.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vcporto/sketchdash/internal/game"
)

const sweepInterval = 5 * time.Minute

// Memory keeps rooms as JSON snapshots in a map, guarded by one mutex
// per room. Update clones the snapshot, applies fn to the clone and
// swaps it in only on success, so a failed transition never leaves a
// half-mutated room behind.
type Memory struct {
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]*memoryEntry

	stop chan struct{}
	once sync.Once
}

type memoryEntry struct {
	mu   sync.Mutex
	raw  []byte
	seen time.Time
}

func NewMemory(ttl time.Duration, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Memory{
		ttl:    ttl,
		logger: logger,
		rooms:  make(map[string]*memoryEntry),
		stop:   make(chan struct{}),
	}
	if ttl > 0 {
		go m.sweep()
	}
	return m
}

func (m *Memory) Create(ctx context.Context, room *game.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.Code]; ok {
		return game.ErrRoomExists
	}
	m.rooms[room.Code] = &memoryEntry{raw: raw, seen: time.Now()}
	return nil
}

func (m *Memory) Get(ctx context.Context, code string) (*game.Room, error) {
	m.mu.RLock()
	e, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return nil, game.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return decodeRoom(e.raw)
}

func (m *Memory) Update(ctx context.Context, code string, fn func(*game.Room) error) (*game.Room, error) {
	m.mu.RLock()
	e, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return nil, game.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	room, err := decodeRoom(e.raw)
	if err != nil {
		return nil, err
	}
	if err := fn(room); err != nil {
		return nil, err
	}
	room.LastUpdate = time.Now()

	raw, err := json.Marshal(room)
	if err != nil {
		return nil, err
	}
	e.raw = raw
	e.seen = room.LastUpdate
	return room, nil
}

func (m *Memory) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[code]; !ok {
		return game.ErrRoomNotFound
	}
	delete(m.rooms, code)
	return nil
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) sweep() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-t.C:
			m.expire(now)
		}
	}
}

func (m *Memory) expire(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, e := range m.rooms {
		if now.Sub(e.seen) > m.ttl {
			delete(m.rooms, code)
			m.logger.Info("room_expire", zap.String("code", code))
		}
	}
}

func decodeRoom(raw []byte) (*game.Room, error) {
	var room game.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, err
	}
	return &room, nil
}
