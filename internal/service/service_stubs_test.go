package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/noah-isme/coop-registration-api/internal/models"
	"github.com/noah-isme/coop-registration-api/pkg/database"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type stubTx struct {
	calls int
	err   error
}

func (s *stubTx) WithinTx(ctx context.Context, fn database.TxFunc) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return fn(ctx, nil)
}

type stubSessions struct {
	sessions map[string]*models.Session
}

func newStubSessions(ids ...string) *stubSessions {
	s := &stubSessions{sessions: map[string]*models.Session{}}
	for _, id := range ids {
		s.sessions[id] = &models.Session{ID: id, Name: "Session " + id, ScheduleStatus: models.ScheduleStatusDraft}
	}
	return s
}

func (s *stubSessions) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return nil, sql.ErrNoRows
}

// memoryCache stores JSON payloads the way the Redis repository does.
type memoryCache struct {
	mu      sync.Mutex
	items   map[string][]byte
	getErr    error
	deleteErr error
	deleted   []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	payload, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = payload
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, key := range keys {
		delete(m.items, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}
