package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailtriage/backend/internal/storage"
)

// Store 使用内存保存密钥与运行锁，用于单实例部署和测试。
type Store struct {
	mu      sync.RWMutex
	secrets map[string]string
	locks   map[string]lockEntry
	now     func() time.Time
}

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// NewStore 创建内存存储，可选地预置密钥
func NewStore(seed map[string]string) *Store {
	secrets := make(map[string]string, len(seed))
	for k, v := range seed {
		if v != "" {
			secrets[k] = v
		}
	}
	return &Store{
		secrets: secrets,
		locks:   make(map[string]lockEntry),
		now:     time.Now,
	}
}

// GetSecret 读取密钥
func (s *Store) GetSecret(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.secrets[key]
	if !ok || value == "" {
		return "", storage.ErrSecretNotFound
	}
	return value, nil
}

// SetSecret 写入密钥
func (s *Store) SetSecret(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets[key] = value
	return nil
}

// AcquireRunLock 获取运行锁，过期的锁视为已释放
func (s *Store) AcquireRunLock(_ context.Context, name string, ttl time.Duration) (storage.ReleaseFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.locks[name]; ok && (entry.expiresAt.IsZero() || entry.expiresAt.After(now)) {
		return nil, storage.ErrLockHeld
	}

	token := uuid.NewString()
	expiresAt := now.Add(ttl)
	if ttl <= 0 {
		expiresAt = time.Time{}
	}
	s.locks[name] = lockEntry{token: token, expiresAt: expiresAt}

	return func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if entry, ok := s.locks[name]; ok && entry.token == token {
			delete(s.locks, name)
		}
		return nil
	}, nil
}

// Health 内存存储始终可用
func (s *Store) Health(context.Context) error {
	return nil
}

// Close 无需释放资源
func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
