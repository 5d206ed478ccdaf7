package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSecretNotFound 密钥不存在
	ErrSecretNotFound = errors.New("secret not found")
	// ErrLockHeld 运行锁已被其它实例持有
	ErrLockHeld = errors.New("run lock already held")
)

// SecretStore 定义引导密钥（刷新令牌）的存取操作。
type SecretStore interface {
	// GetSecret 读取密钥，不存在时返回 ErrSecretNotFound
	GetSecret(ctx context.Context, key string) (string, error)
	// SetSecret 写入密钥，用于保存轮换后的刷新令牌
	SetSecret(ctx context.Context, key, value string) error
}

// ReleaseFunc 释放已获得的运行锁
type ReleaseFunc func(ctx context.Context) error

// RunLocker 定义分拣运行的互斥锁，保证同一时刻只有一次运行。
type RunLocker interface {
	// AcquireRunLock 获取运行锁，已被持有时返回 ErrLockHeld
	AcquireRunLock(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, error)
}

// Store 聚合密钥存储、运行锁和健康检查。
type Store interface {
	SecretStore
	RunLocker
	Health(ctx context.Context) error
	Close() error
}
