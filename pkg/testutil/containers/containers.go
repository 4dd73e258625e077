//go:build integration

// Package containers starts the backing services identix integrates with
// (Postgres, MySQL, Redis, Redpanda) for integration tests. Each service is
// started once per test binary and shared by the suites in that package.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out lazily started containers.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
	mysql    *MySQLContainer
}

var (
	globalManager *Manager
	initOnce      sync.Once
)

func GetManager() *Manager {
	initOnce.Do(func() {
		globalManager = &Manager{}
	})
	return globalManager
}

// lazy returns *slot, starting it with start on first use. Callers hold no lock.
func lazy[C any](m *Manager, t *testing.T, slot **C, start func(*testing.T) *C) *C {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}

// GetPostgres returns a Postgres with the identix migrations applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return lazy(m, t, &m.postgres, NewPostgresContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return lazy(m, t, &m.kafka, NewKafkaContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return lazy(m, t, &m.redis, NewRedisContainer)
}

func (m *Manager) GetMySQL(t *testing.T) *MySQLContainer {
	t.Helper()
	return lazy(m, t, &m.mysql, NewMySQLContainer)
}
