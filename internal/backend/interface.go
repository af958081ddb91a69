// Package backend builds the storage backend, catalog view and event
// publisher selected by configuration.
package backend

import (
	"context"
	"time"

	"bartab/internal/amqp"
	"bartab/internal/ports"
)

// CleanupFunc releases resources acquired by the factory.
type CleanupFunc func() error

// BackendResult bundles everything a process needs to run the ledger.
type BackendResult struct {
	Store ports.Store
	// Catalog is Store, or a cached view of it when a TTL is configured.
	Catalog ports.CatalogReader
	// Publisher is nil when no event bus is configured.
	Publisher ports.EventPublisher
	// AMQP is the underlying client, for consumers. Nil when disabled.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	// Optional event bus
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	CatalogCacheTTL time.Duration
}

type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
