package backend

import (
	"context"
	"time"

	"tracker/internal/cache"
	"tracker/internal/core"
	"tracker/internal/services"
	"tracker/internal/source"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result is the assembled loader chain plus the optional export sinks.
type Result struct {
	Loader   source.Loader
	Location string
	// Cache is nil when caching is disabled.
	Cache *cache.LRUCache[core.Workbook]
	// Audit and Publisher are nil interfaces when disabled.
	Audit     services.AuditStore
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type     BackendType
	Location string

	MaxBytes    int64
	Retries     int
	LoadTimeout time.Duration
	CacheTTL    time.Duration

	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	AuditDBPath  string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType names a workbook source.
type BackendType string

const (
	LocalBackend  BackendType = "local"
	RemoteBackend BackendType = "remote"
	GoogleBackend BackendType = "google"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case LocalBackend, RemoteBackend, GoogleBackend:
		return true
	default:
		return false
	}
}
