package store

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/51302890/mcp-mem0/internal/health"
)

// NewStoreHealthChecker monitors a store that can ping its database.
func NewStoreHealthChecker(s health.HealthPinger, log zerolog.Logger, probeTimeout time.Duration) *health.PingChecker {
	return health.NewPingChecker("store", s, log, probeTimeout)
}
