package embeddings

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/51302890/mcp-mem0/internal/health"
)

// NewProviderHealthChecker monitors the embedding provider.
func NewProviderHealthChecker(p *Checked, log zerolog.Logger, probeTimeout time.Duration) *health.PingChecker {
	return health.NewPingChecker("embedder", p, log, probeTimeout)
}
