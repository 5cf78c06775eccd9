package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/boltforge/authgate/internal/ratelimit"
	"github.com/boltforge/authgate/internal/session"
)

// RevocationCleaner removes expired entries from the revoked-session table.
// Only the local identity backend has one.
type RevocationCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CacheSweeper evicts expired entries from an in-process cache.
type CacheSweeper interface {
	Sweep() int
}

// CleanupManager periodically sweeps the gateway's in-memory registries and,
// when the local backend is active, the revoked-session table.
type CleanupManager struct {
	sessions    *session.Registry
	limits      *ratelimit.Registry
	cache       CacheSweeper
	revocations RevocationCleaner // nil on the hosted backend

	logger        *slog.Logger
	interval      time.Duration
	clientIdleTTL time.Duration
	limiterIdle   time.Duration
	stopCh        chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions *session.Registry,
	limits *ratelimit.Registry,
	cache CacheSweeper,
	revocations RevocationCleaner,
	logger *slog.Logger,
	interval time.Duration,
	clientIdleTTL time.Duration,
	limiterIdle time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions:      sessions,
		limits:        limits,
		cache:         cache,
		revocations:   revocations,
		logger:        logger,
		interval:      interval,
		clientIdleTTL: clientIdleTTL,
		limiterIdle:   limiterIdle,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	clientsDropped := cm.sessions.PruneIdle(cm.clientIdleTTL)
	limitersDropped := cm.limits.PruneIdle(cm.limiterIdle)
	cacheEvicted := 0
	if cm.cache != nil {
		cacheEvicted = cm.cache.Sweep()
	}

	if clientsDropped > 0 || limitersDropped > 0 || cacheEvicted > 0 {
		cm.logger.Info("registry cleanup completed",
			slog.Int("clients_dropped", clientsDropped),
			slog.Int("limiters_dropped", limitersDropped),
			slog.Int("cache_evicted", cacheEvicted),
		)
	}

	if cm.revocations == nil {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.revocations.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired revocations", slog.Any("error", err))
		return
	}
	if rowsDeleted > 0 {
		cm.logger.Info("expired revocation cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
