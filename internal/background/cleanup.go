package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredSweeper removes rows whose expiry has passed and reports how many.
type ExpiredSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically removes expired verification codes and refresh
// sessions from the database. Expiry is enforced lazily on every lookup; this
// just keeps the tables from growing without bound.
type CleanupManager struct {
	verificationTokens ExpiredSweeper
	refreshTokens      ExpiredSweeper
	logger             *slog.Logger
	interval           time.Duration
	stopCh             chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	verificationTokens ExpiredSweeper,
	refreshTokens ExpiredSweeper,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		verificationTokens: verificationTokens,
		refreshTokens:      refreshTokens,
		logger:             logger,
		interval:           interval,
		stopCh:             make(chan struct{}),
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

// runCleanup removes expired rows from both token tables
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	verificationRows, err := cm.verificationTokens.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired verification tokens", slog.Any("error", err))
	}

	refreshRows, err := cm.refreshTokens.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired refresh sessions", slog.Any("error", err))
	}

	if verificationRows > 0 || refreshRows > 0 {
		cm.logger.Info("expired token cleanup completed",
			slog.Int64("verification_rows", verificationRows),
			slog.Int64("refresh_rows", refreshRows))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
