// Package otp holds the background maintenance for one-time codes. The
// sweeper runs on its own timer, decoupled from request handling.
package otp

import (
	"context"
	"time"

	"trainhub/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sweep removes expired and consumed one-time codes. Returns the number of
// rows removed.
func Sweep(db *gorm.DB) (int64, error) {
	result := db.
		Where("expires_at < ? OR consumed = ?", time.Now().UTC(), true).
		Delete(&model.OTPCode{})
	return result.RowsAffected, result.Error
}

// RunSweeper sweeps on the given interval until the context is cancelled.
func RunSweeper(ctx context.Context, db *gorm.DB, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("OTP sweeper started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("OTP sweeper stopped")
			return
		case <-ticker.C:
			removed, err := Sweep(db)
			if err != nil {
				logger.Error("OTP sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("OTP codes swept", zap.Int64("removed", removed))
			}
		}
	}
}
