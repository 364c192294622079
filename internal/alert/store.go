// Package alert implements the per-account notification log: an
// append-only store with read/unread state, a cached unread counter, and a
// WebSocket hub for deployments that prefer push over interval polling.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trainhub/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Field length bounds enforced on create.
const (
	MaxTypeLen    = 50
	MaxTitleLen   = 200
	MaxMessageLen = 500
)

// ErrValidation wraps all create-time validation failures so handlers can
// map them to a 400 without string matching.
var ErrValidation = errors.New("alert validation failed")

// Store persists alerts. Every operation is scoped to one owning account;
// cross-account access control happens in the handler layer via the
// ownership guard, but the store never matches rows outside the given
// account either way.
type Store struct {
	db     *gorm.DB
	cache  *UnreadCache
	hub    *Hub
	logger *zap.Logger
}

// NewStore creates an alert store. cache and hub may be nil; a nil cache
// sends every unread count to the database and a nil hub disables push.
func NewStore(db *gorm.DB, cache *UnreadCache, hub *Hub, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		cache:  cache,
		hub:    hub,
		logger: logger,
	}
}

// Create validates and appends a new unread alert for the account, then
// invalidates the cached unread count and pushes to any live subscribers.
func (s *Store) Create(ctx context.Context, accountID uint, typ, title, message string) (*model.Alert, error) {
	if accountID == 0 {
		return nil, fmt.Errorf("%w: account id is required", ErrValidation)
	}
	if !model.ValidAlertType(typ) || len(typ) > MaxTypeLen {
		return nil, fmt.Errorf("%w: unknown alert type %q", ErrValidation, typ)
	}
	if title == "" || len(title) > MaxTitleLen {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrValidation, MaxTitleLen)
	}
	if len(message) > MaxMessageLen {
		return nil, fmt.Errorf("%w: message must be at most %d characters", ErrValidation, MaxMessageLen)
	}

	alert := model.Alert{
		AccountID: accountID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&alert).Error; err != nil {
		return nil, err
	}

	s.invalidateUnread(ctx, accountID)
	if s.hub != nil {
		s.hub.Publish(accountID, MessageTypeAlert, alert)
	}

	return &alert, nil
}

// ListByAccount returns all alerts for one account, newest first. The
// ordering is a courtesy for the console; the contract only promises "all
// rows for that account".
func (s *Store) ListByAccount(ctx context.Context, accountID uint) ([]model.Alert, error) {
	var alerts []model.Alert
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// MarkRead flips the read flag on one of the account's alerts. Returns
// false when the id does not exist for that account. Repeating the call on
// an already-read alert succeeds; flipping a boolean to true twice is safe.
func (s *Store) MarkRead(ctx context.Context, accountID, alertID uint) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id = ? AND account_id = ?", alertID, accountID).
		Update("read", true)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	s.invalidateUnread(ctx, accountID)
	s.publishUnread(ctx, accountID)
	return true, nil
}

// DeleteOne removes one of the account's alerts. Returns false when the id
// does not exist for that account.
func (s *Store) DeleteOne(ctx context.Context, accountID, alertID uint) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", alertID, accountID).
		Delete(&model.Alert{})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	s.invalidateUnread(ctx, accountID)
	s.publishUnread(ctx, accountID)
	return true, nil
}

// DeleteAllForAccount removes every alert belonging to the account and
// returns the number of rows removed. Other accounts' alerts are untouched.
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&model.Alert{})
	if result.Error != nil {
		return 0, result.Error
	}

	s.invalidateUnread(ctx, accountID)
	s.publishUnread(ctx, accountID)
	return result.RowsAffected, nil
}

// UnreadCount returns the number of unread alerts for the account. The
// cached counter is consulted first; on a miss the database is counted and
// the cache refilled. Cache failures degrade to the database count.
func (s *Store) UnreadCount(ctx context.Context, accountID uint) (int64, error) {
	if s.cache != nil {
		if count, ok := s.cache.Get(ctx, accountID); ok {
			return count, nil
		}
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("account_id = ? AND read = ?", accountID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, accountID, count)
	}
	return count, nil
}

// Owner returns the owning account id of an alert, or false when the alert
// does not exist. Used by admin paths that act on alerts outside their own
// account.
func (s *Store) Owner(ctx context.Context, alertID uint) (uint, bool, error) {
	var alert model.Alert
	err := s.db.WithContext(ctx).Select("id", "account_id").First(&alert, alertID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return alert.AccountID, true, nil
}

func (s *Store) invalidateUnread(ctx context.Context, accountID uint) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, accountID)
	}
}

// publishUnread pushes the fresh unread count to live subscribers after a
// read-state change.
func (s *Store) publishUnread(ctx context.Context, accountID uint) {
	if s.hub == nil {
		return
	}
	count, err := s.UnreadCount(ctx, accountID)
	if err != nil {
		s.logger.Warn("failed to compute unread count for push",
			zap.Uint("account_id", accountID),
			zap.Error(err))
		return
	}
	s.hub.Publish(accountID, MessageTypeUnread, UnreadPayload{Count: count})
}
