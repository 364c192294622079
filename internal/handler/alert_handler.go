package handler

import (
	"errors"
	"net/http"
	"time"

	"trainhub/internal/alert"
	"trainhub/internal/authz"
	"trainhub/internal/model"
	"trainhub/pkg/database"
	"trainhub/pkg/logger"
	"trainhub/prometheus"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AlertRequest defines the structure for alert creation requests
type AlertRequest struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	AccountID uint   `json:"account_id,omitempty"`
}

var alertUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The console is served from a different origin; the bearer token
		// on the upgrade request is the actual authentication.
		return true
	},
}

// ListAlerts returns the alerts in the caller's scope. Non-admin callers
// are always pinned to their own account regardless of query parameters.
func ListAlerts(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("alert", "list")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	accountID := scopeAccountID(c, caller)

	defer prometheus.TrackDBOperation("query")(time.Now())
	alerts, err := alertStore.ListByAccount(c.Request().Context(), accountID)
	if err != nil {
		log.Error("Failed to retrieve alerts",
			zap.Uint("account_id", accountID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve alerts"})
	}

	return c.JSON(http.StatusOK, echo.Map{"alerts": alerts})
}

// CreateAlert appends a notification. Admins may target any account; other
// callers can only notify themselves.
func CreateAlert(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("alert", "create")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req AlertRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	// Target defaults to the caller
	targetID := req.AccountID
	if targetID == 0 {
		targetID = caller.AccountID
	}

	if !authz.Authorize(caller, targetID).Allowed() {
		log.Warn("Unauthorized alert creation for another account",
			zap.Uint("target_account", targetID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to create alerts for this account"})
	}

	if targetID != caller.AccountID {
		// Admin targeting another account: the target must exist
		var account model.Account
		if result := database.GetDB().First(&account, targetID); result.Error != nil {
			log.Error("Target account not found", zap.Uint("account_id", targetID))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	created, err := alertStore.Create(c.Request().Context(), targetID, req.Type, req.Title, req.Message)
	if err != nil {
		if errors.Is(err, alert.ErrValidation) {
			log.Warn("Alert validation failed", zap.Error(err))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		log.Error("Failed to create alert", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create alert"})
	}

	go updateAlertCount(targetID)

	log.Info("Alert created",
		zap.Uint("alert_id", created.ID),
		zap.Uint("account_id", created.AccountID),
		zap.String("type", created.Type))
	return c.JSON(http.StatusCreated, created)
}

// MarkAlertRead flips the read flag on an alert. Idempotent: repeating the
// call returns the same final state; 404 once the alert is gone.
func MarkAlertRead(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("alert", "mark_read")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid alert ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid alert ID"})
	}

	ownerID, found, err := alertStore.Owner(c.Request().Context(), id)
	if err != nil {
		log.Error("Failed to load alert", zap.Uint("alert_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update alert"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "alert not found"})
	}

	if !authz.Authorize(caller, ownerID).Allowed() {
		log.Warn("Unauthorized alert mark-read",
			zap.Uint("alert_id", id),
			zap.Uint("owner_account", ownerID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to update this alert"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	ok, err := alertStore.MarkRead(c.Request().Context(), ownerID, id)
	if err != nil {
		log.Error("Failed to mark alert read", zap.Uint("alert_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update alert"})
	}
	if !ok {
		// Deleted between the existence check and the update
		return c.JSON(http.StatusNotFound, echo.Map{"error": "alert not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Alert marked as read"})
}

// DeleteAlert removes one alert under the ownership rule
func DeleteAlert(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("alert", "delete")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid alert ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid alert ID"})
	}

	ownerID, found, err := alertStore.Owner(c.Request().Context(), id)
	if err != nil {
		log.Error("Failed to load alert", zap.Uint("alert_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete alert"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "alert not found"})
	}

	if !authz.Authorize(caller, ownerID).Allowed() {
		log.Warn("Unauthorized alert delete",
			zap.Uint("alert_id", id),
			zap.Uint("owner_account", ownerID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to delete this alert"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	ok, err := alertStore.DeleteOne(c.Request().Context(), ownerID, id)
	if err != nil {
		log.Error("Failed to delete alert", zap.Uint("alert_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete alert"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "alert not found"})
	}

	go updateAlertCount(ownerID)

	log.Info("Alert deleted", zap.Uint("alert_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Alert deleted successfully"})
}

// DeleteAllAlerts removes every alert in the caller's scope
func DeleteAllAlerts(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("alert", "delete_all")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	accountID := scopeAccountID(c, caller)

	defer prometheus.TrackDBOperation("delete")(time.Now())
	removed, err := alertStore.DeleteAllForAccount(c.Request().Context(), accountID)
	if err != nil {
		log.Error("Failed to delete alerts",
			zap.Uint("account_id", accountID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete alerts"})
	}

	go updateAlertCount(accountID)

	log.Info("All alerts deleted",
		zap.Uint("account_id", accountID),
		zap.Int64("removed", removed))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Alerts deleted successfully",
		"removed": removed,
	})
}

// UnreadAlertCount returns the unread counter the console badge polls
func UnreadAlertCount(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("alert", "unread_count")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	accountID := scopeAccountID(c, caller)

	count, err := alertStore.UnreadCount(c.Request().Context(), accountID)
	if err != nil {
		log.Error("Failed to count unread alerts",
			zap.Uint("account_id", accountID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count unread alerts"})
	}

	return c.JSON(http.StatusOK, echo.Map{"unread_count": count})
}

// AlertPollInterval tells clients how often to refresh, so the interval
// lives in server configuration instead of a hardcoded console timer
func AlertPollInterval(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"poll_interval_ms": alertPollInterval.Milliseconds(),
	})
}

// StreamAlerts upgrades to a WebSocket subscription for the caller's
// account. Deployments that enable this can drop the interval poll.
func StreamAlerts(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("alert", "stream")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	if alertHub == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "alert streaming is not enabled"})
	}

	conn, err := alertUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	alertHub.Subscribe(caller.AccountID, conn)
	defer func() {
		alertHub.Unsubscribe(caller.AccountID, conn)
		conn.Close()
	}()

	log.Info("Alert subscriber connected", zap.Uint("account_id", caller.AccountID))

	// Hold the connection open; the hub writes, we only watch for close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	log.Info("Alert subscriber disconnected", zap.Uint("account_id", caller.AccountID))
	return nil
}

// updateAlertCount refreshes the stored-alert gauge for an account
func updateAlertCount(accountID uint) {
	var count int64
	database.GetDB().Model(&model.Alert{}).
		Where("account_id = ?", accountID).
		Count(&count)
	prometheus.UpdateAlertsPerAccount(accountID, int(count))
}
