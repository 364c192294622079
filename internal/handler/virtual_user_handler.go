package handler

import (
	"net/http"
	"time"

	"trainhub/internal/authz"
	"trainhub/internal/model"
	"trainhub/pkg/database"
	"trainhub/pkg/logger"
	"trainhub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// VirtualUserRequest defines the structure for virtual user requests
type VirtualUserRequest struct {
	Name     string `json:"name"`
	AvatarID string `json:"avatar_id"`
	Active   bool   `json:"active"`
}

// CreateVirtualUser adds a virtual trainee to the caller's account, subject
// to the account's capacity pool
func CreateVirtualUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("virtual_user", "create")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req VirtualUserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	var account model.Account
	if result := database.GetDB().First(&account, caller.AccountID); result.Error != nil {
		log.Error("Account not found", zap.Uint("account_id", caller.AccountID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}

	// Enforce the capacity pool
	var count int64
	database.GetDB().Model(&model.VirtualUser{}).
		Where("account_id = ?", caller.AccountID).
		Count(&count)
	if count >= int64(account.MaxVirtualUsers) {
		log.Warn("Virtual user capacity reached",
			zap.Uint("account_id", caller.AccountID),
			zap.Int64("count", count),
			zap.Int("max", account.MaxVirtualUsers))
		return c.JSON(http.StatusConflict, echo.Map{"error": "virtual user capacity reached for this account"})
	}

	vu := model.VirtualUser{
		AccountID: caller.AccountID,
		Name:      req.Name,
		AvatarID:  req.AvatarID,
		Active:    req.Active,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&vu); result.Error != nil {
		log.Error("Failed to create virtual user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create virtual user"})
	}

	log.Info("Virtual user created",
		zap.Uint("virtual_user_id", vu.ID),
		zap.Uint("account_id", vu.AccountID))
	return c.JSON(http.StatusCreated, vu)
}

// ListVirtualUsers returns the virtual users in the caller's scope
func ListVirtualUsers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("virtual_user", "list")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	accountID := scopeAccountID(c, caller)
	page, limit, offset := pagination(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.VirtualUser
	result := database.GetDB().
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&users)
	if result.Error != nil {
		log.Error("Failed to retrieve virtual users", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve virtual users"})
	}

	var total int64
	database.GetDB().Model(&model.VirtualUser{}).
		Where("account_id = ?", accountID).
		Count(&total)

	return c.JSON(http.StatusOK, echo.Map{
		"virtual_users": users,
		"pagination":    paginationEnvelope(page, limit, total),
	})
}

// GetVirtualUser returns one virtual user; 404 when absent, 403 when it
// belongs to another account and the caller is not an admin
func GetVirtualUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("virtual_user", "get")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid virtual user ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid virtual user ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var vu model.VirtualUser
	if result := database.GetDB().First(&vu, id); result.Error != nil {
		log.Error("Virtual user not found", zap.Uint("virtual_user_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "virtual user not found"})
	}

	if !authz.Authorize(caller, vu.AccountID).Allowed() {
		log.Warn("Unauthorized virtual user access",
			zap.Uint("virtual_user_id", id),
			zap.Uint("owner_account", vu.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to access this virtual user"})
	}

	return c.JSON(http.StatusOK, vu)
}

// UpdateVirtualUser updates one virtual user under the same ownership rule
func UpdateVirtualUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("virtual_user", "update")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid virtual user ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid virtual user ID"})
	}

	var req VirtualUserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	var vu model.VirtualUser
	if result := database.GetDB().First(&vu, id); result.Error != nil {
		log.Error("Virtual user not found", zap.Uint("virtual_user_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "virtual user not found"})
	}

	if !authz.Authorize(caller, vu.AccountID).Allowed() {
		log.Warn("Unauthorized virtual user update",
			zap.Uint("virtual_user_id", id),
			zap.Uint("owner_account", vu.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to update this virtual user"})
	}

	vu.Name = req.Name
	vu.AvatarID = req.AvatarID
	vu.Active = req.Active

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Save(&vu); result.Error != nil {
		log.Error("Failed to update virtual user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update virtual user"})
	}

	log.Info("Virtual user updated", zap.Uint("virtual_user_id", vu.ID))
	return c.JSON(http.StatusOK, vu)
}

// DeleteVirtualUser removes one virtual user under the same ownership rule
func DeleteVirtualUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("virtual_user", "delete")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid virtual user ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid virtual user ID"})
	}

	var vu model.VirtualUser
	if result := database.GetDB().First(&vu, id); result.Error != nil {
		log.Error("Virtual user not found", zap.Uint("virtual_user_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "virtual user not found"})
	}

	if !authz.Authorize(caller, vu.AccountID).Allowed() {
		log.Warn("Unauthorized virtual user delete",
			zap.Uint("virtual_user_id", id),
			zap.Uint("owner_account", vu.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to delete this virtual user"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&vu); result.Error != nil {
		log.Error("Failed to delete virtual user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete virtual user"})
	}

	log.Info("Virtual user deleted", zap.Uint("virtual_user_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Virtual user deleted successfully"})
}
