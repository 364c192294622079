package handler

import (
	"net/http"
	"time"

	"trainhub/internal/model"
	"trainhub/pkg/database"
	"trainhub/pkg/logger"
	"trainhub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetProfile returns the caller's own account
func GetProfile(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "get_profile")

	accountID, ok := c.Get("account_id").(uint)
	if !ok {
		log.Error("Failed to get account ID from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var account model.Account
	if result := database.GetDB().First(&account, accountID); result.Error != nil {
		log.Error("Account not found", zap.Uint("account_id", accountID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}

	return c.JSON(http.StatusOK, account)
}

// UpdateProfile updates the caller's own account fields
func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "update_profile")

	accountID, ok := c.Get("account_id").(uint)
	if !ok {
		log.Error("Failed to get account ID from context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		CompanyName string `json:"company_name"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	var account model.Account
	if result := database.GetDB().First(&account, accountID); result.Error != nil {
		log.Error("Account not found", zap.Uint("account_id", accountID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	account.CompanyName = req.CompanyName
	if result := database.GetDB().Save(&account); result.Error != nil {
		log.Error("Failed to update account", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update account"})
	}

	log.Info("Profile updated", zap.Uint("account_id", accountID))
	return c.JSON(http.StatusOK, account)
}

// ListAccounts returns all accounts (admin only, gated by RequireAdmin)
func ListAccounts(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "list")

	page, limit, offset := pagination(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var accounts []model.Account
	result := database.GetDB().
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&accounts)
	if result.Error != nil {
		log.Error("Failed to retrieve accounts", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve accounts"})
	}

	var total int64
	database.GetDB().Model(&model.Account{}).Count(&total)

	return c.JSON(http.StatusOK, echo.Map{
		"accounts":   accounts,
		"pagination": paginationEnvelope(page, limit, total),
	})
}

// GetAccount returns one account by id (admin only)
func GetAccount(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "get")

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid account ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var account model.Account
	if result := database.GetDB().First(&account, id); result.Error != nil {
		log.Error("Account not found", zap.Uint("account_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}

	return c.JSON(http.StatusOK, account)
}

// SetAccountActive soft-enables or soft-disables an account (admin only)
func SetAccountActive(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "set_active")

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid account ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	var account model.Account
	if result := database.GetDB().First(&account, id); result.Error != nil {
		log.Error("Account not found", zap.Uint("account_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&account).Update("active", req.Active).Error; err != nil {
		log.Error("Failed to update account state", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update account"})
	}

	log.Info("Account state changed",
		zap.Uint("account_id", id),
		zap.Bool("active", req.Active))
	return c.JSON(http.StatusOK, echo.Map{"message": "Account updated successfully"})
}

// DeleteAccount soft-deletes an account (admin only)
func DeleteAccount(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("account", "delete")

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid account ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account ID"})
	}

	var account model.Account
	if result := database.GetDB().First(&account, id); result.Error != nil {
		log.Error("Account not found", zap.Uint("account_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&account); result.Error != nil {
		log.Error("Failed to delete account", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete account"})
	}

	log.Info("Account deleted", zap.Uint("account_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Account deleted successfully"})
}
