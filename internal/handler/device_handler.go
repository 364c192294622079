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

// DeviceRequest defines the structure for device registration/update requests
type DeviceRequest struct {
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	Model        string `json:"model"`
	Active       bool   `json:"active"`
}

// CreateDevice registers a VR headset to the caller's account
func CreateDevice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("device", "create")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req DeviceRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.Name == "" || req.SerialNumber == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and serial_number are required"})
	}

	// Serial numbers are globally unique
	var count int64
	database.GetDB().Model(&model.Device{}).
		Where("serial_number = ?", req.SerialNumber).
		Count(&count)
	if count > 0 {
		log.Warn("Device with this serial number already exists",
			zap.String("serial_number", req.SerialNumber))
		return c.JSON(http.StatusConflict, echo.Map{"error": "device with this serial number already exists"})
	}

	device := model.Device{
		AccountID:    caller.AccountID,
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Model:        req.Model,
		Active:       req.Active,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&device); result.Error != nil {
		log.Error("Failed to create device", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create device"})
	}

	log.Info("Device registered",
		zap.Uint("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber),
		zap.Uint("account_id", device.AccountID))
	return c.JSON(http.StatusCreated, device)
}

// ListDevices returns the devices in the caller's scope
func ListDevices(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("device", "list")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	accountID := scopeAccountID(c, caller)
	page, limit, offset := pagination(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var devices []model.Device
	result := database.GetDB().
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&devices)
	if result.Error != nil {
		log.Error("Failed to retrieve devices", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve devices"})
	}

	var total int64
	database.GetDB().Model(&model.Device{}).
		Where("account_id = ?", accountID).
		Count(&total)

	return c.JSON(http.StatusOK, echo.Map{
		"devices":    devices,
		"pagination": paginationEnvelope(page, limit, total),
	})
}

// GetDevice returns one device; 404 when absent, 403 when owned by another
// account and the caller is not an admin
func GetDevice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("device", "get")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid device ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var device model.Device
	if result := database.GetDB().First(&device, id); result.Error != nil {
		log.Error("Device not found", zap.Uint("device_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "device not found"})
	}

	if !authz.Authorize(caller, device.AccountID).Allowed() {
		log.Warn("Unauthorized device access",
			zap.Uint("device_id", id),
			zap.Uint("owner_account", device.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to access this device"})
	}

	return c.JSON(http.StatusOK, device)
}

// UpdateDevice updates a device under the ownership rule
func UpdateDevice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("device", "update")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid device ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device ID"})
	}

	var req DeviceRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	var device model.Device
	if result := database.GetDB().First(&device, id); result.Error != nil {
		log.Error("Device not found", zap.Uint("device_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "device not found"})
	}

	if !authz.Authorize(caller, device.AccountID).Allowed() {
		log.Warn("Unauthorized device update",
			zap.Uint("device_id", id),
			zap.Uint("owner_account", device.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to update this device"})
	}

	// Serial number changes must stay unique
	if req.SerialNumber != "" && req.SerialNumber != device.SerialNumber {
		var count int64
		database.GetDB().Model(&model.Device{}).
			Where("serial_number = ? AND id != ?", req.SerialNumber, id).
			Count(&count)
		if count > 0 {
			return c.JSON(http.StatusConflict, echo.Map{"error": "device with this serial number already exists"})
		}
		device.SerialNumber = req.SerialNumber
	}

	device.Name = req.Name
	device.Model = req.Model
	device.Active = req.Active

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Save(&device); result.Error != nil {
		log.Error("Failed to update device", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update device"})
	}

	log.Info("Device updated", zap.Uint("device_id", device.ID))
	return c.JSON(http.StatusOK, device)
}

// DeviceHeartbeat records that a device was seen online
func DeviceHeartbeat(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("device", "heartbeat")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid device ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device ID"})
	}

	var device model.Device
	if result := database.GetDB().First(&device, id); result.Error != nil {
		log.Error("Device not found", zap.Uint("device_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "device not found"})
	}

	if !authz.Authorize(caller, device.AccountID).Allowed() {
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to update this device"})
	}

	now := time.Now().UTC()
	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(&device).Update("last_seen_at", now).Error; err != nil {
		log.Error("Failed to record heartbeat", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record heartbeat"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Heartbeat recorded", "last_seen_at": now})
}

// DeleteDevice removes a device under the ownership rule
func DeleteDevice(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("device", "delete")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid device ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device ID"})
	}

	var device model.Device
	if result := database.GetDB().First(&device, id); result.Error != nil {
		log.Error("Device not found", zap.Uint("device_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "device not found"})
	}

	if !authz.Authorize(caller, device.AccountID).Allowed() {
		log.Warn("Unauthorized device delete",
			zap.Uint("device_id", id),
			zap.Uint("owner_account", device.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to delete this device"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&device); result.Error != nil {
		log.Error("Failed to delete device", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete device"})
	}

	log.Info("Device deleted", zap.Uint("device_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Device deleted successfully"})
}
