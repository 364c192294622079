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

// TrainingRecordRequest defines the structure for training record submissions
type TrainingRecordRequest struct {
	EnrollmentID    uint `json:"enrollment_id"`
	ModuleID        uint `json:"module_id"`
	Score           int  `json:"score"`
	DurationSeconds int  `json:"duration_seconds"`
}

// CreateTrainingRecord stores a completed module session for one of the
// caller's enrollments
func CreateTrainingRecord(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("training_record", "create")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req TrainingRecordRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.EnrollmentID == 0 || req.ModuleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "enrollment_id and module_id are required"})
	}

	// The enrollment must exist and be owned by the caller
	var enrollment model.Enrollment
	if result := database.GetDB().First(&enrollment, req.EnrollmentID); result.Error != nil {
		log.Error("Enrollment not found", zap.Uint("enrollment_id", req.EnrollmentID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "enrollment not found"})
	}
	if !authz.Authorize(caller, enrollment.AccountID).Allowed() {
		log.Warn("Unauthorized training record submission",
			zap.Uint("enrollment_id", req.EnrollmentID),
			zap.Uint("owner_account", enrollment.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to record against this enrollment"})
	}

	// The module must belong to the enrolled course
	var module model.CourseModule
	if result := database.GetDB().First(&module, req.ModuleID); result.Error != nil {
		log.Error("Module not found", zap.Uint("module_id", req.ModuleID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "module not found"})
	}
	if module.CourseID != enrollment.CourseID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "module does not belong to the enrolled course"})
	}

	record := model.TrainingRecord{
		AccountID:       enrollment.AccountID,
		EnrollmentID:    req.EnrollmentID,
		ModuleID:        req.ModuleID,
		Score:           req.Score,
		DurationSeconds: req.DurationSeconds,
		CompletedAt:     time.Now().UTC(),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&record); result.Error != nil {
		log.Error("Failed to create training record", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create training record"})
	}

	// Notify the owning account
	if alertStore != nil {
		if _, err := alertStore.Create(c.Request().Context(), record.AccountID,
			model.AlertTypeTraining, "Training session recorded", module.Title); err != nil {
			log.Warn("Failed to create training alert", zap.Error(err))
		}
	}

	log.Info("Training record created",
		zap.Uint("training_record_id", record.ID),
		zap.Uint("enrollment_id", record.EnrollmentID),
		zap.Int("score", record.Score))
	return c.JSON(http.StatusCreated, record)
}

// ListTrainingRecords returns the training records in the caller's scope
func ListTrainingRecords(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("training_record", "list")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	accountID := scopeAccountID(c, caller)
	page, limit, offset := pagination(c)

	query := database.GetDB().Where("account_id = ?", accountID)
	if raw := c.QueryParam("enrollment_id"); raw != "" {
		query = query.Where("enrollment_id = ?", raw)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var records []model.TrainingRecord
	result := query.
		Order("completed_at desc").
		Limit(limit).
		Offset(offset).
		Find(&records)
	if result.Error != nil {
		log.Error("Failed to retrieve training records", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve training records"})
	}

	var total int64
	query.Model(&model.TrainingRecord{}).Count(&total)

	return c.JSON(http.StatusOK, echo.Map{
		"training_records": records,
		"pagination":       paginationEnvelope(page, limit, total),
	})
}

// GetTrainingRecord returns one training record under the ownership rule
func GetTrainingRecord(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("training_record", "get")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid training record ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid training record ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var record model.TrainingRecord
	if result := database.GetDB().First(&record, id); result.Error != nil {
		log.Error("Training record not found", zap.Uint("training_record_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "training record not found"})
	}

	if !authz.Authorize(caller, record.AccountID).Allowed() {
		log.Warn("Unauthorized training record access",
			zap.Uint("training_record_id", id),
			zap.Uint("owner_account", record.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to access this training record"})
	}

	return c.JSON(http.StatusOK, record)
}

// DeleteTrainingRecord removes one training record under the ownership rule
func DeleteTrainingRecord(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("training_record", "delete")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid training record ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid training record ID"})
	}

	var record model.TrainingRecord
	if result := database.GetDB().First(&record, id); result.Error != nil {
		log.Error("Training record not found", zap.Uint("training_record_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "training record not found"})
	}

	if !authz.Authorize(caller, record.AccountID).Allowed() {
		log.Warn("Unauthorized training record delete",
			zap.Uint("training_record_id", id),
			zap.Uint("owner_account", record.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to delete this training record"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&record); result.Error != nil {
		log.Error("Failed to delete training record", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete training record"})
	}

	log.Info("Training record deleted", zap.Uint("training_record_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Training record deleted successfully"})
}
