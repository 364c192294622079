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

// EnrollmentRequest defines the structure for enrollment creation requests
type EnrollmentRequest struct {
	VirtualUserID uint `json:"virtual_user_id"`
	CourseID      uint `json:"course_id"`
}

// CreateEnrollment enrolls one of the caller's virtual users in a course
func CreateEnrollment(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("enrollment", "create")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req EnrollmentRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.VirtualUserID == 0 || req.CourseID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "virtual_user_id and course_id are required"})
	}

	// The virtual user must exist and be owned by the caller
	var vu model.VirtualUser
	if result := database.GetDB().First(&vu, req.VirtualUserID); result.Error != nil {
		log.Error("Virtual user not found", zap.Uint("virtual_user_id", req.VirtualUserID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "virtual user not found"})
	}
	if !authz.Authorize(caller, vu.AccountID).Allowed() {
		log.Warn("Unauthorized enrollment attempt",
			zap.Uint("virtual_user_id", req.VirtualUserID),
			zap.Uint("owner_account", vu.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to enroll this virtual user"})
	}

	var course model.Course
	if result := database.GetDB().First(&course, req.CourseID); result.Error != nil {
		log.Error("Course not found", zap.Uint("course_id", req.CourseID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
	}

	// One active enrollment per virtual user and course
	var count int64
	database.GetDB().Model(&model.Enrollment{}).
		Where("virtual_user_id = ? AND course_id = ?", req.VirtualUserID, req.CourseID).
		Count(&count)
	if count > 0 {
		log.Warn("Duplicate enrollment",
			zap.Uint("virtual_user_id", req.VirtualUserID),
			zap.Uint("course_id", req.CourseID))
		return c.JSON(http.StatusConflict, echo.Map{"error": "virtual user is already enrolled in this course"})
	}

	enrollment := model.Enrollment{
		AccountID:     vu.AccountID,
		VirtualUserID: req.VirtualUserID,
		CourseID:      req.CourseID,
		Status:        model.EnrollmentStatusEnrolled,
		Progress:      0,
		EnrolledAt:    time.Now().UTC(),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&enrollment); result.Error != nil {
		log.Error("Failed to create enrollment", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create enrollment"})
	}

	// Notify the owning account
	if alertStore != nil {
		if _, err := alertStore.Create(c.Request().Context(), enrollment.AccountID,
			model.AlertTypeEnrollment, "Enrollment created", course.Title); err != nil {
			log.Warn("Failed to create enrollment alert", zap.Error(err))
		}
	}

	log.Info("Enrollment created",
		zap.Uint("enrollment_id", enrollment.ID),
		zap.Uint("virtual_user_id", enrollment.VirtualUserID),
		zap.Uint("course_id", enrollment.CourseID))
	return c.JSON(http.StatusCreated, enrollment)
}

// ListEnrollments returns the enrollments in the caller's scope
func ListEnrollments(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("enrollment", "list")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	accountID := scopeAccountID(c, caller)
	page, limit, offset := pagination(c)

	query := database.GetDB().Where("account_id = ?", accountID)
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var enrollments []model.Enrollment
	result := query.
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&enrollments)
	if result.Error != nil {
		log.Error("Failed to retrieve enrollments", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve enrollments"})
	}

	var total int64
	query.Model(&model.Enrollment{}).Count(&total)

	return c.JSON(http.StatusOK, echo.Map{
		"enrollments": enrollments,
		"pagination":  paginationEnvelope(page, limit, total),
	})
}

// GetEnrollment returns one enrollment; 404 when absent, 403 when owned by
// another account and the caller is not an admin
func GetEnrollment(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("enrollment", "get")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid enrollment ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid enrollment ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var enrollment model.Enrollment
	if result := database.GetDB().First(&enrollment, id); result.Error != nil {
		log.Error("Enrollment not found", zap.Uint("enrollment_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "enrollment not found"})
	}

	if !authz.Authorize(caller, enrollment.AccountID).Allowed() {
		log.Warn("Unauthorized enrollment access",
			zap.Uint("enrollment_id", id),
			zap.Uint("owner_account", enrollment.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to access this enrollment"})
	}

	return c.JSON(http.StatusOK, enrollment)
}

// UpdateEnrollmentProgress advances an enrollment's progress, moving its
// status through in_progress to completed and raising a graduation alert
// when the course is finished
func UpdateEnrollmentProgress(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("enrollment", "update_progress")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid enrollment ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid enrollment ID"})
	}

	var req struct {
		Progress int `json:"progress"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.Progress < 0 || req.Progress > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "progress must be between 0 and 100"})
	}

	var enrollment model.Enrollment
	if result := database.GetDB().First(&enrollment, id); result.Error != nil {
		log.Error("Enrollment not found", zap.Uint("enrollment_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "enrollment not found"})
	}

	if !authz.Authorize(caller, enrollment.AccountID).Allowed() {
		log.Warn("Unauthorized enrollment progress update",
			zap.Uint("enrollment_id", id),
			zap.Uint("owner_account", enrollment.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to update this enrollment"})
	}

	enrollment.Progress = req.Progress
	switch {
	case req.Progress >= 100:
		enrollment.Status = model.EnrollmentStatusCompleted
		now := time.Now().UTC()
		enrollment.CompletedAt = &now
	case req.Progress > 0:
		enrollment.Status = model.EnrollmentStatusInProgress
	default:
		enrollment.Status = model.EnrollmentStatusEnrolled
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Save(&enrollment); result.Error != nil {
		log.Error("Failed to update enrollment", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update enrollment"})
	}

	if enrollment.Status == model.EnrollmentStatusCompleted && alertStore != nil {
		if _, err := alertStore.Create(c.Request().Context(), enrollment.AccountID,
			model.AlertTypeGraduation, "Training completed",
			"A virtual trainee has completed their course"); err != nil {
			log.Warn("Failed to create graduation alert", zap.Error(err))
		}
	}

	log.Info("Enrollment progress updated",
		zap.Uint("enrollment_id", enrollment.ID),
		zap.Int("progress", enrollment.Progress),
		zap.String("status", enrollment.Status))
	return c.JSON(http.StatusOK, enrollment)
}

// DeleteEnrollment removes an enrollment under the ownership rule
func DeleteEnrollment(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("enrollment", "delete")

	caller, err := authz.CallerFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid enrollment ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid enrollment ID"})
	}

	var enrollment model.Enrollment
	if result := database.GetDB().First(&enrollment, id); result.Error != nil {
		log.Error("Enrollment not found", zap.Uint("enrollment_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "enrollment not found"})
	}

	if !authz.Authorize(caller, enrollment.AccountID).Allowed() {
		log.Warn("Unauthorized enrollment delete",
			zap.Uint("enrollment_id", id),
			zap.Uint("owner_account", enrollment.AccountID),
			zap.Uint("caller_account", caller.AccountID))
		prometheus.RecordAuthError("ownership_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have permission to delete this enrollment"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&enrollment); result.Error != nil {
		log.Error("Failed to delete enrollment", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete enrollment"})
	}

	log.Info("Enrollment deleted", zap.Uint("enrollment_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Enrollment deleted successfully"})
}
