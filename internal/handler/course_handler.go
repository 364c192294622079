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

// CourseRequest defines the structure for course creation/update requests
type CourseRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	DurationMinutes int    `json:"duration_minutes"`
	Active          bool   `json:"active"`
}

// ModuleRequest defines the structure for course module requests
type ModuleRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Sequence        int    `json:"sequence"`
	DurationMinutes int    `json:"duration_minutes"`
}

// ListCourses returns the course catalog, visible to any authenticated account
func ListCourses(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("course", "list")

	page, limit, offset := pagination(c)

	query := database.GetDB().Model(&model.Course{})
	if category := c.QueryParam("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var courses []model.Course
	result := query.
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&courses)
	if result.Error != nil {
		log.Error("Failed to retrieve courses", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve courses"})
	}

	var total int64
	query.Count(&total)

	return c.JSON(http.StatusOK, echo.Map{
		"courses":    courses,
		"pagination": paginationEnvelope(page, limit, total),
	})
}

// GetCourse returns one course by id
func GetCourse(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("course", "get")

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid course ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var course model.Course
	if result := database.GetDB().First(&course, id); result.Error != nil {
		log.Error("Course not found", zap.Uint("course_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
	}

	return c.JSON(http.StatusOK, course)
}

// CreateCourse adds a course to the catalog (admin only)
func CreateCourse(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("course", "create")

	var req CourseRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}

	course := model.Course{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		DurationMinutes: req.DurationMinutes,
		Active:          req.Active,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&course); result.Error != nil {
		log.Error("Failed to create course", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create course"})
	}

	log.Info("Course created",
		zap.Uint("course_id", course.ID),
		zap.String("title", course.Title))
	return c.JSON(http.StatusCreated, course)
}

// UpdateCourse updates a course (admin only)
func UpdateCourse(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("course", "update")

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid course ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course ID"})
	}

	var req CourseRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	var course model.Course
	if result := database.GetDB().First(&course, id); result.Error != nil {
		log.Error("Course not found", zap.Uint("course_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
	}

	course.Title = req.Title
	course.Description = req.Description
	course.Category = req.Category
	course.DurationMinutes = req.DurationMinutes
	course.Active = req.Active

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Save(&course); result.Error != nil {
		log.Error("Failed to update course", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update course"})
	}

	log.Info("Course updated", zap.Uint("course_id", course.ID))
	return c.JSON(http.StatusOK, course)
}

// DeleteCourse removes a course from the catalog (admin only)
func DeleteCourse(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("course", "delete")

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid course ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course ID"})
	}

	var course model.Course
	if result := database.GetDB().First(&course, id); result.Error != nil {
		log.Error("Course not found", zap.Uint("course_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&course); result.Error != nil {
		log.Error("Failed to delete course", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete course"})
	}

	log.Info("Course deleted", zap.Uint("course_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Course deleted successfully"})
}

// ListCourseModules returns the modules of a course ordered by sequence
func ListCourseModules(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("module", "list")

	courseID, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid course ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course ID"})
	}

	var course model.Course
	if result := database.GetDB().First(&course, courseID); result.Error != nil {
		log.Error("Course not found", zap.Uint("course_id", courseID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var modules []model.CourseModule
	result := database.GetDB().
		Where("course_id = ?", courseID).
		Order("sequence asc").
		Find(&modules)
	if result.Error != nil {
		log.Error("Failed to retrieve modules", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve modules"})
	}

	return c.JSON(http.StatusOK, echo.Map{"modules": modules})
}

// CreateCourseModule adds a module to a course (admin only)
func CreateCourseModule(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("module", "create")

	courseID, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid course ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course ID"})
	}

	var req ModuleRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}

	var course model.Course
	if result := database.GetDB().First(&course, courseID); result.Error != nil {
		log.Error("Course not found", zap.Uint("course_id", courseID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
	}

	module := model.CourseModule{
		CourseID:        courseID,
		Title:           req.Title,
		Description:     req.Description,
		Sequence:        req.Sequence,
		DurationMinutes: req.DurationMinutes,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&module); result.Error != nil {
		log.Error("Failed to create module", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create module"})
	}

	log.Info("Module created",
		zap.Uint("module_id", module.ID),
		zap.Uint("course_id", courseID))
	return c.JSON(http.StatusCreated, module)
}

// UpdateCourseModule updates a module (admin only)
func UpdateCourseModule(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("module", "update")

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid module ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid module ID"})
	}

	var req ModuleRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	var module model.CourseModule
	if result := database.GetDB().First(&module, id); result.Error != nil {
		log.Error("Module not found", zap.Uint("module_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "module not found"})
	}

	module.Title = req.Title
	module.Description = req.Description
	module.Sequence = req.Sequence
	module.DurationMinutes = req.DurationMinutes

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := database.GetDB().Save(&module); result.Error != nil {
		log.Error("Failed to update module", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update module"})
	}

	log.Info("Module updated", zap.Uint("module_id", module.ID))
	return c.JSON(http.StatusOK, module)
}

// DeleteCourseModule removes a module (admin only)
func DeleteCourseModule(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("module", "delete")

	id, err := parseIDParam(c)
	if err != nil {
		log.Error("Invalid module ID", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid module ID"})
	}

	var module model.CourseModule
	if result := database.GetDB().First(&module, id); result.Error != nil {
		log.Error("Module not found", zap.Uint("module_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "module not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := database.GetDB().Delete(&module); result.Error != nil {
		log.Error("Failed to delete module", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete module"})
	}

	log.Info("Module deleted", zap.Uint("module_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Module deleted successfully"})
}
