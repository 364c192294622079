package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"trainhub/internal/alert"
	"trainhub/internal/model"
	"trainhub/pkg/database"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Test identity headers consumed by the stub auth middleware below. The
// real AuthMiddleware is exercised separately; these tests target the
// handlers' ownership behavior.
const (
	testAccountHeader = "X-Test-Account"
	testRoleHeader    = "X-Test-Role"
)

func setupTestAPI(t *testing.T) *echo.Echo {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	InitAlerts(alert.NewStore(db, nil, nil, zap.NewNop()), nil, time.Second)

	e := echo.New()

	stubAuth := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("logger", zap.NewNop())
			if raw := c.Request().Header.Get(testAccountHeader); raw != "" {
				id, err := strconv.ParseUint(raw, 10, 32)
				require.NoError(t, err)
				c.Set("account_id", uint(id))
				c.Set("role", c.Request().Header.Get(testRoleHeader))
			}
			return next(c)
		}
	}

	api := e.Group("/api", stubAuth)

	virtualUsers := api.Group("/virtual-users")
	virtualUsers.POST("", CreateVirtualUser)
	virtualUsers.GET("", ListVirtualUsers)
	virtualUsers.GET("/:id", GetVirtualUser)
	virtualUsers.DELETE("/:id", DeleteVirtualUser)

	enrollments := api.Group("/enrollments")
	enrollments.GET("/:id", GetEnrollment)
	enrollments.PATCH("/:id/progress", UpdateEnrollmentProgress)

	devices := api.Group("/devices")
	devices.GET("/:id", GetDevice)

	alerts := api.Group("/alerts")
	alerts.GET("", ListAlerts)
	alerts.POST("", CreateAlert)
	alerts.PUT("/:id/mark-read", MarkAlertRead)
	alerts.DELETE("/all", DeleteAllAlerts)
	alerts.DELETE("/:id", DeleteAlert)
	alerts.GET("/unread-count", UnreadAlertCount)
	alerts.GET("/poll-interval", AlertPollInterval)

	return e
}

func doRequest(e *echo.Echo, method, path, body string, accountID uint, role string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if accountID != 0 {
		req.Header.Set(testAccountHeader, strconv.FormatUint(uint64(accountID), 10))
		req.Header.Set(testRoleHeader, role)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createAlertRow(t *testing.T, accountID uint, title string) model.Alert {
	t.Helper()
	row := model.Alert{
		AccountID: accountID,
		Type:      model.AlertTypeTraining,
		Title:     title,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, database.GetDB().Create(&row).Error)
	return row
}

func TestGetEnrollmentOwnership(t *testing.T) {
	e := setupTestAPI(t)

	enrollment := model.Enrollment{
		AccountID:     1,
		VirtualUserID: 10,
		CourseID:      20,
		Status:        model.EnrollmentStatusEnrolled,
		EnrolledAt:    time.Now().UTC(),
	}
	require.NoError(t, database.GetDB().Create(&enrollment).Error)
	path := fmt.Sprintf("/api/enrollments/%d", enrollment.ID)

	t.Run("owner reads own enrollment", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, path, "", 1, model.RoleUser)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin reads any enrollment", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, path, "", 99, model.RoleAdmin)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, path, "", 2, model.RoleUser)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("absent enrollment is not found", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/api/enrollments/99999", "", 2, model.RoleUser)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, path, "", 0, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestListAlertsScoping(t *testing.T) {
	e := setupTestAPI(t)

	createAlertRow(t, 1, "for account one")
	createAlertRow(t, 2, "for account two")

	// A user passing another account's id still only sees their own
	// alerts.
	rec := doRequest(e, http.MethodGet, "/api/alerts?account_id=1", "", 2, model.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Alerts []model.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, uint(2), resp.Alerts[0].AccountID)

	// Admins may widen the scope.
	rec = doRequest(e, http.MethodGet, "/api/alerts?account_id=1", "", 99, model.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, uint(1), resp.Alerts[0].AccountID)
}

func TestMarkAlertReadOwnership(t *testing.T) {
	e := setupTestAPI(t)

	mine := createAlertRow(t, 1, "mine")
	theirs := createAlertRow(t, 2, "theirs")

	t.Run("guessed foreign alert id is forbidden", func(t *testing.T) {
		path := fmt.Sprintf("/api/alerts/%d/mark-read", theirs.ID)
		rec := doRequest(e, http.MethodPut, path, "", 1, model.RoleUser)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var row model.Alert
		require.NoError(t, database.GetDB().First(&row, theirs.ID).Error)
		assert.False(t, row.Read)
	})

	t.Run("own alert marks read and repeats idempotently", func(t *testing.T) {
		path := fmt.Sprintf("/api/alerts/%d/mark-read", mine.ID)
		rec := doRequest(e, http.MethodPut, path, "", 1, model.RoleUser)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(e, http.MethodPut, path, "", 1, model.RoleUser)
		assert.Equal(t, http.StatusOK, rec.Code)

		var row model.Alert
		require.NoError(t, database.GetDB().First(&row, mine.ID).Error)
		assert.True(t, row.Read)
	})

	t.Run("admin may mark any account's alert", func(t *testing.T) {
		path := fmt.Sprintf("/api/alerts/%d/mark-read", theirs.ID)
		rec := doRequest(e, http.MethodPut, path, "", 99, model.RoleAdmin)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("absent alert is not found", func(t *testing.T) {
		rec := doRequest(e, http.MethodPut, "/api/alerts/99999/mark-read", "", 1, model.RoleUser)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUnreadCountLifecycle(t *testing.T) {
	e := setupTestAPI(t)

	body := `{"type":"training","title":"Done","message":"x"}`
	rec := doRequest(e, http.MethodPost, "/api/alerts", body, 1, model.RoleUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.Read)

	rec = doRequest(e, http.MethodGet, "/api/alerts/unread-count", "", 1, model.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var count struct {
		UnreadCount int64 `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, int64(1), count.UnreadCount)

	path := fmt.Sprintf("/api/alerts/%d/mark-read", created.ID)
	rec = doRequest(e, http.MethodPut, path, "", 1, model.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/alerts/unread-count", "", 1, model.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, int64(0), count.UnreadCount)
}

func TestCreateAlertTargetingAndValidation(t *testing.T) {
	e := setupTestAPI(t)

	t.Run("user cannot target another account", func(t *testing.T) {
		body := `{"type":"training","title":"Hi","account_id":2}`
		rec := doRequest(e, http.MethodPost, "/api/alerts", body, 1, model.RoleUser)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		body := `{"type":"weather","title":"Hi"}`
		rec := doRequest(e, http.MethodPost, "/api/alerts", body, 1, model.RoleUser)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("admin targeting a missing account is not found", func(t *testing.T) {
		body := `{"type":"training","title":"Hi","account_id":4242}`
		rec := doRequest(e, http.MethodPost, "/api/alerts", body, 99, model.RoleAdmin)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("admin targeting an existing account succeeds", func(t *testing.T) {
		account := model.Account{Email: "target@example.com", Role: model.RoleUser, Active: true}
		require.NoError(t, database.GetDB().Create(&account).Error)

		body := fmt.Sprintf(`{"type":"user","title":"Welcome","account_id":%d}`, account.ID)
		rec := doRequest(e, http.MethodPost, "/api/alerts", body, 99, model.RoleAdmin)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestDeleteAllAlertsIsAccountScoped(t *testing.T) {
	e := setupTestAPI(t)

	createAlertRow(t, 1, "one")
	createAlertRow(t, 1, "two")
	createAlertRow(t, 2, "keep")

	rec := doRequest(e, http.MethodDelete, "/api/alerts/all", "", 1, model.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)

	var mine, theirs int64
	database.GetDB().Model(&model.Alert{}).Where("account_id = ?", 1).Count(&mine)
	database.GetDB().Model(&model.Alert{}).Where("account_id = ?", 2).Count(&theirs)
	assert.Equal(t, int64(0), mine)
	assert.Equal(t, int64(1), theirs)
}

func TestDeleteAlertOwnership(t *testing.T) {
	e := setupTestAPI(t)

	theirs := createAlertRow(t, 2, "theirs")

	path := fmt.Sprintf("/api/alerts/%d", theirs.ID)
	rec := doRequest(e, http.MethodDelete, path, "", 1, model.RoleUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(e, http.MethodDelete, path, "", 2, model.RoleUser)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodDelete, path, "", 2, model.RoleUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertPollInterval(t *testing.T) {
	e := setupTestAPI(t)

	rec := doRequest(e, http.MethodGet, "/api/alerts/poll-interval", "", 1, model.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PollIntervalMS int64 `json:"poll_interval_ms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1000), resp.PollIntervalMS)
}

func TestVirtualUserCapacity(t *testing.T) {
	e := setupTestAPI(t)

	account := model.Account{Email: "cap@example.com", Role: model.RoleUser, Active: true, MaxVirtualUsers: 1}
	require.NoError(t, database.GetDB().Create(&account).Error)

	body := `{"name":"Trainee A","active":true}`
	rec := doRequest(e, http.MethodPost, "/api/virtual-users", body, account.ID, model.RoleUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	body = `{"name":"Trainee B","active":true}`
	rec = doRequest(e, http.MethodPost, "/api/virtual-users", body, account.ID, model.RoleUser)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVirtualUserOwnership(t *testing.T) {
	e := setupTestAPI(t)

	vu := model.VirtualUser{AccountID: 1, Name: "Trainee", Active: true}
	require.NoError(t, database.GetDB().Create(&vu).Error)
	path := fmt.Sprintf("/api/virtual-users/%d", vu.ID)

	rec := doRequest(e, http.MethodGet, path, "", 2, model.RoleUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(e, http.MethodDelete, path, "", 2, model.RoleUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(e, http.MethodGet, path, "", 99, model.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodDelete, path, "", 1, model.RoleUser)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnrollmentProgressTransitions(t *testing.T) {
	e := setupTestAPI(t)

	enrollment := model.Enrollment{
		AccountID:     1,
		VirtualUserID: 10,
		CourseID:      20,
		Status:        model.EnrollmentStatusEnrolled,
		EnrolledAt:    time.Now().UTC(),
	}
	require.NoError(t, database.GetDB().Create(&enrollment).Error)
	path := fmt.Sprintf("/api/enrollments/%d/progress", enrollment.ID)

	rec := doRequest(e, http.MethodPatch, path, `{"progress":40}`, 1, model.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Enrollment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, model.EnrollmentStatusInProgress, updated.Status)
	assert.Nil(t, updated.CompletedAt)

	rec = doRequest(e, http.MethodPatch, path, `{"progress":100}`, 1, model.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, model.EnrollmentStatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	// Completion raises a graduation alert for the owning account
	var count int64
	database.GetDB().Model(&model.Alert{}).
		Where("account_id = ? AND type = ?", 1, model.AlertTypeGraduation).
		Count(&count)
	assert.Equal(t, int64(1), count)

	rec = doRequest(e, http.MethodPatch, path, `{"progress":150}`, 1, model.RoleUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceOwnership(t *testing.T) {
	e := setupTestAPI(t)

	device := model.Device{AccountID: 1, Name: "Headset", SerialNumber: "SN-1", Active: true}
	require.NoError(t, database.GetDB().Create(&device).Error)
	path := fmt.Sprintf("/api/devices/%d", device.ID)

	rec := doRequest(e, http.MethodGet, path, "", 1, model.RoleUser)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, path, "", 2, model.RoleUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/devices/99999", "", 2, model.RoleUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
