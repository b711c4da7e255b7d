package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"academy_go/config"
	"academy_go/controllers"
	"academy_go/middleware"
	"academy_go/models"
	"academy_go/repository/memory"
	"academy_go/routes"
	"academy_go/services"
	"academy_go/services/attendance"
	"academy_go/services/export"
	"academy_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app     *fiber.App
	db      *memory.DB
	objects *memory.Objects
	token   string
}

func newTestServer(t *testing.T, role string) *testServer {
	t.Helper()
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	config.AppConfig = &config.Config{JWTSecret: "controller-test-secret", Location: seoul}

	db := memory.Open()
	db.AddClass(1, "Phonics A")
	db.AddSchedule(1, "월", "09:00", "10:00")
	db.AddStudent(1, "Minji")
	db.AddStudent(2, "Jisoo")
	db.AddEmployee("auth-teacher", 7)

	now := time.Date(2026, 10, 12, 9, 3, 0, 0, seoul)
	engine := attendance.NewService(
		memory.NewAttendanceStore(db),
		memory.NewScheduleLookup(db),
		memory.NewDirectory(db),
		memory.NewIdentityResolver(db),
		attendance.Options{Location: seoul, Now: func() time.Time { return now }},
	)
	objects := memory.NewObjects()
	exporter := export.NewExporter(engine, objects, memory.NewExportLog(), seoul)
	hub := websocket.NewHub()

	app := fiber.New()
	routes.SetupRoutes(app, routes.Controllers{
		Attendance: controllers.NewAttendanceController(engine),
		Export:     controllers.NewExportController(exporter),
		WebSocket:  controllers.NewWebSocketController(hub),
		Health:     controllers.NewHealthController(services.NewHealthService("memory", nil, nil, hub.GetClientCount, "test")),
	})

	token, err := middleware.GenerateToken("auth-teacher", role, time.Hour)
	require.NoError(t, err)
	return &testServer{app: app, db: db, objects: objects, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestCheckInAndCheckOut(t *testing.T) {
	s := newTestServer(t, "teacher")

	resp, data := s.do(t, http.MethodPost, "/api/attendance/check-in", map[string]interface{}{
		"student_id":      1,
		"class_id":        1,
		"attendance_date": "2026-10-12",
		"check_in_at":     "2026-10-12T09:15:00+09:00",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))
	rec := decode[models.Attendance](t, data)
	assert.Equal(t, models.StatusLate, rec.Status)
	assert.Equal(t, "Minji", rec.StudentNameSnapshot)
	require.NotNil(t, rec.CreatedBy)
	assert.Equal(t, uint(7), *rec.CreatedBy)

	resp, data = s.do(t, http.MethodPost, "/api/attendance/1/check-out", map[string]interface{}{
		"check_out_at": "2026-10-12T09:45:00+09:00",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, models.StatusLate, decode[models.Attendance](t, data).Status)

	resp, data = s.do(t, http.MethodGet, "/api/attendance?class_id=1&date=2026-10-12", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	list := decode[struct {
		Data  []models.Attendance `json:"data"`
		Total int                 `json:"total"`
	}](t, data)
	assert.Equal(t, 1, list.Total)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, "teacher")

	resp, _ := s.do(t, http.MethodPost, "/api/attendance/check-in", map[string]interface{}{
		"student_id": 1, "class_id": 1, "attendance_date": "2026-10-13",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/attendance/99", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/attendance/check-in", map[string]interface{}{
		"student_id": 1, "class_id": 1, "attendance_date": "12/10/2026",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/attendance/absent", map[string]interface{}{
		"student_id": 1, "class_id": 1, "attendance_date": "2026-10-12", "absence_reason": "bored",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/attendance/1/revert-absent", map[string]interface{}{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAbsentRevertAndCorrection(t *testing.T) {
	s := newTestServer(t, "teacher")

	resp, data := s.do(t, http.MethodPost, "/api/attendance/absent", map[string]interface{}{
		"student_id": 2, "class_id": 1, "attendance_date": "2026-10-12", "absence_reason": "sick",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	rec := decode[models.Attendance](t, data)
	assert.Equal(t, models.StatusAbsent, rec.Status)

	resp, data = s.do(t, http.MethodPost, "/api/attendance/1/revert-absent", map[string]interface{}{
		"check_in_at": "2026-10-12T09:20:00+09:00",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	rec = decode[models.Attendance](t, data)
	assert.Equal(t, models.StatusLate, rec.Status)
	assert.Nil(t, rec.AbsenceReason)

	resp, data = s.do(t, http.MethodPatch, "/api/attendance/1", map[string]interface{}{
		"check_in_at": "2026-10-12T09:05:00+09:00",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, models.StatusPresent, decode[models.Attendance](t, data).Status)
}

func TestBulkEndpoints(t *testing.T) {
	s := newTestServer(t, "teacher")

	resp, data := s.do(t, http.MethodPost, "/api/attendance/bulk/check-in", map[string]interface{}{
		"class_id": 1, "attendance_date": "2026-10-12", "student_ids": []uint{1, 2},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	result := decode[attendance.BulkResult](t, data)
	assert.Equal(t, 2, result.Succeeded)
	assert.Empty(t, result.Failed)

	resp, data = s.do(t, http.MethodPost, "/api/attendance/bulk/check-out", map[string]interface{}{
		"attendance_ids": []uint{1, 2, 3},
		"check_out_at":   "2026-10-12T10:00:00+09:00",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	result = decode[attendance.BulkResult](t, data)
	assert.Equal(t, 2, result.Succeeded)
	assert.Len(t, result.Failed, 1)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, "student")

	resp, _ := s.do(t, http.MethodGet, "/api/attendance", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	s.token = "not-a-token"
	resp, _ = s.do(t, http.MethodGet, "/api/attendance", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/ws/attendance?class_id=1", nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/ws/attendance?class_id=1&token=bad", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestExportEndpoints(t *testing.T) {
	s := newTestServer(t, "admin")

	resp, data := s.do(t, http.MethodPost, "/api/attendance/exports", map[string]interface{}{"date": "2026-10-12"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))
	exp := decode[models.AttendanceExport](t, data)
	assert.Equal(t, export.StatusCompleted, exp.Status)

	resp, data = s.do(t, http.MethodGet, "/api/attendance/exports", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	list := decode[struct {
		Total int `json:"total"`
	}](t, data)
	assert.Equal(t, 1, list.Total)

	resp, data = s.do(t, http.MethodGet, "/api/attendance/exports/1/download", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attendance_2026-10-12.xlsx")
	assert.NotEmpty(t, data)

	resp, _ = s.do(t, http.MethodGet, "/api/attendance/exports/9/download", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestExportsRequireAdmin(t *testing.T) {
	s := newTestServer(t, "teacher")
	resp, _ := s.do(t, http.MethodGet, "/api/attendance/exports", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
