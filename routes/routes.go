package routes

import (
	"academy_go/controllers"
	"academy_go/middleware"

	"github.com/gofiber/fiber/v2"
)

// Controllers groups the handlers the route table needs.
type Controllers struct {
	Attendance *controllers.AttendanceController
	Export     *controllers.ExportController
	WebSocket  *controllers.WebSocketController
	Health     *controllers.HealthController
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h Controllers) {
	app.Get("/health", h.Health.GetHealthStatus)

	// Live attendance board; the token is checked before the upgrade
	app.Get("/ws/attendance", h.WebSocket.Upgrade, h.WebSocket.Board())

	api := app.Group("/api", middleware.JWTMiddleware(), middleware.RequireStaff())

	api.Get("/ws/stats", middleware.RequireOwnerOrAdmin(), h.WebSocket.GetWebSocketStats)

	att := api.Group("/attendance")

	// Exports (registered before /:id)
	exports := att.Group("/exports", middleware.RequireOwnerOrAdmin())
	exports.Post("/", h.Export.CreateExport)
	exports.Get("/", h.Export.ListExports)
	exports.Get("/:id/download", h.Export.DownloadExport)

	att.Get("/", h.Attendance.ListAttendance)
	att.Post("/check-in", h.Attendance.CheckIn)
	att.Post("/absent", h.Attendance.MarkAbsent)
	att.Post("/bulk/check-in", h.Attendance.BulkCheckIn)
	att.Post("/bulk/check-out", h.Attendance.BulkCheckOut)
	att.Get("/:id", h.Attendance.GetAttendance)
	att.Patch("/:id", h.Attendance.UpdateTimes)
	att.Post("/:id/check-out", h.Attendance.CheckOut)
	att.Post("/:id/revert-absent", h.Attendance.RevertAbsent)
}
