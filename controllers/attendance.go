package controllers

import (
	"academy_go/models"
	"academy_go/services/attendance"
	"academy_go/utils"

	"github.com/gofiber/fiber/v2"
)

// AttendanceController exposes the attendance engine. Dates are YYYY-MM-DD in the
// academy zone; instants are RFC 3339.
type AttendanceController struct {
	service *attendance.Service
}

func NewAttendanceController(service *attendance.Service) *AttendanceController {
	return &AttendanceController{service: service}
}

// ListAttendance returns the records of a date, optionally narrowed to one class.
// The date defaults to today.
func (ac *AttendanceController) ListAttendance(c *fiber.Ctx) error {
	date := ac.service.Today()
	if raw := c.Query("date"); raw != "" {
		d, err := utils.ParseCivilDate(raw, ac.service.Location())
		if err != nil {
			return badRequest(c, "Invalid date, expected YYYY-MM-DD")
		}
		date = d
	}
	classID := c.QueryInt("class_id", 0)
	if classID < 0 {
		return badRequest(c, "Invalid class ID")
	}

	records, err := ac.service.List(c.UserContext(), attendance.ListFilter{ClassID: uint(classID), Date: date})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": records, "total": len(records)})
}

func (ac *AttendanceController) GetAttendance(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "Invalid attendance ID")
	}
	rec, err := ac.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

func (ac *AttendanceController) CheckIn(c *fiber.Ctx) error {
	var req struct {
		StudentID      uint    `json:"student_id"`
		ClassID        uint    `json:"class_id"`
		AttendanceDate string  `json:"attendance_date"`
		CheckInAt      *string `json:"check_in_at"`
		IsMakeup       bool    `json:"is_makeup"`
		MakeupClassID  *uint   `json:"makeup_class_id"`
		Note           *string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.StudentID == 0 || req.ClassID == 0 {
		return badRequest(c, "student_id and class_id are required")
	}
	date, err := utils.ParseCivilDate(req.AttendanceDate, ac.service.Location())
	if err != nil {
		return badRequest(c, "Invalid attendance_date, expected YYYY-MM-DD")
	}
	checkInAt, err := parseInstant(req.CheckInAt)
	if err != nil {
		return badRequest(c, "Invalid check_in_at, expected RFC 3339")
	}

	rec, err := ac.service.CheckIn(c.UserContext(), attendance.CheckInRequest{
		StudentID:      req.StudentID,
		ClassID:        req.ClassID,
		AttendanceDate: date,
		CheckInAt:      checkInAt,
		IsMakeup:       req.IsMakeup,
		MakeupClassID:  req.MakeupClassID,
		Note:           req.Note,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (ac *AttendanceController) CheckOut(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "Invalid attendance ID")
	}
	var req struct {
		CheckOutAt *string `json:"check_out_at"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	checkOutAt, err := parseInstant(req.CheckOutAt)
	if err != nil {
		return badRequest(c, "Invalid check_out_at, expected RFC 3339")
	}

	rec, err := ac.service.CheckOut(c.UserContext(), id, checkOutAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

func (ac *AttendanceController) MarkAbsent(c *fiber.Ctx) error {
	var req struct {
		StudentID      uint                  `json:"student_id"`
		ClassID        uint                  `json:"class_id"`
		AttendanceDate string                `json:"attendance_date"`
		Note           *string               `json:"note"`
		AbsenceReason  *models.AbsenceReason `json:"absence_reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.StudentID == 0 || req.ClassID == 0 {
		return badRequest(c, "student_id and class_id are required")
	}
	if req.AbsenceReason != nil && !req.AbsenceReason.Valid() {
		return badRequest(c, "Invalid absence_reason")
	}
	date, err := utils.ParseCivilDate(req.AttendanceDate, ac.service.Location())
	if err != nil {
		return badRequest(c, "Invalid attendance_date, expected YYYY-MM-DD")
	}

	rec, err := ac.service.MarkAbsent(c.UserContext(), attendance.AbsenceRequest{
		StudentID:     req.StudentID,
		ClassID:       req.ClassID,
		Date:          date,
		Note:          req.Note,
		AbsenceReason: req.AbsenceReason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

// UpdateTimes applies a time correction and re-derives the status.
func (ac *AttendanceController) UpdateTimes(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "Invalid attendance ID")
	}
	var req struct {
		CheckInAt  *string `json:"check_in_at"`
		CheckOutAt *string `json:"check_out_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	checkInAt, err := parseInstant(req.CheckInAt)
	if err != nil {
		return badRequest(c, "Invalid check_in_at, expected RFC 3339")
	}
	checkOutAt, err := parseInstant(req.CheckOutAt)
	if err != nil {
		return badRequest(c, "Invalid check_out_at, expected RFC 3339")
	}

	rec, err := ac.service.UpdateWithAutoStatus(c.UserContext(), id, attendance.TimeCorrection{
		CheckInAt:  checkInAt,
		CheckOutAt: checkOutAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

func (ac *AttendanceController) RevertAbsent(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "Invalid attendance ID")
	}
	var req struct {
		CheckInAt *string `json:"check_in_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	checkInAt, err := parseInstant(req.CheckInAt)
	if err != nil || checkInAt == nil {
		return badRequest(c, "check_in_at is required (RFC 3339)")
	}

	rec, err := ac.service.RevertAbsent(c.UserContext(), id, *checkInAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

func (ac *AttendanceController) BulkCheckIn(c *fiber.Ctx) error {
	var req struct {
		ClassID        uint    `json:"class_id"`
		AttendanceDate string  `json:"attendance_date"`
		StudentIDs     []uint  `json:"student_ids"`
		CheckInAt      *string `json:"check_in_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ClassID == 0 {
		return badRequest(c, "class_id is required")
	}
	date, err := utils.ParseCivilDate(req.AttendanceDate, ac.service.Location())
	if err != nil {
		return badRequest(c, "Invalid attendance_date, expected YYYY-MM-DD")
	}
	checkInAt, err := parseInstant(req.CheckInAt)
	if err != nil {
		return badRequest(c, "Invalid check_in_at, expected RFC 3339")
	}

	result, err := ac.service.BulkCheckIn(c.UserContext(), req.ClassID, date, req.StudentIDs, checkInAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (ac *AttendanceController) BulkCheckOut(c *fiber.Ctx) error {
	var req struct {
		AttendanceIDs []uint  `json:"attendance_ids"`
		CheckOutAt    *string `json:"check_out_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	checkOutAt, err := parseInstant(req.CheckOutAt)
	if err != nil {
		return badRequest(c, "Invalid check_out_at, expected RFC 3339")
	}

	result, err := ac.service.BulkCheckOut(c.UserContext(), req.AttendanceIDs, checkOutAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
