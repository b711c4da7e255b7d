package export

import (
	"fmt"
	"time"

	"academy_go/models"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the attendance rows.
const SheetName = "Attendance"

var header = []interface{}{
	"Student", "Class", "Date", "Status", "Check-in", "Check-out", "Make-up", "Absence reason", "Note",
}

// BuildWorkbook renders records as an xlsx file. Times are written in loc.
func BuildWorkbook(records []models.Attendance, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "I1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			rec.StudentNameSnapshot,
			rec.ClassNameSnapshot,
			rec.AttendanceDate.Format("2006-01-02"),
			string(rec.Status),
			clockText(rec.CheckInAt, loc),
			clockText(rec.CheckOutAt, loc),
			yesNo(rec.IsMakeup),
			reasonText(rec.AbsenceReason),
			noteText(rec.Note),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "B", 22); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func clockText(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("15:04")
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

func reasonText(r *models.AbsenceReason) string {
	if r == nil {
		return ""
	}
	return string(*r)
}

func noteText(n *string) string {
	if n == nil {
		return ""
	}
	return *n
}
