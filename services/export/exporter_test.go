package export_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"academy_go/models"
	"academy_go/repository/memory"
	"academy_go/services/attendance"
	"academy_go/services/export"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type exportFixture struct {
	svc      *attendance.Service
	objects  *memory.Objects
	log      *memory.ExportLog
	exporter *export.Exporter
	loc      *time.Location
	monday   time.Time
}

func setup(t *testing.T) *exportFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	db := memory.Open()
	db.AddClass(1, "Phonics A")
	db.AddSchedule(1, "월", "09:00", "10:00")
	db.AddStudent(1, "Minji")
	db.AddStudent(2, "Jisoo")

	svc := attendance.NewService(
		memory.NewAttendanceStore(db),
		memory.NewScheduleLookup(db),
		memory.NewDirectory(db),
		memory.NewIdentityResolver(db),
		attendance.Options{Location: loc},
	)
	f := &exportFixture{
		svc:     svc,
		objects: memory.NewObjects(),
		log:     memory.NewExportLog(),
		loc:     loc,
		monday:  time.Date(2026, 10, 12, 0, 0, 0, 0, loc),
	}
	f.exporter = export.NewExporter(svc, f.objects, f.log, loc)
	return f
}

func (f *exportFixture) at(hour, minute int) *time.Time {
	t := time.Date(2026, 10, 12, hour, minute, 0, 0, f.loc)
	return &t
}

func TestExportWritesWorkbook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{StudentID: 1, ClassID: 1, AttendanceDate: f.monday, CheckInAt: f.at(9, 15)})
	require.NoError(t, err)
	sick := models.AbsenceSick
	_, err = f.svc.MarkAbsent(ctx, attendance.AbsenceRequest{StudentID: 2, ClassID: 1, Date: f.monday, AbsenceReason: &sick})
	require.NoError(t, err)

	exp, err := f.exporter.Export(ctx, f.monday)
	require.NoError(t, err)
	assert.Equal(t, export.StatusCompleted, exp.Status)
	assert.Equal(t, 2, exp.RecordCount)
	assert.Positive(t, exp.FileSize)
	assert.Equal(t, "attendance_2026-10-12.xlsx", exp.FileName)
	assert.True(t, strings.HasPrefix(exp.S3Key, "attendance/2026/10/12/"))
	assert.Equal(t, []string{exp.S3Key}, f.objects.Keys())

	body, stored, err := f.exporter.Download(ctx, exp.ID)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, exp.FileName, stored.FileName)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Student", "Class", "Date", "Status", "Check-in", "Check-out", "Make-up", "Absence reason", "Note"}, rows[0])
	assert.Equal(t, []string{"Minji", "Phonics A", "2026-10-12", "late", "09:15", "", "N"}, rows[1])
	assert.Equal(t, []string{"Jisoo", "Phonics A", "2026-10-12", "absent", "", "", "N", "sick"}, rows[2])
}

func TestExportRecordsFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.objects.FailPuts(errors.New("bucket unavailable"))

	exp, err := f.exporter.Export(ctx, f.monday)
	require.Error(t, err)
	require.NotNil(t, exp)
	assert.Equal(t, export.StatusFailed, exp.Status)
	assert.Contains(t, exp.Error, "bucket unavailable")

	stored, err := f.log.Find(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, export.StatusFailed, stored.Status)

	_, _, err = f.exporter.Download(ctx, exp.ID)
	assert.ErrorIs(t, err, export.ErrExportNotReady)
}

func TestExportListAndUnknownDownload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.exporter.Export(ctx, f.monday)
	require.NoError(t, err)
	second, err := f.exporter.Export(ctx, f.monday.AddDate(0, 0, 1))
	require.NoError(t, err)

	list, err := f.exporter.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Zero(t, list[1].RecordCount)

	_, _, err = f.exporter.Download(ctx, 99)
	assert.ErrorIs(t, err, export.ErrExportNotFound)
}

func TestObjectKey(t *testing.T) {
	date := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "attendance/2026/03/07/abc.xlsx", export.ObjectKey(date, "abc"))
}

func TestNewScheduler(t *testing.T) {
	f := setup(t)

	c, err := export.NewScheduler(f.exporter, "30 22 * * *")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = export.NewScheduler(f.exporter, "every evening")
	assert.Error(t, err)
}
