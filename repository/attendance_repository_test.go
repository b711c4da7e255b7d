package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"academy_go/models"
	"academy_go/repository/memory"
	"academy_go/services/attendance"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var attendanceColumns = []string{"id", "student_id", "class_id", "attendance_date", "is_makeup", "check_in_at", "status"}

func mockGorm(t *testing.T, driver string) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	default:
		dialector = gormmysql.New(gormmysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true})
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func seoulLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return loc
}

func TestAttendanceInsertAssignsID(t *testing.T) {
	db, mock := mockGorm(t, "mysql")
	seoul := seoulLocation(t)
	repo := NewAttendanceRepository(db, seoul)

	mock.ExpectExec("INSERT INTO `attendances`").WillReturnResult(sqlmock.NewResult(5, 1))

	rec := &models.Attendance{
		StudentID:      1,
		ClassID:        1,
		AttendanceDate: time.Date(2026, 10, 12, 0, 0, 0, 0, seoul),
		Status:         models.StatusPresent,
	}
	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.Equal(t, uint(5), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceInsertDuplicate(t *testing.T) {
	db, mock := mockGorm(t, "mysql")
	repo := NewAttendanceRepository(db, seoulLocation(t))

	mock.ExpectExec("INSERT INTO `attendances`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-1-2026-10-12-0' for key 'uq_attendance_key'"})

	err := repo.Insert(context.Background(), &models.Attendance{StudentID: 1, ClassID: 1, Status: models.StatusPresent})
	assert.ErrorIs(t, err, attendance.ErrDuplicateAttendance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceFindByKeyBindsCalendarDay(t *testing.T) {
	db, mock := mockGorm(t, "mysql")
	seoul := seoulLocation(t)
	repo := NewAttendanceRepository(db, seoul)

	checkIn := time.Date(2026, 10, 12, 9, 5, 0, 0, seoul)
	mock.ExpectQuery("SELECT \\* FROM `attendances` WHERE").
		WithArgs(1, 2, "2026-10-12", false, 1).
		WillReturnRows(sqlmock.NewRows(attendanceColumns).
			AddRow(int64(7), int64(1), int64(2), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), false, checkIn, "present"))

	rec, err := repo.FindByKey(context.Background(), attendance.Key{
		StudentID: 1,
		ClassID:   2,
		Date:      time.Date(2026, 10, 12, 0, 0, 0, 0, seoul),
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), rec.ID)
	assert.Equal(t, models.StatusPresent, rec.Status)
	assert.Equal(t, "2026-10-12", rec.AttendanceDate.Format(dateLayout))
	assert.Equal(t, seoul, rec.AttendanceDate.Location())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceFindByKeyNotFound(t *testing.T) {
	db, mock := mockGorm(t, "mysql")
	seoul := seoulLocation(t)
	repo := NewAttendanceRepository(db, seoul)

	mock.ExpectQuery("SELECT \\* FROM `attendances` WHERE").
		WillReturnRows(sqlmock.NewRows(attendanceColumns))

	_, err := repo.FindByKey(context.Background(), attendance.Key{StudentID: 1, ClassID: 2, Date: time.Date(2026, 10, 12, 0, 0, 0, 0, seoul)})
	assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceUpdateWritesNullAbsenceReason(t *testing.T) {
	db, mock := mockGorm(t, "mysql")
	seoul := seoulLocation(t)
	repo := NewAttendanceRepository(db, seoul)

	checkIn := time.Date(2026, 10, 12, 9, 5, 0, 0, seoul)
	rec := &models.Attendance{
		StudentID:      1,
		ClassID:        1,
		AttendanceDate: time.Date(2026, 10, 12, 0, 0, 0, 0, seoul),
		CheckInAt:      &checkIn,
		Status:         models.StatusPresent,
	}
	rec.ID = 7

	// Map keys are written in sorted order, updated_at last.
	mock.ExpectExec("UPDATE `attendances` SET").
		WithArgs(nil, checkIn, nil, nil, "present", sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkToSessionUsesDialectCall(t *testing.T) {
	tests := []struct {
		driver string
		stmt   string
	}{
		{"mysql", "CALL link_attendance_to_session(?, ?, ?, ?, ?)"},
		{"postgres", "SELECT link_attendance_to_session($1, $2, $3, $4, $5)"},
	}

	for _, tc := range tests {
		t.Run(tc.driver, func(t *testing.T) {
			db, mock := mockGorm(t, tc.driver)
			seoul := seoulLocation(t)
			repo := NewAttendanceRepository(db, seoul)

			rec := &models.Attendance{
				StudentID:      3,
				ClassID:        1,
				AttendanceDate: time.Date(2026, 10, 12, 0, 0, 0, 0, seoul),
				Status:         models.StatusLate,
			}
			rec.ID = 9

			mock.ExpectExec(regexp.QuoteMeta(tc.stmt)).
				WithArgs(9, 3, 1, "2026-10-12", "late").
				WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, repo.LinkToSession(context.Background(), rec))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckInDuplicateFallsBackToStoredRow(t *testing.T) {
	db, mock := mockGorm(t, "mysql")
	seoul := seoulLocation(t)

	mem := memory.Open()
	mem.AddClass(1, "Phonics A")
	mem.AddSchedule(1, "월", "09:00", "10:00")
	mem.AddStudent(1, "Minji")

	firstCheckIn := time.Date(2026, 10, 12, 9, 2, 0, 0, seoul)
	svc := attendance.NewService(
		NewAttendanceRepository(db, seoul),
		memory.NewScheduleLookup(mem),
		memory.NewDirectory(mem),
		memory.NewIdentityResolver(mem),
		attendance.Options{Location: seoul},
	)

	mock.ExpectExec("INSERT INTO `attendances`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectQuery("SELECT \\* FROM `attendances` WHERE").
		WithArgs(1, 1, "2026-10-12", false, 1).
		WillReturnRows(sqlmock.NewRows(attendanceColumns).
			AddRow(int64(11), int64(1), int64(1), time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), false, firstCheckIn, "present"))

	second := time.Date(2026, 10, 12, 9, 20, 0, 0, seoul)
	rec, err := svc.CheckIn(context.Background(), attendance.CheckInRequest{
		StudentID:      1,
		ClassID:        1,
		AttendanceDate: time.Date(2026, 10, 12, 0, 0, 0, 0, seoul),
		CheckInAt:      &second,
	})
	require.NoError(t, err)
	assert.Equal(t, uint(11), rec.ID)
	require.NotNil(t, rec.CheckInAt)
	assert.True(t, firstCheckIn.Equal(*rec.CheckInAt))
	assert.Equal(t, models.StatusPresent, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
