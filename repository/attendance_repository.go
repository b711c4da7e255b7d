package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"academy_go/models"
	"academy_go/services/attendance"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// AttendanceRepository is the GORM backed attendance Store.
type AttendanceRepository struct {
	db  *gorm.DB
	loc *time.Location
}

// NewAttendanceRepository returns a Store over db. Dates read back are placed in loc.
func NewAttendanceRepository(db *gorm.DB, loc *time.Location) *AttendanceRepository {
	return &AttendanceRepository{db: db, loc: loc}
}

// civil rebuilds a DATE column value as midnight in the academy zone, keeping its calendar day.
func (r *AttendanceRepository) civil(rec *models.Attendance) {
	d := rec.AttendanceDate
	rec.AttendanceDate = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
}

func (r *AttendanceRepository) FindByID(ctx context.Context, id uint) (*models.Attendance, error) {
	var rec models.Attendance
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attendance %d: %w", id, attendance.ErrAttendanceNotFound)
		}
		return nil, fmt.Errorf("find attendance %d: %w", id, err)
	}
	r.civil(&rec)
	return &rec, nil
}

func (r *AttendanceRepository) FindByKey(ctx context.Context, key attendance.Key) (*models.Attendance, error) {
	var rec models.Attendance
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND class_id = ? AND attendance_date = ? AND is_makeup = ?",
			key.StudentID, key.ClassID, key.Date.Format(dateLayout), key.IsMakeup).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attendance for student %d: %w", key.StudentID, attendance.ErrAttendanceNotFound)
		}
		return nil, fmt.Errorf("find attendance by key: %w", err)
	}
	r.civil(&rec)
	return &rec, nil
}

func (r *AttendanceRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Attendance, error) {
	var recs []models.Attendance
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("find attendances: %w", err)
	}
	for i := range recs {
		r.civil(&recs[i])
	}
	return recs, nil
}

func (r *AttendanceRepository) List(ctx context.Context, filter attendance.ListFilter) ([]models.Attendance, error) {
	query := r.db.WithContext(ctx).Where("attendance_date = ?", filter.Date.Format(dateLayout))
	if filter.ClassID != 0 {
		query = query.Where("class_id = ?", filter.ClassID)
	}

	var recs []models.Attendance
	if err := query.Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list attendances: %w", err)
	}
	for i := range recs {
		r.civil(&recs[i])
	}
	return recs, nil
}

func (r *AttendanceRepository) Insert(ctx context.Context, rec *models.Attendance) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert attendance: %w", attendance.ErrDuplicateAttendance)
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) Update(ctx context.Context, rec *models.Attendance) error {
	result := r.db.WithContext(ctx).
		Model(&models.Attendance{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"check_in_at":    rec.CheckInAt,
			"check_out_at":   rec.CheckOutAt,
			"status":         rec.Status,
			"absence_reason": rec.AbsenceReason,
			"note":           rec.Note,
		})
	if result.Error != nil {
		return fmt.Errorf("update attendance %d: %w", rec.ID, result.Error)
	}
	return nil
}

// LinkToSession calls the link_attendance_to_session stored procedure.
func (r *AttendanceRepository) LinkToSession(ctx context.Context, rec *models.Attendance) error {
	stmt := "CALL link_attendance_to_session(?, ?, ?, ?, ?)"
	if r.db.Dialector.Name() == "postgres" {
		stmt = "SELECT link_attendance_to_session(?, ?, ?, ?, ?)"
	}
	err := r.db.WithContext(ctx).Exec(stmt,
		rec.ID, rec.StudentID, rec.ClassID, rec.AttendanceDate.Format(dateLayout), string(rec.Status),
	).Error
	if err != nil {
		return fmt.Errorf("link attendance %d to session: %w", rec.ID, err)
	}
	return nil
}

// isUniqueViolation recognises duplicate-key errors from GORM's translator, MySQL (1062)
// and Postgres (23505).
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
