package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// AttendanceStatus is the derived state of an attendance row.
type AttendanceStatus string

const (
	StatusPending    AttendanceStatus = "pending"
	StatusPresent    AttendanceStatus = "present"
	StatusLate       AttendanceStatus = "late"
	StatusEarlyLeave AttendanceStatus = "early_leave"
	StatusAbsent     AttendanceStatus = "absent"
)

// Valid reports whether s is one of the known statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPresent, StatusLate, StatusEarlyLeave, StatusAbsent:
		return true
	}
	return false
}

func (s AttendanceStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid attendance status %q", string(s))
	}
	return string(s), nil
}

func (s *AttendanceStatus) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into AttendanceStatus", value)
	}
	status := AttendanceStatus(raw)
	if !status.Valid() {
		return fmt.Errorf("invalid attendance status %q", raw)
	}
	*s = status
	return nil
}

// AbsenceReason explains an absent record.
type AbsenceReason string

const (
	AbsenceSick     AbsenceReason = "sick"
	AbsenceFamily   AbsenceReason = "family"
	AbsenceTravel   AbsenceReason = "travel"
	AbsencePersonal AbsenceReason = "personal"
	AbsenceOther    AbsenceReason = "other"
)

func (r AbsenceReason) Valid() bool {
	switch r {
	case AbsenceSick, AbsenceFamily, AbsenceTravel, AbsencePersonal, AbsenceOther:
		return true
	}
	return false
}

func (r AbsenceReason) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid absence reason %q", string(r))
	}
	return string(r), nil
}

func (r *AbsenceReason) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into AbsenceReason", value)
	}
	reason := AbsenceReason(raw)
	if !reason.Valid() {
		return fmt.Errorf("invalid absence reason %q", raw)
	}
	*r = reason
	return nil
}

// Employee is a staff member; AuthID links to the identity provider subject.
type Employee struct {
	BaseModel
	AuthID string `json:"auth_id" gorm:"size:100;uniqueIndex;not null"`
	Name   string `json:"name" gorm:"size:200;not null"`
	Role   string `json:"role" gorm:"size:50;not null;default:'teacher'"`
}

// Student model
type Student struct {
	BaseModel
	Name           string `json:"name" gorm:"size:200;not null"`
	GuardianName   string `json:"guardian_name" gorm:"size:200"`
	GuardianLineID string `json:"guardian_line_id" gorm:"size:100"`
	Status         string `json:"status" gorm:"size:50;not null;default:'active'"`
}

// Class model
type Class struct {
	BaseModel
	Name   string `json:"name" gorm:"size:200;not null"`
	Status string `json:"status" gorm:"size:50;not null;default:'active'"`

	Schedules []ClassSchedule `json:"schedules,omitempty" gorm:"foreignKey:ClassID"`
}

// ClassSchedule is one weekly slot of a class. DayOfWeek holds the local weekday label
// (월, 화, 수, 목, 금, 토, 일); StartTime/EndTime are HH:MM[:SS] strings.
type ClassSchedule struct {
	BaseModel
	ClassID   uint   `json:"class_id" gorm:"not null;index:idx_class_day"`
	DayOfWeek string `json:"day_of_week" gorm:"size:10;not null;index:idx_class_day"`
	StartTime string `json:"start_time" gorm:"size:8;not null"`
	EndTime   string `json:"end_time" gorm:"size:8;not null"`
}

// Attendance is one row per (student, class, date, is_makeup).
type Attendance struct {
	BaseModel
	StudentID           uint             `json:"student_id" gorm:"not null;uniqueIndex:uq_attendance_key"`
	ClassID             uint             `json:"class_id" gorm:"not null;uniqueIndex:uq_attendance_key"`
	MakeupClassID       *uint            `json:"makeup_class_id"`
	AttendanceDate      time.Time        `json:"attendance_date" gorm:"type:date;not null;uniqueIndex:uq_attendance_key"`
	IsMakeup            bool             `json:"is_makeup" gorm:"not null;default:false;uniqueIndex:uq_attendance_key"`
	CheckInAt           *time.Time       `json:"check_in_at"`
	CheckOutAt          *time.Time       `json:"check_out_at"`
	Status              AttendanceStatus `json:"status" gorm:"size:20;not null;default:'pending'"`
	AbsenceReason       *AbsenceReason   `json:"absence_reason" gorm:"size:20"`
	Note                *string          `json:"note" gorm:"type:text"`
	StudentNameSnapshot string           `json:"student_name_snapshot" gorm:"size:200"`
	ClassNameSnapshot   string           `json:"class_name_snapshot" gorm:"size:200"`
	CreatedBy           *uint            `json:"created_by"`
}

func (Attendance) TableName() string { return "attendances" }

// AttendanceExport tracks generated attendance workbooks stored in S3.
type AttendanceExport struct {
	BaseModel
	ExportDate  time.Time `json:"export_date" gorm:"type:date;not null;index"`
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
