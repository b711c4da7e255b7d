package attendance

import (
	"context"
	"time"

	"academy_go/models"
)

// Key identifies the unique attendance slot of a student.
type Key struct {
	StudentID uint
	ClassID   uint
	Date      time.Time
	IsMakeup  bool
}

// ListFilter narrows List. Zero ClassID matches every class.
type ListFilter struct {
	ClassID uint
	Date    time.Time
}

// Store is the transactional attendance table plus the session-link procedure.
type Store interface {
	FindByID(ctx context.Context, id uint) (*models.Attendance, error)
	FindByKey(ctx context.Context, key Key) (*models.Attendance, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Attendance, error)
	List(ctx context.Context, filter ListFilter) ([]models.Attendance, error)
	// Insert must return an error wrapping ErrDuplicateAttendance on a unique violation.
	Insert(ctx context.Context, rec *models.Attendance) error
	// Update persists the mutable fields of rec: check-in, check-out, status, absence reason and note.
	Update(ctx context.Context, rec *models.Attendance) error
	LinkToSession(ctx context.Context, rec *models.Attendance) error
}

// ScheduleLookup resolves the scheduled window of a class on a date.
// A nil window with a nil error means the class does not meet that day.
type ScheduleLookup interface {
	Lookup(ctx context.Context, classID uint, date time.Time) (*Window, error)
}

// Directory resolves display names for snapshots. Unknown ids resolve to "".
type Directory interface {
	StudentNames(ctx context.Context, ids []uint) (map[uint]string, error)
	ClassName(ctx context.Context, id uint) (string, error)
}

// IdentityResolver maps the caller in ctx to an employee id, nil when there is no match.
type IdentityResolver interface {
	ActingStaff(ctx context.Context) (*uint, error)
}

// EventType names what happened to a record.
type EventType string

const (
	EventCheckedIn    EventType = "checked_in"
	EventCheckedOut   EventType = "checked_out"
	EventMarkedAbsent EventType = "marked_absent"
	EventCorrected    EventType = "corrected"
)

// Event is published after a successful write.
type Event struct {
	Type     EventType
	Record   models.Attendance
	Previous models.AttendanceStatus
}

// Listener receives events. Implementations must not block.
type Listener interface {
	AttendanceChanged(ctx context.Context, ev Event)
}
