package attendance

import "errors"

var (
	// ErrNotClassDay is returned when a regular check-in targets a day the class does not meet.
	ErrNotClassDay = errors.New("not a class day")

	// ErrAttendanceNotFound is returned when an attendance id does not exist.
	ErrAttendanceNotFound = errors.New("attendance not found")

	// ErrDuplicateAttendance is returned by a Store when an insert hits the
	// (student, class, date, is_makeup) unique constraint.
	ErrDuplicateAttendance = errors.New("attendance already recorded")
)
