// Package memory keeps the attendance tables in process memory. It backs DB_DRIVER=memory
// and the engine tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"academy_go/middleware"
	"academy_go/models"
	"academy_go/services/attendance"
	"academy_go/utils"
)

// SessionLink records one link_attendance_to_session call.
type SessionLink struct {
	AttendanceID uint
	StudentID    uint
	ClassID      uint
	Date         string
	Status       models.AttendanceStatus
}

// DB holds every table the engine reads or writes.
type DB struct {
	mutex       sync.RWMutex
	pkCount     uint
	attendances map[uint]*models.Attendance
	schedules   map[uint][]models.ClassSchedule
	students    map[uint]string
	guardians   map[uint]string
	classes     map[uint]string
	employees   map[string]uint
	links       []SessionLink

	failInsert map[uint]error
	failUpdate map[uint]error
	failLink   error
}

// Open returns an empty database.
func Open() *DB {
	return &DB{
		attendances: make(map[uint]*models.Attendance),
		schedules:   make(map[uint][]models.ClassSchedule),
		students:    make(map[uint]string),
		guardians:   make(map[uint]string),
		classes:     make(map[uint]string),
		employees:   make(map[string]uint),
		failInsert:  make(map[uint]error),
		failUpdate:  make(map[uint]error),
	}
}

// AddStudent registers a student name.
func (db *DB) AddStudent(id uint, name string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.students[id] = name
}

// SetGuardianLineID sets the LINE id of a student's guardian.
func (db *DB) SetGuardianLineID(studentID uint, lineID string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.guardians[studentID] = lineID
}

// AddClass registers a class name.
func (db *DB) AddClass(id uint, name string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.classes[id] = name
}

// AddSchedule adds a weekly slot; day is a weekday label such as "월".
func (db *DB) AddSchedule(classID uint, day, start, end string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.schedules[classID] = append(db.schedules[classID], models.ClassSchedule{
		ClassID:   classID,
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
	})
}

// AddEmployee maps an auth id to an employee id.
func (db *DB) AddEmployee(authID string, id uint) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.employees[authID] = id
}

// FailInsertFor makes inserts for studentID return err.
func (db *DB) FailInsertFor(studentID uint, err error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.failInsert[studentID] = err
}

// FailUpdateFor makes updates of attendance id return err.
func (db *DB) FailUpdateFor(id uint, err error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.failUpdate[id] = err
}

// FailLinks makes every session link call return err.
func (db *DB) FailLinks(err error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.failLink = err
}

// SessionLinks returns the session link calls made so far.
func (db *DB) SessionLinks() []SessionLink {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return append([]SessionLink(nil), db.links...)
}

// Count returns the number of attendance rows.
func (db *DB) Count() int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return len(db.attendances)
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

type attendanceStore struct {
	db *DB
}

// NewAttendanceStore returns the attendance table of db.
func NewAttendanceStore(db *DB) attendance.Store {
	return &attendanceStore{db: db}
}

func (s *attendanceStore) FindByID(_ context.Context, id uint) (*models.Attendance, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	if rec, ok := s.db.attendances[id]; ok {
		out := *rec
		return &out, nil
	}
	return nil, fmt.Errorf("attendance %d: %w", id, attendance.ErrAttendanceNotFound)
}

func (s *attendanceStore) FindByKey(_ context.Context, key attendance.Key) (*models.Attendance, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	for _, rec := range s.db.attendances {
		if rec.StudentID == key.StudentID && rec.ClassID == key.ClassID &&
			rec.IsMakeup == key.IsMakeup && sameDay(rec.AttendanceDate, key.Date) {
			out := *rec
			return &out, nil
		}
	}
	return nil, fmt.Errorf("attendance for student %d: %w", key.StudentID, attendance.ErrAttendanceNotFound)
}

func (s *attendanceStore) FindByIDs(_ context.Context, ids []uint) ([]models.Attendance, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	out := make([]models.Attendance, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.db.attendances[id]; ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *attendanceStore) List(_ context.Context, filter attendance.ListFilter) ([]models.Attendance, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	out := make([]models.Attendance, 0)
	for _, rec := range s.db.attendances {
		if filter.ClassID != 0 && rec.ClassID != filter.ClassID {
			continue
		}
		if !sameDay(rec.AttendanceDate, filter.Date) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *attendanceStore) Insert(_ context.Context, rec *models.Attendance) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if err := s.db.failInsert[rec.StudentID]; err != nil {
		return err
	}
	for _, existing := range s.db.attendances {
		if existing.StudentID == rec.StudentID && existing.ClassID == rec.ClassID &&
			existing.IsMakeup == rec.IsMakeup && sameDay(existing.AttendanceDate, rec.AttendanceDate) {
			return fmt.Errorf("insert attendance: %w", attendance.ErrDuplicateAttendance)
		}
	}

	s.db.pkCount++
	now := time.Now()
	rec.ID = s.db.pkCount
	rec.CreatedAt = now
	rec.UpdatedAt = now
	stored := *rec
	s.db.attendances[rec.ID] = &stored
	return nil
}

func (s *attendanceStore) Update(_ context.Context, rec *models.Attendance) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if err := s.db.failUpdate[rec.ID]; err != nil {
		return err
	}
	stored, ok := s.db.attendances[rec.ID]
	if !ok {
		return fmt.Errorf("attendance %d: %w", rec.ID, attendance.ErrAttendanceNotFound)
	}
	stored.CheckInAt = rec.CheckInAt
	stored.CheckOutAt = rec.CheckOutAt
	stored.Status = rec.Status
	stored.AbsenceReason = rec.AbsenceReason
	stored.Note = rec.Note
	stored.UpdatedAt = time.Now()
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *attendanceStore) LinkToSession(_ context.Context, rec *models.Attendance) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	if s.db.failLink != nil {
		return s.db.failLink
	}
	s.db.links = append(s.db.links, SessionLink{
		AttendanceID: rec.ID,
		StudentID:    rec.StudentID,
		ClassID:      rec.ClassID,
		Date:         rec.AttendanceDate.Format("2006-01-02"),
		Status:       rec.Status,
	})
	return nil
}

type scheduleLookup struct {
	db *DB
}

// NewScheduleLookup returns a lookup over the class_schedules table of db.
func NewScheduleLookup(db *DB) attendance.ScheduleLookup {
	return &scheduleLookup{db: db}
}

func (l *scheduleLookup) Lookup(_ context.Context, classID uint, date time.Time) (*attendance.Window, error) {
	l.db.mutex.RLock()
	defer l.db.mutex.RUnlock()

	day := utils.WeekdayLabel(date)
	for _, sch := range l.db.schedules[classID] {
		if sch.DayOfWeek != day {
			continue
		}
		start, err := attendance.ParseClock(sch.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := attendance.ParseClock(sch.EndTime)
		if err != nil {
			return nil, err
		}
		return &attendance.Window{Start: start, End: end}, nil
	}
	return nil, nil
}

// Directory resolves names and guardian contacts from db.
type Directory struct {
	db *DB
}

// NewDirectory returns name lookups over the students and classes of db.
func NewDirectory(db *DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) StudentNames(_ context.Context, ids []uint) (map[uint]string, error) {
	d.db.mutex.RLock()
	defer d.db.mutex.RUnlock()

	out := make(map[uint]string, len(ids))
	for _, id := range ids {
		if name, ok := d.db.students[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (d *Directory) ClassName(_ context.Context, id uint) (string, error) {
	d.db.mutex.RLock()
	defer d.db.mutex.RUnlock()
	return d.db.classes[id], nil
}

func (d *Directory) GuardianLineID(_ context.Context, studentID uint) (string, error) {
	d.db.mutex.RLock()
	defer d.db.mutex.RUnlock()
	return d.db.guardians[studentID], nil
}

type identityResolver struct {
	db *DB
}

// NewIdentityResolver resolves the auth id in the request context against the employees of db.
func NewIdentityResolver(db *DB) attendance.IdentityResolver {
	return &identityResolver{db: db}
}

func (r *identityResolver) ActingStaff(ctx context.Context) (*uint, error) {
	authID, ok := middleware.AuthIDFromContext(ctx)
	if !ok {
		return nil, nil
	}

	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if id, ok := r.db.employees[authID]; ok {
		return &id, nil
	}
	return nil, nil
}
