package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"academy_go/models"
	"academy_go/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Service is the attendance engine. It derives statuses from timestamps, records
// check-in/check-out/absence events and keeps the session view in sync.
type Service struct {
	store     Store
	schedules ScheduleLookup
	directory Directory
	identity  IdentityResolver
	loc       *time.Location
	now       func() time.Time
	listeners []Listener
}

// Options tune a Service. Zero values fall back to time.Local and time.Now.
type Options struct {
	Location  *time.Location
	Now       func() time.Time
	Listeners []Listener
}

// NewService creates an engine over the given collaborators.
func NewService(store Store, schedules ScheduleLookup, directory Directory, identity IdentityResolver, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		schedules: schedules,
		directory: directory,
		identity:  identity,
		loc:       loc,
		now:       now,
		listeners: opts.Listeners,
	}
}

// Subscribe registers a listener. Call before serving traffic.
func (s *Service) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Location returns the academy time zone used for classification.
func (s *Service) Location() *time.Location {
	return s.loc
}

// CheckInRequest describes a single check-in.
type CheckInRequest struct {
	StudentID      uint
	ClassID        uint
	AttendanceDate time.Time
	CheckInAt      *time.Time
	IsMakeup       bool
	MakeupClassID  *uint
	Note           *string
}

// AbsenceRequest describes a mark-absent call.
type AbsenceRequest struct {
	StudentID     uint
	ClassID       uint
	Date          time.Time
	Note          *string
	AbsenceReason *models.AbsenceReason
}

// TimeCorrection carries retroactive time edits. Nil fields keep the stored value.
type TimeCorrection struct {
	CheckInAt  *time.Time
	CheckOutAt *time.Time
}

// Today is the current civil date in the academy zone.
func (s *Service) Today() time.Time {
	return utils.CivilDate(s.now(), s.loc)
}

// Get returns a record by id.
func (s *Service) Get(ctx context.Context, id uint) (*models.Attendance, error) {
	return s.store.FindByID(ctx, id)
}

// List returns the records matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Attendance, error) {
	filter.Date = utils.CivilDate(filter.Date, s.loc)
	return s.store.List(ctx, filter)
}

// CheckIn records an arrival. A duplicate check-in for the same slot returns the
// record that already exists instead of failing.
func (s *Service) CheckIn(ctx context.Context, req CheckInRequest) (*models.Attendance, error) {
	checkInAt := s.instant(req.CheckInAt)
	date := utils.CivilDate(req.AttendanceDate, s.loc)

	status := models.StatusPresent
	if !req.IsMakeup {
		window, err := s.schedules.Lookup(ctx, req.ClassID, date)
		if err != nil {
			return nil, fmt.Errorf("lookup schedule: %w", err)
		}
		if window == nil {
			return nil, fmt.Errorf("class %d on %s: %w", req.ClassID, date.Format("2006-01-02"), ErrNotClassDay)
		}
		status = DetermineStatus(s.loc, &checkInAt, nil, *window)
	}

	snap, err := s.snapshots(ctx, []uint{req.StudentID}, req.ClassID)
	if err != nil {
		return nil, err
	}

	rec := &models.Attendance{
		StudentID:           req.StudentID,
		ClassID:             req.ClassID,
		AttendanceDate:      date,
		IsMakeup:            req.IsMakeup,
		CheckInAt:           &checkInAt,
		Status:              status,
		Note:                req.Note,
		StudentNameSnapshot: snap.students[req.StudentID],
		ClassNameSnapshot:   snap.class,
		CreatedBy:           snap.staff,
	}
	if req.IsMakeup {
		rec.MakeupClassID = req.MakeupClassID
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateAttendance) {
			return s.store.FindByKey(ctx, keyOf(rec))
		}
		return nil, err
	}

	if !rec.IsMakeup {
		s.linkSession(ctx, rec)
	}
	s.publish(ctx, Event{Type: EventCheckedIn, Record: *rec, Previous: models.StatusPending})
	return rec, nil
}

// CheckOut records a departure and reclassifies regular attendance.
func (s *Service) CheckOut(ctx context.Context, id uint, checkOutAt *time.Time) (*models.Attendance, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	at := s.instant(checkOutAt)
	previous := rec.Status
	rec.CheckOutAt = &at

	if !rec.IsMakeup && rec.CheckInAt != nil {
		window, err := s.schedules.Lookup(ctx, rec.ClassID, rec.AttendanceDate)
		if err != nil {
			return nil, fmt.Errorf("lookup schedule: %w", err)
		}
		if window != nil {
			rec.Status = DetermineStatus(s.loc, rec.CheckInAt, rec.CheckOutAt, *window)
		}
	}

	if err := s.store.Update(ctx, rec); err != nil {
		return nil, err
	}

	if !rec.IsMakeup {
		s.linkSession(ctx, rec)
	}
	s.publish(ctx, Event{Type: EventCheckedOut, Record: *rec, Previous: previous})
	return rec, nil
}

// MarkAbsent records an absence, converting an existing record of the same slot when present.
func (s *Service) MarkAbsent(ctx context.Context, req AbsenceRequest) (*models.Attendance, error) {
	date := utils.CivilDate(req.Date, s.loc)

	snap, err := s.snapshots(ctx, []uint{req.StudentID}, req.ClassID)
	if err != nil {
		return nil, err
	}

	rec := &models.Attendance{
		StudentID:           req.StudentID,
		ClassID:             req.ClassID,
		AttendanceDate:      date,
		Status:              models.StatusAbsent,
		AbsenceReason:       req.AbsenceReason,
		Note:                req.Note,
		StudentNameSnapshot: snap.students[req.StudentID],
		ClassNameSnapshot:   snap.class,
		CreatedBy:           snap.staff,
	}
	previous := models.StatusPending

	if err := s.store.Insert(ctx, rec); err != nil {
		if !errors.Is(err, ErrDuplicateAttendance) {
			return nil, err
		}

		existing, err := s.store.FindByKey(ctx, keyOf(rec))
		if err != nil {
			return nil, err
		}
		previous = existing.Status
		existing.Status = models.StatusAbsent
		existing.AbsenceReason = req.AbsenceReason
		if req.Note != nil {
			existing.Note = req.Note
		}
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, err
		}
		rec = existing
	}

	s.linkSession(ctx, rec)
	s.publish(ctx, Event{Type: EventMarkedAbsent, Record: *rec, Previous: previous})
	return rec, nil
}

// UpdateWithAutoStatus applies a time correction and re-derives the status from the merged times.
func (s *Service) UpdateWithAutoStatus(ctx context.Context, id uint, c TimeCorrection) (*models.Attendance, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := rec.Status
	if c.CheckInAt != nil {
		at := *c.CheckInAt
		rec.CheckInAt = &at
	}
	if c.CheckOutAt != nil {
		at := *c.CheckOutAt
		rec.CheckOutAt = &at
	}

	if !rec.IsMakeup && rec.CheckInAt != nil {
		window, err := s.schedules.Lookup(ctx, rec.ClassID, rec.AttendanceDate)
		if err != nil {
			return nil, fmt.Errorf("lookup schedule: %w", err)
		}
		if window != nil {
			rec.Status = DetermineStatus(s.loc, rec.CheckInAt, rec.CheckOutAt, *window)
		}
	}

	if previous == models.StatusAbsent && rec.Status != models.StatusAbsent {
		rec.AbsenceReason = nil
	}

	if err := s.store.Update(ctx, rec); err != nil {
		return nil, err
	}

	if !rec.IsMakeup {
		s.linkSession(ctx, rec)
	}
	s.publish(ctx, Event{Type: EventCorrected, Record: *rec, Previous: previous})
	return rec, nil
}

// RevertAbsent records that an absent student did show up at checkInAt.
func (s *Service) RevertAbsent(ctx context.Context, id uint, checkInAt time.Time) (*models.Attendance, error) {
	return s.UpdateWithAutoStatus(ctx, id, TimeCorrection{CheckInAt: &checkInAt})
}

type snapshot struct {
	students map[uint]string
	class    string
	staff    *uint
}

func (s *Service) snapshots(ctx context.Context, studentIDs []uint, classID uint) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		names, err := s.directory.StudentNames(gctx, studentIDs)
		snap.students = names
		return err
	})
	g.Go(func() error {
		name, err := s.directory.ClassName(gctx, classID)
		snap.class = name
		return err
	})
	g.Go(func() error {
		staff, err := s.identity.ActingStaff(gctx)
		snap.staff = staff
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("resolve snapshots: %w", err)
	}
	if snap.students == nil {
		snap.students = map[uint]string{}
	}
	return snap, nil
}

// linkSession is best-effort: failures are logged, the attendance write stands.
func (s *Service) linkSession(ctx context.Context, rec *models.Attendance) {
	if err := s.store.LinkToSession(ctx, rec); err != nil {
		logrus.WithFields(logrus.Fields{
			"attendance_id": rec.ID,
			"student_id":    rec.StudentID,
			"class_id":      rec.ClassID,
			"status":        rec.Status,
		}).WithError(err).Warn("Failed to link attendance to session")
	}
}

func (s *Service) publish(ctx context.Context, ev Event) {
	for _, l := range s.listeners {
		l.AttendanceChanged(ctx, ev)
	}
}

func (s *Service) instant(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return s.now()
}

func keyOf(rec *models.Attendance) Key {
	return Key{
		StudentID: rec.StudentID,
		ClassID:   rec.ClassID,
		Date:      rec.AttendanceDate,
		IsMakeup:  rec.IsMakeup,
	}
}
