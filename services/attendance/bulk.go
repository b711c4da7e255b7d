package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"academy_go/models"
	"academy_go/utils"

	"github.com/sirupsen/logrus"
)

// BulkFailure reports one student whose write did not go through.
type BulkFailure struct {
	StudentName string `json:"student_name"`
	Error       string `json:"error"`
}

// BulkResult separates the committed subset from per-student failures.
type BulkResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkCheckIn checks in every student of a class for one date. Schedule, class name and
// acting staff are resolved once; the per-student inserts run concurrently and never
// abort each other. A missing schedule fails the whole call before any write.
func (s *Service) BulkCheckIn(ctx context.Context, classID uint, attendanceDate time.Time, studentIDs []uint, checkInAt *time.Time) (*BulkResult, error) {
	at := s.instant(checkInAt)
	date := utils.CivilDate(attendanceDate, s.loc)

	window, err := s.schedules.Lookup(ctx, classID, date)
	if err != nil {
		return nil, fmt.Errorf("lookup schedule: %w", err)
	}
	if window == nil {
		return nil, fmt.Errorf("class %d on %s: %w", classID, date.Format("2006-01-02"), ErrNotClassDay)
	}
	status := DetermineStatus(s.loc, &at, nil, *window)

	snap, err := s.snapshots(ctx, studentIDs, classID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]error, len(studentIDs))
	var wg sync.WaitGroup
	for i, studentID := range studentIDs {
		wg.Add(1)
		go func(i int, studentID uint) {
			defer wg.Done()
			checkIn := at
			outcomes[i] = s.insertCheckIn(ctx, &models.Attendance{
				StudentID:           studentID,
				ClassID:             classID,
				AttendanceDate:      date,
				CheckInAt:           &checkIn,
				Status:              status,
				StudentNameSnapshot: snap.students[studentID],
				ClassNameSnapshot:   snap.class,
				CreatedBy:           snap.staff,
			})
		}(i, studentID)
	}
	wg.Wait()

	result := &BulkResult{Failed: []BulkFailure{}}
	for i, studentID := range studentIDs {
		if outcomes[i] == nil {
			result.Succeeded++
			continue
		}
		result.Failed = append(result.Failed, BulkFailure{
			StudentName: displayName(snap.students[studentID], studentID),
			Error:       outcomes[i].Error(),
		})
	}

	logrus.WithFields(logrus.Fields{
		"class_id":  classID,
		"date":      date.Format("2006-01-02"),
		"succeeded": result.Succeeded,
		"failed":    len(result.Failed),
	}).Info("Bulk check-in finished")
	return result, nil
}

// insertCheckIn treats an existing record for the same slot as success.
func (s *Service) insertCheckIn(ctx context.Context, rec *models.Attendance) error {
	if err := s.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateAttendance) {
			return nil
		}
		return err
	}
	s.linkSession(ctx, rec)
	s.publish(ctx, Event{Type: EventCheckedIn, Record: *rec, Previous: models.StatusPending})
	return nil
}

// BulkCheckOut checks out the given records. The schedule of the first record is shared
// by all of them; every update is independent.
func (s *Service) BulkCheckOut(ctx context.Context, attendanceIDs []uint, checkOutAt *time.Time) (*BulkResult, error) {
	result := &BulkResult{Failed: []BulkFailure{}}
	if len(attendanceIDs) == 0 {
		return result, nil
	}
	at := s.instant(checkOutAt)

	records, err := s.store.FindByIDs(ctx, attendanceIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Attendance, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	var window *Window
	for _, id := range attendanceIDs {
		first, ok := byID[id]
		if !ok {
			continue
		}
		window, err = s.schedules.Lookup(ctx, first.ClassID, first.AttendanceDate)
		if err != nil {
			return nil, fmt.Errorf("lookup schedule: %w", err)
		}
		break
	}

	outcomes := make([]error, len(attendanceIDs))
	var wg sync.WaitGroup
	for i, id := range attendanceIDs {
		rec, ok := byID[id]
		if !ok {
			outcomes[i] = ErrAttendanceNotFound
			continue
		}
		wg.Add(1)
		go func(i int, rec models.Attendance) {
			defer wg.Done()
			outcomes[i] = s.applyCheckOut(ctx, &rec, at, window)
		}(i, rec)
	}
	wg.Wait()

	for i, id := range attendanceIDs {
		if outcomes[i] == nil {
			result.Succeeded++
			continue
		}
		name := fmt.Sprintf("attendance %d", id)
		if rec, ok := byID[id]; ok {
			name = displayName(rec.StudentNameSnapshot, rec.StudentID)
		}
		result.Failed = append(result.Failed, BulkFailure{StudentName: name, Error: outcomes[i].Error()})
	}

	logrus.WithFields(logrus.Fields{
		"records":   len(attendanceIDs),
		"succeeded": result.Succeeded,
		"failed":    len(result.Failed),
	}).Info("Bulk check-out finished")
	return result, nil
}

func (s *Service) applyCheckOut(ctx context.Context, rec *models.Attendance, at time.Time, window *Window) error {
	previous := rec.Status
	rec.CheckOutAt = &at
	if !rec.IsMakeup && rec.CheckInAt != nil && window != nil {
		rec.Status = DetermineStatus(s.loc, rec.CheckInAt, rec.CheckOutAt, *window)
	}
	if err := s.store.Update(ctx, rec); err != nil {
		return err
	}
	if !rec.IsMakeup {
		s.linkSession(ctx, rec)
	}
	s.publish(ctx, Event{Type: EventCheckedOut, Record: *rec, Previous: previous})
	return nil
}

func displayName(name string, studentID uint) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("student %d", studentID)
}
