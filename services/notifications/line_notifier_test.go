package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"academy_go/models"
	"academy_go/services/attendance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct{ to, text string }

type fakePusher struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (p *fakePusher) Push(to, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{to, text})
	return nil
}

type guardians map[uint]string

func (g guardians) GuardianLineID(_ context.Context, studentID uint) (string, error) {
	return g[studentID], nil
}

func event(status, previous models.AttendanceStatus, studentID uint, makeup bool) attendance.Event {
	checkIn := time.Date(2026, 10, 12, 0, 25, 0, 0, time.UTC)
	return attendance.Event{
		Type:     attendance.EventCheckedIn,
		Previous: previous,
		Record: models.Attendance{
			StudentID:           studentID,
			AttendanceDate:      time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
			CheckInAt:           &checkIn,
			Status:              status,
			IsMakeup:            makeup,
			StudentNameSnapshot: "Minji",
			ClassNameSnapshot:   "Phonics A",
		},
	}
}

func TestLineNotifierPushesAbsenceAndLateness(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	pusher := &fakePusher{}
	n := NewLineNotifier(pusher, guardians{1: "U-guardian-1"}, seoul)

	n.AttendanceChanged(context.Background(), event(models.StatusLate, models.StatusPending, 1, false))
	n.AttendanceChanged(context.Background(), event(models.StatusAbsent, models.StatusLate, 1, false))
	n.Wait()

	require.Len(t, pusher.sent, 2)
	for _, m := range pusher.sent {
		assert.Equal(t, "U-guardian-1", m.to)
		assert.Contains(t, m.text, "Minji")
		assert.Contains(t, m.text, "Phonics A")
	}
	texts := pusher.sent[0].text + pusher.sent[1].text
	assert.Contains(t, texts, "09:25")
	assert.Contains(t, texts, "결석")
}

func TestLineNotifierSkipsQuietEvents(t *testing.T) {
	pusher := &fakePusher{}
	n := NewLineNotifier(pusher, guardians{1: "U-guardian-1"}, time.UTC)

	n.AttendanceChanged(context.Background(), event(models.StatusPresent, models.StatusPending, 1, false))
	n.AttendanceChanged(context.Background(), event(models.StatusLate, models.StatusLate, 1, false))
	n.AttendanceChanged(context.Background(), event(models.StatusLate, models.StatusPending, 1, true))
	n.AttendanceChanged(context.Background(), event(models.StatusAbsent, models.StatusPending, 2, false))
	n.Wait()

	assert.Empty(t, pusher.sent)
}

func TestLineNotifierSwallowsPushErrors(t *testing.T) {
	pusher := &fakePusher{err: errors.New("quota exceeded")}
	n := NewLineNotifier(pusher, guardians{1: "U-guardian-1"}, time.UTC)

	n.AttendanceChanged(context.Background(), event(models.StatusAbsent, models.StatusPending, 1, false))
	n.Wait()
	assert.Empty(t, pusher.sent)
}
