package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"academy_go/models"
	"academy_go/services/attendance"

	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
)

// GuardianLookup resolves the LINE id of a student's guardian; "" when none is registered.
type GuardianLookup interface {
	GuardianLineID(ctx context.Context, studentID uint) (string, error)
}

// Pusher delivers a text message to a LINE user or group.
type Pusher interface {
	Push(to, text string) error
}

type linePusher struct {
	bot *linebot.Client
}

// NewLinePusher creates a LINE Messaging API client. Empty credentials disable pushing.
func NewLinePusher(channelSecret, channelToken string) (Pusher, error) {
	if channelSecret == "" || channelToken == "" {
		return nil, nil
	}
	bot, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		return nil, fmt.Errorf("create LINE bot client: %w", err)
	}
	return &linePusher{bot: bot}, nil
}

func (p *linePusher) Push(to, text string) error {
	if _, err := p.bot.PushMessage(to, linebot.NewTextMessage(text)).Do(); err != nil {
		return fmt.Errorf("LINE Messaging API failed: %w", err)
	}
	return nil
}

// LineNotifier tells guardians when a regular class record turns absent or late.
type LineNotifier struct {
	pusher    Pusher
	guardians GuardianLookup
	loc       *time.Location
	wg        sync.WaitGroup
}

func NewLineNotifier(pusher Pusher, guardians GuardianLookup, loc *time.Location) *LineNotifier {
	return &LineNotifier{pusher: pusher, guardians: guardians, loc: loc}
}

// AttendanceChanged pushes in the background; delivery failures are only logged.
func (n *LineNotifier) AttendanceChanged(ctx context.Context, ev attendance.Event) {
	rec := ev.Record
	if rec.IsMakeup || rec.Status == ev.Previous {
		return
	}
	if rec.Status != models.StatusAbsent && rec.Status != models.StatusLate {
		return
	}

	// the request context ends with the response
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LINE notifier")
			}
		}()

		log := logrus.WithFields(logrus.Fields{"attendance_id": rec.ID, "student_id": rec.StudentID})
		to, err := n.guardians.GuardianLineID(ctx, rec.StudentID)
		if err != nil {
			log.WithError(err).Warn("Failed to resolve guardian LINE id")
			return
		}
		if to == "" {
			return
		}
		if err := n.pusher.Push(to, n.message(rec)); err != nil {
			log.WithError(err).Warn("Failed to notify guardian")
		}
	}()
}

// Wait blocks until pending pushes finish.
func (n *LineNotifier) Wait() {
	n.wg.Wait()
}

func (n *LineNotifier) message(rec models.Attendance) string {
	date := rec.AttendanceDate.Format("2006-01-02")
	if rec.Status == models.StatusAbsent {
		return fmt.Sprintf("[%s] %s 학생이 %s 수업에 결석했습니다.", date, rec.StudentNameSnapshot, rec.ClassNameSnapshot)
	}
	arrived := ""
	if rec.CheckInAt != nil {
		arrived = rec.CheckInAt.In(n.loc).Format("15:04")
	}
	return fmt.Sprintf("[%s] %s 학생이 %s 수업에 지각했습니다 (%s 등원).", date, rec.StudentNameSnapshot, rec.ClassNameSnapshot, arrived)
}
