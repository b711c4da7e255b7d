package export

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NewScheduler runs Export(today) on spec, evaluated in the exporter's zone.
// The returned cron is not started.
func NewScheduler(e *Exporter, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(e.loc))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := e.Export(ctx, e.Today()); err != nil {
			logrus.WithError(err).Warn("Scheduled attendance export failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid export schedule %q: %w", spec, err)
	}
	return c, nil
}
