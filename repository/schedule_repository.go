package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"academy_go/models"
	"academy_go/services/attendance"
	"academy_go/utils"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// negativeCacheTTL caps how long a "no class" answer is cached, so a newly added
// schedule row is picked up quickly.
const negativeCacheTTL = time.Minute

// cachedWindow is the Redis payload; Found=false caches "no class that day".
type cachedWindow struct {
	Found bool `json:"found"`
	Start int  `json:"start"`
	End   int  `json:"end"`
}

// ScheduleRepository resolves class windows from class_schedules, cached in Redis when available.
type ScheduleRepository struct {
	db    *gorm.DB
	redis *redis.Client
	ttl   time.Duration
}

// NewScheduleRepository returns a lookup over db. A nil redis client disables caching.
func NewScheduleRepository(db *gorm.DB, redisClient *redis.Client, ttl time.Duration) *ScheduleRepository {
	return &ScheduleRepository{db: db, redis: redisClient, ttl: ttl}
}

func scheduleCacheKey(classID uint, day string) string {
	return fmt.Sprintf("class_schedule:%d:%s", classID, day)
}

func (r *ScheduleRepository) Lookup(ctx context.Context, classID uint, date time.Time) (*attendance.Window, error) {
	day := utils.WeekdayLabel(date)
	key := scheduleCacheKey(classID, day)

	if cached, ok := r.fromCache(ctx, key); ok {
		if !cached.Found {
			return nil, nil
		}
		return &attendance.Window{Start: attendance.Clock(cached.Start), End: attendance.Clock(cached.End)}, nil
	}

	var sch models.ClassSchedule
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND day_of_week = ?", classID, day).
		Order("start_time").
		First(&sch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.toCache(ctx, key, cachedWindow{Found: false})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find schedule for class %d on %s: %w", classID, day, err)
	}

	start, err := attendance.ParseClock(sch.StartTime)
	if err != nil {
		return nil, fmt.Errorf("schedule %d start: %w", sch.ID, err)
	}
	end, err := attendance.ParseClock(sch.EndTime)
	if err != nil {
		return nil, fmt.Errorf("schedule %d end: %w", sch.ID, err)
	}

	r.toCache(ctx, key, cachedWindow{Found: true, Start: int(start), End: int(end)})
	return &attendance.Window{Start: start, End: end}, nil
}

func (r *ScheduleRepository) fromCache(ctx context.Context, key string) (cachedWindow, bool) {
	var out cachedWindow
	if r.redis == nil {
		return out, false
	}
	raw, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).WithField("key", key).Warn("Schedule cache read failed")
		}
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}

func (r *ScheduleRepository) toCache(ctx context.Context, key string, w cachedWindow) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(w)
	if err != nil {
		return
	}
	ttl := r.ttl
	if !w.Found && ttl > negativeCacheTTL {
		ttl = negativeCacheTTL
	}
	if err := r.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Schedule cache write failed")
	}
}
