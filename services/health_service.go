package services

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusCritical = "critical"

	dependencyUp       = "up"
	dependencyDown     = "down"
	dependencyDisabled = "disabled"

	defaultTimeout = 1500 * time.Millisecond
)

// HealthService reports on the attendance API and its backing stores.
type HealthService struct {
	driver       string
	db           *gorm.DB
	redis        *redis.Client
	boardClients func() int
	environment  string
	startTime    time.Time
	timeout      time.Duration
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status        string             `json:"status"`
	Service       string             `json:"service"`
	Environment   string             `json:"environment"`
	Time          time.Time          `json:"time"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	UptimeHuman   string             `json:"uptime_human"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	BoardClients  int                `json:"board_clients"`
	Goroutines    int                `json:"goroutines"`
	GoVersion     string             `json:"go_version"`
}

// DependencyStatus captures the health of a single backing store.
type DependencyStatus struct {
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewHealthService checks db with the given driver name ("memory" skips SQL) and
// an optional Redis cache. boardClients may be nil.
func NewHealthService(driver string, db *gorm.DB, redisClient *redis.Client, boardClients func() int, environment string) *HealthService {
	if strings.TrimSpace(environment) == "" {
		environment = "unknown"
	}
	return &HealthService{
		driver:       driver,
		db:           db,
		redis:        redisClient,
		boardClients: boardClients,
		environment:  environment,
		startTime:    time.Now(),
		timeout:      defaultTimeout,
	}
}

// GetHealthReport probes the dependencies and summarises the result.
func (s *HealthService) GetHealthReport(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	uptime := time.Since(s.startTime)
	report := HealthReport{
		Status:        StatusOK,
		Service:       "Academy Attendance API",
		Environment:   s.environment,
		Time:          time.Now().UTC(),
		UptimeSeconds: uptime.Seconds(),
		UptimeHuman:   humanizeDuration(uptime),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
	}
	if s.boardClients != nil {
		report.BoardClients = s.boardClients()
	}

	dbDep, dbStatus := s.checkDatabase(ctx)
	redisDep, redisStatus := s.checkRedis(ctx)
	report.Dependencies = []DependencyStatus{dbDep, redisDep}
	report.Status = combineStatus(combineStatus(report.Status, dbStatus), redisStatus)
	return report
}

// HTTPStatus maps an overall status to an HTTP status code.
func HTTPStatus(status string) int {
	if status == StatusCritical {
		return 503
	}
	return 200
}

func (s *HealthService) checkDatabase(ctx context.Context) (DependencyStatus, string) {
	dep := DependencyStatus{Name: s.driver}
	if s.driver == "memory" {
		dep.Status = dependencyUp
		dep.Details = map[string]interface{}{"mode": "in-process"}
		return dep, StatusOK
	}
	if s.db == nil {
		dep.Status = dependencyDown
		dep.Error = "database connection not initialised"
		return dep, StatusCritical
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		dep.Status = dependencyDown
		dep.Error = fmt.Sprintf("sql DB handle error: %v", err)
		return dep, StatusCritical
	}

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyDown
		dep.Error = err.Error()
		return dep, StatusCritical
	}

	stats := sqlDB.Stats()
	dep.Status = dependencyUp
	dep.Details = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}
	return dep, StatusOK
}

// Redis only caches schedules, so losing it degrades but never fails the service.
func (s *HealthService) checkRedis(ctx context.Context) (DependencyStatus, string) {
	dep := DependencyStatus{Name: "redis"}
	if s.redis == nil {
		dep.Status = dependencyDisabled
		return dep, StatusOK
	}

	start := time.Now()
	err := s.redis.Ping(ctx).Err()
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyDown
		dep.Error = err.Error()
		return dep, StatusDegraded
	}
	dep.Status = dependencyUp
	dep.Details = map[string]interface{}{"address": s.redis.Options().Addr}
	return dep, StatusOK
}

func combineStatus(current, candidate string) string {
	order := map[string]int{
		StatusOK:       0,
		StatusDegraded: 1,
		StatusCritical: 2,
	}
	if order[candidate] > order[current] {
		return candidate
	}
	return current
}

func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}

	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d %= 24 * time.Hour
	hours := d / time.Hour
	d %= time.Hour
	minutes := d / time.Minute
	d %= time.Minute
	seconds := d / time.Second

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
