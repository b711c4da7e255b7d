package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"academy_go/models"
	"academy_go/services/export"
)

// ExportLog keeps attendance_exports rows.
type ExportLog struct {
	mutex   sync.RWMutex
	pkCount uint
	rows    map[uint]models.AttendanceExport
}

func NewExportLog() *ExportLog {
	return &ExportLog{rows: make(map[uint]models.AttendanceExport)}
}

func (l *ExportLog) Create(_ context.Context, exp *models.AttendanceExport) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.pkCount++
	now := time.Now()
	exp.ID = l.pkCount
	exp.CreatedAt = now
	exp.UpdatedAt = now
	l.rows[exp.ID] = *exp
	return nil
}

func (l *ExportLog) Save(_ context.Context, exp *models.AttendanceExport) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, ok := l.rows[exp.ID]; !ok {
		return fmt.Errorf("export %d: %w", exp.ID, export.ErrExportNotFound)
	}
	exp.UpdatedAt = time.Now()
	l.rows[exp.ID] = *exp
	return nil
}

func (l *ExportLog) Find(_ context.Context, id uint) (*models.AttendanceExport, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	exp, ok := l.rows[id]
	if !ok {
		return nil, fmt.Errorf("export %d: %w", id, export.ErrExportNotFound)
	}
	return &exp, nil
}

func (l *ExportLog) List(_ context.Context, limit int) ([]models.AttendanceExport, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	out := make([]models.AttendanceExport, 0, len(l.rows))
	for _, exp := range l.rows {
		out = append(out, exp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Objects is an in-process object store.
type Objects struct {
	mutex   sync.RWMutex
	objects map[string][]byte
	failPut error
}

func NewObjects() *Objects {
	return &Objects{objects: make(map[string][]byte)}
}

// FailPuts makes every upload return err.
func (o *Objects) FailPuts(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.failPut = err
}

func (o *Objects) Put(_ context.Context, key, _ string, body []byte) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.failPut != nil {
		return o.failPut
	}
	o.objects[key] = append([]byte(nil), body...)
	return nil
}

func (o *Objects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	body, ok := o.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// Keys returns the stored object keys.
func (o *Objects) Keys() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	keys := make([]string, 0, len(o.objects))
	for k := range o.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
