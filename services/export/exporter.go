// Package export writes the daily attendance workbook and keeps track of the
// generated files.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"academy_go/models"
	"academy_go/services/attendance"
	"academy_go/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrExportNotFound = errors.New("export not found")
	ErrExportNotReady = errors.New("export is not completed")
)

// RecordSource lists attendance records; satisfied by *attendance.Service.
type RecordSource interface {
	List(ctx context.Context, filter attendance.ListFilter) ([]models.Attendance, error)
}

// ObjectStore stores workbook files by key.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Log persists attendance_exports rows. Find returns ErrExportNotFound for unknown ids.
type Log interface {
	Create(ctx context.Context, exp *models.AttendanceExport) error
	Save(ctx context.Context, exp *models.AttendanceExport) error
	Find(ctx context.Context, id uint) (*models.AttendanceExport, error)
	List(ctx context.Context, limit int) ([]models.AttendanceExport, error)
}

// Exporter builds and uploads daily attendance workbooks.
type Exporter struct {
	source  RecordSource
	objects ObjectStore
	log     Log
	loc     *time.Location
	now     func() time.Time
}

func NewExporter(source RecordSource, objects ObjectStore, log Log, loc *time.Location) *Exporter {
	return &Exporter{source: source, objects: objects, log: log, loc: loc, now: time.Now}
}

// Today is the current civil date in the academy zone.
func (e *Exporter) Today() time.Time {
	return utils.CivilDate(e.now(), e.loc)
}

// Export writes every record of date into a workbook and uploads it. The returned
// row is failed with the error text when building or uploading fails.
func (e *Exporter) Export(ctx context.Context, date time.Time) (*models.AttendanceExport, error) {
	date = utils.CivilDate(date, e.loc)
	exp := &models.AttendanceExport{
		ExportDate: date,
		FileName:   fmt.Sprintf("attendance_%s.xlsx", date.Format("2006-01-02")),
		S3Key:      ObjectKey(date, uuid.NewString()),
		Status:     StatusPending,
	}
	if err := e.log.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("record export: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{"export_id": exp.ID, "date": date.Format("2006-01-02")})
	if err := e.run(ctx, exp); err != nil {
		exp.Status = StatusFailed
		exp.Error = err.Error()
		if saveErr := e.log.Save(ctx, exp); saveErr != nil {
			log.WithError(saveErr).Error("Failed to record export failure")
		}
		log.WithError(err).Error("Attendance export failed")
		return exp, err
	}

	exp.Status = StatusCompleted
	if err := e.log.Save(ctx, exp); err != nil {
		return exp, fmt.Errorf("record export completion: %w", err)
	}
	log.WithFields(logrus.Fields{"records": exp.RecordCount, "key": exp.S3Key}).Info("Attendance export completed")
	return exp, nil
}

func (e *Exporter) run(ctx context.Context, exp *models.AttendanceExport) error {
	records, err := e.source.List(ctx, attendance.ListFilter{Date: exp.ExportDate})
	if err != nil {
		return fmt.Errorf("load attendance: %w", err)
	}
	data, err := BuildWorkbook(records, e.loc)
	if err != nil {
		return err
	}
	if err := e.objects.Put(ctx, exp.S3Key, xlsxContentType, data); err != nil {
		return err
	}
	exp.RecordCount = len(records)
	exp.FileSize = int64(len(data))
	return nil
}

// List returns the most recent exports first.
func (e *Exporter) List(ctx context.Context, limit int) ([]models.AttendanceExport, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	return e.log.List(ctx, limit)
}

// Download opens the stored workbook of a completed export.
func (e *Exporter) Download(ctx context.Context, id uint) (io.ReadCloser, *models.AttendanceExport, error) {
	exp, err := e.log.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if exp.Status != StatusCompleted {
		return nil, exp, fmt.Errorf("export %d is %s: %w", id, exp.Status, ErrExportNotReady)
	}
	body, err := e.objects.Get(ctx, exp.S3Key)
	if err != nil {
		return nil, exp, err
	}
	return body, exp, nil
}

// ObjectKey places a workbook under attendance/YYYY/MM/DD/.
func ObjectKey(date time.Time, name string) string {
	return fmt.Sprintf("attendance/%d/%02d/%02d/%s.xlsx", date.Year(), date.Month(), date.Day(), name)
}
