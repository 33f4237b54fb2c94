package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/registrocorsi/register-api/internal/models"
	appErrors "github.com/registrocorsi/register-api/pkg/errors"
	"github.com/registrocorsi/register-api/pkg/export"
	"github.com/registrocorsi/register-api/pkg/jobs"
	"github.com/registrocorsi/register-api/pkg/storage"
)

const exportJobType = "register_export"

var exportHeaders = []string{"Nome", "Matt. Ora In", "Matt. Ora Out", "Pome. Ora In", "Pome. Ora Out", "Presenza"}

// ExportService renders persisted registers as CSV or PDF files on local
// storage, synchronously or through the background queue.
type ExportService struct {
	days      lessonDayRepository
	store     *storage.LocalStorage
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService constructs the export service and its worker queue.
func NewExportService(days lessonDayRepository, store *storage.LocalStorage, queueCfg jobs.QueueConfig, v *validator.Validate, logger *zap.Logger) *ExportService {
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		days:      days,
		store:     store,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: v,
		logger:    logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue(exportJobType, s.processJob, queueCfg)
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and stops the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// ExportRequest selects a persisted register and an output format.
type ExportRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Format   string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResult describes a rendered export file.
type ExportResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Format   string `json:"format"`
}

// Export renders one register synchronously.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	return s.render(ctx, req)
}

// Enqueue schedules an asynchronous export and returns the job id.
func (s *ExportService) Enqueue(req ExportRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	jobID := uuid.NewString()
	err := s.queue.Enqueue(jobs.Job{ID: jobID, Type: exportJobType, Payload: req})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export queue full")
	}
	return jobID, nil
}

func (s *ExportService) processJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(ExportRequest)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	result, err := s.render(ctx, req)
	if err != nil {
		return err
	}
	s.logger.Info("export rendered",
		zap.String("job_id", job.ID),
		zap.String("filename", result.Filename),
		zap.String("format", result.Format))
	return nil
}

func (s *ExportService) render(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export storage not configured")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	day, err := s.days.GetByDate(ctx, req.CourseID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson day not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson day")
	}

	dataset, title, err := buildDataset(day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode register fields")
	}

	var payload []byte
	switch req.Format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("registro_%s_%s.%s", day.CourseID, day.Date.Format("2006_01_02"), req.Format)
	path, err := s.store.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	return &ExportResult{Filename: filename, Path: path, Format: req.Format}, nil
}

func buildDataset(day *models.LessonDay) (export.Dataset, string, error) {
	var fields models.RegisterFields
	if err := json.Unmarshal(day.Fields, &fields); err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(fields.Slots))
	for _, slot := range fields.Slots {
		if slot.Nome == "" {
			continue
		}
		rows = append(rows, map[string]string{
			"Nome":          slot.Nome,
			"Matt. Ora In":  slot.MattOraIn,
			"Matt. Ora Out": slot.MattOraOut,
			"Pome. Ora In":  slot.PomeOraIn,
			"Pome. Ora Out": slot.PomeOraOut,
			"Presenza":      slot.Presenza,
		})
	}

	title := fmt.Sprintf("Registro %s - %s/%s/%s", day.CourseID, fields.Day, fields.Month, fields.Year)
	return export.Dataset{Headers: exportHeaders, Rows: rows}, title, nil
}
