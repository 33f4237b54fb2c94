package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/registrocorsi/register-api/internal/models"
	appErrors "github.com/registrocorsi/register-api/pkg/errors"
)

type courseReader interface {
	Get(ctx context.Context, id string) (*models.Course, error)
}

type lessonDayRepository interface {
	Upsert(ctx context.Context, day *models.LessonDay) (*models.LessonDay, error)
	List(ctx context.Context, filter models.LessonDayFilter) ([]models.LessonDay, int, error)
	GetByDate(ctx context.Context, courseID string, date time.Time) (*models.LessonDay, error)
}

// AliasMerger is the cross-day identity merge collaborator. It receives a
// day's participants and returns an equivalent list with near-duplicate
// identities merged and alias metadata attached. The engine consumes alias
// data only as opaque display strings.
type AliasMerger interface {
	Merge(ctx context.Context, participants []*models.ProcessedParticipant) ([]*models.ProcessedParticipant, error)
}

// identityAliasMerger returns the input unchanged; single-day runs have no
// cross-day identities to merge.
type identityAliasMerger struct{}

func (identityAliasMerger) Merge(_ context.Context, participants []*models.ProcessedParticipant) ([]*models.ProcessedParticipant, error) {
	return participants, nil
}

// RegisterConfig tunes the computation pipeline.
type RegisterConfig struct {
	Windows                  models.LessonWindows
	ReconnectTolerance       time.Duration
	PresenceToleranceMinutes int
	MaxParticipantSlots      int
	ParticipantTableMarker   string
	DocumentPrefix           string
	CacheTTL                 time.Duration
}

// RegisterServiceParams collects the register service dependencies.
type RegisterServiceParams struct {
	Courses    courseReader
	LessonDays lessonDayRepository
	Cache      *CacheService
	Merger     AliasMerger
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	Config     RegisterConfig
}

// RegisterService drives the attendance pipeline for one lesson day:
// ingest, route, consolidate, calculate, merge aliases, infer hours and
// build the template record. Each invocation owns its own state; nothing is
// shared between days.
type RegisterService struct {
	courses   courseReader
	days      lessonDayRepository
	cache     *CacheService
	merger    AliasMerger
	ingest    *IngestService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RegisterConfig
}

// NewRegisterService constructs the register service.
func NewRegisterService(p RegisterServiceParams) *RegisterService {
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Merger == nil {
		p.Merger = identityAliasMerger{}
	}
	if p.Config.Windows.Morning.EndHour <= p.Config.Windows.Morning.StartHour {
		p.Config.Windows.Morning = models.DefaultLessonWindows().Morning
	}
	if p.Config.Windows.Afternoon.EndHour <= p.Config.Windows.Afternoon.StartHour {
		p.Config.Windows.Afternoon = models.DefaultLessonWindows().Afternoon
	}
	ingest := NewIngestService(IngestConfig{Marker: p.Config.ParticipantTableMarker}, p.Metrics, p.Logger)
	return &RegisterService{
		courses:   p.Courses,
		days:      p.LessonDays,
		cache:     p.Cache,
		merger:    p.Merger,
		ingest:    ingest,
		metrics:   p.Metrics,
		validator: p.Validator,
		logger:    p.Logger,
		cfg:       p.Config,
	}
}

// ExportFile is one uploaded meeting export. Label overrides auto-routing.
type ExportFile struct {
	Label   string `json:"label" validate:"omitempty,oneof=morning afternoon"`
	Content string `json:"content" validate:"required"`
}

// ParticipantOverride carries the manual mark present/absent action.
type ParticipantOverride struct {
	Name   string `json:"name" validate:"required"`
	Absent *bool  `json:"absent" validate:"required"`
}

// ComputeDayRequest describes one lesson day computation.
type ComputeDayRequest struct {
	CourseID   string                `json:"course_id"`
	Date       string                `json:"date" validate:"required"`
	Argomento  string                `json:"argomento"`
	LessonType string                `json:"lesson_type" validate:"omitempty,oneof=morning afternoon full auto"`
	Files      []ExportFile          `json:"files" validate:"required,min=1,dive"`
	Overrides  []ParticipantOverride `json:"overrides" validate:"omitempty,dive"`
}

// DayRegister is the computed result for one lesson day.
type DayRegister struct {
	CourseID     string                         `json:"course_id,omitempty"`
	Date         time.Time                      `json:"date"`
	LessonType   models.LessonType              `json:"lesson_type"`
	Hours        []int                          `json:"hours"`
	ScheduleText string                         `json:"schedule_text"`
	Fields       models.RegisterFields          `json:"fields"`
	FieldMap     map[string]string              `json:"field_map"`
	Filename     string                         `json:"filename"`
	Organizer    string                         `json:"organizer,omitempty"`
	Participants []*models.ProcessedParticipant `json:"participants"`
	Warnings     []string                       `json:"warnings,omitempty"`
}

// Analyze classifies one export without computing attendance.
func (s *RegisterService) Analyze(_ context.Context, content string) (*models.CSVAnalysis, error) {
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content required")
	}
	rows, err := s.ingest.Parse(content)
	if err != nil {
		return nil, err
	}
	analysis := s.ingest.Analyze(rows)
	return &analysis, nil
}

// ComputeDay runs the full pipeline for one lesson day. The run either
// yields a complete register or an error; partial results are never
// returned.
func (s *RegisterService) ComputeDay(ctx context.Context, req ComputeDayRequest) (*DayRegister, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid compute payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	lessonType := models.LessonType(req.LessonType)
	if req.LessonType == "" {
		lessonType = models.LessonTypeAuto
	}

	windows := s.cfg.Windows
	prefix := s.cfg.DocumentPrefix
	argomento := req.Argomento

	if req.CourseID != "" && s.courses != nil {
		course, err := s.courses.Get(ctx, req.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		windows = course.Windows()
		if course.DocPrefix != "" {
			prefix = course.DocPrefix
		}
		if argomento == "" && course.Argomento != nil {
			argomento = *course.Argomento
		}
	}

	var parsed []ParsedExport
	var warnings []string
	for i, file := range req.Files {
		rows, err := s.ingest.Parse(file.Content)
		if err != nil {
			// A format-broken file aborts that period only, never the day.
			warnings = append(warnings, fmt.Sprintf("file %d skipped: %s", i+1, appErrors.FromError(err).Message))
			continue
		}
		parsed = append(parsed, ParsedExport{Label: file.Label, Rows: rows, Analysis: s.ingest.Analyze(rows)})
	}

	morning, afternoon, routeWarnings := s.ingest.Route(parsed)
	warnings = append(warnings, routeWarnings...)
	if len(morning) == 0 && len(afternoon) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyParticipants, "no file produced usable participant rows")
	}

	consolidated := ConsolidateSessions(morning, afternoon)
	applyOverrides(consolidated.Participants, req.Overrides)

	participants := consolidated.Participants
	if merged, err := s.merger.Merge(ctx, participants); err != nil {
		s.logger.Warn("alias merge failed, identities left unmerged", zap.Error(err))
		warnings = append(warnings, "alias merge failed; identities left unmerged")
	} else {
		participants = merged
	}

	calc := NewAttendanceCalculator(windows, s.cfg.ReconnectTolerance, s.cfg.PresenceToleranceMinutes, s.logger)
	calc.AnnotateAll(participants)

	population := make([]*models.ProcessedParticipant, 0, len(participants)+1)
	if consolidated.Organizer != nil {
		population = append(population, consolidated.Organizer)
	}
	population = append(population, participants...)

	hours := InferLessonHours(population, lessonType, windows)
	scheduleText := BuildScheduleText(population, lessonType, windows)

	builder := NewTemplateBuilder(s.cfg.MaxParticipantSlots, s.metrics, s.logger)
	fields, buildWarnings := builder.Build(date, scheduleText, argomento, participants)
	warnings = append(warnings, buildWarnings...)

	register := &DayRegister{
		CourseID:     req.CourseID,
		Date:         date,
		LessonType:   lessonType,
		Hours:        hours,
		ScheduleText: scheduleText,
		Fields:       fields,
		FieldMap:     fields.Map(),
		Filename:     models.DocumentFilename(prefix, req.CourseID, date),
		Participants: participants,
		Warnings:     warnings,
	}
	if consolidated.Organizer != nil {
		register.Organizer = consolidated.Organizer.Name
	}

	s.metrics.RecordRegisterBuilt()

	if req.CourseID != "" && s.days != nil {
		day, err := s.persistDay(ctx, register, argomento)
		if err != nil {
			s.logger.Warn("failed to persist lesson day", zap.String("course_id", req.CourseID), zap.Error(err))
			register.Warnings = append(register.Warnings, "register computed but not persisted")
		} else if err := s.cache.Set(ctx, RegisterKey(req.CourseID, date), day, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache register", zap.Error(err))
		}
	}

	return register, nil
}

// ComputeBatchRequest describes a multi-day run.
type ComputeBatchRequest struct {
	Days []ComputeDayRequest `json:"days" validate:"required,min=1,dive"`
}

// BatchDayResult reports one day of a batch run.
type BatchDayResult struct {
	Date     string           `json:"date"`
	Register *DayRegister     `json:"register,omitempty"`
	Error    *appErrors.Error `json:"error,omitempty"`
}

// ComputeBatch processes days sequentially in input order. Each day is
// independent and atomic; a failing day is reported in place and does not
// stop the batch.
func (s *RegisterService) ComputeBatch(ctx context.Context, req ComputeBatchRequest) ([]BatchDayResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	results := make([]BatchDayResult, 0, len(req.Days))
	for _, day := range req.Days {
		register, err := s.ComputeDay(ctx, day)
		result := BatchDayResult{Date: day.Date}
		if err != nil {
			result.Error = appErrors.FromError(err)
		} else {
			result.Register = register
		}
		results = append(results, result)
	}
	return results, nil
}

// ListDays returns the persisted registers for a course.
func (s *RegisterService) ListDays(ctx context.Context, courseID string, page, size int) ([]models.LessonDay, *models.Pagination, error) {
	if courseID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "course id required")
	}
	if s.days == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrInternal, "lesson day storage not configured")
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	rows, total, err := s.days.List(ctx, models.LessonDayFilter{CourseID: courseID, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lesson days")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetDay returns one persisted register.
func (s *RegisterService) GetDay(ctx context.Context, courseID, rawDate string) (*models.LessonDay, error) {
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	if s.days == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "lesson day storage not configured")
	}

	key := RegisterKey(courseID, date)
	var cached models.LessonDay
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	day, err := s.days.GetByDate(ctx, courseID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson day not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson day")
	}

	if err := s.cache.Set(ctx, key, day, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache lesson day", zap.String("key", key), zap.Error(err))
	}
	return day, nil
}

func (s *RegisterService) persistDay(ctx context.Context, register *DayRegister, argomento string) (*models.LessonDay, error) {
	payload, err := json.Marshal(register.Fields)
	if err != nil {
		return nil, err
	}
	day := &models.LessonDay{
		CourseID:         register.CourseID,
		Date:             register.Date,
		ScheduleText:     register.ScheduleText,
		ParticipantCount: len(register.Participants),
		Fields:           payload,
	}
	if argomento != "" {
		day.Argomento = &argomento
	}
	return s.days.Upsert(ctx, day)
}

func applyOverrides(participants []*models.ProcessedParticipant, overrides []ParticipantOverride) {
	if len(overrides) == 0 {
		return
	}
	byKey := make(map[string]*models.ProcessedParticipant, len(participants))
	for _, p := range participants {
		byKey[p.Key()] = p
	}
	for _, o := range overrides {
		key := (&models.ProcessedParticipant{Name: o.Name}).Key()
		if p, ok := byKey[key]; ok && o.Absent != nil {
			absent := *o.Absent
			p.IsAbsent = &absent
		}
	}
}
