package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/registrocorsi/register-api/internal/models"
	appErrors "github.com/registrocorsi/register-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) (*models.Course, error)
	Get(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Update(ctx context.Context, course *models.Course) (*models.Course, error)
	Delete(ctx context.Context, id string) error
}

// CourseService manages course records and their schedule overrides.
type CourseService struct {
	repo      courseRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, cache *CacheService, v *validator.Validate, logger *zap.Logger) *CourseService {
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cache, validator: v, logger: logger}
}

// CreateCourseRequest carries the fields for a new course.
type CreateCourseRequest struct {
	Name               string  `json:"name" validate:"required,min=2,max=200"`
	Code               *string `json:"code" validate:"omitempty,max=50"`
	DocPrefix          string  `json:"doc_prefix" validate:"omitempty,max=50"`
	Argomento          *string `json:"argomento" validate:"omitempty,max=500"`
	MorningStartHour   int     `json:"morning_start_hour" validate:"omitempty,min=0,max=23"`
	MorningEndHour     int     `json:"morning_end_hour" validate:"omitempty,min=0,max=23"`
	AfternoonStartHour int     `json:"afternoon_start_hour" validate:"omitempty,min=0,max=23"`
	AfternoonEndHour   int     `json:"afternoon_end_hour" validate:"omitempty,min=0,max=23"`
}

// UpdateCourseRequest carries partial course updates.
type UpdateCourseRequest struct {
	Name               *string `json:"name" validate:"omitempty,min=2,max=200"`
	Code               *string `json:"code" validate:"omitempty,max=50"`
	DocPrefix          *string `json:"doc_prefix" validate:"omitempty,max=50"`
	Argomento          *string `json:"argomento" validate:"omitempty,max=500"`
	MorningStartHour   *int    `json:"morning_start_hour" validate:"omitempty,min=0,max=23"`
	MorningEndHour     *int    `json:"morning_end_hour" validate:"omitempty,min=0,max=23"`
	AfternoonStartHour *int    `json:"afternoon_start_hour" validate:"omitempty,min=0,max=23"`
	AfternoonEndHour   *int    `json:"afternoon_end_hour" validate:"omitempty,min=0,max=23"`
}

// Create stores a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		Code:               req.Code,
		DocPrefix:          req.DocPrefix,
		Argomento:          req.Argomento,
		MorningStartHour:   req.MorningStartHour,
		MorningEndHour:     req.MorningEndHour,
		AfternoonStartHour: req.AfternoonStartHour,
		AfternoonEndHour:   req.AfternoonEndHour,
	}
	created, err := s.repo.Create(ctx, course)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return created, nil
}

// Get returns one course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id required")
	}
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// List returns courses matching the filter.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Update applies a partial update to a course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Code != nil {
		course.Code = req.Code
	}
	if req.DocPrefix != nil {
		course.DocPrefix = *req.DocPrefix
	}
	if req.Argomento != nil {
		course.Argomento = req.Argomento
	}
	if req.MorningStartHour != nil {
		course.MorningStartHour = *req.MorningStartHour
	}
	if req.MorningEndHour != nil {
		course.MorningEndHour = *req.MorningEndHour
	}
	if req.AfternoonStartHour != nil {
		course.AfternoonStartHour = *req.AfternoonStartHour
	}
	if req.AfternoonEndHour != nil {
		course.AfternoonEndHour = *req.AfternoonEndHour
	}

	updated, err := s.repo.Update(ctx, course)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	if err := s.cache.Invalidate(ctx, "register:"+id+":*"); err != nil {
		s.logger.Warn("failed to invalidate course registers", zap.String("course_id", id), zap.Error(err))
	}
	return updated, nil
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if err := s.cache.Invalidate(ctx, "register:"+id+":*"); err != nil {
		s.logger.Warn("failed to invalidate course registers", zap.String("course_id", id), zap.Error(err))
	}
	return nil
}
