package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/registrocorsi/register-api/internal/models"
)

const lessonDayColumns = `id, course_id, date, schedule_text, argomento, participant_count, fields, created_at, updated_at`

// LessonDayRepository handles persistence for computed lesson days.
type LessonDayRepository struct {
	db *sqlx.DB
}

// NewLessonDayRepository creates a new repository instance.
func NewLessonDayRepository(db *sqlx.DB) *LessonDayRepository {
	return &LessonDayRepository{db: db}
}

// Upsert inserts or replaces the register for a course day. A day is
// recomputable; the latest computation wins.
func (r *LessonDayRepository) Upsert(ctx context.Context, day *models.LessonDay) (*models.LessonDay, error) {
	if day.ID == "" {
		day.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if day.CreatedAt.IsZero() {
		day.CreatedAt = now
	}
	day.UpdatedAt = now

	const query = `INSERT INTO lesson_days (` + lessonDayColumns + `)
		VALUES (:id, :course_id, :date, :schedule_text, :argomento, :participant_count, :fields, :created_at, :updated_at)
		ON CONFLICT (course_id, date) DO UPDATE SET
			schedule_text = EXCLUDED.schedule_text,
			argomento = EXCLUDED.argomento,
			participant_count = EXCLUDED.participant_count,
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, day); err != nil {
		return nil, fmt.Errorf("upsert lesson day: %w", err)
	}
	return day, nil
}

// GetByDate returns the register persisted for a course day.
func (r *LessonDayRepository) GetByDate(ctx context.Context, courseID string, date time.Time) (*models.LessonDay, error) {
	query := `SELECT ` + lessonDayColumns + ` FROM lesson_days WHERE course_id = $1 AND date = $2`
	var day models.LessonDay
	if err := r.db.GetContext(ctx, &day, query, courseID, date); err != nil {
		return nil, err
	}
	return &day, nil
}

// List returns lesson days matching filters with pagination metadata.
func (r *LessonDayRepository) List(ctx context.Context, filter models.LessonDayFilter) ([]models.LessonDay, int, error) {
	base := "FROM lesson_days WHERE course_id = $1"
	args := []interface{}{filter.CourseID}

	if filter.DateFrom != nil {
		base += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		base += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *filter.DateTo)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date DESC LIMIT %d OFFSET %d", lessonDayColumns, base, size, offset)
	var days []models.LessonDay
	if err := r.db.SelectContext(ctx, &days, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lesson days: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lesson days: %w", err)
	}

	return days, total, nil
}

// Delete removes one persisted day.
func (r *LessonDayRepository) Delete(ctx context.Context, courseID string, date time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lesson_days WHERE course_id = $1 AND date = $2`, courseID, date); err != nil {
		return fmt.Errorf("delete lesson day: %w", err)
	}
	return nil
}
