package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrocorsi/register-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func courseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "code", "doc_prefix", "argomento",
		"morning_start_hour", "morning_end_hour", "afternoon_start_hour", "afternoon_end_hour",
		"created_at", "updated_at",
	})
}

func TestCourseRepositoryGet(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM courses WHERE id").
		WithArgs("c1").
		WillReturnRows(courseRows().AddRow("c1", "Corso Base", nil, "corso_base", nil, 9, 13, 14, 18, time.Now(), time.Now()))

	course, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Corso Base", course.Name)
	assert.Equal(t, 9, course.MorningStartHour)
}

func TestCourseRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM courses WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCourseRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec("INSERT INTO courses").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := repo.Create(context.Background(), &models.Course{Name: "Corso Base"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCourseRepositoryList(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM courses WHERE 1=1").
		WithArgs("%base%").
		WillReturnRows(courseRows().AddRow("c1", "Corso Base", nil, "", nil, 0, 0, 0, 0, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("%base%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{Search: "Base"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, total)
	// Zero-valued hour overrides fall back to the canonical windows.
	assert.Equal(t, models.DefaultLessonWindows(), courses[0].Windows())
}

func TestCourseRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec("DELETE FROM courses").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "c1"))
}
