package repository

import (
	"context"
	"time"

	"github.com/abrezinsky/autobid/internal/models"
)

// CourseRepository defines catalog data operations
type CourseRepository interface {
	ListCourses(ctx context.Context) ([]models.CourseSpec, error)
	GetCourse(ctx context.Context, code string) (*models.CourseSpec, error)
	CourseExists(ctx context.Context, code string) (bool, error)
	CreateCourse(ctx context.Context, course models.CourseSpec) error
	UpdateCourse(ctx context.Context, code string, course models.CourseSpec) error
	DeleteCourse(ctx context.Context, code string) error
	ReorderCourses(ctx context.Context, codes []string) error
	ReplaceCourses(ctx context.Context, courses []models.CourseSpec) error
}

// SettingsRepository defines settings data operations
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	ListSettings(ctx context.Context) ([]models.Setting, error)
	ClearTable(ctx context.Context, table string) error
}

// RunRepository defines run history data operations
type RunRepository interface {
	CreateRun(ctx context.Context, run models.Run) error
	FinishRun(ctx context.Context, id string, status models.RunStatus, passes int, message string, finishedAt time.Time) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	SaveCourseResult(ctx context.Context, runID string, result models.CourseResult) error
	ListCourseResults(ctx context.Context, runID string) ([]models.CourseResult, error)
	AddAttempt(ctx context.Context, attempt models.Attempt) (int64, error)
	ListAttempts(ctx context.Context, runID string) ([]models.Attempt, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	CourseRepository
	SettingsRepository
	RunRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
