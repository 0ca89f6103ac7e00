package mock

import (
	"context"
	"time"

	"github.com/abrezinsky/autobid/internal/models"
	"github.com/abrezinsky/autobid/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.CreateCourseError = errors.New("database error")
//	svc := services.NewCatalogService(log, mockRepo)
//	err := svc.AddCourse(ctx, course)
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== Course Errors =====
	ListCoursesError    error
	GetCourseError      error
	CourseExistsError   error
	CreateCourseError   error
	UpdateCourseError   error
	DeleteCourseError   error
	ReorderCoursesError error
	ReplaceCoursesError error

	// ===== Settings Errors =====
	GetSettingError    error
	SetSettingError    error
	DeleteSettingError error
	ListSettingsError  error
	ClearTableError    error

	// ===== Run Errors =====
	CreateRunError         error
	FinishRunError         error
	GetRunError            error
	ListRunsError          error
	SaveCourseResultError  error
	ListCourseResultsError error
	AddAttemptError        error
	ListAttemptsError      error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Course Methods =====

func (m *Repository) ListCourses(ctx context.Context) ([]models.CourseSpec, error) {
	if m.ListCoursesError != nil {
		return nil, m.ListCoursesError
	}
	return m.FullRepository.ListCourses(ctx)
}

func (m *Repository) GetCourse(ctx context.Context, code string) (*models.CourseSpec, error) {
	if m.GetCourseError != nil {
		return nil, m.GetCourseError
	}
	return m.FullRepository.GetCourse(ctx, code)
}

func (m *Repository) CourseExists(ctx context.Context, code string) (bool, error) {
	if m.CourseExistsError != nil {
		return false, m.CourseExistsError
	}
	return m.FullRepository.CourseExists(ctx, code)
}

func (m *Repository) CreateCourse(ctx context.Context, course models.CourseSpec) error {
	if m.CreateCourseError != nil {
		return m.CreateCourseError
	}
	return m.FullRepository.CreateCourse(ctx, course)
}

func (m *Repository) UpdateCourse(ctx context.Context, code string, course models.CourseSpec) error {
	if m.UpdateCourseError != nil {
		return m.UpdateCourseError
	}
	return m.FullRepository.UpdateCourse(ctx, code, course)
}

func (m *Repository) DeleteCourse(ctx context.Context, code string) error {
	if m.DeleteCourseError != nil {
		return m.DeleteCourseError
	}
	return m.FullRepository.DeleteCourse(ctx, code)
}

func (m *Repository) ReorderCourses(ctx context.Context, codes []string) error {
	if m.ReorderCoursesError != nil {
		return m.ReorderCoursesError
	}
	return m.FullRepository.ReorderCourses(ctx, codes)
}

func (m *Repository) ReplaceCourses(ctx context.Context, courses []models.CourseSpec) error {
	if m.ReplaceCoursesError != nil {
		return m.ReplaceCoursesError
	}
	return m.FullRepository.ReplaceCourses(ctx, courses)
}

// ===== Settings Methods =====

func (m *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	if m.GetSettingError != nil {
		return "", m.GetSettingError
	}
	return m.FullRepository.GetSetting(ctx, key)
}

func (m *Repository) SetSetting(ctx context.Context, key, value string) error {
	if m.SetSettingError != nil {
		return m.SetSettingError
	}
	return m.FullRepository.SetSetting(ctx, key, value)
}

func (m *Repository) DeleteSetting(ctx context.Context, key string) error {
	if m.DeleteSettingError != nil {
		return m.DeleteSettingError
	}
	return m.FullRepository.DeleteSetting(ctx, key)
}

func (m *Repository) ListSettings(ctx context.Context) ([]models.Setting, error) {
	if m.ListSettingsError != nil {
		return nil, m.ListSettingsError
	}
	return m.FullRepository.ListSettings(ctx)
}

func (m *Repository) ClearTable(ctx context.Context, table string) error {
	if m.ClearTableError != nil {
		return m.ClearTableError
	}
	return m.FullRepository.ClearTable(ctx, table)
}

// ===== Run Methods =====

func (m *Repository) CreateRun(ctx context.Context, run models.Run) error {
	if m.CreateRunError != nil {
		return m.CreateRunError
	}
	return m.FullRepository.CreateRun(ctx, run)
}

func (m *Repository) FinishRun(ctx context.Context, id string, status models.RunStatus, passes int, message string, finishedAt time.Time) error {
	if m.FinishRunError != nil {
		return m.FinishRunError
	}
	return m.FullRepository.FinishRun(ctx, id, status, passes, message, finishedAt)
}

func (m *Repository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	if m.GetRunError != nil {
		return nil, m.GetRunError
	}
	return m.FullRepository.GetRun(ctx, id)
}

func (m *Repository) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if m.ListRunsError != nil {
		return nil, m.ListRunsError
	}
	return m.FullRepository.ListRuns(ctx, limit)
}

func (m *Repository) SaveCourseResult(ctx context.Context, runID string, result models.CourseResult) error {
	if m.SaveCourseResultError != nil {
		return m.SaveCourseResultError
	}
	return m.FullRepository.SaveCourseResult(ctx, runID, result)
}

func (m *Repository) ListCourseResults(ctx context.Context, runID string) ([]models.CourseResult, error) {
	if m.ListCourseResultsError != nil {
		return nil, m.ListCourseResultsError
	}
	return m.FullRepository.ListCourseResults(ctx, runID)
}

func (m *Repository) AddAttempt(ctx context.Context, attempt models.Attempt) (int64, error) {
	if m.AddAttemptError != nil {
		return 0, m.AddAttemptError
	}
	return m.FullRepository.AddAttempt(ctx, attempt)
}

func (m *Repository) ListAttempts(ctx context.Context, runID string) ([]models.Attempt, error) {
	if m.ListAttemptsError != nil {
		return nil, m.ListAttemptsError
	}
	return m.FullRepository.ListAttempts(ctx, runID)
}
