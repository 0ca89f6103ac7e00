package services

import (
	"context"
	"io"

	"github.com/abrezinsky/autobid/internal/models"
)

// SettingsServicer defines the interface for settings operations
type SettingsServicer interface {
	Get(ctx context.Context) (UserSettings, error)
	Update(ctx context.Context, u SettingsUpdate) error
	Reset(ctx context.Context, keys ...string) error
	AllSettings(ctx context.Context) (map[string]interface{}, error)
	ResetTables(ctx context.Context, tables []string) (*ResetTablesResult, error)
}

// CatalogServicer defines the interface for course catalog operations
type CatalogServicer interface {
	ListCourses(ctx context.Context) ([]models.CourseSpec, error)
	GetCourse(ctx context.Context, code string) (*models.CourseSpec, error)
	AddCourse(ctx context.Context, course models.CourseSpec) (models.CourseSpec, error)
	UpdateCourse(ctx context.Context, code string, course models.CourseSpec) (models.CourseSpec, error)
	DeleteCourse(ctx context.Context, code string) error
	MoveCourse(ctx context.Context, code string, delta int) error
	Import(ctx context.Context, name string, r io.Reader) ([]models.CourseSpec, error)
	ImportFile(ctx context.Context, path string) ([]models.CourseSpec, error)
	Export(ctx context.Context, w io.Writer) error
	ExportFile(ctx context.Context, path string) error
}

// RunServicer defines the interface for registration run operations
type RunServicer interface {
	Start(ctx context.Context, opts RunOptions) (*models.Run, error)
	Run(ctx context.Context, opts RunOptions) (*models.RunSummary, error)
	Stop() error
	Status(ctx context.Context) (*Status, error)
	History(ctx context.Context, limit int) ([]models.Run, error)
	Detail(ctx context.Context, id string) (*RunDetail, error)
	ExportResults(ctx context.Context, id string, w io.Writer) error
	ScheduleRun(spec string, opts RunOptions) (*Schedule, error)
	Unschedule() error
	SetBroadcaster(b RunBroadcaster)
	Shutdown(ctx context.Context) error
}

// Ensure concrete types implement interfaces
var (
	_ SettingsServicer = (*SettingsService)(nil)
	_ CatalogServicer  = (*CatalogService)(nil)
	_ RunServicer      = (*RunService)(nil)
)
