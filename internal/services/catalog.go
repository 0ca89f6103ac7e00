package services

import (
	"context"
	"io"

	"github.com/abrezinsky/autobid/internal/catalog"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/models"
	"github.com/abrezinsky/autobid/internal/repository"
)

// CatalogService manages the persisted list of wanted courses
type CatalogService struct {
	log  logger.Logger
	repo repository.CourseRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(log logger.Logger, repo repository.CourseRepository) *CatalogService {
	return &CatalogService{log: log, repo: repo}
}

// ListCourses returns the catalog in priority order
func (s *CatalogService) ListCourses(ctx context.Context) ([]models.CourseSpec, error) {
	return s.repo.ListCourses(ctx)
}

// GetCourse returns one course
func (s *CatalogService) GetCourse(ctx context.Context, code string) (*models.CourseSpec, error) {
	c, err := s.repo.GetCourse(ctx, models.NormalizeCode(code))
	if err == repository.ErrNotFound {
		return nil, ErrCourseNotFound
	}
	return c, err
}

func normalize(c models.CourseSpec) (models.CourseSpec, error) {
	c.Code = models.NormalizeCode(c.Code)
	if err := catalog.ValidateCourse(c); err != nil {
		return c, err
	}
	return c, nil
}

// AddCourse appends a course to the end of the catalog
func (s *CatalogService) AddCourse(ctx context.Context, course models.CourseSpec) (models.CourseSpec, error) {
	course, err := normalize(course)
	if err != nil {
		return course, err
	}
	exists, err := s.repo.CourseExists(ctx, course.Code)
	if err != nil {
		return course, err
	}
	if exists {
		return course, ErrCourseExists
	}
	if err := s.repo.CreateCourse(ctx, course); err != nil {
		if err == repository.ErrDuplicate {
			return course, ErrCourseExists
		}
		return course, err
	}
	s.log.Info("Course added", "course", course.Code)
	return course, nil
}

// UpdateCourse replaces the course stored under code. The code itself may change.
func (s *CatalogService) UpdateCourse(ctx context.Context, code string, course models.CourseSpec) (models.CourseSpec, error) {
	course, err := normalize(course)
	if err != nil {
		return course, err
	}
	switch err := s.repo.UpdateCourse(ctx, models.NormalizeCode(code), course); err {
	case nil:
	case repository.ErrNotFound:
		return course, ErrCourseNotFound
	case repository.ErrDuplicate:
		return course, ErrCourseExists
	default:
		return course, err
	}
	s.log.Info("Course updated", "course", course.Code)
	return course, nil
}

// DeleteCourse removes a course
func (s *CatalogService) DeleteCourse(ctx context.Context, code string) error {
	code = models.NormalizeCode(code)
	if err := s.repo.DeleteCourse(ctx, code); err != nil {
		if err == repository.ErrNotFound {
			return ErrCourseNotFound
		}
		return err
	}
	s.log.Info("Course deleted", "course", code)
	return nil
}

// MoveCourse shifts a course by delta positions (negative is towards the front).
// Moves past either end stop at the end.
func (s *CatalogService) MoveCourse(ctx context.Context, code string, delta int) error {
	code = models.NormalizeCode(code)
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return err
	}

	from := -1
	codes := make([]string, len(courses))
	for i, c := range courses {
		codes[i] = c.Code
		if c.Code == code {
			from = i
		}
	}
	if from < 0 {
		return ErrCourseNotFound
	}

	to := min(max(from+delta, 0), len(codes)-1)
	if to == from {
		return nil
	}
	moved := codes[from]
	if to < from {
		copy(codes[to+1:from+1], codes[to:from])
	} else {
		copy(codes[from:to], codes[from+1:to+1])
	}
	codes[to] = moved

	if err := s.repo.ReorderCourses(ctx, codes); err != nil {
		return err
	}
	s.log.Debug("Course moved", "course", code, "from", from+1, "to", to+1)
	return nil
}

// Import replaces the catalog with the courses read from r. The name's
// extension selects the format: .txt timetable export or .json course list.
func (s *CatalogService) Import(ctx context.Context, name string, r io.Reader) ([]models.CourseSpec, error) {
	courses, err := catalog.Read(name, r)
	if err != nil {
		return nil, err
	}
	return s.replace(ctx, name, courses)
}

// ImportFile replaces the catalog with the courses of a file
func (s *CatalogService) ImportFile(ctx context.Context, path string) ([]models.CourseSpec, error) {
	courses, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	return s.replace(ctx, path, courses)
}

func (s *CatalogService) replace(ctx context.Context, source string, courses []models.CourseSpec) ([]models.CourseSpec, error) {
	if err := s.repo.ReplaceCourses(ctx, courses); err != nil {
		if err == repository.ErrDuplicate {
			return nil, ErrCourseExists
		}
		return nil, err
	}
	s.log.Info("Courses imported", "source", source, "count", len(courses))
	return courses, nil
}

// Export writes the catalog as a JSON course list
func (s *CatalogService) Export(ctx context.Context, w io.Writer) error {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return err
	}
	return catalog.WriteJSON(w, courses)
}

// ExportFile saves the catalog to a JSON file
func (s *CatalogService) ExportFile(ctx context.Context, path string) error {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return err
	}
	return catalog.Save(path, courses)
}
