package testutil

import (
	"context"
	"testing"

	"github.com/abrezinsky/autobid/internal/models"
	"github.com/abrezinsky/autobid/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

// Course builds a course with the given lecture, tutorial and practical preferences.
// A nil list leaves the class type out.
func Course(code string, lectures, tutorials, practicals []int) models.CourseSpec {
	c := models.CourseSpec{Code: code, Name: code + " course", Slots: map[models.ClassType]models.RankedSlots{}}
	if lectures != nil {
		c.Slots[models.Lecture] = lectures
	}
	if tutorials != nil {
		c.Slots[models.Tutorial] = tutorials
	}
	if practicals != nil {
		c.Slots[models.Practical] = practicals
	}
	return c
}

// SeedCourses appends courses to the catalog in order
func SeedCourses(t *testing.T, repo repository.CourseRepository, courses ...models.CourseSpec) {
	t.Helper()
	for _, c := range courses {
		if err := repo.CreateCourse(context.Background(), c); err != nil {
			t.Fatalf("failed to seed course %s: %v", c.Code, err)
		}
	}
}
