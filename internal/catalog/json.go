package catalog

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/models"
)

// ReadJSON decodes a saved course list
func ReadJSON(r io.Reader) ([]models.CourseSpec, error) {
	var courses []models.CourseSpec
	if err := json.NewDecoder(r).Decode(&courses); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "invalid course list JSON")
	}
	for i := range courses {
		courses[i].Code = models.NormalizeCode(courses[i].Code)
	}
	return courses, nil
}

// WriteJSON encodes a course list in the saved format
func WriteJSON(w io.Writer, courses []models.CourseSpec) error {
	if courses == nil {
		courses = []models.CourseSpec{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(courses)
}

// Load reads a course list from a .txt timetable export or a .json file, and validates it
func Load(path string) ([]models.CourseSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrNotFound, "failed to open course list")
	}
	defer f.Close()
	return Read(path, f)
}

// Read decodes a course list in the format named by the extension of name, and validates it
func Read(name string, r io.Reader) ([]models.CourseSpec, error) {
	var courses []models.CourseSpec
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		courses, err = ReadTimetable(r)
	case ".json":
		courses, err = ReadJSON(r)
	default:
		return nil, errors.InvalidInputf("unsupported course list format %q (want .txt or .json)", filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// Save writes the course list as JSON
func Save(path string, courses []models.CourseSpec) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to create course list")
	}
	if err := WriteJSON(f, courses); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrInternal, "failed to write course list")
	}
	return f.Close()
}
