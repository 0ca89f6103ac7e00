package catalog

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/models"
)

var validate = validator.New()

// ValidateCourse checks a single course: required code, known class types
// and ranked slot lists without duplicates.
func ValidateCourse(c models.CourseSpec) error {
	if err := validate.Struct(c); err != nil {
		return errors.InvalidInputf("course %q: %s", c.Code, describe(err))
	}
	for t, slots := range c.Slots {
		if _, ok := models.ParseClassType(string(t)); !ok || len(t) != 1 {
			return errors.InvalidInputf("course %s: unknown class type %q", c.Code, t)
		}
		if err := slots.Validate(); err != nil {
			return errors.InvalidInputf("course %s %s: %v", c.Code, t.Name(), err)
		}
	}
	return nil
}

// Validate checks every course and rejects duplicate codes
func Validate(courses []models.CourseSpec) error {
	seen := make(map[string]bool, len(courses))
	for _, c := range courses {
		if err := ValidateCourse(c); err != nil {
			return err
		}
		if seen[c.Code] {
			return errors.InvalidInputf("course %s is listed more than once", c.Code)
		}
		seen[c.Code] = true
	}
	return nil
}

func describe(err error) string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	var parts []string
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
