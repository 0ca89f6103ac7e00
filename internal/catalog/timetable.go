// Package catalog reads and writes the list of courses to register.
package catalog

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/models"
)

const (
	headerLines = 3
	blockLines  = 5
)

var slotLine = regexp.MustCompile(`(L|T|P)\((.*)\) -`)

type line struct {
	num  int
	text string
}

// ReadTimetable parses a timetable planner export.
// Blank lines are dropped and the first three lines are headers. Each course is
// a block of five lines: code, name, then up to three lines like
// "L(1 or 3) - Lecture". A short final block is accepted if it has a code and name.
func ReadTimetable(r io.Reader) ([]models.CourseSpec, error) {
	var lines []line
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, line{num: n, text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "failed to read timetable")
	}

	if len(lines) <= headerLines {
		return nil, nil
	}
	lines = lines[headerLines:]

	var courses []models.CourseSpec
	for i := 0; i < len(lines); i += blockLines {
		end := min(i+blockLines, len(lines))
		course, err := readBlock(lines[i:end])
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, nil
}

func readBlock(block []line) (models.CourseSpec, error) {
	if len(block) < 2 {
		return models.CourseSpec{}, errors.InvalidInputf("line %d: course %q has no name", block[0].num, strings.TrimSpace(block[0].text))
	}

	course := models.CourseSpec{
		Code:  models.NormalizeCode(block[0].text),
		Name:  strings.TrimSpace(block[1].text),
		Slots: make(map[models.ClassType]models.RankedSlots),
	}

	for _, l := range block[2:] {
		m := slotLine.FindStringSubmatch(l.text)
		if m == nil {
			continue
		}
		slots, err := parseSlots(m[2])
		if err != nil {
			return models.CourseSpec{}, errors.InvalidInputf("line %d: %v", l.num, err)
		}
		course.Slots[models.ClassType(m[1])] = slots
	}
	return course, nil
}

func parseSlots(s string) (models.RankedSlots, error) {
	var slots models.RankedSlots
	for _, part := range strings.Split(s, " or ") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.InvalidInputf("slot number %q is not a number", strings.TrimSpace(part))
		}
		slots = append(slots, n)
	}
	return slots, nil
}
