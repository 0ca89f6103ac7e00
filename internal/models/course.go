package models

import (
	"fmt"
	"strings"
)

// ClassType is the kind of class a slot belongs to
type ClassType string

const (
	Lecture   ClassType = "L"
	Tutorial  ClassType = "T"
	Practical ClassType = "P"
)

// ClassTypes lists every class type in display order
var ClassTypes = []ClassType{Lecture, Tutorial, Practical}

// ParseClassType accepts "L", "T", "P" or the full names, case-insensitive
func ParseClassType(s string) (ClassType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "lecture":
		return Lecture, true
	case "t", "tutorial":
		return Tutorial, true
	case "p", "practical":
		return Practical, true
	}
	return "", false
}

// Name returns the long name of the class type
func (c ClassType) Name() string {
	switch c {
	case Lecture:
		return "Lecture"
	case Tutorial:
		return "Tutorial"
	case Practical:
		return "Practical"
	}
	return string(c)
}

// RankedSlots is a list of slot numbers in preference order.
// Index 0 is the most preferred slot.
type RankedSlots []int

// Rank returns the preference rank of slot n
func (r RankedSlots) Rank(n int) (int, bool) {
	for i, v := range r {
		if v == n {
			return i, true
		}
	}
	return 0, false
}

// Validate rejects duplicate and non-positive slot numbers
func (r RankedSlots) Validate() error {
	seen := make(map[int]bool, len(r))
	for _, n := range r {
		if n <= 0 {
			return fmt.Errorf("slot number %d must be positive", n)
		}
		if seen[n] {
			return fmt.Errorf("slot number %d listed more than once", n)
		}
		seen[n] = true
	}
	return nil
}

// CourseSpec is one course the student wants and the acceptable slots per class type.
// A missing or empty slot list means the class type is not required.
type CourseSpec struct {
	Code  string                    `json:"code" validate:"required,max=20"`
	Name  string                    `json:"name" validate:"max=200"`
	Slots map[ClassType]RankedSlots `json:"slots"`
}

// RequiredTypes returns the class types with a non-empty slot list, in L, T, P order
func (c CourseSpec) RequiredTypes() []ClassType {
	var types []ClassType
	for _, t := range ClassTypes {
		if len(c.Slots[t]) > 0 {
			types = append(types, t)
		}
	}
	return types
}

// SlotsFor returns the ranked slots for a class type, nil when not required
func (c CourseSpec) SlotsFor(t ClassType) RankedSlots {
	return c.Slots[t]
}

// NormalizeCode upper-cases and trims a course code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
