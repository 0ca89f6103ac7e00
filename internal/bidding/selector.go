package bidding

import (
	"context"
	"fmt"
	"math"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/models"
)

const unranked = math.MaxInt

type pick struct {
	rank   int
	slot   int
	handle models.SlotHandle
}

// Selection tracks the slot held for each required class type of one course.
// It survives across selector passes so a later pass can upgrade a pick.
type Selection struct {
	code        string
	picks       map[models.ClassType]*pick
	required    int
	satisfied   int
	diagnostics []string
}

// NewSelection returns an empty selection for a course
func NewSelection(course models.CourseSpec) *Selection {
	sel := &Selection{
		code:  course.Code,
		picks: make(map[models.ClassType]*pick),
	}
	for _, t := range course.RequiredTypes() {
		sel.picks[t] = &pick{rank: unranked}
		sel.required++
	}
	return sel
}

// Complete reports whether every required class type holds a slot
func (s *Selection) Complete() bool {
	return s.satisfied == s.required
}

// Required returns the number of class types the course needs
func (s *Selection) Required() int {
	return s.required
}

// Satisfied returns the number of class types that hold a slot
func (s *Selection) Satisfied() int {
	return s.satisfied
}

// Selected returns the slot number and handle held for a class type
func (s *Selection) Selected(t models.ClassType) (int, models.SlotHandle, bool) {
	p, ok := s.picks[t]
	if !ok || p.handle == "" {
		return 0, "", false
	}
	return p.slot, p.handle, true
}

// Handles returns the held handles in L, T, P order
func (s *Selection) Handles() []models.SlotHandle {
	var handles []models.SlotHandle
	for _, t := range models.ClassTypes {
		if p, ok := s.picks[t]; ok && p.handle != "" {
			handles = append(handles, p.handle)
		}
	}
	return handles
}

// Missing returns the required class types that hold no slot
func (s *Selection) Missing() []models.ClassType {
	var missing []models.ClassType
	for _, t := range models.ClassTypes {
		if p, ok := s.picks[t]; ok && p.handle == "" {
			missing = append(missing, t)
		}
	}
	return missing
}

// Diagnostics returns notes about wanted slots that could not be selected
func (s *Selection) Diagnostics() []string {
	return s.diagnostics
}

func (s *Selection) clear(t models.ClassType) {
	p := s.picks[t]
	if p.handle != "" {
		s.satisfied--
	}
	*p = pick{rank: unranked}
}

func (s *Selection) hold(t models.ClassType, rank, slot int, handle models.SlotHandle) {
	p := s.picks[t]
	if p.handle == "" {
		s.satisfied++
	}
	*p = pick{rank: rank, slot: slot, handle: handle}
}

// Selector picks at most one slot per class type, preferring lower ranks
type Selector struct {
	log logger.Logger
}

// NewSelector creates a new Selector
func NewSelector(log logger.Logger) *Selector {
	return &Selector{log: log}
}

// Apply runs one pass over rows, in the order received, and toggles slots through t.
// A held slot is never swapped for a worse one. Re-applying the same rows is a no-op.
// On cancellation the selection keeps whatever was held when the pass stopped.
func (s *Selector) Apply(ctx context.Context, t Toggler, sel *Selection, course models.CourseSpec, rows []models.SlotRow) error {
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return errors.Cancelled(err)
		}

		p, ok := sel.picks[row.ClassType]
		if !ok {
			continue
		}
		rank, ok := course.SlotsFor(row.ClassType).Rank(row.SlotNumber)
		if !ok || rank > p.rank {
			continue
		}
		if !row.Selectable {
			note := fmt.Sprintf("%s%d: slot unavailable", row.ClassType, row.SlotNumber)
			sel.diagnostics = append(sel.diagnostics, note)
			s.log.Debug("Slot unavailable", "course", course.Code, "type", string(row.ClassType), "slot", row.SlotNumber)
			continue
		}
		if rank == p.rank && row.Handle == p.handle {
			continue
		}

		// Deselect first so the portal never holds two slots of one type
		if p.handle != "" {
			if err := t.Deselect(ctx, p.handle); err != nil {
				return toggleError(ctx, err, "deselect", row.ClassType, p.slot)
			}
			s.log.Debug("Deselected slot", "course", course.Code, "type", string(row.ClassType), "slot", p.slot)
			sel.clear(row.ClassType)
		}

		if err := t.Select(ctx, row.Handle); err != nil {
			return toggleError(ctx, err, "select", row.ClassType, row.SlotNumber)
		}
		sel.hold(row.ClassType, rank, row.SlotNumber, row.Handle)
		s.log.Debug("Selected slot", "course", course.Code, "type", string(row.ClassType), "slot", row.SlotNumber, "rank", rank)
	}
	return nil
}

func toggleError(ctx context.Context, err error, action string, t models.ClassType, slot int) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Cancelled(ctxErr)
	}
	switch errors.KindOf(err) {
	case errors.ErrSessionExpired, errors.ErrCancelled:
		return err
	}
	return errors.Transport(err, fmt.Sprintf("failed to %s %s%d", action, t, slot))
}
