package bidding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/models"
)

// Submitter drives one fetch, select, submit and classify attempt for a course
type Submitter struct {
	log      logger.Logger
	portal   Portal
	selector *Selector
	settle   time.Duration
	last     *Selection
}

// NewSubmitter creates a new Submitter
func NewSubmitter(log logger.Logger, portal Portal, settle time.Duration) *Submitter {
	return &Submitter{
		log:      log,
		portal:   portal,
		selector: NewSelector(log),
		settle:   settle,
	}
}

// LastSelection returns the selection built by the most recent attempt
func (s *Submitter) LastSelection() *Selection {
	return s.last
}

// Attempt runs one attempt and classifies it.
// Expired sessions and cancellation come back as errors; every other
// failure is folded into a TransientFailure outcome.
func (s *Submitter) Attempt(ctx context.Context, course models.CourseSpec) (models.Outcome, error) {
	outcome := models.Outcome{CourseCode: course.Code}
	sel := NewSelection(course)
	s.last = sel

	if sel.Required() == 0 {
		outcome.Kind = models.OutcomeSuccess
		outcome.Message = "no class types required"
		return outcome, nil
	}

	if err := sleep(ctx, s.settle); err != nil {
		return outcome, err
	}

	rows, err := s.portal.FetchSlots(ctx, course.Code)
	if err != nil {
		if fatal := s.passThrough(ctx, err); fatal != nil {
			return outcome, fatal
		}
		s.log.Warn("Failed to fetch slots", "course", course.Code, "error", err)
		return transient(outcome, err), nil
	}
	s.log.Debug("Fetched slots", "course", course.Code, "rows", len(rows))

	if err := s.selector.Apply(ctx, s.portal, sel, course, rows); err != nil {
		if fatal := s.passThrough(ctx, err); fatal != nil {
			return outcome, fatal
		}
		s.log.Warn("Failed to toggle slot", "course", course.Code, "error", err)
		return transient(outcome, err), nil
	}

	if !sel.Complete() {
		outcome.Kind = models.OutcomeNoAvailableSlots
		outcome.Message = describeMissing(sel)
		if err := s.portal.Reset(ctx); err != nil {
			s.log.Warn("Failed to return to registration page", "course", course.Code, "error", err)
		}
		return outcome, nil
	}

	if err := ctx.Err(); err != nil {
		return outcome, errors.Cancelled(err)
	}

	reply, err := s.portal.SubmitSelection(ctx, sel.Handles())
	if err != nil {
		if fatal := s.passThrough(ctx, err); fatal != nil {
			return outcome, fatal
		}
		s.log.Warn("Failed to submit selection", "course", course.Code, "error", err)
		return transient(outcome, err), nil
	}

	outcome.Kind = ClassifyReply(reply)
	outcome.Message = strings.TrimSpace(reply)
	return outcome, nil
}

// passThrough returns err when it must reach the registrar instead of becoming an outcome
func (s *Submitter) passThrough(ctx context.Context, err error) error {
	if isCancelled(ctx, err) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Cancelled(ctxErr)
		}
		return err
	}
	if errors.Is(err, errors.ErrSessionExpired) {
		return err
	}
	return nil
}

func transient(outcome models.Outcome, err error) models.Outcome {
	outcome.Kind = models.OutcomeTransientFailure
	outcome.Message = err.Error()
	return outcome
}

func describeMissing(sel *Selection) string {
	var parts []string
	for _, t := range sel.Missing() {
		parts = append(parts, t.Name())
	}
	msg := fmt.Sprintf("no selectable slot for %s", strings.Join(parts, ", "))
	if d := sel.Diagnostics(); len(d) > 0 {
		msg += " (" + strings.Join(d, "; ") + ")"
	}
	return msg
}
