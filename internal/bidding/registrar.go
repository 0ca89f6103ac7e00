package bidding

import (
	"context"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/models"
)

// Registrar runs courses through the attempt state machine, one at a time,
// and loops over the catalog until every course is satisfied.
type Registrar struct {
	log       logger.Logger
	guard     *SessionGuard
	submitter *Submitter
	policy    RetryPolicy
	observer  Observer
	attempts  map[string]int
	pass      int
}

// NewRegistrar creates a Registrar driving the given portal client
func NewRegistrar(log logger.Logger, client Client, creds Credentials, policy RetryPolicy) *Registrar {
	return &Registrar{
		log:       log,
		guard:     NewSessionGuard(log, client, creds, policy),
		submitter: NewSubmitter(log, client, policy.SettleDelay),
		policy:    policy,
		observer:  nopObserver{},
		attempts:  make(map[string]int),
	}
}

// SetObserver sets the receiver of progress events
func (r *Registrar) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	r.observer = o
}

// Attempts returns how many attempts were made at a course during this run
func (r *Registrar) Attempts(code string) int {
	return r.attempts[code]
}

// Run registers every course. The returned summary is always non-nil.
// A cancelled run sets Stopped and returns an ErrCancelled error; bad
// credentials and an exhausted login breaker also end the run early.
func (r *Registrar) Run(ctx context.Context, courses []models.CourseSpec) (*models.RunSummary, error) {
	summary := &models.RunSummary{Results: make([]models.CourseResult, len(courses))}
	for i, c := range courses {
		summary.Results[i] = models.CourseResult{Code: c.Code, Name: c.Name, State: models.StatePending}
	}

	for pass := 1; !exceeded(r.policy.MaxPasses, pass); pass++ {
		r.pass = pass
		summary.Passes = pass
		r.log.Info("Starting pass", "pass", pass, "courses", len(courses))

		for i, course := range courses {
			if summary.Results[i].State == models.StateSatisfied {
				continue
			}
			result, err := r.RegisterCourse(ctx, course)
			summary.Results[i] = result
			if err != nil {
				if errors.Is(err, errors.ErrCancelled) {
					summary.Stopped = true
					r.log.Info("Run stopped by user", "course", course.Code)
				}
				return summary, err
			}
		}

		r.observer.OnEvent(Event{Type: EventPassFinished, Pass: pass})
		if summary.AllSatisfied() {
			r.log.Info("All courses satisfied", "passes", pass)
			return summary, nil
		}
		if exceeded(r.policy.MaxPasses, pass+1) {
			break
		}
		if err := sleep(ctx, r.policy.Backoff); err != nil {
			summary.Stopped = true
			return summary, err
		}
	}

	r.log.Info("Pass limit reached", "passes", summary.Passes,
		"satisfied", summary.Count(models.StateSatisfied), "courses", len(courses))
	return summary, nil
}

// RegisterCourse retries one course until it is satisfied, abandoned for this
// pass, or out of attempts. An expired session is recovered and the course
// starts over without counting an attempt.
func (r *Registrar) RegisterCourse(ctx context.Context, course models.CourseSpec) (models.CourseResult, error) {
	result := models.CourseResult{
		Code:     course.Code,
		Name:     course.Name,
		State:    models.StatePending,
		Attempts: r.attempts[course.Code],
	}
	r.observer.OnEvent(Event{Type: EventCourseStarted, Pass: r.pass, Course: course.Code, State: result.State})

	tries := 0
	recoveries := 0
	for {
		if err := r.guard.Ensure(ctx); err != nil {
			return result, err
		}

		result.State = models.StateAttempting
		outcome, err := r.submitter.Attempt(ctx, course)
		if err != nil {
			if errors.Is(err, errors.ErrSessionExpired) {
				r.log.Warn("Session expired", "course", course.Code)
				if err := r.guard.Recover(ctx); err != nil {
					result.State = models.StatePending
					return result, err
				}
				r.observer.OnEvent(Event{Type: EventSessionRecovered, Pass: r.pass, Course: course.Code})
				result.State = models.StatePending
				// Back-to-back expiries of the same course back off like retries
				recoveries++
				if recoveries > 1 {
					if err := sleep(ctx, r.policy.Delay(recoveries-1)); err != nil {
						return result, err
					}
				}
				continue
			}
			result.State = models.StatePending
			return result, err
		}

		recoveries = 0
		tries++
		r.attempts[course.Code]++
		result.Attempts = r.attempts[course.Code]
		result.Outcome = outcome.Kind
		result.Message = outcome.Message
		result.State = models.StateFor(outcome.Kind)

		r.log.Info("Attempt finished", "course", course.Code, "attempt", result.Attempts,
			"outcome", string(outcome.Kind), "message", outcome.Message)
		r.observer.OnEvent(Event{
			Type:    EventAttemptFinished,
			Pass:    r.pass,
			Course:  course.Code,
			Attempt: result.Attempts,
			State:   result.State,
			Outcome: &outcome,
		})

		if result.State != models.StateRetryable {
			r.finish(result)
			return result, nil
		}
		if r.policy.MaxAttempts > 0 && tries >= r.policy.MaxAttempts {
			result.State = models.StateFailed
			r.finish(result)
			return result, nil
		}
		if err := sleep(ctx, r.policy.Delay(tries)); err != nil {
			return result, err
		}
	}
}

func (r *Registrar) finish(result models.CourseResult) {
	r.log.Info("Course finished", "course", result.Code, "state", string(result.State), "attempts", result.Attempts)
	r.observer.OnEvent(Event{
		Type:    EventCourseFinished,
		Pass:    r.pass,
		Course:  result.Code,
		Attempt: result.Attempts,
		State:   result.State,
		Message: result.Message,
	})
}
