package models

import "time"

// RunStatus is the lifecycle status of a registration run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// Run is one registration run as recorded in history
type Run struct {
	ID         string     `json:"id"`
	Method     string     `json:"method"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Message    string     `json:"message,omitempty"`
	Passes     int        `json:"passes"`
}

// CourseResult is the final state of one course at the end of a run
type CourseResult struct {
	Code     string      `json:"code" csv:"code"`
	Name     string      `json:"name" csv:"name"`
	State    CourseState `json:"state" csv:"state"`
	Outcome  OutcomeKind `json:"outcome,omitempty" csv:"outcome"`
	Attempts int         `json:"attempts" csv:"attempts"`
	Message  string      `json:"message,omitempty" csv:"message"`
}

// Attempt is one recorded submit attempt
type Attempt struct {
	ID        int64       `json:"id"`
	RunID     string      `json:"run_id"`
	Code      string      `json:"code"`
	Attempt   int         `json:"attempt"`
	Outcome   OutcomeKind `json:"outcome"`
	Message   string      `json:"message,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// RunSummary is what a run reports when it ends
type RunSummary struct {
	RunID   string         `json:"run_id"`
	Passes  int            `json:"passes"`
	Stopped bool           `json:"stopped"`
	Results []CourseResult `json:"results"`
}

// Result returns the result for a course code
func (s *RunSummary) Result(code string) (CourseResult, bool) {
	for _, r := range s.Results {
		if r.Code == code {
			return r, true
		}
	}
	return CourseResult{}, false
}

// Count returns how many courses ended in the given state
func (s *RunSummary) Count(state CourseState) int {
	n := 0
	for _, r := range s.Results {
		if r.State == state {
			n++
		}
	}
	return n
}

// AllSatisfied reports whether every course ended satisfied
func (s *RunSummary) AllSatisfied() bool {
	return s.Count(StateSatisfied) == len(s.Results)
}
