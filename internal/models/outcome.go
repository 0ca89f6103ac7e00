package models

// OutcomeKind classifies the result of one bidding attempt
type OutcomeKind string

const (
	OutcomeSuccess               OutcomeKind = "success"
	OutcomeNoAvailableSlots      OutcomeKind = "no_available_slots"
	OutcomeInvalidCombination    OutcomeKind = "invalid_combination"
	OutcomeScheduleClash         OutcomeKind = "schedule_clash"
	OutcomeCreditHourCapExceeded OutcomeKind = "credit_hour_cap_exceeded"
	OutcomeAmbiguousServerReply  OutcomeKind = "ambiguous_server_reply"
	OutcomeTransientFailure      OutcomeKind = "transient_failure"
)

// Terminal reports whether the course needs no further attempts.
// Only success is a real win; a clash or the credit cap leave nothing more to do.
func (k OutcomeKind) Terminal() bool {
	switch k {
	case OutcomeSuccess, OutcomeScheduleClash, OutcomeCreditHourCapExceeded:
		return true
	}
	return false
}

// Retryable reports whether the course should be attempted again straight away
func (k OutcomeKind) Retryable() bool {
	switch k {
	case OutcomeInvalidCombination, OutcomeTransientFailure, OutcomeAmbiguousServerReply:
		return true
	}
	return false
}

// Outcome is the classification of one submit attempt
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	CourseCode string      `json:"course_code"`
	Message    string      `json:"message,omitempty"`
}

// CourseState is where a course sits in the registrar state machine
type CourseState string

const (
	StatePending    CourseState = "pending"
	StateAttempting CourseState = "attempting"
	StateSatisfied  CourseState = "satisfied"
	StateRetryable  CourseState = "retryable"
	StateAbandoned  CourseState = "abandoned"
	// StateFailed means the retry policy ran out while the last outcome was retryable
	StateFailed CourseState = "failed"
)

// StateFor maps an outcome to the state the course moves to
func StateFor(k OutcomeKind) CourseState {
	switch {
	case k.Terminal():
		return StateSatisfied
	case k.Retryable():
		return StateRetryable
	case k == OutcomeNoAvailableSlots:
		return StateAbandoned
	}
	return StatePending
}
