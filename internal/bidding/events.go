package bidding

import "github.com/abrezinsky/autobid/internal/models"

// EventType identifies a registrar progress event
type EventType string

const (
	EventCourseStarted    EventType = "course_started"
	EventAttemptFinished  EventType = "attempt_finished"
	EventCourseFinished   EventType = "course_finished"
	EventSessionRecovered EventType = "session_recovered"
	EventPassFinished     EventType = "pass_finished"
)

// Event reports registrar progress to an Observer
type Event struct {
	Type    EventType          `json:"type"`
	Pass    int                `json:"pass"`
	Course  string             `json:"course,omitempty"`
	Attempt int                `json:"attempt,omitempty"`
	State   models.CourseState `json:"state,omitempty"`
	Outcome *models.Outcome    `json:"outcome,omitempty"`
	Message string             `json:"message,omitempty"`
}

// Observer receives registrar events. Calls happen on the run goroutine.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// OnEvent calls f
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}
