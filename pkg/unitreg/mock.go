package unitreg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/models"
)

// Toggle records one Select or Deselect call on the mock
type Toggle struct {
	Selected bool
	Handle   models.SlotHandle
}

// Submission records one SubmitSelection call on the mock
type Submission struct {
	Code    string
	Handles []models.SlotHandle
}

// MockClient is a scripted portal for tests and dry runs.
// Per-course sequences are consumed one entry per call and the last entry repeats.
type MockClient struct {
	mu          sync.Mutex
	snapshots   map[string][][]models.SlotRow
	replies     map[string][]string
	fetchErrs   []error
	submitErr   error
	loginErrs   []error
	alive       []bool
	delay       time.Duration
	current     string
	fetches     map[string]int
	submits     map[string]int
	aliveChecks int
	logins      int
	toggles     []Toggle
	submissions []Submission
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithSnapshots sets the rows returned by successive fetches of a course
func WithSnapshots(code string, snapshots ...[]models.SlotRow) MockOption {
	return func(m *MockClient) {
		m.snapshots[code] = snapshots
	}
}

// WithReplies sets the reply texts returned by successive submissions of a course
func WithReplies(code string, replies ...string) MockOption {
	return func(m *MockClient) {
		m.replies[code] = replies
	}
}

// WithFetchErrors sets errors returned by successive fetches; nil entries succeed
func WithFetchErrors(errs ...error) MockOption {
	return func(m *MockClient) {
		m.fetchErrs = errs
	}
}

// WithSubmitError sets an error to return from SubmitSelection
func WithSubmitError(err error) MockOption {
	return func(m *MockClient) {
		m.submitErr = err
	}
}

// WithLoginErrors sets errors returned by successive logins; nil entries succeed
func WithLoginErrors(errs ...error) MockOption {
	return func(m *MockClient) {
		m.loginErrs = errs
	}
}

// WithSessionAlive sets the results of successive SessionAlive checks
func WithSessionAlive(states ...bool) MockOption {
	return func(m *MockClient) {
		m.alive = states
	}
}

// WithDelay makes every fetch take d, or less if the context ends first
func WithDelay(d time.Duration) MockOption {
	return func(m *MockClient) {
		m.delay = d
	}
}

// NewMockClient creates a new mock portal client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		snapshots: make(map[string][][]models.SlotRow),
		replies:   make(map[string][]string),
		fetches:   make(map[string]int),
		submits:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMockClientFor creates a mock where the first choice of every course is open
// and every submission succeeds
func NewMockClientFor(courses []models.CourseSpec, opts ...MockOption) *MockClient {
	m := NewMockClient()
	for _, c := range courses {
		m.snapshots[c.Code] = [][]models.SlotRow{DefaultSnapshot(c)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultSnapshot returns one selectable row for the preferred slot of each required type
func DefaultSnapshot(c models.CourseSpec) []models.SlotRow {
	var rows []models.SlotRow
	for _, t := range c.RequiredTypes() {
		slot := c.Slots[t][0]
		rows = append(rows, models.SlotRow{
			ClassType:  t,
			SlotNumber: slot,
			Selectable: true,
			Handle:     models.SlotHandle(fmt.Sprintf("%s-%s%d", c.Code, t, slot)),
		})
	}
	return rows
}

func pick[T any](seq []T, i int) (T, bool) {
	var zero T
	if len(seq) == 0 {
		return zero, false
	}
	if i >= len(seq) {
		return seq[len(seq)-1], true
	}
	return seq[i], true
}

// Login simulates portal authentication
func (m *MockClient) Login(ctx context.Context, studentID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.logins
	m.logins++
	err, _ := pick(m.loginErrs, i)
	return err
}

// SessionAlive returns the scripted session state, alive by default
func (m *MockClient) SessionAlive(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.aliveChecks
	m.aliveChecks++
	alive, ok := pick(m.alive, i)
	if !ok {
		return true, nil
	}
	return alive, nil
}

// FetchSlots returns the next scripted snapshot for a course
func (m *MockClient) FetchSlots(ctx context.Context, code string) ([]models.SlotRow, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, errors.Cancelled(ctx.Err())
		case <-timer.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.fetches {
		total += n
	}
	i := m.fetches[code]
	m.fetches[code]++
	if err, ok := pick(m.fetchErrs, total); ok && err != nil {
		return nil, err
	}

	snaps, ok := m.snapshots[code]
	if !ok {
		return nil, errors.NotFoundf("course %s has no timetable", code)
	}
	m.current = code
	rows, _ := pick(snaps, i)
	return rows, nil
}

// Select records a checked slot
func (m *MockClient) Select(ctx context.Context, handle models.SlotHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles = append(m.toggles, Toggle{Selected: true, Handle: handle})
	return nil
}

// Deselect records an unchecked slot
func (m *MockClient) Deselect(ctx context.Context, handle models.SlotHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles = append(m.toggles, Toggle{Selected: false, Handle: handle})
	return nil
}

// SubmitSelection records the submission and returns the next scripted reply
func (m *MockClient) SubmitSelection(ctx context.Context, handles []models.SlotHandle) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return "", m.submitErr
	}
	code := m.current
	m.submissions = append(m.submissions, Submission{Code: code, Handles: append([]models.SlotHandle(nil), handles...)})
	i := m.submits[code]
	m.submits[code]++
	reply, _ := pick(m.replies[code], i)
	return reply, nil
}

// Reset forgets the current course
func (m *MockClient) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
	return nil
}

// Logins returns the number of Login calls
func (m *MockClient) Logins() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins
}

// Fetches returns how many times a course was fetched
func (m *MockClient) Fetches(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[code]
}

// Toggles returns the recorded Select and Deselect calls
func (m *MockClient) Toggles() []Toggle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Toggle(nil), m.toggles...)
}

// Submissions returns the recorded submissions
func (m *MockClient) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Submission(nil), m.submissions...)
}
