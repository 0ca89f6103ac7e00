package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/abrezinsky/autobid/internal/bidding"
	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/models"
	"github.com/abrezinsky/autobid/internal/repository"
)

// MethodDryRun is the method recorded for runs against the scripted portal
const MethodDryRun = "dry-run"

// ClientRequest describes the portal client a run needs
type ClientRequest struct {
	Method   string
	Headless bool
	DryRun   bool
	Courses  []models.CourseSpec
}

// ClientFactory builds a portal client for a run. The returned close
// function is called once the run has finished.
type ClientFactory func(req ClientRequest) (bidding.Client, func() error, error)

// RunBroadcaster receives live run progress
type RunBroadcaster interface {
	BroadcastRunEvent(runID string, event bidding.Event)
	BroadcastRunStatus(status *Status)
}

// RunOptions selects what a run registers and how
type RunOptions struct {
	// Method overrides the stored method when set
	Method string `json:"method"`
	// Codes restricts the run to these catalog courses, in catalog order
	Codes  []string `json:"codes"`
	DryRun bool     `json:"dry_run"`
}

// Schedule is the pending scheduled run
type Schedule struct {
	Spec    string     `json:"spec"`
	Next    time.Time  `json:"next"`
	Options RunOptions `json:"options"`
}

// Status is the dashboard view of the current or latest run
type Status struct {
	Running  bool                  `json:"running"`
	Run      *models.Run           `json:"run,omitempty"`
	Results  []models.CourseResult `json:"results"`
	Schedule *Schedule             `json:"schedule,omitempty"`
}

// RunDetail is one run with its results and attempt log
type RunDetail struct {
	Run      *models.Run           `json:"run"`
	Results  []models.CourseResult `json:"results"`
	Attempts []models.Attempt      `json:"attempts"`
}

type activeRun struct {
	run     models.Run
	results []models.CourseResult
	cancel  context.CancelFunc
	done    chan struct{}
	summary *models.RunSummary
	err     error
}

// RunService starts, stops and records registration runs. At most one run
// is active at a time.
type RunService struct {
	log         logger.Logger
	repo        repository.FullRepository
	settings    SettingsServicer
	factory     ClientFactory
	policy      bidding.RetryPolicy
	broadcaster RunBroadcaster

	mu     sync.Mutex
	active *activeRun

	cron     *cron.Cron
	parser   cron.Parser
	entry    cron.EntryID
	schedule *Schedule
}

// NewRunService creates a new RunService. MaxPasses of policy is replaced
// by the max_retries setting of each run.
func NewRunService(log logger.Logger, repo repository.FullRepository, settings SettingsServicer, factory ClientFactory, policy bidding.RetryPolicy) *RunService {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &RunService{
		log:      log,
		repo:     repo,
		settings: settings,
		factory:  factory,
		policy:   policy,
		parser:   parser,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})),
		),
	}
}

// SetBroadcaster sets the broadcaster for run progress
func (s *RunService) SetBroadcaster(b RunBroadcaster) {
	s.broadcaster = b
}

func (s *RunService) broadcastStatus() {
	if s.broadcaster == nil {
		return
	}
	status, err := s.Status(context.Background())
	if err != nil {
		s.log.Warn("Failed to load run status", "error", err)
		return
	}
	s.broadcaster.BroadcastRunStatus(status)
}

// Start begins a run in the background and returns its record
func (s *RunService) Start(ctx context.Context, opts RunOptions) (*models.Run, error) {
	a, err := s.start(ctx, opts)
	if err != nil {
		return nil, err
	}
	run := a.run
	return &run, nil
}

// Run starts a run and waits for it to finish. Cancelling ctx stops the run.
func (s *RunService) Run(ctx context.Context, opts RunOptions) (*models.RunSummary, error) {
	a, err := s.start(ctx, opts)
	if err != nil {
		return nil, err
	}
	select {
	case <-a.done:
	case <-ctx.Done():
		a.cancel()
		<-a.done
	}
	return a.summary, a.err
}

func (s *RunService) start(ctx context.Context, opts RunOptions) (*activeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrRunInProgress
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	method := strings.ToLower(strings.TrimSpace(opts.Method))
	if method == "" {
		method = settings.Method
	}
	if method != "http" && method != "browser" {
		return nil, ErrInvalidMethod
	}

	creds, err := settings.Credentials()
	if err != nil {
		if !opts.DryRun {
			return nil, err
		}
		creds = bidding.Credentials{StudentID: "DRYRUN", Password: "dry-run"}
	}

	courses, err := s.selectCourses(ctx, opts.Codes)
	if err != nil {
		return nil, err
	}

	client, closeClient, err := s.factory(ClientRequest{
		Method:   method,
		Headless: settings.Headless,
		DryRun:   opts.DryRun,
		Courses:  courses,
	})
	if err != nil {
		return nil, err
	}

	recorded := method
	if opts.DryRun {
		recorded = MethodDryRun
	}
	run := models.Run{
		ID:        uuid.NewString(),
		Method:    recorded,
		Status:    models.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		closeQuietly(s.log, closeClient)
		return nil, err
	}

	results := make([]models.CourseResult, len(courses))
	for i, c := range courses {
		results[i] = models.CourseResult{Code: c.Code, Name: c.Name, State: models.StatePending}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a := &activeRun{run: run, results: results, cancel: cancel, done: make(chan struct{})}
	s.active = a

	policy := s.policy
	policy.MaxPasses = settings.MaxRetries

	s.log.Info("Run started", "run", run.ID, "method", run.Method, "courses", len(courses), "max_passes", policy.MaxPasses)
	go s.execute(runCtx, a, client, closeClient, creds, policy, courses)
	go s.broadcastStatus()
	return a, nil
}

func (s *RunService) selectCourses(ctx context.Context, codes []string) ([]models.CourseSpec, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	if len(codes) > 0 {
		want := make(map[string]bool, len(codes))
		for _, c := range codes {
			want[models.NormalizeCode(c)] = true
		}
		var picked []models.CourseSpec
		for _, c := range courses {
			if want[c.Code] {
				picked = append(picked, c)
				delete(want, c.Code)
			}
		}
		if len(want) > 0 {
			return nil, ErrCourseNotFound
		}
		courses = picked
	}
	if len(courses) == 0 {
		return nil, ErrEmptyCatalog
	}
	return courses, nil
}

func (s *RunService) execute(ctx context.Context, a *activeRun, client bidding.Client, closeClient func() error,
	creds bidding.Credentials, policy bidding.RetryPolicy, courses []models.CourseSpec) {
	defer a.cancel()

	registrar := bidding.NewRegistrar(s.log, client, creds, policy)
	registrar.SetObserver(bidding.ObserverFunc(func(e bidding.Event) {
		s.observe(a, e)
	}))

	summary, err := registrar.Run(ctx, courses)
	summary.RunID = a.run.ID
	closeQuietly(s.log, closeClient)

	// The run context is already done when stopped, so records use a fresh one
	bg := context.Background()
	for _, r := range summary.Results {
		if err := s.repo.SaveCourseResult(bg, a.run.ID, r); err != nil {
			s.log.Error("Failed to save course result", "run", a.run.ID, "course", r.Code, "error", err)
		}
	}

	status, message := finalStatus(summary, err)
	finished := time.Now().UTC()
	if err := s.repo.FinishRun(bg, a.run.ID, status, summary.Passes, message, finished); err != nil {
		s.log.Error("Failed to finish run", "run", a.run.ID, "error", err)
	}
	s.log.Info("Run finished", "run", a.run.ID, "status", string(status), "passes", summary.Passes, "message", message)

	s.mu.Lock()
	a.summary = summary
	a.err = err
	a.results = summary.Results
	a.run.Status = status
	a.run.Passes = summary.Passes
	a.run.Message = message
	a.run.FinishedAt = &finished
	s.active = nil
	s.mu.Unlock()
	close(a.done)

	s.broadcastStatus()
}

func finalStatus(summary *models.RunSummary, err error) (models.RunStatus, string) {
	switch {
	case err == nil:
		return models.RunCompleted, fmt.Sprintf("%d of %d courses satisfied",
			summary.Count(models.StateSatisfied), len(summary.Results))
	case errors.Is(err, errors.ErrCancelled):
		return models.RunStopped, "stopped by user"
	default:
		return models.RunFailed, err.Error()
	}
}

func (s *RunService) observe(a *activeRun, e bidding.Event) {
	if e.Type == bidding.EventAttemptFinished && e.Outcome != nil {
		_, err := s.repo.AddAttempt(context.Background(), models.Attempt{
			RunID:     a.run.ID,
			Code:      e.Course,
			Attempt:   e.Attempt,
			Outcome:   e.Outcome.Kind,
			Message:   e.Outcome.Message,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			s.log.Error("Failed to record attempt", "run", a.run.ID, "course", e.Course, "error", err)
		}
	}

	s.mu.Lock()
	for i := range a.results {
		r := &a.results[i]
		if r.Code != e.Course {
			continue
		}
		switch e.Type {
		case bidding.EventCourseStarted:
			r.State = models.StateAttempting
		case bidding.EventAttemptFinished:
			r.State = e.State
			r.Attempts = e.Attempt
			if e.Outcome != nil {
				r.Outcome = e.Outcome.Kind
				r.Message = e.Outcome.Message
			}
		case bidding.EventCourseFinished:
			r.State = e.State
			r.Attempts = e.Attempt
		}
	}
	if e.Type == bidding.EventPassFinished {
		a.run.Passes = e.Pass
	}
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.BroadcastRunEvent(a.run.ID, e)
	}
}

// Stop cancels the active run. The run records its results and ends as stopped.
func (s *RunService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ErrNoRunInProgress
	}
	s.log.Info("Stopping run", "run", s.active.run.ID)
	s.active.cancel()
	return nil
}

// Status returns the active run, or the latest recorded one
func (s *RunService) Status(ctx context.Context) (*Status, error) {
	s.mu.Lock()
	status := &Status{Schedule: s.currentSchedule()}
	if a := s.active; a != nil {
		run := a.run
		status.Running = true
		status.Run = &run
		status.Results = append([]models.CourseResult(nil), a.results...)
		s.mu.Unlock()
		return status, nil
	}
	s.mu.Unlock()

	runs, err := s.repo.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		status.Results = []models.CourseResult{}
		return status, nil
	}
	status.Run = &runs[0]
	status.Results, err = s.repo.ListCourseResults(ctx, runs[0].ID)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// History returns recorded runs, newest first. A non-positive limit returns all.
func (s *RunService) History(ctx context.Context, limit int) ([]models.Run, error) {
	return s.repo.ListRuns(ctx, limit)
}

// Detail returns a recorded run with its results and attempts
func (s *RunService) Detail(ctx context.Context, id string) (*RunDetail, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	results, err := s.repo.ListCourseResults(ctx, id)
	if err != nil {
		return nil, err
	}
	attempts, err := s.repo.ListAttempts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, Results: results, Attempts: attempts}, nil
}

// ExportResults writes the course results of a run as CSV
func (s *RunService) ExportResults(ctx context.Context, id string, w io.Writer) error {
	detail, err := s.Detail(ctx, id)
	if err != nil {
		return err
	}
	return gocsv.Marshal(&detail.Results, w)
}

// ScheduleRun arranges for a run to start on a cron schedule. Five-field
// specs, six fields with seconds and descriptors like @every 30s are
// accepted. A new schedule replaces the previous one.
func (s *RunService) ScheduleRun(spec string, opts RunOptions) (*Schedule, error) {
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = s.cron.Schedule(sched, cron.FuncJob(func() {
		if _, err := s.Start(context.Background(), opts); err != nil {
			s.log.Warn("Scheduled run did not start", "error", err)
		}
	}))
	s.schedule = &Schedule{Spec: spec, Next: sched.Next(time.Now()), Options: opts}
	s.cron.Start()

	s.log.Info("Run scheduled", "spec", spec, "next", s.schedule.Next.Format(time.RFC3339))
	out := *s.schedule
	return &out, nil
}

// Unschedule removes the scheduled run
func (s *RunService) Unschedule() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == 0 {
		return ErrNoSchedule
	}
	s.cron.Remove(s.entry)
	s.entry = 0
	s.schedule = nil
	s.log.Info("Schedule removed")
	return nil
}

// currentSchedule must be called with s.mu held
func (s *RunService) currentSchedule() *Schedule {
	if s.schedule == nil {
		return nil
	}
	out := *s.schedule
	if e := s.cron.Entry(s.entry); !e.Next.IsZero() {
		out.Next = e.Next
	}
	return &out
}

// Shutdown stops the scheduler and any active run, waiting until the run
// has recorded its results or ctx ends.
func (s *RunService) Shutdown(ctx context.Context) error {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	a := s.active
	s.mu.Unlock()
	if a == nil {
		return nil
	}
	a.cancel()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func closeQuietly(log logger.Logger, closeFn func() error) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		log.Warn("Failed to close portal client", "error", err)
	}
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
