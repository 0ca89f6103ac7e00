package handlers

import "github.com/abrezinsky/autobid/internal/services"

// MoveCourseRequest represents a request to shift a course in the catalog
type MoveCourseRequest struct {
	Delta int `json:"delta"`
}

// RunRequest represents a request to start a registration run
type RunRequest struct {
	Method string   `json:"method"`
	Codes  []string `json:"codes"`
	DryRun bool     `json:"dry_run"`
}

func (r RunRequest) options() services.RunOptions {
	return services.RunOptions{Method: r.Method, Codes: r.Codes, DryRun: r.DryRun}
}

// ScheduleRequest represents a request to schedule a run with a cron expression
type ScheduleRequest struct {
	Spec string `json:"spec"`
	RunRequest
}

// SettingsUpdateRequest represents a request to update settings.
// Omitted fields keep their stored value.
type SettingsUpdateRequest struct {
	StudentID  *string `json:"student_id"`
	Password   *string `json:"password"`
	Method     *string `json:"method"`
	Headless   *bool   `json:"headless_mode"`
	MaxRetries *int    `json:"max_retries"`
}

// DatabaseResetRequest represents a request to reset database tables
type DatabaseResetRequest struct {
	Tables []string `json:"tables"`
}
