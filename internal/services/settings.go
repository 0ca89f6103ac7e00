package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/abrezinsky/autobid/internal/bidding"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/repository"
)

// Setting keys persisted in the settings table
const (
	KeyStudentID    = "student_id"
	KeyPassword     = "password"
	KeyMethod       = "method"
	KeyHeadlessMode = "headless_mode"
	KeyMaxRetries   = "max_retries"
)

// UserSettings are the operator's persisted preferences
type UserSettings struct {
	StudentID  string `json:"student_id"`
	Password   string `json:"-"`
	Method     string `json:"method"`
	Headless   bool   `json:"headless_mode"`
	MaxRetries int    `json:"max_retries"`
}

// Credentials returns the portal login of these settings
func (u UserSettings) Credentials() (bidding.Credentials, error) {
	if u.StudentID == "" || u.Password == "" {
		return bidding.Credentials{}, ErrMissingCredentials
	}
	return bidding.Credentials{StudentID: u.StudentID, Password: u.Password}, nil
}

// SettingsUpdate carries the fields to change; nil fields are left alone
type SettingsUpdate struct {
	StudentID  *string
	Password   *string
	Method     *string
	Headless   *bool
	MaxRetries *int
}

// SettingsService handles settings-related business logic.
// Stored values override the configured defaults.
type SettingsService struct {
	log      logger.Logger
	repo     repository.SettingsRepository
	defaults UserSettings
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(log logger.Logger, repo repository.SettingsRepository, defaults UserSettings) *SettingsService {
	return &SettingsService{log: log, repo: repo, defaults: defaults}
}

// lookup returns the stored value of key and whether it is set
func (s *SettingsService) lookup(ctx context.Context, key string) (string, bool, error) {
	value, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", false, nil
		}
		return "", false, err // Propagate database errors
	}
	return value, true, nil
}

// Get returns the effective settings
func (s *SettingsService) Get(ctx context.Context) (UserSettings, error) {
	out := s.defaults

	if v, ok, err := s.lookup(ctx, KeyStudentID); err != nil {
		return out, err
	} else if ok {
		out.StudentID = v
	}
	if v, ok, err := s.lookup(ctx, KeyPassword); err != nil {
		return out, err
	} else if ok {
		out.Password = v
	}
	if v, ok, err := s.lookup(ctx, KeyMethod); err != nil {
		return out, err
	} else if ok && v != "" {
		out.Method = v
	}
	if v, ok, err := s.lookup(ctx, KeyHeadlessMode); err != nil {
		return out, err
	} else if ok {
		out.Headless = v == "true"
	}
	if v, ok, err := s.lookup(ctx, KeyMaxRetries); err != nil {
		return out, err
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			out.MaxRetries = n
		} else {
			s.log.Warn("Ignoring invalid stored setting", "key", KeyMaxRetries, "value", v)
		}
	}
	return out, nil
}

// Update validates and stores the given fields
func (s *SettingsService) Update(ctx context.Context, u SettingsUpdate) error {
	if u.Method != nil {
		m := strings.ToLower(strings.TrimSpace(*u.Method))
		if m != "http" && m != "browser" {
			return ErrInvalidMethod
		}
		u.Method = &m
	}
	if u.MaxRetries != nil && *u.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if u.StudentID != nil {
		if err := s.repo.SetSetting(ctx, KeyStudentID, strings.ToUpper(strings.TrimSpace(*u.StudentID))); err != nil {
			return err
		}
	}
	if u.Password != nil {
		if err := s.repo.SetSetting(ctx, KeyPassword, *u.Password); err != nil {
			return err
		}
	}
	if u.Method != nil {
		if err := s.repo.SetSetting(ctx, KeyMethod, *u.Method); err != nil {
			return err
		}
	}
	if u.Headless != nil {
		if err := s.repo.SetSetting(ctx, KeyHeadlessMode, strconv.FormatBool(*u.Headless)); err != nil {
			return err
		}
	}
	if u.MaxRetries != nil {
		if err := s.repo.SetSetting(ctx, KeyMaxRetries, strconv.Itoa(*u.MaxRetries)); err != nil {
			return err
		}
	}
	s.log.Info("Settings updated")
	return nil
}

// Reset removes stored overrides so the configured defaults apply again
func (s *SettingsService) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		keys = []string{KeyStudentID, KeyPassword, KeyMethod, KeyHeadlessMode, KeyMaxRetries}
	}
	for _, k := range keys {
		if err := s.repo.DeleteSetting(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// AllSettings returns the effective settings for display, with the password masked
func (s *SettingsService) AllSettings(ctx context.Context) (map[string]interface{}, error) {
	u, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		KeyStudentID:    u.StudentID,
		KeyPassword:     u.Password != "",
		KeyMethod:       u.Method,
		KeyHeadlessMode: u.Headless,
		KeyMaxRetries:   u.MaxRetries,
	}, nil
}

// ResetTablesResult contains the result of a database reset
type ResetTablesResult struct {
	Tables  []string
	Message string
}

// ValidTables defines which tables can be reset
var ValidTables = map[string]bool{
	"courses": true, "runs": true, "course_results": true, "attempts": true, "settings": true,
}

// ResetTables validates and resets the specified database tables.
// Clearing runs also clears the per-run tables.
func (s *SettingsService) ResetTables(ctx context.Context, tables []string) (*ResetTablesResult, error) {
	if len(tables) == 0 {
		return nil, ErrNoTablesSpecified
	}

	var tablesToReset []string
	for _, table := range tables {
		if !ValidTables[table] {
			return nil, &InvalidTableError{Table: table}
		}
		tablesToReset = append(tablesToReset, table)
	}

	if containsTable(tablesToReset, "runs") {
		for _, dep := range []string{"attempts", "course_results"} {
			if !containsTable(tablesToReset, dep) {
				tablesToReset = append([]string{dep}, tablesToReset...)
			}
		}
	}

	for _, table := range tablesToReset {
		if err := s.repo.ClearTable(ctx, table); err != nil {
			return nil, err
		}
	}
	s.log.Info("Tables reset", "tables", strings.Join(tablesToReset, ","))

	return &ResetTablesResult{
		Tables:  tablesToReset,
		Message: "Successfully deleted data from tables",
	}, nil
}

func containsTable(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
