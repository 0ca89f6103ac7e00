package services_test

import (
	"strings"
	"testing"

	"github.com/abrezinsky/autobid/internal/services"
)

func TestServiceError_Error(t *testing.T) {
	err := &services.ServiceError{Message: "test error message"}

	if err.Error() != "test error message" {
		t.Errorf("expected 'test error message', got %q", err.Error())
	}
}

func TestInvalidTableError_Error(t *testing.T) {
	err := &services.InvalidTableError{Table: "bad_table"}

	result := err.Error()
	if !strings.Contains(result, "bad_table") || !strings.Contains(result, "invalid table") {
		t.Errorf("unexpected message %q", result)
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"ErrRunInProgress", services.ErrRunInProgress, "already in progress"},
		{"ErrNoRunInProgress", services.ErrNoRunInProgress, "no registration run"},
		{"ErrMissingCredentials", services.ErrMissingCredentials, "password"},
		{"ErrInvalidMethod", services.ErrInvalidMethod, "http or browser"},
		{"ErrCourseExists", services.ErrCourseExists, "already"},
		{"ErrInvalidSchedule", services.ErrInvalidSchedule, "cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			if !strings.Contains(strings.ToLower(msg), tt.contains) {
				t.Errorf("expected error message to contain %q, got %q", tt.contains, msg)
			}
		})
	}
}
