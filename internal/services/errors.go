package services

import "fmt"

// Service errors
var (
	ErrRunInProgress      = &ServiceError{Message: "a registration run is already in progress"}
	ErrNoRunInProgress    = &ServiceError{Message: "no registration run in progress"}
	ErrMissingCredentials = &ServiceError{Message: "student ID and password are required"}
	ErrInvalidMethod      = &ServiceError{Message: "method must be http or browser"}
	ErrInvalidMaxRetries  = &ServiceError{Message: "max retries must not be negative"}
	ErrCourseExists       = &ServiceError{Message: "course is already in the catalog"}
	ErrCourseNotFound     = &ServiceError{Message: "course not found"}
	ErrRunNotFound        = &ServiceError{Message: "run not found"}
	ErrNoTablesSpecified  = &ServiceError{Message: "no tables specified"}
	ErrInvalidSchedule    = &ServiceError{Message: "invalid cron schedule"}
	ErrNoSchedule         = &ServiceError{Message: "no run is scheduled"}
	ErrEmptyCatalog       = &ServiceError{Message: "no courses to register"}
)

// ServiceError represents a service-level error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// InvalidTableError represents an invalid table name error
type InvalidTableError struct {
	Table string
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("invalid table name: %s", e.Table)
}
