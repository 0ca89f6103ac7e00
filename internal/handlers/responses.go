package handlers

import (
	"time"

	"github.com/abrezinsky/autobid/internal/models"
)

// CoursesResponse is the response for catalog listings and imports
type CoursesResponse struct {
	Courses []models.CourseSpec `json:"courses"`
	Count   int                 `json:"count"`
}

// RunsResponse is the response for run history
type RunsResponse struct {
	Runs []models.Run `json:"runs"`
}

// ResetResponse is the response for a database reset
type ResetResponse struct {
	Message string   `json:"message"`
	Tables  []string `json:"tables"`
}

// SessionInfo is one signed-in dashboard browser
type SessionInfo struct {
	Remote   string    `json:"remote"`
	Created  time.Time `json:"created"`
	LastSeen time.Time `json:"last_seen"`
}

// SessionsResponse lists who is signed in to this dashboard instance
type SessionsResponse struct {
	Instance string        `json:"instance"`
	Sessions []SessionInfo `json:"sessions"`
}
