package handlers

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/abrezinsky/autobid/internal/auth"
	"github.com/abrezinsky/autobid/internal/services"
	"github.com/abrezinsky/autobid/internal/websocket"
)

// NewStaticServer creates a static file server from an fs.FS
func NewStaticServer(staticFS fs.FS) http.Handler {
	return http.FileServer(http.FS(staticFS))
}

// PageData holds the data passed to dashboard templates
type PageData struct {
	Title     string
	PageTitle string
	ActiveNav string
}

// Templates holds all parsed HTML templates
type Templates struct {
	Login     *template.Template
	Dashboard *template.Template
	Courses   *template.Template
	History   *template.Template
	Settings  *template.Template
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Catalog      services.CatalogServicer
	Runs         services.RunServicer
	Settings     services.SettingsServicer
	Auth         *auth.Auth
	Hub          *websocket.Hub
	Log          HTTPLogger
	BaseURL      string
	templates    *Templates
	staticServer http.Handler
}

// HTTPLogger is an interface for loggers that support HTTP logging control
type HTTPLogger interface {
	IsHTTPLoggingEnabled() bool
}

// New creates a new Handlers instance with all dependencies
func New(
	catalog services.CatalogServicer,
	runs services.RunServicer,
	settings services.SettingsServicer,
	templatesFS fs.FS,
	staticServer http.Handler,
	dashboardAuth *auth.Auth,
	hub *websocket.Hub,
	log HTTPLogger,
	baseURL string,
) (*Handlers, error) {
	templates, err := loadTemplates(templatesFS)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return &Handlers{
		Catalog:      catalog,
		Runs:         runs,
		Settings:     settings,
		Auth:         dashboardAuth,
		Hub:          hub,
		Log:          log,
		BaseURL:      baseURL,
		templates:    templates,
		staticServer: staticServer,
	}, nil
}

// NoopHTTPLogger is a test logger that always returns false for HTTP logging
type NoopHTTPLogger struct{}

func (NoopHTTPLogger) IsHTTPLoggingEnabled() bool { return false }

// NewForTesting creates a Handlers instance without loading templates (for testing API endpoints)
func NewForTesting(
	catalog services.CatalogServicer,
	runs services.RunServicer,
	settings services.SettingsServicer,
) *Handlers {
	// Create a test auth with a known password
	testAuth := auth.New("test-password")
	return &Handlers{
		Catalog:  catalog,
		Runs:     runs,
		Settings: settings,
		Auth:     testAuth,
		Log:      NoopHTTPLogger{},
		BaseURL:  "http://localhost:8080",
		// templates left nil - API endpoints don't use templates
	}
}

// loadTemplates parses all templates once at startup
func loadTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{}
	var err error

	if t.Login, err = template.ParseFS(templatesFS, "login.html"); err != nil {
		return nil, fmt.Errorf("login template: %w", err)
	}
	pages := []struct {
		name string
		dst  **template.Template
	}{
		{"dashboard.html", &t.Dashboard},
		{"courses.html", &t.Courses},
		{"history.html", &t.History},
		{"settings.html", &t.Settings},
	}
	for _, p := range pages {
		if *p.dst, err = template.ParseFS(templatesFS, "layout.html", p.name); err != nil {
			return nil, fmt.Errorf("%s template: %w", p.name, err)
		}
	}

	return t, nil
}
