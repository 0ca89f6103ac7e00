package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/abrezinsky/autobid/internal/auth"
	"github.com/abrezinsky/autobid/internal/bidding"
	"github.com/abrezinsky/autobid/internal/handlers"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/repository/mock"
	"github.com/abrezinsky/autobid/internal/services"
	"github.com/abrezinsky/autobid/internal/testutil"
	"github.com/abrezinsky/autobid/internal/websocket"
	"github.com/abrezinsky/autobid/pkg/unitreg"
)

var defaultSettings = services.UserSettings{Method: "http", Headless: true, MaxRetries: 1}

// testSetup holds handlers wired to real services over an in-memory database
type testSetup struct {
	repo       *mock.Repository
	handlers   *handlers.Handlers
	router     http.Handler
	authCookie *http.Cookie
	runs       *services.RunService
	settings   *services.SettingsService
	catalog    *services.CatalogService
}

type mockFactory struct {
	mu   sync.Mutex
	opts []unitreg.MockOption
	reqs []services.ClientRequest
}

func (f *mockFactory) build(req services.ClientRequest) (bidding.Client, func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return unitreg.NewMockClientFor(req.Courses, f.opts...), func() error { return nil }, nil
}

func newServices(t *testing.T, opts ...unitreg.MockOption) (*mock.Repository, *services.CatalogService, *services.RunService, *services.SettingsService) {
	t.Helper()
	repo := mock.NewRepository(testutil.NewTestRepository(t))
	log := logger.Nop()
	settings := services.NewSettingsService(log, repo, defaultSettings)
	catalog := services.NewCatalogService(log, repo)
	factory := &mockFactory{opts: opts}
	runs := services.NewRunService(log, repo, settings, factory.build, bidding.RetryPolicy{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runs.Shutdown(ctx)
	})
	return repo, catalog, runs, settings
}

func newTestSetup(t *testing.T, opts ...unitreg.MockOption) *testSetup {
	t.Helper()
	repo, catalog, runs, settings := newServices(t, opts...)
	h := handlers.NewForTesting(catalog, runs, settings)

	token, _ := h.Auth.Login("test-password", "192.0.2.1:1234")
	return &testSetup{
		repo:       repo,
		handlers:   h,
		router:     h.Router(),
		authCookie: &http.Cookie{Name: h.Auth.CookieName(), Value: token},
		runs:       runs,
		settings:   settings,
		catalog:    catalog,
	}
}

func testTemplates() fstest.MapFS {
	return fstest.MapFS{
		"login.html": &fstest.MapFile{
			Data: []byte(`<html><body>Login{{if .Error}} - {{.Error}}{{end}}</body></html>`),
		},
		"layout.html": &fstest.MapFile{
			Data: []byte(`{{define "layout"}}<html><head><title>{{.Title}}</title></head><body><h1>{{.PageTitle}}</h1><nav data-active="{{.ActiveNav}}"></nav>{{template "content" .}}</body></html>{{end}}`),
		},
		"dashboard.html": &fstest.MapFile{Data: []byte(`{{define "content"}}<div>Dashboard Content</div>{{end}}`)},
		"courses.html":   &fstest.MapFile{Data: []byte(`{{define "content"}}<div>Courses Content</div>{{end}}`)},
		"history.html":   &fstest.MapFile{Data: []byte(`{{define "content"}}<div>History Content</div>{{end}}`)},
		"settings.html":  &fstest.MapFile{Data: []byte(`{{define "content"}}<div>Settings Content</div>{{end}}`)},
	}
}

func newTestSetupWithTemplates(t *testing.T) *testSetup {
	t.Helper()
	repo, catalog, runs, settings := newServices(t)
	staticServer := handlers.NewStaticServer(fstest.MapFS{
		"css/app.css": &fstest.MapFile{Data: []byte("body{}")},
	})
	dashboardAuth := auth.New("test-password")
	hub := websocket.New(logger.Nop(), runs)

	h, err := handlers.New(catalog, runs, settings, testTemplates(), staticServer,
		dashboardAuth, hub, handlers.NoopHTTPLogger{}, "http://192.168.1.20:8080")
	if err != nil {
		t.Fatalf("failed to create handlers: %v", err)
	}

	token, _ := dashboardAuth.Login("test-password", "192.0.2.1:1234")
	return &testSetup{
		repo:       repo,
		handlers:   h,
		router:     h.Router(),
		authCookie: &http.Cookie{Name: dashboardAuth.CookieName(), Value: token},
		runs:       runs,
		settings:   settings,
		catalog:    catalog,
	}
}

// do sends an authenticated request through the router
func (s *testSetup) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.AddCookie(s.authCookie)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testSetup) login(t *testing.T) {
	t.Helper()
	id, pw := "21ABC01234", "s3cret"
	if err := s.settings.Update(context.Background(), services.SettingsUpdate{StudentID: &id, Password: &pw}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func waitIdle(t *testing.T, runs *services.RunService) *services.Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := runs.Status(context.Background())
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if !status.Running {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run did not finish in time")
	return nil
}
