package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/autobid/internal/auth"
	"github.com/abrezinsky/autobid/internal/bidding"
	"github.com/abrezinsky/autobid/internal/captcha"
	"github.com/abrezinsky/autobid/internal/config"
	"github.com/abrezinsky/autobid/internal/handlers"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/repository"
	"github.com/abrezinsky/autobid/internal/services"
	"github.com/abrezinsky/autobid/internal/websocket"
	"github.com/abrezinsky/autobid/pkg/unitreg"
)

// shutdownTimeout bounds how long Close waits for a run and the server to stop
const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	log             logger.Logger
	repo            *repository.Repository
	settings        *services.SettingsService
	catalog         *services.CatalogService
	runs            *services.RunService
	handlers        *handlers.Handlers
	cancelCountdown context.CancelFunc

	mu        sync.Mutex
	server    *http.Server
	closed    bool
	closeOnce sync.Once
}

// New creates and initializes a new application instance
func New(log logger.Logger, cfg *config.Config, solver unitreg.CaptchaSolver, templatesFS, staticFS fs.FS, dashboardAuth *auth.Auth) (*App, error) {
	repo, err := repository.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}

	// Initialize services
	settingsService := services.NewSettingsService(log, repo, DefaultSettings(cfg))
	catalogService := services.NewCatalogService(log, repo)
	runService := services.NewRunService(log, repo, settingsService, ClientFactory(cfg, solver, log), cfg.Policy())

	// Initialize WebSocket hub with DI
	hub := websocket.New(log, runService)
	hub.Start()
	runService.SetBroadcaster(hub)

	// Start countdown with context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go hub.StartCountdown(ctx)

	staticServer := handlers.NewStaticServer(staticFS)

	h, err := handlers.New(
		catalogService,
		runService,
		settingsService,
		templatesFS,
		staticServer,
		dashboardAuth,
		hub,
		log,
		"",
	)
	if err != nil {
		cancel()
		repo.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		log:             log,
		repo:            repo,
		settings:        settingsService,
		catalog:         catalogService,
		runs:            runService,
		handlers:        h,
		cancelCountdown: cancel,
	}, nil
}

// DefaultSettings maps the configuration onto the settings used until the operator saves their own
func DefaultSettings(cfg *config.Config) services.UserSettings {
	return services.UserSettings{
		StudentID:  cfg.Credentials.StudentID,
		Password:   cfg.Credentials.Password,
		Method:     cfg.Method,
		Headless:   cfg.Browser.Headless,
		MaxRetries: cfg.Retry.MaxRetries,
	}
}

// NewSolver returns the configured captcha solver. Without a command the
// operator is prompted on out and answers on in.
func NewSolver(log logger.Logger, cfg *config.Config, in io.Reader, out io.Writer) unitreg.CaptchaSolver {
	if cfg.Captcha.Command != "" {
		return captcha.NewCommandSolver(log, cfg.Captcha.Command, cfg.Captcha.Args...)
	}
	return captcha.NewPromptSolver(log, in, out)
}

// ClientFactory builds the portal client of each run from the configuration
func ClientFactory(cfg *config.Config, solver unitreg.CaptchaSolver, log logger.Logger) services.ClientFactory {
	return func(req services.ClientRequest) (bidding.Client, func() error, error) {
		if req.DryRun {
			return unitreg.NewMockClientFor(req.Courses), nopClose, nil
		}

		portal := cfg.PortalClientConfig()
		portal.Headless = req.Headless
		switch req.Method {
		case config.MethodHTTP:
			return unitreg.NewHTTPClient(portal, solver, log), nopClose, nil
		case config.MethodBrowser:
			client := unitreg.NewBrowserClient(portal, solver, log)
			return client, client.Close, nil
		default:
			return nil, nil, services.ErrInvalidMethod
		}
	}
}

func nopClose() error { return nil }

// Catalog returns the course catalog service
func (a *App) Catalog() *services.CatalogService { return a.catalog }

// Runs returns the registration run service
func (a *App) Runs() *services.RunService { return a.runs }

// Settings returns the settings service
func (a *App) Settings() *services.SettingsService { return a.settings }

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close stops the countdown, any active run and the server, then closes the database
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.cancelCountdown != nil {
			a.cancelCountdown()
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.mu.Lock()
		server := a.server
		a.closed = true
		a.mu.Unlock()
		if server != nil {
			if err := server.Shutdown(ctx); err != nil {
				a.log.Warn("Server shutdown failed", "error", err)
			}
		}
		if err := a.runs.Shutdown(ctx); err != nil {
			a.log.Warn("Run did not stop in time", "error", err)
		}
		if err := a.repo.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	})
}

// Run starts the HTTP server and blocks until it stops. Close stops it.
func (a *App) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	baseURL := dashboardURL(getPreferredIP(realNetworkProvider{}), ln.Addr())
	a.handlers.BaseURL = baseURL
	server := &http.Server{Handler: a.Router(), ReadHeaderTimeout: 10 * time.Second}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		ln.Close()
		return nil
	}
	a.server = server
	a.mu.Unlock()

	a.log.Info("Dashboard starting", "url", baseURL)
	if err := server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// BaseURL returns the dashboard address once the server is running
func (a *App) BaseURL() string {
	return a.handlers.BaseURL
}

// dashboardURL combines the LAN address with the port actually bound
func dashboardURL(ip string, addr net.Addr) string {
	port := ""
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprintf(":%d", tcp.Port)
	}
	return fmt.Sprintf("http://%s%s", ip, port)
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IP address for opening the dashboard from
// another device on the LAN. Private addresses win; localhost is the fallback.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP

	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			// Only consider IPv4 addresses
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}

			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}

	if len(candidates) > 0 {
		return candidates[0].String()
	}

	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}
