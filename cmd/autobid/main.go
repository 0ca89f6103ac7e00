package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/autobid/internal/app"
	"github.com/abrezinsky/autobid/internal/auth"
	"github.com/abrezinsky/autobid/internal/config"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/web"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var (
	version = "dev"

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "autobid",
	Short: "Automated course registration bidding",
	Long: `autobid registers a catalog of courses on the university registration
portal, choosing the most preferred open slot of every class type and
retrying until each course is registered or the retry budget runs out.

Configuration is read from autobid.yaml in the working directory (or
--config), then overridden by AUTOBID_* environment variables and a .env
file.

Examples:
  # Register every course in the catalog now
  autobid run

  # Import a timetable and register at 10:00 on the next weekday
  autobid run --timetable-file timetable.txt --at "0 10 * * 1-5"

  # Serve the dashboard
  autobid serve`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "autobid %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./autobid.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// environment is what every command needs: configuration, logger and the wired application
type environment struct {
	cfg  *config.Config
	log  *logger.SlogLogger
	app  *app.App
	auth *auth.Auth
}

func (e *environment) Close() {
	e.app.Close()
	e.log.Close()
}

// loadConfig reads the configuration and applies the command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// setup builds the application for a command. Without a dashboard password
// a random one is generated.
func setup(cmd *cobra.Command, cfg *config.Config, password string) (*environment, error) {
	appLog, err := logger.NewWithFile(cfg.Log.File, logger.ParseLevel(cfg.Log.Level))
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if password == "" {
		password = auth.GeneratePassword()
	}

	dashboardAuth := auth.New(password)
	solver := app.NewSolver(appLog, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	a, err := app.New(appLog, cfg, solver, web.GetTemplatesFS(), web.GetStaticFS(), dashboardAuth)
	if err != nil {
		appLog.Close()
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return &environment{cfg: cfg, log: appLog, app: a, auth: dashboardAuth}, nil
}

// withApp loads the configuration and runs fn against a fresh application
func withApp(cmd *cobra.Command, fn func(env *environment) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := setup(cmd, cfg, cfg.Dashboard.Password)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog *logger.SlogLogger) {
	next := logger.NextLevel(appLog.GetLevel())
	appLog.SetLevel(next)
	fmt.Printf("%sLog level: %s%s%s\n", green, yellow, next, reset)
}

// printKeyboardHelp displays all available keyboard shortcuts
func printKeyboardHelp() {
	fmt.Printf("\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Printf("    %sa%s      - Open dashboard in browser\n", cyan, reset)
	fmt.Printf("    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Printf("    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Printf("    %sq%s      - Quit server\n", cyan, reset)
	fmt.Printf("    %s?%s      - Show this help\n\n", cyan, reset)
}

// toggleHTTPLogging switches dashboard request logging on or off
func toggleHTTPLogging(appLog *logger.SlogLogger) {
	if appLog.IsHTTPLoggingEnabled() {
		appLog.DisableHTTPLogging()
		fmt.Printf("%sHTTP logging disabled%s\n", yellow, reset)
	} else {
		appLog.EnableHTTPLogging()
		fmt.Printf("%sHTTP logging enabled%s\n", green, reset)
	}
}
