package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/autobid/internal/auth"
)

var (
	serveAddr       string
	servePassword   string
	serveNoKeyboard bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the registration dashboard",
	Long: `Serve starts the web dashboard for editing the catalog, starting and
scheduling runs and watching their progress live.

Examples:
  autobid serve
  autobid serve --addr :9000 --password secret123
  autobid serve --no-keyboard`,
	Args: cobra.NoArgs,
	RunE: serveDashboard,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (default from config)")
	serveCmd.Flags().StringVarP(&servePassword, "password", "p", "", "Dashboard password (auto-generated if not set)")
	serveCmd.Flags().BoolVar(&serveNoKeyboard, "no-keyboard", false, "Disable keyboard shortcuts")
}

func serveDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Dashboard.Addr = serveAddr
	}
	password := servePassword
	if password == "" {
		password = cfg.Dashboard.Password
	}
	if password == "" {
		password = auth.GeneratePassword()
	}

	env, err := setup(cmd, cfg, password)
	if err != nil {
		return err
	}
	defer env.Close()

	env.log.Info("Dashboard password", "password", password, "instance", env.auth.Instance())
	printBanner(cmd.OutOrStdout(), env.auth.Instance(), password)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- env.app.Run(cfg.Dashboard.Addr)
	}()

	// Wait a moment for the server to bind
	time.Sleep(100 * time.Millisecond)

	switch {
	case serveNoKeyboard:
		fmt.Printf("\n%sKeyboard shortcuts disabled%s\n\n", yellow, reset)
	case cfg.Captcha.Command == "":
		// The captcha prompt reads answers from the terminal
		fmt.Printf("\n%sKeyboard shortcuts disabled while captchas are answered on the terminal%s\n\n", yellow, reset)
	default:
		printKeyboardHelp()
		go listenForKeyboard(env.app.BaseURL(), env.log)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-serverErr:
		return err
	case <-sigChan:
		fmt.Printf("\n%sShutting down server...%s\n", yellow, reset)
		return nil
	}
}

// printBanner tells the user which dashboard instance is signing them in.
// Each instance keeps its own session cookie, so dashboards on other ports
// of the same host do not log each other out.
func printBanner(w io.Writer, instance, password string) {
	fmt.Fprintf(w, "\n%sDashboard instance %s%s%s\n", green, yellow, instance, reset)
	fmt.Fprintf(w, "%sPassword: %s%s%s\n", green, yellow, password, reset)
}
