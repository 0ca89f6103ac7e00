package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abrezinsky/autobid/internal/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the stored settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(env *environment) error {
			s, err := env.app.Settings().Get(cmd.Context())
			if err != nil {
				return err
			}
			password := "(not set)"
			if s.Password != "" {
				password = "********"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s:    %s\n", services.KeyStudentID, s.StudentID)
			fmt.Fprintf(out, "%s:      %s\n", services.KeyPassword, password)
			fmt.Fprintf(out, "%s:        %s\n", services.KeyMethod, s.Method)
			fmt.Fprintf(out, "%s: %t\n", services.KeyHeadlessMode, s.Headless)
			fmt.Fprintf(out, "%s:   %d\n", services.KeyMaxRetries, s.MaxRetries)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY [VALUE]",
	Short: "Store a setting",
	Long: `Set stores one setting. Keys: student_id, password, method, headless_mode,
max_retries. Without a value the password is read from the terminal
without echo.

Examples:
  autobid settings set student_id 21ABC01234
  autobid settings set password
  autobid settings set method browser`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		var value string
		switch {
		case len(args) == 2:
			value = args[1]
		case key == services.KeyPassword:
			pw, err := readPassword(cmd)
			if err != nil {
				return err
			}
			value = pw
		default:
			return fmt.Errorf("a value is required for %s", key)
		}

		update, err := settingsUpdate(key, value)
		if err != nil {
			return err
		}
		return withApp(cmd, func(env *environment) error {
			if err := env.app.Settings().Update(cmd.Context(), update); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", key)
			return nil
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset [KEY...]",
	Short: "Forget stored settings so the configured defaults apply",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(env *environment) error {
			if err := env.app.Settings().Reset(cmd.Context(), args...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings reset")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsResetCmd)
}

// settingsUpdate converts one key/value pair into a settings update
func settingsUpdate(key, value string) (services.SettingsUpdate, error) {
	var u services.SettingsUpdate
	switch key {
	case services.KeyStudentID:
		u.StudentID = &value
	case services.KeyPassword:
		u.Password = &value
	case services.KeyMethod:
		u.Method = &value
	case services.KeyHeadlessMode:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return u, fmt.Errorf("%s must be true or false", key)
		}
		u.Headless = &b
	case services.KeyMaxRetries:
		n, err := strconv.Atoi(value)
		if err != nil {
			return u, fmt.Errorf("%s must be a number", key)
		}
		u.MaxRetries = &n
	default:
		return u, fmt.Errorf("unknown setting %q", key)
	}
	return u, nil
}

// readPassword prompts for the portal password, without echo on a terminal
func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Portal password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(pw), err
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
