//go:build darwin
// +build darwin

package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/abrezinsky/autobid/internal/captcha"
	"github.com/abrezinsky/autobid/internal/logger"
)

// listenForKeyboard listens for keyboard input and performs actions
func listenForKeyboard(dashboardURL string, appLog *logger.SlogLogger) {
	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TIOCGETA)
	if err != nil {
		// Not a terminal
		return
	}

	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TIOCSETA, &newState); err != nil {
		return
	}
	restore := func() { unix.IoctlSetTermios(fd, unix.TIOCSETA, oldState) }
	defer restore()

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			continue
		}

		switch strings.ToLower(string(buf[0])) {
		case "a":
			fmt.Printf("%sOpening dashboard in browser...%s\n", cyan, reset)
			if err := captcha.Open(dashboardURL); err != nil {
				fmt.Printf("%sError opening browser: %v%s\n", red, err, reset)
			}
		case "h":
			toggleHTTPLogging(appLog)
		case "l":
			cycleLogLevel(appLog)
		case "q", "\x03":
			fmt.Printf("%sShutting down server...%s\n", yellow, reset)
			restore()
			unix.Kill(os.Getpid(), syscall.SIGTERM)
			return
		case "?":
			printKeyboardHelp()
		}
	}
}
