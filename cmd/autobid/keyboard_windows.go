//go:build windows
// +build windows

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/abrezinsky/autobid/internal/captcha"
	"github.com/abrezinsky/autobid/internal/logger"
)

// listenForKeyboard listens for keyboard input on Windows
func listenForKeyboard(dashboardURL string, appLog *logger.SlogLogger) {
	// Line-based reading; the console stays in cooked mode
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
		case "q":
			fmt.Printf("%sShutting down server...%s\n", yellow, reset)
			os.Exit(0)
		case "?":
			printKeyboardHelp()
		}
	}
}
