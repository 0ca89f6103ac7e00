//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"unsafe"

	"github.com/abrezinsky/autobid/internal/captcha"
	"github.com/abrezinsky/autobid/internal/logger"
)

// listenForKeyboard listens for keyboard input and performs actions
func listenForKeyboard(dashboardURL string, appLog *logger.SlogLogger) {
	fd := int(os.Stdin.Fd())
	var oldState syscall.Termios
	if _, _, err := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), syscall.TCGETS, uintptr(unsafe.Pointer(&oldState))); err != 0 {
		// Not a terminal
		return
	}

	// Read single characters without Enter; keep OPOST so \n still works
	newState := oldState
	newState.Lflag &^= syscall.ICANON | syscall.ECHO
	newState.Cc[syscall.VMIN] = 1
	newState.Cc[syscall.VTIME] = 0

	if _, _, err := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), syscall.TCSETS, uintptr(unsafe.Pointer(&newState))); err != 0 {
		return
	}
	restore := func() {
		syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), syscall.TCSETS, uintptr(unsafe.Pointer(&oldState)))
	}
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
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
			return
		case "?":
			printKeyboardHelp()
		}
	}
}
