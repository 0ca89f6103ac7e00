package captcha

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
)

// Commander starts external programs (for testing)
type Commander interface {
	Start(name string, args ...string) error
}

// RealCommander executes actual commands
type RealCommander struct{}

// Start starts the command without waiting for it
func (RealCommander) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// viewerCommand returns the command that opens a file with the desktop's default viewer
func viewerCommand(goos, path string) (string, []string, error) {
	switch goos {
	case "linux":
		return "xdg-open", []string{path}, nil
	case "darwin":
		return "open", []string{path}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// Open opens a file or URL with the desktop's default handler
func Open(target string) error {
	return OpenWith(RealCommander{}, runtime.GOOS, target)
}

// OpenWith opens target using commander on the given platform
func OpenWith(commander Commander, goos, target string) error {
	name, args, err := viewerCommand(goos, target)
	if err != nil {
		return err
	}
	return commander.Start(name, args...)
}

// PromptSolver shows the captcha to the operator and reads the answer from the terminal
type PromptSolver struct {
	log       logger.Logger
	in        *bufio.Reader
	out       io.Writer
	dir       string
	commander Commander
	goos      string
}

// NewPromptSolver creates a solver reading answers from in and prompting on out
func NewPromptSolver(log logger.Logger, in io.Reader, out io.Writer) *PromptSolver {
	return NewPromptSolverWithCommander(log, in, out, os.TempDir(), RealCommander{}, runtime.GOOS)
}

// NewPromptSolverWithCommander creates a solver with a custom viewer (for testing)
func NewPromptSolverWithCommander(log logger.Logger, in io.Reader, out io.Writer, dir string, commander Commander, goos string) *PromptSolver {
	return &PromptSolver{
		log:       log,
		in:        bufio.NewReader(in),
		out:       out,
		dir:       dir,
		commander: commander,
		goos:      goos,
	}
}

type answer struct {
	text string
	err  error
}

// Solve saves the image, opens it and waits for a non-empty line
func (s *PromptSolver) Solve(ctx context.Context, image []byte) (string, error) {
	path := filepath.Join(s.dir, "autobid-captcha.png")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to save captcha image")
	}

	name, args, err := viewerCommand(s.goos, path)
	if err == nil {
		err = s.commander.Start(name, args...)
	}
	if err != nil {
		s.log.Warn("Could not open captcha image", "path", path, "error", err)
		fmt.Fprintf(s.out, "Captcha image saved to %s\n", path)
	}

	// Reading the terminal cannot be interrupted; a cancelled solve leaves the
	// goroutine waiting for the next line.
	ch := make(chan answer, 1)
	go func() {
		for {
			fmt.Fprint(s.out, "Enter captcha: ")
			line, err := s.in.ReadString('\n')
			text := strings.TrimSpace(line)
			if text != "" || err != nil {
				ch <- answer{text: text, err: err}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return "", errors.Cancelled(ctx.Err())
	case a := <-ch:
		if a.text == "" {
			return "", errors.Wrap(a.err, errors.ErrInternal, "no captcha answer entered")
		}
		return a.text, nil
	}
}
