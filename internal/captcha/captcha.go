// Package captcha turns login captcha images into text.
package captcha

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
)

// Solver answers a captcha image
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// CommandSolver pipes the image into an external OCR command and reads the
// answer from its standard output.
type CommandSolver struct {
	Command string
	Args    []string
	Timeout time.Duration
	log     logger.Logger
}

// NewCommandSolver creates a solver running command with args
func NewCommandSolver(log logger.Logger, command string, args ...string) *CommandSolver {
	return &CommandSolver{
		Command: command,
		Args:    args,
		Timeout: 30 * time.Second,
		log:     log,
	}
}

// Solve runs the command once per image
func (s *CommandSolver) Solve(ctx context.Context, image []byte) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.Canceled {
			return "", errors.Cancelled(ctx.Err())
		}
		s.log.Debug("Captcha command failed", "command", s.Command, "stderr", strings.TrimSpace(stderr.String()))
		return "", errors.Wrap(err, errors.ErrInternal, "captcha command failed")
	}

	answer := strings.TrimSpace(stdout.String())
	if answer == "" {
		return "", errors.Internalf("captcha command %s returned no text", s.Command)
	}
	s.log.Debug("Captcha solved by command", "command", s.Command, "answer", answer)
	return answer, nil
}
