package bidding

import (
	"context"

	"github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
)

// Credentials are the portal login details
type Credentials struct {
	StudentID string
	Password  string
}

// SessionGuard keeps the portal session usable, logging in again when it lapses
type SessionGuard struct {
	log    logger.Logger
	auth   Authenticator
	creds  Credentials
	policy RetryPolicy
	logins int
}

// NewSessionGuard creates a new SessionGuard
func NewSessionGuard(log logger.Logger, auth Authenticator, creds Credentials, policy RetryPolicy) *SessionGuard {
	return &SessionGuard{log: log, auth: auth, creds: creds, policy: policy}
}

// Logins returns how many successful logins the guard has performed
func (g *SessionGuard) Logins() int {
	return g.logins
}

// Ensure checks the session and recovers it when it has expired or
// registration is not open yet.
func (g *SessionGuard) Ensure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Cancelled(err)
	}

	alive, err := g.auth.SessionAlive(ctx)
	if err != nil {
		if isCancelled(ctx, err) {
			return errors.Cancelled(ctx.Err())
		}
		g.log.Warn("Session check failed", "error", err)
	}
	if alive {
		return nil
	}
	return g.Recover(ctx)
}

// Recover logs in until the registration page is reachable.
// Bad credentials end recovery at once; MaxLogins bounds everything else.
func (g *SessionGuard) Recover(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if exceeded(g.policy.MaxLogins, attempt) {
			return errors.Transportf("gave up after %d login attempts", g.policy.MaxLogins)
		}
		if err := ctx.Err(); err != nil {
			return errors.Cancelled(err)
		}

		g.log.Info("Logging in", "student_id", g.creds.StudentID, "attempt", attempt)
		err := g.auth.Login(ctx, g.creds.StudentID, g.creds.Password)
		switch {
		case err == nil:
			alive, aliveErr := g.auth.SessionAlive(ctx)
			if aliveErr == nil && alive {
				g.logins++
				g.log.Info("Login successful", "student_id", g.creds.StudentID)
				return nil
			}
			if aliveErr != nil && isCancelled(ctx, aliveErr) {
				return errors.Cancelled(ctx.Err())
			}
			g.log.Warn("Registration not open yet", "attempt", attempt)
		case errors.Is(err, errors.ErrInvalidCredentials):
			return err
		case isCancelled(ctx, err):
			return errors.Cancelled(ctx.Err())
		default:
			g.log.Warn("Login failed", "attempt", attempt, "error", err)
		}

		if err := sleep(ctx, g.policy.Delay(attempt)); err != nil {
			return err
		}
	}
}
