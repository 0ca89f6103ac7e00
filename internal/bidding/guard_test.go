package bidding

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/abrezinsky/autobid/internal/errors"
	"github.com/abrezinsky/autobid/internal/logger"
)

var testCreds = Credentials{StudentID: "B2100123", Password: "secret"}

func TestEnsure_AliveSkipsLogin(t *testing.T) {
	portal := &fakePortal{alive: []bool{true}}
	g := NewSessionGuard(logger.Nop(), portal, testCreds, RetryPolicy{})

	if err := g.Ensure(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if portal.logins != 0 {
		t.Errorf("expected no login, got %d", portal.logins)
	}
}

func TestEnsure_ExpiredLogsIn(t *testing.T) {
	portal := &fakePortal{alive: []bool{false, true}}
	g := NewSessionGuard(logger.Nop(), portal, testCreds, RetryPolicy{})

	if err := g.Ensure(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if portal.logins != 1 || g.Logins() != 1 {
		t.Errorf("expected one login, got portal=%d guard=%d", portal.logins, g.Logins())
	}
}

func TestRecover_RetriesUntilLoggedIn(t *testing.T) {
	portal := &fakePortal{loginErrs: []error{
		apperrors.Ambiguousf("login page did not confirm"),
		errors.New("connection refused"),
		nil,
	}}
	g := NewSessionGuard(logger.Nop(), portal, testCreds, RetryPolicy{})

	if err := g.Recover(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if portal.logins != 3 {
		t.Errorf("expected 3 login attempts, got %d", portal.logins)
	}
}

func TestRecover_WaitsForRegistrationToOpen(t *testing.T) {
	portal := &fakePortal{alive: []bool{false, false, true}}
	g := NewSessionGuard(logger.Nop(), portal, testCreds, RetryPolicy{})

	if err := g.Recover(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if portal.logins != 3 {
		t.Errorf("expected 3 logins while registration was closed, got %d", portal.logins)
	}
}

func TestRecover_InvalidCredentialsIsFatal(t *testing.T) {
	portal := &fakePortal{loginErrs: []error{apperrors.InvalidCredentials("Invalid Student ID or Password")}}
	g := NewSessionGuard(logger.Nop(), portal, testCreds, RetryPolicy{})

	err := g.Recover(context.Background())
	if !apperrors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if portal.logins != 1 {
		t.Errorf("expected no retry, got %d logins", portal.logins)
	}
}

func TestRecover_MaxLoginsBreaker(t *testing.T) {
	portal := &fakePortal{loginErrs: []error{errors.New("captcha rejected")}}
	g := NewSessionGuard(logger.Nop(), portal, testCreds, RetryPolicy{MaxLogins: 2})

	err := g.Recover(context.Background())
	if !apperrors.Is(err, apperrors.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if portal.logins != 2 {
		t.Errorf("expected 2 login attempts, got %d", portal.logins)
	}
}

func TestRecover_CancelUnblocksBackoff(t *testing.T) {
	portal := &fakePortal{loginErrs: []error{errors.New("captcha rejected")}}
	g := NewSessionGuard(logger.Nop(), portal, testCreds, RetryPolicy{Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Recover(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !apperrors.Is(err, apperrors.ErrCancelled) {
			t.Errorf("expected cancelled error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recover did not return after cancel")
	}
}
