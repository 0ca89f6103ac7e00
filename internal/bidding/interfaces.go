// Package bidding holds the slot selection and retry logic shared by every portal adapter.
package bidding

import (
	"context"

	"github.com/abrezinsky/autobid/internal/models"
)

// Toggler flips the selection state of a single slot on the portal
type Toggler interface {
	Select(ctx context.Context, handle models.SlotHandle) error
	Deselect(ctx context.Context, handle models.SlotHandle) error
}

// Portal is what one bidding attempt needs from a registration portal.
// Adapters return kinded errors from internal/errors so the core can tell
// an expired session from a transport fault.
type Portal interface {
	Toggler
	// FetchSlots loads the availability listing for a course
	FetchSlots(ctx context.Context, code string) ([]models.SlotRow, error)
	// SubmitSelection submits the selected handles and returns the portal's reply text.
	// An empty reply means the portal raised no error.
	SubmitSelection(ctx context.Context, handles []models.SlotHandle) (string, error)
	// Reset returns the portal to the registration page after an abandoned attempt
	Reset(ctx context.Context) error
}

// Authenticator establishes and checks the portal session
type Authenticator interface {
	// SessionAlive reports whether registration pages are reachable with the current session
	SessionAlive(ctx context.Context) (bool, error)
	// Login solves the captcha and submits the credentials
	Login(ctx context.Context, studentID, password string) error
}

// Client is a complete portal adapter
type Client interface {
	Portal
	Authenticator
}
