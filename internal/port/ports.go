// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the flow controllers
// from the concrete gateway and storage implementations.
package port

import (
	"context"

	"github.com/abrasadev/ordering-auth-go/internal/domain"
)

// AuthGateway wraps the two remote operations of the auth backend.
// Implementations normalize backend errors into the domain taxonomy and make
// a single attempt per call; retry policy belongs to the transport layer.
type AuthGateway interface {
	// Login authenticates email/password for the given portal audience.
	Login(ctx context.Context, email, password, audience string) (*domain.AuthResult, error)

	// Register creates an account with userType fixed to "cliente".
	// It never yields a token; callers needing a session log in afterwards.
	Register(ctx context.Context, form *domain.RegisterForm) (*domain.RegistrationReceipt, error)
}

// SessionStore owns the persisted authenticated state. Flow controllers only
// request writes; they never hold a long-lived reference to the session.
type SessionStore interface {
	// Save atomically persists token and profile together.
	// It must not partially write: both present or neither.
	Save(token string, user domain.SessionUser) error

	// Load returns the persisted session, or (nil, nil) when absent.
	// Absence is a valid, common state, not an error.
	Load() (*domain.Session, error)

	// Clear removes all persisted session data. Idempotent.
	Clear() error
}
