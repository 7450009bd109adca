// Package flow implements the per-attempt authentication state machines:
// the login and registration controllers that orchestrate gateway calls and
// session persistence, and the tagged outcomes they report back.
package flow

import (
	"sync"
	"time"

	"github.com/abrasadev/ordering-auth-go/internal/domain"
	"github.com/abrasadev/ordering-auth-go/internal/infra/observability"

	"golang.org/x/sync/semaphore"
)

// Phase is the state of a submission attempt.
type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseSubmitting          Phase = "submitting"
	PhaseSucceeded           Phase = "succeeded"
	PhasePendingVerification Phase = "pending_verification"
	PhaseFailed              Phase = "failed"
)

// State is the observable per-attempt value: the phase plus the mapped
// user-facing message when failed.
type State struct {
	Phase   Phase
	Message string
}

// OutcomeKind tags the result of a submission.
type OutcomeKind string

const (
	// OutcomeAuthenticated means a session was established and persisted.
	OutcomeAuthenticated OutcomeKind = "authenticated"

	// OutcomeVerificationPending means the account exists but the user must
	// confirm their email before a session can be established.
	OutcomeVerificationPending OutcomeKind = "verification_pending"

	// OutcomeAccountCreatedLoginFailed means registration succeeded but the
	// follow-up login did not; no session exists. The caller decides whether
	// to prompt for a manual login or retry.
	OutcomeAccountCreatedLoginFailed OutcomeKind = "account_created_login_failed"

	// OutcomeFailed is any other terminal failure.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the value a controller returns instead of firing callbacks.
// Exactly one of Session/Email is populated depending on Kind:
// Authenticated carries the session, VerificationPending and
// AccountCreatedLoginFailed carry the submitted email.
type Outcome struct {
	Kind    OutcomeKind
	Session *domain.Session
	Email   string
	Message string
	Err     error
}

// User-facing messages for classified failures. The backend's own message is
// passed through for anything unclassified.
const (
	msgEmptyCredentials   = "Ingresa tu correo y contraseña."
	msgInvalidCredentials = "Email o contraseña incorrectos. Verifica tus credenciales."
	msgAccessDenied       = "No tienes permisos para acceder a este portal."
	msgAccountDisabled    = "Tu cuenta está desactivada. Contacta al administrador."
	msgDuplicateEmail     = "Este email ya está registrado en el sistema."
	msgMissingFields      = "Por favor completa todos los campos obligatorios."
	msgPasswordMismatch   = "Las contraseñas no coinciden."
	msgLoginFallback      = "Error al iniciar sesión. Intenta nuevamente."
	msgRegisterFallback   = "Error al crear la cuenta. Intenta nuevamente."
	msgCreatedNoSession   = "Tu cuenta fue creada, pero no pudimos iniciar sesión automáticamente."
)

// controller holds the mechanics shared by both flows: the per-attempt state,
// the single-in-flight guard, and the closed flag that discards results after
// the owning context is torn down.
type controller struct {
	name    string
	metrics *observability.Metrics

	inflight *semaphore.Weighted

	mu     sync.Mutex
	state  State
	closed bool
}

func newController(name string, metrics *observability.Metrics) controller {
	return controller{
		name:     name,
		metrics:  metrics,
		inflight: semaphore.NewWeighted(1),
		state:    State{Phase: PhaseIdle},
	}
}

// State returns the current per-attempt state.
func (c *controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears the controller down. An in-flight submission is allowed to
// finish, but its result is discarded and no state transition occurs;
// later Submit calls are rejected before any work starts.
func (c *controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *controller) transition(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state = s
}

// finish applies the terminal transition, unless the controller was closed
// mid-flight, in which case the result is discarded.
func (c *controller) finish(out Outcome, start time.Time) (Outcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Outcome{}, &domain.ErrFlowClosed{Flow: c.name}
	}
	c.state = terminalState(out)
	c.mu.Unlock()

	c.metrics.IncrSubmission(c.name, string(out.Kind))
	c.metrics.RecordSubmissionDuration(c.name, time.Since(start))
	return out, nil
}

func terminalState(out Outcome) State {
	switch out.Kind {
	case OutcomeAuthenticated:
		return State{Phase: PhaseSucceeded}
	case OutcomeVerificationPending:
		return State{Phase: PhasePendingVerification}
	default:
		return State{Phase: PhaseFailed, Message: out.Message}
	}
}
