package flow

import (
	"context"
	"errors"
	"time"

	"github.com/abrasadev/ordering-auth-go/internal/domain"
	"github.com/abrasadev/ordering-auth-go/internal/infra/observability"
	"github.com/abrasadev/ordering-auth-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var registerTracer = otel.Tracer("flow/register")

// Register orchestrates account creation: local validation, the gateway
// call, and the follow-up automatic login when the backend does not require
// email verification.
//
// State machine: idle → submitting → {succeeded | pending_verification | failed}.
// A created account whose automatic login fails is NOT a plain failure: it
// surfaces as OutcomeAccountCreatedLoginFailed so the caller can route the
// user to a manual login instead of a retry that would hit duplicate-email.
type Register struct {
	controller

	gateway port.AuthGateway
	login   *Login
	logger  *zap.Logger
}

// NewRegister creates a registration flow controller. The login controller
// is injected so the post-registration session is established through the
// exact same path as a manual login.
func NewRegister(gw port.AuthGateway, login *Login, metrics *observability.Metrics, logger *zap.Logger) *Register {
	return &Register{
		controller: newController("register", metrics),
		gateway:    gw,
		login:      login,
		logger:     logger,
	}
}

// Submit runs one registration attempt. The returned error is non-nil only
// for controller-level conditions (busy, closed); every gateway failure is
// mapped into the Outcome.
func (f *Register) Submit(ctx context.Context, form *domain.RegisterForm) (Outcome, error) {
	if !f.inflight.TryAcquire(1) {
		return Outcome{}, &domain.ErrSubmissionInFlight{Flow: f.name}
	}
	defer f.inflight.Release(1)

	// A closed controller starts nothing new; only an already in-flight
	// submission is allowed to run to completion (and be discarded).
	if f.isClosed() {
		return Outcome{}, &domain.ErrFlowClosed{Flow: f.name}
	}

	ctx, span := registerTracer.Start(ctx, "Register.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("auth.email_domain", emailDomain(form.Email)))

	start := time.Now()
	f.transition(State{Phase: PhaseIdle})

	// Local validation: no network call for a mismatched confirmation.
	if form.Password != form.ConfirmPassword {
		out := Outcome{
			Kind:    OutcomeFailed,
			Message: msgPasswordMismatch,
			Err:     &domain.ErrPasswordMismatch{},
		}
		return f.finish(out, start)
	}

	f.transition(State{Phase: PhaseSubmitting})

	receipt, err := f.gateway.Register(ctx, form)
	if err != nil {
		f.logger.Warn("registration failed",
			zap.String("email", form.Email),
			zap.Error(err),
		)
		out := Outcome{Kind: OutcomeFailed, Message: registerMessage(err), Err: err}
		return f.finish(out, start)
	}

	f.logger.Info("account created",
		zap.Int64("user_id", receipt.UserID),
		zap.Bool("requires_verification", receipt.RequiresVerification),
	)

	// The backend decides whether email verification gates the session. When
	// it does, no login is attempted and nothing is persisted.
	if receipt.RequiresVerification {
		out := Outcome{Kind: OutcomeVerificationPending, Email: form.Email}
		return f.finish(out, start)
	}

	loginOut, err := f.login.Submit(ctx, form.Email, form.Password)
	if err != nil || loginOut.Kind != OutcomeAuthenticated {
		if err == nil {
			err = loginOut.Err
		}
		f.logger.Warn("account created but automatic login failed",
			zap.Int64("user_id", receipt.UserID),
			zap.Error(err),
		)
		out := Outcome{
			Kind:    OutcomeAccountCreatedLoginFailed,
			Email:   form.Email,
			Message: msgCreatedNoSession,
			Err:     err,
		}
		return f.finish(out, start)
	}

	out := Outcome{Kind: OutcomeAuthenticated, Session: loginOut.Session}
	return f.finish(out, start)
}

// registerMessage maps a classified gateway error to the user-facing text.
func registerMessage(err error) string {
	var (
		duplicate *domain.ErrDuplicateEmail
		missing   *domain.ErrMissingFields
		unknown   *domain.ErrGateway
	)
	switch {
	case errors.As(err, &duplicate):
		return msgDuplicateEmail
	case errors.As(err, &missing):
		return msgMissingFields
	case errors.As(err, &unknown) && unknown.Message != "":
		return unknown.Message
	default:
		return msgRegisterFallback
	}
}

func emailDomain(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
