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

var loginTracer = otel.Tracer("flow/login")

// Login orchestrates credential submission: local validation, the gateway
// call, the portal user-type check, and session persistence.
//
// State machine: idle → submitting → {succeeded | failed}.
// At most one submission is in flight per controller; concurrent Submit
// calls are rejected with ErrSubmissionInFlight.
type Login struct {
	controller

	gateway  port.AuthGateway
	store    port.SessionStore
	audience string
	logger   *zap.Logger
}

// NewLogin creates a login flow controller for the given portal audience.
func NewLogin(gw port.AuthGateway, store port.SessionStore, audience string, metrics *observability.Metrics, logger *zap.Logger) *Login {
	return &Login{
		controller: newController("login", metrics),
		gateway:    gw,
		store:      store,
		audience:   audience,
		logger:     logger,
	}
}

// Submit runs one login attempt. The returned error is non-nil only for
// controller-level conditions (busy, closed); every gateway failure is
// mapped into the Outcome.
func (f *Login) Submit(ctx context.Context, email, password string) (Outcome, error) {
	if !f.inflight.TryAcquire(1) {
		return Outcome{}, &domain.ErrSubmissionInFlight{Flow: f.name}
	}
	defer f.inflight.Release(1)

	// A closed controller starts nothing new; only an already in-flight
	// submission is allowed to run to completion (and be discarded).
	if f.isClosed() {
		return Outcome{}, &domain.ErrFlowClosed{Flow: f.name}
	}

	ctx, span := loginTracer.Start(ctx, "Login.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("auth.audience", f.audience))

	start := time.Now()
	f.transition(State{Phase: PhaseIdle})

	// Local validation: no network call for empty inputs.
	if email == "" || password == "" {
		out := Outcome{
			Kind:    OutcomeFailed,
			Message: msgEmptyCredentials,
			Err:     &domain.ErrValidation{Field: "credentials", Message: "email o contraseña vacíos"},
		}
		return f.finish(out, start)
	}

	f.transition(State{Phase: PhaseSubmitting})

	result, err := f.gateway.Login(ctx, email, password, f.audience)
	if err != nil {
		f.logger.Warn("login failed",
			zap.String("audience", f.audience),
			zap.Error(err),
		)
		out := Outcome{Kind: OutcomeFailed, Message: loginMessage(err), Err: err}
		return f.finish(out, start)
	}

	// Business rule on top of a successful authentication: this portal is
	// for customers only. The gateway call succeeded, the login still fails.
	if result.User.UserType != domain.UserTypeCliente {
		err := &domain.ErrAccessDenied{UserType: result.User.UserType}
		f.logger.Warn("login rejected: wrong portal",
			zap.String("user_type", string(result.User.UserType)),
			zap.Int64("user_id", result.User.ID),
		)
		out := Outcome{Kind: OutcomeFailed, Message: msgAccessDenied, Err: err}
		return f.finish(out, start)
	}

	user := domain.SessionUser{
		ID:         result.User.ID,
		Email:      result.User.Email,
		Name:       domain.DisplayNameFor(result.User.Name, result.User.Email),
		Role:       domain.RoleCliente,
		UserType:   result.User.UserType,
		IsVerified: result.User.IsVerified,
	}

	if err := f.store.Save(result.Token, user); err != nil {
		f.metrics.IncrSessionStoreOp("save", "error")
		f.logger.Error("login: session save failed", zap.Error(err))
		out := Outcome{Kind: OutcomeFailed, Message: msgLoginFallback, Err: err}
		return f.finish(out, start)
	}
	f.metrics.IncrSessionStoreOp("save", "ok")

	f.logger.Info("login succeeded", zap.Int64("user_id", user.ID))
	out := Outcome{
		Kind: OutcomeAuthenticated,
		Session: &domain.Session{
			Token: result.Token,
			User:  user,
		},
	}
	return f.finish(out, start)
}

// loginMessage maps a classified gateway error to the user-facing text.
func loginMessage(err error) string {
	var (
		invalid  *domain.ErrInvalidCredentials
		denied   *domain.ErrAccessDenied
		disabled *domain.ErrAccountDisabled
		unknown  *domain.ErrGateway
	)
	switch {
	case errors.As(err, &invalid):
		return msgInvalidCredentials
	case errors.As(err, &denied):
		return msgAccessDenied
	case errors.As(err, &disabled):
		return msgAccountDisabled
	case errors.As(err, &unknown) && unknown.Message != "":
		return unknown.Message
	default:
		return msgLoginFallback
	}
}
