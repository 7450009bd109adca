package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/abrasadev/ordering-auth-go/internal/domain"
	"github.com/abrasadev/ordering-auth-go/internal/infra/observability"

	"go.uber.org/zap"
)

func validForm() *domain.RegisterForm {
	return &domain.RegisterForm{
		Name:            "Juan",
		Surname:         "Pérez",
		Email:           "cliente@test.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
		Phone:           "987654321",
		Gender:          domain.GenderMasculino,
	}
}

func newRegisterFlow(gw *mockGateway, store *mockStore) *Register {
	metrics := observability.NewMetrics()
	login := NewLogin(gw, store, "client", metrics, zap.NewNop())
	return NewRegister(gw, login, metrics, zap.NewNop())
}

func TestRegister_AutoLoginEstablishesSession(t *testing.T) {
	gw := &mockGateway{
		registerReceipt: &domain.RegistrationReceipt{UserID: 1, Email: "cliente@test.com", IsVerified: true},
		loginResult:     clienteResult(),
	}
	store := &mockStore{}
	f := newRegisterFlow(gw, store)

	out, err := f.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeAuthenticated {
		t.Fatalf("expected authenticated, got %s", out.Kind)
	}
	if out.Session == nil || out.Session.Token != "tok1" {
		t.Fatalf("expected session from auto-login, got %+v", out.Session)
	}
	if gw.registerCalls != 1 || gw.loginCalls != 1 {
		t.Fatalf("expected one register and one login, got %d/%d", gw.registerCalls, gw.loginCalls)
	}
	if store.saveCalls != 1 {
		t.Fatalf("expected session persisted once, got %d", store.saveCalls)
	}
	if got := f.State().Phase; got != PhaseSucceeded {
		t.Fatalf("expected phase succeeded, got %s", got)
	}
}

func TestRegister_PasswordMismatchSkipsNetwork(t *testing.T) {
	gw := &mockGateway{}
	f := newRegisterFlow(gw, &mockStore{})

	form := validForm()
	form.ConfirmPassword = "distinta"

	out, err := f.Submit(context.Background(), form)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out.Kind)
	}
	var mismatch *domain.ErrPasswordMismatch
	if !errors.As(out.Err, &mismatch) {
		t.Fatalf("expected password mismatch, got %v", out.Err)
	}
	if out.Message != msgPasswordMismatch {
		t.Fatalf("unexpected message: %q", out.Message)
	}
	if gw.registerCalls != 0 {
		t.Fatalf("expected no gateway call, got %d", gw.registerCalls)
	}
}

func TestRegister_VerificationPendingLeavesStoreUntouched(t *testing.T) {
	gw := &mockGateway{
		registerReceipt: &domain.RegistrationReceipt{
			UserID:               2,
			Email:                "cliente@test.com",
			RequiresVerification: true,
		},
	}
	store := &mockStore{}
	f := newRegisterFlow(gw, store)

	out, err := f.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeVerificationPending {
		t.Fatalf("expected verification pending, got %s", out.Kind)
	}
	if out.Email != "cliente@test.com" {
		t.Fatalf("expected submitted email carried, got %q", out.Email)
	}
	if gw.loginCalls != 0 {
		t.Fatal("expected no auto-login while verification is pending")
	}
	if store.saveCalls != 0 {
		t.Fatal("expected nothing persisted while verification is pending")
	}
	if got := f.State().Phase; got != PhasePendingVerification {
		t.Fatalf("expected phase pending_verification, got %s", got)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	gw := &mockGateway{registerErr: &domain.ErrDuplicateEmail{Email: "cliente@test.com"}}
	f := newRegisterFlow(gw, &mockStore{})

	out, err := f.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out.Kind)
	}
	if out.Message != msgDuplicateEmail {
		t.Fatalf("unexpected message: %q", out.Message)
	}
	if gw.loginCalls != 0 {
		t.Fatal("expected no auto-login after registration failure")
	}
}

func TestRegister_MissingFields(t *testing.T) {
	gw := &mockGateway{registerErr: &domain.ErrMissingFields{}}
	f := newRegisterFlow(gw, &mockStore{})

	out, err := f.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Message != msgMissingFields {
		t.Fatalf("unexpected message: %q", out.Message)
	}
}

func TestRegister_AccountCreatedLoginFailed(t *testing.T) {
	gw := &mockGateway{
		registerReceipt: &domain.RegistrationReceipt{UserID: 3, Email: "cliente@test.com", IsVerified: true},
		loginErr:        &domain.ErrNetwork{Op: "login", Err: errors.New("connection refused")},
	}
	store := &mockStore{}
	f := newRegisterFlow(gw, store)

	out, err := f.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeAccountCreatedLoginFailed {
		t.Fatalf("expected account_created_login_failed, got %s", out.Kind)
	}
	if out.Email != "cliente@test.com" {
		t.Fatalf("expected submitted email carried, got %q", out.Email)
	}
	if out.Message != msgCreatedNoSession {
		t.Fatalf("unexpected message: %q", out.Message)
	}
	if out.Session != nil {
		t.Fatal("expected no session")
	}
	if store.saveCalls != 0 {
		t.Fatal("expected nothing persisted when auto-login fails")
	}
}

func TestRegister_ConcurrentSubmitRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &mockGateway{
		registerReceipt: &domain.RegistrationReceipt{UserID: 4, Email: "cliente@test.com", IsVerified: true},
		loginFn: func(ctx context.Context, email, password, audience string) (*domain.AuthResult, error) {
			close(started)
			<-release
			return clienteResult(), nil
		},
	}
	f := newRegisterFlow(gw, &mockStore{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.Submit(context.Background(), validForm()); err != nil {
			t.Errorf("first submit: %v", err)
		}
	}()

	<-started
	_, err := f.Submit(context.Background(), validForm())
	var busy *domain.ErrSubmissionInFlight
	if !errors.As(err, &busy) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}

	close(release)
	<-done
}

func TestRegister_ClosedControllerStartsNothing(t *testing.T) {
	gw := &mockGateway{
		registerReceipt: &domain.RegistrationReceipt{UserID: 5, Email: "cliente@test.com", IsVerified: true},
		loginResult:     clienteResult(),
	}
	f := newRegisterFlow(gw, &mockStore{})

	f.Close()

	_, err := f.Submit(context.Background(), validForm())
	var closed *domain.ErrFlowClosed
	if !errors.As(err, &closed) {
		t.Fatalf("expected flow-closed error, got %v", err)
	}
	if gw.registerCalls != 0 || gw.loginCalls != 0 {
		t.Fatalf("expected no gateway calls after close, got %d/%d", gw.registerCalls, gw.loginCalls)
	}
	if got := f.State().Phase; got != PhaseIdle {
		t.Fatalf("expected no state transition after close, got %s", got)
	}
}
