package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/abrasadev/ordering-auth-go/internal/domain"
	"github.com/abrasadev/ordering-auth-go/internal/infra/observability"

	"go.uber.org/zap"
)

type mockGateway struct {
	loginCalls    int
	registerCalls int

	loginResult *domain.AuthResult
	loginErr    error

	registerReceipt *domain.RegistrationReceipt
	registerErr     error

	loginFn func(ctx context.Context, email, password, audience string) (*domain.AuthResult, error)
}

func (m *mockGateway) Login(ctx context.Context, email, password, audience string) (*domain.AuthResult, error) {
	m.loginCalls++
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password, audience)
	}
	return m.loginResult, m.loginErr
}

func (m *mockGateway) Register(ctx context.Context, form *domain.RegisterForm) (*domain.RegistrationReceipt, error) {
	m.registerCalls++
	return m.registerReceipt, m.registerErr
}

type mockStore struct {
	saveCalls  int
	savedToken string
	savedUser  domain.SessionUser
	saveErr    error

	clearCalls int
	sess       *domain.Session
}

func (m *mockStore) Save(token string, user domain.SessionUser) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.savedToken = token
	m.savedUser = user
	return nil
}

func (m *mockStore) Load() (*domain.Session, error) {
	return m.sess, nil
}

func (m *mockStore) Clear() error {
	m.clearCalls++
	m.sess = nil
	return nil
}

func clienteResult() *domain.AuthResult {
	return &domain.AuthResult{
		Token: "tok1",
		User: domain.AuthUser{
			ID:         1,
			Email:      "cliente@test.com",
			Name:       "Juan Pérez",
			UserType:   domain.UserTypeCliente,
			IsVerified: true,
		},
	}
}

func newLoginFlow(gw *mockGateway, store *mockStore) *Login {
	return NewLogin(gw, store, "client", observability.NewMetrics(), zap.NewNop())
}

func TestLogin_Success(t *testing.T) {
	gw := &mockGateway{loginResult: clienteResult()}
	store := &mockStore{}
	f := newLoginFlow(gw, store)

	out, err := f.Submit(context.Background(), "cliente@test.com", "secret")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeAuthenticated {
		t.Fatalf("expected authenticated, got %s", out.Kind)
	}
	if out.Session == nil || out.Session.Token != "tok1" {
		t.Fatalf("expected session with tok1, got %+v", out.Session)
	}
	if out.Session.User.ID != 1 || out.Session.User.Role != domain.RoleCliente {
		t.Fatalf("unexpected session user: %+v", out.Session.User)
	}
	if store.saveCalls != 1 || store.savedToken != "tok1" {
		t.Fatalf("expected one save of tok1, got %d calls (token %q)", store.saveCalls, store.savedToken)
	}
	if got := f.State().Phase; got != PhaseSucceeded {
		t.Fatalf("expected phase succeeded, got %s", got)
	}
}

func TestLogin_EmptyInputsSkipNetwork(t *testing.T) {
	gw := &mockGateway{}
	store := &mockStore{}
	f := newLoginFlow(gw, store)

	out, err := f.Submit(context.Background(), "", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out.Kind)
	}
	var ve *domain.ErrValidation
	if !errors.As(out.Err, &ve) {
		t.Fatalf("expected validation error, got %v", out.Err)
	}
	if gw.loginCalls != 0 {
		t.Fatalf("expected no gateway call, got %d", gw.loginCalls)
	}
	if store.saveCalls != 0 {
		t.Fatal("expected no save on validation failure")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	gw := &mockGateway{loginErr: &domain.ErrInvalidCredentials{}}
	store := &mockStore{}
	f := newLoginFlow(gw, store)

	out, err := f.Submit(context.Background(), "cliente@test.com", "wrong")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out.Kind)
	}
	if out.Message != msgInvalidCredentials {
		t.Fatalf("unexpected message: %q", out.Message)
	}
	if store.saveCalls != 0 {
		t.Fatal("expected no save on failed login")
	}
	if got := f.State(); got.Phase != PhaseFailed || got.Message != msgInvalidCredentials {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestLogin_WrongUserTypeDenied(t *testing.T) {
	result := clienteResult()
	result.User.UserType = domain.UserTypeStaff
	gw := &mockGateway{loginResult: result}
	store := &mockStore{}
	f := newLoginFlow(gw, store)

	out, err := f.Submit(context.Background(), "staff@test.com", "secret")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.Kind != OutcomeFailed {
		t.Fatalf("expected failed, got %s", out.Kind)
	}
	var denied *domain.ErrAccessDenied
	if !errors.As(out.Err, &denied) {
		t.Fatalf("expected access denied, got %v", out.Err)
	}
	if denied.UserType != domain.UserTypeStaff {
		t.Fatalf("expected user type carried in error, got %q", denied.UserType)
	}
	if out.Message != msgAccessDenied {
		t.Fatalf("unexpected message: %q", out.Message)
	}
	if store.saveCalls != 0 {
		t.Fatal("expected no save for wrong portal")
	}
}

func TestLogin_GatewayMessagePassthrough(t *testing.T) {
	gw := &mockGateway{loginErr: &domain.ErrGateway{Status: 500, Message: "Mantenimiento programado"}}
	f := newLoginFlow(gw, &mockStore{})

	out, err := f.Submit(context.Background(), "cliente@test.com", "secret")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Message != "Mantenimiento programado" {
		t.Fatalf("expected backend message passed through, got %q", out.Message)
	}
}

func TestLogin_NetworkErrorFallbackMessage(t *testing.T) {
	gw := &mockGateway{loginErr: &domain.ErrNetwork{Op: "login", Err: errors.New("connection refused")}}
	f := newLoginFlow(gw, &mockStore{})

	out, err := f.Submit(context.Background(), "cliente@test.com", "secret")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Message != msgLoginFallback {
		t.Fatalf("unexpected message: %q", out.Message)
	}
}

func TestLogin_SaveFailureIsFailure(t *testing.T) {
	gw := &mockGateway{loginResult: clienteResult()}
	store := &mockStore{saveErr: errors.New("disk full")}
	f := newLoginFlow(gw, store)

	out, err := f.Submit(context.Background(), "cliente@test.com", "secret")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Kind != OutcomeFailed {
		t.Fatalf("expected failed when session save fails, got %s", out.Kind)
	}
	if out.Session != nil {
		t.Fatal("expected no session on save failure")
	}
}

func TestLogin_DisplayNameFallsBackToEmailLocalPart(t *testing.T) {
	result := clienteResult()
	result.User.Name = ""
	gw := &mockGateway{loginResult: result}
	store := &mockStore{}
	f := newLoginFlow(gw, store)

	if _, err := f.Submit(context.Background(), "cliente@test.com", "secret"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if store.savedUser.Name != "cliente" {
		t.Fatalf("expected local-part fallback, got %q", store.savedUser.Name)
	}
}

func TestLogin_ConcurrentSubmitRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &mockGateway{
		loginFn: func(ctx context.Context, email, password, audience string) (*domain.AuthResult, error) {
			close(started)
			<-release
			return clienteResult(), nil
		},
	}
	f := newLoginFlow(gw, &mockStore{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.Submit(context.Background(), "cliente@test.com", "secret"); err != nil {
			t.Errorf("first submit: %v", err)
		}
	}()

	<-started
	_, err := f.Submit(context.Background(), "cliente@test.com", "secret")
	var busy *domain.ErrSubmissionInFlight
	if !errors.As(err, &busy) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}

	close(release)
	<-done
}

func TestLogin_ClosedControllerStartsNothing(t *testing.T) {
	gw := &mockGateway{loginResult: clienteResult()}
	store := &mockStore{}
	f := newLoginFlow(gw, store)

	f.Close()

	_, err := f.Submit(context.Background(), "cliente@test.com", "secret")
	var closed *domain.ErrFlowClosed
	if !errors.As(err, &closed) {
		t.Fatalf("expected flow-closed error, got %v", err)
	}
	if gw.loginCalls != 0 {
		t.Fatalf("expected no gateway call after close, got %d", gw.loginCalls)
	}
	if store.saveCalls != 0 {
		t.Fatal("expected no save after close")
	}
	if got := f.State().Phase; got != PhaseIdle {
		t.Fatalf("expected no state transition after close, got %s", got)
	}
}

func TestLogin_CloseMidFlightDiscardsResult(t *testing.T) {
	store := &mockStore{}
	var f *Login
	gw := &mockGateway{
		loginFn: func(ctx context.Context, email, password, audience string) (*domain.AuthResult, error) {
			f.Close()
			return clienteResult(), nil
		},
	}
	f = newLoginFlow(gw, store)

	_, err := f.Submit(context.Background(), "cliente@test.com", "secret")
	var closed *domain.ErrFlowClosed
	if !errors.As(err, &closed) {
		t.Fatalf("expected flow-closed error, got %v", err)
	}
	if got := f.State().Phase; got == PhaseSucceeded {
		t.Fatal("expected the in-flight result to be discarded")
	}
}
