// Package gateway implements the HTTP client for the remote auth backend.
// It covers two operations, login and register, plus error normalization
// into the domain taxonomy. Each call is a single attempt; retry and
// circuit breaking live in the transport layer below.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/abrasadev/ordering-auth-go/internal/domain"
	"github.com/abrasadev/ordering-auth-go/internal/infra/observability"
	"github.com/abrasadev/ordering-auth-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("gateway")

// Client wraps HTTP calls to the auth backend.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	frontendType string
	cb           *gobreaker.CircuitBreaker
	cfg          resilience.Config
	bulkhead     *resilience.Bulkhead
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewClient creates an auth gateway client.
func NewClient(httpClient *http.Client, baseURL, frontendType string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 1
	}
	return &Client{
		httpClient:   httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		frontendType: frontendType,
		cb:           cb,
		cfg:          cfg,
		bulkhead:     resilience.NewBulkhead(maxConc),
		metrics:      metrics,
		logger:       logger,
	}
}

// --- Wire types (backend contract) ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Audience string `json:"audience"`
}

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone,omitempty"`
	Gender       string `json:"gender,omitempty"`
	UserType     string `json:"user_type"`
	FrontendType string `json:"frontend_type"`
}

// errorBody is the structured error payload. Older backends only send a
// message; classification falls back to message substrings for those.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (b *errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}

// classifier turns a non-2xx response into a typed domain error.
type classifier func(status int, body errorBody) error

// Login authenticates against POST /api/auth/login for the given audience.
func (c *Client) Login(ctx context.Context, email, password, audience string) (*domain.AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Gateway.Login")
	defer span.End()
	span.SetAttributes(attribute.String("auth.audience", audience))

	var result domain.AuthResult
	err := c.do(ctx, "login", "/api/auth/login",
		&loginRequest{Email: email, Password: password, Audience: audience},
		&result,
		func(status int, body errorBody) error {
			return classifyLogin(status, body)
		},
	)
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, &domain.ErrGateway{Status: http.StatusOK, Message: "respuesta de login sin token"}
	}
	return &result, nil
}

// Register creates an account via POST /api/auth/register. The user type is
// fixed to "cliente": this client only ever registers portal customers.
func (c *Client) Register(ctx context.Context, form *domain.RegisterForm) (*domain.RegistrationReceipt, error) {
	ctx, span := tracer.Start(ctx, "Gateway.Register")
	defer span.End()

	req := &registerRequest{
		Name:         form.FullName(),
		Email:        form.Email,
		Password:     form.Password,
		Phone:        form.Phone,
		Gender:       string(form.Gender),
		UserType:     string(domain.UserTypeCliente),
		FrontendType: c.frontendType,
	}

	var receipt domain.RegistrationReceipt
	err := c.do(ctx, "register", "/api/auth/register", req, &receipt,
		func(status int, body errorBody) error {
			return classifyRegister(status, body, form.Email)
		},
	)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// do executes one logical gateway call. The transport layer below may retry,
// but only while the request never reached the backend: once an HTTP
// response exists, success or error, the attempt is final.
func (c *Client) do(ctx context.Context, operation, path string, payload, out any, classify classifier) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		c.metrics.IncrGatewayRequest(operation, "error")
		c.metrics.IncrGatewayError(operation, "network")
		return &domain.ErrNetwork{Op: operation, Err: err}
	}
	defer c.bulkhead.Release()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	_, cbErr := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			requestID := uuid.NewString()

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Request-ID", requestID)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Warn("gateway: request failed",
					zap.String("operation", operation),
					zap.String("request_id", requestID),
					zap.Error(err),
				)
				return err // transport failure: retryable
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				var eb errorBody
				_ = json.Unmarshal(raw, &eb)
				c.logger.Warn("gateway: backend rejected request",
					zap.String("operation", operation),
					zap.String("request_id", requestID),
					zap.Int("status", resp.StatusCode),
					zap.String("code", eb.Code),
				)
				return resilience.Permanent(classify(resp.StatusCode, eb))
			}

			if err := json.Unmarshal(raw, out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s response: %w", operation, err))
			}

			c.logger.Debug("gateway: request OK",
				zap.String("operation", operation),
				zap.String("request_id", requestID),
				zap.Int("status", resp.StatusCode),
			)
			return nil
		})
	})

	if cbErr != nil {
		c.metrics.IncrGatewayRequest(operation, "error")
		kind, err := normalize(operation, cbErr)
		c.metrics.IncrGatewayError(operation, kind)
		return err
	}

	c.metrics.IncrGatewayRequest(operation, "ok")
	return nil
}

// normalize folds transport-level failures into ErrNetwork and passes typed
// domain errors through, returning the metric kind label alongside.
func normalize(operation string, err error) (string, error) {
	var (
		invalid   *domain.ErrInvalidCredentials
		disabled  *domain.ErrAccountDisabled
		denied    *domain.ErrAccessDenied
		duplicate *domain.ErrDuplicateEmail
		missing   *domain.ErrMissingFields
		unknown   *domain.ErrGateway
	)

	switch {
	case errors.As(err, &invalid):
		return "invalid_credentials", err
	case errors.As(err, &disabled):
		return "account_disabled", err
	case errors.As(err, &denied):
		return "access_denied", err
	case errors.As(err, &duplicate):
		return "duplicate_email", err
	case errors.As(err, &missing):
		return "missing_fields", err
	case errors.As(err, &unknown):
		return "unknown", err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "network", &domain.ErrNetwork{Op: operation, Err: err}
	default:
		return "network", &domain.ErrNetwork{Op: operation, Err: err}
	}
}

func classifyLogin(status int, body errorBody) error {
	msg := body.text()
	switch {
	case body.Code == "INVALID_CREDENTIALS",
		status == http.StatusUnauthorized,
		strings.Contains(msg, "Credenciales inválidas"):
		return &domain.ErrInvalidCredentials{Message: msg}
	case body.Code == "ACCOUNT_DISABLED",
		strings.Contains(msg, "Cuenta desactivada"):
		return &domain.ErrAccountDisabled{Message: msg}
	case body.Code == "ACCESS_DENIED",
		status == http.StatusForbidden,
		strings.Contains(msg, "Acceso denegado"):
		return &domain.ErrAccessDenied{Message: msg}
	default:
		return &domain.ErrGateway{Status: status, Code: body.Code, Message: msg}
	}
}

func classifyRegister(status int, body errorBody, email string) error {
	msg := body.text()
	switch {
	case body.Code == "EMAIL_TAKEN",
		status == http.StatusConflict,
		strings.Contains(msg, "ya está registrado"):
		return &domain.ErrDuplicateEmail{Email: email}
	case body.Code == "MISSING_FIELDS",
		strings.Contains(msg, "Campos obligatorios"):
		return &domain.ErrMissingFields{Message: msg}
	default:
		return &domain.ErrGateway{Status: status, Code: body.Code, Message: msg}
	}
}
