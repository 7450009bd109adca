// Package stub implements an in-memory auth backend for local development
// and integration tests. It speaks the same wire contract the real gateway
// does: POST /api/auth/login and /api/auth/register with structured
// {code, message} error payloads.
package stub

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abrasadev/ordering-auth-go/internal/domain"
	"github.com/abrasadev/ordering-auth-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("stub")

// Account is an in-memory user record.
type Account struct {
	ID           int64
	Email        string
	PasswordHash []byte
	Name         string
	Phone        string
	Gender       string
	UserType     domain.UserType
	IsActive     bool
	IsVerified   bool
}

// Server is the stub auth backend.
type Server struct {
	jwtSecret           []byte
	tokenTTL            time.Duration
	requireVerification bool
	metrics             *observability.Metrics
	logger              *zap.Logger

	mu       sync.Mutex
	accounts map[string]*Account
	nextID   int64
}

// Options configures the stub backend.
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration

	// RequireVerification makes new registrations pend on email
	// verification instead of being immediately loggable.
	RequireVerification bool
}

// NewServer creates a stub backend with a seeded demo customer
// (cliente@test.com / password123) and a staff account for testing the
// wrong-portal rejection.
func NewServer(opts Options, metrics *observability.Metrics, logger *zap.Logger) *Server {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &Server{
		jwtSecret:           []byte(opts.JWTSecret),
		tokenTTL:            ttl,
		requireVerification: opts.RequireVerification,
		metrics:             metrics,
		logger:              logger,
		accounts:            make(map[string]*Account),
		nextID:              1,
	}
	s.seed("cliente@test.com", "password123", "Juan Pérez", domain.UserTypeCliente, true)
	s.seed("staff@test.com", "password123", "Rosa Quispe", domain.UserTypeStaff, true)
	s.seed("inactivo@test.com", "password123", "Pedro Suárez", domain.UserTypeCliente, false)
	return s
}

func (s *Server) seed(email, password, name string, userType domain.UserType, active bool) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	s.accounts[email] = &Account{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		UserType:     userType,
		IsActive:     active,
		IsVerified:   true,
	}
	s.nextID++
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(s.logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.countRequests("login", s.loginHandler()))
		r.Post("/register", s.countRequests("register", s.registerHandler()))
	})

	return r
}

// countRequests feeds the request counters served on /metrics.
func (s *Server) countRequests(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next(ww, r)

		status := "ok"
		if ww.Status() >= 400 {
			status = "error"
		}
		s.metrics.IncrGatewayRequest(operation, status)
	}
}

// --- Wire types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Audience string `json:"audience"`
}

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	Gender       string `json:"gender"`
	UserType     string `json:"user_type"`
	FrontendType string `json:"frontend_type"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /api/auth/login")
		defer span.End()

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "Campos obligatorios incompletos")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "Campos obligatorios incompletos")
			return
		}

		s.mu.Lock()
		acct, ok := s.accounts[strings.ToLower(req.Email)]
		s.mu.Unlock()

		if !ok || bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(req.Password)) != nil {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Credenciales inválidas")
			return
		}
		if !acct.IsActive {
			writeError(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Cuenta desactivada")
			return
		}
		if req.Audience == "client" && acct.UserType != domain.UserTypeCliente {
			writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Acceso denegado para este portal")
			return
		}
		if s.requireVerification && !acct.IsVerified {
			writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Acceso denegado: verifica tu correo")
			return
		}

		token, err := s.mintToken(acct, req.Audience)
		if err != nil {
			s.logger.Error("stub: token mint failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Error interno")
			return
		}

		writeJSON(w, http.StatusOK, domain.AuthResult{
			Token: token,
			User: domain.AuthUser{
				ID:         acct.ID,
				Email:      acct.Email,
				Name:       acct.Name,
				UserType:   acct.UserType,
				IsVerified: acct.IsVerified,
			},
		})
	}
}

func (s *Server) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /api/auth/register")
		defer span.End()

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "Campos obligatorios incompletos")
			return
		}
		if req.Name == "" || req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "Campos obligatorios incompletos")
			return
		}

		email := strings.ToLower(req.Email)

		s.mu.Lock()
		defer s.mu.Unlock()

		if _, exists := s.accounts[email]; exists {
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "El email ya está registrado")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Error interno")
			return
		}

		userType := domain.UserType(req.UserType)
		if userType == "" {
			userType = domain.UserTypeCliente
		}

		acct := &Account{
			ID:           s.nextID,
			Email:        email,
			PasswordHash: hash,
			Name:         req.Name,
			Phone:        req.Phone,
			Gender:       req.Gender,
			UserType:     userType,
			IsActive:     true,
			IsVerified:   !s.requireVerification,
		}
		s.accounts[email] = acct
		s.nextID++

		s.logger.Info("stub: account created",
			zap.Int64("user_id", acct.ID),
			zap.String("user_type", string(acct.UserType)),
		)

		writeJSON(w, http.StatusCreated, domain.RegistrationReceipt{
			UserID:               acct.ID,
			Email:                acct.Email,
			Name:                 acct.Name,
			IsVerified:           acct.IsVerified,
			RequiresVerification: s.requireVerification,
		})
	}
}

func (s *Server) mintToken(acct *Account, audience string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       acct.ID,
		"email":     acct.Email,
		"user_type": string(acct.UserType),
		"aud":       audience,
		"iat":       now.Unix(),
		"exp":       now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
