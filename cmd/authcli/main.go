// Command authcli is the portal auth client: it logs in, registers, and
// manages the locally persisted session against the auth gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/abrasadev/ordering-auth-go/internal/config"
	"github.com/abrasadev/ordering-auth-go/internal/domain"
	"github.com/abrasadev/ordering-auth-go/internal/flow"
	"github.com/abrasadev/ordering-auth-go/internal/gateway"
	"github.com/abrasadev/ordering-auth-go/internal/infra/observability"
	"github.com/abrasadev/ordering-auth-go/internal/infra/resilience"
	"github.com/abrasadev/ordering-auth-go/internal/port"
	"github.com/abrasadev/ordering-auth-go/internal/session"

	"go.uber.org/zap"
)

const usage = `uso: authcli <comando> [flags]

comandos:
  login      iniciar sesión (-email, -password)
  register   crear una cuenta (-name, -surname, -email, -password, -confirm, -phone, -gender)
  status     mostrar la sesión guardada
  logout     cerrar la sesión guardada

flags globales:
  -verbose   imprimir contadores de la ejecución
`

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   port.SessionStore
	login   *flow.Login
	reg     *flow.Register
	verbose bool
}

func main() {
	// os.Exit skips defers, so all wiring lives in run: the logger flush,
	// tracer shutdown, and flow teardown must execute before the process ends.
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "abrasa-auth-cli")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	metrics := observability.NewMetrics()

	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("auth-gateway")
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	gw := gateway.NewClient(httpClient, cfg.GatewayURL, cfg.FrontendType, cb, resilienceCfg, metrics, logger)
	store := session.NewFileStore(cfg.SessionPath, cfg.SessionPassphrase, logger)

	loginFlow := flow.NewLogin(gw, store, cfg.Audience, metrics, logger)
	defer loginFlow.Close()
	registerFlow := flow.NewRegister(gw, loginFlow, metrics, logger)
	defer registerFlow.Close()

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   store,
		login:   loginFlow,
		reg:     registerFlow,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var code int
	switch os.Args[1] {
	case "login":
		code = a.runLogin(ctx, os.Args[2:])
	case "register":
		code = a.runRegister(ctx, os.Args[2:])
	case "status":
		code = a.runStatus(os.Args[2:])
	case "logout":
		code = a.runLogout(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		code = 2
	}

	if a.verbose {
		snap := metrics.Snapshot()
		fmt.Printf("\n-- contadores --\n")
		fmt.Printf("login:    %.0f intentos, %.0f fallidos\n", snap.LoginAttempts, snap.LoginFailures)
		fmt.Printf("register: %.0f intentos, %.0f fallidos\n", snap.RegisterAttempts, snap.RegisterFailures)
		fmt.Printf("gateway:  %.0f errores\n", snap.GatewayErrors)
	}

	return code
}

func (a *app) runLogin(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "correo electrónico")
	password := fs.String("password", "", "contraseña")
	fs.BoolVar(&a.verbose, "verbose", false, "imprimir contadores")
	fs.Parse(args)

	out, err := a.login.Submit(ctx, *email, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return a.report(out)
}

func (a *app) runRegister(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "nombres")
	surname := fs.String("surname", "", "apellidos")
	email := fs.String("email", "", "correo electrónico")
	password := fs.String("password", "", "contraseña")
	confirm := fs.String("confirm", "", "confirmar contraseña")
	phone := fs.String("phone", "", "teléfono (opcional)")
	gender := fs.String("gender", "", "género (opcional)")
	fs.BoolVar(&a.verbose, "verbose", false, "imprimir contadores")
	fs.Parse(args)

	form := &domain.RegisterForm{
		Name:            *name,
		Surname:         *surname,
		Email:           *email,
		Password:        *password,
		ConfirmPassword: *confirm,
		Phone:           *phone,
		Gender:          domain.Gender(*gender),
	}

	out, err := a.reg.Submit(ctx, form)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return a.report(out)
}

func (a *app) runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.BoolVar(&a.verbose, "verbose", false, "imprimir contadores")
	fs.Parse(args)

	sess, err := a.store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if sess == nil {
		fmt.Println("Sin sesión activa.")
		return 0
	}

	fmt.Printf("Sesión activa: %s <%s>\n", sess.User.Name, sess.User.Email)
	fmt.Printf("  user_id:   %d\n", sess.User.ID)
	fmt.Printf("  user_type: %s\n", sess.User.UserType)
	fmt.Printf("  guardada:  %s\n", sess.SavedAt.Local().Format(time.RFC822))
	return 0
}

func (a *app) runLogout(args []string) int {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.BoolVar(&a.verbose, "verbose", false, "imprimir contadores")
	fs.Parse(args)

	if err := a.store.Clear(); err != nil {
		a.metrics.IncrSessionStoreOp("clear", "error")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	a.metrics.IncrSessionStoreOp("clear", "ok")
	fmt.Println("Sesión cerrada.")
	return 0
}

// report prints the flow outcome in user-facing terms and maps it to an
// exit code.
func (a *app) report(out flow.Outcome) int {
	switch out.Kind {
	case flow.OutcomeAuthenticated:
		fmt.Printf("¡Bienvenido, %s!\n", out.Session.User.Name)
		return 0
	case flow.OutcomeVerificationPending:
		fmt.Printf("Cuenta creada. Revisa tu correo (%s) para verificar la cuenta antes de iniciar sesión.\n", out.Email)
		return 0
	case flow.OutcomeAccountCreatedLoginFailed:
		fmt.Printf("%s Inicia sesión manualmente con %s.\n", out.Message, out.Email)
		return 1
	default:
		fmt.Fprintln(os.Stderr, out.Message)
		return 1
	}
}
