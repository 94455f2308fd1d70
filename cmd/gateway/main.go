package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexer-cc/lexer-gateway/pkg/auth"
	"github.com/lexer-cc/lexer-gateway/pkg/authz"
	"github.com/lexer-cc/lexer-gateway/pkg/config"
	"github.com/lexer-cc/lexer-gateway/pkg/gateway"
	"github.com/lexer-cc/lexer-gateway/pkg/ledger"
	"github.com/lexer-cc/lexer-gateway/pkg/mail"
	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
	"github.com/lexer-cc/lexer-gateway/pkg/proxy"
	"github.com/lexer-cc/lexer-gateway/pkg/ratelimit"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to the configuration file")
		port       = flag.Int("port", 0, "Override listen_port from config")
	)
	flag.Parse()

	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	if _, err := logging.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}
	defer logging.Sync()

	cfg, err := config.Parse(*configPath)
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.ListenPort = *port
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logging.Fatalf("JWT_SECRET is not set; refusing to sign tokens with an empty secret")
	}

	store, err := ledger.OpenSQLite(cfg.Ledger.Path)
	if err != nil {
		logging.Fatalf("Failed to open ledger: %v", err)
	}
	defer store.Close()

	verifier := auth.NewVerifier(store, []byte(jwtSecret), cfg.Auth.CodeTTL(), cfg.Auth.TokenTTL())

	var mailer mail.Sender
	if key := os.Getenv("SG_KEY"); key != "" {
		mailer = mail.NewSendGridSender(key)
	} else {
		logging.Warnf("SG_KEY is not set; login codes will be logged instead of emailed")
		mailer = mail.LogSender{}
	}

	credentials := authz.NewCredentialResolver(
		authz.NewEnvProvider("ANTHROPIC_KEY"),
		authz.NewStaticProvider(cfg.Upstream.AccessKey),
	)
	logging.Infof("Upstream credential providers: %v", credentials.ProviderNames())

	limiter := ratelimit.NewResolver(
		ratelimit.NewLedgerLimiter(store, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window()),
	)

	forwarder := proxy.NewForwarder(cfg.Upstream, credentials)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		logging.Infof("Metrics server listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logging.Errorf("Metrics server error: %v", err)
		}
	}()

	srv := gateway.New(cfg, verifier, limiter, forwarder, store, mailer)
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatalf("Gateway server error: %v", err)
	}
}
