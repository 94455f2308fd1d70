// Package gateway wires the HTTP surface: the two auth endpoints and the
// catch-all proxy pipeline.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lexer-cc/lexer-gateway/pkg/auth"
	"github.com/lexer-cc/lexer-gateway/pkg/config"
	"github.com/lexer-cc/lexer-gateway/pkg/ledger"
	"github.com/lexer-cc/lexer-gateway/pkg/mail"
	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
	"github.com/lexer-cc/lexer-gateway/pkg/proxy"
	"github.com/lexer-cc/lexer-gateway/pkg/ratelimit"
)

// Server holds the gateway's dependencies. Everything is injected; the
// package keeps no global state.
type Server struct {
	cfg       *config.Config
	verifier  *auth.Verifier
	limiter   *ratelimit.Resolver
	forwarder *proxy.Forwarder
	store     ledger.Ledger
	mailer    mail.Sender
}

// New assembles a gateway server from its collaborators.
func New(cfg *config.Config, verifier *auth.Verifier, limiter *ratelimit.Resolver, forwarder *proxy.Forwarder, store ledger.Ledger, mailer mail.Sender) *Server {
	return &Server{
		cfg:       cfg,
		verifier:  verifier,
		limiter:   limiter,
		forwarder: forwarder,
		store:     store,
		mailer:    mailer,
	}
}

// Handler returns the gateway's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/send-code", s.handleSendCode)
	mux.HandleFunc("POST /auth/verify-code", s.handleVerifyCode)

	// Everything else is proxied 1:1 to the upstream.
	mux.HandleFunc("/", s.handleProxy)
	return mux
}

// ListenAndServe starts the gateway HTTP server. WriteTimeout stays unset:
// proxied SSE responses are long-lived by design.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.ListenPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logging.Infof("Gateway listening on port %d, proxying to %s", s.cfg.ListenPort, s.cfg.Upstream.Host)
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Errorf("Failed to encode response: %v", err)
	}
}
