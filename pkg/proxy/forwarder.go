// Package proxy forwards inbound requests to the fixed upstream API with
// header rewriting and server-side credential injection.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lexer-cc/lexer-gateway/pkg/authz"
	"github.com/lexer-cc/lexer-gateway/pkg/config"
	"github.com/lexer-cc/lexer-gateway/pkg/headers"
	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
)

// Forwarder relays requests to the single configured upstream.
//
// The inbound body is fully buffered before forwarding — a deliberate
// simplification that trades support for very large streamed uploads for a
// much simpler correctness story. Responses are NOT buffered; the body is
// returned as-is for streaming to the client.
type Forwarder struct {
	scheme      string
	host        string
	credentials *authz.CredentialResolver
	client      *http.Client
}

// NewForwarder creates a forwarder for the configured upstream. The
// client timeout covers the whole exchange including the streamed response
// body; cfg.Timeout() == 0 leaves it unbounded.
func NewForwarder(cfg config.UpstreamConfig, credentials *authz.CredentialResolver) *Forwarder {
	return &Forwarder{
		scheme:      cfg.Scheme,
		host:        cfg.Host,
		credentials: credentials,
		client:      &http.Client{Timeout: cfg.Timeout()},
	}
}

// Forward rewrites and relays the inbound request. The caller owns the
// returned response and must close its body. Exactly one upstream attempt;
// network errors are returned for the pipeline to map to 502.
//
// Header policy: everything is cloned except the inbound Authorization
// (client bearer token), Host, and any inbound copy of the upstream
// credential header; the server-held key is then set exactly once.
func (f *Forwarder) Forward(ctx context.Context, inbound *http.Request) (*http.Response, error) {
	key, err := f.credentials.UpstreamKey()
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(inbound.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbound body: %w", err)
	}

	outURL := url.URL{
		Scheme:   f.scheme,
		Host:     f.host,
		Path:     inbound.URL.Path,
		RawQuery: inbound.URL.RawQuery,
	}

	out, err := http.NewRequestWithContext(ctx, inbound.Method, outURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	for name, values := range inbound.Header {
		if shouldStrip(name) {
			continue
		}
		for _, v := range values {
			out.Header.Add(name, v)
		}
	}
	out.Header.Set(headers.UpstreamAPIKey, key)

	logging.Debugf("Forwarding %s %s to %s", inbound.Method, inbound.URL.Path, f.host)

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	return resp, nil
}

func shouldStrip(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case headers.Authorization, headers.Host, http.CanonicalHeaderKey(headers.UpstreamAPIKey):
		return true
	}
	return false
}
