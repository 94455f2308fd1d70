package gateway

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexer-cc/lexer-gateway/pkg/extract"
	"github.com/lexer-cc/lexer-gateway/pkg/headers"
	"github.com/lexer-cc/lexer-gateway/pkg/ledger"
	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
	"github.com/lexer-cc/lexer-gateway/pkg/observability/metrics"
	"github.com/lexer-cc/lexer-gateway/pkg/ratelimit"
)

const bearerPrefix = "Bearer "

// handleProxy runs the per-request pipeline: verify the bearer token,
// resolve the identity, reserve rate-limit capacity, forward upstream, and
// relay the response — extracting usage from SSE bodies on the way through.
// One upstream attempt, no retries.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get(headers.Authorization)
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		metrics.RecordRequest(metrics.OutcomeUnauthorized)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	identity, ok := s.verifier.VerifyToken(strings.TrimPrefix(authHeader, bearerPrefix))
	if !ok {
		metrics.RecordRequest(metrics.OutcomeUnauthorized)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// A valid token for an identity the ledger has never seen means the
	// account is gone (or the token was minted elsewhere); 404, not 401.
	if _, known, err := s.store.ResolveIdentityHandle(identity); err != nil {
		// Fail closed: authorization-affecting ledger errors deny.
		logging.Errorf("Identity lookup failed for %s: %v", identity, err)
		metrics.RecordRequest(metrics.OutcomeUnknownUser)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	} else if !known {
		metrics.RecordRequest(metrics.OutcomeUnknownUser)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	decision, err := s.limiter.Check(ratelimit.Context{
		Identity: identity,
		Method:   r.Method,
		Path:     r.URL.Path,
	})
	if err != nil {
		// Fail closed, but keep ledger failures distinguishable from
		// ordinary throttling in the metrics.
		metrics.RecordRequest(metrics.OutcomeLedgerErr)
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	if !decision.Allowed {
		metrics.RecordRequest(metrics.OutcomeRateLimited)
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	start := time.Now()
	resp, err := s.forwarder.Forward(r.Context(), r)
	if err != nil {
		logging.Errorf("Upstream request failed for %s %s: %v", r.Method, r.URL.Path, err)
		metrics.RecordRequest(metrics.OutcomeUpstreamErr)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	metrics.ObserveUpstreamLatency(time.Since(start))
	metrics.RecordRequest(metrics.OutcomeProxied)

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if !isEventStream(resp.Header.Get(headers.ContentType)) {
		if _, err := io.Copy(w, resp.Body); err != nil {
			logging.Warnf("Relay interrupted for %s %s: %v", r.Method, r.URL.Path, err)
		}
		return
	}

	s.relayStream(w, r, resp.Body, identity, decision.RequestID)
}

// relayStream copies the SSE body to the client byte-for-byte while the
// extractor accumulates usage on the side. The snapshot is committed to the
// ledger once, when the terminal event arrives; a commit failure is logged
// and counted but cannot affect the already-streaming client response.
func (s *Server) relayStream(w http.ResponseWriter, r *http.Request, body io.ReadCloser, identity, requestID string) {
	commit := func(usage ledger.UsageSnapshot) {
		metrics.RecordUsage(usage.InputTokens, usage.OutputTokens)
		if requestID == "" {
			logging.Warnf("Usage observed for %s without a ledger record: %+v", identity, usage)
			return
		}
		if err := s.store.UpdateUsage(requestID, usage); err != nil {
			metrics.RecordUsageUpdateFailure()
			logging.Errorf("Failed to record usage for request %s: %v", requestID, err)
			return
		}
		logging.Infof("Usage recorded for %s: message=%s input=%d output=%d",
			identity, usage.MessageID, usage.InputTokens, usage.OutputTokens)
	}

	ex := extract.New(body, commit)
	defer ex.Close()

	if _, err := io.Copy(newFlushWriter(w), ex); err != nil {
		// Client gone or upstream died mid-stream. Closing the extractor
		// (deferred) releases the upstream connection either way.
		logging.Warnf("Stream relay interrupted for %s %s: %v", r.Method, r.URL.Path, err)
	}
}

func isEventStream(contentType string) bool {
	return strings.Contains(contentType, headers.EventStreamContentType)
}

// flushWriter flushes after every write so SSE frames reach the client
// without buffering delay.
type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	fw := &flushWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}
