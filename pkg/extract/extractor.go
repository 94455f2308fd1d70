// Package extract harvests token-usage telemetry from streamed SSE
// responses without disturbing the stream.
//
// The Extractor wraps the upstream response body as a pass-through
// io.ReadCloser: every byte read from upstream is handed to the client
// unmodified, while a side channel reassembles logical lines, parses
// `data: `-prefixed JSON payloads, and accumulates a usage snapshot for the
// current request. Lines split across chunk boundaries are carried in a
// partial-line buffer, so extraction is correct regardless of how the
// network fragments the stream.
package extract

import (
	"bytes"
	"io"

	"github.com/lexer-cc/lexer-gateway/pkg/ledger"
)

var dataPrefix = []byte("data:")

// maxPartialLine caps the carried incomplete-line buffer. The extractor sits
// on untrusted bytes: an upstream that labels a newline-free body as an event
// stream would otherwise grow the buffer without bound. No valid SSE data
// line approaches this size, so an oversized fragment is dropped and
// scanning resynchronizes at the next newline.
const maxPartialLine = 1 << 20

// CommitFunc receives the accumulated snapshot exactly once, when the
// terminal event is observed.
type CommitFunc func(usage ledger.UsageSnapshot)

// Extractor is a pass-through reader over an SSE response body.
type Extractor struct {
	body   io.ReadCloser
	commit CommitFunc

	// partial holds the bytes of an incomplete line spanning chunk
	// boundaries. It owns its backing array; chunk bytes are copied in
	// because the caller reuses its read buffer.
	partial []byte

	// discarding is set after an oversized fragment is dropped; the bytes
	// up to the next newline belong to that line and are skipped too.
	discarding bool

	snapshot  ledger.UsageSnapshot
	committed bool
}

// New wraps body. commit is invoked once, synchronously, when the terminal
// event is seen; if the stream ends without one, commit is never called and
// the request's usage stays unset.
func New(body io.ReadCloser, commit CommitFunc) *Extractor {
	return &Extractor{body: body, commit: commit}
}

// Read passes bytes through from the upstream body, scanning a copy for
// usage events. The returned bytes are exactly what upstream sent.
func (e *Extractor) Read(p []byte) (int, error) {
	n, err := e.body.Read(p)
	if n > 0 {
		e.scan(p[:n])
	}
	if err == io.EOF {
		// A final line without a trailing newline is still a line.
		e.flush()
	}
	return n, err
}

// Close closes the upstream body. Always called on every pipeline exit
// path, including client disconnects, so the upstream connection is
// released promptly.
func (e *Extractor) Close() error {
	return e.body.Close()
}

// Snapshot returns the usage accumulated so far. Primarily for logging.
func (e *Extractor) Snapshot() ledger.UsageSnapshot {
	return e.snapshot
}

func (e *Extractor) scan(chunk []byte) {
	e.partial = append(e.partial, chunk...)
	for {
		i := bytes.IndexByte(e.partial, '\n')
		if i < 0 {
			break
		}
		if e.discarding {
			e.discarding = false
		} else {
			e.handleLine(e.partial[:i])
		}
		e.partial = e.partial[i+1:]
	}

	if len(e.partial) > maxPartialLine {
		e.partial = e.partial[:0]
		e.discarding = true
	}
}

func (e *Extractor) flush() {
	if len(e.partial) > 0 && !e.discarding {
		e.handleLine(e.partial)
	}
	e.partial = nil
}

func (e *Extractor) handleLine(line []byte) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, dataPrefix) {
		return
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 {
		return
	}

	ev := parseEvent(payload)
	switch ev.Kind {
	case KindMessageStart:
		if ev.MessageID != "" {
			e.snapshot.MessageID = ev.MessageID
		}
		if ev.InputTokens > 0 {
			e.snapshot.InputTokens = ev.InputTokens
		}
	case KindUsageDelta:
		if ev.OutputTokens > 0 {
			e.snapshot.OutputTokens = ev.OutputTokens
		}
	case KindTerminal:
		if !e.committed && e.commit != nil {
			e.committed = true
			e.commit(e.snapshot)
		}
	}
}
