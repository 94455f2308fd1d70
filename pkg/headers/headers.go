// Package headers centralizes the header names the gateway reads, strips,
// and injects, so the proxy and tests agree on a single source of truth.
package headers

const (
	// Authorization carries the client's Bearer token. Never forwarded upstream.
	Authorization = "Authorization"

	// Host is rewritten to the upstream host and must not be cloned verbatim.
	Host = "Host"

	// UpstreamAPIKey is the server-held credential header injected on every
	// proxied request (the Anthropic API key header).
	UpstreamAPIKey = "x-api-key"

	// ContentType is inspected on upstream responses to detect event streams.
	ContentType = "Content-Type"

	// EventStreamContentType marks an SSE response subject to usage extraction.
	EventStreamContentType = "text/event-stream"
)
