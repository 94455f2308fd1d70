// Package authz resolves the server-held credential injected on every
// proxied upstream request.
//
// The key can come from more than one source:
//
//   - Environment: the ANTHROPIC_KEY variable set at deploy time.
//   - Static config: the upstream.access_key field in the gateway YAML.
//
// The CredentialResolver chains providers and returns the first non-empty
// key, so deployments can override the config key without editing files.
package authz

// Provider is a source of the upstream API key.
type Provider interface {
	// Name returns a human-readable name for logging (e.g., "env", "static-config").
	Name() string

	// Key returns the upstream API key, or "" if this source has none.
	Key() string
}
