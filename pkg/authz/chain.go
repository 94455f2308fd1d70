package authz

import (
	"fmt"
	"os"
	"strings"

	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
)

// CredentialResolver chains Providers with first-match semantics: the first
// provider returning a non-empty key wins.
//
// The resolver is fail-closed: when no provider has a key, UpstreamKey
// returns an error and the request is rejected rather than forwarded
// without a credential. A gateway that silently proxies unauthenticated
// calls would just surface confusing upstream 401s.
type CredentialResolver struct {
	providers []Provider
}

// NewCredentialResolver creates a resolver with the given provider chain.
// Providers are tried in order.
func NewCredentialResolver(providers ...Provider) *CredentialResolver {
	return &CredentialResolver{providers: providers}
}

// UpstreamKey returns the upstream API key from the first provider that has
// one. The error lists every provider tried, making misconfiguration
// visible instead of silently forwarding keyless requests.
func (r *CredentialResolver) UpstreamKey() (string, error) {
	if r == nil {
		return "", fmt.Errorf("credential resolver is nil")
	}

	tried := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		if key := p.Key(); key != "" {
			logging.Debugf("Upstream credential resolved via provider %q", p.Name())
			return key, nil
		}
		tried = append(tried, p.Name())
	}

	return "", fmt.Errorf("no upstream credential found after trying [%s]: "+
		"set ANTHROPIC_KEY or upstream.access_key", strings.Join(tried, " → "))
}

// ProviderNames returns the names of all registered providers (for logging).
func (r *CredentialResolver) ProviderNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// EnvProvider reads the upstream key from an environment variable.
type EnvProvider struct {
	envVar string
}

// NewEnvProvider creates a provider reading from the named variable.
func NewEnvProvider(envVar string) *EnvProvider {
	return &EnvProvider{envVar: envVar}
}

func (p *EnvProvider) Name() string { return "env:" + p.envVar }

func (p *EnvProvider) Key() string { return os.Getenv(p.envVar) }

// StaticProvider returns a key fixed at construction time (from YAML config).
type StaticProvider struct {
	key string
}

// NewStaticProvider creates a provider with a fixed key.
func NewStaticProvider(key string) *StaticProvider {
	return &StaticProvider{key: key}
}

func (p *StaticProvider) Name() string { return "static-config" }

func (p *StaticProvider) Key() string { return p.key }
