package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverFirstMatch(t *testing.T) {
	t.Setenv("TEST_UPSTREAM_KEY", "from-env")

	r := NewCredentialResolver(
		NewEnvProvider("TEST_UPSTREAM_KEY"),
		NewStaticProvider("from-config"),
	)

	key, err := r.UpstreamKey()
	require.NoError(t, err)
	assert.Equal(t, "from-env", key, "env provider wins when set")
}

func TestResolverFallsThrough(t *testing.T) {
	t.Setenv("TEST_UPSTREAM_KEY", "")

	r := NewCredentialResolver(
		NewEnvProvider("TEST_UPSTREAM_KEY"),
		NewStaticProvider("from-config"),
	)

	key, err := r.UpstreamKey()
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)
}

func TestResolverFailsClosed(t *testing.T) {
	r := NewCredentialResolver(NewStaticProvider(""))

	key, err := r.UpstreamKey()
	assert.Error(t, err)
	assert.Empty(t, key)
	assert.Contains(t, err.Error(), "static-config", "error names the providers tried")
}

func TestResolverNil(t *testing.T) {
	var r *CredentialResolver
	_, err := r.UpstreamKey()
	assert.Error(t, err)
	assert.Nil(t, r.ProviderNames())
}
