package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexer-cc/lexer-gateway/pkg/ledger"
)

func newTestVerifier(t *testing.T) (*Verifier, *ledger.MemoryLedger) {
	t.Helper()
	store := ledger.NewMemoryLedger()
	v := NewVerifier(store, []byte("test-secret"), 15*time.Minute, time.Hour)
	return v, store
}

func TestIssueCodeFormat(t *testing.T) {
	v, _ := newTestVerifier(t)

	code, err := v.IssueCode("a@b.com")
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9', "code %q should be numeric", code)
	}
}

func TestVerifyCodeSingleUse(t *testing.T) {
	v, store := newTestVerifier(t)

	require.NoError(t, store.PutLoginCode("a@b.com", "123456", time.Now()))

	assert.False(t, v.VerifyCode("a@b.com", "000000"), "wrong code must fail")
	assert.True(t, v.VerifyCode("a@b.com", "123456"), "correct code must succeed once")
	assert.False(t, v.VerifyCode("a@b.com", "123456"), "reuse must fail")
}

func TestVerifyCodeNoneOutstanding(t *testing.T) {
	v, _ := newTestVerifier(t)
	assert.False(t, v.VerifyCode("a@b.com", "123456"))
}

func TestVerifyCodeExpiry(t *testing.T) {
	v, store := newTestVerifier(t)

	issued := time.Now()
	require.NoError(t, store.PutLoginCode("a@b.com", "123456", issued))

	v.SetClock(func() time.Time { return issued.Add(16 * time.Minute) })
	assert.False(t, v.VerifyCode("a@b.com", "123456"), "expired code must fail")
}

func TestIssueCodeSupersedes(t *testing.T) {
	v, _ := newTestVerifier(t)

	first, err := v.IssueCode("a@b.com")
	require.NoError(t, err)
	second, err := v.IssueCode("a@b.com")
	require.NoError(t, err)

	if first != second {
		assert.False(t, v.VerifyCode("a@b.com", first), "superseded code must fail")
	}
	assert.True(t, v.VerifyCode("a@b.com", second))
}

func TestIssueCodeCreatesIdentity(t *testing.T) {
	v, store := newTestVerifier(t)

	_, known, err := store.ResolveIdentityHandle("new@b.com")
	require.NoError(t, err)
	require.False(t, known)

	_, err = v.IssueCode("new@b.com")
	require.NoError(t, err)

	id, known, err := store.ResolveIdentityHandle("new@b.com")
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, "new@b.com", id)
}

func TestTokenRoundTrip(t *testing.T) {
	v, _ := newTestVerifier(t)

	token, err := v.IssueToken("a@b.com")
	require.NoError(t, err)

	identity, ok := v.VerifyToken(token)
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", identity)
}

func TestVerifyTokenFailures(t *testing.T) {
	v, _ := newTestVerifier(t)

	token, err := v.IssueToken("a@b.com")
	require.NoError(t, err)

	t.Run("tampered", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
		_, ok := v.VerifyToken(tampered)
		assert.False(t, ok)
	})

	t.Run("malformed", func(t *testing.T) {
		_, ok := v.VerifyToken("not-a-token")
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := v.VerifyToken("")
		assert.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		v.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
		_, ok := v.VerifyToken(token)
		assert.False(t, ok)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewVerifier(ledger.NewMemoryLedger(), []byte("other-secret"), 15*time.Minute, time.Hour)
		_, ok := other.VerifyToken(token)
		assert.False(t, ok)
	})
}
