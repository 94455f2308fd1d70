// Package auth implements identity verification for the gateway: single-use
// email login codes and the signed bearer tokens issued after a code is
// redeemed.
//
// The code scheme is canonical across the gateway: fixed-length 6-digit
// numeric codes from crypto/rand, one outstanding code per identity
// (issuing supersedes), explicit issuance timestamp, 15-minute TTL by
// default, invalidated on first successful verification.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lexer-cc/lexer-gateway/pkg/ledger"
	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
)

// CodeLength is the number of digits in a login code.
const CodeLength = 6

// CodeStore is the slice of the ledger the verifier needs for login codes.
type CodeStore interface {
	EnsureIdentity(email string) error
	PutLoginCode(identity, code string, issuedAt time.Time) error
	GetLoginCode(identity string) (ledger.LoginCode, bool, error)
	DeleteLoginCode(identity string) error
}

// Verifier issues and redeems login codes and mints bearer tokens.
type Verifier struct {
	store    CodeStore
	secret   []byte
	codeTTL  time.Duration
	tokenTTL time.Duration

	// now is injectable for TTL tests.
	now func() time.Time
}

// Claims is the JWT payload binding a token to an identity.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewVerifier creates a verifier backed by the given code store and signing
// secret.
func NewVerifier(store CodeStore, secret []byte, codeTTL, tokenTTL time.Duration) *Verifier {
	return &Verifier{
		store:    store,
		secret:   secret,
		codeTTL:  codeTTL,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// SetClock replaces the verifier's clock. Intended for tests.
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

// IssueCode generates a fresh single-use code for the identity, superseding
// any outstanding one, and returns it for delivery. The identity is created
// implicitly on first issuance.
func (v *Verifier) IssueCode(identity string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate login code: %w", err)
	}

	if err := v.store.EnsureIdentity(identity); err != nil {
		return "", fmt.Errorf("failed to register identity: %w", err)
	}
	if err := v.store.PutLoginCode(identity, code, v.now()); err != nil {
		return "", fmt.Errorf("failed to store login code: %w", err)
	}
	return code, nil
}

// VerifyCode reports whether code is the identity's outstanding, unexpired
// login code. On success the code is invalidated; on any failure (wrong
// code, expired, none outstanding, store error) it returns false with no
// side effects.
func (v *Verifier) VerifyCode(identity, code string) bool {
	stored, ok, err := v.store.GetLoginCode(identity)
	if err != nil {
		logging.Errorf("Login code lookup failed for %s: %v", identity, err)
		return false
	}
	if !ok {
		return false
	}

	if v.now().Sub(stored.IssuedAt) > v.codeTTL {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
		return false
	}

	// Single use: the code dies with its first successful verification.
	if err := v.store.DeleteLoginCode(identity); err != nil {
		logging.Errorf("Failed to invalidate login code for %s: %v", identity, err)
		return false
	}
	return true
}

// IssueToken mints a signed bearer token bound to the identity, expiring
// after the configured token TTL.
func (v *Verifier) IssueToken(identity string) (string, error) {
	now := v.now()
	claims := Claims{
		Email: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates signature and expiry and returns the bound identity.
// Any failure — malformed, expired, wrong signature — yields ok=false; this
// never surfaces an error to the caller.
func (v *Verifier) VerifyToken(tokenString string) (string, bool) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil || !token.Valid || claims.Email == "" {
		return "", false
	}
	return claims.Email, true
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}
