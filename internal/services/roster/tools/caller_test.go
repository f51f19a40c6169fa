package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/roster/internal/platform/errors"
	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := IssueToken(testKey, 42, time.Hour, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	info, err := TokenVerifier(testKey, func() time.Time { return now.Add(time.Minute) })(context.Background(), token, nil)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !info.Expiration.Equal(now.Add(time.Hour)) {
		t.Fatalf("expiration = %v", info.Expiration)
	}

	req := &mcp.CallToolRequest{Extra: &mcp.RequestExtra{TokenInfo: info}}
	system, err := TokenCaller(req)
	if err != nil {
		t.Fatalf("caller: %v", err)
	}
	if system != 42 {
		t.Fatalf("system = %d, want 42", system)
	}
}

func TestTokenVerifierRejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	valid, err := IssueToken(testKey, 42, time.Hour, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  tokenIssuer,
		Subject: "42",
	}).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	otherIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		key   []byte
		token string
		at    time.Time
	}{
		{name: "expired", key: testKey, token: valid, at: now.Add(2 * time.Hour)},
		{name: "wrong key", key: []byte("another-key-another-key-another!"), token: valid, at: now},
		{name: "missing expiry", key: testKey, token: noExpiry, at: now},
		{name: "non numeric subject", key: testKey, token: badSubject, at: now},
		{name: "other issuer", key: testKey, token: otherIssuer, at: now},
		{name: "unsigned", key: testKey, token: unsigned, at: now},
		{name: "garbage", key: testKey, token: "not-a-token", at: now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			_, err := TokenVerifier(tt.key, func() time.Time { return at })(context.Background(), tt.token, nil)
			if !errors.Is(err, auth.ErrInvalidToken) {
				t.Fatalf("expected invalid token, got %v", err)
			}
		})
	}
}

func TestIssueTokenValidates(t *testing.T) {
	t.Parallel()

	if _, err := IssueToken(testKey, 0, time.Hour, time.Now()); err == nil {
		t.Fatal("expected system error")
	}
	if _, err := IssueToken(nil, 1, time.Hour, time.Now()); err == nil {
		t.Fatal("expected key error")
	}
}

func TestTokenCallerWithoutToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  *mcp.CallToolRequest
	}{
		{name: "nil request"},
		{name: "no extra", req: &mcp.CallToolRequest{}},
		{name: "no token", req: &mcp.CallToolRequest{Extra: &mcp.RequestExtra{}}},
		{name: "foreign token", req: &mcp.CallToolRequest{Extra: &mcp.RequestExtra{TokenInfo: &auth.TokenInfo{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TokenCaller(tt.req); apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
				t.Fatalf("expected unauthenticated, got %v", err)
			}
		})
	}
}

func TestFixedCaller(t *testing.T) {
	t.Parallel()

	system, err := FixedCaller(7)(nil)
	if err != nil || system != storage.SystemID(7) {
		t.Fatalf("fixed caller = %d, %v", system, err)
	}
	if _, err := FixedCaller(0)(nil); !errors.Is(err, ErrNoCaller) {
		t.Fatalf("expected no caller, got %v", err)
	}
}
