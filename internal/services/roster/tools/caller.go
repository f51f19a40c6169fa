package tools

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/roster/internal/platform/errors"
	"github.com/louisbranch/roster/internal/services/roster/domain"
	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	systemInfoKey = "roster.system"
	tokenIssuer   = "roster"
)

// ErrNoCaller indicates a tool call that does not carry a caller system.
var ErrNoCaller = apperrors.New(apperrors.CodeUnauthenticated, "tool call has no caller system")

// Service is the roster surface the tools call.
type Service interface {
	AddReminder(ctx context.Context, reminder storage.Reminder) error
	ClaimReminders(ctx context.Context, scope storage.ClaimScope, includeSeen, includeSystemWide bool) ([]storage.Reminder, error)
	QueryEntities(ctx context.Context, kind domain.EntityKind, system storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[domain.ListedEntity, error], error)
}

// CallerFunc resolves the system a tool call acts for.
type CallerFunc func(req *mcp.CallToolRequest) (storage.SystemID, error)

// TokenCaller reads the caller system from the verified bearer token.
func TokenCaller(req *mcp.CallToolRequest) (storage.SystemID, error) {
	if req == nil || req.Extra == nil || req.Extra.TokenInfo == nil {
		return 0, ErrNoCaller
	}
	system, ok := req.Extra.TokenInfo.Extra[systemInfoKey].(storage.SystemID)
	if !ok || system == 0 {
		return 0, ErrNoCaller
	}
	return system, nil
}

// FixedCaller acts for one system regardless of the request. Used by the
// stdio transport, which has no per-request credentials.
func FixedCaller(system storage.SystemID) CallerFunc {
	return func(*mcp.CallToolRequest) (storage.SystemID, error) {
		if system == 0 {
			return 0, ErrNoCaller
		}
		return system, nil
	}
}

// TokenVerifier checks HS256 tokens signed with key. The subject is the
// caller system id and an expiry is required.
func TokenVerifier(key []byte, now func() time.Time) auth.TokenVerifier {
	if now == nil {
		now = time.Now
	}
	return func(_ context.Context, token string, _ *http.Request) (*auth.TokenInfo, error) {
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return key, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
		}
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: subject is not a system id", auth.ErrInvalidToken)
		}
		return &auth.TokenInfo{
			Expiration: claims.ExpiresAt.Time,
			Extra:      map[string]any{systemInfoKey: storage.SystemID(id)},
		}, nil
	}
}

// IssueToken signs a token that lets its bearer act for system until ttl
// elapses.
func IssueToken(key []byte, system storage.SystemID, ttl time.Duration, now time.Time) (string, error) {
	if system <= 0 {
		return "", errors.New("system id is required")
	}
	if len(key) == 0 {
		return "", errors.New("signing key is required")
	}
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(int64(system), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
