package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	tok, err := GenerateJWT(42, "admin", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	_, err = ParseJWT(tok, "other")
	assert.Error(t, err)
}

func TestParseJWT_RejectsExpiredAndIncomplete(t *testing.T) {
	expired, err := GenerateJWT(1, "user", "k", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "k")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noRole, err := GenerateJWT(1, "", "k", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(noRole, "k")
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(r))
}

type domainErr struct{ retry bool }

func (e domainErr) Error() string   { return "domain" }
func (e domainErr) Retryable() bool { return e.retry }

func TestIsRetryableError(t *testing.T) {
	var syntaxErr *json.SyntaxError
	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})
	require.ErrorAs(t, jsonErr, &syntaxErr)

	tests := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"domain retryable", fmt.Errorf("wrap: %w", domainErr{retry: true}), true, "domain_retryable"},
		{"domain rejected", domainErr{}, false, "domain_rejected"},
		{"json", jsonErr, false, "json_decode_error"},
		{"no rows", pgx.ErrNoRows, false, "not_found"},
		{"duplicate", errors.New("UNIQUE constraint failed"), false, "duplicate_key"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"connection", errors.New("connection refused"), true, "db_connection_error"},
		{"unknown", errors.New("mystery"), false, "unknown_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, kind := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "dedup:order.placed:evt-1", DedupKey("order.placed", "evt-1"))
}
