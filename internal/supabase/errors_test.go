package supabase

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseErrorBody(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantCode string
		wantMsg  string
	}{
		{
			name:     "missing table",
			status:   http.StatusNotFound,
			body:     `{"code":"PGRST205","message":"Could not find the table 'public.profiles' in the schema cache"}`,
			wantKind: KindSchemaMissing,
			wantCode: "PGRST205",
		},
		{
			name:     "undefined table sqlstate",
			status:   http.StatusBadRequest,
			body:     `{"code":"42P01","message":"relation \"public.orders\" does not exist"}`,
			wantKind: KindSchemaMissing,
			wantCode: "42P01",
		},
		{
			name:     "single object with zero rows",
			status:   http.StatusNotAcceptable,
			body:     `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`,
			wantKind: KindNotFound,
			wantCode: "PGRST116",
		},
		{
			name:     "policy rejection",
			status:   http.StatusForbidden,
			body:     `{"code":"42501","message":"new row violates row-level security policy"}`,
			wantKind: KindPermission,
			wantCode: "42501",
		},
		{
			name:     "duplicate signup",
			status:   http.StatusUnprocessableEntity,
			body:     `{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`,
			wantKind: KindValidation,
			wantCode: "user_already_exists",
			wantMsg:  "User already registered",
		},
		{
			name:     "trigger failure on signup",
			status:   http.StatusInternalServerError,
			body:     `{"code":500,"error_code":"unexpected_failure","msg":"Database error saving new user"}`,
			wantKind: KindSchemaMissing,
			wantCode: "unexpected_failure",
		},
		{
			name:     "email rate limit",
			status:   http.StatusTooManyRequests,
			body:     `{"code":429,"error_code":"over_email_send_rate_limit","msg":"email rate limit exceeded"}`,
			wantKind: KindRateLimited,
			wantCode: "over_email_send_rate_limit",
		},
		{
			name:     "oauth style envelope",
			status:   http.StatusBadRequest,
			body:     `{"error":"invalid_grant","error_description":"Invalid login credentials"}`,
			wantKind: KindUnauthenticated,
			wantCode: "invalid_grant",
			wantMsg:  "Invalid login credentials",
		},
		{
			name:     "plain text body",
			status:   http.StatusBadGateway,
			body:     "upstream unavailable",
			wantKind: KindRemote,
			wantMsg:  "upstream unavailable",
		},
		{
			name:     "empty body",
			status:   http.StatusServiceUnavailable,
			body:     "",
			wantKind: KindRemote,
			wantMsg:  "Service Unavailable",
		},
		{
			name:     "expired jwt by status only",
			status:   http.StatusUnauthorized,
			body:     `{"message":"JWT expired"}`,
			wantKind: KindUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseErrorBody("op", tt.status, []byte(tt.body))
			assert.Equal(t, tt.wantKind, err.Kind)
			assert.Equal(t, tt.status, err.Status)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, err.Code)
			}
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Message)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := &Error{Op: "select products", Kind: KindPermission, Status: 403, Message: "denied"}
	wrapped := fmt.Errorf("loading catalog: %w", base)

	assert.Equal(t, KindPermission, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindPermission))
	assert.False(t, IsKind(nil, KindPermission))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, IsDuplicate(&Error{Kind: KindValidation, Code: "23505"}))
	assert.True(t, IsDuplicate(&Error{Kind: KindValidation, Code: "email_exists"}))
	assert.True(t, IsDuplicate(&Error{Kind: KindValidation, Message: "User already registered"}))
	assert.False(t, IsDuplicate(&Error{Kind: KindValidation, Code: "weak_password", Message: "too short"}))
	assert.False(t, IsDuplicate(errors.New("already registered")))
}

func TestNoRows(t *testing.T) {
	err := NoRows("update orders")
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Contains(t, err.Error(), "update orders")
}

func TestParseContentRange(t *testing.T) {
	n, ok := parseContentRange("0-24/3573")
	assert.True(t, ok)
	assert.Equal(t, 3573, n)

	n, ok = parseContentRange("*/0")
	assert.True(t, ok)
	assert.Equal(t, 0, n)

	_, ok = parseContentRange("0-24/*")
	assert.False(t, ok)
	_, ok = parseContentRange("")
	assert.False(t, ok)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, "false", formatValue(false))
	assert.Equal(t, "10", formatValue(10))
	assert.Equal(t, "pending", formatValue("pending"))
}
