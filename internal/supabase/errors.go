package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the failure category of a remote call. Callers branch on Kind,
// never on the wording of the remote message.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindUnauthenticated Kind = "unauthenticated"
	KindPermission      Kind = "permission"
	KindValidation      Kind = "validation"
	KindRateLimited     Kind = "rate_limited"
	KindSchemaMissing   Kind = "schema_missing"
	KindNotFound        Kind = "not_found"
	KindRemote          Kind = "remote"
)

// ErrMissingConfig is returned by New when the endpoint or public key is absent.
var ErrMissingConfig = errors.New("supabase: endpoint URL and public API key are required")

// Error is the structured failure returned by every Client operation.
type Error struct {
	Op      string // e.g. "select profiles", "auth signup"
	Kind    Kind
	Status  int    // HTTP status, 0 for transport failures
	Code    string // PostgREST SQLSTATE / PGRST code, or GoTrue error_code
	Message string // remote message, kept verbatim
	Err     error  // underlying transport error, if any
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("supabase %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Code != "":
		return fmt.Sprintf("supabase %s: %s (%s, status %d)", e.Op, e.Message, e.Code, e.Status)
	default:
		return fmt.Sprintf("supabase %s: %s (status %d)", e.Op, e.Message, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the category of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// duplicateCodes are validation failures caused by a record that already exists.
var duplicateCodes = map[string]bool{
	"23505":               true,
	"user_already_exists": true,
	"email_exists":        true,
}

// IsDuplicate reports whether err is a unique-constraint style rejection,
// such as signing up twice with the same email.
func IsDuplicate(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if duplicateCodes[e.Code] {
		return true
	}
	// Older auth servers answer 422 without an error_code.
	return e.Kind == KindValidation && e.Code == "" && strings.Contains(e.Message, "already registered")
}

// NoRows builds the error returned when a mutation matched nothing, which is
// also what a row-level policy rejection looks like from the outside.
func NoRows(op string) *Error {
	return &Error{Op: op, Kind: KindNotFound, Status: http.StatusNotFound, Message: "no matching row, or the row is not visible to this identity"}
}

// errorBody covers the PostgREST, GoTrue and Storage error envelopes.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func parseErrorBody(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		var code string
		if json.Unmarshal(eb.Code, &code) == nil {
			e.Code = code
		}
		if eb.ErrorCode != "" {
			e.Code = eb.ErrorCode
		}
		e.Message = firstNonEmpty(eb.Message, eb.Msg, eb.ErrorDescription, eb.Error)
		if e.Code == "" && eb.Error != "" && eb.ErrorDescription != "" {
			// OAuth-style envelope: {"error":"invalid_grant","error_description":"..."}
			e.Code = eb.Error
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	e.Kind = classify(status, e.Code, e.Message)
	return e
}

var codeKinds = map[string]Kind{
	// PostgREST / Postgres
	"42P01":    KindSchemaMissing, // undefined_table
	"42883":    KindSchemaMissing, // undefined_function
	"42703":    KindSchemaMissing, // undefined_column
	"PGRST202": KindSchemaMissing,
	"PGRST204": KindSchemaMissing,
	"PGRST205": KindSchemaMissing,
	"23505":    KindValidation,
	"23502":    KindValidation,
	"23503":    KindValidation,
	"23514":    KindValidation,
	"22P02":    KindValidation,
	"PGRST102": KindValidation,
	"42501":    KindPermission,
	"PGRST301": KindUnauthenticated,
	"PGRST302": KindUnauthenticated,
	"PGRST116": KindNotFound,

	// GoTrue
	"user_already_exists":        KindValidation,
	"email_exists":               KindValidation,
	"weak_password":              KindValidation,
	"validation_failed":          KindValidation,
	"email_address_invalid":      KindValidation,
	"signup_disabled":            KindPermission,
	"over_email_send_rate_limit": KindRateLimited,
	"over_request_rate_limit":    KindRateLimited,
	"over_sms_send_rate_limit":   KindRateLimited,
	"invalid_credentials":        KindUnauthenticated,
	"invalid_grant":              KindUnauthenticated,
	"bad_jwt":                    KindUnauthenticated,
	"no_authorization":           KindUnauthenticated,
	"session_not_found":          KindUnauthenticated,
	"refresh_token_not_found":    KindUnauthenticated,
	"email_not_confirmed":        KindUnauthenticated,
	"user_not_found":             KindNotFound,

	// Storage
	"not_found": KindNotFound,
	"Duplicate": KindValidation,
}

// classify is the one place remote failures are turned into a Kind.
func classify(status int, code, message string) Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}

	// The auth server reports a failed profile trigger as a generic 500
	// ("Database error saving new user"); there is no finer code for it.
	if status >= 500 && strings.Contains(message, "Database error") {
		return KindSchemaMissing
	}

	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusForbidden:
		return KindPermission
	case status == http.StatusNotFound, status == http.StatusNotAcceptable:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindRemote
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
