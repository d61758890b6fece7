package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/session"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(err error) (int, map[string]any) {
	h := &Handlers{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h.respondError(c, err)

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid", fmt.Errorf("%w: bad status", models.ErrInvalid), http.StatusBadRequest},
		{"not authenticated", session.ErrNotAuthenticated, http.StatusUnauthorized},
		{"duplicate", &supabase.Error{Op: "auth signup", Kind: supabase.KindValidation, Code: "user_already_exists"}, http.StatusConflict},
		{"validation", &supabase.Error{Op: "insert products", Kind: supabase.KindValidation, Code: "23514", Message: `new row violates check constraint "products_price_check"`}, http.StatusBadRequest},
		{"rate limited", &supabase.Error{Op: "auth signup", Kind: supabase.KindRateLimited}, http.StatusTooManyRequests},
		{"schema missing", &supabase.Error{Op: "select profiles", Kind: supabase.KindSchemaMissing, Code: "PGRST205"}, http.StatusServiceUnavailable},
		{"unauthenticated", &supabase.Error{Op: "auth token", Kind: supabase.KindUnauthenticated}, http.StatusUnauthorized},
		{"permission", &supabase.Error{Op: "update orders", Kind: supabase.KindPermission, Code: "42501"}, http.StatusForbidden},
		{"not found", supabase.NoRows("update orders"), http.StatusNotFound},
		{"network", &supabase.Error{Op: "select products", Kind: supabase.KindNetwork, Err: errors.New("dial tcp: connection refused")}, http.StatusBadGateway},
		{"remote", &supabase.Error{Op: "select products", Kind: supabase.KindRemote, Status: 500}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := respond(tt.err)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRespondErrorHidesRemoteDetail(t *testing.T) {
	_, body := respond(&supabase.Error{Op: "insert products", Kind: supabase.KindValidation, Code: "23514", Message: `new row violates check constraint "products_price_check"`})
	assert.NotContains(t, body["error"], "products_price_check")

	_, body = respond(&supabase.Error{Op: "auth signup", Kind: supabase.KindValidation, Code: "weak_password", Message: "Password should be at least 6 characters."})
	assert.Equal(t, "Password should be at least 6 characters.", body["error"])

	_, body = respond(&supabase.Error{Op: "auth signup", Kind: supabase.KindSchemaMissing, Message: "Database error saving new user"})
	assert.Equal(t, "schema_missing", body["kind"])
	assert.Contains(t, body["remediation"], "handle_new_user")
}

func TestObjectPath(t *testing.T) {
	pattern := regexp.MustCompile(`^products/[a-z0-9-]+-[0-9a-f]{8}\.(jpg|jpeg|png|webp|gif)$`)

	for _, name := range []string{"Blue Mug.PNG", "../../etc/passwd.jpg", "   .webp", "Ürün fotoğrafı.jpeg"} {
		p, ok := objectPath(name)
		require.True(t, ok, name)
		assert.Regexp(t, pattern, p, name)
	}

	p, _ := objectPath("   .webp")
	assert.Contains(t, p, "products/image-")

	for _, name := range []string{"invoice.pdf", "noext", "script.svg"} {
		_, ok := objectPath(name)
		assert.False(t, ok, name)
	}

	a, _ := objectPath("mug.jpg")
	b, _ := objectPath("mug.jpg")
	assert.NotEqual(t, a, b)
}

func uploadRecorder(t *testing.T, h *Handlers, filename string, size int) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte{0xff}, size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/admin/uploads", &body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	h.UploadProductImage(c)
	return w
}

func TestUploadTooLarge(t *testing.T) {
	h := &Handlers{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), MaxUploadBytes: 1 << 20}

	// Just over the limit: the form parses and the size check rejects it.
	w := uploadRecorder(t, h, "mug.jpg", 1<<20+512<<10)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	// Far over the limit: the body reader gives up before the form parses.
	w = uploadRecorder(t, h, "mug.jpg", 3<<20)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "larger than 1 MB")
}
