// Package supabasetest runs an in-memory stand-in for the hosted backend
// (REST tables, auth, storage) on an httptest server, for use in tests.
//
// It understands the subset of the wire protocol the application uses:
// eq/neq/lt/lte/gt/gte/is filters, order, limit, exact counts, single-object
// reads, inserts and partial updates. Embedded relations in select lists are
// ignored; seed nested data directly into rows when a test needs it.
package supabasetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AnonKey is the public key the fake server accepts.
	AnonKey = "test-anon-key"
	// JWTSecret signs the access tokens the fake server issues (HS256).
	JWTSecret = "supabasetest-jwt-secret-0123456789abcdef"
)

// Tables lists the tables that exist on a fresh server.
var Tables = []string{
	"profiles", "products", "product_requests", "orders",
	"order_items", "contact_messages", "inventory",
}

// Row is one record as the server stores it (decoded JSON).
type Row = map[string]any

// Failure is a canned error response.
type Failure struct {
	Status int
	Body   string
}

// Patch records one PATCH request body.
type Patch struct {
	Table  string
	Filter url.Values
	Body   Row
}

type user struct {
	id       string
	email    string
	password string
	metadata map[string]any
	created  time.Time
}

// Server is the fake backend. Exported fields are knobs; set them before
// issuing requests.
type Server struct {
	*httptest.Server

	// SignUpFailure, when set, is returned by every sign-up call.
	SignUpFailure *Failure
	// ProfileTrigger mirrors the server-side trigger that inserts a profile
	// row for each new identity. On by default.
	ProfileTrigger bool
	// IgnoreFilters makes reads return every row, as a table without
	// row-level policies would to a careless query.
	IgnoreFilters bool

	mu       sync.Mutex
	tables   map[string][]Row
	users    map[string]*user // by email
	sessions map[string]string
	refresh  map[string]string
	objects  map[string][]byte
	patches  []Patch
}

// NewServer starts a fake backend that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	s := &Server{
		ProfileTrigger: true,
		tables:         map[string][]Row{},
		users:          map[string]*user{},
		sessions:       map[string]string{},
		refresh:        map[string]string{},
		objects:        map[string][]byte{},
	}
	for _, name := range Tables {
		s.tables[name] = nil
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// --- Test helpers ---

// Seed inserts rows into table as-is (after a JSON round trip so numbers
// are stored the way a decoded response would carry them).
func (s *Server) Seed(table string, rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], normalize(r))
	}
}

// Rows returns a copy of the rows currently stored in table.
func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, copyRow(r))
	}
	return out
}

// DropTable removes table, so queries against it fail as schema-missing.
func (s *Server) DropTable(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, table)
}

// Patches returns every PATCH body received, in order.
func (s *Server) Patches() []Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Patch(nil), s.patches...)
}

// Object returns the bytes stored under "bucket/path".
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

// AddUser registers a confirmed identity with a profile row of the given
// role and returns its id.
func (s *Server) AddUser(email, password, fullName, role string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &user{
		id:       uuid.NewString(),
		email:    email,
		password: password,
		metadata: map[string]any{"full_name": fullName},
		created:  time.Now().UTC(),
	}
	s.users[email] = u
	s.tables["profiles"] = append(s.tables["profiles"], s.profileRow(u, role))
	return u.id
}

// Login issues a session for an existing user and returns the access token.
func (s *Server) Login(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		panic("supabasetest: unknown user " + email)
	}
	access, _ := s.issue(u)
	return access
}

// --- Routing ---

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != AnonKey {
		writeJSON(w, http.StatusUnauthorized, Row{"message": "Invalid API key"})
		return
	}

	switch {
	case r.URL.Path == "/rest/v1/" || r.URL.Path == "/rest/v1":
		writeJSON(w, http.StatusOK, Row{"swagger": "2.0"})
	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		s.serveREST(w, r, strings.TrimPrefix(r.URL.Path, "/rest/v1/"))
	case strings.HasPrefix(r.URL.Path, "/auth/v1/"):
		s.serveAuth(w, r, strings.TrimPrefix(r.URL.Path, "/auth/v1/"))
	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/"):
		s.serveStorage(w, r, strings.TrimPrefix(r.URL.Path, "/storage/v1/object/"))
	default:
		writeJSON(w, http.StatusNotFound, Row{"message": "not found"})
	}
}

// --- REST ---

func (s *Server) serveREST(w http.ResponseWriter, r *http.Request, table string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, Row{"code": "PGRST301", "message": "JWT expired or invalid"})
		return
	}

	rows, ok := s.tables[table]
	if !ok {
		writeJSON(w, http.StatusNotFound, Row{
			"code":    "PGRST205",
			"message": fmt.Sprintf("Could not find the table 'public.%s' in the schema cache", table),
		})
		return
	}

	params := r.URL.Query()

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		matched := s.filter(rows, params)
		sortRows(matched, params.Get("order"))
		if lim, err := strconv.Atoi(params.Get("limit")); err == nil && lim >= 0 && lim < len(matched) {
			matched = matched[:lim]
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", len(matched)))
			w.WriteHeader(http.StatusOK)
			return
		}
		if strings.Contains(r.Header.Get("Accept"), "vnd.pgrst.object") {
			if len(matched) != 1 {
				writeJSON(w, http.StatusNotAcceptable, Row{
					"code":    "PGRST116",
					"message": "JSON object requested, multiple (or no) rows returned",
					"details": fmt.Sprintf("The result contains %d rows", len(matched)),
				})
				return
			}
			writeJSON(w, http.StatusOK, matched[0])
			return
		}
		writeJSON(w, http.StatusOK, matched)

	case http.MethodPost:
		var incoming []Row
		if err := decodeRows(r.Body, &incoming); err != nil {
			writeJSON(w, http.StatusBadRequest, Row{"code": "PGRST102", "message": "Empty or invalid json"})
			return
		}
		created := make([]Row, 0, len(incoming))
		for _, in := range incoming {
			row := normalize(in)
			if table == "profiles" && s.emailTaken(row["email"]) {
				writeJSON(w, http.StatusConflict, Row{"code": "23505", "message": `duplicate key value violates unique constraint "profiles_email_key"`})
				return
			}
			applyDefaults(table, row)
			created = append(created, row)
		}
		s.tables[table] = append(s.tables[table], created...)
		s.writeMutation(w, r, http.StatusCreated, created)

	case http.MethodPatch:
		var patch Row
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, Row{"code": "PGRST102", "message": "Empty or invalid json"})
			return
		}
		patch = normalize(patch)
		s.patches = append(s.patches, Patch{Table: table, Filter: params, Body: copyRow(patch)})

		var updated []Row
		for _, row := range rows {
			if !matches(row, params) {
				continue
			}
			for k, v := range patch {
				row[k] = v
			}
			updated = append(updated, copyRow(row))
		}
		s.writeMutation(w, r, http.StatusOK, updated)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, Row{"message": "method not allowed"})
	}
}

func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, status int, rows []Row) {
	if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		if rows == nil {
			rows = []Row{}
		}
		writeJSON(w, status, rows)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) filter(rows []Row, params url.Values) []Row {
	out := []Row{}
	for _, row := range rows {
		if s.IgnoreFilters || matches(row, params) {
			out = append(out, copyRow(row))
		}
	}
	return out
}

func (s *Server) authorized(r *http.Request) bool {
	token := bearer(r)
	if token == AnonKey {
		return true
	}
	_, ok := s.sessions[token]
	return ok
}

func (s *Server) emailTaken(email any) bool {
	for _, row := range s.tables["profiles"] {
		if row["email"] == email {
			return true
		}
	}
	return false
}

// --- Auth ---

func (s *Server) serveAuth(w http.ResponseWriter, r *http.Request, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case path == "signup" && r.Method == http.MethodPost:
		s.signUp(w, r)
	case path == "token" && r.Method == http.MethodPost:
		s.token(w, r)
	case path == "user" && r.Method == http.MethodGet:
		u := s.sessionUser(bearer(r))
		if u == nil {
			writeJSON(w, http.StatusUnauthorized, Row{"code": 401, "error_code": "bad_jwt", "msg": "invalid JWT: unable to parse or verify signature"})
			return
		}
		writeJSON(w, http.StatusOK, userJSON(u))
	case path == "logout" && r.Method == http.MethodPost:
		token := bearer(r)
		if _, ok := s.sessions[token]; !ok {
			writeJSON(w, http.StatusUnauthorized, Row{"code": 401, "error_code": "session_not_found", "msg": "Session not found"})
			return
		}
		delete(s.sessions, token)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusNotFound, Row{"code": 404, "msg": "not found"})
	}
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	if f := s.SignUpFailure; f != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.Status)
		_, _ = io.WriteString(w, f.Body)
		return
	}

	var in struct {
		Email    string         `json:"email"`
		Password string         `json:"password"`
		Data     map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		writeJSON(w, http.StatusBadRequest, Row{"code": 400, "error_code": "validation_failed", "msg": "Signup requires a valid email"})
		return
	}
	if _, exists := s.users[in.Email]; exists {
		writeJSON(w, http.StatusUnprocessableEntity, Row{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"})
		return
	}
	if len(in.Password) < 6 {
		writeJSON(w, http.StatusUnprocessableEntity, Row{"code": 422, "error_code": "weak_password", "msg": "Password should be at least 6 characters."})
		return
	}

	u := &user{id: uuid.NewString(), email: in.Email, password: in.Password, metadata: in.Data, created: time.Now().UTC()}
	if s.ProfileTrigger {
		if _, ok := s.tables["profiles"]; !ok {
			writeJSON(w, http.StatusInternalServerError, Row{"code": 500, "error_code": "unexpected_failure", "msg": "Database error saving new user"})
			return
		}
		s.tables["profiles"] = append(s.tables["profiles"], s.profileRow(u, "client"))
	}
	s.users[in.Email] = u
	writeJSON(w, http.StatusOK, userJSON(u))
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	var u *user
	switch r.URL.Query().Get("grant_type") {
	case "password":
		cand, ok := s.users[in.Email]
		if !ok || cand.password != in.Password {
			writeJSON(w, http.StatusBadRequest, Row{"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials"})
			return
		}
		u = cand
	case "refresh_token":
		id, ok := s.refresh[in.RefreshToken]
		if !ok {
			writeJSON(w, http.StatusBadRequest, Row{"code": 400, "error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token: Refresh Token Not Found"})
			return
		}
		delete(s.refresh, in.RefreshToken)
		u = s.userByID(id)
	default:
		writeJSON(w, http.StatusBadRequest, Row{"code": 400, "error_code": "validation_failed", "msg": "unsupported grant_type"})
		return
	}

	access, refresh := s.issue(u)
	writeJSON(w, http.StatusOK, Row{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    time.Now().Add(time.Hour).Unix(),
		"user":          userJSON(u),
	})
}

func (s *Server) issue(u *user) (access, refresh string) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        u.id,
		"email":      u.email,
		"role":       "authenticated",
		"session_id": uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(time.Hour).Unix(),
	})
	access, err := tok.SignedString([]byte(JWTSecret))
	if err != nil {
		panic(err)
	}
	refresh = uuid.NewString()
	s.sessions[access] = u.id
	s.refresh[refresh] = u.id
	return access, refresh
}

func (s *Server) sessionUser(token string) *user {
	id, ok := s.sessions[token]
	if !ok {
		return nil
	}
	return s.userByID(id)
}

func (s *Server) userByID(id string) *user {
	for _, u := range s.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (s *Server) profileRow(u *user, role string) Row {
	name := "New User"
	if n, ok := u.metadata["full_name"].(string); ok && n != "" {
		name = n
	}
	ts := u.created.Format(time.RFC3339Nano)
	return Row{
		"id":         u.id,
		"email":      u.email,
		"full_name":  name,
		"role":       role,
		"created_at": ts,
		"updated_at": ts,
	}
}

// --- Storage ---

func (s *Server) serveStorage(w http.ResponseWriter, r *http.Request, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Row{"message": "method not allowed"})
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, Row{"statusCode": "403", "error": "Unauthorized", "message": "invalid signature"})
		return
	}
	key, _ = url.PathUnescape(key)
	if _, exists := s.objects[key]; exists {
		writeJSON(w, http.StatusBadRequest, Row{"statusCode": "409", "error": "Duplicate", "message": "The resource already exists"})
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Row{"message": err.Error()})
		return
	}
	s.objects[key] = data
	writeJSON(w, http.StatusOK, Row{"Key": key, "Id": uuid.NewString()})
}

// --- Helpers ---

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}

func userJSON(u *user) Row {
	return Row{
		"id":            u.id,
		"email":         u.email,
		"role":          "authenticated",
		"user_metadata": u.metadata,
		"created_at":    u.created.Format(time.RFC3339Nano),
	}
}

func applyDefaults(table string, row Row) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	setDefault := func(k string, v any) {
		if _, ok := row[k]; !ok {
			row[k] = v
		}
	}
	setDefault("id", uuid.NewString())
	switch table {
	case "contact_messages":
		setDefault("is_read", false)
		setDefault("created_at", now)
	case "inventory":
		setDefault("last_updated", now)
	case "order_items":
		setDefault("created_at", now)
	default:
		setDefault("created_at", now)
		setDefault("updated_at", now)
	}
	switch table {
	case "product_requests", "orders":
		setDefault("status", "pending")
	case "products":
		setDefault("is_active", true)
		setDefault("specifications", map[string]any{})
	}
}

func decodeRows(body io.Reader, out *[]Row) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, out)
	}
	var one Row
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*out = []Row{one}
	return nil
}

func matches(row Row, params url.Values) bool {
	for col, vals := range params {
		if col == "select" || col == "order" || col == "limit" {
			continue
		}
		for _, v := range vals {
			op, arg, _ := strings.Cut(v, ".")
			if !compare(row[col], op, arg) {
				return false
			}
		}
	}
	return true
}

func compare(val any, op, arg string) bool {
	switch op {
	case "eq":
		return str(val) == arg
	case "neq":
		return str(val) != arg
	case "is":
		if arg == "null" {
			return val == nil
		}
		return str(val) == arg
	case "lt", "lte", "gt", "gte":
		var c int
		a, okA := val.(float64)
		b, errB := strconv.ParseFloat(arg, 64)
		if okA && errB == nil {
			switch {
			case a < b:
				c = -1
			case a > b:
				c = 1
			}
		} else {
			c = strings.Compare(str(val), arg)
		}
		switch op {
		case "lt":
			return c < 0
		case "lte":
			return c <= 0
		case "gt":
			return c > 0
		default:
			return c >= 0
		}
	}
	return false
}

func sortRows(rows []Row, order string) {
	if order == "" {
		return
	}
	keys := strings.Split(order, ",")
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			col, dir, _ := strings.Cut(k, ".")
			a, b := rows[i][col], rows[j][col]
			var c int
			af, okA := a.(float64)
			bf, okB := b.(float64)
			if okA && okB {
				switch {
				case af < bf:
					c = -1
				case af > bf:
					c = 1
				}
			} else {
				c = strings.Compare(str(a), str(b))
			}
			if c == 0 {
				continue
			}
			if dir == "desc" {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func normalize(r Row) Row {
	data, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	var out Row
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

func copyRow(r Row) Row {
	return normalize(r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
