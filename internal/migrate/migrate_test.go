package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingExecer struct {
	queries []string
	failOn  string
}

func (r *recordingExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	if r.failOn != "" && strings.Contains(query, r.failOn) {
		return nil, errors.New("permission denied for schema auth")
	}
	r.queries = append(r.queries, query)
	return nil, nil
}

func TestStepsAreGuarded(t *testing.T) {
	for _, s := range Steps() {
		sqlText := strings.ToUpper(s.SQL)
		switch {
		case strings.HasPrefix(sqlText, "CREATE TABLE"):
			assert.Contains(t, sqlText, "IF NOT EXISTS", s.Name)
		case strings.HasPrefix(sqlText, "CREATE FUNCTION"):
			t.Errorf("%s: functions must use CREATE OR REPLACE", s.Name)
		case strings.HasPrefix(sqlText, "CREATE TRIGGER"):
			// preceded by its DROP TRIGGER IF EXISTS step
		case strings.Contains(sqlText, "CREATE POLICY"):
			assert.Contains(t, sqlText, "DROP POLICY IF EXISTS", s.Name)
		case strings.Contains(sqlText, "CREATE TYPE"):
			assert.Contains(t, sqlText, "DUPLICATE_OBJECT", s.Name)
		}
	}
}

func TestStepsOrder(t *testing.T) {
	index := map[string]int{}
	for i, s := range Steps() {
		index[s.Name] = i
	}

	before := func(a, b string) {
		t.Helper()
		ia, ok := index[a]
		require.True(t, ok, a)
		ib, ok := index[b]
		require.True(t, ok, b)
		assert.Less(t, ia, ib, "%s should run before %s", a, b)
	}
	before("type user_role", "table profiles")
	before("table profiles", "table product_requests")
	before("table orders", "table order_items")
	before("table products", "table inventory")
	before("function handle_new_user", "trigger on_auth_user_created")
	before("drop trigger on_auth_user_created", "trigger on_auth_user_created")
	before("function is_admin", "policy products: Admins can manage products")
	before("rls profiles", "policy profiles: Users can view their own profile")
}

func TestEnumValuesFollowModels(t *testing.T) {
	script := Script()
	assert.Contains(t, script, "CREATE TYPE public.user_role AS ENUM ('admin', 'client')")
	assert.Contains(t, script, "'floor_tiles', 'ceramic_mugs', 'dinnerware', 'sanitary_wares', 'decorative', 'industrial'")
	assert.Contains(t, script, "CREATE TYPE public.request_status AS ENUM ('pending', 'reviewed', 'quoted', 'approved', 'rejected')")
}

func TestScript(t *testing.T) {
	script := Script()
	assert.Contains(t, script, `COALESCE(NEW.raw_user_meta_data->>'full_name', 'New User')`)
	assert.Contains(t, script, "SECURITY DEFINER")
	assert.Contains(t, script, "WHEN unique_violation THEN")
	assert.Contains(t, script, `DROP POLICY IF EXISTS "Users can view their own profile" ON public.profiles;`)
	assert.Contains(t, script, "ALTER TABLE public.inventory ENABLE ROW LEVEL SECURITY;")
	assert.Contains(t, script, "ON CONFLICT (id) DO NOTHING")
	assert.True(t, strings.HasSuffix(script, "AS status;\n"))
	assert.Equal(t, len(Steps()), strings.Count(script, "\n-- "))
}

func TestPolicySQL(t *testing.T) {
	p := Policy{Table: "t", Name: `Bob's "policy"`, Command: "INSERT", To: "anon", Check: "true"}
	assert.Equal(t,
		"DROP POLICY IF EXISTS \"Bob's \"\"policy\"\"\" ON public.t;\n"+
			"CREATE POLICY \"Bob's \"\"policy\"\"\" ON public.t FOR INSERT TO anon WITH CHECK (true)",
		p.sql())
}

func TestApply(t *testing.T) {
	db := &recordingExecer{}
	require.NoError(t, Apply(context.Background(), db, quiet))
	assert.Len(t, db.queries, len(Steps()))

	db = &recordingExecer{failOn: "CREATE TRIGGER"}
	err := Apply(context.Background(), db, quiet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"trigger on_auth_user_created"`)
	assert.Contains(t, err.Error(), "permission denied")
	for _, q := range db.queries {
		assert.NotContains(t, q, "ENABLE ROW LEVEL SECURITY", "steps after a failure must not run")
	}
}

func TestApplyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	db := &recordingExecer{}
	assert.ErrorIs(t, Apply(ctx, db, quiet), context.Canceled)
	assert.Empty(t, db.queries)
}

type fakeChecker struct {
	absent map[string]bool
	err    error
}

func (f fakeChecker) Exists(_ context.Context, _ string, args ...any) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, a := range args {
		if f.absent[a.(string)] {
			return false, nil
		}
	}
	return true, nil
}

func TestVerify(t *testing.T) {
	v, err := Verify(context.Background(), fakeChecker{})
	require.NoError(t, err)
	assert.True(t, v.OK())
	assert.Contains(t, v.Checked, "trigger on_auth_user_created")
	assert.Contains(t, v.Checked, "table inventory")

	v, err = Verify(context.Background(), fakeChecker{absent: map[string]bool{
		"on_auth_user_created": true,
		"public.profiles":      true,
	}})
	require.NoError(t, err)
	assert.False(t, v.OK())
	assert.ElementsMatch(t, []string{"table profiles", "trigger on_auth_user_created", "rls profiles"}, v.Missing)

	_, err = Verify(context.Background(), fakeChecker{err: errors.New("connection reset")})
	assert.ErrorContains(t, err, "connection reset")
}
