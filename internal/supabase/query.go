package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Query is a table-scoped request under construction. Build it with From,
// chain filters, then finish with Execute, Single or Count.
type Query struct {
	client  *Client
	table   string
	method  string
	columns string
	params  url.Values
	body    any
	op      string
}

// From starts a read query on table.
func (c *Client) From(table string) *Query {
	return &Query{
		client:  c,
		table:   table,
		method:  http.MethodGet,
		columns: "*",
		params:  url.Values{},
		op:      "select " + table,
	}
}

// Select sets the column list, including embedded relations
// such as "*, profiles(full_name, email)".
func (q *Query) Select(columns string) *Query {
	q.columns = strings.Join(strings.Fields(columns), "")
	return q
}

// Insert turns the query into an insert of rows (a struct, map or slice).
func (q *Query) Insert(rows any) *Query {
	q.method = http.MethodPost
	q.body = rows
	q.op = "insert " + q.table
	return q
}

// Update turns the query into a partial update; only the keys present in
// patch are written. Combine with filters to target rows.
func (q *Query) Update(patch any) *Query {
	q.method = http.MethodPatch
	q.body = patch
	q.op = "update " + q.table
	return q
}

func (q *Query) filter(column, operator string, value any) *Query {
	q.params.Add(column, operator+"."+formatValue(value))
	return q
}

func (q *Query) Eq(column string, value any) *Query  { return q.filter(column, "eq", value) }
func (q *Query) Neq(column string, value any) *Query { return q.filter(column, "neq", value) }
func (q *Query) Lt(column string, value any) *Query  { return q.filter(column, "lt", value) }
func (q *Query) Gt(column string, value any) *Query  { return q.filter(column, "gt", value) }

// Is filters on null or boolean identity: Is("deleted_at", nil), Is("is_read", false).
func (q *Query) Is(column string, value any) *Query { return q.filter(column, "is", value) }

// Order sorts by column. Repeated calls add secondary keys.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	if existing := q.params.Get("order"); existing != "" {
		q.params.Set("order", existing+","+column+"."+dir)
	} else {
		q.params.Set("order", column+"."+dir)
	}
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Execute runs the query and decodes the JSON array result into dst
// (usually a pointer to a slice). dst may be nil for mutations whose
// result is not needed.
func (q *Query) Execute(ctx context.Context, dst any) error {
	_, err := q.client.do(ctx, q.build(dst, nil))
	return err
}

// Single runs the query expecting exactly one row and decodes it into dst.
// Zero rows yields a KindNotFound error.
func (q *Query) Single(ctx context.Context, dst any) error {
	h := http.Header{}
	h.Set("Accept", "application/vnd.pgrst.object+json")
	_, err := q.client.do(ctx, q.build(dst, h))
	return err
}

// Count returns the exact number of rows matching the filters without
// transferring them.
func (q *Query) Count(ctx context.Context) (int, error) {
	h := http.Header{}
	h.Set("Prefer", "count=exact")
	r := q.build(nil, h)
	r.method = http.MethodHead
	r.op = "count " + q.table

	resp, err := q.client.do(ctx, r)
	if err != nil {
		return 0, err
	}
	n, ok := parseContentRange(resp.header.Get("Content-Range"))
	if !ok {
		return 0, &Error{Op: r.op, Kind: KindRemote, Status: resp.status, Message: "missing or malformed Content-Range header"}
	}
	return n, nil
}

func (q *Query) build(dst any, header http.Header) request {
	if header == nil {
		header = http.Header{}
	}
	params := url.Values{}
	for k, vs := range q.params {
		params[k] = append([]string(nil), vs...)
	}

	r := request{
		op:     q.op,
		method: q.method,
		path:   "/rest/v1/" + q.table,
		table:  q.table,
		query:  params,
		header: header,
		out:    dst,
	}

	switch q.method {
	case http.MethodGet:
		params.Set("select", q.columns)
	case http.MethodPost, http.MethodPatch:
		r.json = q.body
		prefer := "return=minimal"
		if dst != nil {
			prefer = "return=representation"
			params.Set("select", q.columns)
		}
		if existing := header.Get("Prefer"); existing != "" {
			prefer = existing + "," + prefer
		}
		header.Set("Prefer", prefer)
	}
	return r
}

// parseContentRange reads the total from "0-24/3573" or "*/0".
func parseContentRange(v string) (int, bool) {
	idx := strings.LastIndex(v, "/")
	if idx < 0 || idx == len(v)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(v[idx+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
