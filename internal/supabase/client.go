// Package supabase is the typed Data Access Client for the hosted backend:
// PostgREST tables, GoTrue auth and object storage, all over HTTPS.
//
// Every call returns a payload or a *Error; remote-side failures never panic.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Observer receives one callback per remote call. kind is "ok" on success.
type Observer func(op string, kind string, elapsed time.Duration)

// Config configures a Client.
type Config struct {
	URL        string // project endpoint, e.g. https://xyz.supabase.co
	AnonKey    string // public API key
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
}

// Client is a configured handle to the remote data service. It is safe for
// concurrent use; WithToken returns a copy bound to an end-user identity.
type Client struct {
	baseURL  string
	anonKey  string
	token    string
	http     *http.Client
	observer Observer
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, ErrMissingConfig
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("supabase: invalid endpoint URL %q", cfg.URL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		anonKey:  cfg.AnonKey,
		http:     hc,
		observer: cfg.Observer,
	}, nil
}

// WithToken returns a copy of c that authenticates as the holder of accessToken,
// so row-level policies are evaluated for that identity.
func (c *Client) WithToken(accessToken string) *Client {
	cp := *c
	cp.token = accessToken
	return &cp
}

// Token returns the bound end-user access token, or "" for the anonymous client.
func (c *Client) Token() string { return c.token }

// BaseURL returns the configured endpoint without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Health checks that the REST surface answers with the configured key.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, request{op: "health", method: http.MethodGet, path: "/rest/v1/"})
	return err
}

// request describes one HTTP round trip to the remote service.
type request struct {
	op     string
	method string
	path   string
	table  string // set for table endpoints
	query  url.Values
	header http.Header
	body   io.Reader
	json   any // marshalled as the body when set
	bearer string
	out    any // decoded from a 2xx body when set
}

type response struct {
	status int
	header http.Header
}

func (c *Client) do(ctx context.Context, r request) (resp *response, err error) {
	start := time.Now()
	defer func() {
		if c.observer == nil {
			return
		}
		kind := "ok"
		if err != nil {
			kind = string(KindOf(err))
		}
		c.observer(r.op, kind, time.Since(start))
	}()

	body := r.body
	if r.json != nil {
		payload, mErr := json.Marshal(r.json)
		if mErr != nil {
			return nil, &Error{Op: r.op, Kind: KindValidation, Message: "encode request body", Err: mErr}
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, rErr := http.NewRequestWithContext(ctx, r.method, target, body)
	if rErr != nil {
		return nil, &Error{Op: r.op, Kind: KindRemote, Message: "build request", Err: rErr}
	}

	req.Header.Set("apikey", c.anonKey)
	bearer := r.bearer
	if bearer == "" {
		bearer = c.token
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if r.json != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	httpResp, hErr := c.http.Do(req)
	if hErr != nil {
		return nil, &Error{Op: r.op, Kind: KindNetwork, Message: "request failed", Err: hErr}
	}
	defer httpResp.Body.Close()

	data, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		return nil, &Error{Op: r.op, Kind: KindNetwork, Status: httpResp.StatusCode, Message: "read response", Err: readErr}
	}

	if httpResp.StatusCode >= 400 {
		e := parseErrorBody(r.op, httpResp.StatusCode, data)
		// A HEAD response carries no body, so an unknown table arrives as a
		// bare 404 instead of PGRST205.
		if r.method == http.MethodHead && r.table != "" && e.Status == http.StatusNotFound && e.Code == "" {
			e.Kind = KindSchemaMissing
			e.Message = "table " + r.table + " does not exist"
		}
		return nil, e
	}

	if r.out != nil && len(bytes.TrimSpace(data)) > 0 {
		if dErr := json.Unmarshal(data, r.out); dErr != nil {
			return nil, &Error{Op: r.op, Kind: KindRemote, Status: httpResp.StatusCode, Message: "decode response", Err: dErr}
		}
	}

	return &response{status: httpResp.StatusCode, header: httpResp.Header}, nil
}

// isTimeout reports whether err came from a deadline, locally or in transport.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// IsTimeout reports whether a network-kind error was caused by a timeout.
func IsTimeout(err error) bool {
	return IsKind(err, KindNetwork) && isTimeout(err)
}
