package supabase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StorageClient groups the object storage operations.
type StorageClient struct {
	c *Client
}

// Storage returns the object storage operations of c.
func (c *Client) Storage() *StorageClient { return &StorageClient{c: c} }

// Upload stores body at path inside bucket and returns the stored object key
// ("bucket/path"). Existing objects are not overwritten.
func (s *StorageClient) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) (string, error) {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	h.Set("x-upsert", "false")

	var out struct {
		Key string `json:"Key"`
	}
	_, err := s.c.do(ctx, request{
		op:     "storage upload " + bucket,
		method: http.MethodPost,
		path:   "/storage/v1/object/" + escapePath(bucket) + "/" + escapePath(path),
		header: h,
		body:   body,
		out:    &out,
	})
	if err != nil {
		return "", err
	}
	if out.Key == "" {
		out.Key = bucket + "/" + path
	}
	return out.Key, nil
}

// PublicURL derives the public address of an object in a public bucket.
// It does not contact the server.
func (s *StorageClient) PublicURL(bucket, path string) string {
	return s.c.baseURL + "/storage/v1/object/public/" + escapePath(bucket) + "/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
