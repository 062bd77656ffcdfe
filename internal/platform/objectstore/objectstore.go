// Package objectstore keeps patient file bytes in an S3-compatible bucket.
// The row in patient_files is only an index; the two can diverge and callers
// are expected to cope with a missing object.
package objectstore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrUnavailable = errors.New("object storage unavailable")
)

// Store is the subset of bucket operations the file service needs.
type Store interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited GET URL for key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PublicURL is the anonymous URL, valid only for public buckets.
	PublicURL(key string) string
	// ObjectURL is the raw path-style endpoint address of key.
	ObjectURL(key string) string
	Ping(ctx context.Context) error
}

// escapeKey escapes each path segment of key, keeping the slashes.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}
