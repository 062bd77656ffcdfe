// Package fetch downloads object bytes over HTTP from signed, public or
// stored URLs.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher retrieves the body at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

type Client struct {
	http    *resty.Client
	maxSize int64
}

// New returns a client that gives up after timeout and refuses bodies over
// maxSize bytes.
func New(timeout time.Duration, maxSize int64) *Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: c, maxSize: maxSize}
}

func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, "", &StatusError{URL: url, Status: resp.StatusCode()}
	}
	body := resp.Body()
	if c.maxSize > 0 && int64(len(body)) > c.maxSize {
		return nil, "", fmt.Errorf("GET %s: body of %d bytes exceeds limit", url, len(body))
	}
	return body, resp.Header().Get("Content-Type"), nil
}
