package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("patient-files")

	require.NoError(t, m.Upload(ctx, "p1/1_a.txt", "text/plain", []byte("hello")))
	data, ct, err := m.Download(ctx, "p1/1_a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", ct)

	require.NoError(t, m.Delete(ctx, "p1/1_a.txt"))
	_, _, err = m.Download(ctx, "p1/1_a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "p1/1_a.txt"), ErrNotFound)
}

func TestMemoryStore_FailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("b")
	m.FailUpload = true
	assert.ErrorIs(t, m.Upload(ctx, "k", "text/plain", nil), ErrUnavailable)
	assert.False(t, m.Has("k"))

	m.FailUpload = false
	require.NoError(t, m.Upload(ctx, "k", "text/plain", []byte("x")))
	m.FailDelete = true
	assert.ErrorIs(t, m.Delete(ctx, "k"), ErrUnavailable)
	assert.True(t, m.Has("k"))
}

func TestMemoryStore_HandlerServesURLs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("b")
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	m.BaseURL = srv.URL

	require.NoError(t, m.Upload(ctx, "p1/9_x-ray.png", "image/png", []byte{0x89, 'P', 'N', 'G'}))

	signed, err := m.SignedURL(ctx, "p1/9_x-ray.png", time.Minute)
	require.NoError(t, err)

	for _, u := range []string{signed, m.PublicURL("p1/9_x-ray.png"), m.ObjectURL("p1/9_x-ray.png")} {
		resp, err := http.Get(u)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, u)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.Len(t, body, 4)
	}

	resp, err := http.Get(m.PublicURL("p1/missing"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestS3Store_URLs(t *testing.T) {
	s := &S3Store{cfg: S3Config{Bucket: "files", Region: "eu-west-1"}}
	assert.Equal(t, "https://s3.eu-west-1.amazonaws.com/files/p1/1_a%20b.txt", s.ObjectURL("p1/1_a b.txt"))
	assert.Equal(t, s.ObjectURL("p1/x"), s.PublicURL("p1/x"))

	s.cfg.Endpoint = "http://minio:9000/"
	s.cfg.PublicBaseURL = "https://cdn.example.com/files"
	assert.Equal(t, "http://minio:9000/files/p1/x", s.ObjectURL("p1/x"))
	assert.Equal(t, "https://cdn.example.com/files/p1/x", s.PublicURL("p1/x"))
}
