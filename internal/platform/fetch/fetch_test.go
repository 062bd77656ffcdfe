package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("chart"))
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(2*time.Second, 32)
	ctx := context.Background()

	body, ct, err := c.Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "chart", string(body))
	assert.Equal(t, "text/plain", ct)

	_, _, err = c.Fetch(ctx, srv.URL+"/missing")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)

	_, _, err = c.Fetch(ctx, srv.URL+"/big")
	assert.Error(t, err)
}

func TestClient_FetchUnsupportedScheme(t *testing.T) {
	c := New(time.Second, 0)
	_, _, err := c.Fetch(context.Background(), "unavailable://p1/1_a.txt")
	assert.Error(t, err)
}
