package objectstore

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type object struct {
	contentType string
	data        []byte
}

// MemoryStore is a thread-safe in-process bucket for development and tests.
// When BaseURL points at a server running Handler, its signed, public and
// object URLs are fetchable. Individual operations can be forced to fail.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object
	bucket  string

	BaseURL string

	FailUpload   bool
	FailDownload bool
	FailDelete   bool
	FailSign     bool
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]object), bucket: bucket, BaseURL: "memory://" + bucket}
}

func (m *MemoryStore) Upload(_ context.Context, key, contentType string, data []byte) error {
	if m.FailUpload {
		return ErrUnavailable
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[key] = object{contentType: contentType, data: cp}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Download(_ context.Context, key string) ([]byte, string, error) {
	if m.FailDownload {
		return nil, "", ErrUnavailable
	}
	return m.get(key)
}

func (m *MemoryStore) get(key string) ([]byte, string, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}
	return obj.data, obj.contentType, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if m.FailDelete {
		return ErrUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

func (m *MemoryStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if m.FailSign {
		return "", ErrUnavailable
	}
	exp := time.Now().Add(ttl).Unix()
	return joinURL(m.BaseURL, "signed", escapeKey(key)) + "?expires=" + strconv.FormatInt(exp, 10), nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return joinURL(m.BaseURL, "public", escapeKey(key))
}

func (m *MemoryStore) ObjectURL(key string) string {
	return joinURL(m.BaseURL, m.bucket, escapeKey(key))
}

func (m *MemoryStore) Ping(context.Context) error {
	if m.FailDownload && m.FailUpload {
		return ErrUnavailable
	}
	return nil
}

// Handler serves the URLs produced by SignedURL, PublicURL and ObjectURL.
// Download failure injection applies to it as well.
func (m *MemoryStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		var key string
		for _, prefix := range []string{"signed/", "public/", m.bucket + "/"} {
			if strings.HasPrefix(path, prefix) {
				key = strings.TrimPrefix(path, prefix)
				break
			}
		}
		if key == "" || m.FailDownload {
			http.NotFound(w, r)
			return
		}
		data, ct, err := m.get(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		_, _ = w.Write(data)
	})
}
