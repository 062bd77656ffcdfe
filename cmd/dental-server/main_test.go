package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dental/internal/config"
	"github.com/dentaldesk/dental/internal/domain/profile"
	"github.com/dentaldesk/dental/internal/platform/db"
	"github.com/dentaldesk/dental/internal/platform/events"
	"github.com/dentaldesk/dental/internal/platform/livefeed"
	"github.com/dentaldesk/dental/internal/platform/objectstore"
	"github.com/dentaldesk/dental/internal/platform/previewcache"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func standaloneConfig() *config.Config {
	return &config.Config{
		Port:           "8000",
		Env:            "production",
		AuthSigningKey: testSigningKey,
		AuthTokenTTL:   time.Hour,
		DefaultBranch:  "main",
		StorageBackend: "memory",
		StorageBucket:  "patient-files",
		UploadMaxSize:  "25M",
	}
}

func testBackends() *backends {
	mem := objectstore.NewMemoryStore("patient-files")
	mem.BaseURL = "http://localhost:8000" + objectsPath
	feed := livefeed.NewHub(zerolog.Nop())
	return &backends{
		store:     mem,
		memStore:  mem,
		cache:     previewcache.NewMemoryCache(time.Minute),
		publisher: events.Fanout{feed, &events.Recorder{}},
		feed:      feed,
	}
}

func TestAuthMiddleware_IssuerOnlyInStandalone(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.Config
		wantIssuer bool
	}{
		{"development", config.Config{Env: "development"}, false},
		{"external", config.Config{Env: "production", AuthIssuer: "https://id.example"}, false},
		{"standalone", config.Config{Env: "production", AuthSigningKey: testSigningKey, AuthTokenTTL: time.Hour}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, issuer := authMiddleware(&tt.cfg)
			if mw == nil {
				t.Fatal("expected middleware")
			}
			if (issuer != nil) != tt.wantIssuer {
				t.Errorf("issuer present = %v, want %v", issuer != nil, tt.wantIssuer)
			}
		})
	}
}

func TestRateLimitConfig_FallsBackToDefault(t *testing.T) {
	rl := rateLimitConfig(&config.Config{})
	if rl.RequestsPerSecond != 50 || rl.BurstSize != 100 {
		t.Errorf("unexpected default rate limit: %+v", rl)
	}
	rl = rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 10})
	if rl.RequestsPerSecond != 5 || rl.BurstSize != 10 {
		t.Errorf("unexpected configured rate limit: %+v", rl)
	}
}

func TestNewServer_PublicRoutesSkipAuth(t *testing.T) {
	e := newServer(standaloneConfig(), nil, testBackends(), zerolog.Nop())

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/dental-chart/legend", http.StatusOK},
		{http.MethodGet, "/api/v1/queue", http.StatusUnauthorized},
		{http.MethodPut, "/api/v1/clinic", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/queue/live", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/patients/" + uuid.NewString() + "/treatments", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestNewServer_ServesMemoryObjects(t *testing.T) {
	be := testBackends()
	e := newServer(standaloneConfig(), nil, be, zerolog.Nop())

	if err := be.memStore.Upload(context.Background(), "p1/1_scan.png", "image/png", []byte("png")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, objectsPath+"/public/p1/1_scan.png", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "png" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

type fakeProfiles struct {
	created []*profile.Profile
}

func (f *fakeProfiles) Create(_ context.Context, p *profile.Profile) error {
	p.ID = uuid.New()
	f.created = append(f.created, p)
	return nil
}

type fakePasswords struct {
	userID uuid.UUID
	email  string
	err    error
}

func (f *fakePasswords) SetPassword(_ context.Context, userID uuid.UUID, email, _ string) error {
	f.userID, f.email = userID, email
	return f.err
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("short password creates nothing", func(t *testing.T) {
		profiles := &fakeProfiles{}
		if _, err := createAccount(ctx, profiles, &fakePasswords{}, "Ana", "ana@example.com", "admin", "short"); err == nil {
			t.Fatal("expected error")
		}
		if len(profiles.created) != 0 {
			t.Error("profile should not be created")
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		profiles := &fakeProfiles{}
		if _, err := createAccount(ctx, profiles, &fakePasswords{}, "Ana", "ana@example.com", "owner", "long-enough-pw"); err == nil {
			t.Fatal("expected error")
		}
		if len(profiles.created) != 0 {
			t.Error("profile should not be created")
		}
	})

	t.Run("links login to profile", func(t *testing.T) {
		profiles := &fakeProfiles{}
		passwords := &fakePasswords{}
		id, err := createAccount(ctx, profiles, passwords, "Dr. Ana", "ana@example.com", " Dentist ", "long-enough-pw")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if passwords.userID != id || passwords.email != "ana@example.com" {
			t.Errorf("password set for %s/%s, want %s", passwords.userID, passwords.email, id)
		}
		if profiles.created[0].Role != "dentist" {
			t.Errorf("expected role dentist, got %q", profiles.created[0].Role)
		}
	})

	t.Run("password failure surfaces", func(t *testing.T) {
		passwords := &fakePasswords{err: errors.New("db down")}
		if _, err := createAccount(ctx, &fakeProfiles{}, passwords, "Ana", "ana@example.com", "staff", "long-enough-pw"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestMigrationFiles_EmbeddedSet(t *testing.T) {
	migs, err := db.NewMigrator(nil, migrationFiles("")).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) != 4 {
		t.Fatalf("expected 4 embedded migrations, got %d", len(migs))
	}
	for i, m := range migs {
		if m.Version != i+1 {
			t.Errorf("position %d: expected version %d, got %d", i, i+1, m.Version)
		}
	}
}

func TestRunServer_ReturnsConfigError(t *testing.T) {
	t.Setenv("QUEUE_AVG_SERVICE_MINUTES", "several")
	err := runServer()
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load config error, got %v", err)
	}
}
