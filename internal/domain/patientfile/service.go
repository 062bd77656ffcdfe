package patientfile

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dental/internal/domain/profile"
	"github.com/dentaldesk/dental/internal/platform/fetch"
	"github.com/dentaldesk/dental/internal/platform/objectstore"
	"github.com/dentaldesk/dental/internal/platform/previewcache"
	"github.com/dentaldesk/dental/pkg/validation"
)

// ErrRetrievalFailed is returned with a full transcript when no method
// produced the file's bytes.
var ErrRetrievalFailed = errors.New("file could not be retrieved")

type PatientReader interface {
	Get(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
}

type Service struct {
	repo      Repository
	patients  PatientReader
	store     objectstore.Store
	cache     previewcache.Cache
	fetcher   fetch.Fetcher
	signedTTL time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, patients PatientReader, store objectstore.Store, cache previewcache.Cache, fetcher fetch.Fetcher, signedTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		patients:  patients,
		store:     store,
		cache:     cache,
		fetcher:   fetcher,
		signedTTL: signedTTL,
		logger:    logger.With().Str("component", "patientfile").Logger(),
		now:       time.Now,
	}
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID) ([]*File, error) {
	files, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].UploadedAt.After(files[j].UploadedAt) })
	return files, nil
}

func (s *Service) Get(ctx context.Context, patientID, id uuid.UUID) (*File, error) {
	return s.repo.GetByID(ctx, patientID, id)
}

// Upload stores data under a fresh path and always records the index row.
// When storage rejects the bytes the row points at an inline data URL or a
// placeholder instead.
func (s *Service) Upload(ctx context.Context, patientID uuid.UUID, name, contentType string, data []byte, actor *uuid.UUID) (*UploadResult, error) {
	name = strings.TrimSpace(name)
	errs := validation.Errors{}
	if name == "" {
		errs.Add("file", "file name is required")
	}
	if len(data) == 0 {
		errs.Add("file", "file is empty")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	contentType = resolveContentType(name, contentType, data)

	f := &File{
		ID:         uuid.New(),
		PatientID:  patientID,
		FileName:   name,
		FileType:   contentType,
		FileSize:   int64(len(data)),
		FilePath:   StoragePath(patientID, s.now(), name),
		UploadedBy: actor,
	}
	res := &UploadResult{File: f, StorageStatus: StorageStored}

	if err := s.store.Upload(ctx, f.FilePath, contentType, data); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Str("path", f.FilePath).
			Msg("storage upload failed, recording fallback")
		f.FileURL = FallbackURL(contentType, data, f.FilePath)
		res.StorageStatus = StorageFallback
		res.StorageError = err.Error()
	} else {
		f.FileURL = s.store.PublicURL(f.FilePath)
	}

	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("record file: %w", err)
	}
	return res, nil
}

type step struct {
	method string
	target string
	skip   string
	run    func(ctx context.Context) ([]byte, string, error)
}

func (s *Service) fetchStep(method, target string) step {
	return step{method: method, target: target, run: func(ctx context.Context) ([]byte, string, error) {
		return s.fetcher.Fetch(ctx, target)
	}}
}

// chain lists the retrieval methods in order. The signed URL is minted
// lazily so a signing failure is recorded as that step's error.
func (s *Service) chain(f *File, useCache bool) []step {
	var steps []step
	if useCache {
		steps = append(steps, step{method: MethodCache, target: f.ID.String(), run: func(ctx context.Context) ([]byte, string, error) {
			e, err := s.cache.Get(ctx, f.ID.String())
			if err != nil {
				return nil, "", err
			}
			return e.Data, e.ContentType, nil
		}})
	}

	dataURL := step{method: MethodDataURL}
	if strings.HasPrefix(f.FileURL, "data:") {
		dataURL.run = func(context.Context) ([]byte, string, error) { return decodeDataURL(f.FileURL) }
	} else {
		dataURL.skip = "file_url is not a data URL"
	}
	steps = append(steps, dataURL)

	if f.FilePath == "" {
		return append(steps, step{method: MethodDownload, skip: "no storage path"})
	}

	steps = append(steps,
		step{method: MethodDownload, target: f.FilePath, run: func(ctx context.Context) ([]byte, string, error) {
			return s.store.Download(ctx, f.FilePath)
		}},
		step{method: MethodSignedURL, target: f.FilePath, run: func(ctx context.Context) ([]byte, string, error) {
			u, err := s.store.SignedURL(ctx, f.FilePath, s.signedTTL)
			if err != nil {
				return nil, "", fmt.Errorf("sign: %w", err)
			}
			return s.fetcher.Fetch(ctx, u)
		}},
		s.fetchStep(MethodPublicURL, s.store.PublicURL(f.FilePath)),
	)

	stored := step{method: MethodStoredURL, target: f.FileURL}
	if isHTTPURL(f.FileURL) {
		stored = s.fetchStep(MethodStoredURL, f.FileURL)
	} else {
		stored.skip = "file_url is not an http(s) URL"
	}
	return append(steps, stored, s.fetchStep(MethodObjectURL, s.store.ObjectURL(f.FilePath)))
}

func (s *Service) run(ctx context.Context, f *File, useCache bool) *Retrieval {
	r := &Retrieval{FileID: f.ID, FileName: f.FileName, Attempts: []Attempt{}}
	for _, st := range s.chain(f, useCache) {
		a := Attempt{Method: st.method, Target: st.target}
		if st.skip != "" {
			a.Skipped = true
			a.Error = st.skip
			r.Attempts = append(r.Attempts, a)
			continue
		}
		start := time.Now()
		data, ct, err := st.run(ctx)
		a.DurationMs = time.Since(start).Milliseconds()
		if err == nil && len(data) == 0 {
			err = errors.New("empty body")
		}
		if err != nil {
			a.Error = err.Error()
			r.Attempts = append(r.Attempts, a)
			if ctx.Err() != nil {
				return r
			}
			continue
		}
		a.Success = true
		r.Attempts = append(r.Attempts, a)
		r.Method = st.method
		r.Data = data
		r.Size = len(data)
		r.ContentType = contentTypeFor(ct, f.FileType)
		return r
	}
	return r
}

func isGeneric(ct string) bool {
	return ct == "" || strings.HasPrefix(ct, "application/octet-stream") || strings.HasPrefix(ct, "binary/octet-stream")
}

// resolveContentType replaces a missing or generic client type with one
// guessed from the extension, then from the bytes.
func resolveContentType(name, declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if !isGeneric(declared) {
		return declared
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// contentTypeFor prefers the recorded type when the source only reports a
// generic one.
func contentTypeFor(got, recorded string) string {
	got = strings.TrimSpace(got)
	if isGeneric(got) {
		if recorded != "" {
			return recorded
		}
		return "application/octet-stream"
	}
	return got
}

// Retrieve walks the fallback chain and returns the first bytes found. The
// returned Retrieval always carries the transcript, including on
// ErrRetrievalFailed.
func (s *Service) Retrieve(ctx context.Context, patientID, id uuid.UUID) (*Retrieval, error) {
	f, err := s.repo.GetByID(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	r := s.run(ctx, f, true)
	if r.Data == nil {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		s.logger.Error().
			Str("file_id", f.ID.String()).
			Int("attempts", len(r.Attempts)).
			Msg("all retrieval methods failed")
		return r, ErrRetrievalFailed
	}
	if r.Method != MethodCache {
		if err := s.cache.Set(ctx, f.ID.String(), previewcache.Entry{ContentType: r.ContentType, Data: r.Data}); err != nil {
			s.logger.Warn().Err(err).Str("file_id", f.ID.String()).Msg("preview cache populate failed")
		}
	}
	return r, nil
}

// Diagnose runs the storage chain without the preview cache and without
// populating it, so the transcript reflects what storage currently serves.
func (s *Service) Diagnose(ctx context.Context, patientID, id uuid.UUID) (*Retrieval, error) {
	f, err := s.repo.GetByID(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	r := s.run(ctx, f, false)
	r.Data = nil
	return r, nil
}

// Delete removes the object and cached preview on a best-effort basis, then
// always removes the index row.
func (s *Service) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	f, err := s.repo.GetByID(ctx, patientID, id)
	if err != nil {
		return err
	}
	if f.FilePath != "" && !f.IsPlaceholder() && !strings.HasPrefix(f.FileURL, "data:") {
		if err := s.store.Delete(ctx, f.FilePath); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
			s.logger.Warn().Err(err).Str("file_id", f.ID.String()).Str("path", f.FilePath).
				Msg("storage delete failed, removing index row anyway")
		}
	}
	if err := s.cache.Delete(ctx, f.ID.String()); err != nil {
		s.logger.Warn().Err(err).Str("file_id", f.ID.String()).Msg("preview cache evict failed")
	}
	return s.repo.Delete(ctx, patientID, id)
}
