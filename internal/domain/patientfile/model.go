package patientfile

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxNameLen = 100
	// InlineFallbackLimit is the largest text or image file kept as a data URL
	// when object storage rejects the upload.
	InlineFallbackLimit = 1 << 20

	StorageStored   = "stored"
	StorageFallback = "fallback"

	unavailableScheme = "unavailable://"
)

type File struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	FileName   string     `json:"file_name"`
	FileType   string     `json:"file_type"`
	FileSize   int64      `json:"file_size"`
	FilePath   string     `json:"file_path"`
	FileURL    string     `json:"file_url"`
	UploadedAt time.Time  `json:"uploaded_at"`
	UploadedBy *uuid.UUID `json:"uploaded_by,omitempty"`
}

// IsPlaceholder reports whether the file never reached storage and has no
// inline copy.
func (f *File) IsPlaceholder() bool {
	return strings.HasPrefix(f.FileURL, unavailableScheme)
}

func allowedNameChar(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
		r == '.' || r == '_' || r == '-'
}

// SanitizeName keeps letters, digits, dot, underscore and hyphen. Any other
// run of characters becomes a single underscore, and the result is cut to
// MaxNameLen.
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		if !allowedNameChar(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > MaxNameLen {
		out = out[:MaxNameLen]
	}
	if strings.Trim(out, "_.") == "" {
		return "file"
	}
	return out
}

// StoragePath is the object key for an upload: <patient>/<unix ms>_<name>.
func StoragePath(patientID uuid.UUID, at time.Time, name string) string {
	return fmt.Sprintf("%s/%d_%s", patientID, at.UnixMilli(), SanitizeName(name))
}

func inlineable(contentType string, size int) bool {
	if size > InlineFallbackLimit {
		return false
	}
	return strings.HasPrefix(contentType, "text/") || strings.HasPrefix(contentType, "image/")
}

// FallbackURL is recorded when the upload to storage fails.
func FallbackURL(contentType string, data []byte, path string) string {
	if inlineable(contentType, len(data)) {
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
	return unavailableScheme + path
}

var errNotDataURL = errors.New("not a data URL")

// decodeDataURL parses a data: URL into its bytes and media type.
func decodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", errNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("data URL has no payload")
	}
	contentType := "text/plain"
	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		switch {
		case i == 0 && part != "":
			contentType = part
		case part == "base64":
			isBase64 = true
		}
	}
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data URL: %w", err)
		}
		return data, contentType, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL: %w", err)
	}
	return []byte(text), contentType, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Retrieval methods, in the order they are tried.
const (
	MethodCache     = "cache"
	MethodDataURL   = "data_url"
	MethodDownload  = "storage_download"
	MethodSignedURL = "signed_url"
	MethodPublicURL = "public_url"
	MethodStoredURL = "stored_url"
	MethodObjectURL = "object_url"
)

// Attempt is one step of the retrieval transcript.
type Attempt struct {
	Method     string `json:"method"`
	Target     string `json:"target,omitempty"`
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Retrieval is the outcome of the fallback chain. Data is nil when every
// method failed.
type Retrieval struct {
	FileID      uuid.UUID `json:"file_id"`
	FileName    string    `json:"file_name"`
	Method      string    `json:"method,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int       `json:"size"`
	Attempts    []Attempt `json:"attempts"`
	Data        []byte    `json:"-"`
}

// UploadResult reports where the bytes ended up.
type UploadResult struct {
	File          *File  `json:"file"`
	StorageStatus string `json:"storage_status"`
	StorageError  string `json:"storage_error,omitempty"`
}
