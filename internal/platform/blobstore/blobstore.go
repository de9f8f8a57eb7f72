// Package blobstore stores uploaded claim, eligibility and remittance files.
// Content is kept as-is; nothing here parses X12.
package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("upload not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidCategory    = errors.New("category is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrEmptyFile          = errors.New("file is empty")
)

// DefaultMaxFileSize applies when a store is built with a zero limit.
const DefaultMaxFileSize = 25 * 1024 * 1024

const (
	CategoryClaim          = "claim"
	CategoryEligibility270 = "eligibility-270"
	CategoryEligibility271 = "eligibility-271"
	CategoryRemittance     = "remittance"
	CategoryOther          = "other"
)

var AllowedCategories = map[string]bool{
	CategoryClaim:          true,
	CategoryEligibility270: true,
	CategoryEligibility271: true,
	CategoryRemittance:     true,
	CategoryOther:          true,
}

var AllowedContentTypes = map[string]bool{
	"application/edi-x12": true,
	"text/plain":          true,
	"text/csv":            true,
	"application/pdf":     true,
	"application/json":    true,
}

// Browsers rarely send a useful MIME type for these.
var extensionTypes = map[string]string{
	".edi": "application/edi-x12",
	".x12": "application/edi-x12",
	".837": "application/edi-x12",
	".835": "application/edi-x12",
	".270": "application/edi-x12",
	".271": "application/edi-x12",
	".txt": "text/plain",
	".csv": "text/csv",
}

// Metadata describes a stored upload.
type Metadata struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Category    string    `json:"category"`
	Hash        string    `json:"hash"`
	Description string    `json:"description,omitempty"`
	PatientID   string    `json:"patient_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

// SearchParams filters upload listings.
type SearchParams struct {
	Category    string
	ContentType string
	FileName    string // partial match
	PatientID   string
	Limit       int
	Offset      int
}

// Store is the contract for upload backends.
type Store interface {
	Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error)
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Metadata, error)
	Stat(ctx context.Context, id uuid.UUID) (*Metadata, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params SearchParams) ([]*Metadata, int, error)
}

// DetectContentType normalizes a declared MIME type, falling back to the
// file extension when the client sent none or a generic one.
func DetectContentType(declared, fileName string) string {
	ct := declared
	if parsed, _, err := mime.ParseMediaType(declared); err == nil {
		ct = parsed
	}
	ct = strings.ToLower(ct)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if parsed, _, err := mime.ParseMediaType(byExt); err == nil {
			return parsed
		}
	}
	return "application/octet-stream"
}

// prepare validates meta, reads content up to maxSize and fills the
// server-managed fields.
func prepare(meta Metadata, content io.Reader, maxSize int64) (Metadata, []byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	meta.FileName = filepath.Base(strings.TrimSpace(meta.FileName))
	if meta.FileName == "" || meta.FileName == "." || meta.FileName == "/" {
		return meta, nil, ErrMissingFileName
	}
	if meta.Category == "" {
		meta.Category = CategoryOther
	}
	if !AllowedCategories[meta.Category] {
		return meta, nil, fmt.Errorf("%w: %q", ErrInvalidCategory, meta.Category)
	}
	meta.ContentType = DetectContentType(meta.ContentType, meta.FileName)
	if !AllowedContentTypes[meta.ContentType] {
		return meta, nil, fmt.Errorf("%w: %q", ErrInvalidContentType, meta.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(content, maxSize+1))
	if err != nil {
		return meta, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > maxSize {
		return meta, nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return meta, nil, ErrEmptyFile
	}

	meta.ID = uuid.New()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", sha256.Sum256(data))
	meta.CreatedAt = time.Now().UTC()
	return meta, data, nil
}

func matchesSearch(m *Metadata, p SearchParams) bool {
	if p.Category != "" && m.Category != p.Category {
		return false
	}
	if p.ContentType != "" && m.ContentType != p.ContentType {
		return false
	}
	if p.PatientID != "" && m.PatientID != p.PatientID {
		return false
	}
	if p.FileName != "" && !strings.Contains(strings.ToLower(m.FileName), strings.ToLower(p.FileName)) {
		return false
	}
	return true
}

// paginate sorts newest first and slices out the requested window.
func paginate(matched []*Metadata, limit, offset int) []*Metadata {
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end]
}
