package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/storage"
)

// sniffLen is how much of an upload is buffered for content detection.
const sniffLen = 3072

type uploadRepository interface {
	Create(ctx context.Context, file *models.UploadedFile) error
	FindByID(ctx context.Context, id string) (*models.UploadedFile, error)
	Delete(ctx context.Context, id string) error
}

type blobStore interface {
	SaveStream(name string, r io.Reader) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type urlSigner interface {
	Generate(fileID, relPath string) (string, time.Time, error)
	Parse(token string) (fileID, relPath string, err error)
}

type uploadMetrics interface {
	RecordUpload(size int64)
}

// UploadConfig governs upload validation and link building.
type UploadConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	// DownloadPrefix is prepended to signed tokens, e.g. /api/v1/upload/files.
	DownloadPrefix string
}

// UploadServiceParams groups UploadService dependencies.
type UploadServiceParams struct {
	Repo    uploadRepository
	Store   blobStore
	Signer  urlSigner
	Audit   auditRecorder
	Metrics uploadMetrics
	Config  UploadConfig
	Logger  *zap.Logger
}

// UploadService stores files on disk and hands out signed download links.
type UploadService struct {
	repo    uploadRepository
	store   blobStore
	signer  urlSigner
	audit   auditRecorder
	metrics uploadMetrics
	cfg     UploadConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewUploadService constructs an UploadService.
func NewUploadService(p UploadServiceParams) *UploadService {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Config.MaxFileSize <= 0 {
		p.Config.MaxFileSize = 10 << 20
	}
	p.Config.DownloadPrefix = strings.TrimRight(p.Config.DownloadPrefix, "/")
	return &UploadService{
		repo:    p.Repo,
		store:   p.Store,
		signer:  p.Signer,
		audit:   p.Audit,
		metrics: p.Metrics,
		cfg:     p.Config,
		logger:  p.Logger,
		now:     time.Now,
	}
}

// Save validates and stores one file. The MIME type is sniffed from content,
// never taken from the client.
func (s *UploadService) Save(ctx context.Context, name string, r io.Reader, actor models.Actor) (*models.UploadedFile, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, appErrors.Validation("file name is required")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, internal(err, "failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Validation(fmt.Sprintf("%s is empty", name))
	}

	detected := mimetype.Detect(head)
	if !s.allowed(detected) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("%s: type %s is not allowed", name, detected.String()))
	}

	id := uuid.NewString()
	stamp := s.now().UTC()
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = detected.Extension()
	}
	relPath := path.Join(stamp.Format("2006"), stamp.Format("01"), id+ext)

	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.cfg.MaxFileSize+1)
	size, err := s.store.SaveStream(relPath, body)
	if err != nil {
		return nil, internal(err, "failed to store upload")
	}
	if size > s.cfg.MaxFileSize {
		_ = s.store.Delete(relPath)
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("%s exceeds the %d byte limit", name, s.cfg.MaxFileSize))
	}

	file := &models.UploadedFile{
		ID:        id,
		Name:      name,
		Path:      relPath,
		Mime:      mimeBase(detected.String()),
		Size:      size,
		CreatedAt: stamp,
	}
	if actor.UserID != "" {
		uploader := actor.UserID
		file.UploadedBy = &uploader
	}
	if err := s.repo.Create(ctx, file); err != nil {
		_ = s.store.Delete(relPath)
		return nil, internal(err, "failed to record upload")
	}
	if s.metrics != nil {
		s.metrics.RecordUpload(size)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpload, models.EntityUploads, file.ID, nil, map[string]interface{}{
		"name": file.Name,
		"mime": file.Mime,
		"size": file.Size,
	})

	signed := s.SignFiles([]models.UploadedFile{*file})
	return &signed[0], nil
}

// SignFiles fills URL with a signed download link. Files that cannot be signed keep an empty URL.
func (s *UploadService) SignFiles(files []models.UploadedFile) []models.UploadedFile {
	out := make([]models.UploadedFile, len(files))
	for i, f := range files {
		out[i] = f
		if s.signer == nil {
			continue
		}
		token, _, err := s.signer.Generate(f.ID, f.Path)
		if err != nil {
			s.logger.Warn("failed to sign download link", zap.String("file_id", f.ID), zap.Error(err))
			continue
		}
		out[i].URL = s.cfg.DownloadPrefix + "/" + token
	}
	return out
}

// Open resolves a signed token to the stored file. The caller closes the handle.
func (s *UploadService) Open(ctx context.Context, token string) (*models.UploadedFile, *os.File, error) {
	fileID, relPath, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link has expired")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid")
	}
	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		return nil, nil, lookupFailed(err, "file")
	}
	if file.Path != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid")
	}
	handle, err := s.store.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, nil, internal(err, "failed to open file")
	}
	return file, handle, nil
}

// Delete removes the metadata row and then the stored bytes.
func (s *UploadService) Delete(ctx context.Context, id string, actor models.Actor) error {
	file, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupFailed(err, "file")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupFailed(err, "file")
	}
	if err := s.store.Delete(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove stored file", zap.String("file_id", id), zap.Error(err))
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, models.EntityUploads, id, file, nil)
	return nil
}

func (s *UploadService) allowed(detected *mimetype.MIME) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for m := detected; m != nil; m = m.Parent() {
		for _, allowed := range s.cfg.AllowedMIMEs {
			if m.Is(allowed) {
				return true
			}
		}
	}
	return false
}

func mimeBase(raw string) string {
	if idx := strings.Index(raw, ";"); idx >= 0 {
		return strings.TrimSpace(raw[:idx])
	}
	return raw
}
