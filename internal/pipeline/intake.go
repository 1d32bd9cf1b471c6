package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/document"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

// UploadDir is the subdirectory of the document directory that holds
// uploads. The inbox watches the document directory itself, so uploads
// already processed by ProcessUpload are not picked up a second time.
const UploadDir = "uploads"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// StoredName returns the unique name an upload is saved under:
// <sanitized base>-<uuid><ext>. The extension is lower-cased.
func StoredName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = unsafeNameChars.ReplaceAllString(base, "_")
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s-%s%s", base, uuid.NewString(), ext)
}

// Intake checks an uploaded file and saves it under UploadDir.
// Only .docx and .pdf files within the size limit are accepted.
func (s *Service) Intake(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !document.IsUploadName(name) {
		return "", saisine.NewError(saisine.KindUnsupportedFormat,
			"only .docx and .pdf documents are accepted").WithPath(name)
	}
	if limit := s.extractor.MaxFileSize(); int64(len(data)) > limit {
		return "", saisine.NewError(saisine.KindFileTooLarge,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", len(data), limit)).WithPath(name)
	}
	if _, err := document.DetectFormat(name, data); err != nil {
		return "", err
	}

	path, err := s.paths.Resolve(filepath.Join(UploadDir, StoredName(name)))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	s.logger.Info("upload stored", zap.String("original", name), zap.String("path", path), zap.Int("size", len(data)))
	return path, nil
}

// ProcessUpload saves an upload then processes it like ProcessFile. The
// record keeps the original file name.
func (s *Service) ProcessUpload(ctx context.Context, name string, data []byte) (*store.FicheRecord, error) {
	path, err := s.Intake(ctx, name, data)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, path, filepath.Base(name))
}
