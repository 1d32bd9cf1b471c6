package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/julienmessagingme/educnat/internal/document"
)

// maxListedDocuments caps directory listings
const maxListedDocuments = 100

// FileInfo describes a document found in the document directory
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// ListDocuments walks the document directory for .docx and .pdf files
// within the size limit, newest first. query filters by file name.
func (s *Service) ListDocuments(query string) ([]FileInfo, error) {
	root := s.paths.Base()
	query = strings.ToLower(strings.TrimSpace(query))
	limit := s.extractor.MaxFileSize()

	var files []FileInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// keep walking past unreadable entries
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !document.IsUploadName(d.Name()) {
			return nil
		}
		if query != "" && !strings.Contains(strings.ToLower(d.Name()), query) {
			return nil
		}
		if s.paths.ValidatePath(path) != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() == 0 || info.Size() > limit {
			return nil //nolint:nilerr // skip unreadable or out-of-bounds files
		}
		files = append(files, FileInfo{
			Path:         path,
			Name:         d.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModifiedTime != files[j].ModifiedTime {
			return files[i].ModifiedTime > files[j].ModifiedTime
		}
		return files[i].Name < files[j].Name
	})
	if len(files) > maxListedDocuments {
		files = files[:maxListedDocuments]
	}
	return files, nil
}
