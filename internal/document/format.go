package document

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

// Format identifies how a document is read
type Format string

// Supported formats
const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

var (
	zipMagic = []byte("PK\x03\x04")
	pdfMagic = []byte("%PDF-")
)

// pdfHeaderWindow is how far into the file the PDF header may start
const pdfHeaderWindow = 1024

// UploadExtensions lists the extensions accepted for referral uploads
var UploadExtensions = []string{".docx", ".pdf"}

// FormatFromName returns the format implied by the file extension
func FormatFromName(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".docx":
		return FormatDOCX, nil
	case ".pdf":
		return FormatPDF, nil
	case ".txt", ".text":
		return FormatText, nil
	default:
		return "", saisine.NewError(saisine.KindUnsupportedFormat,
			fmt.Sprintf("unsupported format %q", ext)).WithPath(name)
	}
}

// DetectFormat resolves the format from the file name and checks that the
// content carries the matching signature.
func DetectFormat(name string, data []byte) (Format, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", saisine.NewError(saisine.KindInvalidDocument, "file is empty").WithPath(name)
	}

	switch format {
	case FormatDOCX:
		if !bytes.HasPrefix(data, zipMagic) {
			return "", saisine.NewError(saisine.KindInvalidDocument, "not a Word package").WithPath(name)
		}
	case FormatPDF:
		head := data
		if len(head) > pdfHeaderWindow {
			head = head[:pdfHeaderWindow]
		}
		if !bytes.Contains(head, pdfMagic) {
			return "", saisine.NewError(saisine.KindInvalidDocument, "missing PDF header").WithPath(name)
		}
	}
	return format, nil
}

// IsUploadName reports whether name has an accepted upload extension
func IsUploadName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range UploadExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
