package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

// pageSeparator joins the text of consecutive pages
const pageSeparator = "\n\n"

// PDFInfo describes a PDF checked by pdfcpu
type PDFInfo struct {
	Pages     int  `json:"pages"`
	Encrypted bool `json:"encrypted"`
}

// InspectPDF parses the document structure with pdfcpu in relaxed mode and
// returns its page count.
func InspectPDF(data []byte) (*PDFInfo, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, saisine.WrapError(saisine.KindInvalidDocument, "failed to read PDF context", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, saisine.WrapError(saisine.KindInvalidDocument, "failed to ensure page count", err)
	}

	return &PDFInfo{
		Pages:     ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}, nil
}

// pdfText validates the PDF then extracts its text layer page by page.
// Pages that fail to decode are skipped.
func pdfText(data []byte, maxTextSize int) (string, int, error) {
	info, err := InspectPDF(data)
	if err != nil {
		return "", 0, err
	}
	if info.Encrypted {
		return "", info.Pages, saisine.NewError(saisine.KindInvalidDocument, "PDF is encrypted")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", info.Pages, saisine.WrapError(saisine.KindInvalidDocument, "failed to open PDF", err)
	}

	text := extractPages(reader, maxTextSize)
	if strings.TrimSpace(text) == "" {
		return "", info.Pages, saisine.NewError(saisine.KindContentUnavailable,
			fmt.Sprintf("no text layer in %d page(s)", info.Pages))
	}
	return text, info.Pages, nil
}

func extractPages(reader *pdf.Reader, maxTextSize int) string {
	var builder strings.Builder
	total := 0

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		content := pageText(reader, pageNum)
		if content == "" {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteString(pageSeparator)
		}
		if maxTextSize > 0 && total+len(content) > maxTextSize {
			remaining := maxTextSize - total
			if remaining > 0 {
				builder.WriteString(strings.ToValidUTF8(content[:remaining], ""))
			}
			break
		}

		builder.WriteString(content)
		total += len(content)
	}

	return builder.String()
}

// pageText returns the plain text of one page, or "" when the page cannot
// be decoded
func pageText(reader *pdf.Reader, pageNum int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}
