package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"docqa-backend/internal/logger"
)

// ExtractionResult is the plain text pulled out of an uploaded file.
type ExtractionResult struct {
	Text  string
	Pages int
	// PageOffsets holds the rune offset of each page start within Text.
	// Only populated for paginated formats (PDF).
	PageOffsets []int
}

// Extractor converts a raw file into plain text. Implementations return an
// *ExtractionError when the source is unreadable; empty output is returned
// as-is and treated by the pipeline identically to a hard failure.
type Extractor interface {
	ExtractText(ctx context.Context, path, filename string) (*ExtractionResult, error)
}

// FileExtractor dispatches to a format-specific parser by file extension.
type FileExtractor struct{}

func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

func (e *FileExtractor) ExtractText(ctx context.Context, path, filename string) (*ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(path))
	}

	var (
		result *ExtractionResult
		err    error
	)

	switch ext {
	case ".pdf":
		result, err = e.extractPDF(path)
	case ".html", ".htm":
		result, err = e.extractHTML(path)
	case ".xlsx":
		result, err = e.extractXLSX(path)
	default:
		result, err = e.extractPlainText(path)
	}
	if err != nil {
		return nil, &ExtractionError{Path: filename, Err: err}
	}

	logger.Debug("Extracted text", "file", filename, "chars", len(result.Text), "pages", result.Pages)
	return result, nil
}

func (e *FileExtractor) extractPDF(path string) (*ExtractionResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var pages pageAccumulator
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			logger.Warn("Failed to read pdf page", "page", i, "error", err)
			continue
		}
		pages.add(text)
	}

	return &ExtractionResult{
		Text:        pages.builder.String(),
		Pages:       numPages,
		PageOffsets: pages.offsets,
	}, nil
}

// pageAccumulator collects per-page text and the rune offset at which each
// page begins. A page that could not be read leaves no boundary, so later
// offsets stay aligned with the accumulated text.
type pageAccumulator struct {
	builder strings.Builder
	offsets []int
	runes   int
}

func (p *pageAccumulator) add(text string) {
	p.offsets = append(p.offsets, p.runes)
	p.builder.WriteString(text)
	p.builder.WriteString("\n")
	p.runes += len([]rune(text)) + 1
}

func (e *FileExtractor) extractHTML(path string) (*ExtractionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open html file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	return &ExtractionResult{Text: collapseWhitespace(text), Pages: 1}, nil
}

func (e *FileExtractor) extractXLSX(path string) (*ExtractionResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var builder strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Warn("Failed to read sheet", "sheet", sheet, "error", err)
			continue
		}
		for _, row := range rows {
			builder.WriteString(strings.Join(row, "\t"))
			builder.WriteString("\n")
		}
	}

	return &ExtractionResult{Text: builder.String(), Pages: 1}, nil
}

func (e *FileExtractor) extractPlainText(path string) (*ExtractionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return &ExtractionResult{Text: string(content), Pages: 1}, nil
}

// collapseWhitespace squeezes runs of blank lines and trailing spaces left
// behind by HTML-to-text conversion.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
