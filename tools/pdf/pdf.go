// Package pdf exposes text extraction from PDF files as a tool.
package pdf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

// NoTextNotice is returned when a document yields no text.
const NoTextNotice = "No text found in the PDF file."

// ErrFileNotFound is returned by ExtractText for a missing file.
var ErrFileNotFound = errors.New("file not found")

// Args are the arguments of extract_text_from_pdf.
type Args struct {
	FilePath string `json:"file_path" description:"The path to the PDF file"`
}

// ExtractText returns the plain text of every page of the PDF at path,
// pages separated by a newline.
func ExtractText(path string) (text string, err error) {
	// The parser panics on some malformed inputs, including while opening.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("read pdf: %v", rec)
		}
	}()

	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		return "", fmt.Errorf("%w at %s", ErrFileNotFound, path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		sb.WriteString(content)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// Options configures the extraction tool.
type Options struct {
	// Extract reads the text of a file. Defaults to ExtractText.
	Extract func(path string) (string, error)
}

// NewTool returns the extract_text_from_pdf tool.
func NewTool(optFns ...func(o *Options)) tool.Tool {
	opts := Options{Extract: ExtractText}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewTypedTool("extract_text_from_pdf", "Extracts all text from a PDF file.", func(tc *core.ToolContext, args Args) (any, error) {
		text, err := opts.Extract(args.FilePath)
		if err != nil {
			tc.Logger().Warn("pdf.extract.failed", "path", args.FilePath, "error", err)
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return NoTextNotice, nil
		}
		return text, nil
	})
}
