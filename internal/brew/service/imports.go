package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/storage"
	"github.com/slidecoffee/brew-service/pkg/logger"
)

// Upload is an incoming import file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImportResult is the created draft and the text extracted from the file.
type ImportResult struct {
	Draft   *brew.OutlineDraft
	Content string
	Message string
}

const placeholderContent = "Placeholder content - customize in the outline editor"

// importOutline is the starting outline for an imported file.
func importOutline() *brew.Outline {
	return &brew.Outline{
		Title:   "Imported Presentation",
		Summary: "Review and customize this outline based on your uploaded content",
		Slides: []brew.OutlineSlide{
			{SlideNumber: 1, Title: "Title Slide", Type: "title", KeyPoints: []string{"Add your main title and subtitle"}},
			{SlideNumber: 2, Title: "Introduction", Type: "content", KeyPoints: []string{"Overview of your topic", "Key objectives", "What we will cover"}},
			{SlideNumber: 3, Title: "Main Content", Type: "content", KeyPoints: []string{"First main point", "Second main point", "Third main point"}},
			{SlideNumber: 4, Title: "Details", Type: "content", KeyPoints: []string{"Supporting detail 1", "Supporting detail 2", "Examples or evidence"}},
			{SlideNumber: 5, Title: "Summary & Next Steps", Type: "conclusion", KeyPoints: []string{"Key takeaways", "Action items", "Questions?"}},
		},
	}
}

// ImportFile stores the upload and creates a draft with a placeholder
// outline. Text is extracted from txt, md and html files for later
// reference; other formats are stored as-is.
func (s *Service) ImportFile(ctx context.Context, c Caller, up Upload) (*ImportResult, error) {
	if up.Body == nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if up.Size > s.settings.MaxImportBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.settings.MaxImportBytes)
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, s.settings.MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.settings.MaxImportBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.settings.MaxImportBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(up.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := storage.ImportKey(c.WorkspaceID, up.Filename)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	text := extractText(up.Filename, data)
	d := &brew.OutlineDraft{
		WorkspaceID:     c.WorkspaceID,
		CreatedBy:       c.UserID,
		Topic:           "Imported: File Upload",
		Outline:         importOutline(),
		SourceType:      brew.SourceImport,
		SourceContent:   truncateRunes(text, sourceKeep),
		SourceObjectKey: key,
	}
	if err := s.createDraft(ctx, d); err != nil {
		if rmErr := s.objects.Remove(ctx, key); rmErr != nil {
			logger.Warnf("could not remove orphaned upload %s: %v", key, rmErr)
		}
		return nil, err
	}
	logger.Infof("import processed, outline draft created: draft=%s object=%s", d.ID, key)

	content := text
	if content == "" {
		content = placeholderContent
	}
	return &ImportResult{
		Draft:   d,
		Content: content,
		Message: "File processed. Please review and customize the outline.",
	}, nil
}

func extractText(filename string, data []byte) string {
	if !utf8.Valid(data) {
		return ""
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown":
		return tidyText(string(data))
	case ".html", ".htm":
		ex, err := extractHTML(string(data))
		if err != nil {
			return ""
		}
		return ex.Text
	}
	return ""
}
