package bind

import (
	"io"
	"mime"
	"path/filepath"
)

// File is a file download response.
type File struct {
	Filename    string
	ContentType string
	Body        io.Reader
	// Inline serves the file for display instead of as an attachment.
	Inline bool
}

func (f *File) contentType() string {
	if f.ContentType != "" {
		return f.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(f.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (f *File) disposition() string {
	kind := "attachment"
	if f.Inline {
		kind = "inline"
	}
	if f.Filename == "" {
		return kind
	}
	return mime.FormatMediaType(kind, map[string]string{"filename": f.Filename})
}
