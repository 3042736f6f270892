package bind

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/cockroachdb/errors"
)

// UploadFile is one file from a multipart form.
type UploadFile struct {
	Filename    string
	Size        int64
	ContentType string
	Header      *multipart.FileHeader
}

func newUploadFile(fh *multipart.FileHeader) *UploadFile {
	return &UploadFile{
		Filename:    sanitizeFilename(fh.Filename),
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Header:      fh,
	}
}

// Open returns a reader for the uploaded file contents.
func (f *UploadFile) Open() (multipart.File, error) {
	if f.Header == nil {
		return nil, errors.New("no file header")
	}
	file, err := f.Header.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "open upload %q", f.Filename)
	}
	return file, nil
}

// ReadAll reads the whole file.
func (f *UploadFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck // read-only handle

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read upload %q", f.Filename)
	}
	return data, nil
}

// fileReader reads one upload. Plans take it from their options so the
// read strategy can be swapped.
type fileReader func(ctx context.Context, f *UploadFile) ([]byte, error)

func readUpload(ctx context.Context, f *UploadFile) ([]byte, error) {
	return f.ReadAll(ctx)
}
