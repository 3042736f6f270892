package bind

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Connection exposes the parsed parts of one incoming request.
type Connection interface {
	Context() context.Context
	Method() string
	PathParam(name string) (string, bool)
	Query() url.Values
	Header() http.Header
	Cookie(name string) (string, bool)
	ContentType() string

	// Body reads the payload once and returns the cached bytes afterwards.
	Body() ([]byte, error)
	// Form parses the payload as a URL-encoded or multipart form, once.
	Form() (*Form, error)

	Request() *http.Request
}

// Form is a parsed form payload.
type Form struct {
	Values url.Values
	Files  map[string][]*UploadFile
}

// Get returns the first value for key.
func (f *Form) Get(key string) (string, bool) {
	vs, ok := f.Values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// GetAll returns every value for key in submission order.
func (f *Form) GetAll(key string) []string {
	return f.Values[key]
}

// GetFiles returns every file uploaded under key in submission order.
func (f *Form) GetFiles(key string) []*UploadFile {
	return f.Files[key]
}

// httpConnection adapts an *http.Request.
type httpConnection struct {
	r         *http.Request
	pathValue func(name string) (string, bool)
	maxBody   int64
	maxMemory int64

	query url.Values

	bodyRead bool
	body     []byte
	bodyErr  error

	formRead bool
	form     *Form
	formErr  error
}

// ConnectionOption configures NewConnection.
type ConnectionOption func(*httpConnection)

// WithPathValues overrides how path parameters are looked up. By default
// the values matched by net/http's ServeMux are used.
func WithPathValues(fn func(name string) (string, bool)) ConnectionOption {
	return func(c *httpConnection) {
		c.pathValue = fn
	}
}

// WithBodyLimits sets the maximum payload size and the memory used for
// multipart parsing.
func WithBodyLimits(maxBody, maxMemory int64) ConnectionOption {
	return func(c *httpConnection) {
		c.maxBody = maxBody
		c.maxMemory = maxMemory
	}
}

// NewConnection wraps r.
func NewConnection(r *http.Request, opts ...ConnectionOption) Connection {
	cfg := DefaultConfig()
	c := &httpConnection{
		r:         r,
		maxBody:   cfg.MaxBodyBytes,
		maxMemory: cfg.MultipartMemory,
	}
	c.pathValue = func(name string) (string, bool) {
		v := r.PathValue(name)
		return v, v != ""
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpConnection) Context() context.Context { return c.r.Context() }
func (c *httpConnection) Method() string           { return c.r.Method }
func (c *httpConnection) Header() http.Header      { return c.r.Header }
func (c *httpConnection) Request() *http.Request   { return c.r }

func (c *httpConnection) PathParam(name string) (string, bool) {
	return c.pathValue(name)
}

func (c *httpConnection) Query() url.Values {
	if c.query == nil {
		c.query = c.r.URL.Query()
	}
	return c.query
}

func (c *httpConnection) Cookie(name string) (string, bool) {
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (c *httpConnection) ContentType() string {
	return c.r.Header.Get("Content-Type")
}

func (c *httpConnection) Body() ([]byte, error) {
	if c.bodyRead {
		return c.body, c.bodyErr
	}
	c.bodyRead = true

	if c.r.Body == nil || c.r.Body == http.NoBody {
		return nil, nil
	}

	reader := io.Reader(c.r.Body)
	if c.maxBody > 0 {
		reader = io.LimitReader(c.r.Body, c.maxBody+1)
	}
	data, err := io.ReadAll(reader)
	//nolint:errcheck,gosec // the payload is fully buffered
	c.r.Body.Close()
	if err != nil {
		c.bodyErr = errors.Wrap(err, "read request body")
		return nil, c.bodyErr
	}
	if c.maxBody > 0 && int64(len(data)) > c.maxBody {
		c.bodyErr = errors.Mark(Errorf(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", c.maxBody), ErrBodyTooLarge)
		return nil, c.bodyErr
	}

	// Let raw handlers read the payload again.
	c.r.Body = io.NopCloser(bytes.NewReader(data))
	c.body = data
	return data, nil
}

func (c *httpConnection) Form() (*Form, error) {
	if c.formRead {
		return c.form, c.formErr
	}
	c.formRead = true
	c.form, c.formErr = c.parseForm()
	return c.form, c.formErr
}

func (c *httpConnection) parseForm() (*Form, error) {
	form := &Form{Values: url.Values{}, Files: map[string][]*UploadFile{}}

	ct := c.ContentType()
	if ct == "" {
		return form, nil
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse content type"), ErrMalformedForm)
	}

	body, err := c.Body()
	if err != nil {
		return nil, err
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "parse urlencoded form"), ErrMalformedForm)
		}
		form.Values = values
	case "multipart/form-data":
		boundary := params["boundary"]
		if err := validateBoundary(boundary); err != nil {
			return nil, errors.Mark(err, ErrMalformedForm)
		}
		mr := multipart.NewReader(bytes.NewReader(body), boundary)
		mf, err := mr.ReadForm(c.maxMemory)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "parse multipart form"), ErrMalformedForm)
		}
		form.Values = mf.Value
		for key, headers := range mf.File {
			files := make([]*UploadFile, 0, len(headers))
			for _, fh := range headers {
				files = append(files, newUploadFile(fh))
			}
			form.Files[key] = files
		}
	default:
		// Other payloads carry no form fields.
	}
	return form, nil
}

// validateBoundary checks a multipart boundary against RFC 2046.
func validateBoundary(boundary string) error {
	if boundary == "" {
		return errors.New("missing multipart boundary")
	}
	if len(boundary) > 70 {
		return errors.New("multipart boundary too long")
	}
	for _, r := range boundary {
		if !strings.ContainsRune("'()+_,-./:=? ", r) &&
			(r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return errors.Newf("invalid character %q in multipart boundary", r)
		}
	}
	return nil
}

// sanitizeFilename removes path components and dangerous characters from
// uploaded filenames.
func sanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")
	if filename == "." || filename == ".." || filename == "" || filename == "/" {
		filename = "unnamed"
	}
	return filename
}
