// Package apitest provides typed test helpers for bind routers.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bjaus/bind"
)

// Client wraps an httptest.Server for convenient API testing.
type Client struct {
	Server *httptest.Server
}

// NewClient creates a test client from a router.
func NewClient(t testing.TB, r *bind.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &Client{Server: srv}
}

// Response holds a decoded API response. Problem is set instead of Body
// when the server answered with application/problem+json.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Problem *bind.ProblemDetail
	Raw     *http.Response
}

// File is one part of a multipart upload.
type File struct {
	Field    string
	Name     string
	Content  []byte
	MimeType string
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return doJSON[Resp](t, c, http.MethodGet, path, nil)
}

// Post sends a typed POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return doJSON[Resp](t, c, http.MethodPost, path, body)
}

// Put sends a typed PUT request with a JSON body.
func Put[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return doJSON[Resp](t, c, http.MethodPut, path, body)
}

// Patch sends a typed PATCH request with a JSON body.
func Patch[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return doJSON[Resp](t, c, http.MethodPatch, path, body)
}

// Delete sends a typed DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return doJSON[Resp](t, c, http.MethodDelete, path, nil)
}

// PostForm sends a URL-encoded form.
func PostForm[Resp any](t testing.TB, c *Client, path string, values url.Values) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPost, path, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

// PostMultipart sends a multipart form with the given fields and files.
func PostMultipart[Resp any](t testing.TB, c *Client, path string, values url.Values, files ...File) *Response[Resp] {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, vs := range values {
		for _, v := range vs {
			if err := mw.WriteField(key, v); err != nil {
				t.Fatalf("apitest: write field: %v", err)
			}
		}
	}
	for _, f := range files {
		if err := writeFile(mw, f); err != nil {
			t.Fatalf("apitest: write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("apitest: close multipart writer: %v", err)
	}

	return do[Resp](t, c, http.MethodPost, path, &buf, mw.FormDataContentType())
}

func writeFile(mw *multipart.Writer, f File) error {
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="` + f.Field + `"; filename="` + f.Name + `"`}
	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h["Content-Type"] = []string{mimeType}
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Content)
	return err
}

func doJSON[Resp any](t testing.TB, c *Client, method, path string, body any) *Response[Resp] {
	t.Helper()

	if body == nil {
		return do[Resp](t, c, method, path, nil, "")
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("apitest: marshal request body: %v", err)
	}
	return do[Resp](t, c, method, path, bytes.NewReader(b), "application/json")
}

func do[Resp any](t testing.TB, c *Client, method, path string, body io.Reader, contentType string) *Response[Resp] {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, body)
	if err != nil {
		t.Fatalf("apitest: create request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("apitest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("apitest: close body: %v", closeErr)
		}
	}()

	result := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Raw:     resp,
	}

	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		return result
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		var problem bind.ProblemDetail
		if decErr := json.NewDecoder(resp.Body).Decode(&problem); decErr == nil {
			result.Problem = &problem
		}
		return result
	}

	var decoded Resp
	if decErr := json.NewDecoder(resp.Body).Decode(&decoded); decErr != nil && decErr != io.EOF {
		return result
	}
	result.Body = &decoded
	return result
}
