package bind_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

type upload struct {
	field, name, content string
}

// multipartRequest builds a multipart POST with the given fields and files,
// written in order.
func multipartRequest(t *testing.T, target string, fields [][2]string, files ...upload) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range fields {
		require.NoError(t, w.WriteField(kv[0], kv[1]))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestForm_urlencoded(t *testing.T) {
	t.Parallel()

	type Req struct {
		Title string   `form:"title"`
		Count int      `form:"count" default:"1"`
		Tags  []string `form:"tag"`
	}
	type Resp struct {
		Title string   `json:"title"`
		Count int      `json:"count"`
		Tags  []string `json:"tags"`
	}

	r := bind.New()
	bind.Post(r, "/items", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Title: req.Title, Count: req.Count, Tags: req.Tags}, nil
	})

	form := url.Values{"title": {"Lamp"}, "tag": {"home", "light"}}
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := serve(t, r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSON[Resp](t, rec)
	assert.Equal(t, "Lamp", body.Title)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, []string{"home", "light"}, body.Tags)
}

func TestForm_multipart_file(t *testing.T) {
	t.Parallel()

	type Req struct {
		Title string           `form:"title"`
		Doc   *bind.UploadFile `form:"doc"`
	}
	type Resp struct {
		Title    string `json:"title"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
		Content  string `json:"content"`
	}

	r := bind.New()
	bind.Post(r, "/upload", func(ctx context.Context, req *Req) (*Resp, error) {
		data, err := req.Doc.ReadAll(ctx)
		if err != nil {
			return nil, err
		}
		return &Resp{
			Title:    req.Title,
			Filename: req.Doc.Filename,
			Size:     req.Doc.Size,
			Content:  string(data),
		}, nil
	})

	req := multipartRequest(t, "/upload",
		[][2]string{{"title", "notes"}},
		upload{field: "doc", name: "../../etc/notes.txt", content: "hello"},
	)

	rec := serve(t, r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSON[Resp](t, rec)
	assert.Equal(t, "notes", body.Title)
	assert.Equal(t, "notes.txt", body.Filename)
	assert.Equal(t, int64(5), body.Size)
	assert.Equal(t, "hello", body.Content)
}

func TestForm_file_contents_keep_upload_order(t *testing.T) {
	t.Parallel()

	type Req struct {
		Parts []string `file:"part"`
	}
	type Resp struct {
		Parts []string `json:"parts"`
	}

	r := bind.New()
	bind.Post(r, "/parts", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Parts: req.Parts}, nil
	})

	req := multipartRequest(t, "/parts", nil,
		upload{field: "part", name: "a.txt", content: "first"},
		upload{field: "part", name: "b.txt", content: "second"},
		upload{field: "part", name: "c.txt", content: "third"},
	)

	rec := serve(t, r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"first", "second", "third"}, decodeJSON[Resp](t, rec).Parts)
}

func TestForm_composite(t *testing.T) {
	t.Parallel()

	type Profile struct {
		Name   string           `form:"name" minLength:"2"`
		Age    int              `form:"age" default:"18"`
		Avatar *bind.UploadFile `form:"avatar"`
	}
	type Req struct {
		Profile Profile `form:""`
	}
	type Resp struct {
		Name   string `json:"name"`
		Age    int    `json:"age"`
		Avatar string `json:"avatar"`
	}

	r := bind.New()
	bind.Post(r, "/profile", func(_ context.Context, req *Req) (*Resp, error) {
		out := &Resp{Name: req.Profile.Name, Age: req.Profile.Age}
		if req.Profile.Avatar != nil {
			out.Avatar = req.Profile.Avatar.Filename
		}
		return out, nil
	})

	t.Run("assembled", func(t *testing.T) {
		t.Parallel()

		req := multipartRequest(t, "/profile",
			[][2]string{{"name", "Ada"}},
			upload{field: "avatar", name: "me.png", content: "png"},
		)
		rec := serve(t, r, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decodeJSON[Resp](t, rec)
		assert.Equal(t, "Ada", body.Name)
		assert.Equal(t, 18, body.Age)
		assert.Equal(t, "me.png", body.Avatar)
	})

	t.Run("child errors", func(t *testing.T) {
		t.Parallel()

		req := multipartRequest(t, "/profile", [][2]string{{"name", "A"}, {"age", "old"}})
		rec := serve(t, r, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		problem := decodeJSON[bind.ProblemDetail](t, rec)
		require.Len(t, problem.Errors, 2)
		assert.Equal(t, bind.Location{"body", "name"}, problem.Errors[0].Loc)
		assert.Equal(t, "minLength", problem.Errors[0].Constraint)
		assert.Equal(t, bind.Location{"body", "age"}, problem.Errors[1].Loc)
	})
}

func TestForm_json_member(t *testing.T) {
	t.Parallel()

	type Meta struct {
		Kind string `json:"kind" required:"true"`
	}
	type Req struct {
		Note string `form:"note"`
		Meta Meta
	}
	type Resp struct {
		Note string `json:"note"`
		Kind string `json:"kind"`
	}

	r := bind.New()
	bind.Post(r, "/notes", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Note: req.Note, Kind: req.Meta.Kind}, nil
	})

	req := multipartRequest(t, "/notes", [][2]string{{"note", "hi"}, {"meta", `{"kind":"memo"}`}})
	rec := serve(t, r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSON[Resp](t, rec)
	assert.Equal(t, "hi", body.Note)
	assert.Equal(t, "memo", body.Kind)
}

func TestForm_failures(t *testing.T) {
	t.Parallel()

	type Req struct {
		Title string `form:"title"`
	}

	r := bind.New()
	bind.Post(r, "/items", func(_ context.Context, _ *Req) (*bind.Void, error) {
		return nil, nil
	})

	tests := map[string]struct {
		contentType string
		body        string
		status      int
		loc         bind.Location
		kind        bind.ErrorKind
	}{
		"missing field": {
			contentType: "application/x-www-form-urlencoded",
			body:        "other=1",
			status:      http.StatusUnprocessableEntity,
			loc:         bind.Location{"body", "title"},
			kind:        bind.KindMissing,
		},
		"bad boundary": {
			contentType: `multipart/form-data; boundary="bad@boundary"`,
			body:        "--x--",
			status:      http.StatusBadRequest,
			loc:         bind.Location{"body"},
			kind:        bind.KindMalformed,
		},
		"truncated multipart": {
			contentType: "multipart/form-data; boundary=xyz",
			body:        "--xyz\r\nContent-Disposition: form-data; name=\"title\"\r\n\r\nunterminated",
			status:      http.StatusBadRequest,
			loc:         bind.Location{"body"},
			kind:        bind.KindMalformed,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)

			rec := serve(t, r, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			problem := decodeJSON[bind.ProblemDetail](t, rec)
			require.NotEmpty(t, problem.Errors)
			assert.Equal(t, tc.loc, problem.Errors[0].Loc)
			assert.Equal(t, tc.kind, problem.Errors[0].Kind)
		})
	}
}
