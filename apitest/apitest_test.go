package apitest_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
	"github.com/bjaus/bind/apitest"
)

type note struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type createNote struct {
	Body struct {
		Title string `json:"title" minLength:"1"`
	}
}

type getNote struct {
	ID int `path:"id"`
}

type formNote struct {
	Title string `form:"title"`
}

type attachment struct {
	Title string           `form:"title"`
	Doc   *bind.UploadFile `file:"doc"`
}

type attachmentResp struct {
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func newClient(t *testing.T) *apitest.Client {
	t.Helper()

	r := bind.New()
	bind.Get(r, "/notes/{id}", func(_ context.Context, req *getNote) (*note, error) {
		if req.ID != 1 {
			return nil, bind.Error(http.StatusNotFound, "note not found")
		}
		return &note{ID: 1, Title: "first"}, nil
	})
	bind.Post(r, "/notes", func(_ context.Context, req *createNote) (*note, error) {
		return &note{ID: 2, Title: req.Body.Title}, nil
	}, bind.WithStatus(http.StatusCreated))
	bind.Delete(r, "/notes/{id}", func(_ context.Context, _ *getNote) (*bind.Void, error) {
		return nil, nil
	})
	bind.Post(r, "/notes/form", func(_ context.Context, req *formNote) (*note, error) {
		return &note{ID: 3, Title: req.Title}, nil
	})
	bind.Post(r, "/notes/attach", func(_ context.Context, req *attachment) (*attachmentResp, error) {
		return &attachmentResp{Title: req.Title, Filename: req.Doc.Filename, Size: req.Doc.Size}, nil
	})
	return apitest.NewClient(t, r)
}

func TestClient_json(t *testing.T) {
	t.Parallel()

	c := newClient(t)

	got := apitest.Get[note](t, c, "/notes/1")
	require.Equal(t, http.StatusOK, got.Status)
	require.NotNil(t, got.Body)
	assert.Equal(t, "first", got.Body.Title)

	created := apitest.Post[map[string]string, note](t, c, "/notes", &map[string]string{"title": "second"})
	require.Equal(t, http.StatusCreated, created.Status)
	assert.Equal(t, note{ID: 2, Title: "second"}, *created.Body)

	deleted := apitest.Delete[bind.Void](t, c, "/notes/1")
	assert.Equal(t, http.StatusNoContent, deleted.Status)
	assert.Nil(t, deleted.Body)
}

func TestClient_problem(t *testing.T) {
	t.Parallel()

	c := newClient(t)

	missing := apitest.Get[note](t, c, "/notes/9")
	assert.Equal(t, http.StatusNotFound, missing.Status)
	assert.Nil(t, missing.Body)
	require.NotNil(t, missing.Problem)
	assert.Equal(t, "note not found", missing.Problem.Detail)

	invalid := apitest.Post[map[string]string, note](t, c, "/notes", &map[string]string{"title": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, invalid.Status)
	require.NotNil(t, invalid.Problem)
	require.Len(t, invalid.Problem.Errors, 1)
	assert.Equal(t, "body.title", invalid.Problem.Errors[0].Loc.String())
}

func TestClient_forms(t *testing.T) {
	t.Parallel()

	c := newClient(t)

	form := apitest.PostForm[note](t, c, "/notes/form", url.Values{"title": {"from form"}})
	require.Equal(t, http.StatusOK, form.Status)
	assert.Equal(t, "from form", form.Body.Title)

	upload := apitest.PostMultipart[attachmentResp](t, c, "/notes/attach",
		url.Values{"title": {"report"}},
		apitest.File{Field: "doc", Name: "report.txt", Content: []byte("hello"), MimeType: "text/plain"},
	)
	require.Equal(t, http.StatusOK, upload.Status)
	assert.Equal(t, attachmentResp{Title: "report", Filename: "report.txt", Size: 5}, *upload.Body)
}
