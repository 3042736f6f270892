package bind_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

func TestError(t *testing.T) {
	t.Parallel()

	err := bind.Error(http.StatusNotFound, "not found")
	assert.EqualError(t, err, "not found")

	var sc bind.StatusCoder
	require.ErrorAs(t, err, &sc)
	assert.Equal(t, http.StatusNotFound, sc.StatusCode())

	var he *bind.HTTPError
	require.ErrorAs(t, bind.Errorf(http.StatusConflict, "item %d exists", 7), &he)
	assert.Equal(t, http.StatusConflict, he.Status)
	assert.Equal(t, "item 7 exists", he.Message)
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err    error
		expect int
	}{
		"status coder": {
			err:    bind.Error(http.StatusForbidden, "forbidden"),
			expect: http.StatusForbidden,
		},
		"wrapped status coder": {
			err:    fmt.Errorf("load: %w", bind.Error(http.StatusNotFound, "gone")),
			expect: http.StatusNotFound,
		},
		"plain": {
			err:    errors.New("plain error"),
			expect: http.StatusInternalServerError,
		},
		"body too large": {
			err:    errors.Mark(errors.New("read"), bind.ErrBodyTooLarge),
			expect: http.StatusRequestEntityTooLarge,
		},
		"validation": {
			err:    &bind.RequestValidationError{Errors: []bind.FieldError{{Kind: bind.KindInvalid}}},
			expect: http.StatusUnprocessableEntity,
		},
		"ambient state": {
			err:    &bind.AmbientStateError{Field: "Log", Err: bind.ErrAmbientState},
			expect: http.StatusInternalServerError,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, bind.ErrorStatus(tc.err))
		})
	}
}

func TestRequestValidationError(t *testing.T) {
	t.Parallel()

	invalid := bind.FieldError{Loc: bind.Location{"query", "limit"}, Msg: "too big", Kind: bind.KindInvalid}
	malformed := bind.FieldError{Loc: bind.Location{"body"}, Msg: "bad json", Kind: bind.KindMalformed}

	tests := map[string]struct {
		err    *bind.RequestValidationError
		status int
		detail string
		msg    string
	}{
		"default status": {
			err:    &bind.RequestValidationError{Errors: []bind.FieldError{invalid}},
			status: http.StatusUnprocessableEntity,
			detail: "1 validation error(s)",
			msg:    "validation failed: query.limit: too big",
		},
		"configured status": {
			err:    &bind.RequestValidationError{Errors: []bind.FieldError{invalid, invalid}, Status: http.StatusBadRequest},
			status: http.StatusBadRequest,
			detail: "2 validation error(s)",
			msg:    "validation failed: 2 errors",
		},
		"malformed wins": {
			err:    &bind.RequestValidationError{Errors: []bind.FieldError{invalid, malformed}, Status: http.StatusTeapot},
			status: http.StatusBadRequest,
			detail: "There was an error parsing the body",
			msg:    "validation failed: 2 errors",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.status, tc.err.StatusCode())
			assert.EqualError(t, tc.err, tc.msg)

			pd := tc.err.Problem()
			assert.Equal(t, tc.status, pd.Status)
			assert.Equal(t, http.StatusText(tc.status), pd.Title)
			assert.Equal(t, tc.detail, pd.Detail)
			assert.Equal(t, tc.err.Errors, pd.Errors)
		})
	}
}

func TestLocation(t *testing.T) {
	t.Parallel()

	loc := bind.Location{"body", "items"}
	child := loc.Child("0", "name")

	assert.Equal(t, "body.items.0.name", child.String())
	assert.Equal(t, bind.Location{"body", "items"}, loc)
	assert.EqualError(t, bind.FieldError{Loc: child, Msg: "field required"}, "body.items.0.name: field required")
}

func TestConfigurationError(t *testing.T) {
	t.Parallel()

	type Req struct {
		IDs []string `path:"ids"`
	}

	_, err := bind.Compile(reflect.TypeFor[Req](), "/x/{ids}")
	var ce *bind.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "IDs", ce.Field)
	assert.Contains(t, err.Error(), "bind: ")
	assert.Contains(t, err.Error(), ".IDs: ")
}

func TestWriteErrors_hide_internal_detail(t *testing.T) {
	t.Parallel()

	r := bind.New()
	bind.Get(r, "/boom", func(_ context.Context, _ *bind.Void) (*bind.Void, error) {
		return nil, errors.New("database password is hunter2")
	})
	bind.Get(r, "/teapot", func(_ context.Context, _ *bind.Void) (*bind.Void, error) {
		return nil, bind.Error(http.StatusServiceUnavailable, "maintenance window")
	})

	rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	pd := decodeJSON[bind.ProblemDetail](t, rec)
	assert.Equal(t, "Internal Server Error", pd.Detail)

	rec = serve(t, r, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "maintenance window", decodeJSON[bind.ProblemDetail](t, rec).Detail)
}
