package bind_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bjaus/bind"
)

type endpointReq struct {
	ID   int `path:"id"`
	Page int `query:"page" default:"1"`
}

type endpointResp struct {
	ID   int `json:"id"`
	Page int `json:"page"`
}

func getEndpoint(_ context.Context, req *endpointReq) (*endpointResp, error) {
	return &endpointResp{ID: req.ID, Page: req.Page}, nil
}

func TestNewEndpoint_standalone(t *testing.T) {
	t.Parallel()

	ep, err := bind.NewEndpoint(http.MethodGet, "/items/{id:int}", getEndpoint)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, ep.Method())
	assert.Equal(t, "/items/{id}", ep.Template().Pattern())

	req := httptest.NewRequest(http.MethodGet, "/items/7?page=3", nil)
	req.SetPathValue("id", "7")
	rec := serve(t, ep, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":7,"page":3}`, rec.Body.String())
}

func TestEndpoint_Serve_with_path_values(t *testing.T) {
	t.Parallel()

	ep, err := bind.NewEndpoint(http.MethodGet, "/items/{id:int}", getEndpoint)
	require.NoError(t, err)

	tests := map[string]struct {
		id     string
		status int
	}{
		"converter accepts": {id: "42", status: http.StatusOK},
		"converter rejects": {id: "forty-two", status: http.StatusNotFound},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			conn := bind.NewConnection(req, bind.WithPathValues(func(name string) (string, bool) {
				if name == "id" {
					return tc.id, true
				}
				return "", false
			}))
			rec := httptest.NewRecorder()
			ep.Serve(bind.NewExecutionContext(conn, nil, zap.NewNop()), rec)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestNewEndpoint_returns_configuration_error(t *testing.T) {
	t.Parallel()

	_, err := bind.NewEndpoint(http.MethodGet, "/items", getEndpoint)
	require.Error(t, err)

	var ce *bind.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "ID", ce.Field)
}

func TestEndpoint_background_tasks_run_after_response(t *testing.T) {
	t.Parallel()

	type Req struct {
		Tasks *bind.BackgroundTasks
	}

	var (
		ran        []string
		statusSeen int
	)
	rec := httptest.NewRecorder()
	r := bind.New()
	bind.Post(r, "/jobs", func(_ context.Context, req *Req) (*bind.Void, error) {
		req.Tasks.Add(func(context.Context) error {
			statusSeen = rec.Code
			ran = append(ran, "first")
			return errors.New("boom")
		})
		req.Tasks.Add(func(ctx context.Context) error {
			ran = append(ran, "second")
			return ctx.Err()
		})
		return nil, nil
	})

	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", nil))

	assert.Equal(t, http.StatusNoContent, statusSeen)
	assert.Equal(t, []string{"first", "second"}, ran)
}

type greeter struct{ prefix string }

func (g *greeter) greet(name string) string { return g.prefix + name }

func TestEndpoint_injected_services(t *testing.T) {
	t.Parallel()

	type Req struct {
		Name    string   `query:"name"`
		Greeter *greeter `inject:""`
	}

	services := bind.NewServices()
	bind.Provide(services, &greeter{prefix: "hi "})

	r := bind.New(bind.WithServices(services))
	bind.Get(r, "/greet", func(_ context.Context, req *Req) (*greetResp, error) {
		return &greetResp{Message: req.Greeter.greet(req.Name)}, nil
	})

	rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/greet?name=ada", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hi ada", decodeJSON[greetResp](t, rec).Message)

	g, err := bind.Service[*greeter](services)
	require.NoError(t, err)
	assert.Equal(t, "hi x", g.greet("x"))

	_, err = bind.Service[*endpointResp](services)
	assert.True(t, errors.Is(err, bind.ErrServiceNotFound))

	_, err = bind.Service[*greeter](nil)
	assert.True(t, errors.Is(err, bind.ErrAmbientState))
}

func TestEndpoint_missing_service_is_server_error(t *testing.T) {
	t.Parallel()

	type Req struct {
		Greeter *greeter `inject:""`
	}

	r := bind.New(bind.WithServices(bind.NewServices()))
	bind.Get(r, "/greet", func(_ context.Context, _ *Req) (*bind.Void, error) {
		return nil, nil
	})

	rec := serve(t, r, httptest.NewRequest(http.MethodGet, "/greet", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
