package bind_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bjaus/bind"
)

type inspectItem struct {
	Name string `json:"name"`
}

type inspectReq struct {
	ItemID     int
	Limit      int `default:"10"`
	Cursor     *string
	Tags       []string `query:"tag"`
	TraceToken string   `header:""`
	SessionKey string   `header:",keepunderscores"`
	Session    string   `cookie:"session" doc:"Session cookie"`
	Verbose    bool     `query:"verbose,optional"`
	Body       inspectItem
	Log        *zap.Logger
	Ctx        context.Context
}

func mustTemplate(t *testing.T, pattern string) *bind.PathTemplate {
	t.Helper()
	tmpl, err := bind.ParsePathTemplate(pattern)
	require.NoError(t, err)
	return tmpl
}

func TestInspect_inference(t *testing.T) {
	t.Parallel()

	sig, err := bind.Inspect(reflect.TypeFor[inspectReq](), mustTemplate(t, "/items/{item_id}"))
	require.NoError(t, err)

	tests := map[string]struct {
		source   bind.Source
		alias    string
		shape    bind.Shape
		required bool
	}{
		"ItemID":     {source: bind.SourcePath, alias: "item_id", shape: bind.ShapeScalar, required: true},
		"Limit":      {source: bind.SourceQuery, alias: "limit", shape: bind.ShapeScalar, required: false},
		"Cursor":     {source: bind.SourceQuery, alias: "cursor", shape: bind.ShapeScalar, required: false},
		"Tags":       {source: bind.SourceQuery, alias: "tag", shape: bind.ShapeSequence, required: true},
		"TraceToken": {source: bind.SourceHeader, alias: "trace-token", shape: bind.ShapeScalar, required: true},
		"SessionKey": {source: bind.SourceHeader, alias: "session_key", shape: bind.ShapeScalar, required: true},
		"Session":    {source: bind.SourceCookie, alias: "session", shape: bind.ShapeScalar, required: true},
		"Verbose":    {source: bind.SourceQuery, alias: "verbose", shape: bind.ShapeScalar, required: false},
		"Body":       {source: bind.SourceBody, alias: "body", shape: bind.ShapeComposite, required: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, ok := sig.Field(name)
			require.True(t, ok)
			assert.Equal(t, tc.source, f.Source)
			assert.Equal(t, tc.alias, f.Alias)
			assert.Equal(t, tc.shape, f.Shape)
			assert.Equal(t, tc.required, f.Required)
		})
	}

	require.Len(t, sig.System, 2)
	assert.Equal(t, "Log", sig.System[0].Name)
	assert.Equal(t, bind.SourceSystem, sig.System[0].Source)
	assert.Equal(t, "Ctx", sig.System[1].Name)

	limit, _ := sig.Field("Limit")
	require.True(t, limit.HasDefault)
	assert.Equal(t, 10, limit.Default.Interface())

	session, _ := sig.Field("Session")
	assert.Equal(t, "Session cookie", session.Doc)
}

func TestInspect_body_alias_from_json(t *testing.T) {
	t.Parallel()

	type Req struct {
		Item inspectItem `json:"the_item"`
	}

	sig, err := bind.Inspect(reflect.TypeFor[Req](), nil)
	require.NoError(t, err)

	f, ok := sig.Field("Item")
	require.True(t, ok)
	assert.Equal(t, bind.SourceBody, f.Source)
	assert.Equal(t, "the_item", f.Alias)
	assert.Equal(t, bind.MediaJSON, f.MediaType)
}

func TestInspect_path_default(t *testing.T) {
	t.Parallel()

	type Inferred struct {
		ID int `default:"5"`
	}
	type Tagged struct {
		ID int `path:"id" default:"5"`
	}

	tmpl := mustTemplate(t, "/things/{id}")

	sig, err := bind.Inspect(reflect.TypeFor[Inferred](), tmpl)
	require.NoError(t, err)
	f, _ := sig.Field("ID")
	assert.False(t, f.HasDefault)
	assert.True(t, f.Required)

	sig, err = bind.Inspect(reflect.TypeFor[Tagged](), tmpl)
	require.NoError(t, err)
	f, _ = sig.Field("ID")
	assert.True(t, f.HasDefault)
	assert.False(t, f.Required)
}

func TestInspect_placeholder_forces_path(t *testing.T) {
	t.Parallel()

	type Req struct {
		ID   int    `query:"id" default:"5"`
		Slug string `header:"slug"`
	}

	sig, err := bind.Inspect(reflect.TypeFor[Req](), mustTemplate(t, "/things/{id}/{slug}"))
	require.NoError(t, err)

	for _, name := range []string{"ID", "Slug"} {
		f, ok := sig.Field(name)
		require.True(t, ok)
		assert.Equal(t, bind.SourcePath, f.Source, name)
		assert.True(t, f.Required, name)
		assert.False(t, f.HasDefault, name)
	}
	assert.Empty(t, sig.OmittedPathParams)
}

func TestInspect_omitted_path_params(t *testing.T) {
	t.Parallel()

	type Req struct {
		ID int `path:"id"`
	}

	sig, err := bind.Inspect(reflect.TypeFor[Req](), mustTemplate(t, "/orgs/{org}/items/{id:int}"))
	require.NoError(t, err)

	require.Len(t, sig.OmittedPathParams, 1)
	assert.Equal(t, "org", sig.OmittedPathParams[0].Name)
}

func TestInspect_flattens_embedded_structs(t *testing.T) {
	t.Parallel()

	type Common struct {
		Tenant string `header:"x-tenant"`
	}
	type Req struct {
		Common
		Name string `query:"name"`
	}

	sig, err := bind.Inspect(reflect.TypeFor[Req](), nil)
	require.NoError(t, err)

	tenant, ok := sig.Field("Tenant")
	require.True(t, ok)
	assert.Equal(t, bind.SourceHeader, tenant.Source)
	assert.Equal(t, []int{0, 0}, tenant.Index)
}

func TestInspect_composite_query_children(t *testing.T) {
	t.Parallel()

	type Paging struct {
		Page    int `default:"1"`
		PerPage int `query:"per_page" default:"20" maximum:"100"`
		Sort    *string
	}
	type Req struct {
		Paging Paging `query:""`
	}

	sig, err := bind.Inspect(reflect.TypeFor[Req](), nil)
	require.NoError(t, err)

	f, ok := sig.Field("Paging")
	require.True(t, ok)
	require.Len(t, f.Children, 3)

	assert.Equal(t, "page", f.Children[0].Alias)
	assert.Equal(t, "per_page", f.Children[1].Alias)
	assert.Equal(t, "sort", f.Children[2].Alias)
	assert.False(t, f.Children[2].Required)
	require.NotNil(t, f.Children[1].Constraints.Maximum)
	assert.InDelta(t, 100.0, *f.Children[1].Constraints.Maximum, 0)
}

func TestInspect_configuration_errors(t *testing.T) {
	t.Parallel()

	type PathWithoutPlaceholder struct {
		ID string `path:"id"`
	}
	type TwoSources struct {
		X string `query:"x" header:"x"`
	}
	type PathSequence struct {
		IDs []string `path:"ids"`
	}
	type DuplicateAlias struct {
		A string `query:"a"`
		B string `query:"a"`
	}
	type DuplicateHeader struct {
		A string `header:"X-Token"`
		B string `header:"x-token"`
	}
	type BadDefault struct {
		N int `default:"abc"`
	}
	type Unsupported struct {
		C chan int
	}
	type BadConstraint struct {
		N int `minimum:"low"`
	}
	type QueryMap struct {
		M map[string]string `query:"m"`
	}
	type BadFile struct {
		F int `file:"f"`
	}

	tests := map[string]struct {
		typ     reflect.Type
		pattern string
	}{
		"path tag without match":  {typ: reflect.TypeFor[PathWithoutPlaceholder](), pattern: "/x"},
		"two source tags":         {typ: reflect.TypeFor[TwoSources](), pattern: "/"},
		"path sequence":           {typ: reflect.TypeFor[PathSequence](), pattern: "/x/{ids}"},
		"duplicate alias":         {typ: reflect.TypeFor[DuplicateAlias](), pattern: "/"},
		"duplicate header alias":  {typ: reflect.TypeFor[DuplicateHeader](), pattern: "/"},
		"bad default":             {typ: reflect.TypeFor[BadDefault](), pattern: "/"},
		"unsupported type":        {typ: reflect.TypeFor[Unsupported](), pattern: "/"},
		"bad constraint":          {typ: reflect.TypeFor[BadConstraint](), pattern: "/"},
		"map from query":          {typ: reflect.TypeFor[QueryMap](), pattern: "/"},
		"non-file type from file": {typ: reflect.TypeFor[BadFile](), pattern: "/"},
		"not a struct":            {typ: reflect.TypeFor[int](), pattern: "/"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := bind.Compile(tc.typ, tc.pattern)
			require.Error(t, err)
			var ce *bind.ConfigurationError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestCompile_bad_pattern(t *testing.T) {
	t.Parallel()

	type Req struct{}

	_, err := bind.Compile(reflect.TypeFor[Req](), "/x/{id:nope}")
	var ce *bind.ConfigurationError
	require.ErrorAs(t, err, &ce)

	assert.Panics(t, func() {
		bind.MustCompile(reflect.TypeFor[Req](), "/x/{id:nope}")
	})
}
