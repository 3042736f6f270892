package bind

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// formResolver reads scalar and sequence values from a parsed form.
type formResolver struct {
	field *FieldDescriptor
}

func newFormResolver(f *FieldDescriptor, _ *compileConfig) Resolver {
	return &formResolver{field: f}
}

func (r *formResolver) Field() *FieldDescriptor { return r.field }

func (r *formResolver) Resolve(ec *ExecutionContext) (ResolverResult, error) {
	form, err := ec.Connection().Form()
	if err != nil {
		return formFailure(err)
	}
	if r.field.Shape == ShapeSequence {
		vs := form.GetAll(r.field.Alias)
		return resolveStrings(r.field, vs, len(vs) > 0), nil
	}
	v, ok := form.Get(r.field.Alias)
	return resolveStrings(r.field, []string{v}, ok), nil
}

// fileResolver binds uploaded files. Byte and string targets read the file
// contents; sequences of them read every file concurrently and keep the
// upload order.
type fileResolver struct {
	field       *FieldDescriptor
	read        fileReader
	concurrency int
}

func newFileResolver(f *FieldDescriptor, cfg *compileConfig) Resolver {
	return &fileResolver{field: f, read: cfg.readFile, concurrency: cfg.fileConcurrency}
}

func (r *fileResolver) Field() *FieldDescriptor { return r.field }

func (r *fileResolver) Resolve(ec *ExecutionContext) (ResolverResult, error) {
	form, err := ec.Connection().Form()
	if err != nil {
		return formFailure(err)
	}

	f := r.field
	loc := f.loc()
	files := form.GetFiles(f.Alias)
	if len(files) == 0 {
		return resolveAbsent(f, loc), nil
	}

	res := newResult()
	names := make([]string, len(files))
	for i, file := range files {
		names[i] = file.Filename
	}
	res.RawData[loc.String()] = names

	base := derefType(f.Type)
	var v reflect.Value
	if f.Shape == ShapeSequence {
		v, err = r.sequence(ec.Context(), base, files)
	} else {
		v, err = r.single(ec.Context(), base, files[0])
	}
	if err != nil {
		return res, err
	}

	if errs := f.Constraints.check(v, loc); len(errs) > 0 {
		res.Errors = append(res.Errors, errs...)
		return res, nil
	}
	if f.Type.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		v = ptr
	}
	res.Data[f.Name] = v.Interface()
	return res, nil
}

// single converts one upload into t.
func (r *fileResolver) single(ctx context.Context, t reflect.Type, file *UploadFile) (reflect.Value, error) {
	switch {
	case t == uploadFileType:
		return reflect.ValueOf(file), nil
	case t == fileHeaderType:
		return reflect.ValueOf(file.Header), nil
	default:
		data, err := r.read(ctx, file)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(data).Convert(t), nil
	}
}

// sequence converts every upload into the container type t.
func (r *fileResolver) sequence(ctx context.Context, t reflect.Type, files []*UploadFile) (reflect.Value, error) {
	var out reflect.Value
	if t.Kind() == reflect.Array {
		if len(files) > t.Len() {
			files = files[:t.Len()]
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, len(files), len(files))
	}

	elem := t.Elem()
	switch derefType(elem) {
	case uploadFileType, fileHeaderType:
		for i, file := range files {
			var v reflect.Value
			if derefType(elem) == uploadFileType {
				v = reflect.ValueOf(file)
			} else {
				v = reflect.ValueOf(file.Header)
			}
			if elem.Kind() != reflect.Pointer {
				v = v.Elem()
			}
			out.Index(i).Set(v)
		}
		return out, nil
	}

	contents, err := r.readAll(ctx, files)
	if err != nil {
		return reflect.Value{}, err
	}
	for i, data := range contents {
		out.Index(i).Set(reflect.ValueOf(data).Convert(elem))
	}
	return out, nil
}

// readAll reads files concurrently. Each result is stored at its upload
// index, so the returned order always matches the multipart order.
func (r *fileResolver) readAll(ctx context.Context, files []*UploadFile) ([][]byte, error) {
	out := make([][]byte, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, file := range files {
		g.Go(func() error {
			data, err := r.read(gctx, file)
			if err != nil {
				return errors.Wrapf(err, "file %d", i)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
