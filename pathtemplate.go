package bind

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var pathLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Open", Pattern: `\{`, Action: lexer.Push("Param")},
		{Name: "Static", Pattern: `[^{]+`},
	},
	"Param": {
		{Name: "Close", Pattern: `\}`, Action: lexer.Pop()},
		{Name: "Ellipsis", Pattern: `\.\.\.`},
		{Name: "Colon", Pattern: `:`},
		{Name: "Ident", Pattern: `\$|[A-Za-z_][A-Za-z0-9_]*`},
	},
})

type pathGrammar struct {
	Parts []*pathPart `parser:"@@*"`
}

type pathPart struct {
	Static string       `parser:"  @Static"`
	Param  *paramSyntax `parser:"| Open @@ Close"`
}

type paramSyntax struct {
	Name      string `parser:"@Ident"`
	Wildcard  bool   `parser:"@Ellipsis?"`
	Converter string `parser:"( Colon @Ident )?"`
}

var pathParser = participle.MustBuild[pathGrammar](participle.Lexer(pathLexer))

// Converter validates a path segment before resolution runs. A segment the
// converter rejects makes the route not match.
type Converter struct {
	Name   string
	Schema JSONSchema
	Match  func(segment string) bool
}

var converters = map[string]Converter{
	"str": {
		Name:   "str",
		Schema: JSONSchema{Type: "string"},
		Match:  func(s string) bool { return s != "" },
	},
	"int": {
		Name:   "int",
		Schema: JSONSchema{Type: "integer"},
		Match: func(s string) bool {
			_, err := strconv.ParseInt(s, 10, 64)
			return err == nil
		},
	},
	"float": {
		Name:   "float",
		Schema: JSONSchema{Type: "number"},
		Match: func(s string) bool {
			_, err := strconv.ParseFloat(s, 64)
			return err == nil
		},
	},
	"uuid": {
		Name:   "uuid",
		Schema: JSONSchema{Type: "string", Format: "uuid"},
		Match: func(s string) bool {
			return uuid.Validate(s) == nil
		},
	},
	"path": {
		Name:   "path",
		Schema: JSONSchema{Type: "string"},
		Match:  func(string) bool { return true },
	},
}

// PathParam is one placeholder of a path template.
type PathParam struct {
	Name      string
	Converter string
	Wildcard  bool
}

// PathTemplate is a parsed route pattern such as "/files/{id:int}/{rest...}".
type PathTemplate struct {
	raw     string
	pattern string
	params  []PathParam
}

// ParsePathTemplate parses a route pattern. Converters are written as
// {name:conv}; the "path" converter and a trailing "..." match the rest of
// the path.
func ParsePathTemplate(raw string) (*PathTemplate, error) {
	tmpl := &PathTemplate{raw: raw}
	if raw == "" {
		return tmpl, nil
	}

	ast, err := pathParser.ParseString("", raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse path template %q", raw)
	}

	var b strings.Builder
	seen := make(map[string]bool)
	for _, part := range ast.Parts {
		if part.Param == nil {
			b.WriteString(part.Static)
			continue
		}
		p := part.Param
		if p.Name == "$" {
			b.WriteString("{$}")
			continue
		}
		if seen[p.Name] {
			return nil, errors.Newf("path template %q: duplicate placeholder %q", raw, p.Name)
		}
		seen[p.Name] = true

		if p.Converter != "" {
			if _, ok := converters[p.Converter]; !ok {
				return nil, errors.Newf("path template %q: unknown converter %q", raw, p.Converter)
			}
		}
		wildcard := p.Wildcard || p.Converter == "path"
		tmpl.params = append(tmpl.params, PathParam{Name: p.Name, Converter: p.Converter, Wildcard: wildcard})

		b.WriteString("{" + p.Name)
		if wildcard {
			b.WriteString("...")
		}
		b.WriteString("}")
	}
	tmpl.pattern = b.String()
	return tmpl, nil
}

// String returns the template as written.
func (t *PathTemplate) String() string { return t.raw }

// Pattern returns the template in net/http ServeMux syntax.
func (t *PathTemplate) Pattern() string { return t.pattern }

// Params returns the placeholders in template order.
func (t *PathTemplate) Params() []PathParam { return t.params }

// Has reports whether name is a placeholder.
func (t *PathTemplate) Has(name string) bool {
	_, ok := t.param(name)
	return ok
}

func (t *PathTemplate) param(name string) (PathParam, bool) {
	for _, p := range t.params {
		if p.Name == name {
			return p, true
		}
	}
	return PathParam{}, false
}

// Match runs every converter against the matched segments.
func (t *PathTemplate) Match(value func(name string) (string, bool)) bool {
	for _, p := range t.params {
		if p.Converter == "" {
			continue
		}
		v, _ := value(p.Name)
		if !converters[p.Converter].Match(v) {
			return false
		}
	}
	return true
}

// OpenAPIPath returns the template with converters and wildcards removed.
func (t *PathTemplate) OpenAPIPath() string {
	return strings.ReplaceAll(t.pattern, "...", "")
}

// converterType is the Go type a converter yields for documentation and
// sequence checks.
func converterType(name string) reflect.Type {
	switch name {
	case "int":
		return reflect.TypeFor[int64]()
	case "float":
		return reflect.TypeFor[float64]()
	case "uuid":
		return reflect.TypeFor[uuid.UUID]()
	default:
		return reflect.TypeFor[string]()
	}
}
