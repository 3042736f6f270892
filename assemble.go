package bind

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// MediaTypePolicy decides the media type of a payload group whose members
// declare different media types.
type MediaTypePolicy int

// Media type policies.
const (
	// MediaTypeLexicographic picks the greatest distinct media type.
	MediaTypeLexicographic MediaTypePolicy = iota
	// MediaTypePriority picks the first entry of a priority list that a
	// member declares, falling back to MediaTypeLexicographic.
	MediaTypePriority
)

func (p MediaTypePolicy) String() string {
	if p == MediaTypePriority {
		return "priority"
	}
	return "lexicographic"
}

// UnmarshalText parses "lexicographic" or "priority".
func (p *MediaTypePolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "lexicographic":
		*p = MediaTypeLexicographic
	case "priority":
		*p = MediaTypePriority
	default:
		return errors.Newf("unknown media type policy %q", text)
	}
	return nil
}

// resolveOrder is the order non-payload sources resolve in.
var resolveOrder = map[Source]int{
	SourceHeader: 0,
	SourcePath:   1,
	SourceQuery:  2,
	SourceCookie: 3,
	SourceSystem: 4,
}

// assembly is the resolver graph of one signature.
type assembly struct {
	body      Resolver
	resolvers []Resolver
	mediaType string
}

// assemble builds the resolver graph: one resolver per non-payload
// descriptor and at most one resolver for every payload member.
func assemble(sig *Signature, cfg *compileConfig) assembly {
	var (
		a       assembly
		members []*FieldDescriptor
	)
	for _, f := range sig.Fields {
		if f.Source.BodyLike() {
			members = append(members, f)
			continue
		}
		a.resolvers = append(a.resolvers, resolverFor(f, cfg))
	}
	for _, f := range sig.System {
		a.resolvers = append(a.resolvers, resolverFor(f, cfg))
	}
	slices.SortStableFunc(a.resolvers, func(x, y Resolver) int {
		return resolveOrder[x.Field().Source] - resolveOrder[y.Field().Source]
	})

	if len(members) == 0 {
		return a
	}
	a.mediaType = chooseMediaType(members, cfg.mediaPolicy, cfg.mediaPriority)

	if len(members) == 1 && !needsGrouping(members[0]) && !cfg.forceBodyGroup {
		a.body = resolverFor(members[0], cfg)
		return a
	}
	a.body = newBodyGroup(members, a.mediaType, cfg)
	return a
}

// needsGrouping reports whether a lone payload member still has to be
// wrapped: embedded members nest under their alias, and composite form
// members are assembled from several form keys.
func needsGrouping(f *FieldDescriptor) bool {
	return f.Embed || len(f.Children) > 0
}

// newBodyGroup combines payload members into one resolver. Several members
// are always embedded under their aliases.
func newBodyGroup(members []*FieldDescriptor, mediaType string, cfg *compileConfig) Resolver {
	embedded := len(members) > 1
	formMode := false
	grouped := make([]*FieldDescriptor, len(members))
	for i, m := range members {
		c := *m
		if len(members) > 1 {
			c.Embed = true
		}
		embedded = embedded || c.Embed
		formMode = formMode || c.Source == SourceForm || c.Source == SourceFile
		grouped[i] = &c
	}

	combined := &FieldDescriptor{
		Name:      "Body",
		Alias:     "body",
		Source:    SourceBody,
		Shape:     ShapeComposite,
		Embed:     embedded,
		MediaType: mediaType,
	}
	for _, m := range grouped {
		combined.Required = combined.Required || m.Required
	}

	if embedded {
		combined.Type = syntheticBody(grouped)
	} else {
		combined.Type = derefType(grouped[0].Type)
	}

	g := &bodyGroupResolver{
		field:    combined,
		members:  grouped,
		synth:    combined.Type,
		embedded: embedded,
		codecs:   cfg.codecs,
	}
	if formMode {
		children := make([]Resolver, len(grouped))
		for i, m := range grouped {
			if m.Source == SourceBody {
				children[i] = &bodyResolver{field: m, codecs: cfg.codecs, fromForm: true}
				continue
			}
			children[i] = resolverFor(m, cfg)
		}
		g.form = &bulkResolver{field: combined, children: children}
	}
	return g
}

// chooseMediaType picks the media type of a payload group. With one
// distinct media type that one wins; otherwise the policy decides.
func chooseMediaType(members []*FieldDescriptor, policy MediaTypePolicy, priority []string) string {
	var distinct []string
	for _, m := range members {
		if m.MediaType != "" && !slices.Contains(distinct, m.MediaType) {
			distinct = append(distinct, m.MediaType)
		}
	}
	if len(distinct) == 0 {
		return ""
	}
	if policy == MediaTypePriority {
		for _, p := range priority {
			if slices.Contains(distinct, p) {
				return p
			}
		}
	}
	return slices.Max(distinct)
}
