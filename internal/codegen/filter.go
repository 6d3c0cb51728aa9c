package codegen

import (
	"go/types"
	"reflect"
	"strings"
)

// fieldOptions are the per-field controls parsed from the fx struct
// tag.
type fieldOptions struct {
	ignore    bool
	force     bool
	skipRead  bool
	skipWrite bool
}

func parseFieldTag(tag, key string) fieldOptions {
	v, ok := reflect.StructTag(tag).Lookup(key)
	if !ok || v == "" {
		return fieldOptions{}
	}
	var o fieldOptions
	for _, part := range strings.Split(v, ",") {
		switch strings.TrimSpace(part) {
		case "-":
			o.ignore = true
		case "force":
			o.force = true
		case "skipread":
			o.skipRead = true
		case "skipwrite":
			o.skipWrite = true
		}
	}
	return o
}

// property is one field participating in serialization.
type property struct {
	field    *types.Var
	opts     fieldOptions
	promoted bool
}

func (p *property) name() string {
	return p.field.Name()
}

// properties selects the serialized members of n in wire order: own
// fields first (declaration order), then fields promoted from embedded
// non-serializable structs, deduplicated by name only. The marker embed
// and embedded serializable bases never participate; the latter pack
// their own fields through their own methods.
func (g *generator) properties(n *types.Named) []property {
	st := n.Underlying().(*types.Struct)

	var out []property
	var embedded []*types.Var
	seen := map[string]bool{}

	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Embedded() {
			seen[f.Name()] = true
			if isSerializableMarker(f.Type()) || isMarked(f.Type()) {
				continue
			}
			if _, ok := f.Type().Underlying().(*types.Struct); ok {
				embedded = append(embedded, f)
				continue
			}
			// Embedded non-struct types (named basics etc.) serialize
			// like ordinary fields.
		}
		seen[f.Name()] = true
		opts := parseFieldTag(st.Tag(i), g.opts.Tag)
		if opts.ignore {
			continue
		}
		if !opts.force && !f.Exported() {
			continue
		}
		out = append(out, property{field: f, opts: opts})
	}

	// Name-only deduplication against the primary set. Coarse on
	// purpose; an overridden overload hides the promoted one.
	for _, e := range embedded {
		es := e.Type().Underlying().(*types.Struct)
		for i := 0; i < es.NumFields(); i++ {
			ef := es.Field(i)
			if ef.Embedded() || seen[ef.Name()] || !ef.Exported() {
				continue
			}
			seen[ef.Name()] = true
			opts := parseFieldTag(es.Tag(i), g.opts.Tag)
			if opts.ignore {
				continue
			}
			out = append(out, property{field: ef, opts: opts, promoted: true})
		}
	}

	return out
}

// hasSerializableBase reports whether n embeds another marker-carrying
// struct; the generated methods then shadow the promoted pair and pack
// only n's own members.
func hasSerializableBase(n *types.Named) bool {
	st, ok := n.Underlying().(*types.Struct)
	if !ok {
		return false
	}
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Embedded() && isMarked(f.Type()) {
			return true
		}
	}
	return false
}
