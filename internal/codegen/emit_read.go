package codegen

import (
	"fmt"
	"go/token"
	"go/types"
)

// emitRead emits the unpack statements for one value of type t,
// assigning into expr. Construction of collections is resolved here
// through an ordered recognizer cascade.
func (g *generator) emitRead(p *property, t types.Type, expr string, pos token.Pos, sc *scope) {
	owned := sc == nil
	sc = g.cw.Reference(sc)
	if owned {
		defer sc.Close()
	}

	switch x := t.(type) {
	case *types.Pointer:
		pfx := identPrefix(expr)
		g.cw.Begin("if r.Bool()")
		if isProtoMessage(x.Elem()) && !isMarked(x.Elem()) {
			g.cw.Printf("%s = new(%s)", expr, g.tSet.typeString(x.Elem()))
			g.cw.Printf("r.UnmarshalProto(%s)", expr)
		} else {
			g.cw.Printf("var %sTransient %s", pfx, g.tSet.typeString(x.Elem()))
			g.emitRead(p, x.Elem(), pfx+"Transient", pos, nil)
			g.cw.Printf("%s = &%sTransient", expr, pfx)
		}

	case *types.Basic:
		method := basicMethod(x)
		if method == "" {
			d := g.diag(DiagMissingPackingMethod, "no packing strategy",
				SeverityError, "property %s has unsupported type %s",
				[]any{p.name(), g.fmtType(t)}, pos)
			g.emitPanic(d)
			return
		}
		g.cw.Printf("%s = r.%s()", expr, method)

	case *types.Slice:
		if isByteSlice(x) {
			g.cw.Printf("%s = r.Bytes()", expr)
			return
		}
		g.emitReadSlice(p, t, x.Elem(), expr, pos)

	case *types.Array:
		g.emitReadArray(p, x.Elem(), expr, pos)

	case *types.Map:
		g.emitReadMap(p, t, x, expr, pos)

	case *types.Interface:
		if x.Empty() {
			d := g.diag(DiagMissingPackingMethod, "no packing strategy",
				SeverityError, "property %s is typed as any, which has no wire width; use a concrete type",
				[]any{p.name()}, pos)
			g.emitPanic(d)
			return
		}
		d := g.diag(DiagInterfaceProperties, "interface-typed property",
			SeverityError, "property %s is typed by an interface, which cannot be unpacked; use a concrete type",
			[]any{p.name()}, pos)
		g.emitPanic(d)

	case *types.Named:
		g.emitReadNamed(p, x, expr, pos, sc)

	default:
		d := g.diag(DiagMissingPackingMethod, "no packing strategy",
			SeverityError, "property %s has unsupported type %s",
			[]any{p.name(), g.fmtType(t)}, pos)
		g.emitPanic(d)
	}
}

func (g *generator) emitReadNamed(p *property, x *types.Named, expr string, pos token.Pos, sc *scope) {
	if st, ok := g.strategies[qualifiedName(x)]; ok {
		st.deserialize(g, p, x, expr, pos, sc)
		return
	}
	if isIterSeq(x) {
		g.emitReadSeq(p, x, expr, pos)
		return
	}

	switch u := x.Underlying().(type) {
	case *types.Basic:
		tn := g.tSet.typeString(x)
		if isIntegerKind(u) {
			g.cw.Printf("%s = %s(r.Int32())", expr, tn)
			return
		}
		method := basicMethod(u)
		if method == "" {
			d := g.diag(DiagMissingPackingMethod, "no packing strategy",
				SeverityError, "property %s has unsupported type %s",
				[]any{p.name(), g.fmtType(x)}, pos)
			g.emitPanic(d)
			return
		}
		g.cw.Printf("%s = %s(r.%s())", expr, tn, method)

	case *types.Slice:
		if isByteSlice(u) {
			g.cw.Printf("%s = %s(r.Bytes())", expr, g.tSet.typeString(x))
			return
		}
		g.emitReadCollection(p, x, u.Elem(), expr, pos)

	case *types.Array:
		g.emitReadArray(p, u.Elem(), expr, pos)

	case *types.Map:
		if g.emitReadAddKV(p, x, u.Key(), u.Elem(), expr, pos) {
			return
		}
		g.emitReadMap(p, x, u, expr, pos)

	case *types.Interface:
		d := g.diag(DiagInterfaceProperties, "interface-typed property",
			SeverityError, "property %s is typed by interface %s, which cannot be unpacked; use a concrete type",
			[]any{p.name(), g.fmtType(x)}, pos)
		g.emitPanic(d)

	case *types.Signature:
		d := g.diag(DiagEnumerableProperties, "unrecognized sequence type",
			SeverityError, "property %s has sequence-like type %s, which is not the canonical iter.Seq",
			[]any{p.name(), g.fmtType(x)}, pos)
		g.emitPanic(d)

	default:
		switch {
		case isProtoMessage(x):
			g.cw.Printf("r.UnmarshalProto(%s)", ref(expr))
		case isMarked(x) || hasUnpackMethod(x):
			g.cw.Printf("%s.UnpackSerializedBytes(r)", expr)
		default:
			d := g.diag(DiagMissingPackingMethod, "no packing strategy",
				SeverityError, "type %s of property %s has no UnpackSerializedBytes method and does not embed fxevents.Serializable",
				[]any{g.fmtType(x), p.name()}, pos)
			g.emitPanic(d)
		}
	}
}

func (g *generator) emitReadSlice(p *property, t types.Type, elem types.Type, expr string, pos token.Pos) {
	pfx := identPrefix(expr)
	lenVar := pfx + "Length"
	idx := pfx + "Idx"
	g.cw.Printf("%s := r.Len()", lenVar)
	g.cw.Printf("%s = make(%s, %s)", expr, g.tSet.typeString(t), lenVar)
	g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, lenVar, idx)
	g.emitRead(p, elem, fmt.Sprintf("%s[%s]", expr, idx), pos, nil)
	g.cw.End()
}

func (g *generator) emitReadArray(p *property, elem types.Type, expr string, pos token.Pos) {
	pfx := identPrefix(expr)
	lenVar := pfx + "Length"
	idx := pfx + "Idx"
	g.cw.Printf("%s := r.Len()", lenVar)
	g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, lenVar, idx)
	g.emitRead(p, elem, fmt.Sprintf("%s[%s]", expr, idx), pos, nil)
	g.cw.End()
}

func (g *generator) emitReadMap(p *property, t types.Type, m *types.Map, expr string, pos token.Pos) {
	pfx := identPrefix(expr)
	lenVar := pfx + "Length"
	idx := pfx + "Idx"
	g.cw.Printf("%s := r.Len()", lenVar)
	g.cw.Printf("%s = make(%s, %s)", expr, g.tSet.typeString(t), lenVar)
	g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, lenVar, idx)
	g.cw.Printf("var %sKey %s", pfx, g.tSet.typeString(m.Key()))
	g.cw.Printf("var %sValue %s", pfx, g.tSet.typeString(m.Elem()))
	g.emitRead(p, m.Key(), pfx+"Key", pos, nil)
	g.emitRead(p, m.Elem(), pfx+"Value", pos, nil)
	g.cw.Printf("%s[%sKey] = %sValue", expr, pfx, pfx)
	g.cw.End()
}

// emitReadCollection resolves construction for a named slice-backed
// collection type: Add(T), then Add(K, V) for deconstructible elements,
// then a New<Type> constructor taking a slice, then the underlying
// slice itself.
func (g *generator) emitReadCollection(p *property, x *types.Named, elem types.Type, expr string, pos token.Pos) {
	pfx := identPrefix(expr)
	countVar := pfx + "Count"
	idx := pfx + "Idx"

	if f := addMethodWith(x, elem); f != nil {
		g.cw.Printf("%s := r.Len()", countVar)
		g.cw.Printf("var %sTransient %s", pfx, g.tSet.typeString(x))
		g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, countVar, idx)
		g.cw.Printf("var %sEntry %s", pfx, g.tSet.typeString(elem))
		g.emitRead(p, elem, pfx+"Entry", pos, nil)
		g.cw.Printf("%sTransient.Add(%sEntry)", pfx, pfx)
		g.cw.End()
		g.cw.Printf("%s = %sTransient", expr, pfx)
		return
	}

	if named, ok := elem.(*types.Named); ok && (isKeyValue(elem) || isTuple2(elem)) {
		k, v := named.TypeArgs().At(0), named.TypeArgs().At(1)
		if addMethod2(x, k, v) != nil {
			first, second := "Key", "Value"
			if isTuple2(elem) {
				first, second = "V1", "V2"
			}
			g.cw.Printf("%s := r.Len()", countVar)
			g.cw.Printf("var %sTransient %s", pfx, g.tSet.typeString(x))
			g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, countVar, idx)
			g.cw.Printf("var %sEntry %s", pfx, g.tSet.typeString(elem))
			g.emitRead(p, elem, pfx+"Entry", pos, nil)
			g.cw.Printf("%sTransient.Add(%sEntry.%s, %sEntry.%s)", pfx, pfx, first, pfx, second)
			g.cw.End()
			g.cw.Printf("%s = %sTransient", expr, pfx)
			return
		}
	}

	if ctor := sliceConstructor(x, elem); ctor != "" {
		items := pfx + "Items"
		g.cw.Printf("%s := r.Len()", countVar)
		g.cw.Printf("%s := make([]%s, %s)", items, g.tSet.typeString(elem), countVar)
		g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, countVar, idx)
		g.emitRead(p, elem, fmt.Sprintf("%s[%s]", items, idx), pos, nil)
		g.cw.End()
		g.cw.Printf("%s = %s(%s)", expr, g.qualifyFunc(x, ctor), items)
		return
	}

	g.cw.Printf("%s := r.Len()", countVar)
	g.cw.Printf("%s = make(%s, %s)", expr, g.tSet.typeString(x), countVar)
	g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, countVar, idx)
	g.emitRead(p, elem, fmt.Sprintf("%s[%s]", expr, idx), pos, nil)
	g.cw.End()
}

// emitReadAddKV handles named map-backed collections carrying an
// Add(K, V) method; other named maps read natively.
func (g *generator) emitReadAddKV(p *property, x *types.Named, k, v types.Type, expr string, pos token.Pos) bool {
	if addMethod2(x, k, v) == nil {
		return false
	}
	pfx := identPrefix(expr)
	countVar := pfx + "Count"
	idx := pfx + "Idx"
	g.cw.Printf("%s := r.Len()", countVar)
	g.cw.Printf("var %sTransient %s", pfx, g.tSet.typeString(x))
	g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, countVar, idx)
	g.cw.Printf("var %sKey %s", pfx, g.tSet.typeString(k))
	g.cw.Printf("var %sValue %s", pfx, g.tSet.typeString(v))
	g.emitRead(p, k, pfx+"Key", pos, nil)
	g.emitRead(p, v, pfx+"Value", pos, nil)
	g.cw.Printf("%sTransient.Add(%sKey, %sValue)", pfx, pfx, pfx)
	g.cw.End()
	g.cw.Printf("%s = %sTransient", expr, pfx)
	return true
}

// emitReadSeq reads the buffered element form of a lazy sequence and
// wraps it back into an iterator.
func (g *generator) emitReadSeq(p *property, x *types.Named, expr string, pos token.Pos) {
	elem := x.TypeArgs().At(0)
	pfx := identPrefix(expr)
	lenVar := pfx + "Length"
	items := pfx + "Items"
	idx := pfx + "Idx"
	g.cw.Printf("%s := r.Len()", lenVar)
	g.cw.Printf("%s := make([]%s, %s)", items, g.tSet.typeString(elem), lenVar)
	g.cw.Begin("for %s := 0; %s < %s; %s++", idx, idx, lenVar, idx)
	g.emitRead(p, elem, fmt.Sprintf("%s[%s]", items, idx), pos, nil)
	g.cw.End()
	slicesPkg := g.tSet.importPackage("slices", "slices")
	g.cw.Printf("%s = %s(%s)", expr, slicesPkg.qualify("Values"), items)
}

// addMethodWith matches a single-parameter Add accepting the element
// type.
func addMethodWith(t types.Type, elem types.Type) *types.Func {
	f := lookupMethod(t, "Add")
	if f == nil {
		return nil
	}
	sig := f.Type().(*types.Signature)
	if sig.Params().Len() != 1 || !types.Identical(sig.Params().At(0).Type(), elem) {
		return nil
	}
	return f
}

// addMethod2 matches a two-parameter Add accepting the deconstructed
// element halves.
func addMethod2(t types.Type, k, v types.Type) *types.Func {
	f := lookupMethod(t, "Add")
	if f == nil {
		return nil
	}
	sig := f.Type().(*types.Signature)
	if sig.Params().Len() != 2 {
		return nil
	}
	if !types.Identical(sig.Params().At(0).Type(), k) || !types.Identical(sig.Params().At(1).Type(), v) {
		return nil
	}
	return f
}

// sliceConstructor looks for New<Type>([]T) <Type> in the collection
// type's own package scope.
func sliceConstructor(x *types.Named, elem types.Type) string {
	pkg := x.Obj().Pkg()
	if pkg == nil {
		return ""
	}
	name := "New" + x.Obj().Name()
	fn, ok := pkg.Scope().Lookup(name).(*types.Func)
	if !ok {
		return ""
	}
	sig := fn.Type().(*types.Signature)
	if sig.Params().Len() != 1 || sig.Results().Len() != 1 {
		return ""
	}
	if !types.Identical(sig.Params().At(0).Type(), types.NewSlice(elem)) {
		return ""
	}
	if !types.Identical(sig.Results().At(0).Type(), x) {
		return ""
	}
	return name
}

// qualifyFunc renders a package-scope function reference for the
// generated file.
func (g *generator) qualifyFunc(x *types.Named, name string) string {
	pkg := x.Obj().Pkg()
	if pkg == nil || pkg == g.tSet.pkg.Types {
		return name
	}
	return g.tSet.importPackage(pkg.Path(), pkg.Name()).qualify(name)
}
