package codegen

import (
	"fmt"
	"go/token"
	"go/types"
)

// fmtType renders t for diagnostic messages (short package names, no
// import bookkeeping).
func (g *generator) fmtType(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string {
		return p.Name()
	})
}

func basicMethod(b *types.Basic) string {
	switch b.Kind() {
	case types.Bool:
		return "Bool"
	case types.Int:
		return "Int"
	case types.Int8:
		return "Int8"
	case types.Int16:
		return "Int16"
	case types.Int32:
		return "Int32"
	case types.Int64:
		return "Int64"
	case types.Uint:
		return "Uint"
	case types.Uint8:
		return "Uint8"
	case types.Uint16:
		return "Uint16"
	case types.Uint32:
		return "Uint32"
	case types.Uint64:
		return "Uint64"
	case types.Float32:
		return "Float32"
	case types.Float64:
		return "Float64"
	case types.Complex64:
		return "Complex64"
	case types.Complex128:
		return "Complex128"
	case types.String:
		return "String"
	}
	return ""
}

func isIntegerKind(b *types.Basic) bool {
	return b.Info()&types.IsInteger != 0
}

// countExpr picks the count accessor for a named collection: len() of
// the value unless the type declares a Len or Count method, in which
// case the last such method in declaration order wins.
func countExpr(n *types.Named, expr string) string {
	count := fmt.Sprintf("len(%s)", expr)
	for i := 0; i < n.NumMethods(); i++ {
		m := n.Method(i)
		sig := m.Type().(*types.Signature)
		if sig.Params().Len() != 0 || sig.Results().Len() != 1 {
			continue
		}
		switch m.Name() {
		case "Len", "Count":
			count = fmt.Sprintf("%s.%s()", expr, m.Name())
		}
	}
	return count
}

// emitWrite emits the pack statements for one value of type t held in
// expr. A nil scope token makes this dispatch own (and close) every
// block it opens; passing a token down defers closing to the caller.
func (g *generator) emitWrite(p *property, t types.Type, expr string, pos token.Pos, sc *scope) {
	owned := sc == nil
	sc = g.cw.Reference(sc)
	if owned {
		defer sc.Close()
	}

	switch x := t.(type) {
	case *types.Pointer:
		g.cw.Begin("if %s == nil", expr)
		g.cw.Printf("w.Bool(false)")
		g.cw.Else()
		g.cw.Printf("w.Bool(true)")
		if isProtoMessage(x.Elem()) && !isMarked(x.Elem()) {
			g.cw.Printf("w.MarshalProto(%s)", expr)
		} else {
			g.emitWrite(p, x.Elem(), "(*"+expr+")", pos, sc)
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
		g.cw.Printf("w.%s(%s)", method, expr)

	case *types.Slice:
		if isByteSlice(x) {
			g.cw.Printf("w.Bytes(%s)", expr)
			return
		}
		g.emitWriteSequence(p, nil, x.Elem(), expr, pos)

	case *types.Array:
		pfx := identPrefix(expr)
		idx := pfx + "Idx"
		g.cw.Printf("w.Len(len(%s))", expr)
		g.cw.Begin("for %s := 0; %s < len(%s); %s++", idx, idx, expr, idx)
		g.emitWrite(p, x.Elem(), fmt.Sprintf("%s[%s]", expr, idx), pos, nil)
		g.cw.End()

	case *types.Map:
		g.emitWriteMap(p, nil, x, expr, pos)

	case *types.Interface:
		if x.Empty() {
			d := g.diag(DiagMissingPackingMethod, "no packing strategy",
				SeverityError, "property %s is typed as any, which has no wire width; use a concrete type",
				[]any{p.name()}, pos)
			g.emitPanic(d)
			return
		}
		d := g.diag(DiagInterfaceProperties, "interface-typed property",
			SeverityError, "property %s is typed by an interface, which cannot be packed; use a concrete type",
			[]any{p.name()}, pos)
		g.emitPanic(d)

	case *types.Named:
		g.emitWriteNamed(p, x, expr, pos, sc)

	default:
		d := g.diag(DiagMissingPackingMethod, "no packing strategy",
			SeverityError, "property %s has unsupported type %s",
			[]any{p.name(), g.fmtType(t)}, pos)
		g.emitPanic(d)
	}
}

func (g *generator) emitWriteNamed(p *property, x *types.Named, expr string, pos token.Pos, sc *scope) {
	if st, ok := g.strategies[qualifiedName(x)]; ok {
		st.serialize(g, p, x, expr, pos, sc)
		return
	}
	if isIterSeq(x) {
		g.emitWriteSeq(p, x, expr, pos)
		return
	}

	switch u := x.Underlying().(type) {
	case *types.Basic:
		if isIntegerKind(u) {
			// Enumeration: int32 underlying on the wire.
			g.cw.Printf("w.Int32(int32(%s))", expr)
			return
		}
		g.emitWrite(p, u, fmt.Sprintf("%s(%s)", u.Name(), expr), pos, sc)

	case *types.Slice:
		if isByteSlice(u) {
			g.cw.Printf("w.Bytes([]byte(%s))", expr)
			return
		}
		g.emitWriteSequence(p, x, u.Elem(), expr, pos)

	case *types.Array:
		pfx := identPrefix(expr)
		idx := pfx + "Idx"
		g.cw.Printf("w.Len(len(%s))", expr)
		g.cw.Begin("for %s := 0; %s < len(%s); %s++", idx, idx, expr, idx)
		g.emitWrite(p, u.Elem(), fmt.Sprintf("%s[%s]", expr, idx), pos, nil)
		g.cw.End()

	case *types.Map:
		g.emitWriteMap(p, x, u, expr, pos)

	case *types.Interface:
		d := g.diag(DiagInterfaceProperties, "interface-typed property",
			SeverityError, "property %s is typed by interface %s, which cannot be packed; use a concrete type",
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
			g.cw.Printf("w.MarshalProto(%s)", ref(expr))
		case isMarked(x) || hasPackMethod(x):
			g.cw.Printf("%s.PackSerializedBytes(w)", expr)
		default:
			d := g.diag(DiagMissingPackingMethod, "no packing strategy",
				SeverityError, "type %s of property %s has no PackSerializedBytes method and does not embed fxevents.Serializable",
				[]any{g.fmtType(x), p.name()}, pos)
			g.emitPanic(d)
		}
	}
}

func (g *generator) emitWriteSequence(p *property, named *types.Named, elem types.Type, expr string, pos token.Pos) {
	pfx := identPrefix(expr)
	if named != nil {
		g.cw.Printf("w.Len(%s)", countExpr(named, expr))
	} else {
		g.cw.Printf("w.Len(len(%s))", expr)
	}
	g.cw.Begin("for _, %sEntry := range %s", pfx, expr)
	g.emitWrite(p, elem, pfx+"Entry", pos, nil)
	g.cw.End()
}

func (g *generator) emitWriteMap(p *property, named *types.Named, m *types.Map, expr string, pos token.Pos) {
	pfx := identPrefix(expr)
	if named != nil {
		g.cw.Printf("w.Len(%s)", countExpr(named, expr))
	} else {
		g.cw.Printf("w.Len(len(%s))", expr)
	}
	g.cw.Begin("for %sKey, %sValue := range %s", pfx, pfx, expr)
	g.emitWrite(p, m.Key(), pfx+"Key", pos, nil)
	g.emitWrite(p, m.Elem(), pfx+"Value", pos, nil)
	g.cw.End()
}

// emitWriteSeq buffers a lazy sequence before writing so the element
// count can prefix the elements.
func (g *generator) emitWriteSeq(p *property, x *types.Named, expr string, pos token.Pos) {
	elem := x.TypeArgs().At(0)
	pfx := identPrefix(expr)
	items := pfx + "Items"
	g.cw.Printf("var %s []%s", items, g.tSet.typeString(elem))
	g.cw.Begin("for %sEntry := range %s", pfx, expr)
	g.cw.Printf("%s = append(%s, %sEntry)", items, items, pfx)
	g.cw.End()
	g.cw.Printf("w.Len(len(%s))", items)
	g.cw.Begin("for _, %sEntry := range %s", pfx, items)
	g.emitWrite(p, elem, pfx+"Entry", pos, nil)
	g.cw.End()
}
