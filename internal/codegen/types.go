package codegen

import (
	"fmt"
	"go/types"
	"strings"
	"unicode"

	"golang.org/x/tools/go/packages"
)

const (
	markerPkgPath        = "github.com/frostylucas/fx-events"
	serializationPkgPath = "github.com/frostylucas/fx-events/runtime/serialization"
)

// typeSet tracks the imports of the generated file and qualifies type
// references against them.
type typeSet struct {
	pkg            *packages.Package
	imported       []importPkg
	importedByPath map[string]importPkg
	importedByName map[string]importPkg
}

// importPkg is one package imported by the generated code.
type importPkg struct {
	path  string
	pkg   string
	alias string
	local bool
}

func (i importPkg) name() string {
	if i.local {
		return ""
	} else if i.alias != "" {
		return i.alias
	}
	return i.pkg
}

func (i importPkg) qualify(member string) string {
	if i.local {
		return member
	}

	return fmt.Sprintf("%s.%s", i.name(), member)
}

func newTypeSet(pkg *packages.Package) *typeSet {
	return &typeSet{
		pkg:            pkg,
		importedByPath: make(map[string]importPkg),
		importedByName: make(map[string]importPkg),
	}
}

func (tSet *typeSet) importPackage(path, pkg string) importPkg {
	newImportPkg := func(path, pkg, alias string, local bool) importPkg {
		i := importPkg{
			path:  path,
			pkg:   pkg,
			alias: alias,
			local: local,
		}

		tSet.imported = append(tSet.imported, i)
		tSet.importedByPath[i.path] = i
		tSet.importedByName[i.name()] = i

		return i
	}

	if imp, ok := tSet.importedByPath[path]; ok {
		return imp
	}

	if _, ok := tSet.importedByName[pkg]; !ok {
		return newImportPkg(path, pkg, "", path == tSet.pkg.PkgPath)
	}

	var alias string
	counter := 1
	for {
		alias = fmt.Sprintf("%s%d", pkg, counter)
		if _, ok := tSet.importedByName[alias]; !ok {
			break
		}
		counter++
	}

	return newImportPkg(path, pkg, alias, path == tSet.pkg.PkgPath)
}

func (tSet *typeSet) imports() []importPkg {
	return tSet.imported
}

// typeString renders t for the generated file, registering any imports
// it pulls in. Generic arguments are rendered recursively the same way.
func (tSet *typeSet) typeString(t types.Type) string {
	qualifier := func(p *types.Package) string {
		if p == tSet.pkg.Types {
			return ""
		}
		return tSet.importPackage(p.Path(), p.Name()).name()
	}
	return types.TypeString(t, qualifier)
}

// qualifiedName is the strategy-registry key for t: the defining
// package path and type name, with a backtick arity suffix for
// instantiated generic types (e.g. "time.Time", "example.com/p.Pair`2").
func qualifiedName(t types.Type) string {
	n, ok := t.(*types.Named)
	if !ok {
		return t.String()
	}
	name := n.Obj().Name()
	if pkg := n.Obj().Pkg(); pkg != nil {
		name = pkg.Path() + "." + name
	}
	if args := n.TypeArgs(); args.Len() > 0 {
		name = fmt.Sprintf("%s`%d", name, args.Len())
	}
	return name
}

func isNamedType(t types.Type, pkgPath, name string, arity int) bool {
	n, ok := t.(*types.Named)
	return ok &&
		n.Obj().Pkg() != nil &&
		n.Obj().Pkg().Path() == pkgPath &&
		n.Obj().Name() == name &&
		n.TypeArgs().Len() == arity
}

func isSerializableMarker(t types.Type) bool {
	return isNamedType(t, markerPkgPath, "Serializable", 0)
}

func isKeyValue(t types.Type) bool {
	return isNamedType(t, serializationPkgPath, "KeyValue", 2)
}

func isTuple2(t types.Type) bool {
	return isNamedType(t, serializationPkgPath, "Tuple2", 2)
}

func isIterSeq(t types.Type) bool {
	return isNamedType(t, "iter", "Seq", 1)
}

// isMarked reports whether t is a struct type that embeds the
// fxevents.Serializable marker, in this package or any other.
func isMarked(t types.Type) bool {
	n, ok := t.(*types.Named)
	if !ok {
		return false
	}
	st, ok := n.Underlying().(*types.Struct)
	if !ok {
		return false
	}
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Embedded() && isSerializableMarker(f.Type()) {
			return true
		}
	}
	return false
}

// declaredMethod returns the method declared directly on n (promoted
// methods from embedded types are not considered).
func declaredMethod(n *types.Named, name string) *types.Func {
	for i := 0; i < n.NumMethods(); i++ {
		if m := n.Method(i); m.Name() == name {
			return m
		}
	}
	return nil
}

// lookupMethod searches the full method set of t, including promoted
// and pointer-receiver methods.
func lookupMethod(t types.Type, name string) *types.Func {
	recv := t
	if _, ok := t.Underlying().(*types.Interface); !ok {
		recv = types.NewPointer(t)
	}
	ms := types.NewMethodSet(recv)
	for i := 0; i < ms.Len(); i++ {
		if f, ok := ms.At(i).Obj().(*types.Func); ok && f.Name() == name {
			return f
		}
	}
	return nil
}

// hasMethod matches by name and, when param types are given, by each
// parameter type in order.
func hasMethod(t types.Type, name string, params ...types.Type) bool {
	f := lookupMethod(t, name)
	if f == nil {
		return false
	}
	if len(params) == 0 {
		return true
	}
	sig := f.Type().(*types.Signature)
	if sig.Params().Len() != len(params) {
		return false
	}
	for i, p := range params {
		if !types.Identical(sig.Params().At(i).Type(), p) {
			return false
		}
	}
	return true
}

// isProtoMessage reports whether *t (or t itself) satisfies the proto
// message shape, detected by its ProtoReflect method.
func isProtoMessage(t types.Type) bool {
	return lookupMethod(t, "ProtoReflect") != nil
}

func hasPackMethod(t types.Type) bool {
	return hasCodecMethod(t, "PackSerializedBytes", "Writer")
}

func hasUnpackMethod(t types.Type) bool {
	return hasCodecMethod(t, "UnpackSerializedBytes", "Reader")
}

func hasCodecMethod(t types.Type, name, codecType string) bool {
	f := lookupMethod(t, name)
	if f == nil {
		return false
	}
	sig := f.Type().(*types.Signature)
	if sig.Params().Len() != 1 {
		return false
	}
	ptr, ok := sig.Params().At(0).Type().(*types.Pointer)
	return ok && qualifiedName(ptr.Elem()) == serializationPkgPath+"."+codecType
}

func isByteSlice(t types.Type) bool {
	s, ok := t.(*types.Slice)
	if !ok {
		return false
	}
	b, ok := s.Elem().(*types.Basic)
	return ok && b.Kind() == types.Byte
}

// identPrefix derives the stable lower-camel variable prefix for
// temporaries introduced under expr: "x.Foo.Bar" -> "xFooBar",
// "(*x.N)" -> "xN".
func identPrefix(expr string) string {
	var b strings.Builder
	boundary := false
	for _, r := range expr {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			boundary = b.Len() > 0
			continue
		}
		if boundary {
			r = unicode.ToUpper(r)
			boundary = false
		} else if b.Len() == 0 {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "v"
	}
	return b.String()
}

func ref(e string) string {
	if strings.HasPrefix(e, "*") {
		return e[1:]
	}
	return "&" + e
}
