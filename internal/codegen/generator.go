package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"strconv"

	"golang.org/x/tools/go/packages"

	"github.com/frostylucas/fx-events/internal/files"
)

const Usage = `Generate pack/unpack methods for fx-events serializable types.
Usage:
  fxevents generate [packages]

Description:
  Inspect the listed packages (default: the package in the current
  directory) for struct types embedding fxevents.Serializable and write
  a generated file with their PackSerializedBytes and
  UnpackSerializedBytes methods.

Examples:
  # Generate code for the package in the current directory.
  fxevents generate

  # Generate code for all packages under the current directory.
  fxevents generate ./...`

// generator holds the per-package generation state: the work items
// discovered during the syntax walk, the accumulated diagnostics, and
// the output buffer.
type generator struct {
	pkg        *packages.Package
	fileSet    *token.FileSet
	tSet       *typeSet
	opts       Options
	strategies map[string]strategy
	items      []workItem
	diags      []Diagnostic
	cw         *codeWriter
}

// workItem is one candidate type that passed the marking
// preconditions. It is consumed exactly once during emission.
type workItem struct {
	typ  *types.Named
	spec *ast.TypeSpec
}

// Generate runs the engine over the named packages and writes one
// generated file per package that has candidates. Diagnostics are
// returned even when generation succeeds; candidates with a
// SerializationMarking diagnostic produce no output.
func Generate(dir string, pkgs []string, opts Options) ([]Diagnostic, error) {
	opts = opts.withDefaults()

	fSet := token.NewFileSet()
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedSyntax | packages.NeedImports |
			packages.NeedTypes | packages.NeedTypesInfo,
		Dir:        dir,
		BuildFlags: []string{"--tags=ignorefxeventsgen"},
		Fset:       fSet,
		ParseFile:  skipGeneratedFile(opts.Output),
	}

	pkgList, err := packages.Load(cfg, pkgs...)
	if err != nil {
		return nil, fmt.Errorf("packages.Load: %w", err)
	}

	var diags []Diagnostic
	var errs []error
	for _, pkg := range pkgList {
		g, err := newGenerator(pkg, fSet, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := g.generate(); err != nil {
			errs = append(errs, err)
		}
		diags = append(diags, g.diags...)
	}

	return diags, errors.Join(errs...)
}

// skipGeneratedFile parses a stale generated file package-clause-only
// so its declarations never feed back into type information.
func skipGeneratedFile(output string) func(*token.FileSet, string, []byte) (*ast.File, error) {
	return func(fSet *token.FileSet, filename string, src []byte) (*ast.File, error) {
		if filepath.Base(filename) == output {
			return parser.ParseFile(fSet, filename, src, parser.PackageClauseOnly)
		}
		return parser.ParseFile(fSet, filename, src, parser.ParseComments|parser.DeclarationErrors)
	}
}

func newGenerator(pkg *packages.Package, fSet *token.FileSet, opts Options) (*generator, error) {
	var errs []error
	for _, err := range pkg.Errors {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	g := &generator{
		pkg:        pkg,
		fileSet:    fSet,
		tSet:       newTypeSet(pkg),
		opts:       opts,
		strategies: defaultStrategies(),
		cw:         newCodeWriter(),
	}

	for _, file := range pkg.Syntax {
		filename := fSet.Position(file.Package).Filename
		if filepath.Base(filename) == opts.Output {
			continue
		}
		g.findSerializables(file)
	}

	return g, nil
}

// findSerializables collects candidates in declaration order, so the
// emitted file and the diagnostic list are deterministic for a fixed
// input.
func (g *generator) findSerializables(file *ast.File) {
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}

		for _, spec := range genDecl.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}

			def, ok := g.pkg.TypesInfo.Defs[ts.Name]
			if !ok {
				continue
			}
			n, ok := def.Type().(*types.Named)
			if !ok {
				// Type aliases carry no method set to augment.
				continue
			}

			st, ok := g.pkg.TypesInfo.Types[ts.Type].Type.(*types.Struct)
			if !ok {
				continue
			}

			marked := false
			for i := 0; i < st.NumFields(); i++ {
				f := st.Field(i)
				if f.Embedded() && isSerializableMarker(f.Type()) {
					marked = true
					break
				}
			}
			if !marked {
				continue
			}

			if n.TypeParams().Len() != 0 {
				g.diag(DiagSerializationMarking, "serializable marking requires a plain struct",
					SeverityError, "generic type %s cannot embed fxevents.Serializable",
					[]any{n.Obj().Name()}, ts.Pos())
				continue
			}

			g.items = append(g.items, workItem{typ: n, spec: ts})
		}
	}
}

func (g *generator) serialization() importPkg {
	return g.tSet.importPackage(serializationPkgPath, "serialization")
}

func (g *generator) generate() error {
	src, ok := g.source()
	if !ok {
		return nil
	}

	filename := filepath.Join(g.pkgDir(), g.opts.Output)
	dst := files.NewWriter(filename)
	defer dst.Cleanup()

	if _, err := dst.Write(src); err != nil {
		return err
	}

	return dst.Close()
}

// source emits every work item and assembles the finished compilation
// unit. The header comes last because emission decides the import set.
func (g *generator) source() ([]byte, bool) {
	if len(g.items) == 0 {
		return nil, false
	}

	for _, item := range g.items {
		g.emitType(item)
	}

	var out bytes.Buffer
	out.Write(g.header())
	out.WriteString(g.cw.String())

	return out.Bytes(), true
}

func (g *generator) header() []byte {
	var b bytes.Buffer
	p := func(format string, args ...any) {
		_, _ = fmt.Fprintln(&b, fmt.Sprintf(format, args...))
	}

	p(`// Code generated by "fxevents generate". DO NOT EDIT.`)
	p(``)
	p(`//go:build !ignorefxeventsgen`)
	p(``)
	p(`package %s`, g.pkg.Name)
	p(``)
	p(`import (`)
	for _, imp := range g.tSet.imports() {
		switch {
		case imp.local:
		case imp.alias == "":
			p("\t%s", strconv.Quote(imp.path))
		default:
			p("\t%s %s", imp.alias, strconv.Quote(imp.path))
		}
	}
	p(`)`)

	return b.Bytes()
}

func (g *generator) emitType(item workItem) {
	n := item.typ
	name := n.Obj().Name()
	props := g.properties(n)
	shouldOverride := hasSerializableBase(n)
	ser := g.serialization()
	cw := g.cw

	cw.Printf("")
	cw.Printf("var _ %s = (*%s)(nil)", ser.qualify("Packable"), name)

	cw.Printf("")
	cw.Printf("// New%sFromReader unpacks a %s from r.", name, name)
	cw.Begin("func New%sFromReader(r *%s) (x *%s, err error)", name, ser.qualify("Reader"), name)
	cw.Printf("defer func() { err = %s(recover()) }()", ser.qualify("CatchPanics"))
	cw.Printf("x = new(%s)", name)
	cw.Printf("x.UnpackSerializedBytes(r)")
	cw.Printf("return x, nil")
	cw.End()

	if declaredMethod(n, "PackSerializedBytes") == nil {
		cw.Printf("")
		if shouldOverride {
			cw.Printf("// PackSerializedBytes shadows the promoted method and packs only")
			cw.Printf("// %s's own fields; the embedded type packs its own.", name)
		}
		cw.Begin("func (x *%s) PackSerializedBytes(w *%s)", name, ser.qualify("Writer"))
		for i := range props {
			p := &props[i]
			if p.opts.skipWrite {
				continue
			}
			sc := cw.Encapsulate()
			g.emitWrite(p, p.field.Type(), "x."+p.name(), p.field.Pos(), sc)
			sc.Close()
		}
		cw.End()
	}

	if declaredMethod(n, "UnpackSerializedBytes") == nil {
		cw.Printf("")
		if shouldOverride {
			cw.Printf("// UnpackSerializedBytes shadows the promoted method and unpacks")
			cw.Printf("// only %s's own fields.", name)
		}
		cw.Begin("func (x *%s) UnpackSerializedBytes(r *%s)", name, ser.qualify("Reader"))
		for i := range props {
			p := &props[i]
			if p.opts.skipRead {
				continue
			}
			sc := cw.Encapsulate()
			g.emitRead(p, p.field.Type(), "x."+p.name(), p.field.Pos(), sc)
			sc.Close()
		}
		cw.End()
	}
}

func (g *generator) pkgDir() string {
	if len(g.pkg.Syntax) == 0 {
		panic(fmt.Errorf("package %v has no source files", g.pkg))
	}

	f := g.pkg.Syntax[0]
	fName := g.fileSet.Position(f.Package).Filename

	return filepath.Dir(fName)
}
