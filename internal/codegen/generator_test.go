package codegen

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/go/packages"
)

// The marker and codec packages are compiled from trimmed sources so
// candidate fixtures can be type-checked without touching the real
// module graph.
const markerSrc = `package fxevents

type Serializable struct{}
`

const serializationSrc = `package serialization

type Writer struct{}

func (w *Writer) Int32(val int32) {}

type Reader struct{}

type KeyValue[K comparable, V any] struct {
	Key   K
	Value V
}

type Tuple1[T1 any] struct {
	V1 T1
}

type Tuple2[T1, T2 any] struct {
	V1 T1
	V2 T2
}

type Tuple3[T1, T2, T3 any] struct {
	V1 T1
	V2 T2
	V3 T3
}
`

type testImporter struct {
	pkgs map[string]*types.Package
	std  types.Importer
}

func (i *testImporter) Import(path string) (*types.Package, error) {
	if p, ok := i.pkgs[path]; ok {
		return p, nil
	}
	return i.std.Import(path)
}

func checkTestPackage(t *testing.T, src string) (*packages.Package, *token.FileSet) {
	t.Helper()

	fSet := token.NewFileSet()
	imp := &testImporter{pkgs: map[string]*types.Package{}, std: importer.Default()}

	compile := func(path, name, src string) *types.Package {
		file, err := parser.ParseFile(fSet, name+".go", src, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		conf := types.Config{Importer: imp}
		pkg, err := conf.Check(path, fSet, []*ast.File{file}, nil)
		if err != nil {
			t.Fatalf("check %s: %v", name, err)
		}
		return pkg
	}

	imp.pkgs[markerPkgPath] = compile(markerPkgPath, "fxevents", markerSrc)
	imp.pkgs[serializationPkgPath] = compile(serializationPkgPath, "serialization", serializationSrc)

	file, err := parser.ParseFile(fSet, "demo.go", src, 0)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	info := &types.Info{
		Types: map[ast.Expr]types.TypeAndValue{},
		Defs:  map[*ast.Ident]types.Object{},
		Uses:  map[*ast.Ident]types.Object{},
	}
	conf := types.Config{Importer: imp}
	tPkg, err := conf.Check("example.com/demo", fSet, []*ast.File{file}, info)
	if err != nil {
		t.Fatalf("check fixture: %v", err)
	}

	return &packages.Package{
		Name:      "demo",
		PkgPath:   "example.com/demo",
		Fset:      fSet,
		Types:     tPkg,
		TypesInfo: info,
		Syntax:    []*ast.File{file},
	}, fSet
}

func generateSource(t *testing.T, src string) (string, []Diagnostic) {
	t.Helper()

	pkg, fSet := checkTestPackage(t, src)
	g, err := newGenerator(pkg, fSet, Options{}.withDefaults())
	if err != nil {
		t.Fatalf("newGenerator: %v", err)
	}
	out, _ := g.source()
	return string(out), g.diags
}

func wantContains(t *testing.T, out string, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if !strings.Contains(out, line) {
			t.Errorf("generated source missing %q\n%s", line, out)
		}
	}
}

func wantExcludes(t *testing.T, out string, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if strings.Contains(out, line) {
			t.Errorf("generated source should not contain %q\n%s", line, out)
		}
	}
}

const markerImport = `import fxevents "github.com/frostylucas/fx-events"`

func TestGenerateBasic(t *testing.T) {
	out, diags := generateSource(t, `package demo

`+markerImport+`

type A struct {
	fxevents.Serializable

	X int32
	Y string
}
`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	wantContains(t, out,
		`// Code generated by "fxevents generate". DO NOT EDIT.`,
		"//go:build !ignorefxeventsgen",
		"package demo",
		`"github.com/frostylucas/fx-events/runtime/serialization"`,
		"var _ serialization.Packable = (*A)(nil)",
		"func NewAFromReader(r *serialization.Reader) (x *A, err error) {",
		"defer func() { err = serialization.CatchPanics(recover()) }()",
		"func (x *A) PackSerializedBytes(w *serialization.Writer) {",
		"w.Int32(x.X)",
		"w.String(x.Y)",
		"func (x *A) UnpackSerializedBytes(r *serialization.Reader) {",
		"x.X = r.Int32()",
		"x.Y = r.String()",
	)

	// Declaration order is wire order.
	if strings.Index(out, "w.Int32(x.X)") > strings.Index(out, "w.String(x.Y)") {
		t.Error("fields packed out of declaration order")
	}
}

func TestGeneratePointer(t *testing.T) {
	out, diags := generateSource(t, `package demo

`+markerImport+`

type B struct {
	fxevents.Serializable

	N *int32
}
`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	wantContains(t, out,
		"if x.N == nil {",
		"w.Bool(false)",
		"w.Bool(true)",
		"w.Int32((*x.N))",
		"if r.Bool() {",
		"var xNTransient int32",
		"xNTransient = r.Int32()",
		"x.N = &xNTransient",
	)
}

func TestGenerateSlice(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type C struct {
	fxevents.Serializable

	L []int32
}
`)
	wantContains(t, out,
		"w.Len(len(x.L))",
		"for _, xLEntry := range x.L {",
		"w.Int32(xLEntry)",
		"xLLength := r.Len()",
		"x.L = make([]int32, xLLength)",
		"for xLIdx := 0; xLIdx < xLLength; xLIdx++ {",
		"x.L[xLIdx] = r.Int32()",
	)
}

func TestGenerateEnum(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type Color int32

const (
	Red Color = iota
	Green
)

type D struct {
	fxevents.Serializable

	C Color
}
`)
	wantContains(t, out,
		"w.Int32(int32(x.C))",
		"x.C = Color(r.Int32())",
	)
}

func TestGenerateByteSlice(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type E struct {
	fxevents.Serializable

	B []byte
}
`)
	wantContains(t, out,
		"w.Bytes(x.B)",
		"x.B = r.Bytes()",
	)
}

func TestGenerateInterfaceDiagnostic(t *testing.T) {
	out, diags := generateSource(t, `package demo

import "io"

`+markerImport+`

type F struct {
	fxevents.Serializable

	X io.Reader
}
`)
	if len(diags) != 2 {
		t.Fatalf("want 2 diagnostics (pack and unpack site), got %v", diags)
	}
	for _, d := range diags {
		if d.ID != DiagInterfaceProperties {
			t.Errorf("diagnostic id = %q", d.ID)
		}
		if d.Severity != SeverityError {
			t.Errorf("severity = %v", d.Severity)
		}
		if len(d.Locations) == 0 {
			t.Error("diagnostic has no location")
		}
	}
	wantContains(t, out, `panic("InterfaceProperties: `)
}

func TestGenerateGenericRejected(t *testing.T) {
	out, diags := generateSource(t, `package demo

`+markerImport+`

type G[T any] struct {
	fxevents.Serializable

	V T
}
`)
	if len(diags) != 1 || diags[0].ID != DiagSerializationMarking {
		t.Fatalf("diagnostics = %v", diags)
	}
	if out != "" {
		t.Errorf("no output expected for a rejected candidate, got:\n%s", out)
	}
}

func TestGenerateEmbeddedSerializableBase(t *testing.T) {
	out, diags := generateSource(t, `package demo

`+markerImport+`

type B struct {
	fxevents.Serializable

	N *int32
}

type H struct {
	fxevents.Serializable
	B

	Z int32
}
`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}

	// H's methods pack only H's own fields and shadow the promoted
	// pair; B still packs N through its own methods.
	hPack := out[strings.Index(out, "func (x *H) PackSerializedBytes"):]
	hPack = hPack[:strings.Index(hPack, "func (x *H) UnpackSerializedBytes")]
	wantContains(t, hPack, "w.Int32(x.Z)")
	wantExcludes(t, hPack, "x.N", "x.B")
	wantContains(t, out, "shadows the promoted method")
}

func TestGenerateEmbeddedPlainStruct(t *testing.T) {
	out, diags := generateSource(t, `package demo

`+markerImport+`

type Meta struct {
	CreatedAt int64
	internal  bool
}

type Event struct {
	fxevents.Serializable
	Meta

	Name string
}
`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	wantContains(t, out,
		"w.String(x.Name)",
		"w.Int64(x.CreatedAt)",
	)
	// Promoted fields follow own fields on the wire.
	if strings.Index(out, "w.String(x.Name)") > strings.Index(out, "w.Int64(x.CreatedAt)") {
		t.Error("promoted field packed before own field")
	}
	wantExcludes(t, out, "x.internal")
}

func TestGenerateHandAuthoredPack(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`
import "github.com/frostylucas/fx-events/runtime/serialization"

type W struct {
	fxevents.Serializable

	X int32
}

func (x *W) PackSerializedBytes(w *serialization.Writer) {
	w.Int32(x.X)
}
`)
	wantContains(t, out, "func (x *W) UnpackSerializedBytes")
	wantExcludes(t, out, "func (x *W) PackSerializedBytes")
}

func TestGenerateForceAndSkip(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type S struct {
	fxevents.Serializable

	Kept    int32
	Ignored int32 `+"`fx:\"-\"`"+`
	hidden  int32 `+"`fx:\"force,skipread\"`"+`
	private int32
}
`)
	wantContains(t, out,
		"w.Int32(x.Kept)",
		"w.Int32(x.hidden)",
	)
	wantExcludes(t, out,
		"x.Ignored",
		"x.private",
		"x.hidden = r.Int32()",
	)
}

func TestGenerateMap(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type M struct {
	fxevents.Serializable

	Scores map[string]int32
}
`)
	wantContains(t, out,
		"w.Len(len(x.Scores))",
		"for xScoresKey, xScoresValue := range x.Scores {",
		"w.String(xScoresKey)",
		"w.Int32(xScoresValue)",
		"x.Scores = make(map[string]int32, xScoresLength)",
		"x.Scores[xScoresKey] = xScoresValue",
	)
}

func TestGenerateTimeStrategies(t *testing.T) {
	out, _ := generateSource(t, `package demo

import "time"

`+markerImport+`

type T struct {
	fxevents.Serializable

	At  time.Time
	Ttl time.Duration
}
`)
	wantContains(t, out,
		"w.Int64(x.At.UnixNano())",
		"x.At = time.Unix(0, r.Int64())",
		"w.Int64(int64(x.Ttl))",
		"x.Ttl = time.Duration(r.Int64())",
		`"time"`,
	)
}

func TestGenerateKeyValueAndTuple(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`
import "github.com/frostylucas/fx-events/runtime/serialization"

type KV struct {
	fxevents.Serializable

	Pair  serialization.KeyValue[string, int32]
	Tup   serialization.Tuple2[int32, string]
	Three serialization.Tuple3[bool, int64, string]
}
`)
	wantContains(t, out,
		"w.String(x.Pair.Key)",
		"w.Int32(x.Pair.Value)",
		"x.Pair.Key = r.String()",
		"x.Pair.Value = r.Int32()",
		"w.Int32(x.Tup.V1)",
		"w.String(x.Tup.V2)",
		"x.Tup.V1 = r.Int32()",
		"w.Bool(x.Three.V1)",
		"w.Int64(x.Three.V2)",
		"w.String(x.Three.V3)",
	)
}

func TestGenerateCollectionAdd(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type Bag []int32

func (b *Bag) Add(v int32) { *b = append(*b, v) }

type C struct {
	fxevents.Serializable

	Items Bag
}
`)
	wantContains(t, out,
		"w.Len(len(x.Items))",
		"xItemsCount := r.Len()",
		"var xItemsTransient Bag",
		"xItemsTransient.Add(xItemsEntry)",
		"x.Items = xItemsTransient",
	)
}

func TestGenerateCollectionConstructor(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type Fixed []int32

func NewFixed(vs []int32) Fixed { return Fixed(vs) }

type C struct {
	fxevents.Serializable

	F Fixed
}
`)
	wantContains(t, out,
		"xFItems := make([]int32, xFCount)",
		"x.F = NewFixed(xFItems)",
	)
}

func TestGenerateNamedSliceFallback(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type Ints []int32

type C struct {
	fxevents.Serializable

	V Ints
}
`)
	wantContains(t, out,
		"x.V = make(Ints, xVCount)",
	)
}

func TestGenerateCollectionCountAccessor(t *testing.T) {
	out, _ := generateSource(t, `package demo

`+markerImport+`

type Bag []int32

func (b Bag) Count() int { return len(b) }

type C struct {
	fxevents.Serializable

	Items Bag
}
`)
	wantContains(t, out, "w.Len(x.Items.Count())")
}

func TestGenerateSeq(t *testing.T) {
	out, diags := generateSource(t, `package demo

import "iter"

`+markerImport+`

type C struct {
	fxevents.Serializable

	S iter.Seq[int32]
}
`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	wantContains(t, out,
		"var xSItems []int32",
		"for xSEntry := range x.S {",
		"w.Len(len(xSItems))",
		"x.S = slices.Values(xSItems)",
		`"slices"`,
	)
}

func TestGenerateCustomSeqDiagnostic(t *testing.T) {
	_, diags := generateSource(t, `package demo

`+markerImport+`

type MySeq func(yield func(int32) bool)

type C struct {
	fxevents.Serializable

	S MySeq
}
`)
	if len(diags) == 0 || diags[0].ID != DiagEnumerableProperties {
		t.Fatalf("diagnostics = %v", diags)
	}
}

func TestGenerateAnyDiagnostic(t *testing.T) {
	out, diags := generateSource(t, `package demo

`+markerImport+`

type C struct {
	fxevents.Serializable

	V any
}
`)
	if len(diags) == 0 || diags[0].ID != DiagMissingPackingMethod {
		t.Fatalf("diagnostics = %v", diags)
	}
	wantContains(t, out, `panic("MissingPackingMethod: `)
}

func TestGenerateUnmarkedCompositeDiagnostic(t *testing.T) {
	_, diags := generateSource(t, `package demo

`+markerImport+`

type Plain struct {
	X int32
}

type C struct {
	fxevents.Serializable

	P Plain
}
`)
	if len(diags) == 0 || diags[0].ID != DiagMissingPackingMethod {
		t.Fatalf("diagnostics = %v", diags)
	}
}

func TestGenerateNestedMarkedComposite(t *testing.T) {
	out, diags := generateSource(t, `package demo

`+markerImport+`

type Inner struct {
	fxevents.Serializable

	X int32
}

type Outer struct {
	fxevents.Serializable

	In Inner
}
`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	wantContains(t, out,
		"x.In.PackSerializedBytes(w)",
		"x.In.UnpackSerializedBytes(r)",
	)
}

func TestDiagnosticDeterminism(t *testing.T) {
	src := `package demo

import "io"

` + markerImport + `

type C struct {
	fxevents.Serializable

	A io.Reader
	B any
	D io.Writer
}
`
	_, first := generateSource(t, src)
	_, second := generateSource(t, src)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("diagnostics not deterministic (-first +second):\n%s", diff)
	}

	var ids []string
	for _, d := range first {
		ids = append(ids, d.ID)
	}
	want := []string{
		DiagInterfaceProperties, DiagMissingPackingMethod, DiagInterfaceProperties,
		DiagInterfaceProperties, DiagMissingPackingMethod, DiagInterfaceProperties,
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("diagnostic order (-want +got):\n%s", diff)
	}
}

func TestDiagnosticRendering(t *testing.T) {
	d := Diagnostic{
		ID:            DiagMissingPackingMethod,
		Title:         "no packing strategy",
		MessageFormat: "type %s of property %s has no pack method",
		Severity:      SeverityError,
		Args:          []any{"demo.Plain", "P"},
	}
	if got := d.Message(); got != "type demo.Plain of property P has no pack method" {
		t.Errorf("Message = %q", got)
	}
	if !strings.Contains(d.String(), "MissingPackingMethod") {
		t.Errorf("String = %q", d.String())
	}
}
