package codegen

import (
	"fmt"
	"go/token"
	"strings"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Stable diagnostic ids.
const (
	DiagSerializationMarking = "SerializationMarking"
	DiagInterfaceProperties  = "InterfaceProperties"
	DiagMissingPackingMethod = "MissingPackingMethod"
	DiagEnumerableProperties = "EnumerableProperties"
)

// Diagnostic is a located problem report. Diagnostics are accumulated
// rather than raised: generation continues for other candidates, and
// most diagnostic sites are additionally compiled into a panic
// statement in the generated code so a dead branch fails loudly if it
// is ever reached.
type Diagnostic struct {
	ID            string
	Title         string
	MessageFormat string
	Severity      Severity
	Locations     []token.Position
	Args          []any
}

func (d Diagnostic) Message() string {
	return fmt.Sprintf(d.MessageFormat, d.Args...)
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if len(d.Locations) > 0 {
		fmt.Fprintf(&b, "%s: ", d.Locations[0])
	}
	fmt.Fprintf(&b, "%s: %s: %s", d.Severity, d.ID, d.Message())
	return b.String()
}

// diag records a diagnostic and returns it so call sites can also emit
// the in-source panic statement.
func (g *generator) diag(id, title string, sev Severity, format string, args []any, positions ...token.Pos) Diagnostic {
	d := Diagnostic{
		ID:            id,
		Title:         title,
		MessageFormat: format,
		Severity:      sev,
		Args:          args,
	}
	for _, pos := range positions {
		d.Locations = append(d.Locations, g.fileSet.Position(pos))
	}
	g.diags = append(g.diags, d)
	return d
}

// emitPanic writes the runtime guard for a diagnostic site.
func (g *generator) emitPanic(d Diagnostic) {
	g.cw.Printf("panic(%q)", fmt.Sprintf("%s: %s", d.ID, d.Message()))
}
