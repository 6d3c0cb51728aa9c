package codegen

import (
	"bytes"
	"fmt"
	"strings"
)

// codeWriter is an append-only indented source buffer. Emission always
// goes through Printf/Begin/End so the indentation of the generated
// file stays consistent without a format.Source pass.
type codeWriter struct {
	buf    bytes.Buffer
	indent int
}

func newCodeWriter() *codeWriter {
	return &codeWriter{}
}

func (cw *codeWriter) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if line == "" {
		cw.buf.WriteByte('\n')
		return
	}
	cw.buf.WriteString(strings.Repeat("\t", cw.indent))
	cw.buf.WriteString(line)
	cw.buf.WriteByte('\n')
}

// Begin opens a braced block. An empty header opens a bare scope.
func (cw *codeWriter) Begin(format string, args ...any) {
	header := fmt.Sprintf(format, args...)
	if header == "" {
		cw.Printf("{")
	} else {
		cw.Printf("%s {", header)
	}
	cw.indent++
}

// Else closes the current branch and opens its else branch at the same
// depth.
func (cw *codeWriter) Else() {
	cw.indent--
	cw.Printf("} else {")
	cw.indent++
}

func (cw *codeWriter) End() {
	if cw.indent == 0 {
		panic("codeWriter: End without Begin")
	}
	cw.indent--
	cw.Printf("}")
}

func (cw *codeWriter) String() string {
	return cw.buf.String()
}

// scope records the block depth at a dispatch boundary. Close ends
// every block opened since, so a dispatch that opened zero, one, or two
// conditional blocks always closes exactly what it opened, on every
// exit path including diagnostic bail-outs.
type scope struct {
	cw     *codeWriter
	depth  int
	closed bool
}

// Encapsulate captures the current depth as a fresh scope token.
func (cw *codeWriter) Encapsulate() *scope {
	return &scope{cw: cw, depth: cw.indent}
}

// Reference returns the given token, or a fresh one when the caller
// did not pass one down.
func (cw *codeWriter) Reference(s *scope) *scope {
	if s != nil {
		return s
	}
	return cw.Encapsulate()
}

func (s *scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for s.cw.indent > s.depth {
		s.cw.End()
	}
}
