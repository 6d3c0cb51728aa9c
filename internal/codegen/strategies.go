package codegen

import (
	"fmt"
	"go/token"
	"go/types"
)

// strategy is the pack/unpack emitter pair for one recognized composite
// type family, registered under its qualified generic name. Element
// types inside a strategy recurse through the ordinary emitters.
type strategy struct {
	serialize   func(g *generator, p *property, t *types.Named, expr string, pos token.Pos, sc *scope)
	deserialize func(g *generator, p *property, t *types.Named, expr string, pos token.Pos, sc *scope)
}

func defaultStrategies() map[string]strategy {
	m := map[string]strategy{
		"time.Time": {
			serialize: func(g *generator, _ *property, _ *types.Named, expr string, _ token.Pos, _ *scope) {
				g.cw.Printf("w.Int64(%s.UnixNano())", expr)
			},
			deserialize: func(g *generator, _ *property, _ *types.Named, expr string, _ token.Pos, _ *scope) {
				timePkg := g.tSet.importPackage("time", "time")
				g.cw.Printf("%s = %s(0, r.Int64())", expr, timePkg.qualify("Unix"))
			},
		},
		"time.Duration": {
			serialize: func(g *generator, _ *property, _ *types.Named, expr string, _ token.Pos, _ *scope) {
				g.cw.Printf("w.Int64(int64(%s))", expr)
			},
			deserialize: func(g *generator, _ *property, _ *types.Named, expr string, _ token.Pos, _ *scope) {
				timePkg := g.tSet.importPackage("time", "time")
				g.cw.Printf("%s = %s(r.Int64())", expr, timePkg.qualify("Duration"))
			},
		},
		serializationPkgPath + ".KeyValue`2": {
			serialize: func(g *generator, p *property, t *types.Named, expr string, pos token.Pos, _ *scope) {
				g.emitWrite(p, t.TypeArgs().At(0), expr+".Key", pos, nil)
				g.emitWrite(p, t.TypeArgs().At(1), expr+".Value", pos, nil)
			},
			deserialize: func(g *generator, p *property, t *types.Named, expr string, pos token.Pos, _ *scope) {
				g.emitRead(p, t.TypeArgs().At(0), expr+".Key", pos, nil)
				g.emitRead(p, t.TypeArgs().At(1), expr+".Value", pos, nil)
			},
		},
	}

	for n := 1; n <= 7; n++ {
		key := fmt.Sprintf("%s.Tuple%d`%d", serializationPkgPath, n, n)
		m[key] = tupleStrategy(n)
	}

	return m
}

func tupleStrategy(arity int) strategy {
	return strategy{
		serialize: func(g *generator, p *property, t *types.Named, expr string, pos token.Pos, _ *scope) {
			for i := 0; i < arity; i++ {
				g.emitWrite(p, t.TypeArgs().At(i), fmt.Sprintf("%s.V%d", expr, i+1), pos, nil)
			}
		},
		deserialize: func(g *generator, p *property, t *types.Named, expr string, pos token.Pos, _ *scope) {
			for i := 0; i < arity; i++ {
				g.emitRead(p, t.TypeArgs().At(i), fmt.Sprintf("%s.V%d", expr, i+1), pos, nil)
			}
		},
	}
}
