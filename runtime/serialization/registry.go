package serialization

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	typesMu  sync.Mutex
	types    map[string]reflect.Type
	typeKeys map[reflect.Type]string
)

// Register makes T reconstructible from the wire via Reader.Any. It is
// typically called from an init function next to the type declaration.
func Register[T Packable]() {
	var value T

	t := reflect.TypeOf(value)

	typesMu.Lock()
	defer typesMu.Unlock()

	if types == nil {
		types = make(map[string]reflect.Type)
		typeKeys = make(map[reflect.Type]string)
	}

	key := typeKey(value)

	if existing, ok := types[key]; ok {
		if existing == t {
			return
		}
		panic(fmt.Sprintf("multiple types (%v and %v) share the type key %q", existing, t, key))
	}

	types[key] = t
	typeKeys[t] = key
}

func lookupType(key string) (reflect.Type, bool) {
	typesMu.Lock()
	defer typesMu.Unlock()
	t, ok := types[key]
	return t, ok
}

func isRegistered(value any) bool {
	typesMu.Lock()
	defer typesMu.Unlock()
	_, ok := typeKeys[reflect.TypeOf(value)]
	return ok
}

func typeKey(value any) string {
	t := reflect.TypeOf(value)

	pkg := t.PkgPath()
	if pkg == "" && t.Kind() == reflect.Pointer {
		pkg = t.Elem().PkgPath()
	}

	return fmt.Sprintf("%s(%s)", t.String(), pkg)
}
