package bridge

import (
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"

	"github.com/dop251/goja"
)

var reflectTypeMap = reflect.TypeOf(map[string]any{})

// ToEngine builds the engine-native equivalent of a host value. Object
// entries are defined as own data properties in key order, so keys such as
// "__proto__" stay plain data.
func ToEngine(vm *goja.Runtime, v Value) (goja.Value, error) {
	return toEngine(vm, v, "$", 0)
}

func toEngine(vm *goja.Runtime, v Value, path string, depth int) (goja.Value, error) {
	if depth > MaxDepth {
		return nil, unsupported(path, "nesting exceeds %d levels", MaxDepth)
	}

	switch x := normalize(v).(type) {
	case nil:
		return goja.Null(), nil
	case bool, string:
		return vm.ToValue(x), nil
	case float64:
		return vm.ToValue(x), nil
	case []any:
		items := make([]any, len(x))
		for i, item := range x {
			ev, err := toEngine(vm, item, indexPath(path, i), depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = ev
		}
		return vm.NewArray(items...), nil
	case *Object:
		obj := vm.NewObject()
		var err error
		x.Range(func(k string, item Value) bool {
			var ev goja.Value
			ev, err = toEngine(vm, item, childPath(path, k), depth+1)
			if err != nil {
				return false
			}
			err = obj.DefineDataProperty(k, ev, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return obj, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := vm.NewObject()
		for _, k := range keys {
			ev, err := toEngine(vm, x[k], childPath(path, k), depth+1)
			if err != nil {
				return nil, err
			}
			if err := obj.DefineDataProperty(k, ev, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}
	return nil, unsupported(path, "unsupported host type %T", v)
}

// FromEngine converts an engine value into a host value following
// JSON.stringify semantics where JSON has an answer: undefined becomes null
// at the top level and in arrays and is dropped from objects, and toJSON is
// honoured. Values JSON.stringify would silently mangle (functions,
// symbols, BigInts, promises, non-finite numbers, cycles, wrapped Go
// objects) fail with *MarshalError.
func FromEngine(vm *goja.Runtime, v goja.Value) (Value, error) {
	c := &fromEngine{vm: vm, seen: make(map[*goja.Object]struct{})}
	var (
		out Value
		err error
	)
	// Property reads run getters, which may throw.
	if ex := vm.Try(func() {
		out, _, err = c.convert(v, "$", "", 0, true)
	}); ex != nil {
		return nil, unsupported("$", "property access threw: %v", ex.Value())
	}
	return out, err
}

type fromEngine struct {
	vm   *goja.Runtime
	seen map[*goja.Object]struct{}
}

// convert returns omit=true for undefined so the caller can apply the
// container's rule.
func (c *fromEngine) convert(v goja.Value, path, key string, depth int, callToJSON bool) (out Value, omit bool, err error) {
	if depth > MaxDepth {
		return nil, false, unsupported(path, "nesting exceeds %d levels", MaxDepth)
	}
	if v == nil || goja.IsUndefined(v) {
		return nil, true, nil
	}
	if goja.IsNull(v) {
		return nil, false, nil
	}

	obj, isObject := v.(*goja.Object)
	if !isObject {
		out, err := primitive(v, path)
		return out, false, err
	}

	if callToJSON {
		if toJSON, ok := goja.AssertFunction(obj.Get("toJSON")); ok {
			replaced, err := toJSON(obj, c.vm.ToValue(key))
			if err != nil {
				return nil, false, unsupported(path, "toJSON threw: %v", err)
			}
			return c.convert(replaced, path, key, depth, false)
		}
	}

	if _, ok := goja.AssertFunction(obj); ok {
		return nil, false, unsupported(path, "function")
	}

	if _, cyclic := c.seen[obj]; cyclic {
		return nil, false, unsupported(path, "cyclic structure")
	}
	c.seen[obj] = struct{}{}
	defer delete(c.seen, obj)

	switch obj.ClassName() {
	case "Array":
		length := obj.Get("length").ToInteger()
		if length > MaxArrayLength {
			return nil, false, unsupported(path, "array length %d exceeds %d", length, MaxArrayLength)
		}
		var arr []any
		for i := 0; i < int(length); i++ {
			item, _, err := c.convert(obj.Get(strconv.Itoa(i)), indexPath(path, i), strconv.Itoa(i), depth+1, true)
			if err != nil {
				return nil, false, err
			}
			arr = append(arr, item)
		}
		if arr == nil {
			arr = []any{}
		}
		return arr, false, nil
	case "Promise":
		return nil, false, unsupported(path, "promise")
	case "Number", "String", "Boolean":
		valueOf, _ := goja.AssertFunction(obj.Get("valueOf"))
		if valueOf == nil {
			return nil, false, unsupported(path, "boxed primitive without valueOf")
		}
		prim, err := valueOf(obj)
		if err != nil {
			return nil, false, unsupported(path, "valueOf threw: %v", err)
		}
		out, err := primitive(prim, path)
		return out, false, err
	}

	if t := obj.ExportType(); t != nil && t != reflectTypeMap {
		return nil, false, unsupported(path, "engine handle of type %s", t)
	}

	result := NewObject()
	for _, k := range obj.Keys() {
		item, skip, err := c.convert(obj.Get(k), childPath(path, k), k, depth+1, true)
		if err != nil {
			return nil, false, err
		}
		if skip {
			continue
		}
		result.Set(k, item)
	}
	return result, false, nil
}

func primitive(v goja.Value, path string) (Value, error) {
	if _, ok := v.(*goja.Symbol); ok {
		return nil, unsupported(path, "symbol")
	}

	switch x := v.Export().(type) {
	case bool:
		return x, nil
	case string:
		return x, nil
	case int64:
		return float64(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, unsupported(path, "non-finite number %v", x)
		}
		return x, nil
	case *big.Int:
		return nil, unsupported(path, "bigint")
	default:
		return nil, unsupported(path, "unsupported primitive %T", x)
	}
}
