package cel

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

var (
	// BuilderType is the CEL type of the template builder
	BuilderType = cel.OpaqueType("render.Builder")

	// ContentType is the CEL type of rendered content that has no CEL
	// equivalent, such as ordered objects returned by partials
	ContentType = cel.OpaqueType("render.Content")

	runtimeType = reflect.TypeOf(&render.Runtime{})
)

// execution tracks the first Go error raised by a builder call during one
// template execution
type execution struct {
	err error
}

func (x *execution) fail(err error) ref.Val {
	if x.err == nil {
		x.err = err
	}
	return types.NewErr("%s", err.Error())
}

// builderVal exposes a *render.Runtime to CEL
type builderVal struct {
	rt   *render.Runtime
	exec *execution
}

func (b builderVal) ConvertToNative(typeDesc reflect.Type) (any, error) {
	if typeDesc == runtimeType {
		return b.rt, nil
	}
	return nil, fmt.Errorf("type conversion error from builder to '%v'", typeDesc)
}

func (b builderVal) ConvertToType(typeVal ref.Type) ref.Val {
	if typeVal == types.TypeType {
		return BuilderType
	}
	return types.NewErr("type conversion error from builder to '%s'", typeVal.TypeName())
}

func (b builderVal) Equal(other ref.Val) ref.Val {
	o, ok := other.(builderVal)
	return types.Bool(ok && o.rt == b.rt)
}

func (b builderVal) Type() ref.Type {
	return BuilderType
}

func (b builderVal) Value() any {
	return b.rt
}

// child wraps a nested runtime sharing the same execution
func (b builderVal) child(rt *render.Runtime) builderVal {
	return builderVal{rt: rt, exec: b.exec}
}

// contentVal carries rendered content through CEL unchanged
type contentVal struct {
	content any
}

func (c contentVal) ConvertToNative(typeDesc reflect.Type) (any, error) {
	v := reflect.ValueOf(c.content)
	if v.IsValid() && v.Type().AssignableTo(typeDesc) {
		return c.content, nil
	}
	return nil, fmt.Errorf("type conversion error from content to '%v'", typeDesc)
}

func (c contentVal) ConvertToType(typeVal ref.Type) ref.Val {
	if typeVal == types.TypeType {
		return ContentType
	}
	return types.NewErr("type conversion error from content to '%s'", typeVal.TypeName())
}

func (c contentVal) Equal(other ref.Val) ref.Val {
	o, ok := other.(contentVal)
	return types.Bool(ok && reflect.DeepEqual(o.content, c.content))
}

func (c contentVal) Type() ref.Type {
	return ContentType
}

func (c contentVal) Value() any {
	return c.content
}

// adapter converts Go values into CEL values. Ordered objects stay opaque so
// their key order survives the round trip through CEL.
type adapter struct{}

func (a adapter) NativeToValue(value any) ref.Val {
	switch v := value.(type) {
	case ref.Val:
		return v
	case *render.Object:
		return contentVal{content: v}
	case *render.Runtime:
		return contentVal{content: v.Content()}
	case []any:
		return types.NewDynamicList(a, v)
	case map[string]any:
		return types.NewStringInterfaceMap(a, v)
	}

	val := types.DefaultTypeAdapter.NativeToValue(value)
	if types.IsError(val) {
		return contentVal{content: value}
	}
	return val
}

// toNative converts a CEL value into a plain Go value
func toNative(val ref.Val) (any, error) {
	switch v := val.(type) {
	case *types.Err:
		return nil, v
	case builderVal:
		return v.rt.Content(), nil
	case contentVal:
		return v.content, nil
	case types.Null:
		return nil, nil
	case types.Bool:
		return bool(v), nil
	case types.Int:
		return int64(v), nil
	case types.Uint:
		return uint64(v), nil
	case types.Double:
		return float64(v), nil
	case types.String:
		return string(v), nil
	case types.Bytes:
		return []byte(v), nil
	case types.Timestamp:
		return v.Time, nil
	case types.Duration:
		return v.Duration, nil
	case traits.Mapper:
		return mapToNative(v)
	case traits.Lister:
		return listToNative(v)
	}
	return val.Value(), nil
}

func mapToNative(m traits.Mapper) (map[string]any, error) {
	out := make(map[string]any)
	it := m.Iterator()
	for it.HasNext() == types.True {
		key := it.Next()
		value, err := toNative(m.Get(key))
		if err != nil {
			return nil, err
		}
		if s, ok := key.(types.String); ok {
			out[string(s)] = value
		} else {
			out[fmt.Sprint(key.Value())] = value
		}
	}
	return out, nil
}

func listToNative(l traits.Lister) ([]any, error) {
	out := []any{}
	it := l.Iterator()
	for it.HasNext() == types.True {
		value, err := toNative(it.Next())
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}
