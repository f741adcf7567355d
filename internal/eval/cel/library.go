package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

// maxHelperArgs is the largest number of arguments json.helper accepts
const maxHelperArgs = 5

// builderFunctions declares the builder methods available to templates
func builderFunctions() []cel.EnvOption {
	helperOverloads := make([]cel.FunctionOpt, 0, maxHelperArgs+1)
	for n := 0; n <= maxHelperArgs; n++ {
		argTypes := []*cel.Type{BuilderType, cel.StringType}
		for i := 0; i < n; i++ {
			argTypes = append(argTypes, cel.DynType)
		}
		helperOverloads = append(helperOverloads, cel.MemberOverload(
			fmt.Sprintf("builder_helper_%d", n),
			argTypes,
			cel.DynType,
			cel.FunctionBinding(callHelper),
		))
	}

	return []cel.EnvOption{
		cel.Function("set",
			cel.MemberOverload("builder_set_value",
				[]*cel.Type{BuilderType, cel.DynType}, BuilderType,
				cel.BinaryBinding(setValue)),
			cel.MemberOverload("builder_set_key_value",
				[]*cel.Type{BuilderType, cel.StringType, cel.DynType}, BuilderType,
				cel.FunctionBinding(setKeyValue)),
		),
		cel.Function("child",
			cel.MemberOverload("builder_child",
				[]*cel.Type{BuilderType}, BuilderType,
				cel.UnaryBinding(newChild)),
		),
		cel.Function("array",
			cel.MemberOverload("builder_array",
				[]*cel.Type{BuilderType, cel.DynType}, cel.ListType(cel.DynType),
				cel.BinaryBinding(buildArray)),
			cel.MemberOverload("builder_array_partial",
				[]*cel.Type{BuilderType, cel.DynType, cel.StringType}, cel.ListType(cel.DynType),
				cel.FunctionBinding(buildArrayWithPartial)),
		),
		cel.Function("extract",
			cel.MemberOverload("builder_extract",
				[]*cel.Type{BuilderType, cel.DynType, cel.ListType(cel.StringType)}, BuilderType,
				cel.FunctionBinding(extract)),
		),
		cel.Function("helper", helperOverloads...),
		cel.Function("partial",
			cel.MemberOverload("builder_partial",
				[]*cel.Type{BuilderType, cel.StringType, cel.DynType}, cel.DynType,
				cel.FunctionBinding(renderPartial)),
		),
	}
}

func builderArg(val ref.Val) (builderVal, error) {
	b, ok := val.(builderVal)
	if !ok {
		return builderVal{}, fmt.Errorf("expected builder, got %s", val.Type().TypeName())
	}
	return b, nil
}

func stringArg(val ref.Val) (string, error) {
	s, ok := val.(types.String)
	if !ok {
		return "", fmt.Errorf("expected string, got %s", val.Type().TypeName())
	}
	return string(s), nil
}

// noSuchBuilder reports a binding invoked without a builder receiver
func noSuchBuilder(err error) ref.Val {
	return types.NewErr("%s", err.Error())
}

func setValue(lhs, rhs ref.Val) ref.Val {
	b, err := builderArg(lhs)
	if err != nil {
		return noSuchBuilder(err)
	}

	value, err := toNative(rhs)
	if err != nil {
		return b.exec.fail(err)
	}

	if err := b.rt.Set(value); err != nil {
		return b.exec.fail(err)
	}
	return b
}

func setKeyValue(args ...ref.Val) ref.Val {
	b, err := builderArg(args[0])
	if err != nil {
		return noSuchBuilder(err)
	}

	key, err := stringArg(args[1])
	if err != nil {
		return b.exec.fail(err)
	}

	value, err := toNative(args[2])
	if err != nil {
		return b.exec.fail(err)
	}

	if err := b.rt.SetKey(key, value); err != nil {
		return b.exec.fail(err)
	}
	return b
}

func newChild(val ref.Val) ref.Val {
	b, err := builderArg(val)
	if err != nil {
		return noSuchBuilder(err)
	}
	return b.child(b.rt.Child())
}

func buildArray(lhs, rhs ref.Val) ref.Val {
	b, err := builderArg(lhs)
	if err != nil {
		return noSuchBuilder(err)
	}

	items, err := toNative(rhs)
	if err != nil {
		return b.exec.fail(err)
	}

	out, err := b.rt.Array(items, nil)
	if err != nil {
		return b.exec.fail(err)
	}
	return types.NewDynamicList(adapter{}, out)
}

func buildArrayWithPartial(args ...ref.Val) ref.Val {
	b, err := builderArg(args[0])
	if err != nil {
		return noSuchBuilder(err)
	}

	items, err := toNative(args[1])
	if err != nil {
		return b.exec.fail(err)
	}

	name, err := stringArg(args[2])
	if err != nil {
		return b.exec.fail(err)
	}

	out, err := b.rt.Array(items, func(item *render.Runtime, element any) error {
		content, err := item.Partial(name, element)
		if err != nil {
			return err
		}
		return item.Set(content)
	})
	if err != nil {
		return b.exec.fail(err)
	}
	return types.NewDynamicList(adapter{}, out)
}

func extract(args ...ref.Val) ref.Val {
	b, err := builderArg(args[0])
	if err != nil {
		return noSuchBuilder(err)
	}

	source, err := toNative(args[1])
	if err != nil {
		return b.exec.fail(err)
	}

	rawKeys, err := toNative(args[2])
	if err != nil {
		return b.exec.fail(err)
	}

	list, _ := rawKeys.([]any)
	keys := make([]string, 0, len(list))
	for _, k := range list {
		s, ok := k.(string)
		if !ok {
			return b.exec.fail(fmt.Errorf("extract keys must be strings, got %T", k))
		}
		keys = append(keys, s)
	}

	if err := b.rt.Extract(source, keys...); err != nil {
		return b.exec.fail(err)
	}
	return b
}

func callHelper(args ...ref.Val) ref.Val {
	b, err := builderArg(args[0])
	if err != nil {
		return noSuchBuilder(err)
	}

	name, err := stringArg(args[1])
	if err != nil {
		return b.exec.fail(err)
	}

	helperArgs := make([]any, 0, len(args)-2)
	for _, arg := range args[2:] {
		value, err := toNative(arg)
		if err != nil {
			return b.exec.fail(err)
		}
		helperArgs = append(helperArgs, value)
	}

	result, err := b.rt.Helper(name, helperArgs...)
	if err != nil {
		return b.exec.fail(err)
	}
	return adapter{}.NativeToValue(result)
}

func renderPartial(args ...ref.Val) ref.Val {
	b, err := builderArg(args[0])
	if err != nil {
		return noSuchBuilder(err)
	}

	name, err := stringArg(args[1])
	if err != nil {
		return b.exec.fail(err)
	}

	data, err := toNative(args[2])
	if err != nil {
		return b.exec.fail(err)
	}

	content, err := b.rt.Partial(name, data)
	if err != nil {
		return b.exec.fail(err)
	}
	return adapter{}.NativeToValue(content)
}
