// Package value recursively renders a runtime value handle (clr.Value)
// into the human-readable VariableNode tree the engine hands back for
// locals, arguments, and evaluation results.
package value

import (
	"fmt"
	"strings"

	"github.com/tacitsys/dncdbg-mcp/internal/clr"
	"github.com/tacitsys/dncdbg-mcp/internal/pdb"
	"github.com/tacitsys/dncdbg-mcp/pkg/types"
)

// MaxDepth bounds recursion; exceeding it renders the sentinel
// "<max depth>" with no children.
const MaxDepth = 3

// MaxArrayElements caps how many array elements are rendered; the
// element count is still shown in the value string.
const MaxArrayElements = 10

// Render produces the VariableNode for a single named value, starting a
// fresh recursion (depth 0, empty visited set).
func Render(name string, v clr.Value) types.VariableNode {
	return render(name, v, 0, map[uint64]bool{})
}

func maxDepthNode(name string) types.VariableNode {
	return types.VariableNode{Name: name, Value: types.RenderMaxDepth}
}

func errorNode(name string, err error) types.VariableNode {
	return types.VariableNode{Name: name, Value: fmt.Sprintf("<error: %v>", err)}
}

func cloneVisited(visited map[uint64]bool) map[uint64]bool {
	out := make(map[uint64]bool, len(visited)+1)
	for k := range visited {
		out[k] = true
	}
	return out
}

func render(name string, v clr.Value, depth int, visited map[uint64]bool) types.VariableNode {
	if depth > MaxDepth {
		return maxDepthNode(name)
	}
	if v == nil {
		return types.VariableNode{Name: name, Value: types.RenderNull}
	}

	elemType := v.GetType()

	switch elemType {
	case clr.ElementBoolean, clr.ElementChar,
		clr.ElementI1, clr.ElementU1, clr.ElementI2, clr.ElementU2,
		clr.ElementI4, clr.ElementU4, clr.ElementI8, clr.ElementU8,
		clr.ElementR4, clr.ElementR8:
		return renderGeneric(name, v, elemType)

	case clr.ElementString:
		return renderString(name, v)

	case clr.ElementSzArray, clr.ElementArray:
		return renderArray(name, v, depth, visited)

	case clr.ElementValueType:
		return renderStruct(name, v, depth, visited)

	case clr.ElementObject, clr.ElementClass:
		return renderReference(name, v, depth, visited)

	default:
		return types.VariableNode{Name: name, TypeName: typeNameFor(elemType), Value: types.RenderUnsupported}
	}
}

func renderGeneric(name string, v clr.Value, elemType clr.ElementType) types.VariableNode {
	gv, ok := v.(clr.GenericValue)
	if !ok {
		return errorNode(name, fmt.Errorf("value does not expose raw bytes"))
	}
	raw, err := gv.GetBytes()
	if err != nil {
		return errorNode(name, err)
	}
	return types.VariableNode{Name: name, TypeName: typeNameFor(elemType), Value: renderPrimitive(elemType, raw)}
}

func renderString(name string, v clr.Value) types.VariableNode {
	if sv, ok := v.(clr.StringValue); ok {
		s, err := sv.GetString()
		if err != nil {
			return errorNode(name, err)
		}
		return types.VariableNode{Name: name, TypeName: "string", Value: fmt.Sprintf("%q", s)}
	}

	rv, ok := v.(clr.ReferenceValue)
	if !ok {
		return errorNode(name, fmt.Errorf("string value is neither a direct nor reference view"))
	}
	isNull, err := rv.IsNull()
	if err != nil {
		return errorNode(name, err)
	}
	if isNull {
		return types.VariableNode{Name: name, TypeName: "string", Value: types.RenderNull}
	}
	deref, err := rv.Dereference()
	if err != nil {
		return errorNode(name, err)
	}
	return renderString(name, deref)
}

func renderArray(name string, v clr.Value, depth int, visited map[uint64]bool) types.VariableNode {
	av, ok := v.(clr.ArrayValue)
	if !ok {
		rv, isRef := v.(clr.ReferenceValue)
		if !isRef {
			return errorNode(name, fmt.Errorf("array value does not expose element access"))
		}
		isNull, err := rv.IsNull()
		if err != nil {
			return errorNode(name, err)
		}
		if isNull {
			return types.VariableNode{Name: name, TypeName: "array", Value: types.RenderNull}
		}
		deref, err := rv.Dereference()
		if err != nil {
			return errorNode(name, err)
		}
		return renderArray(name, deref, depth, visited)
	}

	count, err := av.GetCount()
	if err != nil {
		return errorNode(name, err)
	}
	elemType, _ := av.GetElementType()

	node := types.VariableNode{
		Name:     name,
		TypeName: fmt.Sprintf("%s[]", typeNameFor(elemType)),
		Value:    fmt.Sprintf("[%d elements]", count),
	}

	limit := count
	if limit > MaxArrayElements {
		limit = MaxArrayElements
	}
	for i := uint32(0); i < limit; i++ {
		elem, err := av.GetElement(i)
		if err != nil {
			node.Children = append(node.Children, errorNode(fmt.Sprintf("[%d]", i), err))
			continue
		}
		node.Children = append(node.Children, render(fmt.Sprintf("[%d]", i), elem, depth+1, visited))
	}
	return node
}

func renderStruct(name string, v clr.Value, depth int, visited map[uint64]bool) types.VariableNode {
	ov, ok := v.(clr.ObjectValue)
	if !ok {
		return errorNode(name, fmt.Errorf("value type does not expose field access"))
	}
	return renderObjectFields(name, ov, depth, visited)
}

func renderReference(name string, v clr.Value, depth int, visited map[uint64]bool) types.VariableNode {
	rv, ok := v.(clr.ReferenceValue)
	if !ok {
		return errorNode(name, fmt.Errorf("object value does not expose reference semantics"))
	}
	isNull, err := rv.IsNull()
	if err != nil {
		return errorNode(name, err)
	}
	if isNull {
		return types.VariableNode{Name: name, Value: types.RenderNull}
	}
	deref, err := rv.Dereference()
	if err != nil {
		return errorNode(name, err)
	}

	if addr, err := deref.GetAddress(); err == nil && addr != 0 {
		if visited[addr] {
			return types.VariableNode{Name: name, Value: types.RenderCircular}
		}
		visited = cloneVisited(visited)
		visited[addr] = true
	}

	ov, ok := deref.(clr.ObjectValue)
	if !ok {
		return errorNode(name, fmt.Errorf("dereferenced value does not expose field access"))
	}
	return renderObjectFields(name, ov, depth, visited)
}

// renderObjectFields implements the object-rendering priority from the
// spec: enum, then Nullable<T>, then a plain inheritance-walking field
// dump.
func renderObjectFields(name string, ov clr.ObjectValue, depth int, visited map[uint64]bool) types.VariableNode {
	class, err := ov.GetClass()
	if err != nil {
		return errorNode(name, err)
	}
	module, err := class.GetModule()
	if err != nil {
		return errorNode(name, err)
	}
	modulePath, err := module.GetName()
	if err != nil {
		return errorNode(name, err)
	}
	typeTok, err := class.GetToken()
	if err != nil {
		return errorNode(name, err)
	}

	reader, err := pdb.Open(modulePath)
	if err != nil {
		return errorNode(name, err)
	}

	typeName, err := reader.GetTypeName(typeTok)
	if err != nil {
		return errorNode(name, err)
	}

	if isEnum, _ := reader.IsEnumType(typeTok); isEnum {
		return renderEnum(name, ov, class, reader, typeTok, typeName)
	}

	if strings.HasSuffix(typeName, "Nullable`1") {
		return renderNullable(name, ov, class, depth, visited)
	}

	return renderInheritanceWalk(name, ov, class, reader, typeTok, typeName, module, depth, visited)
}

func findField(fields []pdb.FieldInfo, name string) (pdb.FieldInfo, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return pdb.FieldInfo{}, false
}

func renderEnum(name string, ov clr.ObjectValue, class clr.Class, reader *pdb.Reader, typeTok uint32, typeName string) types.VariableNode {
	instanceFields, err := reader.ReadInstanceFields(typeTok)
	if err != nil {
		return errorNode(name, err)
	}
	backing, ok := findField(instanceFields, "value__")
	if !ok {
		return errorNode(name, fmt.Errorf("enum type %s has no value__ field", typeName))
	}
	fv, err := ov.GetFieldValue(class, backing.Token)
	if err != nil {
		return errorNode(name, err)
	}
	gv, ok := fv.(clr.GenericValue)
	if !ok {
		return errorNode(name, fmt.Errorf("enum backing field is not a primitive"))
	}
	raw, err := gv.GetBytes()
	if err != nil {
		return errorNode(name, err)
	}

	_, members, err := reader.GetEnumMembers(typeTok)
	if err != nil {
		return errorNode(name, err)
	}

	return types.VariableNode{Name: name, TypeName: typeName, Value: pdb.FormatEnumValue(typeName, members, decodeIntBytes(raw))}
}

func renderNullable(name string, ov clr.ObjectValue, class clr.Class, depth int, visited map[uint64]bool) types.VariableNode {
	module, err := class.GetModule()
	if err != nil {
		return errorNode(name, err)
	}
	modulePath, err := module.GetName()
	if err != nil {
		return errorNode(name, err)
	}
	typeTok, err := class.GetToken()
	if err != nil {
		return errorNode(name, err)
	}
	reader, err := pdb.Open(modulePath)
	if err != nil {
		return errorNode(name, err)
	}
	fields, err := reader.ReadInstanceFields(typeTok)
	if err != nil {
		return errorNode(name, err)
	}

	hasValue, ok := findField(fields, "hasValue")
	if !ok {
		hasValue, ok = findField(fields, "_hasValue")
	}
	if !ok {
		return errorNode(name, fmt.Errorf("Nullable<T> has no hasValue field"))
	}
	hv, err := ov.GetFieldValue(class, hasValue.Token)
	if err != nil {
		return errorNode(name, err)
	}
	hvGeneric, ok := hv.(clr.GenericValue)
	if !ok {
		return errorNode(name, fmt.Errorf("hasValue field is not a primitive"))
	}
	raw, err := hvGeneric.GetBytes()
	if err != nil {
		return errorNode(name, err)
	}
	if !decodeBoolBytes(raw) {
		return types.VariableNode{Name: name, Value: types.RenderNull}
	}

	valueField, ok := findField(fields, "value")
	if !ok {
		valueField, ok = findField(fields, "_value")
	}
	if !ok {
		return errorNode(name, fmt.Errorf("Nullable<T> has no value field"))
	}
	vv, err := ov.GetFieldValue(class, valueField.Token)
	if err != nil {
		return errorNode(name, err)
	}
	return render(name, vv, depth+1, visited)
}

func renderInheritanceWalk(name string, ov clr.ObjectValue, declaredClass clr.Class, reader *pdb.Reader, declaredTok uint32, typeName string, module clr.Module, depth int, visited map[uint64]bool) types.VariableNode {
	node := types.VariableNode{Name: name, TypeName: typeName}

	for tok := declaredTok; tok != 0; {
		fields, err := reader.ReadInstanceFields(tok)
		if err != nil {
			break
		}

		levelClass, err := module.GetClassFromToken(tok)
		if err != nil {
			break
		}

		for _, f := range fields {
			display, skip := displayFieldName(f.Name)
			if skip {
				continue
			}
			fv, err := ov.GetFieldValue(levelClass, f.Token)
			if err != nil {
				node.Children = append(node.Children, errorNode(display, err))
				continue
			}
			node.Children = append(node.Children, render(display, fv, depth+1, visited))
		}

		next, err := reader.GetBaseTypeToken(tok)
		if err != nil || next == 0 {
			break
		}
		tok = next
	}

	node.Value = fmt.Sprintf("{fields: %d}", len(node.Children))
	return node
}

// displayFieldName applies the same "<>..." skip / "<field>..." unwrap
// rule the PDB reader applies to local variable names, since compiler-
// generated backing fields use identical syntax.
func displayFieldName(raw string) (string, bool) {
	if strings.HasPrefix(raw, "<>") {
		return "", true
	}
	if strings.HasPrefix(raw, "<") {
		if end := strings.Index(raw, ">"); end > 0 {
			return raw[1:end], false
		}
	}
	return raw, false
}
