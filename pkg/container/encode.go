package container

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

type encoder struct {
	asm     *il.Assembly
	opts    Options
	modules map[*il.Module]int
	types   map[*il.TypeDef]int
	fields  map[*il.FieldDef]int
	methods map[*il.MethodDef]int
}

func newEncoder(asm *il.Assembly, opts Options) *encoder {
	e := &encoder{
		asm:     asm,
		opts:    opts,
		modules: make(map[*il.Module]int),
		types:   make(map[*il.TypeDef]int),
		fields:  make(map[*il.FieldDef]int),
		methods: make(map[*il.MethodDef]int),
	}
	for i, m := range asm.Modules {
		e.modules[m] = i
	}
	for i, t := range asm.AllTypes() {
		e.types[t] = i
	}
	for _, t := range asm.AllTypes() {
		for _, f := range t.Fields {
			e.fields[f] = len(e.fields)
		}
		for _, m := range t.Methods {
			e.methods[m] = len(e.methods)
		}
	}
	return e
}

func (e *encoder) encode() (*fileDTO, error) {
	file := &fileDTO{
		Magic:   Magic,
		Version: SchemaVersion,
		Assembly: assemblyDTO{
			Name:    e.asm.Name,
			Version: e.asm.Version,
		},
	}
	out := &file.Assembly

	var err error
	if out.Attributes, err = e.attributes(e.asm); err != nil {
		return nil, err
	}
	if out.Security, err = e.security(e.asm); err != nil {
		return nil, err
	}
	for mi, m := range e.asm.Modules {
		attrs, err := e.attributes(m)
		if err != nil {
			return nil, err
		}
		out.Modules = append(out.Modules, moduleDTO{Name: m.Name, Attributes: attrs})
		for _, x := range m.ExportedTypes {
			out.Exported = append(out.Exported, exportedDTO{Module: mi, Namespace: x.Namespace, Name: x.Name, Scope: x.Scope})
		}
		for _, r := range m.Resources {
			out.Resources = append(out.Resources, resourceDTO{Module: mi, Name: r.Name, Public: r.Public, Data: r.Data})
		}
	}
	for _, t := range e.asm.AllTypes() {
		dto, err := e.typeDef(t)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", t.FullName(), err)
		}
		out.Types = append(out.Types, dto)
	}
	if e.opts.DebugSymbols {
		file.Symbols = e.symbols()
	}
	return file, nil
}

func (e *encoder) typeDef(t *il.TypeDef) (typeDTO, error) {
	dto := typeDTO{
		Module:    -1,
		Outer:     -1,
		Namespace: t.Namespace,
		Name:      t.Name,
		Flags:     uint32(t.Flags),
	}
	if t.DeclaringType != nil {
		idx, ok := e.types[t.DeclaringType]
		if !ok {
			return dto, fmt.Errorf("%w: declaring type %s", ErrDangling, t.DeclaringType.FullName())
		}
		dto.Outer = idx
	} else {
		dto.Module = e.modules[t.Module]
	}

	var err error
	if dto.Base, err = e.typeRef(t.BaseType); err != nil {
		return dto, err
	}
	if dto.Interfaces, err = e.typeRefs(t.Interfaces); err != nil {
		return dto, err
	}
	if dto.Generics, err = e.genericParams(t.GenericParameters); err != nil {
		return dto, err
	}
	if dto.Attributes, err = e.attributes(t); err != nil {
		return dto, err
	}
	if dto.Security, err = e.security(t); err != nil {
		return dto, err
	}
	for _, f := range t.Fields {
		fd, err := e.fieldDef(f)
		if err != nil {
			return dto, fmt.Errorf("field %s: %w", f.Name, err)
		}
		dto.Fields = append(dto.Fields, fd)
	}
	for _, m := range t.Methods {
		md, err := e.methodDef(m)
		if err != nil {
			return dto, fmt.Errorf("method %s: %w", il.MethodFullName(m), err)
		}
		dto.Methods = append(dto.Methods, md)
	}
	for _, p := range t.Properties {
		pd := propertyDTO{Name: p.Name, Getter: e.methodIndex(p.Getter), Setter: e.methodIndex(p.Setter)}
		if pd.Type, err = e.typeRef(p.PropertyType); err != nil {
			return dto, err
		}
		if pd.Attributes, err = e.attributes(p); err != nil {
			return dto, err
		}
		dto.Properties = append(dto.Properties, pd)
	}
	for _, ev := range t.Events {
		ed := eventDTO{
			Name:   ev.Name,
			Add:    e.methodIndex(ev.AddMethod),
			Remove: e.methodIndex(ev.RemoveMethod),
			Invoke: e.methodIndex(ev.InvokeMethod),
		}
		if ed.Type, err = e.typeRef(ev.EventType); err != nil {
			return dto, err
		}
		if ed.Attributes, err = e.attributes(ev); err != nil {
			return dto, err
		}
		dto.Events = append(dto.Events, ed)
	}
	return dto, nil
}

func (e *encoder) methodIndex(m *il.MethodDef) int {
	if m == nil {
		return -1
	}
	if idx, ok := e.methods[m]; ok {
		return idx
	}
	return -1
}

func (e *encoder) genericParams(params []*il.GenericParam) ([]genericParamDTO, error) {
	var out []genericParamDTO
	for _, gp := range params {
		constraints, err := e.typeRefs(gp.Constraints)
		if err != nil {
			return nil, err
		}
		attrs, err := e.attributes(gp)
		if err != nil {
			return nil, err
		}
		out = append(out, genericParamDTO{Name: gp.Name, Flags: uint16(gp.Flags), Constraints: constraints, Attributes: attrs})
	}
	return out, nil
}

func (e *encoder) fieldDef(f *il.FieldDef) (fieldDTO, error) {
	dto := fieldDTO{Name: f.Name, Flags: uint16(f.Flags)}
	var err error
	if dto.Type, err = e.typeRef(f.FieldType); err != nil {
		return dto, err
	}
	if f.Constant != nil {
		v, err := e.value(f.Constant)
		if err != nil {
			return dto, err
		}
		dto.Constant = &v
	}
	if dto.Attributes, err = e.attributes(f); err != nil {
		return dto, err
	}
	return dto, nil
}

func (e *encoder) methodDef(m *il.MethodDef) (methodDTO, error) {
	dto := methodDTO{Name: m.Name, Flags: uint32(m.Flags)}
	var err error
	if dto.Return, err = e.typeRef(m.ReturnTypeRef()); err != nil {
		return dto, err
	}
	if m.ReturnType != nil {
		if dto.ReturnAttributes, err = e.attributes(m.ReturnType); err != nil {
			return dto, err
		}
	}
	for _, p := range m.Parameters {
		pd := paramDTO{Name: p.Name, Flags: uint16(p.Flags)}
		if pd.Type, err = e.typeRef(p.ParameterType); err != nil {
			return dto, err
		}
		if pd.Attributes, err = e.attributes(p); err != nil {
			return dto, err
		}
		dto.Params = append(dto.Params, pd)
	}
	if dto.Generics, err = e.genericParams(m.GenericParameters); err != nil {
		return dto, err
	}
	for _, o := range m.Overrides {
		ref, err := e.methodRef(o)
		if err != nil {
			return dto, err
		}
		dto.Overrides = append(dto.Overrides, *ref)
	}
	if m.Body != nil {
		if dto.Body, err = e.body(m.Body); err != nil {
			return dto, err
		}
	}
	if dto.Attributes, err = e.attributes(m); err != nil {
		return dto, err
	}
	if dto.Security, err = e.security(m); err != nil {
		return dto, err
	}
	return dto, nil
}

func (e *encoder) body(b *il.MethodBody) (*bodyDTO, error) {
	dto := &bodyDTO{MaxStack: b.MaxStack, InitLocals: b.InitLocals}
	index := make(map[*il.Instruction]int, len(b.Instructions))
	for i, ins := range b.Instructions {
		index[ins] = i
	}
	at := func(ins *il.Instruction) (int, error) {
		if ins == nil {
			return -1, nil
		}
		i, ok := index[ins]
		if !ok {
			return 0, fmt.Errorf("%w: instruction %s", ErrDangling, ins)
		}
		return i, nil
	}

	for _, v := range b.Variables {
		t, err := e.typeRef(v.VariableType)
		if err != nil {
			return nil, err
		}
		dto.Variables = append(dto.Variables, variableDTO{Name: v.Name, Type: t, Pinned: v.PinnedOrByRef})
	}
	for i, ins := range b.Instructions {
		op, err := e.operand(b, ins.Operand, at)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, ins.OpCode, err)
		}
		dto.Instructions = append(dto.Instructions, instructionDTO{OpCode: uint16(ins.OpCode), Operand: op})
	}
	for _, h := range b.ExceptionHandlers {
		hd := handlerDTO{Type: int(h.HandlerType)}
		var err error
		for _, pair := range []struct {
			dst *int
			ins *il.Instruction
		}{
			{&hd.TryStart, h.TryStart},
			{&hd.TryEnd, h.TryEnd},
			{&hd.HandlerStart, h.HandlerStart},
			{&hd.HandlerEnd, h.HandlerEnd},
			{&hd.FilterStart, h.FilterStart},
		} {
			if *pair.dst, err = at(pair.ins); err != nil {
				return nil, fmt.Errorf("exception handler: %w", err)
			}
		}
		if hd.CatchType, err = e.typeRef(h.CatchType); err != nil {
			return nil, err
		}
		dto.Handlers = append(dto.Handlers, hd)
	}
	return dto, nil
}

func (e *encoder) operand(b *il.MethodBody, op il.Operand, at func(*il.Instruction) (int, error)) (*operandDTO, error) {
	switch o := op.(type) {
	case nil, il.NoOperand:
		return nil, nil
	case il.TypeOperand:
		t, err := e.typeRef(o.Type)
		if err != nil {
			return nil, err
		}
		return &operandDTO{Kind: operandType, Type: t}, nil
	case il.FieldOperand:
		f, err := e.fieldRef(o.Field)
		if err != nil {
			return nil, err
		}
		return &operandDTO{Kind: operandField, Field: f}, nil
	case il.MethodOperand:
		m, err := e.methodRef(o.Method)
		if err != nil {
			return nil, err
		}
		return &operandDTO{Kind: operandMethod, Method: m}, nil
	case il.BranchOperand:
		i, err := at(o.Target)
		if err != nil {
			return nil, err
		}
		return &operandDTO{Kind: operandBranch, Targets: []int{i}}, nil
	case il.SwitchOperand:
		targets := make([]int, len(o.Targets))
		for k, t := range o.Targets {
			i, err := at(t)
			if err != nil {
				return nil, err
			}
			targets[k] = i
		}
		return &operandDTO{Kind: operandSwitch, Targets: targets}, nil
	case il.ParamOperand:
		if o.Param == nil || o.Param.Method != b.Method {
			return nil, fmt.Errorf("%w: parameter of another method", ErrDangling)
		}
		return &operandDTO{Kind: operandParam, Index: o.Param.Index}, nil
	case il.VarOperand:
		if o.Var == nil || o.Var.Body != b {
			return nil, fmt.Errorf("%w: variable of another body", ErrDangling)
		}
		return &operandDTO{Kind: operandVar, Index: o.Var.Index}, nil
	case il.Uint8Operand:
		return &operandDTO{Kind: operandUint8, Int: int64(o)}, nil
	case il.Int8Operand:
		return &operandDTO{Kind: operandInt8, Int: int64(o)}, nil
	case il.Int32Operand:
		return &operandDTO{Kind: operandInt32, Int: int64(o)}, nil
	case il.Int64Operand:
		return &operandDTO{Kind: operandInt64, Int: int64(o)}, nil
	case il.Float32Operand:
		return &operandDTO{Kind: operandFloat32, Float: float64(o)}, nil
	case il.Float64Operand:
		return &operandDTO{Kind: operandFloat64, Float: float64(o)}, nil
	case il.StringOperand:
		return &operandDTO{Kind: operandString, String: string(o)}, nil
	}
	return nil, fmt.Errorf("%w: %T", il.ErrUnsupportedOperand, op)
}

func (e *encoder) typeRefs(ts []il.TypeRef) ([]typeRefDTO, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	out := make([]typeRefDTO, len(ts))
	for i, t := range ts {
		dto, err := e.typeRef(t)
		if err != nil {
			return nil, err
		}
		if dto == nil {
			return nil, fmt.Errorf("%w: nil type in list", ErrDangling)
		}
		out[i] = *dto
	}
	return out, nil
}

func (e *encoder) typeRef(t il.TypeRef) (*typeRefDTO, error) {
	switch v := t.(type) {
	case nil:
		return nil, nil
	case *il.TypeDef:
		if idx, ok := e.types[v]; ok {
			return &typeRefDTO{Kind: typeDefinition, Index: idx}, nil
		}
		return e.typeRef(il.Reference(v))
	case *il.TypeReference:
		outer, err := e.typeRef(typeReferenceOrNil(v.DeclaringType))
		if err != nil {
			return nil, err
		}
		return &typeRefDTO{
			Kind:      typeReference,
			Scope:     v.Scope,
			Namespace: v.Namespace,
			Name:      v.Name,
			Outer:     outer,
			ValueType: v.IsValueType,
		}, nil
	case *il.ArrayType:
		elem, err := e.typeRef(v.Element)
		if err != nil {
			return nil, err
		}
		return &typeRefDTO{Kind: typeArray, Element: elem, Rank: v.Rank}, nil
	case *il.ByRefType:
		elem, err := e.typeRef(v.Element)
		if err != nil {
			return nil, err
		}
		return &typeRefDTO{Kind: typeByRef, Element: elem}, nil
	case *il.PointerType:
		elem, err := e.typeRef(v.Element)
		if err != nil {
			return nil, err
		}
		return &typeRefDTO{Kind: typePointer, Element: elem}, nil
	case *il.GenericInstanceType:
		elem, err := e.typeRef(v.Element)
		if err != nil {
			return nil, err
		}
		args, err := e.typeRefs(v.Arguments)
		if err != nil {
			return nil, err
		}
		return &typeRefDTO{Kind: typeGenericInstance, Element: elem, Arguments: args}, nil
	case *il.GenericParam:
		if m := v.DeclaringMethod(); m != nil {
			idx, ok := e.methods[m]
			if !ok {
				idx = -1
			}
			return &typeRefDTO{Kind: methodGenericParam, Index: idx, Position: v.Position, Name: v.Name}, nil
		}
		idx, ok := e.types[v.DeclaringType()]
		if !ok {
			idx = -1
		}
		return &typeRefDTO{Kind: typeGenericParam, Index: idx, Position: v.Position, Name: v.Name}, nil
	}
	return nil, fmt.Errorf("%w: type %T", ErrUnsupportedValue, t)
}

func typeReferenceOrNil(t *il.TypeReference) il.TypeRef {
	if t == nil {
		return nil
	}
	return t
}

func (e *encoder) methodRef(m il.MethodRef) (*methodRefDTO, error) {
	switch v := m.(type) {
	case *il.MethodDef:
		if idx, ok := e.methods[v]; ok {
			return &methodRefDTO{Kind: memberDefinition, Index: idx}, nil
		}
		return e.reference(v.DeclaringType, v.Name, v.ReturnTypeRef(), v.ParameterTypes(), v.HasThis(), len(v.GenericParameters))
	case *il.MethodReference:
		return e.reference(v.DeclaringType, v.Name, v.ReturnType, v.Parameters, v.This, v.GenericArity)
	case *il.GenericInstanceMethod:
		inner, err := e.methodRef(v.Method)
		if err != nil {
			return nil, err
		}
		args, err := e.typeRefs(v.Arguments)
		if err != nil {
			return nil, err
		}
		return &methodRefDTO{Kind: memberGenericInstance, Method: inner, Arguments: args}, nil
	}
	return nil, fmt.Errorf("%w: method %T", ErrUnsupportedValue, m)
}

func (e *encoder) reference(declaring il.TypeRef, name string, ret il.TypeRef, params []il.TypeRef, this bool, arity int) (*methodRefDTO, error) {
	if def, ok := declaring.(*il.TypeDef); ok && def != nil {
		if _, local := e.types[def]; !local {
			declaring = il.Reference(def)
		}
	}
	dto := &methodRefDTO{Kind: memberReference, Name: name, This: this, Arity: arity}
	var err error
	if dto.DeclaringType, err = e.typeRef(declaring); err != nil {
		return nil, err
	}
	if dto.Return, err = e.typeRef(ret); err != nil {
		return nil, err
	}
	if dto.Params, err = e.typeRefs(params); err != nil {
		return nil, err
	}
	return dto, nil
}

func (e *encoder) fieldRef(f il.FieldRef) (*fieldRefDTO, error) {
	switch v := f.(type) {
	case *il.FieldDef:
		if idx, ok := e.fields[v]; ok {
			return &fieldRefDTO{Kind: memberDefinition, Index: idx}, nil
		}
		if v.DeclaringType == nil {
			return nil, fmt.Errorf("%w: detached field %s", ErrDangling, v.Name)
		}
		return e.fieldReference(il.Reference(v.DeclaringType), v.Name, v.FieldType)
	case *il.FieldReference:
		return e.fieldReference(v.DeclaringType, v.Name, v.FieldType)
	}
	return nil, fmt.Errorf("%w: field %T", ErrUnsupportedValue, f)
}

func (e *encoder) fieldReference(declaring il.TypeRef, name string, ft il.TypeRef) (*fieldRefDTO, error) {
	dto := &fieldRefDTO{Kind: memberReference, Name: name}
	var err error
	if dto.DeclaringType, err = e.typeRef(declaring); err != nil {
		return nil, err
	}
	if dto.Type, err = e.typeRef(ft); err != nil {
		return nil, err
	}
	return dto, nil
}

func (e *encoder) attributes(p il.AttributeProvider) ([]attributeDTO, error) {
	var out []attributeDTO
	for _, ca := range il.Attributes(p) {
		ctor, err := e.methodRef(ca.Constructor)
		if err != nil {
			return nil, fmt.Errorf("attribute constructor: %w", err)
		}
		dto := attributeDTO{Constructor: *ctor}
		if dto.Arguments, err = e.arguments(ca.Arguments); err != nil {
			return nil, err
		}
		if dto.Fields, err = e.namedArguments(ca.Fields); err != nil {
			return nil, err
		}
		if dto.Properties, err = e.namedArguments(ca.Properties); err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func (e *encoder) security(p il.SecurityProvider) ([]securityDTO, error) {
	var out []securityDTO
	for _, d := range il.SecurityDeclarations(p) {
		dto := securityDTO{Action: uint16(d.Action)}
		for _, a := range d.Attributes {
			t, err := e.typeRef(a.AttributeType)
			if err != nil {
				return nil, err
			}
			props, err := e.namedArguments(a.Properties)
			if err != nil {
				return nil, err
			}
			dto.Attributes = append(dto.Attributes, securityAttributeDTO{Type: t, Properties: props})
		}
		out = append(out, dto)
	}
	return out, nil
}

func (e *encoder) arguments(args []il.AttributeArgument) ([]argumentDTO, error) {
	var out []argumentDTO
	for _, a := range args {
		dto, err := e.argument(a)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func (e *encoder) argument(a il.AttributeArgument) (argumentDTO, error) {
	t, err := e.typeRef(a.Type)
	if err != nil {
		return argumentDTO{}, err
	}
	v, err := e.value(a.Value)
	if err != nil {
		return argumentDTO{}, err
	}
	return argumentDTO{Type: t, Value: v}, nil
}

func (e *encoder) namedArguments(args []il.NamedArgument) ([]namedArgumentDTO, error) {
	var out []namedArgumentDTO
	for _, n := range args {
		a, err := e.argument(n.Argument)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Name, err)
		}
		out = append(out, namedArgumentDTO{Name: n.Name, Argument: a})
	}
	return out, nil
}

// value tags v with its Go kind so that it decodes to the same type.
func (e *encoder) value(v any) (valueDTO, error) {
	switch x := v.(type) {
	case nil:
		return valueDTO{Kind: valueNull}, nil
	case bool:
		return valueDTO{Kind: valueBool, Bool: x}, nil
	case int8:
		return valueDTO{Kind: valueInt8, Int: int64(x)}, nil
	case int16:
		return valueDTO{Kind: valueInt16, Int: int64(x)}, nil
	case int32:
		return valueDTO{Kind: valueInt32, Int: int64(x)}, nil
	case int64:
		return valueDTO{Kind: valueInt64, Int: x}, nil
	case uint8:
		return valueDTO{Kind: valueUint8, Uint: uint64(x)}, nil
	case uint16:
		return valueDTO{Kind: valueUint16, Uint: uint64(x)}, nil
	case uint32:
		return valueDTO{Kind: valueUint32, Uint: uint64(x)}, nil
	case uint64:
		return valueDTO{Kind: valueUint64, Uint: x}, nil
	case float32:
		return valueDTO{Kind: valueFloat32, Float: float64(x)}, nil
	case float64:
		return valueDTO{Kind: valueFloat64, Float: x}, nil
	case string:
		return valueDTO{Kind: valueString, String: x}, nil
	case il.TypeRef:
		t, err := e.typeRef(x)
		if err != nil {
			return valueDTO{}, err
		}
		return valueDTO{Kind: valueType, Type: t}, nil
	case []il.AttributeArgument:
		elems, err := e.arguments(x)
		if err != nil {
			return valueDTO{}, err
		}
		return valueDTO{Kind: valueArray, Elements: elems}, nil
	}
	return valueDTO{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func (e *encoder) symbols() []symbolDTO {
	var out []symbolDTO
	for _, t := range e.asm.AllTypes() {
		for _, m := range t.Methods {
			if m.Body == nil {
				continue
			}
			var points []sequencePointDTO
			for i, ins := range m.Body.Instructions {
				sp := ins.SequencePoint
				if sp == nil {
					continue
				}
				points = append(points, sequencePointDTO{
					Instruction: i,
					Document:    sp.Document,
					StartLine:   sp.StartLine,
					StartColumn: sp.StartColumn,
					EndLine:     sp.EndLine,
					EndColumn:   sp.EndColumn,
				})
			}
			if len(points) > 0 {
				out = append(out, symbolDTO{Method: e.methods[m], Points: points})
			}
		}
	}
	return out
}
