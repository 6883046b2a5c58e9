package container

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

type decoder struct {
	file    *fileDTO
	asm     *il.Assembly
	types   []*il.TypeDef
	fields  []*il.FieldDef
	methods []*il.MethodDef
}

func newDecoder(file *fileDTO) *decoder {
	return &decoder{file: file}
}

// decode rebuilds the assembly in passes: type shells first, then member
// shells, then everything that may refer to either.
func (d *decoder) decode() (*il.Assembly, error) {
	src := &d.file.Assembly
	d.asm = &il.Assembly{Name: src.Name, Version: src.Version}
	for _, m := range src.Modules {
		d.asm.AddModule(&il.Module{Name: m.Name})
	}

	if err := d.typeShells(); err != nil {
		return nil, err
	}
	d.memberShells()

	if err := d.addAttributes(d.asm, src.Attributes); err != nil {
		return nil, err
	}
	if err := d.addSecurity(d.asm, src.Security); err != nil {
		return nil, err
	}
	for i, m := range src.Modules {
		if err := d.addAttributes(d.asm.Modules[i], m.Attributes); err != nil {
			return nil, err
		}
	}
	for _, x := range src.Exported {
		mod, err := d.module(x.Module)
		if err != nil {
			return nil, err
		}
		mod.AddExportedType(&il.ExportedType{Namespace: x.Namespace, Name: x.Name, Scope: x.Scope})
	}
	for _, r := range src.Resources {
		mod, err := d.module(r.Module)
		if err != nil {
			return nil, err
		}
		mod.AddResource(&il.Resource{Name: r.Name, Public: r.Public, Data: r.Data})
	}

	fi, mi := 0, 0
	for i, dto := range src.Types {
		t := d.types[i]
		if err := d.fillType(t, &dto, fi, mi); err != nil {
			return nil, fmt.Errorf("type %s: %w", t.FullName(), err)
		}
		fi += len(dto.Fields)
		mi += len(dto.Methods)
	}

	if err := d.symbols(); err != nil {
		return nil, err
	}
	return d.asm, nil
}

func (d *decoder) module(i int) (*il.Module, error) {
	if i < 0 || i >= len(d.asm.Modules) {
		return nil, fmt.Errorf("%w: module %d", ErrInvalidContainer, i)
	}
	return d.asm.Modules[i], nil
}

func (d *decoder) typeShells() error {
	for i, dto := range d.file.Assembly.Types {
		t := il.NewType(dto.Namespace, dto.Name, il.TypeFlags(dto.Flags), nil)
		if dto.Outer >= 0 {
			// outer types always precede their nested types
			if dto.Outer >= i {
				return fmt.Errorf("%w: type %d nested in %d", ErrInvalidContainer, i, dto.Outer)
			}
			d.types[dto.Outer].AddNestedType(t)
		} else {
			mod, err := d.module(dto.Module)
			if err != nil {
				return err
			}
			mod.AddType(t)
		}
		for _, gp := range dto.Generics {
			p := il.AddGenericParameter(t, gp.Name)
			p.Flags = il.GenericParamFlags(gp.Flags)
		}
		d.types = append(d.types, t)
	}
	return nil
}

func (d *decoder) memberShells() {
	for i, dto := range d.file.Assembly.Types {
		t := d.types[i]
		for _, fd := range dto.Fields {
			d.fields = append(d.fields, t.AddField(il.NewField(fd.Name, il.FieldFlags(fd.Flags), nil)))
		}
		for _, md := range dto.Methods {
			m := t.AddMethod(il.NewMethod(md.Name, il.MethodFlags(md.Flags), nil))
			for _, pd := range md.Params {
				p := m.AddParameter(pd.Name, nil)
				p.Flags = il.ParamFlags(pd.Flags)
			}
			for _, gp := range md.Generics {
				p := il.AddGenericParameter(m, gp.Name)
				p.Flags = il.GenericParamFlags(gp.Flags)
			}
			d.methods = append(d.methods, m)
		}
	}
}

func (d *decoder) fillType(t *il.TypeDef, dto *typeDTO, firstField, firstMethod int) error {
	var err error
	if t.BaseType, err = d.typeRef(dto.Base); err != nil {
		return err
	}
	if t.Interfaces, err = d.typeRefs(dto.Interfaces); err != nil {
		return err
	}
	if err := d.fillGenerics(t.GenericParameters, dto.Generics); err != nil {
		return err
	}
	if err := d.addAttributes(t, dto.Attributes); err != nil {
		return err
	}
	if err := d.addSecurity(t, dto.Security); err != nil {
		return err
	}
	for i, fd := range dto.Fields {
		f := d.fields[firstField+i]
		if f.FieldType, err = d.typeRef(fd.Type); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if fd.Constant != nil {
			if f.Constant, err = d.value(fd.Constant); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
		if err := d.addAttributes(f, fd.Attributes); err != nil {
			return err
		}
	}
	for i := range dto.Methods {
		m := d.methods[firstMethod+i]
		if err := d.fillMethod(m, &dto.Methods[i]); err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
	}
	for _, pd := range dto.Properties {
		p := &il.PropertyDef{Name: pd.Name}
		if p.PropertyType, err = d.typeRef(pd.Type); err != nil {
			return err
		}
		if p.Getter, err = d.accessor(pd.Getter); err != nil {
			return err
		}
		if p.Setter, err = d.accessor(pd.Setter); err != nil {
			return err
		}
		t.AddProperty(p)
		if err := d.addAttributes(p, pd.Attributes); err != nil {
			return err
		}
	}
	for _, ed := range dto.Events {
		ev := &il.EventDef{Name: ed.Name}
		if ev.EventType, err = d.typeRef(ed.Type); err != nil {
			return err
		}
		if ev.AddMethod, err = d.accessor(ed.Add); err != nil {
			return err
		}
		if ev.RemoveMethod, err = d.accessor(ed.Remove); err != nil {
			return err
		}
		if ev.InvokeMethod, err = d.accessor(ed.Invoke); err != nil {
			return err
		}
		t.AddEvent(ev)
		if err := d.addAttributes(ev, ed.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) accessor(i int) (*il.MethodDef, error) {
	if i < 0 {
		return nil, nil
	}
	return d.method(i)
}

func (d *decoder) method(i int) (*il.MethodDef, error) {
	if i < 0 || i >= len(d.methods) {
		return nil, fmt.Errorf("%w: method %d", ErrInvalidContainer, i)
	}
	return d.methods[i], nil
}

func (d *decoder) fillGenerics(params []*il.GenericParam, dtos []genericParamDTO) error {
	for i, gp := range dtos {
		var err error
		if params[i].Constraints, err = d.typeRefs(gp.Constraints); err != nil {
			return err
		}
		if err := d.addAttributes(params[i], gp.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) fillMethod(m *il.MethodDef, dto *methodDTO) error {
	var err error
	if m.ReturnType.Type, err = d.typeRef(dto.Return); err != nil {
		return err
	}
	if err := d.addAttributes(m.ReturnType, dto.ReturnAttributes); err != nil {
		return err
	}
	for i, pd := range dto.Params {
		p := m.Parameters[i]
		if p.ParameterType, err = d.typeRef(pd.Type); err != nil {
			return err
		}
		if err := d.addAttributes(p, pd.Attributes); err != nil {
			return err
		}
	}
	if err := d.fillGenerics(m.GenericParameters, dto.Generics); err != nil {
		return err
	}
	for i := range dto.Overrides {
		o, err := d.methodRef(&dto.Overrides[i])
		if err != nil {
			return err
		}
		m.Overrides = append(m.Overrides, o)
	}
	if dto.Body != nil {
		if err := d.fillBody(m, dto.Body); err != nil {
			return err
		}
	}
	if err := d.addAttributes(m, dto.Attributes); err != nil {
		return err
	}
	return d.addSecurity(m, dto.Security)
}

func (d *decoder) fillBody(m *il.MethodDef, dto *bodyDTO) error {
	b := m.NewBody()
	b.MaxStack = dto.MaxStack
	b.InitLocals = dto.InitLocals
	for _, vd := range dto.Variables {
		t, err := d.typeRef(vd.Type)
		if err != nil {
			return err
		}
		v := b.AddVariable(t)
		v.Name = vd.Name
		v.PinnedOrByRef = vd.Pinned
	}

	b.Instructions = make([]*il.Instruction, len(dto.Instructions))
	for i, id := range dto.Instructions {
		op := il.OpCode(id.OpCode)
		if !op.IsValid() {
			return fmt.Errorf("%w: opcode 0x%x at %d", ErrInvalidContainer, id.OpCode, i)
		}
		ins := il.NewInstruction(op, nil)
		ins.Body = b
		b.Instructions[i] = ins
	}
	at := func(i int) (*il.Instruction, error) {
		if i < 0 {
			return nil, nil
		}
		if i >= len(b.Instructions) {
			return nil, fmt.Errorf("%w: instruction %d out of range", ErrInvalidContainer, i)
		}
		return b.Instructions[i], nil
	}
	for i, id := range dto.Instructions {
		op, err := d.operand(b, id.Operand, at)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		b.Instructions[i].Operand = op
	}
	b.ComputeOffsets()

	for _, hd := range dto.Handlers {
		h := &il.ExceptionHandler{HandlerType: il.HandlerType(hd.Type)}
		var err error
		for _, pair := range []struct {
			dst **il.Instruction
			idx int
		}{
			{&h.TryStart, hd.TryStart},
			{&h.TryEnd, hd.TryEnd},
			{&h.HandlerStart, hd.HandlerStart},
			{&h.HandlerEnd, hd.HandlerEnd},
			{&h.FilterStart, hd.FilterStart},
		} {
			if *pair.dst, err = at(pair.idx); err != nil {
				return fmt.Errorf("exception handler: %w", err)
			}
		}
		if h.CatchType, err = d.typeRef(hd.CatchType); err != nil {
			return err
		}
		b.AddExceptionHandler(h)
	}
	return nil
}

func (d *decoder) operand(b *il.MethodBody, dto *operandDTO, at func(int) (*il.Instruction, error)) (il.Operand, error) {
	if dto == nil {
		return il.NoOperand{}, nil
	}
	switch dto.Kind {
	case operandNone:
		return il.NoOperand{}, nil
	case operandType:
		t, err := d.typeRef(dto.Type)
		if err != nil {
			return nil, err
		}
		return il.TypeOperand{Type: t}, nil
	case operandField:
		f, err := d.fieldRef(dto.Field)
		if err != nil {
			return nil, err
		}
		return il.FieldOperand{Field: f}, nil
	case operandMethod:
		m, err := d.methodRef(dto.Method)
		if err != nil {
			return nil, err
		}
		return il.MethodOperand{Method: m}, nil
	case operandBranch:
		if len(dto.Targets) != 1 {
			return nil, fmt.Errorf("%w: branch with %d targets", ErrInvalidContainer, len(dto.Targets))
		}
		target, err := at(dto.Targets[0])
		if err != nil {
			return nil, err
		}
		return il.BranchOperand{Target: target}, nil
	case operandSwitch:
		targets := make([]*il.Instruction, len(dto.Targets))
		for i, idx := range dto.Targets {
			t, err := at(idx)
			if err != nil {
				return nil, err
			}
			targets[i] = t
		}
		return il.SwitchOperand{Targets: targets}, nil
	case operandParam:
		m := b.Method
		var p *il.ParamDef
		if dto.Index < 0 {
			p = m.ThisParameter()
		} else if dto.Index < len(m.Parameters) {
			p = m.Parameters[dto.Index]
		}
		if p == nil {
			return nil, fmt.Errorf("%w: parameter %d", ErrInvalidContainer, dto.Index)
		}
		return il.ParamOperand{Param: p}, nil
	case operandVar:
		if dto.Index < 0 || dto.Index >= len(b.Variables) {
			return nil, fmt.Errorf("%w: variable %d", ErrInvalidContainer, dto.Index)
		}
		return il.VarOperand{Var: b.Variables[dto.Index]}, nil
	case operandUint8:
		return il.Uint8Operand(dto.Int), nil
	case operandInt8:
		return il.Int8Operand(dto.Int), nil
	case operandInt32:
		return il.Int32Operand(dto.Int), nil
	case operandInt64:
		return il.Int64Operand(dto.Int), nil
	case operandFloat32:
		return il.Float32Operand(dto.Float), nil
	case operandFloat64:
		return il.Float64Operand(dto.Float), nil
	case operandString:
		return il.StringOperand(dto.String), nil
	}
	return nil, fmt.Errorf("%w: operand kind %d", ErrInvalidContainer, dto.Kind)
}

func (d *decoder) typeRefs(dtos []typeRefDTO) ([]il.TypeRef, error) {
	if len(dtos) == 0 {
		return nil, nil
	}
	out := make([]il.TypeRef, len(dtos))
	for i := range dtos {
		t, err := d.typeRef(&dtos[i])
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (d *decoder) typeRef(dto *typeRefDTO) (il.TypeRef, error) {
	if dto == nil {
		return nil, nil
	}
	switch dto.Kind {
	case typeDefinition:
		if dto.Index < 0 || dto.Index >= len(d.types) {
			return nil, fmt.Errorf("%w: type %d", ErrInvalidContainer, dto.Index)
		}
		return d.types[dto.Index], nil
	case typeReference:
		ref := &il.TypeReference{
			Scope:       dto.Scope,
			Namespace:   dto.Namespace,
			Name:        dto.Name,
			IsValueType: dto.ValueType,
		}
		if dto.Outer != nil {
			outer, err := d.typeRef(dto.Outer)
			if err != nil {
				return nil, err
			}
			o, ok := outer.(*il.TypeReference)
			if !ok {
				return nil, fmt.Errorf("%w: declaring type of %s is not a reference", ErrInvalidContainer, dto.Name)
			}
			ref.DeclaringType = o
		}
		return ref, nil
	case typeArray, typeByRef, typePointer:
		elem, err := d.typeRef(dto.Element)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return nil, fmt.Errorf("%w: type specification without element", ErrInvalidContainer)
		}
		switch dto.Kind {
		case typeArray:
			return &il.ArrayType{Element: elem, Rank: dto.Rank}, nil
		case typeByRef:
			return &il.ByRefType{Element: elem}, nil
		}
		return &il.PointerType{Element: elem}, nil
	case typeGenericInstance:
		elem, err := d.typeRef(dto.Element)
		if err != nil {
			return nil, err
		}
		args, err := d.typeRefs(dto.Arguments)
		if err != nil {
			return nil, err
		}
		return &il.GenericInstanceType{Element: elem, Arguments: args}, nil
	case typeGenericParam:
		if dto.Index < 0 {
			return &il.GenericParam{Name: dto.Name, Position: dto.Position}, nil
		}
		if dto.Index >= len(d.types) {
			return nil, fmt.Errorf("%w: type %d", ErrInvalidContainer, dto.Index)
		}
		return genericAt(d.types[dto.Index].GenericParameters, dto.Position)
	case methodGenericParam:
		if dto.Index < 0 {
			// owned by a method of another assembly
			return &il.GenericParam{Owner: &il.MethodDef{}, Name: dto.Name, Position: dto.Position}, nil
		}
		m, err := d.method(dto.Index)
		if err != nil {
			return nil, err
		}
		return genericAt(m.GenericParameters, dto.Position)
	}
	return nil, fmt.Errorf("%w: type kind %d", ErrInvalidContainer, dto.Kind)
}

func genericAt(params []*il.GenericParam, pos int) (*il.GenericParam, error) {
	if pos < 0 || pos >= len(params) {
		return nil, fmt.Errorf("%w: generic parameter %d", ErrInvalidContainer, pos)
	}
	return params[pos], nil
}

func (d *decoder) methodRef(dto *methodRefDTO) (il.MethodRef, error) {
	if dto == nil {
		return nil, fmt.Errorf("%w: missing method", ErrInvalidContainer)
	}
	switch dto.Kind {
	case memberDefinition:
		if dto.Index < 0 {
			return nil, fmt.Errorf("%w: method %d", ErrInvalidContainer, dto.Index)
		}
		return d.method(dto.Index)
	case memberReference:
		ref := &il.MethodReference{Name: dto.Name, This: dto.This, GenericArity: dto.Arity}
		var err error
		if ref.DeclaringType, err = d.typeRef(dto.DeclaringType); err != nil {
			return nil, err
		}
		if ref.ReturnType, err = d.typeRef(dto.Return); err != nil {
			return nil, err
		}
		if ref.Parameters, err = d.typeRefs(dto.Params); err != nil {
			return nil, err
		}
		return ref, nil
	case memberGenericInstance:
		inner, err := d.methodRef(dto.Method)
		if err != nil {
			return nil, err
		}
		args, err := d.typeRefs(dto.Arguments)
		if err != nil {
			return nil, err
		}
		return &il.GenericInstanceMethod{Method: inner, Arguments: args}, nil
	}
	return nil, fmt.Errorf("%w: method kind %d", ErrInvalidContainer, dto.Kind)
}

func (d *decoder) fieldRef(dto *fieldRefDTO) (il.FieldRef, error) {
	if dto == nil {
		return nil, fmt.Errorf("%w: missing field", ErrInvalidContainer)
	}
	switch dto.Kind {
	case memberDefinition:
		if dto.Index < 0 || dto.Index >= len(d.fields) {
			return nil, fmt.Errorf("%w: field %d", ErrInvalidContainer, dto.Index)
		}
		return d.fields[dto.Index], nil
	case memberReference:
		ref := &il.FieldReference{Name: dto.Name}
		var err error
		if ref.DeclaringType, err = d.typeRef(dto.DeclaringType); err != nil {
			return nil, err
		}
		if ref.FieldType, err = d.typeRef(dto.Type); err != nil {
			return nil, err
		}
		return ref, nil
	}
	return nil, fmt.Errorf("%w: field kind %d", ErrInvalidContainer, dto.Kind)
}

func (d *decoder) addAttributes(p il.AttributeProvider, dtos []attributeDTO) error {
	for i := range dtos {
		dto := &dtos[i]
		ctor, err := d.methodRef(&dto.Constructor)
		if err != nil {
			return fmt.Errorf("attribute constructor: %w", err)
		}
		ca := il.NewCustomAttribute(ctor)
		if ca.Arguments, err = d.arguments(dto.Arguments); err != nil {
			return err
		}
		if ca.Fields, err = d.namedArguments(dto.Fields); err != nil {
			return err
		}
		if ca.Properties, err = d.namedArguments(dto.Properties); err != nil {
			return err
		}
		il.AddCustomAttribute(p, ca)
	}
	return nil
}

func (d *decoder) addSecurity(p il.SecurityProvider, dtos []securityDTO) error {
	for _, dto := range dtos {
		decl := il.AddSecurityDeclaration(p, &il.SecurityDeclaration{Action: il.SecurityAction(dto.Action)})
		for _, ad := range dto.Attributes {
			t, err := d.typeRef(ad.Type)
			if err != nil {
				return err
			}
			props, err := d.namedArguments(ad.Properties)
			if err != nil {
				return err
			}
			decl.AddAttribute(t, props...)
		}
	}
	return nil
}

func (d *decoder) arguments(dtos []argumentDTO) ([]il.AttributeArgument, error) {
	if len(dtos) == 0 {
		return nil, nil
	}
	out := make([]il.AttributeArgument, len(dtos))
	for i := range dtos {
		a, err := d.argument(&dtos[i])
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (d *decoder) argument(dto *argumentDTO) (il.AttributeArgument, error) {
	t, err := d.typeRef(dto.Type)
	if err != nil {
		return il.AttributeArgument{}, err
	}
	v, err := d.value(&dto.Value)
	if err != nil {
		return il.AttributeArgument{}, err
	}
	return il.AttributeArgument{Type: t, Value: v}, nil
}

func (d *decoder) namedArguments(dtos []namedArgumentDTO) ([]il.NamedArgument, error) {
	if len(dtos) == 0 {
		return nil, nil
	}
	out := make([]il.NamedArgument, len(dtos))
	for i := range dtos {
		a, err := d.argument(&dtos[i].Argument)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dtos[i].Name, err)
		}
		out[i] = il.NamedArgument{Name: dtos[i].Name, Argument: a}
	}
	return out, nil
}

func (d *decoder) value(dto *valueDTO) (any, error) {
	switch dto.Kind {
	case valueNull:
		return nil, nil
	case valueBool:
		return dto.Bool, nil
	case valueInt8:
		return int8(dto.Int), nil
	case valueInt16:
		return int16(dto.Int), nil
	case valueInt32:
		return int32(dto.Int), nil
	case valueInt64:
		return dto.Int, nil
	case valueUint8:
		return uint8(dto.Uint), nil
	case valueUint16:
		return uint16(dto.Uint), nil
	case valueUint32:
		return uint32(dto.Uint), nil
	case valueUint64:
		return dto.Uint, nil
	case valueFloat32:
		return float32(dto.Float), nil
	case valueFloat64:
		return dto.Float, nil
	case valueString:
		return dto.String, nil
	case valueType:
		t, err := d.typeRef(dto.Type)
		if err != nil {
			return nil, err
		}
		return t, nil
	case valueArray:
		elems, err := d.arguments(dto.Elements)
		if err != nil {
			return nil, err
		}
		if elems == nil {
			elems = []il.AttributeArgument{}
		}
		return elems, nil
	}
	return nil, fmt.Errorf("%w: value kind %d", ErrInvalidContainer, dto.Kind)
}

func (d *decoder) symbols() error {
	for _, s := range d.file.Symbols {
		m, err := d.method(s.Method)
		if err != nil {
			return err
		}
		if m.Body == nil {
			return fmt.Errorf("%w: symbols for %s without body", ErrInvalidContainer, m.Name)
		}
		for _, p := range s.Points {
			if p.Instruction < 0 || p.Instruction >= len(m.Body.Instructions) {
				return fmt.Errorf("%w: sequence point at %d", ErrInvalidContainer, p.Instruction)
			}
			m.Body.Instructions[p.Instruction].SequencePoint = &il.SequencePoint{
				Document:    p.Document,
				StartLine:   p.StartLine,
				StartColumn: p.StartColumn,
				EndLine:     p.EndLine,
				EndColumn:   p.EndColumn,
			}
		}
	}
	return nil
}
