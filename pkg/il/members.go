package il

import "strings"

// FieldRef is a field definition or a by-name reference to one.
type FieldRef interface {
	FieldName() string
	DeclaringTypeRef() TypeRef
	Type() TypeRef
	fieldRef()
}

// MethodRef is a method definition, a by-name reference to one, or a
// generic method instantiation.
type MethodRef interface {
	MethodName() string
	DeclaringTypeRef() TypeRef
	ReturnTypeRef() TypeRef
	ParameterTypes() []TypeRef
	HasThis() bool
	methodRef()
}

func (*FieldDef) fieldRef()       {}
func (*FieldReference) fieldRef() {}

func (*MethodDef) methodRef()             {}
func (*MethodReference) methodRef()       {}
func (*GenericInstanceMethod) methodRef() {}

// FieldFlags describe visibility and storage of a field.
type FieldFlags uint16

const (
	FieldPublic FieldFlags = 1 << iota
	FieldPrivate
	FieldFamily
	FieldStatic
	FieldInitOnly
	FieldLiteral
)

// FieldDef is a field owned by a type definition.
type FieldDef struct {
	attributeList

	DeclaringType *TypeDef
	Name          string
	Flags         FieldFlags
	FieldType     TypeRef
	Constant      any
}

func (f *FieldDef) FieldName() string         { return f.Name }
func (f *FieldDef) Type() TypeRef             { return f.FieldType }
func (f *FieldDef) IsStatic() bool            { return f.Flags&FieldStatic != 0 }
func (f *FieldDef) DeclaringTypeRef() TypeRef { return typeOrNil(f.DeclaringType) }

// FieldReference points at a field by name on DeclaringType.
type FieldReference struct {
	DeclaringType TypeRef
	Name          string
	FieldType     TypeRef
}

func (f *FieldReference) FieldName() string         { return f.Name }
func (f *FieldReference) Type() TypeRef             { return f.FieldType }
func (f *FieldReference) DeclaringTypeRef() TypeRef { return f.DeclaringType }

// MethodFlags describe visibility and dispatch of a method.
type MethodFlags uint32

const (
	MethodPublic MethodFlags = 1 << iota
	MethodPrivate
	MethodFamily
	MethodStatic
	MethodVirtual
	MethodAbstract
	MethodFinal
	MethodNewSlot
	MethodHideBySig
	MethodSpecialName
	MethodRTSpecialName
)

const (
	ConstructorName       = ".ctor"
	StaticConstructorName = ".cctor"
)

// MethodDef is a method owned by a type definition.
type MethodDef struct {
	attributeList
	securityList

	DeclaringType     *TypeDef
	Name              string
	Flags             MethodFlags
	ReturnType        *MethodReturnType
	Parameters        []*ParamDef
	GenericParameters []*GenericParam
	Body              *MethodBody
	Overrides         []MethodRef

	this *ParamDef
}

func (m *MethodDef) MethodName() string        { return m.Name }
func (m *MethodDef) HasThis() bool             { return m.Flags&MethodStatic == 0 }
func (m *MethodDef) IsStatic() bool            { return m.Flags&MethodStatic != 0 }
func (m *MethodDef) IsVirtual() bool           { return m.Flags&MethodVirtual != 0 }
func (m *MethodDef) DeclaringTypeRef() TypeRef { return typeOrNil(m.DeclaringType) }

// IsConstructor reports whether m is an instance or static constructor.
func (m *MethodDef) IsConstructor() bool {
	return m.Flags&MethodRTSpecialName != 0 &&
		(m.Name == ConstructorName || m.Name == StaticConstructorName)
}

func (m *MethodDef) ReturnTypeRef() TypeRef {
	if m.ReturnType == nil {
		return nil
	}
	return m.ReturnType.Type
}

func (m *MethodDef) ParameterTypes() []TypeRef {
	out := make([]TypeRef, len(m.Parameters))
	for i, p := range m.Parameters {
		out[i] = p.ParameterType
	}
	return out
}

// ThisParameter returns the implicit receiver parameter of an instance method.
// It is not part of Parameters and always has Index -1.
func (m *MethodDef) ThisParameter() *ParamDef {
	if m.IsStatic() {
		return nil
	}
	if m.this == nil {
		m.this = &ParamDef{Method: m, Name: "this", Index: -1, ParameterType: typeOrNil(m.DeclaringType)}
	}
	return m.this
}

// Argument returns the parameter loaded by ldarg with the given index,
// accounting for the implicit receiver.
func (m *MethodDef) Argument(index int) *ParamDef {
	if m.HasThis() {
		if index == 0 {
			return m.ThisParameter()
		}
		index--
	}
	if index < 0 || index >= len(m.Parameters) {
		return nil
	}
	return m.Parameters[index]
}

// MethodReference points at a method by name and signature. Parameter and
// return types use the open generic form of the declaring type.
type MethodReference struct {
	DeclaringType TypeRef
	Name          string
	ReturnType    TypeRef
	Parameters    []TypeRef
	This          bool
	GenericArity  int
}

func (m *MethodReference) MethodName() string        { return m.Name }
func (m *MethodReference) DeclaringTypeRef() TypeRef { return m.DeclaringType }
func (m *MethodReference) ReturnTypeRef() TypeRef    { return m.ReturnType }
func (m *MethodReference) ParameterTypes() []TypeRef { return m.Parameters }
func (m *MethodReference) HasThis() bool             { return m.This }

// GenericInstanceMethod closes a generic method over Arguments.
type GenericInstanceMethod struct {
	Method    MethodRef
	Arguments []TypeRef
}

func (m *GenericInstanceMethod) MethodName() string        { return m.Method.MethodName() }
func (m *GenericInstanceMethod) DeclaringTypeRef() TypeRef { return m.Method.DeclaringTypeRef() }
func (m *GenericInstanceMethod) ReturnTypeRef() TypeRef    { return m.Method.ReturnTypeRef() }
func (m *GenericInstanceMethod) ParameterTypes() []TypeRef { return m.Method.ParameterTypes() }
func (m *GenericInstanceMethod) HasThis() bool             { return m.Method.HasThis() }

// MethodFullName renders "Ret Declaring::Name(P1,P2)".
func MethodFullName(m MethodRef) string {
	var sb strings.Builder
	if rt := m.ReturnTypeRef(); rt != nil {
		sb.WriteString(rt.FullName())
		sb.WriteByte(' ')
	}
	if dt := m.DeclaringTypeRef(); dt != nil {
		sb.WriteString(dt.FullName())
		sb.WriteString("::")
	}
	sb.WriteString(m.MethodName())
	if gm, ok := m.(*GenericInstanceMethod); ok {
		args := make([]string, len(gm.Arguments))
		for i, a := range gm.Arguments {
			args[i] = a.FullName()
		}
		sb.WriteString("<" + strings.Join(args, ",") + ">")
	}
	sb.WriteByte('(')
	for i, p := range m.ParameterTypes() {
		if i > 0 {
			sb.WriteByte(',')
		}
		if p != nil {
			sb.WriteString(p.FullName())
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// FieldFullName renders "Type Declaring::Name".
func FieldFullName(f FieldRef) string {
	var sb strings.Builder
	if ft := f.Type(); ft != nil {
		sb.WriteString(ft.FullName())
		sb.WriteByte(' ')
	}
	if dt := f.DeclaringTypeRef(); dt != nil {
		sb.WriteString(dt.FullName())
		sb.WriteString("::")
	}
	sb.WriteString(f.FieldName())
	return sb.String()
}

// SameSignature reports whether two methods have the same name, receiver,
// generic arity, return type and parameter types.
func SameSignature(a, b MethodRef) bool {
	if a.MethodName() != b.MethodName() || a.HasThis() != b.HasThis() {
		return false
	}
	if genericArity(a) != genericArity(b) {
		return false
	}
	if !SameType(a.ReturnTypeRef(), b.ReturnTypeRef()) {
		return false
	}
	ap, bp := a.ParameterTypes(), b.ParameterTypes()
	if len(ap) != len(bp) {
		return false
	}
	for i := range ap {
		if !SameType(ap[i], bp[i]) {
			return false
		}
	}
	return true
}

func genericArity(m MethodRef) int {
	switch v := m.(type) {
	case *MethodDef:
		return len(v.GenericParameters)
	case *MethodReference:
		return v.GenericArity
	case *GenericInstanceMethod:
		return genericArity(v.Method)
	}
	return 0
}

// ParamFlags describe parameter passing.
type ParamFlags uint16

const (
	ParamIn ParamFlags = 1 << iota
	ParamOut
	ParamOptional
)

// ParamDef is a declared parameter of a method.
type ParamDef struct {
	attributeList

	Method        *MethodDef
	Name          string
	Index         int
	Flags         ParamFlags
	ParameterType TypeRef
}

// IsThis reports whether p is the implicit receiver.
func (p *ParamDef) IsThis() bool { return p.Index < 0 }

// ArgIndex returns the ldarg index of p.
func (p *ParamDef) ArgIndex() int {
	if p.Index < 0 {
		return 0
	}
	if p.Method != nil && p.Method.HasThis() {
		return p.Index + 1
	}
	return p.Index
}

// MethodReturnType is the return-type slot of a method.
type MethodReturnType struct {
	attributeList

	Method *MethodDef
	Type   TypeRef
}

// PropertyDef is a property owned by a type definition.
type PropertyDef struct {
	attributeList

	DeclaringType *TypeDef
	Name          string
	PropertyType  TypeRef
	Getter        *MethodDef
	Setter        *MethodDef
}

// EventDef is an event owned by a type definition.
type EventDef struct {
	attributeList

	DeclaringType *TypeDef
	Name          string
	EventType     TypeRef
	AddMethod     *MethodDef
	RemoveMethod  *MethodDef
	InvokeMethod  *MethodDef
}

func typeOrNil(t *TypeDef) TypeRef {
	if t == nil {
		return nil
	}
	return t
}
