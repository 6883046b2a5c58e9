package il

import (
	"strconv"
	"strings"
)

// TypeRef is anything that can appear where a type is expected: a definition,
// a reference into another assembly, a generic parameter or a type
// specification built from other types.
type TypeRef interface {
	FullName() string
	typeRef()
}

func (*TypeDef) typeRef()             {}
func (*TypeReference) typeRef()       {}
func (*ArrayType) typeRef()           {}
func (*ByRefType) typeRef()           {}
func (*PointerType) typeRef()         {}
func (*GenericInstanceType) typeRef() {}
func (*GenericParam) typeRef()        {}

// TypeFlags describe visibility and semantics of a type definition.
type TypeFlags uint32

const (
	TypePublic TypeFlags = 1 << iota
	TypeNestedPublic
	TypeNestedPrivate
	TypeInterface
	TypeAbstract
	TypeSealed
	TypeSequentialLayout
	TypeSerializable
	TypeBeforeFieldInit
)

// TypeDef is a type definition owned by exactly one module (or declaring type).
type TypeDef struct {
	attributeList
	securityList

	Module        *Module
	DeclaringType *TypeDef

	Namespace string
	Name      string
	Flags     TypeFlags

	BaseType          TypeRef
	Interfaces        []TypeRef
	GenericParameters []*GenericParam
	NestedTypes       []*TypeDef
	Fields            []*FieldDef
	Methods           []*MethodDef
	Properties        []*PropertyDef
	Events            []*EventDef
}

// FullName returns "Namespace.Name", with nested types separated by '/'.
func (t *TypeDef) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	return joinNamespace(t.Namespace, t.Name)
}

// IsInterface reports whether t is an interface.
func (t *TypeDef) IsInterface() bool { return t.Flags&TypeInterface != 0 }

// IsNested reports whether t is declared inside another type.
func (t *TypeDef) IsNested() bool { return t.DeclaringType != nil }

// Assembly returns the assembly that owns t, or nil for a detached type.
func (t *TypeDef) Assembly() *Assembly {
	for cur := t; cur != nil; cur = cur.DeclaringType {
		if cur.Module != nil {
			return cur.Module.Assembly
		}
	}
	return nil
}

// OwningModule returns the module of t, walking through declaring types.
func (t *TypeDef) OwningModule() *Module {
	for cur := t; cur != nil; cur = cur.DeclaringType {
		if cur.Module != nil {
			return cur.Module
		}
	}
	return nil
}

// FindMethods returns every method of t with the given name.
func (t *TypeDef) FindMethods(name string) []*MethodDef {
	var out []*MethodDef
	for _, m := range t.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// FindField returns the field of t with the given name.
func (t *TypeDef) FindField(name string) *FieldDef {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FindNestedType returns the nested type of t with the given name.
func (t *TypeDef) FindNestedType(name string) *TypeDef {
	for _, n := range t.NestedTypes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Constructors returns the instance constructors of t.
func (t *TypeDef) Constructors() []*MethodDef {
	var out []*MethodDef
	for _, m := range t.Methods {
		if m.IsConstructor() && !m.IsStatic() {
			out = append(out, m)
		}
	}
	return out
}

// TypeReference points at a type by name. Scope is the name of the assembly
// expected to define it; an empty scope means "search every loaded assembly".
type TypeReference struct {
	Scope         string
	Namespace     string
	Name          string
	DeclaringType *TypeReference
	IsValueType   bool
}

// FullName returns "Namespace.Name", with nested types separated by '/'.
func (t *TypeReference) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	return joinNamespace(t.Namespace, t.Name)
}

// ArrayType is a single or multi dimensional array of Element.
type ArrayType struct {
	Element TypeRef
	Rank    int
}

// FullName returns the element name followed by the rank brackets.
func (t *ArrayType) FullName() string {
	if t.Rank <= 1 {
		return t.Element.FullName() + "[]"
	}
	return t.Element.FullName() + "[" + strings.Repeat(",", t.Rank-1) + "]"
}

// ByRefType is a managed pointer to Element.
type ByRefType struct {
	Element TypeRef
}

func (t *ByRefType) FullName() string { return t.Element.FullName() + "&" }

// PointerType is an unmanaged pointer to Element.
type PointerType struct {
	Element TypeRef
}

func (t *PointerType) FullName() string { return t.Element.FullName() + "*" }

// GenericInstanceType is a generic type closed over Arguments.
type GenericInstanceType struct {
	Element   TypeRef
	Arguments []TypeRef
}

func (t *GenericInstanceType) FullName() string {
	args := make([]string, len(t.Arguments))
	for i, a := range t.Arguments {
		args[i] = a.FullName()
	}
	return t.Element.FullName() + "<" + strings.Join(args, ",") + ">"
}

// GenericParamFlags carry variance and special constraints.
type GenericParamFlags uint16

const (
	GenericCovariant GenericParamFlags = 1 << iota
	GenericContravariant
	GenericReferenceTypeConstraint
	GenericValueTypeConstraint
	GenericDefaultConstructorConstraint
)

// GenericOwner is a type or method that declares generic parameters.
type GenericOwner interface {
	Element
	genericParameters() *[]*GenericParam
}

func (t *TypeDef) genericParameters() *[]*GenericParam   { return &t.GenericParameters }
func (m *MethodDef) genericParameters() *[]*GenericParam { return &m.GenericParameters }

// GenericParam is a generic parameter declared by a type or a method.
type GenericParam struct {
	attributeList

	Owner       GenericOwner
	Name        string
	Position    int
	Flags       GenericParamFlags
	Constraints []TypeRef
}

func (p *GenericParam) FullName() string { return p.Name }

// DeclaringMethod returns the owning method, or nil for type parameters.
func (p *GenericParam) DeclaringMethod() *MethodDef {
	m, _ := p.Owner.(*MethodDef)
	return m
}

// DeclaringType returns the owning type, or nil for method parameters.
func (p *GenericParam) DeclaringType() *TypeDef {
	t, _ := p.Owner.(*TypeDef)
	return t
}

// AddGenericParameter declares a new generic parameter on owner.
func AddGenericParameter(owner GenericOwner, name string) *GenericParam {
	list := owner.genericParameters()
	p := &GenericParam{Owner: owner, Name: name, Position: len(*list)}
	*list = append(*list, p)
	return p
}

// ElementTypeOf strips array, by-ref and pointer specifications.
func ElementTypeOf(t TypeRef) TypeRef {
	for {
		switch v := t.(type) {
		case *ArrayType:
			t = v.Element
		case *ByRefType:
			t = v.Element
		case *PointerType:
			t = v.Element
		default:
			return t
		}
	}
}

// ScopeOf returns the assembly name a type is expected to live in.
func ScopeOf(t TypeRef) string {
	switch v := t.(type) {
	case *TypeDef:
		if a := v.Assembly(); a != nil {
			return a.Name
		}
	case *TypeReference:
		if v.DeclaringType != nil && v.Scope == "" {
			return ScopeOf(v.DeclaringType)
		}
		return v.Scope
	case *ArrayType:
		return ScopeOf(v.Element)
	case *ByRefType:
		return ScopeOf(v.Element)
	case *PointerType:
		return ScopeOf(v.Element)
	case *GenericInstanceType:
		return ScopeOf(v.Element)
	}
	return ""
}

// SignatureName renders t the way it appears in a member signature: generic
// parameters become positional ("!0" for type parameters, "!!0" for method
// parameters), so that signatures compare equal independent of naming.
func SignatureName(t TypeRef) string {
	switch v := t.(type) {
	case nil:
		return "<nil>"
	case *GenericParam:
		if v.DeclaringMethod() != nil {
			return "!!" + strconv.Itoa(v.Position)
		}
		return "!" + strconv.Itoa(v.Position)
	case *ArrayType:
		if v.Rank <= 1 {
			return SignatureName(v.Element) + "[]"
		}
		return SignatureName(v.Element) + "[" + strings.Repeat(",", v.Rank-1) + "]"
	case *ByRefType:
		return SignatureName(v.Element) + "&"
	case *PointerType:
		return SignatureName(v.Element) + "*"
	case *GenericInstanceType:
		args := make([]string, len(v.Arguments))
		for i, a := range v.Arguments {
			args[i] = SignatureName(a)
		}
		return SignatureName(v.Element) + "<" + strings.Join(args, ",") + ">"
	}
	return t.FullName()
}

// SameType reports whether a and b denote the same type by signature.
func SameType(a, b TypeRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return SignatureName(a) == SignatureName(b)
}

// AssemblyQualifiedName returns "FullName, Scope" for t.
func AssemblyQualifiedName(t TypeRef) string {
	scope := ScopeOf(t)
	if scope == "" {
		return t.FullName()
	}
	return t.FullName() + ", " + scope
}

// Reference returns a by-name reference to t suitable for use from another assembly.
func Reference(t *TypeDef) *TypeReference {
	ref := &TypeReference{
		Namespace:   t.Namespace,
		Name:        t.Name,
		IsValueType: IsValueType(t),
	}
	if t.DeclaringType != nil {
		ref.DeclaringType = Reference(t.DeclaringType)
	} else if a := t.Assembly(); a != nil {
		ref.Scope = a.Name
	}
	return ref
}

// IsValueType reports whether t derives from System.ValueType or System.Enum.
func IsValueType(t *TypeDef) bool {
	if t.BaseType == nil {
		return false
	}
	switch t.BaseType.FullName() {
	case "System.ValueType", "System.Enum":
		return t.FullName() != "System.Enum"
	}
	return false
}

func joinNamespace(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "." + name
}
