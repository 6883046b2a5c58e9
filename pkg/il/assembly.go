package il

// Assembly is the root of a metadata universe: a named, versioned set of modules.
type Assembly struct {
	attributeList
	securityList

	Name    string
	Version string
	Modules []*Module
}

// Module owns top-level types, exported types and resources.
type Module struct {
	attributeList

	Assembly      *Assembly
	Name          string
	Types         []*TypeDef
	ExportedTypes []*ExportedType
	Resources     []*Resource
}

// ExportedType forwards a type name to another assembly.
type ExportedType struct {
	Module    *Module
	Namespace string
	Name      string
	Scope     string
}

func (e *ExportedType) FullName() string { return joinNamespace(e.Namespace, e.Name) }

// Resource is a named blob embedded in a module.
type Resource struct {
	Module *Module
	Name   string
	Public bool
	Data   []byte
}

// SecurityAction is the action of a declarative security declaration.
type SecurityAction uint16

const (
	SecurityDemand SecurityAction = iota + 2
	SecurityAssert
	SecurityDeny
	SecurityPermitOnly
	SecurityLinkDemand
	SecurityInheritanceDemand
)

// SecurityDeclaration groups security attributes under one action.
type SecurityDeclaration struct {
	Owner      Element
	Action     SecurityAction
	Attributes []*SecurityAttribute
}

// SecurityAttribute is one permission attribute of a security declaration.
type SecurityAttribute struct {
	Declaration   *SecurityDeclaration
	AttributeType TypeRef
	Properties    []NamedArgument
}

// AddAttribute appends a security attribute to d.
func (d *SecurityDeclaration) AddAttribute(t TypeRef, props ...NamedArgument) *SecurityAttribute {
	a := &SecurityAttribute{Declaration: d, AttributeType: t, Properties: props}
	d.Attributes = append(d.Attributes, a)
	return a
}

// CustomAttribute is an attribute instance attached to an element.
type CustomAttribute struct {
	Owner       Element
	Constructor MethodRef
	Arguments   []AttributeArgument
	Fields      []NamedArgument
	Properties  []NamedArgument
}

// AttributeType returns the type declaring the attribute constructor.
func (ca *CustomAttribute) AttributeType() TypeRef {
	if ca.Constructor == nil {
		return nil
	}
	return ca.Constructor.DeclaringTypeRef()
}

// AttributeArgument is a typed attribute value. Value holds a primitive, a
// string, a TypeRef (typeof), a []AttributeArgument (arrays) or nil.
type AttributeArgument struct {
	Type  TypeRef
	Value any
}

// NamedArgument is a field or property assignment of an attribute.
type NamedArgument struct {
	Name     string
	Argument AttributeArgument
}

// NewCustomAttribute builds a detached attribute instance.
func NewCustomAttribute(ctor MethodRef, args ...AttributeArgument) *CustomAttribute {
	return &CustomAttribute{Constructor: ctor, Arguments: args}
}

// NewAssembly creates an assembly with a single main module.
func NewAssembly(name string) *Assembly {
	a := &Assembly{Name: name, Version: "1.0.0.0"}
	a.AddModule(&Module{Name: name + ".dll"})
	return a
}

// AddModule appends m to a.
func (a *Assembly) AddModule(m *Module) *Module {
	m.Assembly = a
	a.Modules = append(a.Modules, m)
	return m
}

// MainModule returns the first module of a.
func (a *Assembly) MainModule() *Module {
	if len(a.Modules) == 0 {
		return nil
	}
	return a.Modules[0]
}

// AllTypes returns every type of a, nested types included, in declaration order.
func (a *Assembly) AllTypes() []*TypeDef {
	var out []*TypeDef
	var walk func(t *TypeDef)
	walk = func(t *TypeDef) {
		out = append(out, t)
		for _, n := range t.NestedTypes {
			walk(n)
		}
	}
	for _, m := range a.Modules {
		for _, t := range m.Types {
			walk(t)
		}
	}
	return out
}

// FindType returns the type with the given full name ('/' separates nested types).
func (a *Assembly) FindType(fullName string) *TypeDef {
	for _, t := range a.AllTypes() {
		if t.FullName() == fullName {
			return t
		}
	}
	return nil
}

// AddType appends a top-level type to m.
func (m *Module) AddType(t *TypeDef) *TypeDef {
	t.Module = m
	t.DeclaringType = nil
	m.Types = append(m.Types, t)
	return t
}

// AddResource appends r to m.
func (m *Module) AddResource(r *Resource) *Resource {
	r.Module = m
	m.Resources = append(m.Resources, r)
	return r
}

// AddExportedType appends e to m.
func (m *Module) AddExportedType(e *ExportedType) *ExportedType {
	e.Module = m
	m.ExportedTypes = append(m.ExportedTypes, e)
	return e
}

// NewType creates a detached type definition.
func NewType(namespace, name string, flags TypeFlags, base TypeRef) *TypeDef {
	return &TypeDef{Namespace: namespace, Name: name, Flags: flags, BaseType: base}
}

// AddNestedType declares n inside t.
func (t *TypeDef) AddNestedType(n *TypeDef) *TypeDef {
	n.DeclaringType = t
	n.Module = nil
	n.Namespace = ""
	t.NestedTypes = append(t.NestedTypes, n)
	return n
}

// AddInterface records that t implements iface.
func (t *TypeDef) AddInterface(iface TypeRef) {
	t.Interfaces = append(t.Interfaces, iface)
}

// AddField appends f to t.
func (t *TypeDef) AddField(f *FieldDef) *FieldDef {
	f.DeclaringType = t
	t.Fields = append(t.Fields, f)
	return f
}

// AddMethod appends m to t.
func (t *TypeDef) AddMethod(m *MethodDef) *MethodDef {
	m.DeclaringType = t
	t.Methods = append(t.Methods, m)
	return m
}

// AddProperty appends p to t.
func (t *TypeDef) AddProperty(p *PropertyDef) *PropertyDef {
	p.DeclaringType = t
	t.Properties = append(t.Properties, p)
	return p
}

// AddEvent appends e to t.
func (t *TypeDef) AddEvent(e *EventDef) *EventDef {
	e.DeclaringType = t
	t.Events = append(t.Events, e)
	return e
}

// NewField creates a detached field definition.
func NewField(name string, flags FieldFlags, fieldType TypeRef) *FieldDef {
	return &FieldDef{Name: name, Flags: flags, FieldType: fieldType}
}

// NewMethod creates a detached method with a return-type slot.
func NewMethod(name string, flags MethodFlags, returnType TypeRef) *MethodDef {
	m := &MethodDef{Name: name, Flags: flags}
	m.ReturnType = &MethodReturnType{Method: m, Type: returnType}
	return m
}

// NewConstructor creates a detached instance constructor.
func NewConstructor(flags MethodFlags, voidType TypeRef) *MethodDef {
	return NewMethod(ConstructorName, flags|MethodSpecialName|MethodRTSpecialName|MethodHideBySig, voidType)
}

// AddParameter appends a parameter to m.
func (m *MethodDef) AddParameter(name string, t TypeRef) *ParamDef {
	p := &ParamDef{Method: m, Name: name, Index: len(m.Parameters), ParameterType: t}
	m.Parameters = append(m.Parameters, p)
	return p
}
