// Package il defines the in-memory bytecode metadata model used by the weaver.
// It includes assemblies, modules, type and member definitions, method bodies,
// instructions and their operands, and the reference types that point at
// definitions living in other assemblies.
package il

import "strconv"

// Kind identifies the kind of a program element.
type Kind int

const (
	KindAssembly Kind = iota
	KindModule
	KindType
	KindField
	KindMethod
	KindMethodBody
	KindProperty
	KindEvent
	KindGenericParameter
	KindParameter
	KindReturnType
	KindCustomAttribute
	KindVariable
	KindInstruction
	KindExceptionHandler
	KindExportedType
	KindResource
	KindSecurityDeclaration
	KindSecurityAttribute
)

var kindNames = [...]string{
	KindAssembly:            "assembly",
	KindModule:              "module",
	KindType:                "type",
	KindField:               "field",
	KindMethod:              "method",
	KindMethodBody:          "method_body",
	KindProperty:            "property",
	KindEvent:               "event",
	KindGenericParameter:    "generic_parameter",
	KindParameter:           "parameter",
	KindReturnType:          "return_type",
	KindCustomAttribute:     "custom_attribute",
	KindVariable:            "variable",
	KindInstruction:         "instruction",
	KindExceptionHandler:    "exception_handler",
	KindExportedType:        "exported_type",
	KindResource:            "resource",
	KindSecurityDeclaration: "security_declaration",
	KindSecurityAttribute:   "security_attribute",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Element is a bytecode-level program element. Identity is pointer identity.
// The set of implementations is closed; dispatch over it goes through
// ElementVisitor so that every dispatcher must handle every kind.
type Element interface {
	Kind() Kind
	Accept(v ElementVisitor) error
	element()
}

// ElementVisitor has one method per element kind.
type ElementVisitor interface {
	VisitAssembly(*Assembly) error
	VisitModule(*Module) error
	VisitType(*TypeDef) error
	VisitField(*FieldDef) error
	VisitMethod(*MethodDef) error
	VisitMethodBody(*MethodBody) error
	VisitProperty(*PropertyDef) error
	VisitEvent(*EventDef) error
	VisitGenericParameter(*GenericParam) error
	VisitParameter(*ParamDef) error
	VisitReturnType(*MethodReturnType) error
	VisitCustomAttribute(*CustomAttribute) error
	VisitVariable(*Variable) error
	VisitInstruction(*Instruction) error
	VisitExceptionHandler(*ExceptionHandler) error
	VisitExportedType(*ExportedType) error
	VisitResource(*Resource) error
	VisitSecurityDeclaration(*SecurityDeclaration) error
	VisitSecurityAttribute(*SecurityAttribute) error
}

func (*Assembly) Kind() Kind            { return KindAssembly }
func (*Module) Kind() Kind              { return KindModule }
func (*TypeDef) Kind() Kind             { return KindType }
func (*FieldDef) Kind() Kind            { return KindField }
func (*MethodDef) Kind() Kind           { return KindMethod }
func (*MethodBody) Kind() Kind          { return KindMethodBody }
func (*PropertyDef) Kind() Kind         { return KindProperty }
func (*EventDef) Kind() Kind            { return KindEvent }
func (*GenericParam) Kind() Kind        { return KindGenericParameter }
func (*ParamDef) Kind() Kind            { return KindParameter }
func (*MethodReturnType) Kind() Kind    { return KindReturnType }
func (*CustomAttribute) Kind() Kind     { return KindCustomAttribute }
func (*Variable) Kind() Kind            { return KindVariable }
func (*Instruction) Kind() Kind         { return KindInstruction }
func (*ExceptionHandler) Kind() Kind    { return KindExceptionHandler }
func (*ExportedType) Kind() Kind        { return KindExportedType }
func (*Resource) Kind() Kind            { return KindResource }
func (*SecurityDeclaration) Kind() Kind { return KindSecurityDeclaration }
func (*SecurityAttribute) Kind() Kind   { return KindSecurityAttribute }

func (e *Assembly) Accept(v ElementVisitor) error            { return v.VisitAssembly(e) }
func (e *Module) Accept(v ElementVisitor) error              { return v.VisitModule(e) }
func (e *TypeDef) Accept(v ElementVisitor) error             { return v.VisitType(e) }
func (e *FieldDef) Accept(v ElementVisitor) error            { return v.VisitField(e) }
func (e *MethodDef) Accept(v ElementVisitor) error           { return v.VisitMethod(e) }
func (e *MethodBody) Accept(v ElementVisitor) error          { return v.VisitMethodBody(e) }
func (e *PropertyDef) Accept(v ElementVisitor) error         { return v.VisitProperty(e) }
func (e *EventDef) Accept(v ElementVisitor) error            { return v.VisitEvent(e) }
func (e *GenericParam) Accept(v ElementVisitor) error        { return v.VisitGenericParameter(e) }
func (e *ParamDef) Accept(v ElementVisitor) error            { return v.VisitParameter(e) }
func (e *MethodReturnType) Accept(v ElementVisitor) error    { return v.VisitReturnType(e) }
func (e *CustomAttribute) Accept(v ElementVisitor) error     { return v.VisitCustomAttribute(e) }
func (e *Variable) Accept(v ElementVisitor) error            { return v.VisitVariable(e) }
func (e *Instruction) Accept(v ElementVisitor) error         { return v.VisitInstruction(e) }
func (e *ExceptionHandler) Accept(v ElementVisitor) error    { return v.VisitExceptionHandler(e) }
func (e *ExportedType) Accept(v ElementVisitor) error        { return v.VisitExportedType(e) }
func (e *Resource) Accept(v ElementVisitor) error            { return v.VisitResource(e) }
func (e *SecurityDeclaration) Accept(v ElementVisitor) error { return v.VisitSecurityDeclaration(e) }
func (e *SecurityAttribute) Accept(v ElementVisitor) error   { return v.VisitSecurityAttribute(e) }

func (*Assembly) element()            {}
func (*Module) element()              {}
func (*TypeDef) element()             {}
func (*FieldDef) element()            {}
func (*MethodDef) element()           {}
func (*MethodBody) element()          {}
func (*PropertyDef) element()         {}
func (*EventDef) element()            {}
func (*GenericParam) element()        {}
func (*ParamDef) element()            {}
func (*MethodReturnType) element()    {}
func (*CustomAttribute) element()     {}
func (*Variable) element()            {}
func (*Instruction) element()         {}
func (*ExceptionHandler) element()    {}
func (*ExportedType) element()        {}
func (*Resource) element()            {}
func (*SecurityDeclaration) element() {}
func (*SecurityAttribute) element()   {}

// IsNil reports whether e is nil or wraps a nil pointer.
func IsNil(e Element) bool {
	if e == nil {
		return true
	}
	switch v := e.(type) {
	case *Assembly:
		return v == nil
	case *Module:
		return v == nil
	case *TypeDef:
		return v == nil
	case *FieldDef:
		return v == nil
	case *MethodDef:
		return v == nil
	case *MethodBody:
		return v == nil
	case *PropertyDef:
		return v == nil
	case *EventDef:
		return v == nil
	case *GenericParam:
		return v == nil
	case *ParamDef:
		return v == nil
	case *MethodReturnType:
		return v == nil
	case *CustomAttribute:
		return v == nil
	case *Variable:
		return v == nil
	case *Instruction:
		return v == nil
	case *ExceptionHandler:
		return v == nil
	case *ExportedType:
		return v == nil
	case *Resource:
		return v == nil
	case *SecurityDeclaration:
		return v == nil
	case *SecurityAttribute:
		return v == nil
	}
	return false
}

// AttributeProvider is an element that can carry custom attributes.
type AttributeProvider interface {
	Element
	attributes() *[]*CustomAttribute
}

// attributeList is embedded by every element that carries custom attributes.
type attributeList struct {
	CustomAttributes []*CustomAttribute
}

func (l *attributeList) attributes() *[]*CustomAttribute { return &l.CustomAttributes }

// Attributes returns the custom attributes attached to p.
func Attributes(p AttributeProvider) []*CustomAttribute {
	return *p.attributes()
}

// AddCustomAttribute appends ca to p and records p as its owner.
func AddCustomAttribute(p AttributeProvider, ca *CustomAttribute) *CustomAttribute {
	ca.Owner = p
	list := p.attributes()
	*list = append(*list, ca)
	return ca
}

// RemoveCustomAttribute detaches ca from p. It reports whether ca was found.
func RemoveCustomAttribute(p AttributeProvider, ca *CustomAttribute) bool {
	list := p.attributes()
	for i, c := range *list {
		if c == ca {
			*list = append((*list)[:i], (*list)[i+1:]...)
			ca.Owner = nil
			return true
		}
	}
	return false
}

// SecurityProvider is an element that can carry security declarations.
type SecurityProvider interface {
	Element
	securityDeclarations() *[]*SecurityDeclaration
}

type securityList struct {
	SecurityDeclarations []*SecurityDeclaration
}

func (l *securityList) securityDeclarations() *[]*SecurityDeclaration {
	return &l.SecurityDeclarations
}

// SecurityDeclarations returns the security declarations attached to p.
func SecurityDeclarations(p SecurityProvider) []*SecurityDeclaration {
	return *p.securityDeclarations()
}

// AddSecurityDeclaration appends d to p and records p as its owner.
func AddSecurityDeclaration(p SecurityProvider, d *SecurityDeclaration) *SecurityDeclaration {
	d.Owner = p
	list := p.securityDeclarations()
	*list = append(*list, d)
	return d
}

// Describe names e for diagnostics, e.g. "field System.Int32 Sample.Node::count".
func Describe(e Element) string {
	if IsNil(e) {
		return "<nil>"
	}
	var name string
	switch v := e.(type) {
	case *Assembly:
		name = v.Name
	case *Module:
		name = v.Name
	case *TypeDef:
		name = v.FullName()
	case *FieldDef:
		name = FieldFullName(v)
	case *MethodDef:
		name = MethodFullName(v)
	case *MethodBody:
		name = describeMethod(v.Method)
	case *PropertyDef:
		name = describeOwner(v.DeclaringType) + v.Name
	case *EventDef:
		name = describeOwner(v.DeclaringType) + v.Name
	case *GenericParam:
		name = v.Name
	case *ParamDef:
		name = v.Name + " of " + describeMethod(v.Method)
	case *MethodReturnType:
		name = describeMethod(v.Method)
	case *CustomAttribute:
		if v.Constructor != nil && v.Constructor.DeclaringTypeRef() != nil {
			name = v.Constructor.DeclaringTypeRef().FullName()
		}
	case *Variable:
		name = "V_" + strconv.Itoa(v.Index)
		if v.Body != nil {
			name += " of " + describeMethod(v.Body.Method)
		}
	case *Instruction:
		name = v.String()
	case *ExceptionHandler:
		name = v.HandlerType.String()
	case *ExportedType:
		name = v.FullName()
	case *Resource:
		name = v.Name
	case *SecurityDeclaration:
		name = "action " + strconv.Itoa(int(v.Action))
	case *SecurityAttribute:
		if v.AttributeType != nil {
			name = v.AttributeType.FullName()
		}
	}
	return e.Kind().String() + " " + name
}

func describeMethod(m *MethodDef) string {
	if m == nil {
		return "<detached>"
	}
	return MethodFullName(m)
}

func describeOwner(t *TypeDef) string {
	if t == nil {
		return ""
	}
	return t.FullName() + "::"
}
