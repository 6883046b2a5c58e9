package extractor

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

// Members returns the elements directly contained by e in declaration order.
func Members(e il.Element) ([]il.Element, error) {
	if il.IsNil(e) {
		return nil, fmt.Errorf("%w: <nil>", ErrUnsupportedElement)
	}
	v := &memberVisitor{}
	if err := e.Accept(v); err != nil {
		return nil, err
	}
	return v.out, nil
}

type memberVisitor struct {
	out []il.Element
}

func appendAll[T il.Element](out []il.Element, items []T) []il.Element {
	for _, item := range items {
		out = append(out, item)
	}
	return out
}

func (v *memberVisitor) VisitAssembly(a *il.Assembly) error {
	v.out = appendAll(v.out, a.Modules)
	v.out = appendAll(v.out, a.CustomAttributes)
	v.out = appendAll(v.out, a.SecurityDeclarations)
	return nil
}

func (v *memberVisitor) VisitModule(m *il.Module) error {
	v.out = appendAll(v.out, m.Types)
	v.out = appendAll(v.out, m.ExportedTypes)
	v.out = appendAll(v.out, m.Resources)
	v.out = appendAll(v.out, m.CustomAttributes)
	return nil
}

func (v *memberVisitor) VisitType(t *il.TypeDef) error {
	v.out = appendAll(v.out, t.GenericParameters)
	v.out = appendAll(v.out, t.NestedTypes)
	v.out = appendAll(v.out, t.Fields)
	v.out = appendAll(v.out, t.Methods)
	v.out = appendAll(v.out, t.Properties)
	v.out = appendAll(v.out, t.Events)
	v.out = appendAll(v.out, t.CustomAttributes)
	v.out = appendAll(v.out, t.SecurityDeclarations)
	return nil
}

func (v *memberVisitor) VisitField(f *il.FieldDef) error {
	v.out = appendAll(v.out, f.CustomAttributes)
	return nil
}

func (v *memberVisitor) VisitMethod(m *il.MethodDef) error {
	v.out = appendAll(v.out, m.GenericParameters)
	if m.ReturnType != nil {
		v.out = append(v.out, m.ReturnType)
	}
	v.out = appendAll(v.out, m.Parameters)
	if m.Body != nil {
		v.out = append(v.out, m.Body)
	}
	v.out = appendAll(v.out, m.CustomAttributes)
	v.out = appendAll(v.out, m.SecurityDeclarations)
	return nil
}

func (v *memberVisitor) VisitMethodBody(b *il.MethodBody) error {
	v.out = appendAll(v.out, b.Variables)
	v.out = appendAll(v.out, b.Instructions)
	v.out = appendAll(v.out, b.ExceptionHandlers)
	return nil
}

func (v *memberVisitor) VisitProperty(p *il.PropertyDef) error {
	v.out = appendAll(v.out, p.CustomAttributes)
	return nil
}

func (v *memberVisitor) VisitEvent(e *il.EventDef) error {
	v.out = appendAll(v.out, e.CustomAttributes)
	return nil
}

func (v *memberVisitor) VisitGenericParameter(gp *il.GenericParam) error {
	v.out = appendAll(v.out, gp.CustomAttributes)
	return nil
}

func (v *memberVisitor) VisitParameter(p *il.ParamDef) error {
	v.out = appendAll(v.out, p.CustomAttributes)
	return nil
}

func (v *memberVisitor) VisitReturnType(rt *il.MethodReturnType) error {
	v.out = appendAll(v.out, rt.CustomAttributes)
	return nil
}

func (v *memberVisitor) VisitSecurityDeclaration(d *il.SecurityDeclaration) error {
	v.out = appendAll(v.out, d.Attributes)
	return nil
}

func (v *memberVisitor) VisitCustomAttribute(*il.CustomAttribute) error     { return nil }
func (v *memberVisitor) VisitVariable(*il.Variable) error                   { return nil }
func (v *memberVisitor) VisitInstruction(*il.Instruction) error             { return nil }
func (v *memberVisitor) VisitExceptionHandler(*il.ExceptionHandler) error   { return nil }
func (v *memberVisitor) VisitExportedType(*il.ExportedType) error           { return nil }
func (v *memberVisitor) VisitResource(*il.Resource) error                   { return nil }
func (v *memberVisitor) VisitSecurityAttribute(*il.SecurityAttribute) error { return nil }
