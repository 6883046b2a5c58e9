package cloning

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

// shellBuilder creates the empty target of one element and attaches it to
// the target of its owner.
type shellBuilder struct {
	ctx *Context
	out il.Element
}

func (s *shellBuilder) owner(e il.Element) (il.Element, error) {
	if il.IsNil(e) {
		return nil, fmt.Errorf("owner: %w", ErrNilTarget)
	}
	return s.ctx.Target(e)
}

func (s *shellBuilder) ownerType(t *il.TypeDef) (*il.TypeDef, error) {
	if t == nil {
		return nil, fmt.Errorf("declaring type: %w", ErrNilTarget)
	}
	target, err := s.ctx.Target(t)
	if err != nil {
		return nil, err
	}
	out, ok := target.(*il.TypeDef)
	if !ok {
		return nil, fmt.Errorf("declaring type maps to %s", target.Kind())
	}
	return out, nil
}

func (s *shellBuilder) ownerMethod(m *il.MethodDef) (*il.MethodDef, error) {
	if m == nil {
		return nil, fmt.Errorf("declaring method: %w", ErrNilTarget)
	}
	target, err := s.ctx.Target(m)
	if err != nil {
		return nil, err
	}
	out, ok := target.(*il.MethodDef)
	if !ok {
		return nil, fmt.Errorf("declaring method maps to %s", target.Kind())
	}
	return out, nil
}

func (s *shellBuilder) ownerBody(b *il.MethodBody) (*il.MethodBody, error) {
	if b == nil {
		return nil, fmt.Errorf("method body: %w", ErrNilTarget)
	}
	target, err := s.ctx.Target(b)
	if err != nil {
		return nil, err
	}
	out, ok := target.(*il.MethodBody)
	if !ok {
		return nil, fmt.Errorf("method body maps to %s", target.Kind())
	}
	s.ctx.bodies[out] = struct{}{}
	return out, nil
}

func (s *shellBuilder) VisitAssembly(*il.Assembly) error { return ErrNotClonable }
func (s *shellBuilder) VisitModule(*il.Module) error     { return ErrNotClonable }

func (s *shellBuilder) VisitType(t *il.TypeDef) error {
	shell := il.NewType(t.Namespace, t.Name, t.Flags, nil)
	if t.DeclaringType != nil {
		parent, err := s.ownerType(t.DeclaringType)
		if err != nil {
			return err
		}
		s.out = parent.AddNestedType(shell)
		return nil
	}
	if s.ctx.module == nil {
		return fmt.Errorf("top-level type %s: no target module", t.FullName())
	}
	s.out = s.ctx.module.AddType(shell)
	return nil
}

func (s *shellBuilder) VisitField(f *il.FieldDef) error {
	parent, err := s.ownerType(f.DeclaringType)
	if err != nil {
		return err
	}
	s.out = parent.AddField(il.NewField(f.Name, f.Flags, nil))
	return nil
}

func (s *shellBuilder) VisitMethod(m *il.MethodDef) error {
	parent, err := s.ownerType(m.DeclaringType)
	if err != nil {
		return err
	}
	s.out = parent.AddMethod(il.NewMethod(m.Name, m.Flags, nil))
	return nil
}

func (s *shellBuilder) VisitMethodBody(b *il.MethodBody) error {
	m, err := s.ownerMethod(b.Method)
	if err != nil {
		return err
	}
	if m.Body == nil {
		m.NewBody()
	}
	s.ctx.bodies[m.Body] = struct{}{}
	s.out = m.Body
	return nil
}

func (s *shellBuilder) VisitProperty(p *il.PropertyDef) error {
	parent, err := s.ownerType(p.DeclaringType)
	if err != nil {
		return err
	}
	s.out = parent.AddProperty(&il.PropertyDef{Name: p.Name})
	return nil
}

func (s *shellBuilder) VisitEvent(e *il.EventDef) error {
	parent, err := s.ownerType(e.DeclaringType)
	if err != nil {
		return err
	}
	s.out = parent.AddEvent(&il.EventDef{Name: e.Name})
	return nil
}

func (s *shellBuilder) VisitGenericParameter(p *il.GenericParam) error {
	target, err := s.owner(p.Owner)
	if err != nil {
		return err
	}
	owner, ok := target.(il.GenericOwner)
	if !ok {
		return fmt.Errorf("generic owner maps to %s", target.Kind())
	}
	gp := il.AddGenericParameter(owner, p.Name)
	gp.Flags = p.Flags
	s.out = gp
	return nil
}

func (s *shellBuilder) VisitParameter(p *il.ParamDef) error {
	m, err := s.ownerMethod(p.Method)
	if err != nil {
		return err
	}
	param := m.AddParameter(p.Name, nil)
	param.Flags = p.Flags
	s.out = param
	return nil
}

func (s *shellBuilder) VisitReturnType(r *il.MethodReturnType) error {
	m, err := s.ownerMethod(r.Method)
	if err != nil {
		return err
	}
	if m.ReturnType == nil {
		m.ReturnType = &il.MethodReturnType{Method: m}
	}
	s.out = m.ReturnType
	return nil
}

func (s *shellBuilder) VisitCustomAttribute(ca *il.CustomAttribute) error {
	target, err := s.owner(ca.Owner)
	if err != nil {
		return err
	}
	owner, ok := target.(il.AttributeProvider)
	if !ok {
		return fmt.Errorf("attribute owner maps to %s", target.Kind())
	}
	s.out = il.AddCustomAttribute(owner, &il.CustomAttribute{})
	return nil
}

func (s *shellBuilder) VisitVariable(v *il.Variable) error {
	body, err := s.ownerBody(v.Body)
	if err != nil {
		return err
	}
	out := body.AddVariable(nil)
	out.Name = v.Name
	out.PinnedOrByRef = v.PinnedOrByRef
	s.out = out
	return nil
}

func (s *shellBuilder) VisitInstruction(ins *il.Instruction) error {
	body, err := s.ownerBody(ins.Body)
	if err != nil {
		return err
	}
	out := il.NewInstruction(ins.OpCode, nil)
	if ins.SequencePoint != nil {
		sp := *ins.SequencePoint
		out.SequencePoint = &sp
	}
	out.Body = body
	body.Instructions = append(body.Instructions, out)
	s.out = out
	return nil
}

func (s *shellBuilder) VisitExceptionHandler(h *il.ExceptionHandler) error {
	body, err := s.ownerBody(h.Body)
	if err != nil {
		return err
	}
	s.out = body.AddExceptionHandler(&il.ExceptionHandler{HandlerType: h.HandlerType})
	return nil
}

func (s *shellBuilder) VisitExportedType(*il.ExportedType) error { return ErrNotClonable }
func (s *shellBuilder) VisitResource(*il.Resource) error         { return ErrNotClonable }

func (s *shellBuilder) VisitSecurityDeclaration(d *il.SecurityDeclaration) error {
	target, err := s.owner(d.Owner)
	if err != nil {
		return err
	}
	owner, ok := target.(il.SecurityProvider)
	if !ok {
		return fmt.Errorf("security owner maps to %s", target.Kind())
	}
	s.out = il.AddSecurityDeclaration(owner, &il.SecurityDeclaration{Action: d.Action})
	return nil
}

func (s *shellBuilder) VisitSecurityAttribute(a *il.SecurityAttribute) error {
	if a.Declaration == nil {
		return fmt.Errorf("security declaration: %w", ErrNilTarget)
	}
	target, err := s.ctx.Target(a.Declaration)
	if err != nil {
		return err
	}
	decl, ok := target.(*il.SecurityDeclaration)
	if !ok {
		return fmt.Errorf("security declaration maps to %s", target.Kind())
	}
	s.out = decl.AddAttribute(nil)
	return nil
}
