package cloning

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/rewrite"
)

// contentCloner copies the content of one source element into its target
// shell, importing every outward reference through the context.
type contentCloner struct {
	ctx    *Context
	target il.Element
}

func (c *contentCloner) VisitAssembly(*il.Assembly) error { return ErrNotClonable }
func (c *contentCloner) VisitModule(*il.Module) error     { return ErrNotClonable }

func (c *contentCloner) VisitType(t *il.TypeDef) error {
	out := c.target.(*il.TypeDef)
	base, err := c.ctx.ImportType(t.BaseType)
	if err != nil {
		return fmt.Errorf("base type: %w", err)
	}
	out.BaseType = base
	for _, iface := range t.Interfaces {
		it, err := c.ctx.ImportType(iface)
		if err != nil {
			return fmt.Errorf("interface %s: %w", iface.FullName(), err)
		}
		out.AddInterface(it)
	}
	return nil
}

func (c *contentCloner) VisitField(f *il.FieldDef) error {
	out := c.target.(*il.FieldDef)
	ft, err := c.ctx.ImportType(f.FieldType)
	if err != nil {
		return err
	}
	out.FieldType = ft
	out.Constant = f.Constant
	return nil
}

func (c *contentCloner) VisitMethod(m *il.MethodDef) error {
	out := c.target.(*il.MethodDef)
	for _, o := range m.Overrides {
		om, err := c.ctx.ImportMethod(o)
		if err != nil {
			return fmt.Errorf("override: %w", err)
		}
		out.Overrides = append(out.Overrides, om)
	}
	return nil
}

func (c *contentCloner) VisitMethodBody(b *il.MethodBody) error {
	out := c.target.(*il.MethodBody)
	out.InitLocals = b.InitLocals
	if b.MaxStack > out.MaxStack {
		out.MaxStack = b.MaxStack
	}
	return nil
}

func (c *contentCloner) VisitProperty(p *il.PropertyDef) error {
	out := c.target.(*il.PropertyDef)
	pt, err := c.ctx.ImportType(p.PropertyType)
	if err != nil {
		return err
	}
	out.PropertyType = pt
	if out.Getter, err = c.accessor(p.Getter); err != nil {
		return fmt.Errorf("getter: %w", err)
	}
	if out.Setter, err = c.accessor(p.Setter); err != nil {
		return fmt.Errorf("setter: %w", err)
	}
	return nil
}

func (c *contentCloner) VisitEvent(e *il.EventDef) error {
	out := c.target.(*il.EventDef)
	et, err := c.ctx.ImportType(e.EventType)
	if err != nil {
		return err
	}
	out.EventType = et
	if out.AddMethod, err = c.accessor(e.AddMethod); err != nil {
		return fmt.Errorf("add method: %w", err)
	}
	if out.RemoveMethod, err = c.accessor(e.RemoveMethod); err != nil {
		return fmt.Errorf("remove method: %w", err)
	}
	if out.InvokeMethod, err = c.accessor(e.InvokeMethod); err != nil {
		return fmt.Errorf("invoke method: %w", err)
	}
	return nil
}

// accessor maps an accessor method, which must stay a definition.
func (c *contentCloner) accessor(m *il.MethodDef) (*il.MethodDef, error) {
	if m == nil {
		return nil, nil
	}
	target, err := c.ctx.ImportMethod(m)
	if err != nil {
		return nil, err
	}
	def, ok := target.(*il.MethodDef)
	if !ok {
		return nil, fmt.Errorf("%s maps to a reference: %w", il.MethodFullName(m), ErrNotInCloneSet)
	}
	return def, nil
}

func (c *contentCloner) VisitGenericParameter(p *il.GenericParam) error {
	out := c.target.(*il.GenericParam)
	constraints, _, err := c.ctx.importTypes(p.Constraints)
	if err != nil {
		return err
	}
	out.Constraints = constraints
	return nil
}

func (c *contentCloner) VisitParameter(p *il.ParamDef) error {
	out := c.target.(*il.ParamDef)
	pt, err := c.ctx.ImportType(p.ParameterType)
	if err != nil {
		return err
	}
	out.ParameterType = pt
	return nil
}

func (c *contentCloner) VisitReturnType(r *il.MethodReturnType) error {
	out := c.target.(*il.MethodReturnType)
	rt, err := c.ctx.ImportType(r.Type)
	if err != nil {
		return err
	}
	out.Type = rt
	return nil
}

func (c *contentCloner) VisitCustomAttribute(ca *il.CustomAttribute) error {
	out := c.target.(*il.CustomAttribute)
	ctor, err := c.ctx.ImportMethod(ca.Constructor)
	if err != nil {
		return fmt.Errorf("constructor: %w", err)
	}
	out.Constructor = ctor
	if out.Arguments, err = c.arguments(ca.Arguments); err != nil {
		return err
	}
	if out.Fields, err = c.namedArguments(ca.Fields); err != nil {
		return err
	}
	if out.Properties, err = c.namedArguments(ca.Properties); err != nil {
		return err
	}
	return nil
}

func (c *contentCloner) arguments(args []il.AttributeArgument) ([]il.AttributeArgument, error) {
	if args == nil {
		return nil, nil
	}
	out := make([]il.AttributeArgument, len(args))
	for i, a := range args {
		arg, err := c.argument(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = arg
	}
	return out, nil
}

func (c *contentCloner) argument(a il.AttributeArgument) (il.AttributeArgument, error) {
	t, err := c.ctx.ImportType(a.Type)
	if err != nil {
		return il.AttributeArgument{}, err
	}
	out := il.AttributeArgument{Type: t, Value: a.Value}
	switch v := a.Value.(type) {
	case il.TypeRef:
		if out.Value, err = c.ctx.ImportType(v); err != nil {
			return il.AttributeArgument{}, err
		}
	case []il.AttributeArgument:
		if out.Value, err = c.arguments(v); err != nil {
			return il.AttributeArgument{}, err
		}
	}
	return out, nil
}

func (c *contentCloner) namedArguments(args []il.NamedArgument) ([]il.NamedArgument, error) {
	if args == nil {
		return nil, nil
	}
	out := make([]il.NamedArgument, len(args))
	for i, a := range args {
		arg, err := c.argument(a.Argument)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		out[i] = il.NamedArgument{Name: a.Name, Argument: arg}
	}
	return out, nil
}

func (c *contentCloner) VisitVariable(v *il.Variable) error {
	out := c.target.(*il.Variable)
	vt, err := c.ctx.ImportType(v.VariableType)
	if err != nil {
		return err
	}
	out.VariableType = vt
	return nil
}

func (c *contentCloner) VisitInstruction(ins *il.Instruction) error {
	out := c.target.(*il.Instruction)
	translated, err := c.ctx.translateSlot(ins, out.Body)
	if err != nil {
		return err
	}
	if translated != nil {
		out.OpCode = translated.OpCode
		out.Operand = translated.Operand
		return nil
	}
	op, err := rewrite.Operand(ins.Operand, c.ctx)
	if err != nil {
		return err
	}
	out.Operand = op
	return nil
}

func (c *contentCloner) VisitExceptionHandler(h *il.ExceptionHandler) error {
	out := c.target.(*il.ExceptionHandler)
	var err error
	boundaries := []struct {
		src *il.Instruction
		dst **il.Instruction
	}{
		{h.TryStart, &out.TryStart},
		{h.TryEnd, &out.TryEnd},
		{h.HandlerStart, &out.HandlerStart},
		{h.HandlerEnd, &out.HandlerEnd},
		{h.FilterStart, &out.FilterStart},
	}
	for _, b := range boundaries {
		if *b.dst, err = c.ctx.ImportInstruction(b.src); err != nil {
			return err
		}
	}
	if out.CatchType, err = c.ctx.ImportType(h.CatchType); err != nil {
		return fmt.Errorf("catch type: %w", err)
	}
	return nil
}

func (c *contentCloner) VisitExportedType(*il.ExportedType) error { return ErrNotClonable }
func (c *contentCloner) VisitResource(*il.Resource) error         { return ErrNotClonable }

func (c *contentCloner) VisitSecurityDeclaration(*il.SecurityDeclaration) error { return nil }

func (c *contentCloner) VisitSecurityAttribute(a *il.SecurityAttribute) error {
	out := c.target.(*il.SecurityAttribute)
	t, err := c.ctx.ImportType(a.AttributeType)
	if err != nil {
		return err
	}
	out.AttributeType = t
	if out.Properties, err = c.namedArguments(a.Properties); err != nil {
		return err
	}
	return nil
}

// translateSlot handles instructions whose slot index moves between source
// and target. It returns nil when the operand can be imported as is.
func (c *Context) translateSlot(ins *il.Instruction, dst *il.MethodBody) (*il.Instruction, error) {
	if _, ok := il.LocalFamily(ins.OpCode); ok {
		return c.translateLocal(ins, dst)
	}
	if _, ok := il.ArgumentFamily(ins.OpCode); ok {
		return c.translateArgument(ins, dst)
	}
	return nil, nil
}

func (c *Context) translateLocal(ins *il.Instruction, dst *il.MethodBody) (*il.Instruction, error) {
	idx, ok := il.VariableIndex(ins)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ins.OpCode, il.ErrOperandMismatch)
	}
	if ins.Body == nil || idx >= len(ins.Body.Variables) {
		return nil, fmt.Errorf("%s: local %d: %w", ins.OpCode, idx, rewrite.ErrSlotOutOfRange)
	}
	v, err := c.ImportVariable(ins.Body.Variables[idx])
	if err != nil {
		return nil, err
	}
	offset := v.Index - idx
	if offset == 0 {
		return nil, nil
	}
	return rewrite.ApplyLocalVariableTranslation(ins, offset, dst.Variables)
}

func (c *Context) translateArgument(ins *il.Instruction, dst *il.MethodBody) (*il.Instruction, error) {
	idx, ok := il.ArgumentIndex(ins)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ins.OpCode, il.ErrOperandMismatch)
	}
	if ins.Body == nil || ins.Body.Method == nil || dst.Method == nil {
		return nil, nil
	}
	src := ins.Body.Method.Argument(idx)
	if src == nil {
		return nil, fmt.Errorf("%s: argument %d: %w", ins.OpCode, idx, rewrite.ErrSlotOutOfRange)
	}
	p, err := c.ImportParameter(src)
	if err != nil {
		return nil, err
	}
	offset := p.ArgIndex() - idx
	if offset == 0 {
		return nil, nil
	}
	return rewrite.ApplyArgumentTranslation(ins, offset, dst.Method)
}
