package cloning

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/graph"
	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/rewrite"
)

// CloneBody copies the instructions of src into dst before position at.
// Locals of src are appended behind the locals of dst and every local access
// is moved accordingly. Instructions for which skip returns true are left
// out; branches to them land on the next copied instruction. When the copy
// is inserted in front of existing code, ret becomes a branch to that code.
//
// Type, method and field references are imported through c, so a body can
// be merged into members that c has cloned.
func (c *Context) CloneBody(src, dst *il.MethodBody, at int, skip func(*il.Instruction) bool) error {
	if src == nil || dst == nil {
		return fmt.Errorf("clone body: %w", graph.ErrNullEndpoint)
	}
	if at < 0 || at > len(dst.Instructions) {
		at = len(dst.Instructions)
	}

	imp := &bodyImporter{
		ctx:  c,
		dst:  dst,
		vars: make(map[*il.Variable]*il.Variable, len(src.Variables)),
		ins:  make(map[*il.Instruction]*il.Instruction, len(src.Instructions)),
	}

	base := len(dst.Variables)
	for _, v := range src.Variables {
		vt, err := c.ImportType(v.VariableType)
		if err != nil {
			return fmt.Errorf("clone body: local %d: %w", v.Index, err)
		}
		nv := dst.AddVariable(vt)
		nv.Name = v.Name
		nv.PinnedOrByRef = v.PinnedOrByRef
		imp.vars[v] = nv
	}

	var next *il.Instruction
	if at < len(dst.Instructions) {
		next = dst.Instructions[at]
	}

	// Shells first so that forward branches have somewhere to land.
	fallthroughTo := next
	shells := make([]*il.Instruction, len(src.Instructions))
	for i := len(src.Instructions) - 1; i >= 0; i-- {
		ins := src.Instructions[i]
		if skip != nil && skip(ins) {
			imp.ins[ins] = fallthroughTo
			continue
		}
		shell := il.NewInstruction(ins.OpCode, nil)
		if ins.SequencePoint != nil {
			sp := *ins.SequencePoint
			shell.SequencePoint = &sp
		}
		shells[i] = shell
		imp.ins[ins] = shell
		fallthroughTo = shell
	}

	var copied []*il.Instruction
	for i, ins := range src.Instructions {
		shell := shells[i]
		if shell == nil {
			continue
		}
		if err := imp.fill(ins, shell, base, next); err != nil {
			return fmt.Errorf("clone body: %s: %w", ins, err)
		}
		copied = append(copied, shell)
	}
	dst.InsertAt(at, copied...)

	for _, h := range src.ExceptionHandlers {
		nh := &il.ExceptionHandler{HandlerType: h.HandlerType}
		var err error
		if nh.CatchType, err = c.ImportType(h.CatchType); err != nil {
			return fmt.Errorf("clone body: catch type: %w", err)
		}
		nh.TryStart = imp.ins[h.TryStart]
		nh.TryEnd = imp.ins[h.TryEnd]
		nh.HandlerStart = imp.ins[h.HandlerStart]
		nh.HandlerEnd = imp.ins[h.HandlerEnd]
		nh.FilterStart = imp.ins[h.FilterStart]
		dst.AddExceptionHandler(nh)
	}

	if src.MaxStack > dst.MaxStack {
		dst.MaxStack = src.MaxStack
	}
	dst.InitLocals = dst.InitLocals || src.InitLocals

	c.opts.Logger.Debug("body merged",
		"source", il.Describe(src),
		"target", il.Describe(dst),
		"instructions", len(copied),
		"locals", len(src.Variables))
	return nil
}

// bodyImporter maps the locals, instructions and parameters of one body
// onto another and defers every other reference to its context.
type bodyImporter struct {
	ctx  *Context
	dst  *il.MethodBody
	vars map[*il.Variable]*il.Variable
	ins  map[*il.Instruction]*il.Instruction
}

func (b *bodyImporter) fill(ins, shell *il.Instruction, base int, next *il.Instruction) error {
	if ins.OpCode == il.Ret && next != nil {
		shell.OpCode = il.Br
		shell.Operand = il.BranchOperand{Target: next}
		return nil
	}
	if _, ok := il.LocalFamily(ins.OpCode); ok && base != 0 {
		moved, err := rewrite.ApplyLocalVariableTranslation(ins, base, b.dst.Variables)
		if err != nil {
			return err
		}
		shell.OpCode = moved.OpCode
		shell.Operand = moved.Operand
		return nil
	}
	op, err := rewrite.Operand(ins.Operand, b)
	if err != nil {
		return err
	}
	shell.Operand = op
	return nil
}

func (b *bodyImporter) ImportType(t il.TypeRef) (il.TypeRef, error)       { return b.ctx.ImportType(t) }
func (b *bodyImporter) ImportMethod(m il.MethodRef) (il.MethodRef, error) { return b.ctx.ImportMethod(m) }
func (b *bodyImporter) ImportField(f il.FieldRef) (il.FieldRef, error)    { return b.ctx.ImportField(f) }

func (b *bodyImporter) ImportParameter(p *il.ParamDef) (*il.ParamDef, error) {
	m := b.dst.Method
	if m == nil {
		return nil, fmt.Errorf("parameter %s: target body has no method", p.Name)
	}
	if p.IsThis() {
		if this := m.ThisParameter(); this != nil {
			return this, nil
		}
		return nil, fmt.Errorf("receiver used in static %s: %w", il.MethodFullName(m), rewrite.ErrSlotOutOfRange)
	}
	if p.Index >= len(m.Parameters) {
		return nil, fmt.Errorf("parameter %s: %w", p.Name, rewrite.ErrSlotOutOfRange)
	}
	return m.Parameters[p.Index], nil
}

func (b *bodyImporter) ImportVariable(v *il.Variable) (*il.Variable, error) {
	if nv, ok := b.vars[v]; ok {
		return nv, nil
	}
	return nil, fmt.Errorf("local %d: %w", v.Index, ErrNotInCloneSet)
}

func (b *bodyImporter) ImportInstruction(ins *il.Instruction) (*il.Instruction, error) {
	target, ok := b.ins[ins]
	if !ok {
		return nil, fmt.Errorf("branch to foreign instruction %s: %w", ins, ErrNotInCloneSet)
	}
	if target == nil {
		return nil, fmt.Errorf("branch past the end of the copied body: %w", ErrNilTarget)
	}
	return target, nil
}
