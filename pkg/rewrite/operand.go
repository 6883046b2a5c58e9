// Package rewrite translates instruction operands and slot indices from a
// source method into the context of a target method.
package rewrite

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

var (
	// ErrUnsupportedOperand is returned for operand shapes without a case.
	ErrUnsupportedOperand = il.ErrUnsupportedOperand

	// ErrSlotOutOfRange is returned when a translated slot has no variable
	// or parameter in the target.
	ErrSlotOutOfRange = errors.New("slot out of range")
)

// Importer maps references held by source operands to their counterparts in
// the target context. Implementations return the argument unchanged for
// references that need no translation.
type Importer interface {
	ImportType(t il.TypeRef) (il.TypeRef, error)
	ImportMethod(m il.MethodRef) (il.MethodRef, error)
	ImportField(f il.FieldRef) (il.FieldRef, error)
	ImportParameter(p *il.ParamDef) (*il.ParamDef, error)
	ImportVariable(v *il.Variable) (*il.Variable, error)
	ImportInstruction(ins *il.Instruction) (*il.Instruction, error)
}

// Operand returns op with every reference imported through imp. Literal
// operands are returned as is.
func Operand(op il.Operand, imp Importer) (il.Operand, error) {
	v := &operandRewriter{imp: imp}
	if err := il.VisitOperand(op, v); err != nil {
		return nil, err
	}
	return v.out, nil
}

type operandRewriter struct {
	imp Importer
	out il.Operand
}

func (r *operandRewriter) VisitNone() error {
	r.out = il.NoOperand{}
	return nil
}

func (r *operandRewriter) VisitType(op il.TypeOperand) error {
	t, err := r.imp.ImportType(op.Type)
	if err != nil {
		return fmt.Errorf("type operand: %w", err)
	}
	r.out = il.TypeOperand{Type: t}
	return nil
}

func (r *operandRewriter) VisitField(op il.FieldOperand) error {
	f, err := r.imp.ImportField(op.Field)
	if err != nil {
		return fmt.Errorf("field operand: %w", err)
	}
	r.out = il.FieldOperand{Field: f}
	return nil
}

func (r *operandRewriter) VisitMethod(op il.MethodOperand) error {
	m, err := r.imp.ImportMethod(op.Method)
	if err != nil {
		return fmt.Errorf("method operand: %w", err)
	}
	r.out = il.MethodOperand{Method: m}
	return nil
}

func (r *operandRewriter) VisitBranch(op il.BranchOperand) error {
	target, err := r.imp.ImportInstruction(op.Target)
	if err != nil {
		return fmt.Errorf("branch target: %w", err)
	}
	r.out = il.BranchOperand{Target: target}
	return nil
}

func (r *operandRewriter) VisitSwitch(op il.SwitchOperand) error {
	targets := make([]*il.Instruction, len(op.Targets))
	for i, t := range op.Targets {
		target, err := r.imp.ImportInstruction(t)
		if err != nil {
			return fmt.Errorf("switch target %d: %w", i, err)
		}
		targets[i] = target
	}
	r.out = il.SwitchOperand{Targets: targets}
	return nil
}

func (r *operandRewriter) VisitParam(op il.ParamOperand) error {
	p, err := r.imp.ImportParameter(op.Param)
	if err != nil {
		return fmt.Errorf("parameter operand: %w", err)
	}
	r.out = il.ParamOperand{Param: p}
	return nil
}

func (r *operandRewriter) VisitVar(op il.VarOperand) error {
	v, err := r.imp.ImportVariable(op.Var)
	if err != nil {
		return fmt.Errorf("variable operand: %w", err)
	}
	r.out = il.VarOperand{Var: v}
	return nil
}

func (r *operandRewriter) VisitUint8(op il.Uint8Operand) error     { r.out = op; return nil }
func (r *operandRewriter) VisitInt8(op il.Int8Operand) error       { r.out = op; return nil }
func (r *operandRewriter) VisitFloat32(op il.Float32Operand) error { r.out = op; return nil }
func (r *operandRewriter) VisitFloat64(op il.Float64Operand) error { r.out = op; return nil }
func (r *operandRewriter) VisitInt32(op il.Int32Operand) error     { r.out = op; return nil }
func (r *operandRewriter) VisitInt64(op il.Int64Operand) error     { r.out = op; return nil }
func (r *operandRewriter) VisitString(op il.StringOperand) error   { r.out = op; return nil }

// Identity is an Importer that returns every reference unchanged.
type Identity struct{}

func (Identity) ImportType(t il.TypeRef) (il.TypeRef, error)                    { return t, nil }
func (Identity) ImportMethod(m il.MethodRef) (il.MethodRef, error)              { return m, nil }
func (Identity) ImportField(f il.FieldRef) (il.FieldRef, error)                 { return f, nil }
func (Identity) ImportParameter(p *il.ParamDef) (*il.ParamDef, error)           { return p, nil }
func (Identity) ImportVariable(v *il.Variable) (*il.Variable, error)            { return v, nil }
func (Identity) ImportInstruction(ins *il.Instruction) (*il.Instruction, error) { return ins, nil }
