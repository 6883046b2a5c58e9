package rewrite

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

// ApplyLocalVariableTranslation moves a local variable instruction by offset
// slots into vars and picks the most compact opcode for the new index.
//
// An offset of 0 returns ins itself. Instructions that do not access a local
// are returned unchanged. The result is a new detached instruction that
// keeps the sequence point of ins.
func ApplyLocalVariableTranslation(ins *il.Instruction, offset int, vars []*il.Variable) (*il.Instruction, error) {
	if offset == 0 {
		return ins, nil
	}
	family, ok := il.LocalFamily(ins.OpCode)
	if !ok {
		return ins, nil
	}
	idx, ok := il.VariableIndex(ins)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ins.OpCode, il.ErrOperandMismatch)
	}

	target := idx + offset
	if target < 0 || target >= len(vars) {
		return nil, fmt.Errorf("%s: local %d moved by %d: %w", ins.OpCode, idx, offset, ErrSlotOutOfRange)
	}

	op := il.LocalOpCode(family, target)
	var operand il.Operand = il.NoOperand{}
	if !il.IsCompactSlot(op) {
		operand = il.VarOperand{Var: vars[target]}
	}
	out := il.NewInstruction(op, operand)
	out.SequencePoint = ins.SequencePoint
	return out, nil
}

// ApplyArgumentTranslation moves an argument instruction by offset slots
// within the arguments of method, counting the receiver of instance methods
// as slot 0.
func ApplyArgumentTranslation(ins *il.Instruction, offset int, method *il.MethodDef) (*il.Instruction, error) {
	if offset == 0 {
		return ins, nil
	}
	family, ok := il.ArgumentFamily(ins.OpCode)
	if !ok {
		return ins, nil
	}
	idx, ok := il.ArgumentIndex(ins)
	if !ok {
		return nil, fmt.Errorf("%s: %w", ins.OpCode, il.ErrOperandMismatch)
	}

	target := idx + offset
	param := method.Argument(target)
	if param == nil {
		return nil, fmt.Errorf("%s: argument %d moved by %d in %s: %w",
			ins.OpCode, idx, offset, il.MethodFullName(method), ErrSlotOutOfRange)
	}

	op := il.ArgumentOpCode(family, target)
	var operand il.Operand = il.NoOperand{}
	if !il.IsCompactSlot(op) {
		operand = il.ParamOperand{Param: param}
	}
	out := il.NewInstruction(op, operand)
	out.SequencePoint = ins.SequencePoint
	return out, nil
}
