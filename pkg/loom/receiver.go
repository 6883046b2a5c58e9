package loom

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

// insertReceivers adds "ldarg.0" in front of the argument list of every call
// to original in body.
//
// The start of an argument list is found by walking back one instruction
// per argument. Only instructions that push exactly one value without side
// effects are accepted, and no branch may land inside the list. Anything
// else is rejected rather than guessed at.
func insertReceivers(body *il.MethodBody, original *il.MethodDef) error {
	var calls []*il.Instruction
	for _, ins := range body.Instructions {
		if op, ok := ins.Operand.(il.MethodOperand); ok && op.Method == il.MethodRef(original) {
			if ins.OpCode != il.Call && ins.OpCode != il.Callvirt {
				return fmt.Errorf("%w: %s takes the address of the original", ErrForwardArguments, ins)
			}
			calls = append(calls, ins)
		}
	}

	targets := branchTargets(body)
	for _, call := range calls {
		idx := body.IndexOf(call)
		start := idx - len(original.Parameters)
		if start < 0 {
			return fmt.Errorf("%w: %s: missing arguments", ErrForwardArguments, call)
		}
		for i := start; i < idx; i++ {
			ins := body.Instructions[i]
			if !isPureLoad(ins.OpCode) {
				return fmt.Errorf("%w: %s: argument %d is %s", ErrForwardArguments, call, i-start, ins.OpCode)
			}
			if i > start && targets[ins] {
				return fmt.Errorf("%w: %s: branch into argument %d", ErrForwardArguments, call, i-start)
			}
		}
		if targets[call] && start != idx {
			return fmt.Errorf("%w: %s: branch onto the call", ErrForwardArguments, call)
		}

		first := body.Instructions[start]
		receiver := il.NewInstruction(il.Ldarg0, nil)
		receiver.SequencePoint = first.SequencePoint
		body.InsertAt(start, receiver)
		retarget(body, first, receiver)
	}
	return nil
}

func isPureLoad(op il.OpCode) bool {
	if fam, ok := il.ArgumentFamily(op); ok && fam != il.SlotStore {
		return true
	}
	if fam, ok := il.LocalFamily(op); ok && fam != il.SlotStore {
		return true
	}
	switch op {
	case il.Ldnull, il.Ldstr, il.Ldsfld, il.Ldsflda, il.Ldtoken,
		il.LdcI4M1, il.LdcI40, il.LdcI41, il.LdcI42, il.LdcI43, il.LdcI44,
		il.LdcI45, il.LdcI46, il.LdcI47, il.LdcI48, il.LdcI4S, il.LdcI4,
		il.LdcI8, il.LdcR4, il.LdcR8:
		return true
	}
	return false
}

func branchTargets(body *il.MethodBody) map[*il.Instruction]bool {
	out := make(map[*il.Instruction]bool)
	for _, ins := range body.Instructions {
		switch op := ins.Operand.(type) {
		case il.BranchOperand:
			out[op.Target] = true
		case il.SwitchOperand:
			for _, t := range op.Targets {
				out[t] = true
			}
		}
	}
	for _, h := range body.ExceptionHandlers {
		for _, b := range []*il.Instruction{h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd, h.FilterStart} {
			if b != nil {
				out[b] = true
			}
		}
	}
	return out
}

// retarget moves every branch and handler boundary from old to to.
func retarget(body *il.MethodBody, old, to *il.Instruction) {
	for _, ins := range body.Instructions {
		switch op := ins.Operand.(type) {
		case il.BranchOperand:
			if op.Target == old {
				ins.Operand = il.BranchOperand{Target: to}
			}
		case il.SwitchOperand:
			for i, t := range op.Targets {
				if t == old {
					op.Targets[i] = to
				}
			}
		}
	}
	for _, h := range body.ExceptionHandlers {
		for _, b := range []**il.Instruction{&h.TryStart, &h.TryEnd, &h.HandlerStart, &h.HandlerEnd, &h.FilterStart} {
			if *b == old {
				*b = to
			}
		}
	}
}
