package il

import (
	"fmt"
	"sync"
)

// OpCode is an instruction opcode. Two-byte opcodes carry the 0xFE prefix in
// the high byte.
type OpCode uint16

// OperandType describes the operand an opcode expects.
type OperandType uint8

const (
	InlineNone OperandType = iota
	InlineType
	InlineField
	InlineMethod
	InlineTok // type, field or method token
	InlineBrTarget
	ShortInlineBrTarget
	InlineSwitch
	InlineArg
	ShortInlineArg
	InlineVar
	ShortInlineVar
	ShortInlineI // int8
	InlineU8     // uint8
	InlineI
	InlineI8
	ShortInlineR
	InlineR
	InlineString
)

// FlowControl describes how an opcode affects control flow.
type FlowControl uint8

const (
	FlowNext FlowControl = iota
	FlowBranch
	FlowCondBranch
	FlowCall
	FlowReturn
	FlowThrow
	FlowMeta
)

// VarStack marks a stack effect that depends on the operand (calls, ret).
const VarStack = -1

const (
	// ========================================================================
	// Base instructions (single byte)
	// ========================================================================

	Nop     OpCode = 0x00
	Ldarg0  OpCode = 0x02
	Ldarg1  OpCode = 0x03
	Ldarg2  OpCode = 0x04
	Ldarg3  OpCode = 0x05
	Ldloc0  OpCode = 0x06
	Ldloc1  OpCode = 0x07
	Ldloc2  OpCode = 0x08
	Ldloc3  OpCode = 0x09
	Stloc0  OpCode = 0x0A
	Stloc1  OpCode = 0x0B
	Stloc2  OpCode = 0x0C
	Stloc3  OpCode = 0x0D
	LdargS  OpCode = 0x0E
	LdargaS OpCode = 0x0F
	StargS  OpCode = 0x10
	LdlocS  OpCode = 0x11
	LdlocaS OpCode = 0x12
	StlocS  OpCode = 0x13
	Ldnull  OpCode = 0x14

	LdcI4M1 OpCode = 0x15
	LdcI40  OpCode = 0x16
	LdcI41  OpCode = 0x17
	LdcI42  OpCode = 0x18
	LdcI43  OpCode = 0x19
	LdcI44  OpCode = 0x1A
	LdcI45  OpCode = 0x1B
	LdcI46  OpCode = 0x1C
	LdcI47  OpCode = 0x1D
	LdcI48  OpCode = 0x1E
	LdcI4S  OpCode = 0x1F
	LdcI4   OpCode = 0x20
	LdcI8   OpCode = 0x21
	LdcR4   OpCode = 0x22
	LdcR8   OpCode = 0x23

	Dup  OpCode = 0x25
	Pop  OpCode = 0x26
	Call OpCode = 0x28
	Ret  OpCode = 0x2A

	// ========================================================================
	// Branches
	// ========================================================================

	BrS      OpCode = 0x2B
	BrfalseS OpCode = 0x2C
	BrtrueS  OpCode = 0x2D
	BeqS     OpCode = 0x2E
	BgeS     OpCode = 0x2F
	BgtS     OpCode = 0x30
	BleS     OpCode = 0x31
	BltS     OpCode = 0x32
	BneUnS   OpCode = 0x33
	Br       OpCode = 0x38
	Brfalse  OpCode = 0x39
	Brtrue   OpCode = 0x3A
	Beq      OpCode = 0x3B
	Bge      OpCode = 0x3C
	Bgt      OpCode = 0x3D
	Ble      OpCode = 0x3E
	Blt      OpCode = 0x3F
	BneUn    OpCode = 0x40
	Switch   OpCode = 0x45

	// ========================================================================
	// Arithmetic and conversion
	// ========================================================================

	Add    OpCode = 0x58
	Sub    OpCode = 0x59
	Mul    OpCode = 0x5A
	Div    OpCode = 0x5B
	Rem    OpCode = 0x5D
	And    OpCode = 0x5F
	Or     OpCode = 0x60
	Xor    OpCode = 0x61
	Neg    OpCode = 0x65
	Not    OpCode = 0x66
	ConvI4 OpCode = 0x69
	ConvI8 OpCode = 0x6A

	// ========================================================================
	// Objects
	// ========================================================================

	Callvirt  OpCode = 0x6F
	Ldstr     OpCode = 0x72
	Newobj    OpCode = 0x73
	Castclass OpCode = 0x74
	Isinst    OpCode = 0x75
	Throw     OpCode = 0x7A
	Ldfld     OpCode = 0x7B
	Ldflda    OpCode = 0x7C
	Stfld     OpCode = 0x7D
	Ldsfld    OpCode = 0x7E
	Ldsflda   OpCode = 0x7F
	Stsfld    OpCode = 0x80
	Box       OpCode = 0x8C
	Newarr    OpCode = 0x8D
	Ldlen     OpCode = 0x8E
	LdelemRef OpCode = 0x9A
	StelemRef OpCode = 0xA2
	UnboxAny  OpCode = 0xA5
	Ldtoken   OpCode = 0xD0

	Endfinally OpCode = 0xDC
	Leave      OpCode = 0xDD
	LeaveS     OpCode = 0xDE

	// ========================================================================
	// Two-byte instructions (0xFE prefix)
	// ========================================================================

	Ceq       OpCode = 0xFE01
	Cgt       OpCode = 0xFE02
	Clt       OpCode = 0xFE04
	Ldftn     OpCode = 0xFE06
	Ldarg     OpCode = 0xFE09
	Ldarga    OpCode = 0xFE0A
	Starg     OpCode = 0xFE0B
	Ldloc     OpCode = 0xFE0C
	Ldloca    OpCode = 0xFE0D
	Stloc     OpCode = 0xFE0E
	Unaligned OpCode = 0xFE12
	Initobj   OpCode = 0xFE15
	Rethrow   OpCode = 0xFE1A
)

type opInfo struct {
	name    string
	operand OperandType
	pop     int
	push    int
	flow    FlowControl
}

var opcodeTable = map[OpCode]opInfo{
	Nop:     {"nop", InlineNone, 0, 0, FlowNext},
	Ldarg0:  {"ldarg.0", InlineNone, 0, 1, FlowNext},
	Ldarg1:  {"ldarg.1", InlineNone, 0, 1, FlowNext},
	Ldarg2:  {"ldarg.2", InlineNone, 0, 1, FlowNext},
	Ldarg3:  {"ldarg.3", InlineNone, 0, 1, FlowNext},
	Ldloc0:  {"ldloc.0", InlineNone, 0, 1, FlowNext},
	Ldloc1:  {"ldloc.1", InlineNone, 0, 1, FlowNext},
	Ldloc2:  {"ldloc.2", InlineNone, 0, 1, FlowNext},
	Ldloc3:  {"ldloc.3", InlineNone, 0, 1, FlowNext},
	Stloc0:  {"stloc.0", InlineNone, 1, 0, FlowNext},
	Stloc1:  {"stloc.1", InlineNone, 1, 0, FlowNext},
	Stloc2:  {"stloc.2", InlineNone, 1, 0, FlowNext},
	Stloc3:  {"stloc.3", InlineNone, 1, 0, FlowNext},
	LdargS:  {"ldarg.s", ShortInlineArg, 0, 1, FlowNext},
	LdargaS: {"ldarga.s", ShortInlineArg, 0, 1, FlowNext},
	StargS:  {"starg.s", ShortInlineArg, 1, 0, FlowNext},
	LdlocS:  {"ldloc.s", ShortInlineVar, 0, 1, FlowNext},
	LdlocaS: {"ldloca.s", ShortInlineVar, 0, 1, FlowNext},
	StlocS:  {"stloc.s", ShortInlineVar, 1, 0, FlowNext},
	Ldnull:  {"ldnull", InlineNone, 0, 1, FlowNext},

	LdcI4M1: {"ldc.i4.m1", InlineNone, 0, 1, FlowNext},
	LdcI40:  {"ldc.i4.0", InlineNone, 0, 1, FlowNext},
	LdcI41:  {"ldc.i4.1", InlineNone, 0, 1, FlowNext},
	LdcI42:  {"ldc.i4.2", InlineNone, 0, 1, FlowNext},
	LdcI43:  {"ldc.i4.3", InlineNone, 0, 1, FlowNext},
	LdcI44:  {"ldc.i4.4", InlineNone, 0, 1, FlowNext},
	LdcI45:  {"ldc.i4.5", InlineNone, 0, 1, FlowNext},
	LdcI46:  {"ldc.i4.6", InlineNone, 0, 1, FlowNext},
	LdcI47:  {"ldc.i4.7", InlineNone, 0, 1, FlowNext},
	LdcI48:  {"ldc.i4.8", InlineNone, 0, 1, FlowNext},
	LdcI4S:  {"ldc.i4.s", ShortInlineI, 0, 1, FlowNext},
	LdcI4:   {"ldc.i4", InlineI, 0, 1, FlowNext},
	LdcI8:   {"ldc.i8", InlineI8, 0, 1, FlowNext},
	LdcR4:   {"ldc.r4", ShortInlineR, 0, 1, FlowNext},
	LdcR8:   {"ldc.r8", InlineR, 0, 1, FlowNext},

	Dup:  {"dup", InlineNone, 1, 2, FlowNext},
	Pop:  {"pop", InlineNone, 1, 0, FlowNext},
	Call: {"call", InlineMethod, VarStack, VarStack, FlowCall},
	Ret:  {"ret", InlineNone, VarStack, 0, FlowReturn},

	BrS:      {"br.s", ShortInlineBrTarget, 0, 0, FlowBranch},
	BrfalseS: {"brfalse.s", ShortInlineBrTarget, 1, 0, FlowCondBranch},
	BrtrueS:  {"brtrue.s", ShortInlineBrTarget, 1, 0, FlowCondBranch},
	BeqS:     {"beq.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BgeS:     {"bge.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BgtS:     {"bgt.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BleS:     {"ble.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BltS:     {"blt.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	BneUnS:   {"bne.un.s", ShortInlineBrTarget, 2, 0, FlowCondBranch},
	Br:       {"br", InlineBrTarget, 0, 0, FlowBranch},
	Brfalse:  {"brfalse", InlineBrTarget, 1, 0, FlowCondBranch},
	Brtrue:   {"brtrue", InlineBrTarget, 1, 0, FlowCondBranch},
	Beq:      {"beq", InlineBrTarget, 2, 0, FlowCondBranch},
	Bge:      {"bge", InlineBrTarget, 2, 0, FlowCondBranch},
	Bgt:      {"bgt", InlineBrTarget, 2, 0, FlowCondBranch},
	Ble:      {"ble", InlineBrTarget, 2, 0, FlowCondBranch},
	Blt:      {"blt", InlineBrTarget, 2, 0, FlowCondBranch},
	BneUn:    {"bne.un", InlineBrTarget, 2, 0, FlowCondBranch},
	Switch:   {"switch", InlineSwitch, 1, 0, FlowCondBranch},

	Add:    {"add", InlineNone, 2, 1, FlowNext},
	Sub:    {"sub", InlineNone, 2, 1, FlowNext},
	Mul:    {"mul", InlineNone, 2, 1, FlowNext},
	Div:    {"div", InlineNone, 2, 1, FlowNext},
	Rem:    {"rem", InlineNone, 2, 1, FlowNext},
	And:    {"and", InlineNone, 2, 1, FlowNext},
	Or:     {"or", InlineNone, 2, 1, FlowNext},
	Xor:    {"xor", InlineNone, 2, 1, FlowNext},
	Neg:    {"neg", InlineNone, 1, 1, FlowNext},
	Not:    {"not", InlineNone, 1, 1, FlowNext},
	ConvI4: {"conv.i4", InlineNone, 1, 1, FlowNext},
	ConvI8: {"conv.i8", InlineNone, 1, 1, FlowNext},

	Callvirt:  {"callvirt", InlineMethod, VarStack, VarStack, FlowCall},
	Ldstr:     {"ldstr", InlineString, 0, 1, FlowNext},
	Newobj:    {"newobj", InlineMethod, VarStack, 1, FlowCall},
	Castclass: {"castclass", InlineType, 1, 1, FlowNext},
	Isinst:    {"isinst", InlineType, 1, 1, FlowNext},
	Throw:     {"throw", InlineNone, 1, 0, FlowThrow},
	Ldfld:     {"ldfld", InlineField, 1, 1, FlowNext},
	Ldflda:    {"ldflda", InlineField, 1, 1, FlowNext},
	Stfld:     {"stfld", InlineField, 2, 0, FlowNext},
	Ldsfld:    {"ldsfld", InlineField, 0, 1, FlowNext},
	Ldsflda:   {"ldsflda", InlineField, 0, 1, FlowNext},
	Stsfld:    {"stsfld", InlineField, 1, 0, FlowNext},
	Box:       {"box", InlineType, 1, 1, FlowNext},
	Newarr:    {"newarr", InlineType, 1, 1, FlowNext},
	Ldlen:     {"ldlen", InlineNone, 1, 1, FlowNext},
	LdelemRef: {"ldelem.ref", InlineNone, 2, 1, FlowNext},
	StelemRef: {"stelem.ref", InlineNone, 3, 0, FlowNext},
	UnboxAny:  {"unbox.any", InlineType, 1, 1, FlowNext},
	Ldtoken:   {"ldtoken", InlineTok, 0, 1, FlowNext},

	Endfinally: {"endfinally", InlineNone, 0, 0, FlowReturn},
	Leave:      {"leave", InlineBrTarget, 0, 0, FlowBranch},
	LeaveS:     {"leave.s", ShortInlineBrTarget, 0, 0, FlowBranch},

	Ceq:       {"ceq", InlineNone, 2, 1, FlowNext},
	Cgt:       {"cgt", InlineNone, 2, 1, FlowNext},
	Clt:       {"clt", InlineNone, 2, 1, FlowNext},
	Ldftn:     {"ldftn", InlineMethod, 0, 1, FlowNext},
	Ldarg:     {"ldarg", InlineArg, 0, 1, FlowNext},
	Ldarga:    {"ldarga", InlineArg, 0, 1, FlowNext},
	Starg:     {"starg", InlineArg, 1, 0, FlowNext},
	Ldloc:     {"ldloc", InlineVar, 0, 1, FlowNext},
	Ldloca:    {"ldloca", InlineVar, 0, 1, FlowNext},
	Stloc:     {"stloc", InlineVar, 1, 0, FlowNext},
	Unaligned: {"unaligned.", InlineU8, 0, 0, FlowMeta},
	Initobj:   {"initobj", InlineType, 1, 0, FlowNext},
	Rethrow:   {"rethrow", InlineNone, 0, 0, FlowThrow},
}

var (
	opcodeByName     map[string]OpCode
	opcodeByNameOnce sync.Once
)

// String returns the mnemonic of op.
func (op OpCode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("UNKNOWN(0x%04X)", uint16(op))
}

// IsValid reports whether op is a known opcode.
func (op OpCode) IsValid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// OperandType returns the operand shape op expects.
func (op OpCode) OperandType() OperandType { return opcodeTable[op].operand }

// FlowControl returns the control flow behavior of op.
func (op OpCode) FlowControl() FlowControl { return opcodeTable[op].flow }

// StackPop returns the number of values popped, or VarStack.
func (op OpCode) StackPop() int { return opcodeTable[op].pop }

// StackPush returns the number of values pushed, or VarStack.
func (op OpCode) StackPush() int { return opcodeTable[op].push }

// Size returns the encoded size of the opcode itself.
func (op OpCode) Size() int {
	if op > 0xFF {
		return 2
	}
	return 1
}

// IsBranch reports whether op takes one or more branch targets.
func (op OpCode) IsBranch() bool {
	switch op.OperandType() {
	case InlineBrTarget, ShortInlineBrTarget, InlineSwitch:
		return true
	}
	return false
}

// LookupOpCode returns the opcode with the given mnemonic.
func LookupOpCode(name string) (OpCode, bool) {
	opcodeByNameOnce.Do(func() {
		opcodeByName = make(map[string]OpCode, len(opcodeTable))
		for op, info := range opcodeTable {
			opcodeByName[info.name] = op
		}
	})
	op, ok := opcodeByName[name]
	return op, ok
}

// LongBranchForm returns the long form of a short branch opcode.
func LongBranchForm(op OpCode) OpCode {
	switch op {
	case BrS:
		return Br
	case BrfalseS:
		return Brfalse
	case BrtrueS:
		return Brtrue
	case BeqS:
		return Beq
	case BgeS:
		return Bge
	case BgtS:
		return Bgt
	case BleS:
		return Ble
	case BltS:
		return Blt
	case BneUnS:
		return BneUn
	case LeaveS:
		return Leave
	}
	return op
}
