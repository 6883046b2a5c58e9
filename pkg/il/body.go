package il

import "fmt"

// MethodBody holds the executable part of a method.
type MethodBody struct {
	Method            *MethodDef
	MaxStack          int
	InitLocals        bool
	Variables         []*Variable
	Instructions      []*Instruction
	ExceptionHandlers []*ExceptionHandler
}

// Variable is a local variable slot of a method body.
type Variable struct {
	Body          *MethodBody
	Index         int
	Name          string
	VariableType  TypeRef
	PinnedOrByRef bool
}

// SequencePoint maps an instruction to a source location (debug symbols).
type SequencePoint struct {
	Document    string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

func (sp *SequencePoint) String() string {
	return fmt.Sprintf("%s(%d,%d)", sp.Document, sp.StartLine, sp.StartColumn)
}

// Instruction is one opcode with its operand.
type Instruction struct {
	Body          *MethodBody
	Offset        int
	OpCode        OpCode
	Operand       Operand
	SequencePoint *SequencePoint
}

// NewInstruction creates a detached instruction. A nil operand means NoOperand.
func NewInstruction(op OpCode, operand Operand) *Instruction {
	if operand == nil {
		operand = NoOperand{}
	}
	return &Instruction{OpCode: op, Operand: operand}
}

func (ins *Instruction) String() string {
	return fmt.Sprintf("IL_%04x: %s%s", ins.Offset, ins.OpCode, formatOperand(ins.Operand))
}

// Size returns the encoded size of ins in bytes.
func (ins *Instruction) Size() int {
	size := ins.OpCode.Size()
	switch ins.OpCode.OperandType() {
	case InlineNone:
	case ShortInlineBrTarget, ShortInlineArg, ShortInlineVar, ShortInlineI, InlineU8:
		size++
	case InlineArg, InlineVar:
		size += 2
	case InlineI8, InlineR:
		size += 8
	case InlineSwitch:
		size += 4
		if sw, ok := ins.Operand.(SwitchOperand); ok {
			size += 4 * len(sw.Targets)
		}
	default:
		size += 4
	}
	return size
}

// HandlerType is the kind of an exception handling clause.
type HandlerType int

const (
	HandlerCatch HandlerType = iota
	HandlerFilter
	HandlerFinally
	HandlerFault
)

func (h HandlerType) String() string {
	switch h {
	case HandlerCatch:
		return "catch"
	case HandlerFilter:
		return "filter"
	case HandlerFinally:
		return "finally"
	case HandlerFault:
		return "fault"
	default:
		return "unknown"
	}
}

// ExceptionHandler is a protected region with its handler. TryEnd and
// HandlerEnd are exclusive; a nil HandlerEnd means the end of the body.
type ExceptionHandler struct {
	Body         *MethodBody
	HandlerType  HandlerType
	TryStart     *Instruction
	TryEnd       *Instruction
	HandlerStart *Instruction
	HandlerEnd   *Instruction
	FilterStart  *Instruction
	CatchType    TypeRef
}

// NewBody attaches an empty body to m and returns it.
func (m *MethodDef) NewBody() *MethodBody {
	m.Body = &MethodBody{Method: m, InitLocals: true, MaxStack: 8}
	return m.Body
}

// AddVariable appends a local variable of type t.
func (b *MethodBody) AddVariable(t TypeRef) *Variable {
	v := &Variable{Body: b, Index: len(b.Variables), VariableType: t}
	b.Variables = append(b.Variables, v)
	return v
}

// Emit appends a new instruction and returns it.
func (b *MethodBody) Emit(op OpCode, operand Operand) *Instruction {
	return b.Append(NewInstruction(op, operand))
}

// Append adds ins at the end of the body.
func (b *MethodBody) Append(ins *Instruction) *Instruction {
	ins.Body = b
	b.Instructions = append(b.Instructions, ins)
	b.ComputeOffsets()
	return ins
}

// InsertAt inserts ins at position index.
func (b *MethodBody) InsertAt(index int, ins ...*Instruction) {
	if index < 0 || index > len(b.Instructions) {
		index = len(b.Instructions)
	}
	for _, in := range ins {
		in.Body = b
	}
	tail := append([]*Instruction{}, b.Instructions[index:]...)
	b.Instructions = append(append(b.Instructions[:index], ins...), tail...)
	b.ComputeOffsets()
}

// InsertBefore inserts ins immediately before target.
func (b *MethodBody) InsertBefore(target *Instruction, ins ...*Instruction) error {
	idx := b.IndexOf(target)
	if idx < 0 {
		return fmt.Errorf("instruction %s is not part of %s", target, MethodFullName(b.Method))
	}
	b.InsertAt(idx, ins...)
	return nil
}

// IndexOf returns the position of ins in the body or -1.
func (b *MethodBody) IndexOf(ins *Instruction) int {
	for i, cur := range b.Instructions {
		if cur == ins {
			return i
		}
	}
	return -1
}

// Previous returns the instruction before ins, or nil.
func (b *MethodBody) Previous(ins *Instruction) *Instruction {
	if i := b.IndexOf(ins); i > 0 {
		return b.Instructions[i-1]
	}
	return nil
}

// Next returns the instruction after ins, or nil.
func (b *MethodBody) Next(ins *Instruction) *Instruction {
	if i := b.IndexOf(ins); i >= 0 && i+1 < len(b.Instructions) {
		return b.Instructions[i+1]
	}
	return nil
}

// ComputeOffsets assigns byte offsets from instruction sizes.
func (b *MethodBody) ComputeOffsets() {
	offset := 0
	for _, ins := range b.Instructions {
		ins.Offset = offset
		offset += ins.Size()
	}
}

// AddExceptionHandler appends h to the body.
func (b *MethodBody) AddExceptionHandler(h *ExceptionHandler) *ExceptionHandler {
	h.Body = b
	b.ExceptionHandlers = append(b.ExceptionHandlers, h)
	return h
}
