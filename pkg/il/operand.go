package il

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedOperand is returned when an operand shape has no handler.
	ErrUnsupportedOperand = errors.New("unsupported operand")
	ErrOperandMismatch    = errors.New("operand does not match opcode")
)

// Operand is the closed set of instruction operand shapes.
type Operand interface {
	Accept(v OperandVisitor) error
	operand()
}

// OperandVisitor has one method per operand shape.
type OperandVisitor interface {
	VisitNone() error
	VisitType(TypeOperand) error
	VisitField(FieldOperand) error
	VisitMethod(MethodOperand) error
	VisitBranch(BranchOperand) error
	VisitSwitch(SwitchOperand) error
	VisitParam(ParamOperand) error
	VisitVar(VarOperand) error
	VisitUint8(Uint8Operand) error
	VisitInt8(Int8Operand) error
	VisitFloat32(Float32Operand) error
	VisitFloat64(Float64Operand) error
	VisitInt32(Int32Operand) error
	VisitInt64(Int64Operand) error
	VisitString(StringOperand) error
}

type (
	NoOperand      struct{}
	TypeOperand    struct{ Type TypeRef }
	FieldOperand   struct{ Field FieldRef }
	MethodOperand  struct{ Method MethodRef }
	BranchOperand  struct{ Target *Instruction }
	SwitchOperand  struct{ Targets []*Instruction }
	ParamOperand   struct{ Param *ParamDef }
	VarOperand     struct{ Var *Variable }
	Uint8Operand   uint8
	Int8Operand    int8
	Float32Operand float32
	Float64Operand float64
	Int32Operand   int32
	Int64Operand   int64
	StringOperand  string
)

func (NoOperand) Accept(v OperandVisitor) error        { return v.VisitNone() }
func (o TypeOperand) Accept(v OperandVisitor) error    { return v.VisitType(o) }
func (o FieldOperand) Accept(v OperandVisitor) error   { return v.VisitField(o) }
func (o MethodOperand) Accept(v OperandVisitor) error  { return v.VisitMethod(o) }
func (o BranchOperand) Accept(v OperandVisitor) error  { return v.VisitBranch(o) }
func (o SwitchOperand) Accept(v OperandVisitor) error  { return v.VisitSwitch(o) }
func (o ParamOperand) Accept(v OperandVisitor) error   { return v.VisitParam(o) }
func (o VarOperand) Accept(v OperandVisitor) error     { return v.VisitVar(o) }
func (o Uint8Operand) Accept(v OperandVisitor) error   { return v.VisitUint8(o) }
func (o Int8Operand) Accept(v OperandVisitor) error    { return v.VisitInt8(o) }
func (o Float32Operand) Accept(v OperandVisitor) error { return v.VisitFloat32(o) }
func (o Float64Operand) Accept(v OperandVisitor) error { return v.VisitFloat64(o) }
func (o Int32Operand) Accept(v OperandVisitor) error   { return v.VisitInt32(o) }
func (o Int64Operand) Accept(v OperandVisitor) error   { return v.VisitInt64(o) }
func (o StringOperand) Accept(v OperandVisitor) error  { return v.VisitString(o) }

func (NoOperand) operand()      {}
func (TypeOperand) operand()    {}
func (FieldOperand) operand()   {}
func (MethodOperand) operand()  {}
func (BranchOperand) operand()  {}
func (SwitchOperand) operand()  {}
func (ParamOperand) operand()   {}
func (VarOperand) operand()     {}
func (Uint8Operand) operand()   {}
func (Int8Operand) operand()    {}
func (Float32Operand) operand() {}
func (Float64Operand) operand() {}
func (Int32Operand) operand()   {}
func (Int64Operand) operand()   {}
func (StringOperand) operand()  {}

// VisitOperand dispatches op to v. A nil operand is an unsupported shape.
func VisitOperand(op Operand, v OperandVisitor) error {
	if op == nil {
		return fmt.Errorf("%w: <nil>", ErrUnsupportedOperand)
	}
	return op.Accept(v)
}

// Accepts reports whether operand has the shape expected by op.
func (op OpCode) Accepts(operand Operand) bool {
	switch op.OperandType() {
	case InlineNone:
		_, ok := operand.(NoOperand)
		return ok
	case InlineType:
		o, ok := operand.(TypeOperand)
		return ok && o.Type != nil
	case InlineField:
		o, ok := operand.(FieldOperand)
		return ok && o.Field != nil
	case InlineMethod:
		o, ok := operand.(MethodOperand)
		return ok && o.Method != nil
	case InlineTok:
		switch o := operand.(type) {
		case TypeOperand:
			return o.Type != nil
		case FieldOperand:
			return o.Field != nil
		case MethodOperand:
			return o.Method != nil
		}
		return false
	case InlineBrTarget, ShortInlineBrTarget:
		o, ok := operand.(BranchOperand)
		return ok && o.Target != nil
	case InlineSwitch:
		_, ok := operand.(SwitchOperand)
		return ok
	case InlineArg, ShortInlineArg:
		o, ok := operand.(ParamOperand)
		return ok && o.Param != nil
	case InlineVar, ShortInlineVar:
		o, ok := operand.(VarOperand)
		return ok && o.Var != nil
	case ShortInlineI:
		_, ok := operand.(Int8Operand)
		return ok
	case InlineU8:
		_, ok := operand.(Uint8Operand)
		return ok
	case InlineI:
		_, ok := operand.(Int32Operand)
		return ok
	case InlineI8:
		_, ok := operand.(Int64Operand)
		return ok
	case ShortInlineR:
		_, ok := operand.(Float32Operand)
		return ok
	case InlineR:
		_, ok := operand.(Float64Operand)
		return ok
	case InlineString:
		_, ok := operand.(StringOperand)
		return ok
	}
	return false
}

func formatOperand(op Operand) string {
	switch o := op.(type) {
	case nil, NoOperand:
		return ""
	case TypeOperand:
		return " " + o.Type.FullName()
	case FieldOperand:
		return " " + FieldFullName(o.Field)
	case MethodOperand:
		return " " + MethodFullName(o.Method)
	case BranchOperand:
		return fmt.Sprintf(" IL_%04x", o.Target.Offset)
	case SwitchOperand:
		labels := make([]string, len(o.Targets))
		for i, t := range o.Targets {
			labels[i] = fmt.Sprintf("IL_%04x", t.Offset)
		}
		return " (" + strings.Join(labels, ", ") + ")"
	case ParamOperand:
		return " " + o.Param.Name
	case VarOperand:
		return " V_" + strconv.Itoa(o.Var.Index)
	case StringOperand:
		return " " + strconv.Quote(string(o))
	case Uint8Operand:
		return " " + strconv.FormatUint(uint64(o), 10)
	case Int8Operand:
		return " " + strconv.FormatInt(int64(o), 10)
	case Int32Operand:
		return " " + strconv.FormatInt(int64(o), 10)
	case Int64Operand:
		return " " + strconv.FormatInt(int64(o), 10)
	case Float32Operand:
		return " " + strconv.FormatFloat(float64(o), 'g', -1, 32)
	case Float64Operand:
		return " " + strconv.FormatFloat(float64(o), 'g', -1, 64)
	}
	return " ?"
}
