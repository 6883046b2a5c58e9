package il

// SlotFamily groups the opcodes that access a local variable or argument slot.
type SlotFamily int

const (
	SlotLoad SlotFamily = iota + 1
	SlotStore
	SlotAddress
)

func (f SlotFamily) String() string {
	switch f {
	case SlotLoad:
		return "load"
	case SlotStore:
		return "store"
	case SlotAddress:
		return "address"
	}
	return "none"
}

// LocalFamily returns the slot family of a local variable opcode.
func LocalFamily(op OpCode) (SlotFamily, bool) {
	switch op {
	case Ldloc0, Ldloc1, Ldloc2, Ldloc3, LdlocS, Ldloc:
		return SlotLoad, true
	case Stloc0, Stloc1, Stloc2, Stloc3, StlocS, Stloc:
		return SlotStore, true
	case LdlocaS, Ldloca:
		return SlotAddress, true
	}
	return 0, false
}

// ArgumentFamily returns the slot family of an argument opcode.
func ArgumentFamily(op OpCode) (SlotFamily, bool) {
	switch op {
	case Ldarg0, Ldarg1, Ldarg2, Ldarg3, LdargS, Ldarg:
		return SlotLoad, true
	case StargS, Starg:
		return SlotStore, true
	case LdargaS, Ldarga:
		return SlotAddress, true
	}
	return 0, false
}

// VariableIndex returns the local slot accessed by ins. Compact forms carry
// the index in the opcode; short and long forms carry a variable operand.
func VariableIndex(ins *Instruction) (int, bool) {
	switch ins.OpCode {
	case Ldloc0, Stloc0:
		return 0, true
	case Ldloc1, Stloc1:
		return 1, true
	case Ldloc2, Stloc2:
		return 2, true
	case Ldloc3, Stloc3:
		return 3, true
	case LdlocS, StlocS, LdlocaS, Ldloc, Stloc, Ldloca:
		if v, ok := ins.Operand.(VarOperand); ok && v.Var != nil {
			return v.Var.Index, true
		}
	}
	return 0, false
}

// ArgumentIndex returns the ldarg-style index accessed by ins.
func ArgumentIndex(ins *Instruction) (int, bool) {
	switch ins.OpCode {
	case Ldarg0:
		return 0, true
	case Ldarg1:
		return 1, true
	case Ldarg2:
		return 2, true
	case Ldarg3:
		return 3, true
	case LdargS, LdargaS, StargS, Ldarg, Ldarga, Starg:
		if p, ok := ins.Operand.(ParamOperand); ok && p.Param != nil {
			return p.Param.ArgIndex(), true
		}
	}
	return 0, false
}

// LocalOpCode selects the most compact opcode of family for a local slot:
// the operand-less forms for 0-3, the short form up to 255 and the long
// form beyond. The address family has no operand-less form.
func LocalOpCode(family SlotFamily, index int) OpCode {
	switch family {
	case SlotLoad:
		return selectForm(index, [4]OpCode{Ldloc0, Ldloc1, Ldloc2, Ldloc3}, LdlocS, Ldloc)
	case SlotStore:
		return selectForm(index, [4]OpCode{Stloc0, Stloc1, Stloc2, Stloc3}, StlocS, Stloc)
	case SlotAddress:
		if index <= 255 {
			return LdlocaS
		}
		return Ldloca
	}
	return Nop
}

// ArgumentOpCode selects the most compact opcode of family for an argument
// slot. Only loads have operand-less forms.
func ArgumentOpCode(family SlotFamily, index int) OpCode {
	switch family {
	case SlotLoad:
		return selectForm(index, [4]OpCode{Ldarg0, Ldarg1, Ldarg2, Ldarg3}, LdargS, Ldarg)
	case SlotStore:
		if index <= 255 {
			return StargS
		}
		return Starg
	case SlotAddress:
		if index <= 255 {
			return LdargaS
		}
		return Ldarga
	}
	return Nop
}

func selectForm(index int, compact [4]OpCode, short, long OpCode) OpCode {
	switch {
	case index >= 0 && index <= 3:
		return compact[index]
	case index <= 255:
		return short
	default:
		return long
	}
}

// IsCompactSlot reports whether op encodes its slot in the opcode itself.
func IsCompactSlot(op OpCode) bool {
	switch op {
	case Ldloc0, Ldloc1, Ldloc2, Ldloc3, Stloc0, Stloc1, Stloc2, Stloc3,
		Ldarg0, Ldarg1, Ldarg2, Ldarg3:
		return true
	}
	return false
}
