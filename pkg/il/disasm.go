package il

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of every type in asm.
func Disassemble(asm *Assembly) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(".assembly %s %s\n", asm.Name, asm.Version))
	for _, t := range asm.AllTypes() {
		sb.WriteString("\n")
		writeType(&sb, t)
	}
	return sb.String()
}

// DisassembleMethod returns a human-readable listing of one method.
func DisassembleMethod(m *MethodDef) string {
	var sb strings.Builder
	writeMethod(&sb, m)
	return sb.String()
}

func writeType(sb *strings.Builder, t *TypeDef) {
	kind := ".class"
	if t.IsInterface() {
		kind = ".interface"
	}
	sb.WriteString(fmt.Sprintf("%s %s", kind, t.FullName()))
	if len(t.GenericParameters) > 0 {
		names := make([]string, len(t.GenericParameters))
		for i, gp := range t.GenericParameters {
			names[i] = gp.Name
		}
		sb.WriteString("<" + strings.Join(names, ",") + ">")
	}
	if t.BaseType != nil {
		sb.WriteString(" extends " + t.BaseType.FullName())
	}
	if len(t.Interfaces) > 0 {
		names := make([]string, len(t.Interfaces))
		for i, iface := range t.Interfaces {
			names[i] = iface.FullName()
		}
		sb.WriteString(" implements " + strings.Join(names, ", "))
	}
	sb.WriteString("\n")
	for _, ca := range t.CustomAttributes {
		sb.WriteString(fmt.Sprintf("  .custom %s\n", MethodFullName(ca.Constructor)))
	}
	for _, f := range t.Fields {
		sb.WriteString(fmt.Sprintf("  .field %s\n", FieldFullName(f)))
	}
	for _, p := range t.Properties {
		sb.WriteString(fmt.Sprintf("  .property %s %s\n", typeName(p.PropertyType), p.Name))
	}
	for _, e := range t.Events {
		sb.WriteString(fmt.Sprintf("  .event %s %s\n", typeName(e.EventType), e.Name))
	}
	for _, m := range t.Methods {
		writeMethod(sb, m)
	}
}

func writeMethod(sb *strings.Builder, m *MethodDef) {
	prefix := ""
	if m.IsStatic() {
		prefix = "static "
	}
	sb.WriteString(fmt.Sprintf("  .method %s%s\n", prefix, MethodFullName(m)))
	if m.Body == nil {
		return
	}
	if len(m.Body.Variables) > 0 {
		sb.WriteString("    .locals (")
		for i, v := range m.Body.Variables {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s V_%d", typeName(v.VariableType), v.Index))
		}
		sb.WriteString(")\n")
	}
	for _, ins := range m.Body.Instructions {
		sb.WriteString("    " + ins.String() + "\n")
	}
	for _, h := range m.Body.ExceptionHandlers {
		sb.WriteString(fmt.Sprintf("    .try %s to %s %s handler %s to %s\n",
			label(h.TryStart), label(h.TryEnd), h.HandlerType, label(h.HandlerStart), label(h.HandlerEnd)))
	}
}

func label(ins *Instruction) string {
	if ins == nil {
		return "end"
	}
	return fmt.Sprintf("IL_%04x", ins.Offset)
}

func typeName(t TypeRef) string {
	if t == nil {
		return "<nil>"
	}
	return t.FullName()
}
