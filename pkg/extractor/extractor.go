// Package extractor enumerates the structural relations of program elements:
// what an element depends on, what it contains, which element owns it and
// which sibling precedes it in declaration order.
package extractor

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

// ErrUnsupportedElement is returned for elements the extractor has no case for.
var ErrUnsupportedElement = errors.New("unsupported element")

// Dependencies returns the elements e cannot be fully defined without, in a
// stable order. References are resolved to definitions through r; a reference
// that does not resolve fails the whole extraction. A nil entry in the result
// marks a required endpoint that is missing from the metadata.
func Dependencies(e il.Element, r il.Resolver) ([]il.Element, error) {
	if il.IsNil(e) {
		return nil, fmt.Errorf("%w: <nil>", ErrUnsupportedElement)
	}
	v := &dependencyVisitor{resolver: r}
	if err := e.Accept(v); err != nil {
		return nil, fmt.Errorf("dependencies of %s: %w", e.Kind(), err)
	}
	return v.deps, nil
}

type dependencyVisitor struct {
	resolver il.Resolver
	deps     []il.Element
}

func (v *dependencyVisitor) add(e il.Element) {
	v.deps = append(v.deps, e)
}

// addType appends the leaf definitions of t. Array, by-ref and pointer types
// contribute their element; generic instances contribute the open type and
// every argument.
func (v *dependencyVisitor) addType(t il.TypeRef) error {
	switch tt := t.(type) {
	case nil:
		v.add(nil)
		return nil
	case *il.TypeDef:
		v.add(tt)
	case *il.GenericParam:
		v.add(tt)
	case *il.TypeReference:
		def, err := v.resolveType(tt)
		if err != nil {
			return err
		}
		v.add(def)
	case *il.ArrayType:
		return v.addType(tt.Element)
	case *il.ByRefType:
		return v.addType(tt.Element)
	case *il.PointerType:
		return v.addType(tt.Element)
	case *il.GenericInstanceType:
		if err := v.addType(tt.Element); err != nil {
			return err
		}
		for _, arg := range tt.Arguments {
			if err := v.addType(arg); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: type %T", ErrUnsupportedElement, t)
	}
	return nil
}

func (v *dependencyVisitor) addOptionalType(t il.TypeRef) error {
	if t == nil {
		return nil
	}
	return v.addType(t)
}

func (v *dependencyVisitor) resolveType(t il.TypeRef) (*il.TypeDef, error) {
	if v.resolver == nil {
		return nil, fmt.Errorf("%w: no resolver for %s", il.ErrUnresolved, il.AssemblyQualifiedName(t))
	}
	return v.resolver.ResolveType(t)
}

func (v *dependencyVisitor) addMethod(m il.MethodRef) error {
	switch mm := m.(type) {
	case nil:
		v.add(nil)
	case *il.MethodDef:
		v.add(mm)
	case *il.MethodReference:
		if v.resolver == nil {
			return fmt.Errorf("%w: no resolver for %s", il.ErrUnresolved, il.MethodFullName(mm))
		}
		def, err := v.resolver.ResolveMethod(mm)
		if err != nil {
			return err
		}
		v.add(def)
		if gi, ok := mm.DeclaringType.(*il.GenericInstanceType); ok {
			return v.addType(gi)
		}
	case *il.GenericInstanceMethod:
		if err := v.addMethod(mm.Method); err != nil {
			return err
		}
		for _, arg := range mm.Arguments {
			if err := v.addType(arg); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: method %T", ErrUnsupportedElement, m)
	}
	return nil
}

func (v *dependencyVisitor) addField(f il.FieldRef) error {
	switch ff := f.(type) {
	case nil:
		v.add(nil)
	case *il.FieldDef:
		v.add(ff)
	case *il.FieldReference:
		if v.resolver == nil {
			return fmt.Errorf("%w: no resolver for %s", il.ErrUnresolved, il.FieldFullName(ff))
		}
		def, err := v.resolver.ResolveField(ff)
		if err != nil {
			return err
		}
		v.add(def)
		if gi, ok := ff.DeclaringType.(*il.GenericInstanceType); ok {
			return v.addType(gi)
		}
	default:
		return fmt.Errorf("%w: field %T", ErrUnsupportedElement, f)
	}
	return nil
}

func (v *dependencyVisitor) addArgument(arg il.AttributeArgument) error {
	if err := v.addOptionalType(arg.Type); err != nil {
		return err
	}
	switch val := arg.Value.(type) {
	case il.TypeRef:
		return v.addType(val)
	case []il.AttributeArgument:
		for _, elem := range val {
			if err := v.addArgument(elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *dependencyVisitor) VisitAssembly(*il.Assembly) error         { return nil }
func (v *dependencyVisitor) VisitModule(*il.Module) error             { return nil }
func (v *dependencyVisitor) VisitMethodBody(*il.MethodBody) error     { return nil }
func (v *dependencyVisitor) VisitExportedType(*il.ExportedType) error { return nil }
func (v *dependencyVisitor) VisitResource(*il.Resource) error         { return nil }

func (v *dependencyVisitor) VisitSecurityDeclaration(*il.SecurityDeclaration) error { return nil }

func (v *dependencyVisitor) VisitType(t *il.TypeDef) error {
	if err := v.addOptionalType(t.BaseType); err != nil {
		return err
	}
	for _, iface := range t.Interfaces {
		if err := v.addType(iface); err != nil {
			return err
		}
	}
	for _, gp := range t.GenericParameters {
		v.add(gp)
	}
	return nil
}

func (v *dependencyVisitor) VisitField(f *il.FieldDef) error {
	return v.addType(f.FieldType)
}

func (v *dependencyVisitor) VisitMethod(m *il.MethodDef) error {
	if m.ReturnType == nil {
		v.add(nil)
	} else {
		v.add(m.ReturnType)
	}
	for _, p := range m.Parameters {
		v.add(p)
	}
	for _, gp := range m.GenericParameters {
		v.add(gp)
	}
	for _, o := range m.Overrides {
		if err := v.addMethod(o); err != nil {
			return err
		}
	}
	return nil
}

func (v *dependencyVisitor) VisitProperty(p *il.PropertyDef) error {
	if err := v.addType(p.PropertyType); err != nil {
		return err
	}
	for _, m := range []*il.MethodDef{p.Getter, p.Setter} {
		if m != nil {
			v.add(m)
		}
	}
	return nil
}

func (v *dependencyVisitor) VisitEvent(e *il.EventDef) error {
	if err := v.addType(e.EventType); err != nil {
		return err
	}
	for _, m := range []*il.MethodDef{e.AddMethod, e.RemoveMethod, e.InvokeMethod} {
		if m != nil {
			v.add(m)
		}
	}
	return nil
}

func (v *dependencyVisitor) VisitGenericParameter(gp *il.GenericParam) error {
	for _, c := range gp.Constraints {
		if err := v.addType(c); err != nil {
			return err
		}
	}
	return nil
}

func (v *dependencyVisitor) VisitParameter(p *il.ParamDef) error {
	return v.addType(p.ParameterType)
}

func (v *dependencyVisitor) VisitReturnType(rt *il.MethodReturnType) error {
	return v.addType(rt.Type)
}

func (v *dependencyVisitor) VisitCustomAttribute(ca *il.CustomAttribute) error {
	if ca.Constructor == nil {
		v.add(nil)
		return nil
	}
	if err := v.addType(ca.Constructor.DeclaringTypeRef()); err != nil {
		return err
	}
	if err := v.addMethod(ca.Constructor); err != nil {
		return err
	}
	for _, arg := range ca.Arguments {
		if err := v.addArgument(arg); err != nil {
			return err
		}
	}
	for _, named := range append(append([]il.NamedArgument{}, ca.Fields...), ca.Properties...) {
		if err := v.addArgument(named.Argument); err != nil {
			return err
		}
	}
	return nil
}

func (v *dependencyVisitor) VisitVariable(vr *il.Variable) error {
	return v.addType(vr.VariableType)
}

func (v *dependencyVisitor) VisitInstruction(ins *il.Instruction) error {
	return il.VisitOperand(ins.Operand, &operandVisitor{v})
}

func (v *dependencyVisitor) VisitExceptionHandler(h *il.ExceptionHandler) error {
	if err := v.addOptionalType(h.CatchType); err != nil {
		return err
	}
	if h.TryStart == nil || h.HandlerStart == nil {
		v.add(nil)
		return nil
	}
	for _, ins := range []*il.Instruction{h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd, h.FilterStart} {
		if ins != nil {
			v.add(ins)
		}
	}
	return nil
}

func (v *dependencyVisitor) VisitSecurityAttribute(sa *il.SecurityAttribute) error {
	return v.addType(sa.AttributeType)
}

// operandVisitor adds the dependencies of one instruction operand.
type operandVisitor struct {
	*dependencyVisitor
}

func (o *operandVisitor) VisitNone() error                     { return nil }
func (o *operandVisitor) VisitUint8(il.Uint8Operand) error     { return nil }
func (o *operandVisitor) VisitInt8(il.Int8Operand) error       { return nil }
func (o *operandVisitor) VisitFloat32(il.Float32Operand) error { return nil }
func (o *operandVisitor) VisitFloat64(il.Float64Operand) error { return nil }
func (o *operandVisitor) VisitInt32(il.Int32Operand) error     { return nil }
func (o *operandVisitor) VisitInt64(il.Int64Operand) error     { return nil }
func (o *operandVisitor) VisitString(il.StringOperand) error   { return nil }

func (o *operandVisitor) VisitType(op il.TypeOperand) error   { return o.addType(op.Type) }
func (o *operandVisitor) VisitField(op il.FieldOperand) error { return o.addField(op.Field) }

func (o *operandVisitor) VisitMethod(op il.MethodOperand) error {
	return o.addMethod(op.Method)
}

func (o *operandVisitor) VisitBranch(op il.BranchOperand) error {
	o.add(instructionOrNil(op.Target))
	return nil
}

func (o *operandVisitor) VisitSwitch(op il.SwitchOperand) error {
	for _, target := range op.Targets {
		o.add(instructionOrNil(target))
	}
	return nil
}

// VisitParam adds the parameter; the implicit receiver is not a vertex of its
// own, so it stands for its method.
func (o *operandVisitor) VisitParam(op il.ParamOperand) error {
	switch {
	case op.Param == nil:
		o.add(nil)
	case op.Param.IsThis():
		o.add(methodOrNil(op.Param.Method))
	default:
		o.add(op.Param)
	}
	return nil
}

func (o *operandVisitor) VisitVar(op il.VarOperand) error {
	if op.Var == nil {
		o.add(nil)
	} else {
		o.add(op.Var)
	}
	return nil
}

func instructionOrNil(ins *il.Instruction) il.Element {
	if ins == nil {
		return nil
	}
	return ins
}

func methodOrNil(m *il.MethodDef) il.Element {
	if m == nil {
		return nil
	}
	return m
}
