package weave

import (
	"github.com/l3aro/go-weaver/pkg/il"
)

const (
	// AttributeLibrary is the assembly holding the weave marker attributes.
	AttributeLibrary = "Weaver.Attributes"

	// MarkerInterface is implemented by every attribute that selects a weave.
	MarkerInterface = "Weaver.IWeaveAttribute"

	// InterfaceMixinAttribute requests the interface mixin weave. Its single
	// constructor argument is the interface to add.
	InterfaceMixinAttribute = "Weaver.InterfaceMixinAttribute"
)

// AttributeAssembly builds the marker library that annotated assemblies
// reference.
func AttributeAssembly() *il.Assembly {
	asm := il.NewAssembly(AttributeLibrary)
	mod := asm.MainModule()

	marker := mod.AddType(il.NewType("Weaver", "IWeaveAttribute", il.TypePublic|il.TypeInterface|il.TypeAbstract, nil))

	mixin := mod.AddType(il.NewType("Weaver", "InterfaceMixinAttribute",
		il.TypePublic|il.TypeSealed|il.TypeBeforeFieldInit, il.CoreType("Attribute")))
	mixin.AddInterface(marker)
	ctor := mixin.AddMethod(il.NewConstructor(il.MethodPublic, il.CoreType("Void")))
	ctor.AddParameter("interfaceType", il.CoreType("Type"))
	body := ctor.NewBody()
	body.Emit(il.Ldarg0, nil)
	body.Emit(il.Call, il.MethodOperand{Method: &il.MethodReference{
		DeclaringType: il.CoreType("Attribute"),
		Name:          il.ConstructorName,
		ReturnType:    il.CoreType("Void"),
		This:          true,
	}})
	body.Emit(il.Ret, nil)

	return asm
}

// NewInterfaceMixin returns an attribute instance that mixes iface into the
// type it is attached to.
func NewInterfaceMixin(iface il.TypeRef) *il.CustomAttribute {
	ctor := &il.MethodReference{
		DeclaringType: &il.TypeReference{Scope: AttributeLibrary, Namespace: "Weaver", Name: "InterfaceMixinAttribute"},
		Name:          il.ConstructorName,
		ReturnType:    il.CoreType("Void"),
		Parameters:    []il.TypeRef{il.CoreType("Type")},
		This:          true,
	}
	return il.NewCustomAttribute(ctor, il.AttributeArgument{Type: il.CoreType("Type"), Value: iface})
}
