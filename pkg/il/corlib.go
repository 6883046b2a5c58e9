package il

// CoreLibraryName is the assembly name of the minimal core library.
const CoreLibraryName = "System.Runtime"

// CoreLibrary builds a minimal core library holding the handful of system
// types that woven code and test fixtures refer to. Method bodies are empty;
// only signatures matter for resolution.
func CoreLibrary() *Assembly {
	asm := NewAssembly(CoreLibraryName)
	mod := asm.MainModule()

	object := mod.AddType(NewType("System", "Object", TypePublic|TypeSerializable, nil))
	valueType := mod.AddType(NewType("System", "ValueType", TypePublic|TypeAbstract|TypeSerializable, object))
	void := mod.AddType(NewType("System", "Void", TypePublic|TypeSealed|TypeSequentialLayout, valueType))

	primitive := func(name string) *TypeDef {
		return mod.AddType(NewType("System", name, TypePublic|TypeSealed|TypeSequentialLayout|TypeSerializable, valueType))
	}
	boolean := primitive("Boolean")
	int32T := primitive("Int32")
	primitive("Int16")
	primitive("Int64")
	primitive("Single")
	primitive("Double")
	primitive("Byte")
	primitive("Char")
	primitive("IntPtr")
	primitive("RuntimeTypeHandle")

	str := mod.AddType(NewType("System", "String", TypePublic|TypeSealed|TypeSerializable, object))
	typ := mod.AddType(NewType("System", "Type", TypePublic|TypeAbstract|TypeSerializable, object))

	ctor := NewConstructor(MethodPublic, void)
	ctor.NewBody().Emit(Ret, nil)
	object.AddMethod(ctor)

	toString := object.AddMethod(NewMethod("ToString", MethodPublic|MethodVirtual|MethodHideBySig, str))
	toString.NewBody()
	equals := object.AddMethod(NewMethod("Equals", MethodPublic|MethodVirtual|MethodHideBySig, boolean))
	equals.AddParameter("obj", object)
	equals.NewBody()
	hash := object.AddMethod(NewMethod("GetHashCode", MethodPublic|MethodVirtual|MethodHideBySig, int32T))
	hash.NewBody()
	getType := object.AddMethod(NewMethod("GetType", MethodPublic|MethodHideBySig, typ))
	getType.NewBody()

	withDefaultCtor := func(t *TypeDef) *TypeDef {
		m := t.AddMethod(NewConstructor(MethodFamily, void))
		m.NewBody().Emit(Ret, nil)
		return t
	}

	withDefaultCtor(mod.AddType(NewType("System", "Exception", TypePublic|TypeSerializable, object)))
	withDefaultCtor(mod.AddType(NewType("System", "Attribute", TypePublic|TypeAbstract|TypeSerializable, object)))
	mod.AddType(NewType("System", "Enum", TypePublic|TypeAbstract|TypeSerializable, valueType))

	disposable := mod.AddType(NewType("System", "IDisposable", TypePublic|TypeInterface|TypeAbstract, nil))
	disposable.AddMethod(NewMethod("Dispose", MethodPublic|MethodVirtual|MethodAbstract|MethodNewSlot|MethodHideBySig, void))

	console := mod.AddType(NewType("System", "Console", TypePublic|TypeAbstract|TypeSealed, object))
	for _, arg := range []*TypeDef{str, int32T, object} {
		w := console.AddMethod(NewMethod("WriteLine", MethodPublic|MethodStatic|MethodHideBySig, void))
		w.AddParameter("value", arg)
		w.NewBody().Emit(Ret, nil)
	}

	list := mod.AddType(NewType("System.Collections.Generic", "List`1", TypePublic|TypeSerializable, object))
	item := AddGenericParameter(list, "T")
	withDefaultCtor(list)
	add := list.AddMethod(NewMethod("Add", MethodPublic|MethodHideBySig, void))
	add.AddParameter("item", item)
	add.NewBody().Emit(Ret, nil)

	comparable := mod.AddType(NewType("System", "IComparable`1", TypePublic|TypeInterface|TypeAbstract, nil))
	other := AddGenericParameter(comparable, "T")
	cmp := comparable.AddMethod(NewMethod("CompareTo", MethodPublic|MethodVirtual|MethodAbstract|MethodNewSlot|MethodHideBySig, int32T))
	cmp.AddParameter("other", other)

	return asm
}

// CoreType returns a reference to the core library type System.<name>.
func CoreType(name string) *TypeReference {
	return &TypeReference{Scope: CoreLibraryName, Namespace: "System", Name: name}
}

// ObjectConstructor returns a reference to System.Object::.ctor().
func ObjectConstructor() *MethodReference {
	return &MethodReference{
		DeclaringType: CoreType("Object"),
		Name:          ConstructorName,
		ReturnType:    CoreType("Void"),
		This:          true,
	}
}
