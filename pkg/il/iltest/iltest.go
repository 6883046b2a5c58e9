// Package iltest provides metadata fixtures for tests of packages built on il.
package iltest

import (
	"github.com/l3aro/go-weaver/pkg/il"
)

// World is a core library plus a universe that resolves against it.
type World struct {
	Corlib   *il.Assembly
	Universe *il.Universe
}

// NewWorld creates a World holding only the core library.
func NewWorld() *World {
	corlib := il.CoreLibrary()
	return &World{Corlib: corlib, Universe: il.NewUniverse(corlib)}
}

// Assembly creates an empty assembly and registers it with the universe.
func (w *World) Assembly(name string) *il.Assembly {
	asm := il.NewAssembly(name)
	w.Universe.Add(asm)
	return asm
}

// Core returns a reference to System.<name>.
func (w *World) Core(name string) il.TypeRef { return il.CoreType(name) }

func (w *World) Void() il.TypeRef   { return il.CoreType("Void") }
func (w *World) Int32() il.TypeRef  { return il.CoreType("Int32") }
func (w *World) Str() il.TypeRef    { return il.CoreType("String") }
func (w *World) Object() il.TypeRef { return il.CoreType("Object") }

// Class adds a public class deriving from System.Object to asm.
func (w *World) Class(asm *il.Assembly, ns, name string) *il.TypeDef {
	return asm.MainModule().AddType(il.NewType(ns, name, il.TypePublic|il.TypeBeforeFieldInit, w.Object()))
}

// Interface adds a public interface to asm.
func (w *World) Interface(asm *il.Assembly, ns, name string) *il.TypeDef {
	return asm.MainModule().AddType(il.NewType(ns, name, il.TypePublic|il.TypeInterface|il.TypeAbstract, nil))
}

// DefaultConstructor adds "ldarg.0; call Object::.ctor(); ret" to t.
func (w *World) DefaultConstructor(t *il.TypeDef) *il.MethodDef {
	ctor := t.AddMethod(il.NewConstructor(il.MethodPublic, w.Void()))
	body := ctor.NewBody()
	body.Emit(il.Ldarg0, nil)
	body.Emit(il.Call, il.MethodOperand{Method: il.ObjectConstructor()})
	body.Emit(il.Ret, nil)
	return ctor
}

// WriteLine returns a reference to Console.WriteLine(string).
func (w *World) WriteLine() il.MethodRef {
	return &il.MethodReference{
		DeclaringType: il.CoreType("Console"),
		Name:          "WriteLine",
		ReturnType:    il.CoreType("Void"),
		Parameters:    []il.TypeRef{il.CoreType("String")},
	}
}

// Linked builds "Sample.Node" holding a field of its own type, a generic
// method and a body with locals, branches and a protected region.
func (w *World) Linked(asm *il.Assembly) *il.TypeDef {
	node := w.Class(asm, "Sample", "Node")
	next := node.AddField(il.NewField("next", il.FieldPrivate, node))
	count := node.AddField(il.NewField("count", il.FieldPrivate, w.Int32()))
	w.DefaultConstructor(node)

	walk := node.AddMethod(il.NewMethod("Walk", il.MethodPublic|il.MethodHideBySig, w.Int32()))
	limit := walk.AddParameter("limit", w.Int32())
	body := walk.NewBody()
	total := body.AddVariable(w.Int32())
	cur := body.AddVariable(node)

	body.Emit(il.LdcI40, nil)
	body.Emit(il.Stloc0, nil)
	body.Emit(il.Ldarg0, nil)
	body.Emit(il.Stloc1, nil)
	tryStart := body.Emit(il.Nop, nil)
	loop := body.Emit(il.Ldloc, il.VarOperand{Var: cur})
	exit := il.NewInstruction(il.Ldloc0, nil)
	body.Emit(il.BrfalseS, il.BranchOperand{Target: exit})
	body.Emit(il.Ldloc, il.VarOperand{Var: total})
	body.Emit(il.Ldloc1, nil)
	body.Emit(il.Ldfld, il.FieldOperand{Field: count})
	body.Emit(il.Add, nil)
	body.Emit(il.Stloc, il.VarOperand{Var: total})
	body.Emit(il.Ldloc1, nil)
	body.Emit(il.Ldfld, il.FieldOperand{Field: next})
	body.Emit(il.Stloc, il.VarOperand{Var: cur})
	body.Emit(il.LdargS, il.ParamOperand{Param: limit})
	body.Emit(il.BrtrueS, il.BranchOperand{Target: loop})
	body.Emit(il.LeaveS, il.BranchOperand{Target: exit})
	handler := body.Emit(il.Pop, nil)
	handlerEnd := body.Emit(il.LeaveS, il.BranchOperand{Target: exit})
	body.Append(exit)
	body.Emit(il.Ret, nil)

	body.AddExceptionHandler(&il.ExceptionHandler{
		HandlerType:  il.HandlerCatch,
		TryStart:     tryStart,
		TryEnd:       handler,
		HandlerStart: handler,
		HandlerEnd:   body.Next(handlerEnd),
		CatchType:    w.Core("Exception"),
	})

	identity := node.AddMethod(il.NewMethod("Identity", il.MethodPublic|il.MethodStatic|il.MethodHideBySig, nil))
	tp := il.AddGenericParameter(identity, "T")
	identity.ReturnType.Type = tp
	identity.AddParameter("value", tp)
	ib := identity.NewBody()
	ib.Emit(il.Ldarg0, nil)
	ib.Emit(il.Ret, nil)

	return node
}
