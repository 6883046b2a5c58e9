package extractor

import (
	"github.com/l3aro/go-weaver/pkg/il"
)

// Parent returns the structural owner of e, or nil when e has no tracked
// parent. Assemblies, modules, top-level types, attributes, resources,
// exported types, security items, instructions and local variables have none.
func Parent(e il.Element) il.Element {
	switch v := e.(type) {
	case *il.TypeDef:
		if v.DeclaringType != nil {
			return v.DeclaringType
		}
	case *il.FieldDef:
		return typeOrNil(v.DeclaringType)
	case *il.MethodDef:
		return typeOrNil(v.DeclaringType)
	case *il.PropertyDef:
		return typeOrNil(v.DeclaringType)
	case *il.EventDef:
		return typeOrNil(v.DeclaringType)
	case *il.MethodBody:
		return methodOrNil(v.Method)
	case *il.ParamDef:
		return methodOrNil(v.Method)
	case *il.MethodReturnType:
		return methodOrNil(v.Method)
	case *il.GenericParam:
		if m := v.DeclaringMethod(); m != nil {
			return m
		}
		return typeOrNil(v.DeclaringType())
	case *il.ExceptionHandler:
		if v.Body != nil {
			return v.Body
		}
	}
	return nil
}

// Previous returns the sibling declared immediately before e, or nil when e
// is first or its order carries no meaning.
func Previous(e il.Element) il.Element {
	switch v := e.(type) {
	case *il.ParamDef:
		if v.Method != nil {
			return before(v.Method.Parameters, v)
		}
	case *il.Instruction:
		if v.Body != nil {
			return before(v.Body.Instructions, v)
		}
	case *il.Variable:
		if v.Body != nil {
			return before(v.Body.Variables, v)
		}
	case *il.ExceptionHandler:
		if v.Body != nil {
			return before(v.Body.ExceptionHandlers, v)
		}
	case *il.CustomAttribute:
		if p, ok := v.Owner.(il.AttributeProvider); ok && !il.IsNil(p) {
			return before(il.Attributes(p), v)
		}
	case *il.GenericParam:
		if m := v.DeclaringMethod(); m != nil {
			return before(m.GenericParameters, v)
		}
		if t := v.DeclaringType(); t != nil {
			return before(t.GenericParameters, v)
		}
	case *il.TypeDef:
		if v.DeclaringType != nil {
			return before(v.DeclaringType.NestedTypes, v)
		}
	case *il.FieldDef:
		if v.DeclaringType != nil {
			return before(v.DeclaringType.Fields, v)
		}
	case *il.MethodDef:
		if v.DeclaringType != nil {
			return before(v.DeclaringType.Methods, v)
		}
	case *il.PropertyDef:
		if v.DeclaringType != nil {
			return before(v.DeclaringType.Properties, v)
		}
	case *il.EventDef:
		if v.DeclaringType != nil {
			return before(v.DeclaringType.Events, v)
		}
	}
	return nil
}

func before[T interface {
	comparable
	il.Element
}](list []T, item T) il.Element {
	for i, cur := range list {
		if cur == item {
			if i == 0 {
				return nil
			}
			return list[i-1]
		}
	}
	return nil
}

func typeOrNil(t *il.TypeDef) il.Element {
	if t == nil {
		return nil
	}
	return t
}
