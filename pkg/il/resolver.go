package il

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolved is returned when a reference has no matching definition.
var ErrUnresolved = errors.New("unresolved reference")

// Resolver turns references into definitions.
type Resolver interface {
	ResolveType(t TypeRef) (*TypeDef, error)
	ResolveMethod(m MethodRef) (*MethodDef, error)
	ResolveField(f FieldRef) (*FieldDef, error)
	ResolveTypeName(assemblyQualifiedName string) (*TypeDef, error)
}

// Universe resolves references against a set of loaded assemblies.
// It is not safe for concurrent mutation; concurrent lookups are fine.
type Universe struct {
	assemblies map[string]*Assembly
	order      []string
}

// NewUniverse creates a Universe containing the given assemblies.
func NewUniverse(assemblies ...*Assembly) *Universe {
	u := &Universe{assemblies: make(map[string]*Assembly)}
	for _, a := range assemblies {
		u.Add(a)
	}
	return u
}

// Add registers a, replacing any assembly with the same name.
func (u *Universe) Add(a *Assembly) {
	if _, exists := u.assemblies[a.Name]; !exists {
		u.order = append(u.order, a.Name)
	}
	u.assemblies[a.Name] = a
}

// Assembly returns the loaded assembly with the given name.
func (u *Universe) Assembly(name string) (*Assembly, bool) {
	a, ok := u.assemblies[name]
	return a, ok
}

// Assemblies returns the loaded assemblies in registration order.
func (u *Universe) Assemblies() []*Assembly {
	out := make([]*Assembly, 0, len(u.order))
	for _, name := range u.order {
		out = append(out, u.assemblies[name])
	}
	return out
}

// ResolveType resolves t to its definition. Type specifications resolve to
// the definition of their element type; generic parameters do not resolve.
func (u *Universe) ResolveType(t TypeRef) (*TypeDef, error) {
	switch v := t.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil type", ErrUnresolved)
	case *TypeDef:
		return v, nil
	case *TypeReference:
		return u.resolveReference(v)
	case *ArrayType:
		return u.ResolveType(v.Element)
	case *ByRefType:
		return u.ResolveType(v.Element)
	case *PointerType:
		return u.ResolveType(v.Element)
	case *GenericInstanceType:
		return u.ResolveType(v.Element)
	case *GenericParam:
		return nil, fmt.Errorf("%w: generic parameter %s has no type definition", ErrUnresolved, v.Name)
	}
	return nil, fmt.Errorf("%w: type %T", ErrUnresolved, t)
}

func (u *Universe) resolveReference(ref *TypeReference) (*TypeDef, error) {
	if ref.DeclaringType != nil {
		outer, err := u.resolveReference(ref.DeclaringType)
		if err != nil {
			return nil, err
		}
		if nested := outer.FindNestedType(ref.Name); nested != nil {
			return nested, nil
		}
		return nil, fmt.Errorf("%w: type %s", ErrUnresolved, ref.FullName())
	}
	if t := u.find(ref.Scope, ref.FullName()); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("%w: type %s", ErrUnresolved, AssemblyQualifiedName(ref))
}

func (u *Universe) find(scope, fullName string) *TypeDef {
	if scope != "" {
		if a, ok := u.assemblies[scope]; ok {
			return a.FindType(fullName)
		}
		return nil
	}
	for _, name := range u.order {
		if t := u.assemblies[name].FindType(fullName); t != nil {
			return t
		}
	}
	return nil
}

// ResolveMethod resolves m to its definition by name and signature.
func (u *Universe) ResolveMethod(m MethodRef) (*MethodDef, error) {
	switch v := m.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil method", ErrUnresolved)
	case *MethodDef:
		return v, nil
	case *GenericInstanceMethod:
		return u.ResolveMethod(v.Method)
	case *MethodReference:
		owner, err := u.ResolveType(v.DeclaringType)
		if err != nil {
			return nil, fmt.Errorf("resolving declaring type of %s: %w", v.Name, err)
		}
		for _, candidate := range owner.Methods {
			if SameSignature(candidate, v) {
				return candidate, nil
			}
		}
		return nil, fmt.Errorf("%w: method %s", ErrUnresolved, MethodFullName(v))
	}
	return nil, fmt.Errorf("%w: method %T", ErrUnresolved, m)
}

// ResolveField resolves f to its definition by name.
func (u *Universe) ResolveField(f FieldRef) (*FieldDef, error) {
	switch v := f.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil field", ErrUnresolved)
	case *FieldDef:
		return v, nil
	case *FieldReference:
		owner, err := u.ResolveType(v.DeclaringType)
		if err != nil {
			return nil, fmt.Errorf("resolving declaring type of %s: %w", v.Name, err)
		}
		if def := owner.FindField(v.Name); def != nil {
			return def, nil
		}
		return nil, fmt.Errorf("%w: field %s", ErrUnresolved, FieldFullName(v))
	}
	return nil, fmt.Errorf("%w: field %T", ErrUnresolved, f)
}

// ResolveTypeName resolves "Namespace.Name[/Nested], Assembly". The assembly
// part is optional.
func (u *Universe) ResolveTypeName(name string) (*TypeDef, error) {
	fullName, scope := SplitAssemblyQualifiedName(name)
	if fullName == "" {
		return nil, fmt.Errorf("%w: empty type name", ErrUnresolved)
	}
	if t := u.find(scope, fullName); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("%w: type %q", ErrUnresolved, name)
}

// SplitAssemblyQualifiedName splits "Ns.Type, Assembly, Version=..." into
// the type full name and the assembly simple name.
func SplitAssemblyQualifiedName(name string) (fullName, scope string) {
	parts := strings.Split(name, ",")
	fullName = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		scope = strings.TrimSpace(parts[1])
	}
	return fullName, scope
}
