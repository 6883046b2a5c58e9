package cloning

import (
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

// ImportType maps t into the target context. Types in the clone set map to
// their targets, definitions from a foreign assembly become references, and
// everything else passes through.
func (c *Context) ImportType(t il.TypeRef) (il.TypeRef, error) {
	if t == nil {
		return nil, nil
	}
	for _, s := range c.opts.TypeSubstitutions {
		if s.Match(t) {
			out, err := s.Transform(t)
			if err != nil {
				return nil, fmt.Errorf("type substitution for %s: %w", t.FullName(), err)
			}
			return out, nil
		}
	}

	switch v := t.(type) {
	case *il.TypeDef:
		if c.inCloneSet(v) {
			return c.targetType(v)
		}
		if c.foreign(v.Assembly()) {
			return il.Reference(v), nil
		}
		return v, nil
	case *il.TypeReference:
		if def := c.resolveType(v); def != nil {
			return c.targetType(def)
		}
		return v, nil
	case *il.GenericParam:
		if c.inCloneSet(v) {
			target, err := c.Target(v)
			if err != nil {
				return nil, err
			}
			return target.(*il.GenericParam), nil
		}
		return v, nil
	case *il.ArrayType:
		elem, err := c.ImportType(v.Element)
		if err != nil {
			return nil, err
		}
		if elem == v.Element {
			return v, nil
		}
		return &il.ArrayType{Element: elem, Rank: v.Rank}, nil
	case *il.ByRefType:
		elem, err := c.ImportType(v.Element)
		if err != nil {
			return nil, err
		}
		if elem == v.Element {
			return v, nil
		}
		return &il.ByRefType{Element: elem}, nil
	case *il.PointerType:
		elem, err := c.ImportType(v.Element)
		if err != nil {
			return nil, err
		}
		if elem == v.Element {
			return v, nil
		}
		return &il.PointerType{Element: elem}, nil
	case *il.GenericInstanceType:
		elem, err := c.ImportType(v.Element)
		if err != nil {
			return nil, err
		}
		args, changed, err := c.importTypes(v.Arguments)
		if err != nil {
			return nil, err
		}
		if !changed && elem == v.Element {
			return v, nil
		}
		return &il.GenericInstanceType{Element: elem, Arguments: args}, nil
	}
	return nil, fmt.Errorf("type %T: %w", t, ErrNotClonable)
}

func (c *Context) importTypes(ts []il.TypeRef) ([]il.TypeRef, bool, error) {
	if len(ts) == 0 {
		return nil, false, nil
	}
	out := make([]il.TypeRef, len(ts))
	changed := false
	for i, t := range ts {
		it, err := c.ImportType(t)
		if err != nil {
			return nil, false, err
		}
		out[i] = it
		changed = changed || it != t
	}
	return out, changed, nil
}

func (c *Context) targetType(t *il.TypeDef) (il.TypeRef, error) {
	target, err := c.Target(t)
	if err != nil {
		return nil, err
	}
	return target.(*il.TypeDef), nil
}

// resolveType returns the clone-set definition behind ref, if any.
func (c *Context) resolveType(ref *il.TypeReference) *il.TypeDef {
	if c.opts.Resolver == nil {
		return nil
	}
	def, err := c.opts.Resolver.ResolveType(ref)
	if err != nil || !c.inCloneSet(def) {
		return nil
	}
	return def
}

// ImportMethod maps m into the target context. Explicit redirects win over
// substitutions, which win over the clone set.
func (c *Context) ImportMethod(m il.MethodRef) (il.MethodRef, error) {
	if m == nil {
		return nil, nil
	}
	if target, ok := c.opts.Redirects[m]; ok {
		return target, nil
	}
	for _, s := range c.opts.MethodSubstitutions {
		if s.Match(m) {
			out, err := s.Transform(m)
			if err != nil {
				return nil, fmt.Errorf("method substitution for %s: %w", il.MethodFullName(m), err)
			}
			return out, nil
		}
	}

	switch v := m.(type) {
	case *il.MethodDef:
		if c.inCloneSet(v) {
			return c.targetMethod(v)
		}
		if v.DeclaringType != nil && c.foreign(v.DeclaringType.Assembly()) {
			return c.methodReference(v)
		}
		return v, nil
	case *il.MethodReference:
		if c.opts.Resolver != nil {
			if def, err := c.opts.Resolver.ResolveMethod(v); err == nil {
				if target, ok := c.opts.Redirects[def]; ok {
					return target, nil
				}
				if c.inCloneSet(def) {
					return c.targetMethod(def)
				}
			}
		}
		decl, err := c.ImportType(v.DeclaringType)
		if err != nil {
			return nil, err
		}
		ret, err := c.ImportType(v.ReturnType)
		if err != nil {
			return nil, err
		}
		params, changed, err := c.importTypes(v.Parameters)
		if err != nil {
			return nil, err
		}
		if !changed && decl == v.DeclaringType && ret == v.ReturnType {
			return v, nil
		}
		return &il.MethodReference{
			DeclaringType: decl,
			Name:          v.Name,
			ReturnType:    ret,
			Parameters:    params,
			This:          v.This,
			GenericArity:  v.GenericArity,
		}, nil
	case *il.GenericInstanceMethod:
		inner, err := c.ImportMethod(v.Method)
		if err != nil {
			return nil, err
		}
		args, changed, err := c.importTypes(v.Arguments)
		if err != nil {
			return nil, err
		}
		if !changed && inner == v.Method {
			return v, nil
		}
		return &il.GenericInstanceMethod{Method: inner, Arguments: args}, nil
	}
	return nil, fmt.Errorf("method %T: %w", m, ErrNotClonable)
}

func (c *Context) targetMethod(m *il.MethodDef) (il.MethodRef, error) {
	target, err := c.Target(m)
	if err != nil {
		return nil, err
	}
	return target.(*il.MethodDef), nil
}

func (c *Context) methodReference(m *il.MethodDef) (il.MethodRef, error) {
	decl, err := c.ImportType(m.DeclaringType)
	if err != nil {
		return nil, err
	}
	ret, err := c.ImportType(m.ReturnTypeRef())
	if err != nil {
		return nil, err
	}
	params, _, err := c.importTypes(m.ParameterTypes())
	if err != nil {
		return nil, err
	}
	return &il.MethodReference{
		DeclaringType: decl,
		Name:          m.Name,
		ReturnType:    ret,
		Parameters:    params,
		This:          m.HasThis(),
		GenericArity:  len(m.GenericParameters),
	}, nil
}

// ImportField maps f into the target context.
func (c *Context) ImportField(f il.FieldRef) (il.FieldRef, error) {
	if f == nil {
		return nil, nil
	}
	switch v := f.(type) {
	case *il.FieldDef:
		if c.inCloneSet(v) {
			target, err := c.Target(v)
			if err != nil {
				return nil, err
			}
			return target.(*il.FieldDef), nil
		}
		if v.DeclaringType != nil && c.foreign(v.DeclaringType.Assembly()) {
			ft, err := c.ImportType(v.FieldType)
			if err != nil {
				return nil, err
			}
			return &il.FieldReference{DeclaringType: il.Reference(v.DeclaringType), Name: v.Name, FieldType: ft}, nil
		}
		return v, nil
	case *il.FieldReference:
		if c.opts.Resolver != nil {
			if def, err := c.opts.Resolver.ResolveField(v); err == nil && c.inCloneSet(def) {
				return c.ImportField(def)
			}
		}
		decl, err := c.ImportType(v.DeclaringType)
		if err != nil {
			return nil, err
		}
		ft, err := c.ImportType(v.FieldType)
		if err != nil {
			return nil, err
		}
		if decl == v.DeclaringType && ft == v.FieldType {
			return v, nil
		}
		return &il.FieldReference{DeclaringType: decl, Name: v.Name, FieldType: ft}, nil
	}
	return nil, fmt.Errorf("field %T: %w", f, ErrNotClonable)
}

// ImportParameter maps p into the target context. Parameters outside the
// clone set follow their method: when the method maps to a definition, the
// parameter at the same position of that definition is returned.
func (c *Context) ImportParameter(p *il.ParamDef) (*il.ParamDef, error) {
	if p == nil {
		return nil, nil
	}
	if c.inCloneSet(p) {
		target, err := c.Target(p)
		if err != nil {
			return nil, err
		}
		return target.(*il.ParamDef), nil
	}
	if p.Method == nil {
		return p, nil
	}
	m, err := c.ImportMethod(p.Method)
	if err != nil {
		return nil, err
	}
	def, ok := m.(*il.MethodDef)
	if !ok || def == p.Method {
		return p, nil
	}
	if p.IsThis() {
		if this := def.ThisParameter(); this != nil {
			return this, nil
		}
		return nil, fmt.Errorf("receiver of %s maps to static %s: %w",
			il.MethodFullName(p.Method), il.MethodFullName(def), ErrNotInCloneSet)
	}
	if p.Index >= len(def.Parameters) {
		return nil, fmt.Errorf("parameter %s of %s has no counterpart in %s: %w",
			p.Name, il.MethodFullName(p.Method), il.MethodFullName(def), ErrNotInCloneSet)
	}
	return def.Parameters[p.Index], nil
}

// ImportVariable maps v into the target context.
func (c *Context) ImportVariable(v *il.Variable) (*il.Variable, error) {
	if v == nil || !c.inCloneSet(v) {
		return v, nil
	}
	target, err := c.Target(v)
	if err != nil {
		return nil, err
	}
	return target.(*il.Variable), nil
}

// ImportInstruction maps ins into the target context.
func (c *Context) ImportInstruction(ins *il.Instruction) (*il.Instruction, error) {
	if ins == nil || !c.inCloneSet(ins) {
		return ins, nil
	}
	target, err := c.Target(ins)
	if err != nil {
		return nil, err
	}
	return target.(*il.Instruction), nil
}

// foreign reports whether a definition in a lives outside the target assembly.
func (c *Context) foreign(a *il.Assembly) bool {
	return a != nil && c.module != nil && c.module.Assembly != nil && a != c.module.Assembly
}
