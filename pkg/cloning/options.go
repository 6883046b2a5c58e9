package cloning

import (
	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/pkg/il"
)

// TypeSubstitution replaces type references accepted by Match with the
// result of Transform.
type TypeSubstitution struct {
	Match     func(il.TypeRef) bool
	Transform func(il.TypeRef) (il.TypeRef, error)
}

// MethodSubstitution replaces method references accepted by Match with the
// result of Transform.
type MethodSubstitution struct {
	Match     func(il.MethodRef) bool
	Transform func(il.MethodRef) (il.MethodRef, error)
}

// Options configures a Context.
type Options struct {
	// Resolver lets references that point back into the clone set be
	// mapped to their targets. May be nil.
	Resolver il.Resolver

	// TypeSubstitutions are consulted in order before any other type import.
	TypeSubstitutions []TypeSubstitution

	// MethodSubstitutions are consulted in order after Redirects.
	MethodSubstitutions []MethodSubstitution

	// Redirects maps source methods to explicit replacements.
	Redirects map[il.MethodRef]il.MethodRef

	// Logger receives cloning diagnostics. Default: log.Discard
	Logger log.Logger
}

// Option is a functional option for configuring a Context.
type Option func(*Options)

// WithResolver sets the resolver used to map references onto the clone set.
func WithResolver(r il.Resolver) Option {
	return func(o *Options) {
		o.Resolver = r
	}
}

// WithTypeSubstitution adds a type substitution.
func WithTypeSubstitution(match func(il.TypeRef) bool, transform func(il.TypeRef) (il.TypeRef, error)) Option {
	return func(o *Options) {
		o.TypeSubstitutions = append(o.TypeSubstitutions, TypeSubstitution{Match: match, Transform: transform})
	}
}

// WithMethodSubstitution adds a method substitution.
func WithMethodSubstitution(match func(il.MethodRef) bool, transform func(il.MethodRef) (il.MethodRef, error)) Option {
	return func(o *Options) {
		o.MethodSubstitutions = append(o.MethodSubstitutions, MethodSubstitution{Match: match, Transform: transform})
	}
}

// WithMethodRedirect makes every reference to source point at target.
func WithMethodRedirect(source, target il.MethodRef) Option {
	return func(o *Options) {
		if o.Redirects == nil {
			o.Redirects = make(map[il.MethodRef]il.MethodRef)
		}
		o.Redirects[source] = target
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}
