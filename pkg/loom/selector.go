package loom

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-weaver/pkg/il"
)

// Selector picks the methods an advice applies to.
type Selector func(*il.MethodDef) bool

// MethodNamed selects the methods called name declared by the type with the
// given full name.
func MethodNamed(typeName, name string) Selector {
	return func(m *il.MethodDef) bool {
		return m.Name == name && m.DeclaringType != nil && m.DeclaringType.FullName() == typeName
	}
}

// ParseSelector parses "Namespace.Type::Method" into a Selector.
func ParseSelector(s string) (Selector, error) {
	typeName, method, ok := strings.Cut(s, "::")
	typeName, method = strings.TrimSpace(typeName), strings.TrimSpace(method)
	if !ok || typeName == "" || method == "" {
		return nil, fmt.Errorf("invalid method selector %q: want Type::Method", s)
	}
	return MethodNamed(typeName, method), nil
}

// Any selects a method accepted by any of selectors.
func Any(selectors ...Selector) Selector {
	return func(m *il.MethodDef) bool {
		for _, s := range selectors {
			if s(m) {
				return true
			}
		}
		return false
	}
}
