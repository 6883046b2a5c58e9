// Package verify checks the structural consistency of method bodies after
// rewriting.
//
// Only structure is checked: every instruction, branch target, exception
// region, variable and parameter must belong to the body being checked,
// operands must have the shape their opcode expects, and every referenced
// type, field and method must resolve. Stack depth and type flow are not
// analyzed.
package verify

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/pkg/il"
)

// ErrInvalid is returned by Report.Err when problems were found.
var ErrInvalid = errors.New("assembly failed verification")

// Problem is one structural defect.
type Problem struct {
	Method string
	// Instruction is the index of the offending instruction, or -1 when
	// the problem concerns the body as a whole.
	Instruction int
	Message     string

	sp *il.SequencePoint
}

func (p Problem) String() string {
	if p.Instruction < 0 {
		return fmt.Sprintf("%s: %s", p.Method, p.Message)
	}
	return fmt.Sprintf("%s @%d: %s", p.Method, p.Instruction, p.Message)
}

// Report collects the problems of one run, ordered by method and
// instruction.
type Report struct {
	Methods  int
	Problems []Problem
}

// OK reports whether no problems were found.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Err returns nil for a clean report and an error wrapping ErrInvalid
// otherwise.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		lines[i] = p.String()
	}
	return fmt.Errorf("%w: %d problem(s)\n%s", ErrInvalid, len(r.Problems), strings.Join(lines, "\n"))
}

// Options configure a verification run.
type Options struct {
	Concurrency int
	Logger      log.Logger
}

// Option is a functional option for Assembly.
type Option func(*Options)

// WithConcurrency bounds the number of methods checked at once.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithLogger reports every problem as a warning at its sequence point.
func WithLogger(l log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Assembly checks every method body of asm. The resolver must tolerate
// concurrent lookups. The returned error is non-nil only when ctx ends
// before all methods are checked.
func Assembly(ctx context.Context, asm *il.Assembly, r il.Resolver, opts ...Option) (*Report, error) {
	o := Options{Concurrency: runtime.GOMAXPROCS(0), Logger: log.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	var methods []*il.MethodDef
	for _, t := range asm.AllTypes() {
		methods = append(methods, t.Methods...)
	}

	var (
		mu       sync.Mutex
		problems []Problem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)
	for _, m := range methods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found := Method(m, r)
			if len(found) > 0 {
				mu.Lock()
				problems = append(problems, found...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verify %s: %w", asm.Name, err)
	}

	// methods finish in any order
	order := make(map[string]int, len(methods))
	for i, m := range methods {
		order[il.MethodFullName(m)] = i
	}
	sort.SliceStable(problems, func(i, j int) bool {
		a, b := problems[i], problems[j]
		if order[a.Method] != order[b.Method] {
			return order[a.Method] < order[b.Method]
		}
		return a.Instruction < b.Instruction
	})

	for _, p := range problems {
		o.Logger.WarnAt(p.sp, p.Message, "method", p.Method, "instruction", p.Instruction)
	}
	o.Logger.Debug("verified", "assembly", asm.Name, "methods", len(methods), "problems", len(problems))
	return &Report{Methods: len(methods), Problems: problems}, nil
}

// Method checks the body of m, if any.
func Method(m *il.MethodDef, r il.Resolver) []Problem {
	if m.Body == nil {
		return nil
	}
	c := &checker{
		m:        m,
		b:        m.Body,
		r:        r,
		name:     il.MethodFullName(m),
		position: make(map[*il.Instruction]int, len(m.Body.Instructions)),
	}
	c.run()
	return c.problems
}

type checker struct {
	m        *il.MethodDef
	b        *il.MethodBody
	r        il.Resolver
	name     string
	position map[*il.Instruction]int
	problems []Problem
}

func (c *checker) report(at int, sp *il.SequencePoint, format string, args ...any) {
	c.problems = append(c.problems, Problem{
		Method:      c.name,
		Instruction: at,
		Message:     fmt.Sprintf(format, args...),
		sp:          sp,
	})
}

func (c *checker) run() {
	if c.b.Method != c.m {
		c.report(-1, nil, "body is attached to another method")
	}
	if len(c.b.Instructions) == 0 {
		c.report(-1, nil, "empty body")
		return
	}
	for i, ins := range c.b.Instructions {
		if _, dup := c.position[ins]; dup {
			c.report(i, ins.SequencePoint, "instruction appears twice")
			continue
		}
		c.position[ins] = i
	}
	for i, v := range c.b.Variables {
		if v.Body != c.b || v.Index != i {
			c.report(-1, nil, "variable %d is not slot %d of this body", v.Index, i)
		}
	}
	for i, ins := range c.b.Instructions {
		c.instruction(i, ins)
	}
	for i, h := range c.b.ExceptionHandlers {
		c.handler(i, h)
	}
}

func (c *checker) instruction(i int, ins *il.Instruction) {
	sp := ins.SequencePoint
	if ins.Body != c.b {
		c.report(i, sp, "instruction belongs to another body")
	}
	if !ins.OpCode.IsValid() {
		c.report(i, sp, "unknown opcode %s", ins.OpCode)
		return
	}
	if !ins.OpCode.Accepts(ins.Operand) {
		c.report(i, sp, "%s does not accept operand %T", ins.OpCode, ins.Operand)
		return
	}

	switch op := ins.Operand.(type) {
	case il.BranchOperand:
		c.target(i, sp, op.Target)
	case il.SwitchOperand:
		for _, t := range op.Targets {
			c.target(i, sp, t)
		}
	case il.VarOperand:
		v := op.Var
		if v.Body != c.b || v.Index < 0 || v.Index >= len(c.b.Variables) || c.b.Variables[v.Index] != v {
			c.report(i, sp, "variable V_%d is not declared by this body", v.Index)
		}
	case il.ParamOperand:
		c.param(i, sp, op.Param)
	case il.TypeOperand:
		c.typeRef(i, sp, op.Type)
	case il.FieldOperand:
		if _, err := c.r.ResolveField(op.Field); err != nil {
			c.report(i, sp, "%v", err)
		}
	case il.MethodOperand:
		c.method(i, sp, op.Method)
	}
}

func (c *checker) target(i int, sp *il.SequencePoint, t *il.Instruction) {
	if t == nil {
		c.report(i, sp, "missing branch target")
		return
	}
	if _, ok := c.position[t]; !ok {
		c.report(i, sp, "branch target %s is outside the body", t)
	}
}

func (c *checker) param(i int, sp *il.SequencePoint, p *il.ParamDef) {
	if p.Method != c.m {
		c.report(i, sp, "parameter %s belongs to another method", p.Name)
		return
	}
	if p.IsThis() {
		if c.m.IsStatic() || p != c.m.ThisParameter() {
			c.report(i, sp, "receiver parameter is not this method's")
		}
		return
	}
	if p.Index >= len(c.m.Parameters) || c.m.Parameters[p.Index] != p {
		c.report(i, sp, "parameter %s is not declared by this method", p.Name)
	}
}

func (c *checker) typeRef(i int, sp *il.SequencePoint, t il.TypeRef) {
	switch v := il.ElementTypeOf(t).(type) {
	case *il.GenericParam:
		// detached owners come from signatures of other assemblies
		if owner := v.DeclaringMethod(); owner != nil && owner != c.m && owner.DeclaringType != nil {
			c.report(i, sp, "generic parameter %s belongs to %s", v.Name, il.MethodFullName(owner))
		}
	case *il.GenericInstanceType:
		c.typeRef(i, sp, v.Element)
		for _, a := range v.Arguments {
			c.typeRef(i, sp, a)
		}
	default:
		if _, err := c.r.ResolveType(v); err != nil {
			c.report(i, sp, "%v", err)
		}
	}
}

func (c *checker) method(i int, sp *il.SequencePoint, m il.MethodRef) {
	if gm, ok := m.(*il.GenericInstanceMethod); ok {
		for _, a := range gm.Arguments {
			c.typeRef(i, sp, a)
		}
		m = gm.Method
	}
	if ref, ok := m.(*il.MethodReference); ok {
		// runtime-provided array accessors have no definition
		if _, isArray := ref.DeclaringType.(*il.ArrayType); isArray {
			return
		}
	}
	if _, err := c.r.ResolveMethod(m); err != nil {
		c.report(i, sp, "%v", err)
	}
}

func (c *checker) handler(n int, h *il.ExceptionHandler) {
	if h.Body != c.b {
		c.report(-1, nil, "exception handler %d belongs to another body", n)
	}
	start := func(what string, ins *il.Instruction) int {
		if ins == nil {
			c.report(-1, nil, "exception handler %d: missing %s", n, what)
			return -1
		}
		pos, ok := c.position[ins]
		if !ok {
			c.report(-1, nil, "exception handler %d: %s is outside the body", n, what)
			return -1
		}
		return pos
	}
	end := func(what string, ins *il.Instruction) int {
		if ins == nil {
			return len(c.b.Instructions)
		}
		return start(what, ins)
	}

	tryStart := start("try start", h.TryStart)
	tryEnd := end("try end", h.TryEnd)
	handlerStart := start("handler start", h.HandlerStart)
	handlerEnd := end("handler end", h.HandlerEnd)
	if tryStart >= 0 && tryEnd >= 0 && tryStart >= tryEnd {
		c.report(-1, nil, "exception handler %d: empty try region", n)
	}
	if handlerStart >= 0 && handlerEnd >= 0 && handlerStart >= handlerEnd {
		c.report(-1, nil, "exception handler %d: empty handler region", n)
	}
	if h.HandlerType == il.HandlerFilter {
		start("filter start", h.FilterStart)
	}
	if h.HandlerType == il.HandlerCatch && h.CatchType == nil {
		c.report(-1, nil, "exception handler %d: catch without type", n)
	}
}
