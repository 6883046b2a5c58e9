package verify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/il/iltest"
)

type sample struct {
	w        *iltest.World
	asm      *il.Assembly
	node     *il.TypeDef
	walk     *il.MethodDef
	identity *il.MethodDef
}

func newSample() *sample {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	node := w.Linked(asm)
	return &sample{
		w:        w,
		asm:      asm,
		node:     node,
		walk:     node.FindMethods("Walk")[0],
		identity: node.FindMethods("Identity")[0],
	}
}

func indexOf(body *il.MethodBody, op il.OpCode) int {
	for i, ins := range body.Instructions {
		if ins.OpCode == op {
			return i
		}
	}
	return -1
}

func TestAssembly_Clean(t *testing.T) {
	s := newSample()
	report, err := Assembly(context.Background(), s.asm, s.w.Universe)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Problems)
	assert.NoError(t, report.Err())
	assert.Equal(t, 3, report.Methods)
}

func TestAssembly_Problems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*sample)
		method  string
		message string
	}{
		{
			name: "branch outside the body",
			mutate: func(s *sample) {
				i := indexOf(s.walk.Body, il.BrfalseS)
				s.walk.Body.Instructions[i].Operand = il.BranchOperand{Target: il.NewInstruction(il.Ret, nil)}
			},
			method:  "Walk",
			message: "outside the body",
		},
		{
			name: "operand shape",
			mutate: func(s *sample) {
				s.walk.Body.Instructions[0].Operand = il.StringOperand("zero")
			},
			method:  "Walk",
			message: "does not accept operand il.StringOperand",
		},
		{
			name: "variable of another body",
			mutate: func(s *sample) {
				other := s.identity.Body.AddVariable(s.w.Int32())
				i := indexOf(s.walk.Body, il.Ldloc)
				s.walk.Body.Instructions[i].Operand = il.VarOperand{Var: other}
			},
			method:  "Walk",
			message: "not declared by this body",
		},
		{
			name: "parameter of another method",
			mutate: func(s *sample) {
				i := indexOf(s.walk.Body, il.LdargS)
				s.walk.Body.Instructions[i].Operand = il.ParamOperand{Param: s.identity.Parameters[0]}
			},
			method:  "Walk",
			message: "belongs to another method",
		},
		{
			name: "unresolved method",
			mutate: func(s *sample) {
				ctor := s.node.Constructors()[0]
				ctor.Body.Instructions[1].Operand = il.MethodOperand{Method: &il.MethodReference{
					DeclaringType: il.CoreType("Missing"),
					Name:          il.ConstructorName,
					ReturnType:    s.w.Void(),
					This:          true,
				}}
			},
			method:  ".ctor",
			message: "unresolved reference",
		},
		{
			name: "handler outside the body",
			mutate: func(s *sample) {
				s.walk.Body.ExceptionHandlers[0].TryStart = il.NewInstruction(il.Nop, nil)
			},
			method:  "Walk",
			message: "try start is outside the body",
		},
		{
			name: "catch without type",
			mutate: func(s *sample) {
				s.walk.Body.ExceptionHandlers[0].CatchType = nil
			},
			method:  "Walk",
			message: "catch without type",
		},
		{
			name: "empty body",
			mutate: func(s *sample) {
				s.identity.Body.Instructions = nil
			},
			method:  "Identity",
			message: "empty body",
		},
		{
			name: "receiver of another method",
			mutate: func(s *sample) {
				s.identity.Body.Instructions[0].OpCode = il.LdargS
				s.identity.Body.Instructions[0].Operand = il.ParamOperand{Param: s.walk.ThisParameter()}
			},
			method:  "Identity",
			message: "belongs to another method",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSample()
			tt.mutate(s)

			report, err := Assembly(context.Background(), s.asm, s.w.Universe)
			require.NoError(t, err)
			require.Len(t, report.Problems, 1, "%v", report.Problems)
			p := report.Problems[0]
			assert.Contains(t, p.Method, "::"+tt.method+"(")
			assert.Contains(t, p.Message, tt.message)

			err = report.Err()
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), p.String())
		})
	}
}

func TestAssembly_OrdersProblems(t *testing.T) {
	s := newSample()
	for i := 0; i < 20; i++ {
		m := s.node.AddMethod(il.NewMethod(fmt.Sprintf("M%02d", i), il.MethodStatic, s.w.Void()))
		b := m.NewBody()
		b.Emit(il.Ldstr, il.Int32Operand(1))
		b.Emit(il.Pop, nil)
		b.Emit(il.Br, il.BranchOperand{Target: il.NewInstruction(il.Ret, nil)})
	}

	report, err := Assembly(context.Background(), s.asm, s.w.Universe, WithConcurrency(4))
	require.NoError(t, err)
	require.Len(t, report.Problems, 40)
	for i := 0; i < 20; i++ {
		first, second := report.Problems[2*i], report.Problems[2*i+1]
		assert.Contains(t, first.Method, fmt.Sprintf("M%02d", i))
		assert.Equal(t, first.Method, second.Method)
		assert.Equal(t, 0, first.Instruction)
		assert.Equal(t, 2, second.Instruction)
	}
}

func TestAssembly_Canceled(t *testing.T) {
	s := newSample()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Assembly(ctx, s.asm, s.w.Universe)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMethod_NoBody(t *testing.T) {
	m := il.NewMethod("Abstract", il.MethodPublic|il.MethodAbstract, nil)
	assert.Empty(t, Method(m, iltest.NewWorld().Universe))
}
