package container

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/il/iltest"
)

func roundTrip(t *testing.T, asm *il.Assembly, opts ...Option) *il.Assembly {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, asm, opts...))
	out, err := Read(&buf)
	require.NoError(t, err)
	return out
}

func TestRoundTrip_Linked(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	w.Linked(asm)

	out := roundTrip(t, asm)
	assert.Equal(t, il.Disassemble(asm), il.Disassemble(out))

	node := out.FindType("Sample.Node")
	require.NotNil(t, node)
	assert.Same(t, out.MainModule(), node.Module)

	walk := node.FindMethods("Walk")[0]
	body := walk.Body
	assert.Same(t, walk, body.Method)
	require.Len(t, body.Variables, 2)
	assert.Same(t, node, body.Variables[1].VariableType)

	// operands point into the decoded assembly
	for _, ins := range body.Instructions {
		assert.Same(t, body, ins.Body)
		switch op := ins.Operand.(type) {
		case il.BranchOperand:
			assert.Same(t, body, op.Target.Body)
		case il.FieldOperand:
			assert.Same(t, node, op.Field.(*il.FieldDef).DeclaringType)
		case il.ParamOperand:
			assert.Same(t, walk.Parameters[0], op.Param)
		case il.VarOperand:
			assert.Same(t, body, op.Var.Body)
		}
	}

	require.Len(t, body.ExceptionHandlers, 1)
	h := body.ExceptionHandlers[0]
	assert.Same(t, body, h.Body)
	assert.Equal(t, il.Nop, h.TryStart.OpCode)
	assert.Equal(t, il.Pop, h.HandlerStart.OpCode)
	assert.Same(t, h.TryEnd, h.HandlerStart)
	assert.Equal(t, il.Ldloc0, h.HandlerEnd.OpCode)
	assert.Equal(t, "System.Exception", h.CatchType.FullName())

	identity := node.FindMethods("Identity")[0]
	tp := identity.GenericParameters[0]
	assert.Same(t, tp, identity.ReturnTypeRef())
	assert.Same(t, tp, identity.Parameters[0].ParameterType)
	assert.Same(t, identity, tp.DeclaringMethod())
}

func TestRoundTrip_Metadata(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Meta")
	asm.Version = "2.1.0.0"
	mod := asm.MainModule()
	mod.AddResource(&il.Resource{Name: "data.bin", Public: true, Data: []byte{1, 2, 3}})
	mod.AddExportedType(&il.ExportedType{Namespace: "Old", Name: "Moved", Scope: "Other"})

	box := w.Class(asm, "Meta", "Box`1")
	item := il.AddGenericParameter(box, "T")
	item.Flags = il.GenericReferenceTypeConstraint
	item.Constraints = []il.TypeRef{w.Object()}
	inner := box.AddNestedType(il.NewType("", "Entry", il.TypeNestedPrivate, w.Object()))
	limit := box.AddField(il.NewField("Limit", il.FieldPublic|il.FieldStatic|il.FieldLiteral, w.Core("Int16")))
	limit.Constant = int16(-7)
	box.AddField(il.NewField("entries", il.FieldPrivate, &il.ArrayType{Element: inner, Rank: 2}))

	get := box.AddMethod(il.NewMethod("get_Count", il.MethodPublic|il.MethodSpecialName, w.Int32()))
	gb := get.NewBody()
	gb.Emit(il.LdcI4, il.Int32Operand(1<<20))
	gb.Emit(il.Ret, nil)
	box.AddProperty(&il.PropertyDef{Name: "Count", PropertyType: w.Int32(), Getter: get})

	add := box.AddMethod(il.NewMethod("Add", il.MethodPublic|il.MethodHideBySig, w.Void()))
	add.AddParameter("value", item)
	ab := add.NewBody()
	corlibList := w.Corlib.FindType("System.Collections.Generic.List`1")
	list := &il.GenericInstanceType{Element: il.Reference(corlibList), Arguments: []il.TypeRef{item}}
	ab.Emit(il.Newobj, il.MethodOperand{Method: &il.MethodReference{
		DeclaringType: list, Name: il.ConstructorName, ReturnType: w.Void(), This: true,
	}})
	ab.Emit(il.Ldarg1, nil)
	ab.Emit(il.Callvirt, il.MethodOperand{Method: &il.MethodReference{
		DeclaringType: list,
		Name:          "Add",
		ReturnType:    w.Void(),
		Parameters:    []il.TypeRef{corlibList.GenericParameters[0]},
		This:          true,
	}})
	ab.Emit(il.LdcR8, il.Float64Operand(2.5))
	ab.Emit(il.Pop, nil)
	ab.Emit(il.Ldstr, il.StringOperand("hi"))
	sw := ab.Emit(il.Switch, il.SwitchOperand{})
	ret := ab.Emit(il.Ret, nil)
	sw.Operand = il.SwitchOperand{Targets: []*il.Instruction{ret, ret}}
	ab.ComputeOffsets()

	changed := box.AddMethod(il.NewMethod("OnChanged", il.MethodPublic|il.MethodSpecialName, w.Void()))
	box.AddEvent(&il.EventDef{Name: "Changed", EventType: w.Object(), AddMethod: changed})

	attrCtor := &il.MethodReference{
		DeclaringType: il.CoreType("Attribute"),
		Name:          il.ConstructorName,
		ReturnType:    w.Void(),
		Parameters:    []il.TypeRef{w.Core("Type"), &il.ArrayType{Element: w.Int32(), Rank: 1}},
		This:          true,
	}
	attr := il.NewCustomAttribute(attrCtor,
		il.AttributeArgument{Type: w.Core("Type"), Value: il.TypeRef(inner)},
		il.AttributeArgument{Type: &il.ArrayType{Element: w.Int32(), Rank: 1}, Value: []il.AttributeArgument{
			{Type: w.Int32(), Value: int32(1)},
			{Type: w.Int32(), Value: int32(2)},
		}},
	)
	attr.Properties = []il.NamedArgument{{Name: "Label", Argument: il.AttributeArgument{Type: w.Str(), Value: "box"}}}
	attr.Fields = []il.NamedArgument{{Name: "Weight", Argument: il.AttributeArgument{Type: w.Core("Double"), Value: 0.5}}}
	il.AddCustomAttribute(box, attr)
	il.AddCustomAttribute(add.ReturnType, il.NewCustomAttribute(il.ObjectConstructor()))

	decl := il.AddSecurityDeclaration(add, &il.SecurityDeclaration{Action: il.SecurityDemand})
	decl.AddAttribute(il.CoreType("Attribute"), il.NamedArgument{Name: "Unrestricted", Argument: il.AttributeArgument{Type: w.Core("Boolean"), Value: true}})

	iface := w.Interface(asm, "Meta", "ICountable")
	count := iface.AddMethod(il.NewMethod("Count", il.MethodPublic|il.MethodVirtual|il.MethodAbstract, w.Int32()))
	box.AddInterface(iface)
	get.Overrides = []il.MethodRef{count}

	out := roundTrip(t, asm)
	assert.Equal(t, il.Disassemble(asm), il.Disassemble(out))
	assert.Equal(t, "2.1.0.0", out.Version)

	omod := out.MainModule()
	require.Len(t, omod.Resources, 1)
	assert.Equal(t, []byte{1, 2, 3}, omod.Resources[0].Data)
	assert.True(t, omod.Resources[0].Public)
	require.Len(t, omod.ExportedTypes, 1)
	assert.Equal(t, "Other", omod.ExportedTypes[0].Scope)

	obox := out.FindType("Meta.Box`1")
	require.NotNil(t, obox)
	oinner := out.FindType("Meta.Box`1/Entry")
	require.NotNil(t, oinner)
	assert.Same(t, obox, oinner.DeclaringType)

	gp := obox.GenericParameters[0]
	assert.Equal(t, il.GenericReferenceTypeConstraint, gp.Flags)
	assert.Equal(t, "System.Object", gp.Constraints[0].FullName())

	assert.Equal(t, int16(-7), obox.FindField("Limit").Constant)
	entries := obox.FindField("entries").FieldType.(*il.ArrayType)
	assert.Equal(t, 2, entries.Rank)
	assert.Same(t, oinner, entries.Element)

	require.Len(t, obox.Properties, 1)
	assert.Same(t, obox.FindMethods("get_Count")[0], obox.Properties[0].Getter)
	assert.Nil(t, obox.Properties[0].Setter)
	require.Len(t, obox.Events, 1)
	assert.Same(t, obox.FindMethods("OnChanged")[0], obox.Events[0].AddMethod)

	oget := obox.FindMethods("get_Count")[0]
	require.Len(t, oget.Overrides, 1)
	assert.Same(t, out.FindType("Meta.ICountable").Methods[0], oget.Overrides[0])

	oadd := obox.FindMethods("Add")[0]
	assert.Same(t, gp, oadd.Parameters[0].ParameterType)
	ins := oadd.Body.Instructions
	assert.Equal(t, il.Float64Operand(2.5), ins[3].Operand)
	assert.Equal(t, il.StringOperand("hi"), ins[5].Operand)
	targets := ins[6].Operand.(il.SwitchOperand).Targets
	require.Len(t, targets, 2)
	assert.Same(t, ins[7], targets[0])
	assert.Same(t, ins[7], targets[1])

	// a foreign generic parameter keeps its position, so the reference
	// still resolves against the core library
	u := il.NewUniverse(w.Corlib, out)
	resolved, err := u.ResolveMethod(ins[2].Operand.(il.MethodOperand).Method)
	require.NoError(t, err)
	assert.Same(t, corlibList.FindMethods("Add")[0], resolved)

	attrs := il.Attributes(obox)
	require.Len(t, attrs, 1)
	oattr := attrs[0]
	assert.Same(t, obox, oattr.Owner)
	assert.Same(t, oinner, oattr.Arguments[0].Value)
	arr := oattr.Arguments[1].Value.([]il.AttributeArgument)
	require.Len(t, arr, 2)
	assert.Equal(t, int32(2), arr[1].Value)
	assert.Equal(t, "box", oattr.Properties[0].Argument.Value)
	assert.Equal(t, 0.5, oattr.Fields[0].Argument.Value)
	assert.Len(t, il.Attributes(oadd.ReturnType), 1)

	decls := il.SecurityDeclarations(oadd)
	require.Len(t, decls, 1)
	assert.Equal(t, il.SecurityDemand, decls[0].Action)
	require.Len(t, decls[0].Attributes, 1)
	assert.Equal(t, true, decls[0].Attributes[0].Properties[0].Argument.Value)
}

func TestDebugSymbols(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	node := w.Linked(asm)
	walk := node.FindMethods("Walk")[0]
	walk.Body.Instructions[2].SequencePoint = &il.SequencePoint{
		Document: "node.cs", StartLine: 12, StartColumn: 5, EndLine: 12, EndColumn: 30,
	}

	t.Run("included", func(t *testing.T) {
		out := roundTrip(t, asm, WithDebugSymbols(true))
		ins := out.FindType("Sample.Node").FindMethods("Walk")[0].Body.Instructions
		require.NotNil(t, ins[2].SequencePoint)
		assert.Equal(t, *walk.Body.Instructions[2].SequencePoint, *ins[2].SequencePoint)
		assert.Nil(t, ins[1].SequencePoint)
	})

	t.Run("omitted", func(t *testing.T) {
		out := roundTrip(t, asm)
		for _, ins := range out.FindType("Sample.Node").FindMethods("Walk")[0].Body.Instructions {
			assert.Nil(t, ins.SequencePoint)
		}
	})
}

func TestRead_Errors(t *testing.T) {
	encode := func(file fileDTO) []byte {
		data, err := msgpack.Marshal(&file)
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty input", data: nil, want: ErrInvalidContainer},
		{name: "bad magic", data: encode(fileDTO{Magic: "XYZ", Version: SchemaVersion}), want: ErrInvalidContainer},
		{name: "other version", data: encode(fileDTO{Magic: Magic, Version: SchemaVersion + 1}), want: ErrVersionMismatch},
		{
			name: "type in unknown module",
			data: encode(fileDTO{Magic: Magic, Version: SchemaVersion, Assembly: assemblyDTO{
				Name:  "Broken",
				Types: []typeDTO{{Module: 3, Outer: -1, Name: "T"}},
			}}),
			want: ErrInvalidContainer,
		},
		{
			name: "invalid opcode",
			data: encode(fileDTO{Magic: Magic, Version: SchemaVersion, Assembly: assemblyDTO{
				Name:    "Broken",
				Modules: []moduleDTO{{Name: "Broken.dll"}},
				Types: []typeDTO{{Outer: -1, Name: "T", Methods: []methodDTO{{
					Name: "M",
					Body: &bodyDTO{Instructions: []instructionDTO{{OpCode: 0xffff}}},
				}}}},
			}}),
			want: ErrInvalidContainer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWrite_Errors(t *testing.T) {
	t.Run("unsupported constant", func(t *testing.T) {
		w := iltest.NewWorld()
		asm := w.Assembly("Bad")
		c := w.Class(asm, "Bad", "C")
		c.AddField(il.NewField("x", il.FieldStatic, w.Object())).Constant = struct{}{}

		err := Write(&bytes.Buffer{}, asm)
		assert.ErrorIs(t, err, ErrUnsupportedValue)
		assert.Contains(t, err.Error(), "field x")
	})

	t.Run("branch out of body", func(t *testing.T) {
		w := iltest.NewWorld()
		asm := w.Assembly("Bad")
		c := w.Class(asm, "Bad", "C")
		m := c.AddMethod(il.NewMethod("M", il.MethodStatic, w.Void()))
		m.NewBody().Emit(il.Br, il.BranchOperand{Target: il.NewInstruction(il.Ret, nil)})

		assert.ErrorIs(t, Write(&bytes.Buffer{}, asm), ErrDangling)
	})
}

func TestSaveLoad(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	w.Linked(asm)

	path := filepath.Join(t.TempDir(), "out", "Sample"+Extension)
	require.NoError(t, Save(path, asm))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, il.Disassemble(asm), il.Disassemble(loaded))

	_, err = Load(filepath.Join(t.TempDir(), "missing"+Extension))
	assert.Error(t, err)
}
