package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-weaver/internal/config"
	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/pkg/container"
	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/il/iltest"
	"github.com/l3aro/go-weaver/pkg/verify"
	"github.com/l3aro/go-weaver/pkg/weave"
)

// project lays out a reference directory and a bin directory holding the
// input container.
type project struct {
	refs  string
	bin   string
	input string
}

func newProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	p := &project{refs: filepath.Join(root, "refs"), bin: filepath.Join(root, "bin")}
	p.input = filepath.Join(p.bin, "App.wvc")
	require.NoError(t, os.MkdirAll(p.refs, 0755))
	return p
}

func (p *project) session(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Input = p.input
	cfg.ReferenceDirs = []string{p.refs}
	cfg.WeaverConfig = ""
	var out bytes.Buffer
	s := &session{
		cfg:       cfg,
		log:       log.Discard,
		out:       &out,
		statePath: filepath.Join(filepath.Dir(p.bin), ".weaver", "state.json"),
	}
	return s, &out
}

func (p *project) saveSample(t *testing.T) *il.Assembly {
	t.Helper()
	w := iltest.NewWorld()
	asm := w.Assembly("App")
	w.Linked(asm)
	require.NoError(t, container.Save(p.input, asm))
	return asm
}

func TestRunWeave_NothingToWeave(t *testing.T) {
	p := newProject(t)
	asm := p.saveSample(t)
	s, _ := p.session(t)
	s.cfg.Output = filepath.Join(p.bin, "out", "App.wvc")

	require.NoError(t, runWeave(context.Background(), s, weaveOptions{verify: true}))

	woven, err := container.Load(s.cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, il.Disassemble(asm), il.Disassemble(woven))
}

func TestRunWeave_Mixin(t *testing.T) {
	p := newProject(t)
	w := iltest.NewWorld()
	require.NoError(t, container.Save(filepath.Join(p.refs, "Weaver.Attributes.wvc"), weave.AttributeAssembly()))

	mixins := w.Assembly("Mixins")
	iface := w.Interface(mixins, "Mixins", "IEmpty")
	counter := w.Class(mixins, "Mixins", "Counter")
	counter.AddInterface(iface)
	counter.AddField(il.NewField("count", il.FieldPrivate, w.Int32()))
	w.DefaultConstructor(counter)
	require.NoError(t, container.Save(filepath.Join(p.refs, "Mixins.wvc"), mixins))

	app := w.Assembly("App")
	widget := w.Class(app, "App", "Widget")
	w.DefaultConstructor(widget)
	il.AddCustomAttribute(widget, weave.NewInterfaceMixin(il.Reference(iface)))
	require.NoError(t, container.Save(p.input, app))

	weaverPath := filepath.Join(p.bin, "weaver.xml")
	f, err := os.Create(weaverPath)
	require.NoError(t, err)
	require.NoError(t, config.WriteWeaverElement(f, &config.WeaverConfig{Mixins: []config.InterfaceMixin{
		{Interface: "Mixins.IEmpty, Mixins", Mixin: "Mixins.Counter, Mixins"},
	}}))
	require.NoError(t, f.Close())

	s, _ := p.session(t)
	s.cfg.WeaverConfig = weaverPath
	require.NoError(t, runWeave(context.Background(), s, weaveOptions{verify: true}))

	woven, err := container.Load(p.input)
	require.NoError(t, err)
	got := woven.FindType("App.Widget")
	require.NotNil(t, got)
	require.Len(t, got.Interfaces, 1)
	assert.Equal(t, "Mixins.IEmpty", got.Interfaces[0].FullName())
	assert.NotNil(t, got.FindField("count"))
	assert.Empty(t, il.Attributes(got))
}

func TestRunWeave_UpToDate(t *testing.T) {
	p := newProject(t)
	p.saveSample(t)
	s, _ := p.session(t)
	var logs bytes.Buffer
	s.log = log.New(log.LoggerConfig{Level: log.InfoLevel, Stdout: &logs, Stderr: &logs})

	require.NoError(t, runWeave(context.Background(), s, weaveOptions{verify: true}))
	assert.Contains(t, logs.String(), "written")
	assert.NotContains(t, logs.String(), "up to date")

	// in place: the woven input must not be woven again
	logs.Reset()
	require.NoError(t, runWeave(context.Background(), s, weaveOptions{verify: true}))
	assert.Contains(t, logs.String(), "up to date")
	assert.NotContains(t, logs.String(), "written")

	logs.Reset()
	require.NoError(t, runWeave(context.Background(), s, weaveOptions{verify: true, force: true}))
	assert.Contains(t, logs.String(), "written")

	// a new reference invalidates the run
	w := iltest.NewWorld()
	require.NoError(t, container.Save(filepath.Join(p.refs, "Lib.wvc"), w.Assembly("Lib")))
	logs.Reset()
	require.NoError(t, runWeave(context.Background(), s, weaveOptions{verify: true}))
	assert.Contains(t, logs.String(), "written")
}

func TestRunWeave_Errors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		p := newProject(t)
		s, _ := p.session(t)
		assert.Error(t, runWeave(context.Background(), s, weaveOptions{verify: true}))
	})

	t.Run("missing explicit weaver config", func(t *testing.T) {
		p := newProject(t)
		p.saveSample(t)
		s, _ := p.session(t)
		s.cfg.WeaverConfig = filepath.Join(p.bin, "custom.xml")
		assert.ErrorIs(t, runWeave(context.Background(), s, weaveOptions{verify: true}), os.ErrNotExist)
	})

	t.Run("invalid weaver config", func(t *testing.T) {
		p := newProject(t)
		p.saveSample(t)
		path := filepath.Join(p.bin, "weaver.xml")
		require.NoError(t, os.WriteFile(path, []byte("<Weaver/>"), 0644))
		s, _ := p.session(t)
		s.cfg.WeaverConfig = path
		assert.ErrorIs(t, runWeave(context.Background(), s, weaveOptions{verify: true}), config.ErrInvalidWeaverConfig)
	})
}

func TestLoadWeaverConfig_DefaultMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	s := &session{cfg: config.DefaultConfig(), log: log.Discard}

	cfg, err := loadWeaverConfig(s)
	require.NoError(t, err)
	assert.Empty(t, cfg.Mixins)
	assert.Empty(t, cfg.Advice)
}

func TestRunVerify(t *testing.T) {
	p := newProject(t)
	p.saveSample(t)

	t.Run("clean", func(t *testing.T) {
		s, out := p.session(t)
		require.NoError(t, runVerify(context.Background(), s, p.input, false, 2))
		assert.Contains(t, out.String(), "App: 3 methods verified")
	})

	t.Run("problems as json", func(t *testing.T) {
		w := iltest.NewWorld()
		asm := w.Assembly("Broken")
		node := w.Linked(asm)
		ctor := node.Constructors()[0]
		ctor.Body.Instructions[1].Operand = il.MethodOperand{Method: &il.MethodReference{
			DeclaringType: il.CoreType("Missing"),
			Name:          il.ConstructorName,
			ReturnType:    w.Void(),
			This:          true,
		}}
		path := filepath.Join(p.bin, "Broken.wvc")
		require.NoError(t, container.Save(path, asm))

		s, out := p.session(t)
		err := runVerify(context.Background(), s, path, true, 0)
		assert.ErrorIs(t, err, verify.ErrInvalid)

		var got VerifyOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, "Broken", got.Assembly)
		require.Len(t, got.Problems, 1)
		assert.Equal(t, 1, got.Problems[0].Instruction)
		assert.Contains(t, got.Problems[0].Message, "unresolved reference")
	})
}

func TestRunDisasm(t *testing.T) {
	p := newProject(t)
	asm := p.saveSample(t)

	s, out := p.session(t)
	require.NoError(t, runDisasm(s, p.input, ""))
	assert.Equal(t, il.Disassemble(asm), out.String())

	s, out = p.session(t)
	require.NoError(t, runDisasm(s, p.input, "Sample.Node::Walk"))
	assert.Equal(t, il.DisassembleMethod(asm.FindType("Sample.Node").FindMethods("Walk")[0]), out.String())

	s, _ = p.session(t)
	assert.Error(t, runDisasm(s, p.input, "Sample.Node"))
	assert.Error(t, runDisasm(s, p.input, "Sample.Missing::Walk"))
	assert.Error(t, runDisasm(s, p.input, "Sample.Node::Missing"))
}

func TestRunGraph(t *testing.T) {
	p := newProject(t)
	p.saveSample(t)

	s, out := p.session(t)
	require.NoError(t, runGraph(context.Background(), s, p.input, graphOptions{order: true, edges: true}))

	var got GraphOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "App", got.Assembly)
	assert.Equal(t, len(got.Vertices), got.Stats.Vertices)
	assert.Positive(t, got.Stats.External, "corlib elements are external")
	assert.Len(t, got.Edges, got.Stats.Parent+got.Stats.Sibling+got.Stats.Dependencies)
	assert.NotEmpty(t, got.Order)

	var node *GraphVertex
	for i, v := range got.Vertices {
		if v.Element == "type Sample.Node" {
			node = &got.Vertices[i]
		}
	}
	require.NotNil(t, node)
	assert.Equal(t, 1, node.Depth, "the module is its parent")
	assert.False(t, node.External)

	s, _ = p.session(t)
	assert.Error(t, runGraph(context.Background(), s, p.input, graphOptions{types: []string{"Sample.Missing"}}))
}

func TestRunInit(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, config.ProjectConfigFile)
	cfg := config.DefaultConfig()
	cfg.Input = "bin/App.wvc"

	var out bytes.Buffer
	require.NoError(t, runInit(&out, cfg, path, false))
	assert.Contains(t, out.String(), "Configuration saved")
	assert.Contains(t, out.String(), "Weaver config written")

	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bin/App.wvc", loaded.Input)

	weaverCfg, err := config.LoadWeaverConfig(filepath.Join(root, "weaver.xml"))
	require.NoError(t, err)
	assert.Empty(t, weaverCfg.Mixins)

	err = runInit(&out, cfg, path, false)
	assert.ErrorContains(t, err, "already exists")

	out.Reset()
	require.NoError(t, runInit(&out, cfg, path, true))
	assert.NotContains(t, out.String(), "Weaver config written", "an existing weaver config is kept")
}
