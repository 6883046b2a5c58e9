// Package container persists assemblies as msgpack documents.
//
// A container holds one assembly with all of its modules, types, members
// and method bodies. Debug symbols (instruction sequence points) are
// written only on request and read back when present.
package container

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-weaver/pkg/il"
)

// Extension is the file extension of assembly containers.
const Extension = ".wvc"

var (
	// ErrInvalidContainer is returned for input that is not a container.
	ErrInvalidContainer = errors.New("not an assembly container")

	// ErrVersionMismatch is returned for containers written with another
	// schema version.
	ErrVersionMismatch = errors.New("container schema version mismatch")

	// ErrUnsupportedValue is returned for constants and attribute values
	// that have no persisted form.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrDangling is returned when an element refers to a definition or
	// instruction that is not part of the assembly being written.
	ErrDangling = errors.New("dangling reference")
)

// Options configure Write.
type Options struct {
	DebugSymbols bool
}

// Option is a functional option for Write.
type Option func(*Options)

// WithDebugSymbols includes the sequence points of every method body.
func WithDebugSymbols(enabled bool) Option {
	return func(o *Options) {
		o.DebugSymbols = enabled
	}
}

// Write encodes asm to w.
func Write(w io.Writer, asm *il.Assembly, opts ...Option) error {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	file, err := newEncoder(asm, o).encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", asm.Name, err)
	}
	if err := msgpack.NewEncoder(w).Encode(file); err != nil {
		return fmt.Errorf("failed to write container: %w", err)
	}
	return nil
}

// Read decodes an assembly from r. References to other assemblies are left
// unresolved.
func Read(r io.Reader) (*il.Assembly, error) {
	var file fileDTO
	if err := msgpack.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidContainer, err)
	}
	if file.Magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidContainer, file.Magic)
	}
	if file.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, file.Version, SchemaVersion)
	}
	asm, err := newDecoder(&file).decode()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", file.Assembly.Name, err)
	}
	return asm, nil
}

// Save writes asm to path, creating parent directories as needed.
func Save(path string, asm *il.Assembly, opts ...Option) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, asm, opts...); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write container: %w", err)
	}
	return f.Close()
}

// Load reads the container at path.
func Load(path string) (*il.Assembly, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}
	defer f.Close()
	asm, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return asm, nil
}
