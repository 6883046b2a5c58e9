package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/pkg/container"
	"github.com/l3aro/go-weaver/pkg/il"
)

// ReferenceOptions configure LoadReferences.
type ReferenceOptions struct {
	Scan        Options
	Exclude     []string
	Concurrency int
	Logger      log.Logger
}

// ReferenceOption is a functional option for LoadReferences.
type ReferenceOption func(*ReferenceOptions)

// WithExclude skips the containers at the given paths, typically the input
// and output of the run.
func WithExclude(paths ...string) ReferenceOption {
	return func(o *ReferenceOptions) {
		o.Exclude = append(o.Exclude, paths...)
	}
}

// WithScanOptions replaces DefaultOptions. Kinds is forced to containers.
func WithScanOptions(opts Options) ReferenceOption {
	return func(o *ReferenceOptions) {
		o.Scan = opts
	}
}

// WithReferenceConcurrency bounds the number of containers decoded at once.
func WithReferenceConcurrency(n int) ReferenceOption {
	return func(o *ReferenceOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithReferenceLogger sets the logger reporting loaded and shadowed
// assemblies.
func WithReferenceLogger(l log.Logger) ReferenceOption {
	return func(o *ReferenceOptions) {
		o.Logger = l
	}
}

func referenceOptions(opts []ReferenceOption) ReferenceOptions {
	o := ReferenceOptions{
		Scan:        DefaultOptions(),
		Concurrency: runtime.GOMAXPROCS(0),
		Logger:      log.Discard,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.Scan.Kinds = []Kind{KindContainer}
	return o
}

// FindReferences returns the containers under dirs in directory order,
// without the excluded paths and without duplicates.
func FindReferences(dirs []string, opts ...ReferenceOption) ([]FileInfo, error) {
	return findReferences(dirs, referenceOptions(opts))
}

func findReferences(dirs []string, o ReferenceOptions) ([]FileInfo, error) {
	skip := make(map[string]bool, len(o.Exclude))
	for _, p := range o.Exclude {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}

	var files []FileInfo
	seen := make(map[string]bool)
	for _, dir := range dirs {
		found, err := ScanWithOptions(dir, o.Scan)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if skip[f.FullPath] || seen[f.FullPath] {
				continue
			}
			seen[f.FullPath] = true
			files = append(files, f)
		}
	}
	return files, nil
}

// LoadReferences builds a Universe holding the core library and every
// assembly container found under dirs. When two containers hold assemblies
// with the same name, the first in directory order wins and the other is
// reported as shadowed.
func LoadReferences(ctx context.Context, dirs []string, opts ...ReferenceOption) (*il.Universe, error) {
	o := referenceOptions(opts)
	files, err := findReferences(dirs, o)
	if err != nil {
		return nil, err
	}

	loaded := make([]*il.Assembly, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			asm, err := container.Load(f.FullPath)
			if err != nil {
				return fmt.Errorf("reference %s: %w", f.FullPath, err)
			}
			loaded[i] = asm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	u := il.NewUniverse(il.CoreLibrary())
	origin := make(map[string]string, len(loaded))
	for i, asm := range loaded {
		if _, ok := u.Assembly(asm.Name); ok {
			o.Logger.Warn("reference shadowed", "assembly", asm.Name, "path", files[i].FullPath, "by", origin[asm.Name])
			continue
		}
		u.Add(asm)
		origin[asm.Name] = files[i].FullPath
		o.Logger.Debug("reference loaded", "assembly", asm.Name, "path", files[i].Path, "size", files[i].Size)
	}
	return u, nil
}
