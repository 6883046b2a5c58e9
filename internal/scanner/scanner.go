// Package scanner finds the files of a weaving run, most importantly the
// assembly containers under the reference directories. A directory may hold
// a .weaverignore file with gitignore-style patterns; they apply to that
// directory and everything below it.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileInfo describes one discovered file.
type FileInfo struct {
	Path     string // relative to the scan root, slash separated
	FullPath string
	Kind     Kind
	Size     int64
}

// Options configures a Scanner.
type Options struct {
	SkipHidden      bool     // skip names starting with "."
	FollowSymlinks  bool     // follow file symlinks that stay within the root
	DefaultExcludes []string // directory names never entered
	IgnoreFileName  string
	// Kinds limits the result to the given kinds. Empty means every
	// recognized kind.
	Kinds []Kind
}

// DefaultOptions returns options that find assembly containers.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".weaverignore",
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			"node_modules",
			"vendor",
			"obj",
		},
		Kinds: []Kind{KindContainer},
	}
}

// Scanner walks directory trees.
type Scanner struct {
	opts Options
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan returns the matching files below root in lexical order.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var (
		files  []FileInfo
		scopes []ignoreScope
	)
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, the root is not
			if path == absRoot {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." {
				if s.skipName(d.Name()) || s.isDefaultExcluded(d.Name()) || ignored(scopes, rel, true) {
					return fs.SkipDir
				}
			}
			if s.opts.IgnoreFileName == "" {
				return nil
			}
			scope, ok, err := loadIgnoreScope(path, rel, s.opts.IgnoreFileName)
			if err != nil {
				return fmt.Errorf("loading ignore file in %s: %w", rel, err)
			}
			if ok {
				scopes = append(scopes, scope)
			}
			return nil
		}

		if s.skipName(d.Name()) || ignored(scopes, rel, false) {
			return nil
		}
		kind := DetectKind(path)
		if kind == KindUnknown || (len(s.opts.Kinds) > 0 && !slices.Contains(s.opts.Kinds, kind)) {
			return nil
		}

		fi, ok := s.stat(absRoot, path, d)
		if !ok {
			return nil
		}
		files = append(files, FileInfo{
			Path:     rel,
			FullPath: path,
			Kind:     kind,
			Size:     fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// stat returns the info of a regular file, following a symlink only when
// allowed and only when its target lies within root.
func (s *Scanner) stat(root, path string, d fs.DirEntry) (fs.FileInfo, bool) {
	if d.Type()&fs.ModeSymlink == 0 {
		fi, err := d.Info()
		return fi, err == nil
	}
	if !s.opts.FollowSymlinks {
		return nil, false
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil || !strings.HasPrefix(real, realRoot+string(filepath.Separator)) {
		return nil, false
	}
	fi, err := os.Stat(real)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, false
	}
	return fi, true
}

func (s *Scanner) skipName(name string) bool {
	return s.opts.SkipHidden && strings.HasPrefix(name, ".")
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// Scan scans root with DefaultOptions.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}

// ScanWithOptions scans root with opts.
func ScanWithOptions(root string, opts Options) ([]FileInfo, error) {
	return New(opts).Scan(root)
}
