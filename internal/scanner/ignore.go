package scanner

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// ignoreScope is one compiled ignore file and the directory it applies to,
// relative to the scan root ("" for the root itself).
type ignoreScope struct {
	dir     string
	matcher *gitignore.GitIgnore
}

// newIgnoreScope compiles gitignore-style lines for dir.
func newIgnoreScope(dir string, lines ...string) ignoreScope {
	return ignoreScope{dir: dir, matcher: gitignore.CompileIgnoreLines(lines...)}
}

// loadIgnoreScope reads the ignore file in the directory at path. It
// returns false when there is none.
func loadIgnoreScope(path, rel, name string) (ignoreScope, bool, error) {
	m, err := gitignore.CompileIgnoreFile(filepath.Join(path, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ignoreScope{}, false, nil
	}
	if err != nil {
		return ignoreScope{}, false, err
	}
	if rel == "." {
		rel = ""
	}
	return ignoreScope{dir: rel, matcher: m}, true, nil
}

// covers returns rel relative to the scope directory.
func (s ignoreScope) covers(rel string) (string, bool) {
	if s.dir == "" {
		return rel, true
	}
	if !strings.HasPrefix(rel, s.dir+"/") {
		return "", false
	}
	return strings.TrimPrefix(rel, s.dir+"/"), true
}

// ignored reports whether any scope covering rel ignores it. A negation
// only re-includes what its own file excluded.
func ignored(scopes []ignoreScope, rel string, isDir bool) bool {
	for _, s := range scopes {
		local, ok := s.covers(rel)
		if !ok {
			continue
		}
		if isDir {
			local += "/"
		}
		if s.matcher.MatchesPath(local) {
			return true
		}
	}
	return false
}
