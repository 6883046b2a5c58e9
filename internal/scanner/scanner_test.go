package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func paths(results []FileInfo) map[string]FileInfo {
	found := make(map[string]FileInfo, len(results))
	for _, f := range results {
		found[f.Path] = f
	}
	return found
}

func TestScannerScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"Core.wvc":             "x",
		"lib/Util.wvc":         "xy",
		"lib/notes.txt":        "ignored kind",
		"weaver.xml":           "<Weavers/>",
		".hidden/Secret.wvc":   "x",
		"obj/Debug/Temp.wvc":   "x",
		"node_modules/m/A.wvc": "x",
		".git/config":          "[core]",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	found := paths(results)
	if len(found) != 2 {
		t.Fatalf("Expected 2 containers, got %v", results)
	}
	for _, want := range []string{"Core.wvc", "lib/Util.wvc"} {
		f, ok := found[want]
		if !ok {
			t.Errorf("Expected to find %s", want)
			continue
		}
		if f.Kind != KindContainer {
			t.Errorf("Expected %s to be a container, got %q", want, f.Kind)
		}
		if f.FullPath != filepath.Join(tmpDir, filepath.FromSlash(want)) {
			t.Errorf("Unexpected full path %s", f.FullPath)
		}
	}
	if found["lib/Util.wvc"].Size != 2 {
		t.Errorf("Expected size 2, got %d", found["lib/Util.wvc"].Size)
	}
}

func TestScannerAllKinds(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"App.wvc":     "x",
		"weaver.xml":  "<Weavers/>",
		"config.yaml": "input: App.wvc",
		"README.md":   "# readme",
	})

	opts := DefaultOptions()
	opts.Kinds = nil
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	found := paths(results)
	want := map[string]Kind{
		"App.wvc":     KindContainer,
		"weaver.xml":  KindWeaverConfig,
		"config.yaml": KindProjectConfig,
	}
	if len(found) != len(want) {
		t.Fatalf("Expected %d files, got %v", len(want), results)
	}
	for path, kind := range want {
		if found[path].Kind != kind {
			t.Errorf("Expected %s to be %q, got %q", path, kind, found[path].Kind)
		}
	}
}

func TestScannerWithWeaverignore(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".weaverignore": `# stale outputs
*.old.wvc
build/
/Secret.wvc
`,
		"App.wvc":            "x",
		"App.old.wvc":        "x",
		"build/Out.wvc":      "x",
		"Secret.wvc":         "x",
		"deep/Secret.wvc":    "x",
		"deep/.weaverignore": "Local*.wvc\n!LocalKeep.wvc\n",
		"deep/LocalA.wvc":    "x",
		"deep/LocalKeep.wvc": "x",
		"other/LocalB.wvc":   "x",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	found := paths(results)

	for _, want := range []string{"App.wvc", "deep/Secret.wvc", "deep/LocalKeep.wvc", "other/LocalB.wvc"} {
		if _, ok := found[want]; !ok {
			t.Errorf("Expected to find %s", want)
		}
	}
	for _, ignored := range []string{"App.old.wvc", "build/Out.wvc", "Secret.wvc", "deep/LocalA.wvc"} {
		if _, ok := found[ignored]; ok {
			t.Errorf("Expected %s to be ignored", ignored)
		}
	}
}

func TestScannerSkipHidden(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"Visible.wvc":       "x",
		".hidden/Inner.wvc": "x",
		".Dot.wvc":          "x",
	})

	opts := DefaultOptions()
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if found := paths(results); len(found) != 1 {
		t.Errorf("Should skip hidden files when SkipHidden=true, got %v", results)
	}

	opts.SkipHidden = false
	results, err = New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	found := paths(results)
	for _, want := range []string{".hidden/Inner.wvc", ".Dot.wvc"} {
		if _, ok := found[want]; !ok {
			t.Errorf("Should find %s when SkipHidden=false", want)
		}
	}
}

func TestScannerRootErrors(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "App.wvc")
	writeTree(t, tmpDir, map[string]string{"App.wvc": "x"})

	if _, err := Scan(filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("Expected an error for a missing root")
	}
	if _, err := Scan(file); err == nil {
		t.Error("Expected an error for a file root")
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		path     string
		expected Kind
	}{
		{"App.wvc", KindContainer},
		{"dir/App.WVC", KindContainer},
		{"weaver.xml", KindWeaverConfig},
		{".weaver/config.yaml", KindProjectConfig},
		{"config.yml", KindProjectConfig},
		{"App.dll", KindUnknown},
		{"Makefile", KindUnknown},
	}

	for _, tt := range tests {
		if result := DetectKind(tt.path); result != tt.expected {
			t.Errorf("DetectKind(%q) = %q, want %q", tt.path, result, tt.expected)
		}
	}
	if exts := Extensions(KindContainer); len(exts) != 1 || exts[0] != ".wvc" {
		t.Errorf("Extensions(KindContainer) = %v", exts)
	}
}

func TestIgnored(t *testing.T) {
	tests := []struct {
		dir   string
		lines []string
		path  string
		isDir bool
		match bool
	}{
		// Simple patterns
		{"", []string{"*.wvc"}, "App.wvc", false, true},
		{"", []string{"*.wvc"}, "dir/App.wvc", false, true},
		{"", []string{"*.wvc"}, "App.xml", false, false},
		{"", []string{"build/"}, "build/App.wvc", false, true},
		{"", []string{"build/"}, "other/build/App.wvc", false, true},
		{"", []string{"build/"}, "build", false, false},
		{"", []string{"build/"}, "build", true, true},
		{"", []string{"build/"}, "builder.wvc", false, false},

		// Anchored patterns
		{"", []string{"/build/"}, "build/App.wvc", false, true},
		{"", []string{"/build/"}, "src/build/App.wvc", false, false},
		{"", []string{"src/*.wvc"}, "src/App.wvc", false, true},
		{"", []string{"src/*.wvc"}, "src/deep/App.wvc", false, false},

		// Double asterisk
		{"", []string{"**/test/**"}, "test/App.wvc", false, true},
		{"", []string{"**/test/**"}, "src/deep/test/App.wvc", false, true},
		{"", []string{"**/test/**"}, "testing/App.wvc", false, false},

		// Classes
		{"", []string{"Lib[ab].wvc"}, "Libb.wvc", false, true},
		{"", []string{"Lib[ab].wvc"}, "Libc.wvc", false, false},

		// Negation within one file
		{"", []string{"*.wvc", "!Keep.wvc"}, "Keep.wvc", false, false},
		{"", []string{"*.wvc", "!Keep.wvc"}, "App.wvc", false, true},

		// Scoped to a subdirectory
		{"deep", []string{"/Local*.wvc"}, "deep/LocalA.wvc", false, true},
		{"deep", []string{"/Local*.wvc"}, "deep/sub/LocalA.wvc", false, false},
		{"deep", []string{"Local*.wvc"}, "other/LocalA.wvc", false, false},
		{"deep", []string{"Local*.wvc"}, "deeper/LocalA.wvc", false, false},
	}

	for _, tt := range tests {
		scopes := []ignoreScope{newIgnoreScope(tt.dir, tt.lines...)}
		if result := ignored(scopes, tt.path, tt.isDir); result != tt.match {
			t.Errorf("Patterns %q in %q matching %q (dir=%v): got %v, want %v", tt.lines, tt.dir, tt.path, tt.isDir, result, tt.match)
		}
	}
}
