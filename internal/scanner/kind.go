package scanner

import (
	"path/filepath"
	"strings"
)

// Kind classifies a file the weaver may read.
type Kind string

const (
	KindUnknown       Kind = ""
	KindContainer     Kind = "container"
	KindWeaverConfig  Kind = "weaver-config"
	KindProjectConfig Kind = "project-config"
)

var kindByExtension = map[string]Kind{
	".wvc":  KindContainer,
	".xml":  KindWeaverConfig,
	".yaml": KindProjectConfig,
	".yml":  KindProjectConfig,
}

// DetectKind returns the kind of the file at path, judged by its extension.
func DetectKind(path string) Kind {
	return kindByExtension[strings.ToLower(filepath.Ext(path))]
}

// Extensions returns the extensions mapped to k.
func Extensions(k Kind) []string {
	var exts []string
	for ext, kind := range kindByExtension {
		if kind == k {
			exts = append(exts, ext)
		}
	}
	return exts
}
