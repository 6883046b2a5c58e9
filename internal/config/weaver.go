package config

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Namespace is the XML namespace of the WeaverConfig element.
const Namespace = "urn:go-weaver:config"

// ErrInvalidWeaverConfig is returned when the weaver element is malformed.
var ErrInvalidWeaverConfig = errors.New("invalid weaver config")

// WeaverConfig is the content of the weaver element: the weaves to run
// against the target assembly.
type WeaverConfig struct {
	XMLName xml.Name

	Mixins []InterfaceMixin `xml:"InterfaceMixin"`
	Advice []AdviceRule     `xml:"Advice"`
}

// InterfaceMixin maps an interface to the type whose members implement it.
// Both are assembly-qualified type names.
type InterfaceMixin struct {
	Interface string `xml:"Interface,attr"`
	Mixin     string `xml:"Mixin,attr"`
}

// AdviceRule wraps the methods selected by Target ("Ns.Type::Method") with
// the advice method Type::Method.
type AdviceRule struct {
	Target  string `xml:"Target,attr"`
	Type    string `xml:"Type,attr"`
	Method  string `xml:"Method,attr"`
	Forward string `xml:"Forward,attr"`
}

type weaverElement struct {
	XMLName  xml.Name
	Children []WeaverConfig `xml:",any"`
}

// ParseWeaverElement reads a weaver element. It must hold exactly one child,
// a WeaverConfig element in Namespace.
func ParseWeaverElement(data []byte) (*WeaverConfig, error) {
	var root weaverElement
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWeaverConfig, err)
	}
	if len(root.Children) != 1 {
		return nil, fmt.Errorf("%w: <%s> must contain exactly one child element, found %d",
			ErrInvalidWeaverConfig, root.XMLName.Local, len(root.Children))
	}
	cfg := root.Children[0]
	if cfg.XMLName.Local != "WeaverConfig" || cfg.XMLName.Space != Namespace {
		return nil, fmt.Errorf("%w: child must be {%s}WeaverConfig, found {%s}%s",
			ErrInvalidWeaverConfig, Namespace, cfg.XMLName.Space, cfg.XMLName.Local)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWeaverConfig reads the weaver element stored in path.
func LoadWeaverConfig(path string) (*WeaverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weaver config %s: %w", path, err)
	}
	cfg, err := ParseWeaverElement(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every entry names what it needs.
func (c *WeaverConfig) Validate() error {
	for i, m := range c.Mixins {
		if strings.TrimSpace(m.Interface) == "" || strings.TrimSpace(m.Mixin) == "" {
			return fmt.Errorf("%w: InterfaceMixin %d needs Interface and Mixin", ErrInvalidWeaverConfig, i)
		}
	}
	for i, a := range c.Advice {
		typeName, method, ok := strings.Cut(a.Target, "::")
		if !ok || strings.TrimSpace(typeName) == "" || strings.TrimSpace(method) == "" {
			return fmt.Errorf("%w: Advice %d: target %q is not Type::Method", ErrInvalidWeaverConfig, i, a.Target)
		}
		if a.Type == "" || a.Method == "" || a.Forward == "" {
			return fmt.Errorf("%w: Advice %d needs Type, Method and Forward", ErrInvalidWeaverConfig, i)
		}
	}
	return nil
}

// WriteWeaverElement writes cfg wrapped in a <Weaver> element.
func WriteWeaverElement(w io.Writer, cfg *WeaverConfig) error {
	inner := *cfg
	inner.XMLName = xml.Name{Space: Namespace, Local: "WeaverConfig"}
	root := weaverElement{
		XMLName:  xml.Name{Local: "Weaver"},
		Children: []WeaverConfig{inner},
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("failed to encode weaver config: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
