package dpp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeKind discriminates the three stage-endpoint node variants
// (spec.md §3, §6).
type NodeKind string

const (
	NodeGraph   NodeKind = "graph"
	NodeFilter  NodeKind = "filter"
	NodeChannel NodeKind = "channel"
)

// Node is one endpoint of a pipeline stage edge.
type Node struct {
	Kind     NodeKind `yaml:"kind"`
	Label    string   `yaml:"label"`
	Endpoint string   `yaml:"endpoint,omitempty"` // filter-endpoint name, only for Kind==NodeFilter
}

// Stage is one edge `from -> to` in a pipeline definition.
type Stage struct {
	From Node `yaml:"from"`
	To   Node `yaml:"to"`
}

// FilterInstantiation names a filter-library entry used within a pipeline,
// with its bound parameters.
type FilterInstantiation struct {
	Label      string      `yaml:"label"`
	Filter     string      `yaml:"filter"`
	Parameters []Parameter `yaml:"parameters,omitempty"`
}

// PipelineDef is a declarative pipeline definition (spec.md §3).
type PipelineDef struct {
	Name    string                 `yaml:"name"`
	Filters []FilterInstantiation  `yaml:"filters"`
	Stages  []Stage                `yaml:"stages"`
}

// ChannelBinding binds a context-local label to an acquisition channel
// index.
type ChannelBinding struct {
	Label        string `yaml:"label"`
	ChannelIndex int    `yaml:"channel_index"`
}

// ColourKind discriminates literal RGB vs HSV graph colour declarations.
type ColourKind string

const (
	ColourRGB ColourKind = "rgb"
	ColourHSV ColourKind = "hsv"
)

// GraphColour is either a literal RGB triple or an HSV triple converted
// at resolve time (spec.md §4.3, §4.7).
type GraphColour struct {
	Kind ColourKind `yaml:"kind"`
	R    int        `yaml:"r,omitempty"`
	G    int        `yaml:"g,omitempty"`
	B    int        `yaml:"b,omitempty"`
	H    int        `yaml:"h,omitempty"`
	S    int        `yaml:"s,omitempty"`
	V    int        `yaml:"v,omitempty"`
}

// Resolve returns the literal RGB value of c.
func (c GraphColour) Resolve() RGB {
	if c.Kind == ColourRGB {
		return RGB{byte(c.R), byte(c.G), byte(c.B)}
	}
	return HSVToRGB(c.H, c.S, c.V)
}

// GraphBinding binds a context-local label to a display graph.
type GraphBinding struct {
	Label       string      `yaml:"label"`
	DisplayName string      `yaml:"display_name"`
	Colour      GraphColour `yaml:"colour"`
}

// Context binds a pipeline to concrete channels and graphs (spec.md §3).
type Context struct {
	Pipeline string         `yaml:"pipeline"`
	Channels []ChannelBinding `yaml:"channels"`
	Graphs   []GraphBinding `yaml:"graphs"`
}

// EmissionMode is continuous (all sources sample simultaneously) or flash
// (LED-multiplexed).
type EmissionMode string

const (
	EmissionContinuous EmissionMode = "Continuous"
	EmissionFlash      EmissionMode = "Flash"
)

// Setup is the user-selectable top-level entity (spec.md §3).
type Setup struct {
	Name     string       `yaml:"name"`
	Emission EmissionMode `yaml:"emission"`
	Contexts []Context    `yaml:"contexts"`
}

// LibraryFile is the declarative configuration file (spec.md §6): filter
// library, pipeline definitions and setups.
type LibraryFile struct {
	Filters   []*FilterSpec `yaml:"filters"`
	Pipelines []PipelineDef `yaml:"pipelines"`
	Setup     []Setup       `yaml:"setup"`
}

// yamlEndpoint, yamlParamSpec and yamlFilterSpec let FilterSpec (whose
// Endpoint/ParameterSpec kinds are integer enums) round-trip through YAML
// via FilterSpec.UnmarshalYAML/MarshalYAML, using the same string-enum
// convention as the rest of the config file.
type yamlEndpoint struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "stream" | "value"
}

type yamlParamSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "bool" | "double" | "unsigned"
}

type yamlFilterSpec struct {
	Name    string          `yaml:"name"`
	Inputs  []yamlEndpoint  `yaml:"inputs"`
	Outputs []yamlEndpoint  `yaml:"outputs"`
	Params  []yamlParamSpec `yaml:"parameters,omitempty"`
}

func (f *FilterSpec) UnmarshalYAML(node *yaml.Node) error {
	var y yamlFilterSpec
	if err := node.Decode(&y); err != nil {
		return err
	}
	f.Name = y.Name
	for _, e := range y.Inputs {
		kind, err := endpointKindFromString(e.Kind)
		if err != nil {
			return err
		}
		f.Inputs = append(f.Inputs, Endpoint{Name: e.Name, Kind: kind})
	}
	for _, e := range y.Outputs {
		kind, err := endpointKindFromString(e.Kind)
		if err != nil {
			return err
		}
		f.Outputs = append(f.Outputs, Endpoint{Name: e.Name, Kind: kind})
	}
	for _, p := range y.Params {
		kind, err := kindFromString(p.Kind)
		if err != nil {
			return err
		}
		f.Params = append(f.Params, ParameterSpec{Name: p.Name, Kind: kind})
	}
	return nil
}

func (f FilterSpec) MarshalYAML() (any, error) {
	y := yamlFilterSpec{Name: f.Name}
	for _, e := range f.Inputs {
		y.Inputs = append(y.Inputs, yamlEndpoint{Name: e.Name, Kind: endpointKindString(e.Kind)})
	}
	for _, e := range f.Outputs {
		y.Outputs = append(y.Outputs, yamlEndpoint{Name: e.Name, Kind: endpointKindString(e.Kind)})
	}
	for _, p := range f.Params {
		y.Params = append(y.Params, yamlParamSpec{Name: p.Name, Kind: p.Kind.String()})
	}
	return y, nil
}

func endpointKindString(k EndpointKind) string {
	if k == EndpointStream {
		return "stream"
	}
	return "value"
}

func endpointKindFromString(s string) (EndpointKind, error) {
	switch s {
	case "stream":
		return EndpointStream, nil
	case "value":
		return EndpointValue, nil
	default:
		return 0, fmt.Errorf("dpp: unknown endpoint kind %q", s)
	}
}

func kindFromString(s string) (Kind, error) {
	switch s {
	case "bool":
		return KindBool, nil
	case "double":
		return KindFloat64, nil
	case "unsigned":
		return KindUint32, nil
	default:
		return 0, fmt.Errorf("dpp: unknown value kind %q", s)
	}
}

// UnmarshalYAML lets Parameter's Value (a tagged union) round-trip through
// a `{name, kind, value}` YAML mapping.
func (p *Parameter) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name  string `yaml:"name"`
		Kind  string `yaml:"kind"`
		Value yaml.Node `yaml:"value"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	kind, err := kindFromString(raw.Kind)
	if err != nil {
		return err
	}
	p.Name = raw.Name
	switch kind {
	case KindBool:
		var b bool
		if err := raw.Value.Decode(&b); err != nil {
			return err
		}
		p.Value = BoolValue(b)
	case KindFloat64:
		var f float64
		if err := raw.Value.Decode(&f); err != nil {
			return err
		}
		p.Value = Float64Value(f)
	case KindUint32:
		var u uint32
		if err := raw.Value.Decode(&u); err != nil {
			return err
		}
		p.Value = Uint32Value(u)
	}
	return nil
}

func (p Parameter) MarshalYAML() (any, error) {
	var valNode any
	switch p.Value.Kind {
	case KindBool:
		valNode = p.Value.Bool
	case KindFloat64:
		valNode = p.Value.F64
	case KindUint32:
		valNode = p.Value.U32
	}
	return struct {
		Name  string `yaml:"name"`
		Kind  string `yaml:"kind"`
		Value any    `yaml:"value"`
	}{Name: p.Name, Kind: p.Value.Kind.String(), Value: valNode}, nil
}

// LoadLibraryFile reads and parses a declarative configuration file from
// path (spec.md §6). The YAML parsing itself is delegated to yaml.v3, per
// spec.md §1's non-goal of writing a YAML library from scratch.
func LoadLibraryFile(path string) (*LibraryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dpp: reading config %s: %w", path, err)
	}
	var lib LibraryFile
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("dpp: parsing config %s: %w", path, err)
	}
	return &lib, nil
}

// FindSetup returns the setup at index idx, or an error if out of range.
func (l *LibraryFile) FindSetup(idx int) (*Setup, error) {
	if idx < 0 || idx >= len(l.Setup) {
		return nil, fmt.Errorf("dpp: setup index %d out of range (have %d setups)", idx, len(l.Setup))
	}
	return &l.Setup[idx], nil
}

// FindPipeline looks up a pipeline definition by name.
func (l *LibraryFile) FindPipeline(name string) (*PipelineDef, error) {
	for i := range l.Pipelines {
		if l.Pipelines[i].Name == name {
			return &l.Pipelines[i], nil
		}
	}
	return nil, fmt.Errorf("dpp: unknown pipeline %q", name)
}
