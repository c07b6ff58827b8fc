package interp

import (
	"sort"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// Names the host reads results back from.
const (
	FrameBinding = "df"
	ChartBinding = "fig"
)

// CapabilitySet selects which capabilities a namespace exposes.
type CapabilitySet uint8

const (
	// Base holds the cleaning capabilities: reductions, element-wise math,
	// null handling, column and row housekeeping, and string helpers.
	Base CapabilitySet = 1 << iota
	// Extended adds encoding, scaling, binning and regular expressions.
	Extended
	// Charting holds the chart constructors.
	Charting
)

// Builtin is the implementation of a capability.
type Builtin func(c *Call) (any, error)

// Capability is a named callable registered into a namespace.
type Capability struct {
	Name  string
	Set   CapabilitySet
	Usage string
	Fn    Builtin
}

// Capabilities returns every capability that belongs to set, sorted by name.
func Capabilities(set CapabilitySet) []Capability {
	var out []Capability
	for _, group := range [][]Capability{baseCapabilities, extendedCapabilities, chartCapabilities} {
		for _, c := range group {
			if c.Set&set != 0 {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Namespace is the only environment a program can reach: its variable
// bindings plus the capabilities it was built with. Build a new one for every
// execution.
type Namespace struct {
	vars map[string]any
	caps map[string]Capability
}

// NewNamespace creates a namespace exposing set, with frame bound to df.
func NewNamespace(frame *dataframe.DataFrame, set CapabilitySet) *Namespace {
	ns := &Namespace{
		vars: make(map[string]any),
		caps: make(map[string]Capability),
	}
	for _, c := range Capabilities(set) {
		ns.caps[c.Name] = c
	}
	if frame != nil {
		ns.Bind(FrameBinding, frame)
	}
	return ns
}

// Bind sets a variable.
func (ns *Namespace) Bind(name string, v any) {
	ns.vars[name] = v
}

// Lookup returns the value bound to name.
func (ns *Namespace) Lookup(name string) (any, bool) {
	v, ok := ns.vars[name]
	return v, ok
}

// Capability returns the capability registered under name.
func (ns *Namespace) Capability(name string) (Capability, bool) {
	c, ok := ns.caps[name]
	return c, ok
}

// Names returns the sorted names of the registered capabilities.
func (ns *Namespace) Names() []string {
	names := make([]string, 0, len(ns.caps))
	for name := range ns.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
