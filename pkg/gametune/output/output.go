// Package output provides formatters for displaying gametune results
// in various output formats (pretty, plain, json, yaml, template).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, &output.View{Report: &report}); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/jamesainslie/gametune/pkg/gametune/dnsbench"
	"github.com/jamesainslie/gametune/pkg/gametune/history"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// View is what a command asks to be displayed. Formatters render the
// sections that are set and ignore the rest.
type View struct {
	// Title is shown above the pretty output. Optional.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Report is the outcome of one operation, a bulk run, or a restore.
	Report *types.Report `json:"report,omitempty" yaml:"report,omitempty"`

	// Records are the recorded prior values.
	Records []types.TweakRecord `json:"records,omitempty" yaml:"records,omitempty"`

	// Adapters are the enumerated network adapters.
	Adapters []types.AdapterIdentity `json:"adapters,omitempty" yaml:"adapters,omitempty"`

	// Bench holds resolver latency measurements.
	Bench []dnsbench.Result `json:"bench,omitempty" yaml:"bench,omitempty"`

	// History lists past runs.
	History []history.Entry `json:"history,omitempty" yaml:"history,omitempty"`

	// Memory is a physical memory snapshot.
	Memory *platform.MemoryInfo `json:"memory,omitempty" yaml:"memory,omitempty"`

	// Warnings are shown after everything else.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Empty reports whether no section is set.
func (v *View) Empty() bool {
	return v.Report == nil && len(v.Records) == 0 && len(v.Adapters) == 0 &&
		len(v.Bench) == 0 && len(v.History) == 0 && v.Memory == nil
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, v *View) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
