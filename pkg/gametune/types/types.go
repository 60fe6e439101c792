// Package types provides the core data types for the gametune optimization engine.
// It includes tweak categories, backup records, adapter identities, operation results
// and orchestration reports, along with the error taxonomy every operation reports in.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Category identifies the OS subsystem a tweak belongs to.
type Category string

// Tweak categories.
const (
	CategoryNetwork Category = "network"
	CategoryTCP     Category = "tcp"
	CategoryDNS     Category = "dns"
	CategoryMemory  Category = "memory"
	CategoryService Category = "service"
	CategoryPower   Category = "power"
	CategoryVisual  Category = "visual"
	CategoryGPU     Category = "gpu"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryNetwork,
	CategoryTCP,
	CategoryDNS,
	CategoryMemory,
	CategoryService,
	CategoryPower,
	CategoryVisual,
	CategoryGPU,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, s)
	}
	return c, nil
}

// AdapterIdentity describes one network adapter as enumerated from the OS.
// It is a read-only snapshot refreshed on each detection call.
type AdapterIdentity struct {
	// Name is the adapter's interface alias (e.g., "Ethernet").
	Name string `json:"name" yaml:"name"`

	// Index is the OS interface index.
	Index int `json:"index" yaml:"index"`

	// IsActive is true when the adapter carries default-route traffic.
	IsActive bool `json:"is_active" yaml:"is_active"`
}

// String returns a short human-readable form such as "Ethernet (#12)".
func (a AdapterIdentity) String() string {
	return fmt.Sprintf("%s (#%d)", a.Name, a.Index)
}

// Value is a live OS value as read by a snapshot fetcher.
type Value struct {
	// Data is the encoded value.
	Data string

	// Absent is true when the value did not exist at all.
	Absent bool
}

// Present returns a Value holding data.
func Present(data string) Value {
	return Value{Data: data}
}

// Missing returns a Value recording that nothing existed.
func Missing() Value {
	return Value{Absent: true}
}

// TweakRecord is one reversible mutation: the value a key held before gametune first
// changed it.
type TweakRecord struct {
	Category  Category  `json:"category" yaml:"category"`
	Key       string    `json:"key" yaml:"key"`
	Prior     string    `json:"prior" yaml:"prior"`
	Absent    bool      `json:"absent,omitempty" yaml:"absent,omitempty"`
	AppliedAt time.Time `json:"applied_at" yaml:"applied_at"`
}

// PriorValue returns the recorded prior value as a Value.
func (r TweakRecord) PriorValue() Value {
	return Value{Data: r.Prior, Absent: r.Absent}
}

// String formats the record for log lines.
func (r TweakRecord) String() string {
	if r.Absent {
		return fmt.Sprintf("%s/%s = <absent>", r.Category, r.Key)
	}
	return fmt.Sprintf("%s/%s = %q", r.Category, r.Key, r.Prior)
}

// LogFunc receives human-readable progress lines. Implementations own formatting
// and timestamps; the engine passes bare messages.
type LogFunc func(message string)

// Logf formats and sends a message. It is safe to call on a nil LogFunc.
func (f LogFunc) Logf(format string, args ...interface{}) {
	if f == nil {
		return
	}
	f(fmt.Sprintf(format, args...))
}

// Result is returned by every mutating operation. Failures are captured here, never
// raised.
type Result struct {
	Success bool      `json:"success" yaml:"success"`
	Message string    `json:"message" yaml:"message"`
	Kind    ErrorKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Skipped marks an orchestration step that never ran.
	Skipped bool `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// OK returns a successful Result.
func OK(format string, args ...interface{}) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

// Fail returns a failed Result of the given kind.
func Fail(kind ErrorKind, format string, args ...interface{}) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Skip returns the Result of a step that was not run, e.g. "skipped: no adapter".
func Skip(reason string) Result {
	return Result{Skipped: true, Message: "skipped: " + reason}
}

// FromError converts err into a failed Result, classifying it and keeping its text.
func FromError(context string, err error) Result {
	return Result{Kind: Classify(err), Message: fmt.Sprintf("%s: %v", context, err)}
}

// Summarize joins a headline and per-item detail lines into one message,
// e.g. "Adapter optimized: Flow control: applied; *EEE: not supported".
func Summarize(headline string, details []string) string {
	if len(details) == 0 {
		return headline
	}
	return headline + ": " + strings.Join(details, "; ")
}

// RestartRequired reports whether the change needs a reboot to take effect.
func (r Result) RestartRequired() bool {
	return r.Kind == KindRestartRequired
}

// Status returns a one-word status for display.
func (r Result) Status() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success && r.Kind == KindRestartRequired:
		return "restart"
	case r.Success:
		return "ok"
	default:
		return "failed"
	}
}

// Step is one entry of an orchestration report.
type Step struct {
	Operation string `json:"operation" yaml:"operation"`
	Result    Result `json:"result" yaml:"result"`
}

// Report is the ordered outcome of a bulk run or restore.
type Report struct {
	Steps    []Step        `json:"steps" yaml:"steps"`
	Started  time.Time     `json:"started" yaml:"started"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Add appends a step.
func (r *Report) Add(operation string, result Result) {
	r.Steps = append(r.Steps, Step{Operation: operation, Result: result})
}

// Failed returns the number of failed steps. Skipped steps are not failures.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Result.Success && !s.Result.Skipped {
			n++
		}
	}
	return n
}

// RestartRequired reports whether any step needs a reboot.
func (r *Report) RestartRequired() bool {
	for _, s := range r.Steps {
		if s.Result.RestartRequired() {
			return true
		}
	}
	return false
}

// Skipped returns the number of skipped steps.
func (r *Report) Skipped() int {
	n := 0
	for _, s := range r.Steps {
		if s.Result.Skipped {
			n++
		}
	}
	return n
}

// Step returns the first step with the given operation name.
func (r *Report) Step(operation string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Operation == operation {
			return s, true
		}
	}
	return Step{}, false
}

// FormatBytes renders a byte count using binary (IEC) units.
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}
