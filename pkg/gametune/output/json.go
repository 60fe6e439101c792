package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/gametune/pkg/gametune/dnsbench"
	"github.com/jamesainslie/gametune/pkg/gametune/history"
	"github.com/jamesainslie/gametune/pkg/gametune/platform"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// document is the machine-readable form shared by the json and yaml
// formatters. Durations are rendered as strings.
type document struct {
	Report   *reportDoc              `json:"report,omitempty" yaml:"report,omitempty"`
	Adapters []types.AdapterIdentity `json:"adapters,omitempty" yaml:"adapters,omitempty"`
	Memory   *platform.MemoryInfo    `json:"memory,omitempty" yaml:"memory,omitempty"`
	Records  []types.TweakRecord     `json:"records,omitempty" yaml:"records,omitempty"`
	Bench    []benchDoc              `json:"bench,omitempty" yaml:"bench,omitempty"`
	History  []historyDoc            `json:"history,omitempty" yaml:"history,omitempty"`
	Warnings []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type reportDoc struct {
	Steps           []types.Step `json:"steps" yaml:"steps"`
	Started         time.Time    `json:"started" yaml:"started"`
	Duration        string       `json:"duration,omitempty" yaml:"duration,omitempty"`
	Failed          int          `json:"failed" yaml:"failed"`
	Skipped         int          `json:"skipped" yaml:"skipped"`
	RestartRequired bool         `json:"restart_required" yaml:"restart_required"`
}

type benchDoc struct {
	Provider string `json:"provider" yaml:"provider"`
	Server   string `json:"server" yaml:"server"`
	Median   string `json:"median,omitempty" yaml:"median,omitempty"`
	Min      string `json:"min,omitempty" yaml:"min,omitempty"`
	Max      string `json:"max,omitempty" yaml:"max,omitempty"`
	OK       int    `json:"ok" yaml:"ok"`
	Failed   int    `json:"failed" yaml:"failed"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

type historyDoc struct {
	ID              string            `json:"id" yaml:"id"`
	Timestamp       time.Time         `json:"timestamp" yaml:"timestamp"`
	Operation       history.Operation `json:"operation" yaml:"operation"`
	Session         string            `json:"session" yaml:"session"`
	Steps           int               `json:"steps" yaml:"steps"`
	Failed          int               `json:"failed" yaml:"failed"`
	Skipped         int               `json:"skipped" yaml:"skipped"`
	RestartRequired bool              `json:"restart_required" yaml:"restart_required"`
	Duration        string            `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func buildDocument(v *View) document {
	doc := document{
		Adapters: v.Adapters,
		Memory:   v.Memory,
		Records:  v.Records,
		Warnings: v.Warnings,
	}

	if r := v.Report; r != nil {
		steps := r.Steps
		if steps == nil {
			steps = []types.Step{}
		}
		doc.Report = &reportDoc{
			Steps:           steps,
			Started:         r.Started,
			Duration:        formatDurationString(r.Duration),
			Failed:          r.Failed(),
			Skipped:         r.Skipped(),
			RestartRequired: r.RestartRequired(),
		}
	}

	for _, b := range v.Bench {
		doc.Bench = append(doc.Bench, benchFrom(b))
	}

	for _, e := range v.History {
		doc.History = append(doc.History, historyDoc{
			ID:              e.ID,
			Timestamp:       e.Timestamp,
			Operation:       e.Operation,
			Session:         e.Session,
			Steps:           e.Summary.Steps,
			Failed:          e.Summary.Failed,
			Skipped:         e.Summary.Skipped,
			RestartRequired: e.Summary.RestartRequired,
			Duration:        formatDurationString(e.Summary.Duration),
		})
	}
	return doc
}

func benchFrom(r dnsbench.Result) benchDoc {
	return benchDoc{
		Provider: r.Provider,
		Server:   r.Server,
		Median:   formatDurationString(r.Median),
		Min:      formatDurationString(r.Min),
		Max:      formatDurationString(r.Max),
		OK:       r.OK,
		Failed:   r.Failed,
		Error:    r.Err,
	}
}

// formatDurationString formats a duration as a string for machine output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, v *View) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(v))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
