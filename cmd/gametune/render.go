package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/output"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// Output flags.
var (
	outputFormat string
	templateStr  string
)

// stdout is where rendered views go. Tests replace it.
var stdout io.Writer = os.Stdout

// restartNotice is appended to any report that has a reboot-bound step.
const restartNotice = "Some changes take effect only after a restart. Restart your computer to finish."

// getFormatter resolves the -o and --template flags.
func getFormatter() (output.Formatter, error) {
	name := viper.GetString("output")
	if name == "" {
		name = "pretty"
	}

	if name == "template" {
		tmpl := viper.GetString("template")
		if tmpl == "" {
			return nil, fmt.Errorf("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmpl), nil
	}

	f, err := output.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}
	return f, nil
}

// render formats v with the selected formatter and writes it to stdout.
func render(v *output.View) error {
	f, err := getFormatter()
	if err != nil {
		return err
	}

	if v.Report != nil && v.Report.RestartRequired() {
		v.Warnings = append(v.Warnings, restartNotice)
	}

	var buf bytes.Buffer
	if err := f.Format(&buf, v); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}

// renderReport renders a report and turns failed steps into a non-zero exit.
func renderReport(title string, report types.Report) error {
	if err := render(&output.View{Title: title, Report: &report}); err != nil {
		return err
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d step(s) failed", n)
	}
	return nil
}

// progressLine formats one progress line for the terminal.
func progressLine(t time.Time, message string) string {
	return "[" + t.Format("15:04:05") + "] " + message
}

// progress returns the sink optimizers report through. Lines go to stderr,
// so machine-readable output on stdout stays clean, and to the log file.
func progress() types.LogFunc {
	sink := logging.Get("cli").Sink()
	return func(message string) {
		sink(message)
		if !getQuiet() {
			fmt.Fprintln(os.Stderr, progressLine(time.Now(), message))
		}
	}
}
