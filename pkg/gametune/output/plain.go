package output

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

// PlainFormatter formats output as simple aligned tables.
// It produces plain text output suitable for scripting and piping.
// No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, v *View) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	started := false
	section := func(header string) {
		if started {
			_ = tw.Flush()
			w.WriteString("\n")
		}
		started = true
		fmt.Fprintln(tw, header)
	}

	if r := v.Report; r != nil {
		section("STATUS\tOPERATION\tMESSAGE")
		for _, s := range r.Steps {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Result.Status(), s.Operation, s.Result.Message)
		}
		_ = tw.Flush()
		fmt.Fprintf(w, "steps=%d failed=%d skipped=%d restart=%t\n",
			len(r.Steps), r.Failed(), r.Skipped(), r.RestartRequired())
	}

	if len(v.Adapters) > 0 {
		section("INDEX\tNAME\tACTIVE")
		for _, a := range v.Adapters {
			fmt.Fprintf(tw, "%d\t%s\t%t\n", a.Index, a.Name, a.IsActive)
		}
	}

	if m := v.Memory; m != nil {
		section("TOTAL\tAVAILABLE\tUSED\tUSED%")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\n",
			types.FormatBytes(m.Total), types.FormatBytes(m.Available), types.FormatBytes(m.Used), m.UsedPercent)
	}

	if len(v.Records) > 0 {
		section("CATEGORY\tKEY\tPRIOR\tAPPLIED")
		for _, r := range v.Records {
			prior := strconv.Quote(r.Prior)
			if r.Absent {
				prior = "<absent>"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Category, r.Key, prior, r.AppliedAt.Format(time.RFC3339))
		}
	}

	if len(v.Bench) > 0 {
		section("PROVIDER\tSERVER\tMEDIAN\tOK\tFAILED")
		for _, r := range v.Bench {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", r.Provider, r.Server, r.Median, r.OK, r.Failed)
		}
	}

	if len(v.History) > 0 {
		section("ID\tOPERATION\tTIMESTAMP\tSTEPS\tFAILED")
		for _, e := range v.History {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
				e.ID, e.Operation, e.Timestamp.Format(time.RFC3339), e.Summary.Steps, e.Summary.Failed)
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warning := range v.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
