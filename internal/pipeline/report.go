package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"segcut/internal/heuristic"
	"segcut/internal/label"
	"segcut/internal/metrics"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Report summarises one processed recording.
type Report struct {
	RunID          string              `json:"run_id"`
	Input          string              `json:"input"`
	RunDir         string              `json:"run_dir"`
	AuditLog       string              `json:"audit_log"`
	Combined       string              `json:"combined,omitempty"`
	CombinedError  string              `json:"combined_error,omitempty"`
	Desired        label.Label         `json:"desired"`
	ChunkDuration  time.Duration       `json:"chunk_duration"`
	Chunks         int                 `json:"chunks"`
	Dropped        time.Duration       `json:"dropped"`
	Classified     metrics.Snapshot    `json:"classified"`
	Raw            []label.Label       `json:"raw"`
	Corrected      []label.Label       `json:"corrected"`
	Flips          []heuristic.Flip    `json:"flips"`
	Segments       []heuristic.Segment `json:"segments"`
	Kept           []int               `json:"kept"`
	KeptDuration   time.Duration       `json:"kept_duration"`
	ExportFailures []string            `json:"export_failures,omitempty"`
	Elapsed        time.Duration       `json:"elapsed"`
}

// WriteJSON encodes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Render writes a human-readable summary. Tables use rounded borders on a
// terminal and plain ASCII otherwise.
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", r.RunID)
	fmt.Fprintf(&b, "input:      %s\n", r.Input)
	fmt.Fprintf(&b, "chunks:     %d x %v (dropped tail %v)\n", r.Chunks, r.ChunkDuration, r.Dropped.Round(time.Millisecond))
	fmt.Fprintf(&b, "classified: A=%d B=%d failed=%d\n", r.Classified.A, r.Classified.B, r.Classified.Failed)
	fmt.Fprintf(&b, "flips:      %d\n", len(r.Flips))
	for _, f := range r.Flips {
		fmt.Fprintf(&b, "  %s -> %s\n", f.Segment, f.To)
	}
	b.WriteString(SegmentTable(r.Segments, r.ChunkDuration, r.Desired, isTerminal(w)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "export:     %s\n", r.RunDir)
	fmt.Fprintf(&b, "audit log:  %s\n", r.AuditLog)
	switch {
	case r.CombinedError != "":
		fmt.Fprintf(&b, "combined:   failed: %s\n", r.CombinedError)
	case r.Combined == "":
		fmt.Fprintf(&b, "combined:   none (no %s chunks)\n", r.Desired)
	default:
		fmt.Fprintf(&b, "combined:   %s (%d chunks, %v)\n", r.Combined, len(r.Kept), r.KeptDuration)
	}
	for _, f := range r.ExportFailures {
		fmt.Fprintf(&b, "export failure: %s\n", f)
	}
	fmt.Fprintf(&b, "elapsed:    %v\n", r.Elapsed.Round(time.Millisecond))
	_, err := io.WriteString(w, b.String())
	return err
}

// SegmentTable renders segments with their chunk range, time span and
// whether they are kept in the combined track.
func SegmentTable(segs []heuristic.Segment, chunk time.Duration, desired label.Label, rounded bool) string {
	tw := table.NewWriter()
	if rounded {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	tw.AppendHeader(table.Row{"Chunks", "Span", "Label", "Kept"})
	for _, s := range segs {
		kept := ""
		if s.Label == desired {
			kept = "yes"
		}
		tw.AppendRow(table.Row{
			fmt.Sprintf("%03d-%03d", s.Start+1, s.End),
			fmt.Sprintf("%s-%s", clock(time.Duration(s.Start)*chunk), clock(time.Duration(s.End)*chunk)),
			s.Label.String(),
			kept,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
