package control

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"segcut/internal/config"
	"segcut/internal/dispatch"
	"segcut/internal/heuristic"
	"segcut/internal/label"
	"segcut/internal/pipeline"

	"github.com/spf13/cobra"
)

// NewCorrectCmd replays the heuristic over an existing audit log.
func NewCorrectCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct --log <classifications.log>",
		Short: "Re-run heuristic correction over an audit log",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			applyProcessFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("log")
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			raw, err := dispatch.ReadAuditLog(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			opts := heuristic.Options{
				MinSurroundChunks: cfg.Heuristic.MinSurroundChunks,
				MaxFlipLength:     cfg.Heuristic.MaxFlipLength,
			}
			corrected, flips, err := heuristic.Correct(raw, opts)
			if err != nil {
				return err
			}
			desired, err := label.MustCategory(cfg.Output.Desired)
			if err != nil {
				return fmt.Errorf("%w: output.desired: %v", config.ErrInvalid, err)
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Raw       []label.Label       `json:"raw"`
					Corrected []label.Label       `json:"corrected"`
					Flips     []heuristic.Flip    `json:"flips"`
					Segments  []heuristic.Segment `json:"segments"`
				}{raw, corrected, flips, heuristic.Segments(corrected)})
			}
			return writeCorrection(cmd.OutOrStdout(), raw, corrected, flips, cfg, desired)
		},
	}
	f := cmd.Flags()
	f.String("log", "", "audit log to replay")
	f.Int("min-surround", 0, "minimum neighbour run length for a flip")
	f.Int("max-flip", 0, "longest run the heuristic may flip")
	f.String("desired", "", "category marked as kept (A or B)")
	f.Float64("chunk", 0, "chunk length in seconds, for the time column")
	f.Bool("json", false, "output JSON")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

func writeCorrection(w io.Writer, raw, corrected []label.Label, flips []heuristic.Flip, cfg *config.Config, desired label.Label) error {
	var b strings.Builder
	fmt.Fprintf(&b, "raw:       %s\n", compact(raw))
	fmt.Fprintf(&b, "corrected: %s\n", compact(corrected))
	fmt.Fprintf(&b, "flips:     %d\n", len(flips))
	for _, f := range flips {
		fmt.Fprintf(&b, "  %s -> %s\n", f.Segment, f.To)
	}
	b.WriteString(pipeline.SegmentTable(heuristic.Segments(corrected), cfg.ChunkDuration(), desired, false))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// compact renders labels one character each, "-" for unknown.
func compact(ls []label.Label) string {
	var b strings.Builder
	for _, l := range ls {
		if l.Known() {
			b.WriteString(l.String())
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
