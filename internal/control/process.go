package control

import (
	"fmt"

	"segcut/internal/classify"
	"segcut/internal/config"
	"segcut/internal/pipeline"

	"github.com/spf13/cobra"
)

// NewProcessCmd runs the full pipeline over one or more recordings.
func NewProcessCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <file.wav> [file.wav...]",
		Short: "Classify, correct and cut recordings",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*cfgPath)
			if err != nil {
				return err
			}
			applyProcessFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := classify.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := classify.Close(c); err != nil {
					logger.Warnf("close classifier: %v", err)
				}
			}()

			jsonOut, _ := cmd.Flags().GetBool("json")
			p := pipeline.New(cfg, c, logger)
			for _, input := range args {
				rep, err := p.Process(cmd.Context(), input)
				if err != nil {
					return fmt.Errorf("%s: %w", input, err)
				}
				if jsonOut {
					err = rep.WriteJSON(cmd.OutOrStdout())
				} else {
					err = rep.Render(cmd.OutOrStdout())
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64("chunk", 0, "chunk length in seconds (overrides chunk.duration_sec)")
	f.String("desired", "", "category kept in the combined track (A or B)")
	f.Int("workers", 0, "concurrent classifications (0 = CPU count)")
	f.String("classifier", "", "classifier backend: command, http, energy, vad, whisper")
	f.Int("min-surround", 0, "minimum neighbour run length for a flip")
	f.Int("max-flip", 0, "longest run the heuristic may flip")
	f.Bool("no-heuristic", false, "skip heuristic correction")
	f.String("export-dir", "", "root directory for run exports")
	f.String("audit-log", "", "audit log path (default <run dir>/classifications.log)")
	f.Bool("json", false, "print the report as JSON")
	return cmd
}

func applyProcessFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("chunk") {
		cfg.Chunk.DurationSec, _ = f.GetFloat64("chunk")
	}
	if f.Changed("desired") {
		cfg.Output.Desired, _ = f.GetString("desired")
	}
	if f.Changed("workers") {
		cfg.Classify.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("classifier") {
		cfg.Classify.Backend, _ = f.GetString("classifier")
	}
	if f.Changed("min-surround") {
		cfg.Heuristic.MinSurroundChunks, _ = f.GetInt("min-surround")
	}
	if f.Changed("max-flip") {
		cfg.Heuristic.MaxFlipLength, _ = f.GetInt("max-flip")
	}
	if off, _ := f.GetBool("no-heuristic"); off {
		cfg.Heuristic.Enabled = false
	}
	if f.Changed("export-dir") {
		cfg.Output.ExportDir, _ = f.GetString("export-dir")
	}
	if f.Changed("audit-log") {
		cfg.Output.AuditLog, _ = f.GetString("audit-log")
	}
}
