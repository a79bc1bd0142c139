package control

import (
	"fmt"

	"segcut/internal/classify"
	"segcut/internal/track"

	"github.com/spf13/cobra"
)

// NewClassifyCmd classifies whole files with the configured backend.
func NewClassifyCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file.wav> [file.wav...]",
		Short: "Classify whole files and print their labels",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*cfgPath)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("classifier"); v != "" {
				cfg.Classify.Backend = v
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := classify.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = classify.Close(c) }()

			failed := 0
			for i, path := range args {
				tl, err := track.LoadFile(path)
				if err != nil {
					return err
				}
				l, err := classify.Run(cmd.Context(), c, track.Whole(tl, i))
				if err != nil {
					failed++
					logger.Warn(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, l)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be classified", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().String("classifier", "", "classifier backend: command, http, energy, vad, whisper")
	return cmd
}
