package control

import (
	"fmt"
	"io"
	"os"
	"strings"

	"segcut/internal/config"
	"segcut/internal/doctor"
	"segcut/internal/logging"

	"github.com/spf13/cobra"
)

// NewTailLogCmd prints the last lines of the main log file.
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail-log",
		Short: "Show the last log lines",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			return tailFile(cmd.OutOrStdout(), cfg.Paths.LogPath, n)
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines")
	return cmd
}

func tailFile(w io.Writer, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			fmt.Fprintln(w, l)
		}
	}
	return nil
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, classifier backend and export directory",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			results := doctor.Run(cmd.Context(), cfg, logger)
			failed := 0
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-4s %s\n", r.Name, status, r.Detail)
			}
			if failed > 0 {
				return fmt.Errorf("doctor found %d issue(s)", failed)
			}
			return nil
		},
	}
}
