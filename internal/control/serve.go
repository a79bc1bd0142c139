package control

import (
	"fmt"
	"strings"

	"segcut/internal/classify"
	"segcut/internal/server"

	"github.com/spf13/cobra"
)

// NewServeCmd runs the classification service.
func NewServeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a classifier over HTTP (POST /classify)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*cfgPath)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("classifier"); v != "" {
				cfg.Classify.Backend = v
			}
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				cfg.Server.Addr = v
			}
			if strings.EqualFold(cfg.Classify.Backend, "http") {
				return fmt.Errorf("%w: serve needs a local backend, not http", ErrUsage)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := classify.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = classify.Close(c) }()
			return server.New(c, logger).ListenAndServe(cmd.Context(), cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("classifier", "", "backend behind the service: command, energy, vad, whisper")
	return cmd
}
