// Package control holds the segcut subcommands.
package control

import (
	"context"
	"errors"
	"fmt"

	"segcut/internal/config"
	"segcut/internal/dispatch"
	"segcut/internal/heuristic"
	"segcut/internal/logging"
	"segcut/internal/pipeline"
	"segcut/internal/track"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrUsage marks a command line that could not be parsed.
var ErrUsage = errors.New("usage error")

// Exit codes returned by the segcut binary.
const (
	ExitFailure   = 1
	ExitUsage     = 2
	ExitConfig    = 3
	ExitSource    = 4
	ExitDispatch  = 5
	ExitInterrupt = 130
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return ExitInterrupt
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, config.ErrInvalid):
		return ExitConfig
	case errors.Is(err, track.ErrSourceLoad), errors.Is(err, pipeline.ErrNoChunks), errors.Is(err, heuristic.ErrEmpty):
		return ExitSource
	case errors.Is(err, dispatch.ErrSetup):
		return ExitDispatch
	default:
		return ExitFailure
	}
}

// FlagError wraps flag parsing failures as usage errors.
func FlagError(_ *cobra.Command, err error) error {
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		return nil
	}
}

// loadRuntime reads the config and sets up logging.
func loadRuntime(cfgPath string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Configure(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
