package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"segcut/internal/control"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	// A missing .env is fine; values already in the environment win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(control.ExitCode(err))
	}
}

func run(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "segcut",
		Short: "Classify audio chunks and keep only the category you want",
		Long: `segcut slices a WAV recording into fixed-length chunks, classifies every chunk
with an external oracle (or an in-process backend), smooths short misclassified runs,
and writes a combined track of the desired category plus a per-category audit export.

Key commands:
  process <file.wav>        Full run: chunk, classify, correct, export
  correct --log <file>      Replay the heuristic over an audit log
  classify <file.wav>       Classify whole files with the configured backend
  serve                     Expose a classifier over HTTP (POST /classify)
  doctor                    Check config, backend and export dir
  config show|init          Inspect or create the config file
  models list|download|set  Manage whisper.cpp models
  tail-log                  Show last log lines

Env overrides: SEGCUT_CHUNK_SEC, SEGCUT_WORKERS, SEGCUT_DESIRED,
               SEGCUT_CLASSIFIER, SEGCUT_CLASSIFIER_URL,
               SEGCUT_LOG_LEVEL/FORMAT (also read from ./.env)`,
		Example: `  segcut process talk.wav
  segcut process talk.wav --chunk 5 --desired A --workers 8
  segcut process talk.wav --classifier http --json
  segcut correct --log export/02-1504/classifications.log
  segcut serve --classifier energy --addr 127.0.0.1:9318`,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		SilenceErrors:         true,
	}

	root.Version = version
	root.SetVersionTemplate("segcut v{{.Version}}\n")
	root.SetFlagErrorFunc(control.FlagError)

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/segcut/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(control.NewProcessCmd(cfgPath))
	root.AddCommand(control.NewCorrectCmd(cfgPath))
	root.AddCommand(control.NewClassifyCmd(cfgPath))
	root.AddCommand(control.NewServeCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewConfigCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))

	applyColorHelp(root)

	return root.ExecuteContext(ctx)
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%ssegcut%s: chunk, classify and cut audio recordings %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sKeeps the chunks of one category and exports every chunk for review.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  segcut [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  process <file.wav>          chunk, classify, correct, export")
		writeln("  correct --log <file>        replay the heuristic over an audit log")
		writeln("  classify <file.wav>         label whole files")
		writeln("  serve                       classification service (POST /classify)")
		writeln("  doctor                      check config/backend/export dir")
		writeln("  config show|init            inspect or create the config file")
		writeln("  models list|download|set    manage whisper.cpp models")
		writeln("  tail-log                    show last log lines")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --chunk <sec>           chunk length (default 10)")
		writeln("  --desired A|B           category kept in <stem>_cut.wav")
		writeln("  --workers <n>           parallel classifications (default CPU count)")
		writeln("  --classifier <backend>  command, http, energy, vad, whisper")
		writeln("  -c, --config <path>     config file (default ~/.config/segcut/config.toml)")
		writeln("  Env: SEGCUT_CHUNK_SEC, SEGCUT_WORKERS, SEGCUT_DESIRED,")
		writeln("       SEGCUT_CLASSIFIER, SEGCUT_CLASSIFIER_URL,")
		writeln("       SEGCUT_LOG_LEVEL=debug, SEGCUT_LOG_FORMAT=json")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  segcut process talk.wav")
		writeln("  segcut process talk.wav --chunk 5 --desired A --workers 8")
		writeln("  segcut correct --log export/02-1504/classifications.log")
		writeln("  segcut serve --classifier energy")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
