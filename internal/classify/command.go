package classify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"segcut/internal/config"
	"segcut/internal/label"
	"segcut/internal/track"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

const (
	filePlaceholder = "{file}"
	waitDelay       = 500 * time.Millisecond
)

// CommandClassifier runs an external oracle program once per chunk.
type CommandClassifier struct {
	command string
	args    []string
	env     map[string]string
	timeout time.Duration
	tempDir string
	mono    bool
	matcher Matcher
	logger  *logrus.Logger
}

// NewCommandClassifier reads the [classify] section. classify.args_line, when
// set, replaces classify.args.
func NewCommandClassifier(cfg *config.Config, logger *logrus.Logger) (*CommandClassifier, error) {
	cmdStr := strings.TrimSpace(cfg.Classify.Command)
	if cmdStr == "" {
		return nil, fmt.Errorf("%w: no classify.command configured", config.ErrInvalid)
	}
	args := append([]string{}, cfg.Classify.Args...)
	if strings.TrimSpace(cfg.Classify.ArgsLine) != "" {
		parsed, err := ParseArgs(cfg.Classify.ArgsLine)
		if err != nil {
			return nil, fmt.Errorf("%w: classify.args_line: %v", config.ErrInvalid, err)
		}
		args = parsed
	}
	return &CommandClassifier{
		command: cmdStr,
		args:    args,
		env:     cfg.Classify.Env,
		timeout: cfg.ClassifyTimeout(),
		tempDir: cfg.Classify.TempDir,
		mono:    cfg.Classify.Mono,
		matcher: NewMatcher(cfg.Classify.Tokens),
		logger:  logger,
	}, nil
}

// Classify writes the chunk to a temporary WAV, runs the oracle on it and
// parses its stdout.
func (c *CommandClassifier) Classify(ctx context.Context, chunk track.Chunk) (label.Label, error) {
	result := label.Unknown
	err := withArtifact(c.tempDir, c.mono, chunk, func(path string) error {
		runCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		cmd := exec.CommandContext(runCtx, c.command, expandArgs(c.args, path)...)
		// Stop waiting on output pipes held open by orphaned grandchildren.
		cmd.WaitDelay = waitDelay
		cmd.Env = os.Environ()
		for k, v := range c.env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = append(cmd.Env, fmt.Sprintf("SEGCUT_CHUNK_INDEX=%s", strconv.Itoa(chunk.Index)))
		cmd.Env = append(cmd.Env, fmt.Sprintf("SEGCUT_CHUNK_FILE=%s", path))

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		runErr := cmd.Run()
		if s := strings.TrimSpace(stderr.String()); s != "" && c.logger != nil {
			c.logger.WithField("chunk", chunk.Index+1).Debugf("oracle stderr: %s", s)
		}
		if runErr != nil {
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("oracle timed out after %s", c.timeout)
			}
			return fmt.Errorf("oracle failed: %w", runErr)
		}
		l, ok := c.matcher.Match(stdout.String())
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnrecognized, lastLine(stdout.String()))
		}
		result = l
		return nil
	})
	if err != nil {
		return label.Unknown, err
	}
	return result, nil
}

// expandArgs substitutes {file} with path, or appends path when no argument
// carries the placeholder.
func expandArgs(args []string, path string) []string {
	out := make([]string, 0, len(args)+1)
	substituted := false
	for _, a := range args {
		if strings.Contains(a, filePlaceholder) {
			a = strings.ReplaceAll(a, filePlaceholder, path)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, path)
	}
	return out
}

// ParseArgs allows classify args to be configured as a single string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}
