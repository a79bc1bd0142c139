package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultChunkSec       = 10.0
	defaultMinSurround    = 3
	defaultMaxFlip        = 2
	defaultDesired        = "B"
	defaultExportDir      = "export"
	defaultTimeoutSec     = 120.0
	defaultServerAddr     = "127.0.0.1:9318"
	defaultStateDirLinux  = ".local/state/segcut"
	defaultConfigDir      = ".config/segcut"
	defaultEnergyDB       = -35.0
	defaultVADSpeechRatio = 0.5
)

// ErrInvalid marks a structurally invalid configuration value.
var ErrInvalid = errors.New("invalid configuration")

// Config holds user configuration loaded from TOML.
type Config struct {
	Chunk struct {
		DurationSec float64 `toml:"duration_sec"`
	} `toml:"chunk"`

	Classify struct {
		Backend    string            `toml:"backend"` // command, http, energy, vad, whisper
		Workers    int               `toml:"workers"` // 0 = runtime.NumCPU()
		TimeoutSec float64           `toml:"timeout_sec"`
		TempDir    string            `toml:"temp_dir"`
		Mono       bool              `toml:"mono"`
		Command    string            `toml:"command"`
		Args       []string          `toml:"args"`
		ArgsLine   string            `toml:"args_line"` // shell-style alternative to args
		Env        map[string]string `toml:"env"`
		URL        string            `toml:"url"`
		Tokens     TokenConfig       `toml:"tokens"`
	} `toml:"classify"`

	Energy struct {
		ThresholdDB float64 `toml:"threshold_db"`
		Loud        string  `toml:"loud"`
	} `toml:"energy"`

	VAD struct {
		Aggressiveness int     `toml:"aggressiveness"`
		FrameMS        int     `toml:"frame_ms"`
		SpeechRatio    float64 `toml:"speech_ratio"`
		Speech         string  `toml:"speech"`
	} `toml:"vad"`

	Whisper struct {
		ModelPath string `toml:"model_path"`
		Language  string `toml:"language"`
		MinChars  int    `toml:"min_chars"`
		Speech    string `toml:"speech"`
	} `toml:"whisper"`

	Heuristic struct {
		Enabled           bool `toml:"enabled"`
		MinSurroundChunks int  `toml:"min_surround_chunks"`
		MaxFlipLength     int  `toml:"max_flip_length"`
	} `toml:"heuristic"`

	Output struct {
		Desired   string `toml:"desired"`
		ExportDir string `toml:"export_dir"`
		AuditLog  string `toml:"audit_log"` // empty = <run dir>/classifications.log
	} `toml:"output"`

	Server struct {
		Addr string `toml:"addr"`
	} `toml:"server"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir"`
		LogPath    string `toml:"log_path"`
		ConfigPath string `toml:"-"`
	} `toml:"paths"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "segcut")
	}

	cfg := &Config{}

	cfg.Chunk.DurationSec = defaultChunkSec

	cfg.Classify.Backend = "command"
	cfg.Classify.Workers = 0
	cfg.Classify.TimeoutSec = defaultTimeoutSec
	cfg.Classify.Mono = false
	cfg.Classify.Command = "python"
	cfg.Classify.Args = []string{"main.py", "--mode", "infer", "--file", "{file}"}
	cfg.Classify.Env = map[string]string{}
	cfg.Classify.URL = "http://" + defaultServerAddr
	cfg.Classify.Tokens.A = []string{"A"}
	cfg.Classify.Tokens.B = []string{"B"}

	cfg.Energy.ThresholdDB = defaultEnergyDB
	cfg.Energy.Loud = "B"

	cfg.VAD.Aggressiveness = 2
	cfg.VAD.FrameMS = 30
	cfg.VAD.SpeechRatio = defaultVADSpeechRatio
	cfg.VAD.Speech = "B"

	cfg.Whisper.ModelPath = filepath.Join(stateDir, "models", "ggml-base-q5_1.bin")
	cfg.Whisper.Language = "auto"
	cfg.Whisper.MinChars = 12
	cfg.Whisper.Speech = "B"

	cfg.Heuristic.Enabled = true
	cfg.Heuristic.MinSurroundChunks = defaultMinSurround
	cfg.Heuristic.MaxFlipLength = defaultMaxFlip

	cfg.Output.Desired = defaultDesired
	cfg.Output.ExportDir = defaultExportDir

	cfg.Server.Addr = defaultServerAddr

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.Stdout = true

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "segcut.log")

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Validate reports the first structurally invalid setting.
// Every returned error wraps ErrInvalid.
func (c *Config) Validate() error {
	if c.Chunk.DurationSec <= 0 {
		return fmt.Errorf("%w: chunk.duration_sec must be > 0 (got %v)", ErrInvalid, c.Chunk.DurationSec)
	}
	if c.Classify.Workers < 0 {
		return fmt.Errorf("%w: classify.workers must be >= 0 (got %d)", ErrInvalid, c.Classify.Workers)
	}
	if c.Classify.TimeoutSec < 0 {
		return fmt.Errorf("%w: classify.timeout_sec must be >= 0", ErrInvalid)
	}
	if c.Heuristic.MinSurroundChunks < 1 {
		return fmt.Errorf("%w: heuristic.min_surround_chunks must be >= 1 (got %d)", ErrInvalid, c.Heuristic.MinSurroundChunks)
	}
	if c.Heuristic.MaxFlipLength < 0 {
		return fmt.Errorf("%w: heuristic.max_flip_length must be >= 0 (got %d)", ErrInvalid, c.Heuristic.MaxFlipLength)
	}
	if !isCategory(c.Output.Desired) {
		return fmt.Errorf("%w: output.desired must be A or B (got %q)", ErrInvalid, c.Output.Desired)
	}
	if strings.TrimSpace(c.Output.ExportDir) == "" {
		return fmt.Errorf("%w: output.export_dir is empty", ErrInvalid)
	}
	switch strings.ToLower(c.Classify.Backend) {
	case "command":
		if strings.TrimSpace(c.Classify.Command) == "" {
			return fmt.Errorf("%w: classify.command is empty", ErrInvalid)
		}
	case "http":
		if strings.TrimSpace(c.Classify.URL) == "" {
			return fmt.Errorf("%w: classify.url is empty", ErrInvalid)
		}
	case "energy":
		if !isCategory(c.Energy.Loud) {
			return fmt.Errorf("%w: energy.loud must be A or B (got %q)", ErrInvalid, c.Energy.Loud)
		}
	case "vad":
		if !isCategory(c.VAD.Speech) {
			return fmt.Errorf("%w: vad.speech must be A or B (got %q)", ErrInvalid, c.VAD.Speech)
		}
	case "whisper":
		if !isCategory(c.Whisper.Speech) {
			return fmt.Errorf("%w: whisper.speech must be A or B (got %q)", ErrInvalid, c.Whisper.Speech)
		}
	default:
		return fmt.Errorf("%w: unknown classify.backend %q", ErrInvalid, c.Classify.Backend)
	}
	return nil
}

// ChunkDuration returns the configured chunk length, rounded to the nearest
// nanosecond so that values like 2.01s are exact.
func (c *Config) ChunkDuration() time.Duration {
	return seconds(c.Chunk.DurationSec)
}

// ClassifyTimeout returns the per-call classifier bound, zero when unbounded.
func (c *Config) ClassifyTimeout() time.Duration {
	return seconds(c.Classify.TimeoutSec)
}

func seconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}

// WorkerCount resolves the pool size, defaulting to the CPU count.
func (c *Config) WorkerCount() int {
	if c.Classify.Workers > 0 {
		return c.Classify.Workers
	}
	return runtime.NumCPU()
}

func isCategory(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s == "A" || s == "B"
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SEGCUT_CHUNK_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Chunk.DurationSec = f
		}
	}
	if v := os.Getenv("SEGCUT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Classify.Workers = n
		}
	}
	if v := os.Getenv("SEGCUT_DESIRED"); v != "" {
		cfg.Output.Desired = v
	}
	if v := os.Getenv("SEGCUT_CLASSIFIER"); v != "" {
		cfg.Classify.Backend = v
	}
	if v := os.Getenv("SEGCUT_CLASSIFIER_URL"); v != "" {
		cfg.Classify.URL = v
	}
	if v := os.Getenv("SEGCUT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SEGCUT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
