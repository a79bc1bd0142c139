// Package doctor checks that a configuration can run.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"segcut/internal/classify"
	"segcut/internal/config"

	"github.com/sirupsen/logrus"
)

const serviceTimeout = 3 * time.Second

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkConfig(cfg),
		checkWritableDir("export dir", cfg.Output.ExportDir),
	}
	switch strings.ToLower(cfg.Classify.Backend) {
	case "command", "":
		results = append(results, checkExecutable("classify.command", cfg.Classify.Command))
	case "http":
		results = append(results, checkService(ctx, cfg.Classify.URL))
	case "whisper":
		results = append(results, checkFile("model file", cfg.Whisper.ModelPath))
	}
	return append(results, checkBackend(cfg, logger))
}

func checkConfig(cfg *config.Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Name: "config", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "config", Pass: true, Detail: "valid"}
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkWritableDir(label, dir string) Result {
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".segcut-doctor-*")
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Result{Name: label, Pass: true, Detail: dir}
}

func checkExecutable(label, cmd string) Result {
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set classify.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkService(ctx context.Context, url string) Result {
	const label = "classify.url"
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/health", nil)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("health: %s", resp.Status)}
	}
	return Result{Name: label, Pass: true, Detail: url}
}

// checkBackend constructs the classifier, which catches backends not compiled
// into this binary and models that fail to load.
func checkBackend(cfg *config.Config, logger *logrus.Logger) Result {
	name := "backend " + strings.ToLower(cfg.Classify.Backend)
	c, err := classify.New(cfg, logger)
	if err != nil {
		return Result{Name: name, Pass: false, Detail: err.Error()}
	}
	if err := classify.Close(c); err != nil {
		return Result{Name: name, Pass: false, Detail: err.Error()}
	}
	return Result{Name: name, Pass: true, Detail: "ready"}
}
