package code

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qwencli/internal/config"
	"qwencli/internal/logging"
	"qwencli/internal/runner"
	"qwencli/internal/tools"
)

// Executor runs snippets for the code runner tool.
type Executor struct {
	runner  runner.Runner
	timeout time.Duration
	workDir string
	maxOut  int64
}

// NewExecutor builds an executor from the execution config section.
func NewExecutor(cfg *config.Config) *Executor {
	return &Executor{
		timeout: cfg.GetExecutionTimeout(),
		workDir: cfg.Execution.WorkDir,
		maxOut:  cfg.Execution.MaxOutputBytes,
	}
}

// Run executes source in the named language and returns combined
// output. Unknown languages return ErrUnsupportedLanguage; a timeout
// returns ErrExecutionTimeout with the child killed and the temp file
// removed.
func (e *Executor) Run(ctx context.Context, language, source string) (string, error) {
	name := Normalize(language)

	if goAliases[name] {
		execCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return runGo(execCtx, source)
	}

	entry, ok := langTable[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)",
			tools.ErrUnsupportedLanguage, language, strings.Join(Supported(), ", "))
	}

	tmp, err := os.CreateTemp(e.workDir, "snippet-*"+entry.Ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(source); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}

	logging.Runner("code: %s snippet (%d bytes)", entry.Name, len(source))

	res, err := e.runner.Run(ctx, runner.Command{
		Binary:         entry.Binary,
		Args:           append(append([]string{}, entry.Args...), tmpPath),
		WorkingDir:     e.workDir,
		Timeout:        e.timeout,
		MaxOutputBytes: e.maxOut,
	})
	if err != nil {
		return "", err
	}

	output := res.Combined()
	if res.ExitCode != 0 {
		return output, fmt.Errorf("%s exited with status %d", entry.Name, res.ExitCode)
	}
	if res.Truncated {
		output += "\n[output truncated]"
	}
	return output, nil
}

// New builds the code runner tool.
func New(exec *Executor) *tools.Tool {
	return &tools.Tool{
		Name:        "code_runner",
		Description: "Executes a code snippet and returns its output",
		Schema: tools.ToolSchema{
			Required: []string{"language", "source"},
			Properties: map[string]tools.Property{
				"language": {Type: "string", Description: "language name, e.g. python, go, bash"},
				"source":   {Type: "string", Description: "snippet source code"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			language := tools.StringArg(args, "language")
			source := tools.StringArg(args, "source")
			if strings.TrimSpace(source) == "" {
				return "", fmt.Errorf("%w: source", tools.ErrMissingRequiredArg)
			}
			return exec.Run(ctx, language, source)
		},
	}
}

// CleanupTempFiles removes stale snippet temp files, best effort.
// Called on startup so crashed sessions do not accumulate litter.
func CleanupTempFiles(workDir string) {
	if workDir == "" {
		workDir = os.TempDir()
	}
	matches, err := filepath.Glob(filepath.Join(workDir, "snippet-*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}
