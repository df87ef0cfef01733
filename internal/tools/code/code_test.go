package code

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"qwencli/internal/config"
	"qwencli/internal/runner"
	"qwencli/internal/tools"
)

func testExecutor(t *testing.T) *Executor {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Execution.WorkDir = t.TempDir()
	cfg.Execution.Timeout = "10s"
	return NewExecutor(cfg)
}

func requireInterpreter(t *testing.T, binary string) {
	t.Helper()
	if !(runner.Runner{}).LookPath(binary) {
		t.Skipf("%s not on PATH", binary)
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	e := testExecutor(t)

	_, err := e.Run(context.Background(), "cobol", `DISPLAY "HELLO".`)
	if !errors.Is(err, tools.ErrUnsupportedLanguage) {
		t.Fatalf("got %v, want ErrUnsupportedLanguage", err)
	}
	if !strings.Contains(err.Error(), "cobol") {
		t.Errorf("error should name the language: %v", err)
	}
}

func TestRunLanguageAliases(t *testing.T) {
	tests := []struct {
		alias string
		want  string
	}{
		{"python", "python"},
		{"py", "python"},
		{"Python3", "python"},
		{"js", "javascript"},
		{"node", "javascript"},
		{"shell", "bash"},
		{"rb", "ruby"},
	}
	for _, tt := range tests {
		entry, ok := langTable[Normalize(tt.alias)]
		if !ok {
			t.Errorf("alias %q not in table", tt.alias)
			continue
		}
		if entry.Name != tt.want {
			t.Errorf("alias %q -> %q, want %q", tt.alias, entry.Name, tt.want)
		}
	}
}

func TestRunShellSnippet(t *testing.T) {
	requireInterpreter(t, "sh")
	e := testExecutor(t)

	out, err := e.Run(context.Background(), "sh", "echo snippet ran")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "snippet ran") {
		t.Errorf("output %q", out)
	}
}

func TestRunPythonSnippet(t *testing.T) {
	requireInterpreter(t, "python3")
	e := testExecutor(t)

	out, err := e.Run(context.Background(), "python", "print(6 * 7)")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "42") {
		t.Errorf("output %q", out)
	}
}

func TestRunNonZeroExitSurfacesOutput(t *testing.T) {
	requireInterpreter(t, "sh")
	e := testExecutor(t)

	out, err := e.Run(context.Background(), "sh", "echo broken >&2; exit 1")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(out, "broken") {
		t.Errorf("stderr should be in output, got %q", out)
	}
}

func TestRunTimeoutRemovesTempFile(t *testing.T) {
	requireInterpreter(t, "sh")

	cfg := config.DefaultConfig()
	workDir := t.TempDir()
	cfg.Execution.WorkDir = workDir
	cfg.Execution.Timeout = "200ms"
	e := NewExecutor(cfg)

	_, err := e.Run(context.Background(), "sh", "sleep 10")
	if !errors.Is(err, runner.ErrExecutionTimeout) {
		t.Fatalf("got %v, want ErrExecutionTimeout", err)
	}

	matches, globErr := filepath.Glob(filepath.Join(workDir, "snippet-*"))
	if globErr != nil {
		t.Fatal(globErr)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestRunGoSnippet(t *testing.T) {
	e := testExecutor(t)

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"bare statements",
			`import "fmt"
fmt.Println("hello from go")`,
			"hello from go",
		},
		{
			"full program",
			`package main

import "fmt"

func main() {
	sum := 0
	for i := 1; i <= 10; i++ {
		sum += i
	}
	fmt.Println(sum)
}`,
			"55",
		},
		{
			"bare statements with import group",
			`import (
	"fmt"
	"strings"
)
fmt.Println(strings.Repeat("ab", 2))`,
			"abab",
		},
		{
			"main without package clause",
			`import "strings"

func main() {
	println(strings.ToUpper("ok"))
}`,
			"OK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Run(context.Background(), "go", tt.source)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q should contain %q", out, tt.want)
			}
		})
	}
}

func TestRunGoForbiddenImports(t *testing.T) {
	e := testExecutor(t)

	for _, src := range []string{
		`import "os/exec"` + "\n" + `exec.Command("ls").Run()`,
		`import (
	"fmt"
	"net/http"
)
fmt.Println(http.StatusOK)`,
		`import ("os")` + "\n" + `os.Getpid()`,
		`import "fmt"; import "os"` + "\n" + `fmt.Println(os.Getpid())`,
		`package main

import ("os")

func main() {
	os.Exit(1)
}`,
	} {
		_, err := e.Run(context.Background(), "go", src)
		if err == nil {
			t.Errorf("source with forbidden import must be rejected:\n%s", src)
			continue
		}
		if !strings.Contains(err.Error(), "forbidden imports") {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

func TestRunGoBlockedImportCannotWrite(t *testing.T) {
	e := testExecutor(t)
	target := filepath.Join(t.TempDir(), "escape.txt")

	src := `package main

import ("os")

func main() {
	os.WriteFile("` + target + `", []byte("escaped"), 0644)
}`
	_, err := e.Run(context.Background(), "go", src)
	if err == nil {
		t.Fatal("blocked import in one-line group must be rejected")
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Errorf("snippet wrote %s despite blocked os import", target)
	}
}

func TestRunGoTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Execution.Timeout = "200ms"
	e := NewExecutor(cfg)

	start := time.Now()
	_, err := e.Run(context.Background(), "go", "for {}")
	if !errors.Is(err, runner.ErrExecutionTimeout) {
		t.Fatalf("got %v, want ErrExecutionTimeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not fire promptly")
	}
}

func TestCodeRunnerTool(t *testing.T) {
	requireInterpreter(t, "sh")
	tool := New(testExecutor(t))

	out, err := tool.Execute(context.Background(), map[string]any{
		"language": "sh",
		"source":   "echo via tool",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "via tool") {
		t.Errorf("output %q", out)
	}

	_, err = tool.Execute(context.Background(), map[string]any{
		"language": "sh",
		"source":   "   ",
	})
	if !errors.Is(err, tools.ErrMissingRequiredArg) {
		t.Errorf("blank source: got %v", err)
	}
}

func TestCleanupTempFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "snippet-stale.py")
	if err := os.WriteFile(stale, []byte("print(1)"), 0644); err != nil {
		t.Fatal(err)
	}

	CleanupTempFiles(dir)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file not removed")
	}
}
