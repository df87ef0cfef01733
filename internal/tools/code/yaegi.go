package code

import (
	"bytes"
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"qwencli/internal/runner"
)

// Go snippets are interpreted in-process rather than shelled out to a
// toolchain: no compile step to hang on, no binary to clean up. The
// interpreter only sees whitelisted stdlib packages, so snippets cannot
// touch the filesystem, the network, or exec.
var allowedGoImports = map[string]bool{
	"fmt":             true,
	"strings":         true,
	"strconv":         true,
	"math":            true,
	"math/rand":       true,
	"regexp":          true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"sort":            true,
	"bytes":           true,
	"unicode":         true,
	"errors":          true,

	// Blocked: os, os/exec, net, net/http, syscall, unsafe, plugin.
}

// goSnippet is a snippet split into its validated parts.
type goSnippet struct {
	// program holds the full-program form; empty for bare statements.
	program string

	// imports and body carry the REPL form for bare statements: the
	// import paths, then the source with import declarations stripped.
	imports []string
	body    string
}

// runGo interprets a Go snippet with captured output. A context
// deadline maps to ErrExecutionTimeout; the interpreter goroutine
// cannot be killed mid-eval, so it is abandoned on timeout.
func runGo(ctx context.Context, source string) (string, error) {
	snip, err := splitGoSource(source)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	i := interp.New(interp.Options{
		Stdout: &out,
		Stderr: &out,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", fmt.Errorf("load stdlib symbols: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- evalGo(i, snip)
	}()

	select {
	case err := <-done:
		if err != nil {
			return out.String(), fmt.Errorf("go evaluation failed: %w", err)
		}
		return out.String(), nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return out.String(), runner.ErrExecutionTimeout
		}
		return out.String(), ctx.Err()
	}
}

// evalGo runs a prepared snippet. A full program evaluates whole and
// the interpreter invokes its main. Bare statements go through REPL
// mode: each import on its own Eval, then the statement body.
func evalGo(i *interp.Interpreter, snip goSnippet) error {
	if snip.program != "" {
		_, err := i.Eval(snip.program)
		return err
	}
	for _, imp := range snip.imports {
		if _, err := i.Eval(fmt.Sprintf("import %q", imp)); err != nil {
			return err
		}
	}
	_, err := i.Eval(snip.body)
	return err
}

// splitGoSource classifies the snippet, parses its import section, and
// rejects anything outside the whitelist. The import scan is a real
// parse (go/parser, ImportsOnly), so one-line groups like
// `import ("os")` and multiple declarations per line are all seen.
func splitGoSource(source string) (goSnippet, error) {
	trimmed := strings.TrimSpace(source)

	wrapped := source
	isProgram := strings.HasPrefix(trimmed, "package ")
	if !isProgram {
		wrapped = "package main\n" + source
		isProgram = strings.Contains(source, "func main(")
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "snippet.go", wrapped, parser.ImportsOnly)
	if err != nil {
		return goSnippet{}, fmt.Errorf("parse imports: %w", err)
	}

	var imports, forbidden []string
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return goSnippet{}, fmt.Errorf("malformed import %s", spec.Path.Value)
		}
		imports = append(imports, path)
		if !allowedGoImports[path] {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) > 0 {
		return goSnippet{}, fmt.Errorf("forbidden imports: %s", strings.Join(forbidden, ", "))
	}

	if isProgram {
		return goSnippet{program: wrapped}, nil
	}

	// Slicing past the last import declaration also drops the injected
	// package clause.
	body := source
	if n := len(file.Decls); n > 0 {
		body = wrapped[fset.Position(file.Decls[n-1].End()).Offset:]
	}
	return goSnippet{imports: imports, body: body}, nil
}
