// Package file provides the file reader, writer and lister tools.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"qwencli/internal/config"
	"qwencli/internal/logging"
	"qwencli/internal/tools"
)

// listLimit caps directory listings for display.
const listLimit = 20

// Ops holds file tool configuration.
type Ops struct {
	// root, when set, confines every path to this directory.
	root string

	// displayLimit caps read output shown to the user, in bytes.
	displayLimit int
}

// NewOps builds file operations from the tools config section.
func NewOps(cfg *config.Config) *Ops {
	limit := cfg.Tools.ReadDisplayLimit
	if limit <= 0 {
		limit = 4096
	}
	return &Ops{
		root:         cfg.Tools.FileRoot,
		displayLimit: limit,
	}
}

// resolve applies root containment when configured.
func (o *Ops) resolve(path string) (string, error) {
	if o.root == "" {
		return path, nil
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(o.root, path)
	}
	abs = filepath.Clean(abs)

	rootAbs, err := filepath.Abs(o.root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the configured root", path)
	}
	return abs, nil
}

// Read returns file contents truncated for display.
func (o *Ops) Read(path string) (string, error) {
	resolved, err := o.resolve(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", tools.ErrNotFound, path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	logging.Tools("file: read %s (%d bytes)", path, len(data))

	if len(data) > o.displayLimit {
		shown := string(data[:o.displayLimit])
		return fmt.Sprintf("%s\n... [truncated, %d of %d bytes shown]",
			shown, o.displayLimit, len(data)), nil
	}
	return string(data), nil
}

// Write stores content at path, creating parent directories.
func (o *Ops) Write(path, content string) (string, error) {
	resolved, err := o.resolve(path)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("%w: %s: %v", tools.ErrWrite, path, err)
		}
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("%w: %s: %v", tools.ErrWrite, path, err)
	}

	logging.Tools("file: wrote %s (%d bytes)", path, len(content))
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// List returns a directory listing capped at listLimit entries.
func (o *Ops) List(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	resolved, err := o.resolve(dir)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", tools.ErrNotFound, dir)
		}
		return "", fmt.Errorf("list %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var b strings.Builder
	shown := len(entries)
	if shown > listLimit {
		shown = listLimit
	}
	for _, e := range entries[:shown] {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
			continue
		}
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(&b, "%s\n", e.Name())
			continue
		}
		fmt.Fprintf(&b, "%s (%d bytes)\n", e.Name(), info.Size())
	}
	if len(entries) > listLimit {
		fmt.Fprintf(&b, "... and %d more\n", len(entries)-listLimit)
	}
	if b.Len() == 0 {
		return "(empty directory)", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// NewReader builds the file reader tool.
func NewReader(ops *Ops) *tools.Tool {
	return &tools.Tool{
		Name:        "file_read",
		Description: "Reads a file and shows its contents",
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {Type: "string", Description: "file path"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return ops.Read(tools.StringArg(args, "path"))
		},
	}
}

// NewWriter builds the file writer tool.
func NewWriter(ops *Ops) *tools.Tool {
	return &tools.Tool{
		Name:        "file_write",
		Description: "Writes content to a file",
		Schema: tools.ToolSchema{
			Required: []string{"path", "content"},
			Properties: map[string]tools.Property{
				"path":    {Type: "string", Description: "file path"},
				"content": {Type: "string", Description: "content to write"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return ops.Write(tools.StringArg(args, "path"), tools.StringArg(args, "content"))
		},
	}
}

// NewLister builds the directory lister tool.
func NewLister(ops *Ops) *tools.Tool {
	return &tools.Tool{
		Name:        "file_list",
		Description: "Lists a directory",
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"dir": {Type: "string", Description: "directory path", Default: "."},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return ops.List(tools.StringArg(args, "dir"))
		},
	}
}
