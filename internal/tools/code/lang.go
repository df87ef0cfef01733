// Package code runs user-supplied snippets: scripting languages through
// interpreter subprocesses, Go through an in-process sandboxed
// interpreter.
package code

import "strings"

// lang describes one subprocess-backed language entry.
type lang struct {
	// Name is the canonical language name.
	Name string

	// Binary is the interpreter executable.
	Binary string

	// Args precede the temp file path on the command line.
	Args []string

	// Ext is the temp file extension, dot included.
	Ext string
}

// langTable maps language names and aliases to their entries. The "go"
// language is handled separately by the in-process interpreter.
var langTable = map[string]lang{
	"python":     {Name: "python", Binary: "python3", Ext: ".py"},
	"python3":    {Name: "python", Binary: "python3", Ext: ".py"},
	"py":         {Name: "python", Binary: "python3", Ext: ".py"},
	"javascript": {Name: "javascript", Binary: "node", Ext: ".js"},
	"js":         {Name: "javascript", Binary: "node", Ext: ".js"},
	"node":       {Name: "javascript", Binary: "node", Ext: ".js"},
	"bash":       {Name: "bash", Binary: "bash", Ext: ".sh"},
	"sh":         {Name: "sh", Binary: "sh", Ext: ".sh"},
	"shell":      {Name: "bash", Binary: "bash", Ext: ".sh"},
	"ruby":       {Name: "ruby", Binary: "ruby", Ext: ".rb"},
	"rb":         {Name: "ruby", Binary: "ruby", Ext: ".rb"},
}

// goAliases are the names routed to the in-process interpreter.
var goAliases = map[string]bool{
	"go":     true,
	"golang": true,
}

// Normalize lowercases and trims a language tag.
func Normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// Supported lists the canonical language names for help output.
func Supported() []string {
	return []string{"python", "javascript", "bash", "sh", "ruby", "go"}
}
