package tools

import (
	"context"
	"errors"
	"testing"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return StringArg(args, "text"), nil
		},
		Schema: ToolSchema{
			Required: []string{"text"},
			Properties: map[string]Property{
				"text": {Type: "string", Description: "text to echo"},
			},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if got := r.Get("echo"); got == nil || got.Name != "echo" {
		t.Errorf("Get returned %v", got)
	}
	if r.Get("missing") != nil {
		t.Error("Get for unregistered name should be nil")
	}
	if !r.Has("echo") || r.Has("missing") {
		t.Error("Has gave wrong answers")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		tool    *Tool
		wantErr error
	}{
		{"empty name", &Tool{Execute: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }}, ErrToolNameEmpty},
		{"nil execute", &Tool{Name: "broken"}, ErrToolExecuteNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.tool)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatal(err)
	}
	err := r.Register(echoTool("echo"))
	if !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Errorf("got %v, want ErrToolAlreadyRegistered", err)
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(echoTool(n)); err != nil {
			t.Fatal(err)
		}
	}

	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		if names[i] != w {
			t.Errorf("Names[%d] = %s, want %s", i, names[i], w)
		}
	}
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo"))

	res, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsSuccess() || res.Result != "hello" {
		t.Errorf("result = %+v", res)
	}
	if res.ToolName != "echo" {
		t.Errorf("ToolName = %s", res.ToolName)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "ghost", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("got %v, want ErrToolNotFound", err)
	}
}

func TestExecuteMissingRequiredArg(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo"))

	res, err := r.Execute(context.Background(), "echo", map[string]any{})
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Errorf("got %v, want ErrMissingRequiredArg", err)
	}
	if res == nil || res.IsSuccess() {
		t.Error("expected failed ToolResult")
	}
}
