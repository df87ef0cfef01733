package main

import (
	"path/filepath"
	"testing"

	"qwencli/internal/config"
	"qwencli/internal/history"
)

func testSession(t *testing.T) *chatSession {
	t.Helper()
	cfg := config.DefaultConfig()
	return &chatSession{
		id:        "testsess",
		workspace: t.TempDir(),
		cfg:       cfg,
		hist:      history.New(cfg.Session.MaxTurns, cfg.Session.TrimTo),
		styles:    newChatStyles(),
	}
}

func TestHandleMetaVerbs(t *testing.T) {
	tests := []struct {
		line    string
		handled bool
		quit    bool
	}{
		{"quit", true, true},
		{"exit", true, true},
		{"/q", true, true},
		{"QUIT", true, true},
		{"help", true, false},
		{"history", true, false},
		{"context", true, false},
		{"model", true, false},
		{"/model", true, false},
		{"clear", true, false},
		{"save", true, false},
		{"recall", true, false},
		{"recall budget talk", true, false},
		{"hello there", false, false},
		{"/read notes.txt", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := testSession(t)
			handled, quit := s.handleMeta(tt.line)
			if handled != tt.handled || quit != tt.quit {
				t.Errorf("handleMeta(%q) = (%v, %v), want (%v, %v)",
					tt.line, handled, quit, tt.handled, tt.quit)
			}
		})
	}
}

func TestHandleMetaClearResetsArchiveCursor(t *testing.T) {
	s := testSession(t)
	s.hist.Append(history.Turn{Role: history.RoleUser, Content: "hi"})
	s.hist.Append(history.Turn{Role: history.RoleAssistant, Content: "hello"})
	s.archived = 2

	handled, _ := s.handleMeta("clear")
	if !handled {
		t.Fatal("clear was not handled")
	}
	if s.hist.Len() != 0 {
		t.Errorf("history has %d turns after clear, want 0", s.hist.Len())
	}
	if s.archived != 0 {
		t.Errorf("archive cursor is %d after clear, want 0", s.archived)
	}
}

func TestHandleMetaSaveWritesSessionFile(t *testing.T) {
	s := testSession(t)
	s.hist.Append(history.Turn{Role: history.RoleUser, Content: "remember this"})

	handled, quit := s.handleMeta("save")
	if !handled || quit {
		t.Fatalf("handleMeta(save) = (%v, %v), want (true, false)", handled, quit)
	}

	loaded := history.New(10, 8)
	path := filepath.Join(s.workspace, s.cfg.Session.File)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("loading saved session: %v", err)
	}
	if loaded.Len() != 1 {
		t.Errorf("saved session has %d turns, want 1", loaded.Len())
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 100, "short"},
		{"line\nbreaks\nflattened", 100, "line breaks flattened"},
		{"abcdefghij", 5, "abcde..."},
		{"日本語のテキストです", 4, "日本語の..."},
	}

	for _, tt := range tests {
		if got := preview(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("preview(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestArchivePath(t *testing.T) {
	cfg := config.DefaultConfig()
	got := archivePath("/ws", cfg)
	want := filepath.Join("/ws", ".qwen", "archive.db")
	if got != want {
		t.Errorf("archivePath = %q, want %q", got, want)
	}

	cfg.Session.ArchivePath = "/abs/archive.db"
	if got := archivePath("/ws", cfg); got != "/abs/archive.db" {
		t.Errorf("absolute archive path rewritten to %q", got)
	}
}
