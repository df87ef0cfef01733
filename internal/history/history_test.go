package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func userTurn(i int) Turn {
	return Turn{Role: RoleUser, Content: fmt.Sprintf("question %d", i)}
}

func assistantTurn(i int) Turn {
	return Turn{Role: RoleAssistant, Content: fmt.Sprintf("answer %d", i)}
}

func TestAppendAndSnapshot(t *testing.T) {
	h := New(100, 80)
	h.Append(userTurn(1))
	h.Append(assistantTurn(1))

	snap := h.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(snap))
	}
	if snap[0].Role != RoleUser || snap[1].Role != RoleAssistant {
		t.Errorf("unexpected roles: %q, %q", snap[0].Role, snap[1].Role)
	}

	// Snapshot is a copy; mutating it must not affect the store.
	snap[0].Content = "mutated"
	if h.Snapshot()[0].Content == "mutated" {
		t.Error("Snapshot aliases internal storage")
	}
}

func TestTrimKeepsTrailingWindow(t *testing.T) {
	h := New(0, 0)
	for i := 0; i < 10; i++ {
		h.Append(userTurn(i))
		h.Append(assistantTurn(i))
	}

	h.Trim(6)

	snap := h.Snapshot()
	if len(snap) != 6 {
		t.Fatalf("expected 6 turns after trim, got %d", len(snap))
	}
	// Window is 6, even, so it starts on a user turn and order is preserved.
	want := []string{"question 7", "answer 7", "question 8", "answer 8", "question 9", "answer 9"}
	for i, w := range want {
		if snap[i].Content != w {
			t.Errorf("turn %d: got %q, want %q", i, snap[i].Content, w)
		}
	}
}

func TestTrimAvoidsSplitPair(t *testing.T) {
	h := New(0, 0)
	for i := 0; i < 5; i++ {
		h.Append(userTurn(i))
		h.Append(assistantTurn(i))
	}

	// Odd window would start on an orphaned assistant turn; it gets dropped.
	h.Trim(5)

	snap := h.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(snap))
	}
	if snap[0].Role != RoleUser {
		t.Errorf("window starts on %q, want user", snap[0].Role)
	}
}

func TestSoftCapTriggersOnAppend(t *testing.T) {
	h := New(100, 80)
	for i := 0; i < 101; i++ {
		h.Append(userTurn(i))
	}

	// 101st append exceeds the cap and trims to the trailing window.
	if got := h.Len(); got != 80 {
		t.Fatalf("expected 80 turns after soft-cap trim, got %d", got)
	}
	if first := h.Snapshot()[0].Content; first != "question 21" {
		t.Errorf("window starts at %q, want question 21", first)
	}
}

func TestTrimNoopWhenUnderWindow(t *testing.T) {
	h := New(0, 0)
	h.Append(userTurn(1))
	h.Trim(10)
	if h.Len() != 1 {
		t.Errorf("trim below length changed the store: %d turns", h.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".qwen", "session.json")

	h := New(100, 80)
	h.Append(Turn{Role: RoleUser, Content: "what is 2+2", Time: time.Now()})
	h.Append(Turn{Role: RoleAssistant, Content: "4", Time: time.Now()})
	h.Append(Turn{Role: RoleTool, Content: "22", ToolName: "calculator", Time: time.Now()})

	if err := h.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New(100, 80)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// JSON truncates monotonic clock readings; compare wall time only.
	opt := cmpopts.EquateApproxTime(time.Second)
	if diff := cmp.Diff(h.Snapshot(), loaded.Snapshot(), opt); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestLoadMissingFileIsFreshSession(t *testing.T) {
	h := New(100, 80)
	if err := h.Load(filepath.Join(t.TempDir(), "nope.json")); err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("expected empty history, got %d turns", h.Len())
	}
}

func TestLoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"history":[{"role":"user"`},
		{"wrong shape", `{"history":"not an array"}`},
		{"not json", "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			h := New(100, 80)
			err := h.Load(path)
			if !errors.Is(err, ErrCorruptSession) {
				t.Errorf("expected ErrCorruptSession, got %v", err)
			}
			if h.Len() != 0 {
				t.Errorf("store should stay empty after corrupt load, has %d turns", h.Len())
			}
		})
	}
}

func TestLoadAcceptsMinimalFormat(t *testing.T) {
	// Session files written by earlier versions carry only role/content.
	path := filepath.Join(t.TempDir(), "session.json")
	doc := `{"history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	h := New(100, 80)
	if err := h.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Len() != 2 {
		t.Fatalf("expected 2 turns, got %d", h.Len())
	}
}

func TestLoadUnreadableFileIsPersistenceError(t *testing.T) {
	// A directory at the session path reads as EISDIR, not ENOENT.
	// That is an I/O problem, not a corrupt file.
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}

	h := New(100, 80)
	err := h.Load(path)
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
	if errors.Is(err, ErrCorruptSession) {
		t.Error("unreadable file must not be reported as corrupt")
	}
}

func TestSaveFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	h := New(100, 80)
	h.Append(userTurn(1))

	// Parent "directory" is a regular file, so MkdirAll fails.
	err := h.Save(filepath.Join(blocker, "session.json"))
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}

func TestClear(t *testing.T) {
	h := New(100, 80)
	h.Append(userTurn(1))
	h.Append(assistantTurn(1))
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("expected empty history after Clear, got %d", h.Len())
	}
}
