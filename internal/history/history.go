// Package history holds the conversation transcript: an append-only
// sequence of turns with a soft length cap, JSON session persistence,
// and a token budget estimator.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sentinel errors for session persistence.
var (
	// ErrCorruptSession indicates the session file exists but could not
	// be parsed. The store starts empty; the broken file is left in place.
	ErrCorruptSession = errors.New("session file is corrupt")

	// ErrPersistence indicates the session file could not be read or
	// written for reasons other than its contents.
	ErrPersistence = errors.New("session persistence failed")
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one entry in the conversation. Immutable once appended.
type Turn struct {
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	ToolName string    `json:"tool,omitempty"`
	Time     time.Time `json:"time,omitempty"`
}

// sessionFile is the on-disk session document.
type sessionFile struct {
	History []Turn `json:"history"`
}

// History is a bounded conversation transcript. When a configured soft
// cap is exceeded on append, the store trims itself to a trailing window.
// Safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	turns    []Turn
	maxTurns int
	trimTo   int
}

// New creates a history store. maxTurns <= 0 disables the soft cap;
// trimTo is the trailing window kept after a trim.
func New(maxTurns, trimTo int) *History {
	if trimTo > maxTurns {
		trimTo = maxTurns
	}
	return &History{
		maxTurns: maxTurns,
		trimTo:   trimTo,
	}
}

// Append adds a turn. If the store grows past the soft cap it trims
// itself to the trailing window.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t.Time.IsZero() {
		t.Time = time.Now()
	}
	h.turns = append(h.turns, t)

	if h.maxTurns > 0 && len(h.turns) > h.maxTurns {
		h.trimLocked(h.trimTo)
	}
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Snapshot returns a copy of the transcript in order.
func (h *History) Snapshot() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Trim keeps at most the trailing maxTurns turns.
func (h *History) Trim(maxTurns int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trimLocked(maxTurns)
}

// trimLocked keeps the trailing window. If the first surviving turn is
// an assistant reply whose matching user turn fell off, that turn is
// dropped too so the window starts on a user turn.
func (h *History) trimLocked(keep int) {
	if keep < 0 {
		keep = 0
	}
	if len(h.turns) <= keep {
		return
	}
	h.turns = h.turns[len(h.turns)-keep:]

	if len(h.turns) > 0 && h.turns[0].Role == RoleAssistant {
		h.turns = h.turns[1:]
	}
}

// Clear removes all turns.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// Chars returns the total content length in runes across all turns.
func (h *History) Chars() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, t := range h.turns {
		total += len([]rune(t.Content))
	}
	return total
}

// Load reads the session file into the store, replacing its contents.
// A missing file is a fresh session, not an error. A malformed file
// returns ErrCorruptSession and leaves the store empty; a file that
// cannot be read at all returns ErrPersistence.
func (h *History) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	var doc sessionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = doc.History
	return nil
}

// Save writes the session file atomically (temp file then rename).
// Failures are reported as ErrPersistence.
func (h *History) Save(path string) error {
	doc := sessionFile{History: h.Snapshot()}
	if doc.History == nil {
		doc.History = []Turn{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
