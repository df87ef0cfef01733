// Package intent infers tool invocations from conversation text. It is
// a stateless lexical classifier: pattern groups are evaluated in a
// fixed priority order, the first group that both matches and extracts
// usable arguments wins, and at most one invocation fires per turn.
//
// The heuristics deliberately favor precision over recall. A missed
// invocation costs the user a retype; a spurious one runs code or
// writes a file they never asked for.
package intent

import (
	"regexp"
	"strings"

	"qwencli/internal/logging"
)

// Invocation is one inferred tool request.
type Invocation struct {
	// Tool is the registry name to execute.
	Tool string

	// Args is the tool-specific payload.
	Args map[string]any
}

// group pairs a name with an extractor. A nil return means the group
// declined; evaluation continues down the table.
type group struct {
	name    string
	extract func(d *Detector, assistantText, userText string) *Invocation
}

// Detector evaluates the pattern table.
type Detector struct {
	// defaultLanguage is assumed for quoted snippets with no tag.
	defaultLanguage string

	groups []group
}

// New creates a detector. defaultLanguage applies to untagged quoted
// code fragments; empty means python.
func New(defaultLanguage string) *Detector {
	if defaultLanguage == "" {
		defaultLanguage = "python"
	}
	return &Detector{
		defaultLanguage: defaultLanguage,
		// Priority order is fixed. Search outranks calculation so a
		// query mentioning numbers is not miscomputed; code outranks
		// translation so a quoted snippet is not mistranslated.
		groups: []group{
			{"search", (*Detector).extractSearch},
			{"calculation", (*Detector).extractCalculation},
			{"code", (*Detector).extractCode},
			{"translation", (*Detector).extractTranslation},
			{"file", (*Detector).extractFile},
		},
	}
}

// Detect returns the first inferred invocation, or nil when no group
// fires. Evaluated once per assistant turn.
func (d *Detector) Detect(assistantText, userText string) *Invocation {
	for _, g := range d.groups {
		if inv := g.extract(d, assistantText, userText); inv != nil {
			logging.Intent("detected %s intent -> %s", g.name, inv.Tool)
			return inv
		}
	}
	logging.IntentDebug("no intent detected")
	return nil
}

// --- search ---

var (
	searchCue     = regexp.MustCompile(`(?i)\b(search(\s+the\s+web)?(\s+for)?|look\s+up|google)\b`)
	searchStrip   = regexp.MustCompile(`(?i)^\s*(please\s+)?(can\s+you\s+)?(search(\s+the\s+web)?(\s+for)?|look\s+up|google(\s+for)?)\s*:?\s*`)
	trailingPunct = regexp.MustCompile(`[?.!\s]+$`)
)

// extractSearch checks both sides of the turn for the cue, the user's
// phrasing first. Mid-sentence cues (typical of assistant replies like
// "I will search for X") take the remainder of that sentence as query.
func (d *Detector) extractSearch(assistantText, userText string) *Invocation {
	for _, text := range []string{userText, assistantText} {
		loc := searchCue.FindStringIndex(text)
		if loc == nil {
			continue
		}

		query := searchStrip.ReplaceAllString(text, "")
		if query == text {
			query = text[loc[1]:]
			if i := strings.IndexAny(query, "\n.?!"); i >= 0 {
				query = query[:i]
			}
		}
		query = trailingPunct.ReplaceAllString(query, "")
		query = strings.Trim(query, `"'`)
		if strings.TrimSpace(query) == "" {
			continue
		}

		return &Invocation{
			Tool: "search",
			Args: map[string]any{"query": strings.TrimSpace(query)},
		}
	}
	return nil
}

// --- calculation ---

var (
	calcTrigger   = regexp.MustCompile(`(?i)\b(calculate|compute|solve|what(?:'s|\s+is))\b`)
	reWhatIs      = regexp.MustCompile(`(?i)\bwhat(?:'s|\s+is)\s+([^?]+)`)
	reCalculate   = regexp.MustCompile(`(?i)\bcalculate\s+([^?]+)`)
	reSolve       = regexp.MustCompile(`(?i)\b(?:solve|compute)\s+([^?]+)`)
	reArithRun    = regexp.MustCompile(`[-(]?\s*\d[\d.\s]*(?:[-+*/%^]\s*\(*\s*-?\s*[\d.][\d.\s()]*)+\)?`)
	reLastClause  = regexp.MustCompile(`([^,;?]+)\?\s*$`)
	containsDigit = regexp.MustCompile(`\d`)
)

// standaloneArithRun finds an arithmetic token run that is not part of
// a call or identifier, so "1 + 1" inside print(1 + 1) does not read as
// a calculation request.
func standaloneArithRun(s string) string {
	for _, loc := range reArithRun.FindAllStringIndex(s, -1) {
		if loc[0] > 0 {
			prev := s[loc[0]-1]
			if prev == '(' || prev == '_' || isLetter(prev) {
				continue
			}
		}
		return s[loc[0]:loc[1]]
	}
	return ""
}

func (d *Detector) extractCalculation(assistantText, userText string) *Invocation {
	for _, text := range []string{userText, assistantText} {
		if inv := d.calculationIn(text); inv != nil {
			return inv
		}
	}
	return nil
}

func (d *Detector) calculationIn(userText string) *Invocation {
	if !calcTrigger.MatchString(userText) && standaloneArithRun(userText) == "" {
		return nil
	}

	// Extraction rules in priority order; the first that yields text
	// with a digit wins.
	candidates := []func(string) string{
		func(s string) string {
			if m := reLastClause.FindStringSubmatch(s); m != nil {
				if run := standaloneArithRun(m[1]); run != "" {
					return run
				}
			}
			return ""
		},
		func(s string) string {
			if m := reWhatIs.FindStringSubmatch(s); m != nil {
				return m[1]
			}
			return ""
		},
		func(s string) string {
			if m := reCalculate.FindStringSubmatch(s); m != nil {
				return m[1]
			}
			return ""
		},
		func(s string) string {
			if m := reSolve.FindStringSubmatch(s); m != nil {
				return m[1]
			}
			return ""
		},
		func(s string) string { return standaloneArithRun(s) },
	}

	for _, f := range candidates {
		expr := strings.TrimSpace(trailingPunct.ReplaceAllString(f(userText), ""))
		if expr == "" || !containsDigit.MatchString(expr) {
			continue
		}
		return &Invocation{
			Tool: "calculator",
			Args: map[string]any{"expression": expr},
		}
	}
	return nil
}

// --- code ---

var (
	runCue      = regexp.MustCompile(`(?i)\b(run|execute)\b`)
	fencedBlock = regexp.MustCompile("(?s)```([a-zA-Z0-9+]*)\\s*\\n(.*?)```")
	runClause   = regexp.MustCompile(`(?i)\b(?:run|execute)\s+(?:this|it)?\s*:\s*(.+)$`)
	quotedFrag  = regexp.MustCompile("`([^`\n]+)`|\"([^\"\n]+)\"|'([^'\n]+)'")
)

func (d *Detector) extractCode(assistantText, userText string) *Invocation {
	if !runCue.MatchString(userText) && !runCue.MatchString(assistantText) {
		return nil
	}

	// A fenced block with a language tag is unambiguous. The user's
	// own block wins over the assistant's.
	for _, text := range []string{userText, assistantText} {
		if m := fencedBlock.FindStringSubmatch(text); m != nil {
			source := strings.TrimSpace(m[2])
			if source == "" {
				continue
			}
			language := strings.ToLower(m[1])
			if language == "" {
				language = d.defaultLanguage
			}
			return &Invocation{
				Tool: "code_runner",
				Args: map[string]any{"language": language, "source": source},
			}
		}
	}

	if m := runClause.FindStringSubmatch(userText); m != nil {
		source := strings.TrimSpace(m[1])
		// A clause that opens with a quote runs only the quoted part.
		if source != "" && (source[0] == '`' || source[0] == '"' || source[0] == '\'') {
			if q := quotedFrag.FindStringSubmatch(source); q != nil {
				source = firstNonEmpty(q[1:])
			}
		}
		if source != "" {
			return &Invocation{
				Tool: "code_runner",
				Args: map[string]any{"language": d.defaultLanguage, "source": source},
			}
		}
	}

	if m := quotedFrag.FindStringSubmatch(userText); m != nil {
		source := firstNonEmpty(m[1:])
		if strings.TrimSpace(source) != "" {
			return &Invocation{
				Tool: "code_runner",
				Args: map[string]any{"language": d.defaultLanguage, "source": source},
			}
		}
	}
	return nil
}

// --- translation ---

// languageNames are the targets the detector recognizes in prose.
var languageNames = []string{
	"english", "french", "spanish", "german", "italian", "portuguese",
	"dutch", "russian", "chinese", "japanese", "korean", "arabic",
	"hindi", "turkish", "polish", "swedish",
}

func (d *Detector) extractTranslation(assistantText, userText string) *Invocation {
	combined := strings.ToLower(assistantText + " " + userText)

	var target string
	for _, name := range languageNames {
		if containsWord(combined, name) {
			target = name
			break
		}
	}
	if target == "" {
		return nil
	}

	m := quotedFrag.FindStringSubmatch(userText)
	if m == nil {
		return nil
	}
	payload := firstNonEmpty(m[1:])
	if strings.TrimSpace(payload) == "" {
		return nil
	}

	return &Invocation{
		Tool: "translate",
		Args: map[string]any{"text": payload, "target": capitalize(target)},
	}
}

// --- file ---

var fileCue = regexp.MustCompile(`(?i)\b(read|open|write|save)\b.{0,40}\bfile\b|\bfile\b.{0,40}\b(read|open|write|save)\b`)

// extractFile recognizes the cue but never fires: there is no reliable
// way to pull a literal path out of prose, so file operations stay an
// explicit-command concern.
func (d *Detector) extractFile(assistantText, userText string) *Invocation {
	if fileCue.MatchString(userText) || fileCue.MatchString(assistantText) {
		logging.IntentDebug("file-operation cue present, left to explicit commands")
	}
	return nil
}

// --- helpers ---

func firstNonEmpty(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}

func containsWord(haystack, word string) bool {
	idx := strings.Index(haystack, word)
	for idx >= 0 {
		before := idx == 0 || !isLetter(haystack[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(haystack) || !isLetter(haystack[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(haystack[idx+1:], word)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
