package llm

import "strings"

// Qwen3 thinking models wrap their reasoning trace in <think> tags
// before the actual answer.
const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// SplitThinking separates a reasoning trace from the answer text.
// Text without a think block comes back unchanged with an empty trace.
// An unclosed block is treated as all trace and no answer.
func SplitThinking(text string) (thinking, answer string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, thinkOpen) {
		return "", text
	}

	rest := trimmed[len(thinkOpen):]
	idx := strings.Index(rest, thinkClose)
	if idx < 0 {
		return strings.TrimSpace(rest), ""
	}
	return strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+len(thinkClose):])
}

// StreamSplitter separates thinking from answer text incrementally as
// stream deltas arrive. Feed deltas in order; ThinkingDelta and
// AnswerDelta report how much of each the latest Feed produced.
type StreamSplitter struct {
	buf       strings.Builder
	inThink   bool
	decided   bool
	thinkDone bool
}

// Feed consumes one delta and returns the thinking and answer portions
// it contributed. Portions may be empty while the splitter is still
// deciding whether the stream opens with a think block.
func (s *StreamSplitter) Feed(delta string) (thinking, answer string) {
	s.buf.WriteString(delta)

	if !s.decided {
		seen := strings.TrimLeft(s.buf.String(), " \t\r\n")
		switch {
		case seen == "":
			return "", ""
		case strings.HasPrefix(seen, thinkOpen):
			s.inThink = true
			s.decided = true
			s.buf.Reset()
			s.buf.WriteString(seen[len(thinkOpen):])
		case strings.HasPrefix(thinkOpen, seen):
			// Could still become an opening tag.
			return "", ""
		default:
			s.decided = true
		}
	}

	if s.inThink && !s.thinkDone {
		content := s.buf.String()
		if idx := strings.Index(content, thinkClose); idx >= 0 {
			s.thinkDone = true
			thinking = content[:idx]
			answer = content[idx+len(thinkClose):]
			s.buf.Reset()
			return thinking, answer
		}
		// Hold back a partial closing tag at the buffer tail.
		safe := len(content)
		for i := 1; i < len(thinkClose) && i <= len(content); i++ {
			if strings.HasSuffix(content, thinkClose[:i]) {
				safe = len(content) - i
			}
		}
		thinking = content[:safe]
		rest := content[safe:]
		s.buf.Reset()
		s.buf.WriteString(rest)
		return thinking, ""
	}

	answer = s.buf.String()
	s.buf.Reset()
	return "", answer
}
