package history

// charsPerToken is the fixed estimation divisor. Roughly right for
// English prose and code against Qwen-family tokenizers; this is an
// estimate, never an exact count.
const charsPerToken = 4

// EstimateTokens estimates the token footprint of the transcript as
// total content runes divided by a fixed divisor.
func EstimateTokens(h *History) int {
	return h.Chars() / charsPerToken
}

// Remaining returns the unused portion of a context window, floored at
// zero.
func Remaining(h *History, window int) int {
	left := window - EstimateTokens(h)
	if left < 0 {
		return 0
	}
	return left
}

// UsageRatio returns estimated usage as a fraction of the window,
// clamped to [0, 1]. A non-positive window reads as fully used.
func UsageRatio(h *History, window int) float64 {
	if window <= 0 {
		return 1.0
	}
	r := float64(EstimateTokens(h)) / float64(window)
	if r > 1.0 {
		return 1.0
	}
	return r
}
