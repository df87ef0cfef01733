package llm

// SystemPrompt is prepended to every chat round trip.
const SystemPrompt = `You are a helpful command-line assistant. You can read and write files, list directories, run code, translate text, summarize, calculate, and search the web on the user's behalf. Answer concisely. When the user asks for code, provide working code in a fenced block with a language tag.`

// Per-operation sampling presets. Chat stays creative; tool-backed
// operations run cooler for determinism.
var (
	ChatOptions      = Options{Temperature: 0.7, MaxTokens: 1500}
	TranslateOptions = Options{Temperature: 0.3, MaxTokens: 800}
	CodeOptions      = Options{Temperature: 0.2, MaxTokens: 1500}
	SummaryOptions   = Options{Temperature: 0.3, MaxTokens: 500}
)
