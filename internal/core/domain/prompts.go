package domain

// Built-in answer prompts. Users may override them with files in the
// vault's prompts directory.
const (
	DefaultAnswerSystemPrompt = "You are a concise assistant. Answer the question using only the provided context. " +
		"Cite filenames and page numbers when relevant. If unsure, say you don't know."

	// DefaultAnswerPrompt takes the context block and the question.
	DefaultAnswerPrompt = "Context:\n%s\n\nQuestion: %s\nAnswer:"
)

// Fixed answer texts.
const (
	NoContextAnswer    = "No relevant context found in the local index."
	NoLLMAnswerPrefix  = "Local LLM not found. Returning a summary from the most relevant passages:"
	NoPassagesRetrieve = "No matching passages found in your vault."
)
