package driven

// Prompt names understood by PromptStore.
const (
	// PromptAnswerSystem is the system instruction for grounded answers.
	PromptAnswerSystem = "answer_system"

	// PromptAnswer formats the context block (%s) and the question (%s).
	PromptAnswer = "answer"
)

// PromptStore loads user-editable prompt templates.
type PromptStore interface {
	// Load returns the template for name, falling back to the built-in default.
	Load(name string) (string, error)
}
