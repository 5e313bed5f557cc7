package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcastone/vault/internal/core/domain"
	"github.com/arcastone/vault/internal/core/ports/driven"
	"github.com/arcastone/vault/internal/core/ports/driving"
	"github.com/arcastone/vault/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// DefaultAnswerTopK is the number of passages used as context.
const DefaultAnswerTopK = 5

// answerMaxTokens bounds generated answers.
const answerMaxTokens = 512

// AnswerService answers questions from the passages search retrieves.
type AnswerService struct {
	search  driving.SearchService
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewAnswerService creates an answer service. llm and prompts are
// optional: without an LLM answers are extractive, without a prompt
// store the built-in prompts are used.
func NewAnswerService(search driving.SearchService, llm driven.LLMService, prompts driven.PromptStore) *AnswerService {
	return &AnswerService{
		search:  search,
		llm:     llm,
		prompts: prompts,
	}
}

// Ask answers a question. The LLM only sees the retrieved passages; when it
// is missing or fails the passages themselves are returned.
func (s *AnswerService) Ask(ctx context.Context, question string, topK int) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question: %w", domain.ErrInvalidInput)
	}

	hits, err := s.retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &domain.Answer{Text: domain.NoContextAnswer, Sources: []domain.Citation{}}, nil
	}

	contextBlock := contextLines(hits)
	answer := &domain.Answer{Sources: citations(hits)}

	if s.llm == nil {
		answer.Text = domain.NoLLMAnswerPrefix + "\n\n" + contextBlock
		return answer, nil
	}

	text, err := s.llm.Generate(ctx, s.prompt(driven.PromptAnswer, domain.DefaultAnswerPrompt, contextBlock, question),
		driven.GenerateOptions{
			MaxTokens:    answerMaxTokens,
			SystemPrompt: s.load(driven.PromptAnswerSystem, domain.DefaultAnswerSystemPrompt),
		})
	if err == nil {
		text = strings.TrimSpace(text)
	}
	if err != nil || text == "" {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("LLM %s unavailable, answering extractively: %v", s.llm.ModelName(), err)
		answer.Text = domain.NoLLMAnswerPrefix + "\n\n" + contextBlock
		return answer, nil
	}

	answer.Text = text
	answer.Generated = true
	return answer, nil
}

// Retrieve returns the top passages as markdown quotes with citations.
func (s *AnswerService) Retrieve(ctx context.Context, query string, topK int) (*domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}

	hits, err := s.retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &domain.Answer{Text: domain.NoPassagesRetrieve, Sources: []domain.Citation{}}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Results for: %s\n", query)
	for _, hit := range hits {
		c := citation(hit)
		fmt.Fprintf(&b, "\n> %s\n— %s\n", hit.Snippet, c)
	}
	return &domain.Answer{Text: b.String(), Sources: citations(hits)}, nil
}

func (s *AnswerService) retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultAnswerTopK
	}
	hits, err := s.search.Search(ctx, query, domain.SearchOptions{Limit: topK})
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}
	return hits, nil
}

// load returns a prompt template, falling back to def.
func (s *AnswerService) load(name, def string) string {
	if s.prompts == nil {
		return def
	}
	p, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(p) == "" {
		logger.Debug("prompt %s: using built-in (%v)", name, err)
		return def
	}
	return p
}

// prompt fills a two-verb template with the context block and question.
// Templates without exactly two %s verbs fall back to def.
func (s *AnswerService) prompt(name, def, contextBlock, question string) string {
	tmpl := s.load(name, def)
	if strings.Count(tmpl, "%s") != 2 || strings.Count(tmpl, "%") != 2 {
		logger.Warn("prompt %s needs exactly two %%s placeholders, using built-in", name)
		tmpl = def
	}
	return fmt.Sprintf(tmpl, contextBlock, question)
}

func contextLines(hits []domain.SearchResult) string {
	lines := make([]string, len(hits))
	for i, hit := range hits {
		lines[i] = fmt.Sprintf("- %s: %s", citation(hit), hit.Snippet)
	}
	return strings.Join(lines, "\n")
}

func citation(hit domain.SearchResult) domain.Citation {
	return domain.Citation{
		DocumentID: hit.Document.ID,
		Filename:   hit.Document.Title(),
		Page:       hit.Chunk.Page,
	}
}

// citations lists each cited page once, in rank order.
func citations(hits []domain.SearchResult) []domain.Citation {
	seen := make(map[domain.Citation]bool, len(hits))
	out := make([]domain.Citation, 0, len(hits))
	for _, hit := range hits {
		c := citation(hit)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
