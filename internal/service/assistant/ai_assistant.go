package assistant

import (
	"context"
	"log"

	"traitor/internal/models"
)

const (
	askGPTSystemPrompt = "You are trying to determine whether or not ChatGPT wrote the prompt being given to you."

	reversePromptTemplate = "this was generated by chatgpt. what do you think the prompt that the user asked chat gpt was to generate this?\n\n"

	metadataPromptTemplate = "Analyze the following Word document metadata for any odd or suspicious characteristics that may indicate cheating:\n"

	metadataErrorPrefix = "Error in analyzing metadata: "
)

// Completer is the LLM client used by the assistant.
type Completer interface {
	Complete(ctx context.Context, modelName string, messages []models.Message) (string, error)
}

// Service builds the prompts for each analysis and routes them to a model.
type Service struct {
	llm            Completer
	primaryModel   string
	secondaryModel string
}

// NewService returns a Service. The primary model answers AskGPT, the first
// ReversePrompt call and metadata analysis; the secondary model answers the
// second ReversePrompt call.
func NewService(llm Completer, primaryModel, secondaryModel string) *Service {
	return &Service{
		llm:            llm,
		primaryModel:   primaryModel,
		secondaryModel: secondaryModel,
	}
}

// ReverseResult holds both stages of a reverse prompt.
type ReverseResult struct {
	Description    string
	ReversedPrompt string
}

// AskGPT asks the primary model whether prompt was written by ChatGPT.
func (s *Service) AskGPT(ctx context.Context, prompt string) (string, error) {
	return s.llm.Complete(ctx, s.primaryModel, []models.Message{
		models.SystemMessage(askGPTSystemPrompt),
		models.UserMessage(prompt),
	})
}

// ReversePrompt guesses the prompt that produced text, then completes that
// guess with the secondary model. The second call only sees the guess.
func (s *Service) ReversePrompt(ctx context.Context, text string) (*ReverseResult, error) {
	description, err := s.llm.Complete(ctx, s.primaryModel, []models.Message{
		models.UserMessage(reversePromptTemplate + text),
	})
	if err != nil {
		return nil, err
	}
	reversed, err := s.llm.Complete(ctx, s.secondaryModel, []models.Message{
		models.UserMessage(description),
	})
	if err != nil {
		return nil, err
	}
	return &ReverseResult{Description: description, ReversedPrompt: reversed}, nil
}

// AnalyzeMetadata never fails: a completion error is returned as the
// analysis text.
func (s *Service) AnalyzeMetadata(ctx context.Context, meta models.Metadata) string {
	analysis, err := s.llm.Complete(ctx, s.primaryModel, []models.Message{
		models.SystemMessage(metadataPromptTemplate + meta.IndentedJSON()),
	})
	if err != nil {
		log.Printf("analyze metadata failed: %v", err)
		return metadataErrorPrefix + err.Error()
	}
	return analysis
}
