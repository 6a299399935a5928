package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mkarpenko/newspipe/app/llm"
)

const (
	// Low temperature for factual stability; the ceiling fits a short
	// title plus a 200-word body.
	summarizationTemperature = 0.3
	summarizationMaxTokens   = 1024
)

var summarySchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"summarizedTitle": {
			Type:        llm.TypeString,
			Description: "A concise, engaging title that captures the essence of the article",
		},
		"summary": {
			Type:        llm.TypeString,
			Description: "A factual summary of the article content, maximum 200 words",
		},
	},
	Required:         []string{"summarizedTitle", "summary"},
	PropertyOrdering: []string{"summarizedTitle", "summary"},
}

type summaryResponse struct {
	SummarizedTitle string `json:"summarizedTitle"`
	Summary         string `json:"summary"`
}

type Summarizer struct {
	generator TextGenerator
}

func NewSummarizer(generator TextGenerator) *Summarizer {
	return &Summarizer{generator: generator}
}

// Run summarizes an English-language article into a bounded title and
// summary via schema-constrained structured output.
func (s *Summarizer) Run(ctx context.Context, input SummarizationInput) (*SummarizationResult, error) {
	prompt := buildSummarizationPrompt(input)

	temperature := summarizationTemperature
	response, err := s.generator.GenerateStructured(ctx, prompt, summarySchema, llm.GenerateConfig{
		Temperature:     &temperature,
		MaxOutputTokens: summarizationMaxTokens,
	})
	if err != nil {
		return nil, &SummarizationError{Message: "LLM error during summarization", Cause: err}
	}

	var parsed summaryResponse
	if err := json.Unmarshal(response.Data, &parsed); err != nil {
		return nil, &SummarizationError{Message: "malformed structured response", Cause: err}
	}

	if parsed.SummarizedTitle == "" {
		return nil, &SummarizationError{Message: "structured response is missing summarizedTitle"}
	}
	if parsed.Summary == "" {
		return nil, &SummarizationError{Message: "structured response is missing summary"}
	}

	return &SummarizationResult{
		SummarizedTitle: parsed.SummarizedTitle,
		Summary:         parsed.Summary,
		ModelName:       response.ModelName,
		TokenCount:      response.TokenCount,
	}, nil
}

func buildSummarizationPrompt(input SummarizationInput) string {
	return fmt.Sprintf(`You are a professional news editor. Create a concise summary of the following news article.

Instructions:
- Generate a summarized title that is concise and captures the main point
- Write a factual, objective summary of the article content
- The summary must not exceed 200 words
- Focus on the key facts: who, what, when, where, why
- Maintain a neutral, journalistic tone
- Do not add opinions or commentary

Article Title: %s

Article Content:
%s`, input.Title, input.Content)
}
