package pipeline

import (
	"context"
	"fmt"

	"github.com/mkarpenko/newspipe/app/llm"
)

// TextGenerator is the slice of the LLM client the pipeline stages use;
// tests substitute a stub.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, config llm.GenerateConfig) (*llm.Response, error)
	GenerateStructured(ctx context.Context, prompt string, schema *llm.Schema, config llm.GenerateConfig) (*llm.StructuredResponse, error)
}

type TranslationInput struct {
	Title          string
	Content        string
	SourceLanguage string // ISO language code, e.g. "uk"
	TargetLanguage string // defaults to English
}

type TranslationResult struct {
	TranslatedTitle   string
	TranslatedContent string
	ModelName         string
	TokenCount        *int
}

type SummarizationInput struct {
	Title   string
	Content string
}

type SummarizationResult struct {
	SummarizedTitle string
	Summary         string
	ModelName       string
	TokenCount      *int
}

// TranslationError indicates a translation failure, most often a response
// that violates the delimited title/content format contract.
type TranslationError struct {
	Message string
	Cause   error
}

func (e *TranslationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// SummarizationError indicates a summarization failure, most often a
// structured response missing a required field.
type SummarizationError struct {
	Message string
	Cause   error
}

func (e *SummarizationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SummarizationError) Unwrap() error {
	return e.Cause
}
