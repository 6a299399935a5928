package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/mkarpenko/newspipe/app/llm"
)

const (
	titleDelimiter   = "---TITLE---"
	contentDelimiter = "---CONTENT---"

	// Low temperature biases toward fidelity over creativity; the token
	// ceiling accommodates long articles.
	translationTemperature = 0.3
	translationMaxTokens   = 8192
)

type Translator struct {
	generator TextGenerator
}

func NewTranslator(generator TextGenerator) *Translator {
	return &Translator{generator: generator}
}

// Run translates an article into the target language. The model is asked
// for a fixed two-section response delimited by sentinel markers; a response
// missing either marker or with an empty section fails the translation.
func (t *Translator) Run(ctx context.Context, input TranslationInput) (*TranslationResult, error) {
	prompt := buildTranslationPrompt(input)

	temperature := translationTemperature
	response, err := t.generator.Generate(ctx, prompt, llm.GenerateConfig{
		Temperature:     &temperature,
		MaxOutputTokens: translationMaxTokens,
	})
	if err != nil {
		return nil, &TranslationError{Message: "LLM error during translation", Cause: err}
	}

	title, content, err := parseTranslationResponse(response.Text)
	if err != nil {
		return nil, err
	}

	return &TranslationResult{
		TranslatedTitle:   title,
		TranslatedContent: content,
		ModelName:         response.ModelName,
		TokenCount:        response.TokenCount,
	}, nil
}

func buildTranslationPrompt(input TranslationInput) string {
	sourceLang := languageName(input.SourceLanguage)
	targetLang := cmp.Or(input.TargetLanguage, "English")

	return fmt.Sprintf(`You are a professional translator. Translate the following news article from %s to %s.

Instructions:
- Translate accurately while preserving the original meaning and tone
- Format the translated content as clean markdown
- Use appropriate markdown formatting (paragraphs, headers if present, lists, etc.)
- Do not add any commentary or notes

Return your translation in this exact format:
%s
[translated title here]
%s
[translated content in markdown here]

Original article:

Title: %s

Content:
%s`, sourceLang, targetLang, titleDelimiter, contentDelimiter, input.Title, input.Content)
}

func parseTranslationResponse(text string) (string, string, error) {
	titleIndex := strings.Index(text, titleDelimiter)
	contentIndex := strings.Index(text, contentDelimiter)

	if titleIndex == -1 || contentIndex == -1 || contentIndex < titleIndex {
		return "", "", &TranslationError{Message: "invalid response format: missing delimiters"}
	}

	title := strings.TrimSpace(text[titleIndex+len(titleDelimiter) : contentIndex])
	content := strings.TrimSpace(text[contentIndex+len(contentDelimiter):])

	if title == "" {
		return "", "", &TranslationError{Message: "invalid response format: empty title"}
	}
	if content == "" {
		return "", "", &TranslationError{Message: "invalid response format: empty content"}
	}

	return title, content, nil
}

// languageName maps an ISO language code to its English display name for
// the prompt; an unrecognized code is passed through verbatim.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// IsEnglish reports whether a language code denotes English; stories in
// English skip the translation stage and are summarized from the original.
func IsEnglish(code string) bool {
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	base, confidence := tag.Base()
	return confidence != language.No && base.String() == "en"
}
