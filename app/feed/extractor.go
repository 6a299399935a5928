package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// ContentExtractor is the slice of the extractor the poller and the fetch
// stage depend on; tests substitute a stub.
type ContentExtractor interface {
	ExtractFromURL(ctx context.Context, pageURL string) (*Article, error)
}

var _ ContentExtractor = (*Extractor)(nil)

type Extractor struct {
	httpClient *http.Client
	userAgent  string
}

func NewExtractor(httpClient *http.Client, userAgent string) *Extractor {
	return &Extractor{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (e *Extractor) ExtractFromURL(ctx context.Context, pageURL string) (*Article, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, &ExtractionError{Message: fmt.Sprintf("failed to create request for %s", pageURL), Cause: err}
	}

	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &ExtractionError{Message: fmt.Sprintf("failed to fetch page from %s", pageURL), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExtractionError{Message: fmt.Sprintf("HTTP %d: failed to fetch page from %s", resp.StatusCode, pageURL)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExtractionError{Message: "failed to read response body", Cause: err}
	}

	return e.ExtractFromHTML(string(data), pageURL)
}

// ExtractFromHTML captures page metadata from the raw markup, then runs
// readability over it. The order matters: readability mutates the document
// and drops the elements the metadata is read from.
func (e *Extractor) ExtractFromHTML(html string, pageURL string) (*Article, error) {
	metadata, err := captureMetadata(html)
	if err != nil {
		return nil, &ExtractionError{Message: "failed to parse HTML", Cause: err}
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return nil, &ExtractionError{Message: "readability extraction failed", Cause: err}
	}

	if strings.TrimSpace(article.TextContent) == "" {
		return nil, &ExtractionError{Message: "no readable content found on page"}
	}

	slog.Debug("Content extracted",
		"url", pageURL,
		"title", article.Title,
		"length", article.Length,
		"og_type", stringOrEmpty(metadata.OGType),
		"json_ld_types", len(metadata.JSONLDTypes))

	return &Article{
		Title:       article.Title,
		Content:     article.Content,
		TextContent: article.TextContent,
		Author:      optionalString(article.Byline),
		Excerpt:     optionalString(article.Excerpt),
		SiteName:    optionalString(article.SiteName),
		Length:      article.Length,
		Metadata:    metadata,
	}, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
