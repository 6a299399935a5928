package feed

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// captureMetadata reads the Open Graph type and structured-data @type values
// from the raw document. It has to run before readability, which strips the
// head and script elements this metadata lives in.
func captureMetadata(html string) (Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Metadata{}, err
	}

	var metadata Metadata

	if content, ok := doc.Find(`meta[property="og:type"]`).First().Attr("content"); ok {
		content = strings.TrimSpace(content)
		if content != "" {
			metadata.OGType = &content
		}
	}

	seen := make(map[string]struct{})
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, block *goquery.Selection) {
		var root any
		// Blocks that are not valid JSON are skipped, not fatal.
		if err := json.Unmarshal([]byte(block.Text()), &root); err != nil {
			return
		}
		collectJSONLDTypes(root, seen, &metadata.JSONLDTypes)
	})

	return metadata, nil
}

// collectJSONLDTypes unions the @type values of a structured-data block.
// A block root may be a single object or an array of objects, and @type
// itself may be a string or an array of strings.
func collectJSONLDTypes(root any, seen map[string]struct{}, out *[]string) {
	switch node := root.(type) {
	case map[string]any:
		appendJSONLDType(node["@type"], seen, out)
	case []any:
		for _, element := range node {
			if object, ok := element.(map[string]any); ok {
				appendJSONLDType(object["@type"], seen, out)
			}
		}
	}
}

func appendJSONLDType(value any, seen map[string]struct{}, out *[]string) {
	switch typed := value.(type) {
	case string:
		if _, ok := seen[typed]; !ok && typed != "" {
			seen[typed] = struct{}{}
			*out = append(*out, typed)
		}
	case []any:
		for _, element := range typed {
			if name, ok := element.(string); ok {
				appendJSONLDType(name, seen, out)
			}
		}
	}
}
