package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var validRuleTypes = map[string]bool{
	"og_type":      true,
	"json_ld_type": true,
}

type Loader struct {
	sourcesDir string
	cache      map[string]*Definition
	mu         sync.RWMutex
}

func NewLoader(sourcesDir string) *Loader {
	return &Loader{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Definition),
	}
}

func (l *Loader) Run() error {
	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		definition, err := l.LoadDefinition(file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source definition loaded", "publisher", definition.Publisher.Name, "feeds", len(definition.Feeds))
	}

	return nil
}

func (l *Loader) LoadDefinition(file string) (*Definition, error) {
	definition, err := l.parseDefinition(file)
	if err != nil {
		return nil, err
	}

	if err := l.validateDefinition(definition); err != nil {
		return nil, fmt.Errorf("invalid source definition %s: %w", file, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache[definition.Publisher.Name] = definition

	return definition, nil
}

func (l *Loader) GetDefinition(publisherName string) (*Definition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	definition, ok := l.cache[publisherName]
	if !ok {
		return nil, fmt.Errorf("source definition for publisher '%s' not found", publisherName)
	}
	return definition, nil
}

func (l *Loader) GetDefinitions() map[string]*Definition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	definitionsCopy := make(map[string]*Definition, len(l.cache))
	for k, v := range l.cache {
		definitionsCopy[k] = v
	}
	return definitionsCopy
}

func (l *Loader) GetDefinitionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

func (l *Loader) parseDefinition(file string) (*Definition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var definition Definition
	if err := yaml.Unmarshal(data, &definition); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if definition.Publisher.Language == "" {
		definition.Publisher.Language = "en"
	}

	return &definition, nil
}

func (l *Loader) validateDefinition(definition *Definition) error {
	if definition == nil {
		return fmt.Errorf("definition is nil")
	}

	requiredPublisherFields := map[string]string{
		"publisher name":     definition.Publisher.Name,
		"publisher base URL": definition.Publisher.BaseURL,
	}

	for fieldName, fieldValue := range requiredPublisherFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if len(definition.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required")
	}

	for i, feed := range definition.Feeds {
		if feed.Name == "" {
			return fmt.Errorf("feed name is required at index %d", i)
		}
		if feed.URL == "" {
			return fmt.Errorf("feed URL is required at index %d", i)
		}

		for j, rule := range feed.StoryExclusions {
			if !validRuleTypes[rule.Type] {
				return fmt.Errorf("invalid story exclusion type at feed %d rule %d: %s", i, j, rule.Type)
			}
			if rule.Value == "" {
				return fmt.Errorf("story exclusion value is required at feed %d rule %d", i, j)
			}
		}
	}

	return nil
}
