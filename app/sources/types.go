package sources

// Definition is one source file: a publisher and the feeds polled for it.
// Files are YAML, one publisher per file.
type Definition struct {
	Publisher Publisher `yaml:"publisher"`
	Feeds     []Feed    `yaml:"feeds"`
}

type Publisher struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
}

type Feed struct {
	Name               string          `yaml:"name"`
	URL                string          `yaml:"url"`
	Active             *bool           `yaml:"active"`
	CategoryExclusions []string        `yaml:"category_exclusions"`
	StoryExclusions    []ExclusionRule `yaml:"story_exclusions"`
}

type ExclusionRule struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// IsActive treats a feed without an explicit active flag as active.
func (f Feed) IsActive() bool {
	return f.Active == nil || *f.Active
}
