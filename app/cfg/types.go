package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	PollInterval      int
	APIAccessKey      string

	// Outbound HTTP configuration
	UserAgent   string
	HTTPTimeout int

	// Pipeline configuration
	GeminiAPIKey    string
	GeminiModel     string
	ExtractionDelay int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
