package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Enrichment configuration
	LLMAPIKey        string
	LLMBaseURL       string
	LLMModel         string
	BatchSize        int
	MaxFailures      int
	StaleAfter       int
	StrictValidation bool

	// Publishing configuration
	SiteDir          string
	ButtondownAPIKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
