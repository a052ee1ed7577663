package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./lexfeed.db" description:"Path to the SQLite database file"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing news source configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for generated pages (e.g., https://news.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for task processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Enrichment configuration
	LLMAPIKey        string `long:"llm-api-key" env:"LLM_API_KEY" description:"API key for the LLM content-generation service"`
	LLMBaseURL       string `long:"llm-base-url" env:"LLM_BASE_URL" default:"https://api.deepseek.com" description:"Base URL of the OpenAI-compatible chat completion API"`
	LLMModel         string `long:"llm-model" env:"LLM_MODEL" default:"deepseek-chat" description:"Model used for content generation"`
	BatchSize        int    `long:"batch-size" env:"BATCH_SIZE" default:"10" description:"Maximum number of articles claimed per enrichment run"`
	MaxFailures      int    `long:"max-failures" env:"MAX_FAILURES" default:"3" description:"Failures after which an article is excluded from automatic retry"`
	StaleAfter       int    `long:"stale-after" env:"STALE_AFTER" default:"30" description:"Minutes after which an in-progress claim is considered stale"`
	StrictValidation bool   `long:"strict-validation" env:"STRICT_VALIDATION" description:"Reject the whole payload when a single quiz question is invalid"`

	// Publishing configuration
	SiteDir          string `long:"site-dir" env:"SITE_DIR" default:"./public" description:"Output directory for generated HTML pages"`
	ButtondownAPIKey string `long:"buttondown-api-key" env:"BUTTONDOWN_API_KEY" description:"Buttondown API key for newsletter distribution (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"LexFeed/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Shanghai)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	// One-shot administrative actions
	MigrateLegacy bool `long:"migrate-legacy" description:"Import legacy deepseek_feedback rows into the normalized tables and exit"`
}

var globalCfg *Cfg

// MigrateLegacyRequested reports whether the one-shot legacy import flag was set.
// Kept out of Cfg because it is an action, not configuration.
var migrateLegacyRequested bool

func MigrateLegacyRequested() bool {
	return migrateLegacyRequested
}

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		LLMAPIKey:         raw.LLMAPIKey,
		LLMBaseURL:        raw.LLMBaseURL,
		LLMModel:          raw.LLMModel,
		BatchSize:         raw.BatchSize,
		MaxFailures:       raw.MaxFailures,
		StaleAfter:        raw.StaleAfter,
		StrictValidation:  raw.StrictValidation,
		SiteDir:           raw.SiteDir,
		ButtondownAPIKey:  raw.ButtondownAPIKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	migrateLegacyRequested = raw.MigrateLegacy

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
