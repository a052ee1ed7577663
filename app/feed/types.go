package feed

import (
	"time"
)

// Metadata describes the feed itself, as opposed to its entries.
type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
	PublishedAt *time.Time
}

// Item is one feed entry normalized to the fields ingestion cares about.
// Description holds plain text; HTML markup is stripped during parsing.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time
	Authors     []string
	Categories  []string
}

// Config is one source definition, loaded from a YAML file in the sources
// directory. The source name is derived from the filename.
type Config struct {
	Name     string
	URL      string         `yaml:"url"`
	Category string         `yaml:"category"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"` // seconds
	ExtractContent  bool `yaml:"extract_content"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
