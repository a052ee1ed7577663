package feed

import (
	"log/slog"
	"strings"
)

// Filterer drops feed items a source config excludes before they ever
// become articles. Matching is case-insensitive substring.
type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

func (f *Filterer) Run(items []Item, config *Config) []Item {
	if len(config.Filters) == 0 {
		return items
	}

	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if reason := f.exclusionReason(item, config.Filters); reason != "" {
			slog.Debug("Dropped feed item", "source", config.Name, "link", item.Link, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept
}

func (f *Filterer) exclusionReason(item Item, filters []ConfigFilter) string {
	for _, filter := range filters {
		value := fieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if matches(value, exclude) {
				return filter.Field + " contains '" + exclude + "'"
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if matches(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return filter.Field + " matches no include rule"
			}
		}
	}

	return ""
}

func matches(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func fieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "content":
		return item.Content
	case "authors":
		return strings.Join(item.Authors, " ")
	case "link":
		return item.Link
	case "categories":
		return strings.Join(item.Categories, " ")
	default:
		return ""
	}
}
