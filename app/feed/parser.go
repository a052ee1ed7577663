package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}
	if parsed.PublishedParsed != nil {
		metadata.PublishedAt = parsed.PublishedParsed
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		items = append(items, p.normalizeItem(item))
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       strings.TrimSpace(item.Title),
		Link:        item.Link,
		Description: stripMarkup(item.Description),
		Content:     item.Content,
		Categories:  item.Categories,
	}

	// PublishedParsed may be absent on malformed feeds; ingestion treats a
	// missing date as "unknown", not "now".
	if item.PublishedParsed != nil {
		normalized.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		normalized.PublishedAt = item.UpdatedParsed
	}

	normalized.Authors = extractAuthors(item)

	return normalized
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// stripMarkup reduces an HTML fragment to plain text. Feed descriptions
// routinely arrive wrapped in markup.
func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsRune(s, '<') {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	return strings.TrimSpace(whitespaceRun.ReplaceAllString(doc.Text(), " "))
}

func extractAuthors(item *gofeed.Item) []string {
	var authors []string

	appendAuthor := func(name, email string) {
		name, email = strings.TrimSpace(name), strings.TrimSpace(email)
		switch {
		case name != "" && email != "":
			authors = append(authors, fmt.Sprintf("%s (%s)", name, email))
		case name != "":
			authors = append(authors, name)
		case email != "":
			authors = append(authors, email)
		}
	}

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				appendAuthor(author.Name, author.Email)
			}
		}
	} else if item.Author != nil {
		appendAuthor(item.Author.Name, item.Author.Email)
	}

	return authors
}
