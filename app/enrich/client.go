package enrich

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lexfeed/lexfeed/app/database"
)

//go:embed prompt.md
var systemPrompt string

// maxArticleRunes caps how much article text goes into the prompt so a
// scraped page dump cannot blow the model's context window.
const maxArticleRunes = 16000

// Generator produces one raw enrichment document for an article. The
// returned bytes are unvalidated JSON.
type Generator interface {
	Run(ctx context.Context, article database.Article) ([]byte, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ Generator = (*Client)(nil)

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *Client) Run(ctx context.Context, article database.Article) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("llm api key is not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage(article)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chat completion returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	slog.Debug("Chat completion finished", "article_id", article.ID, "model", c.model,
		"duration", time.Since(start), "prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens)

	return []byte(stripFences(parsed.Choices[0].Message.Content)), nil
}

func userMessage(article database.Article) string {
	text := article.Content
	if strings.TrimSpace(text) == "" {
		text = article.Description
	}

	if runes := []rune(text); len(runes) > maxArticleRunes {
		text = string(runes[:maxArticleRunes])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	if article.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", article.Category)
	}
	fmt.Fprintf(&b, "\n%s\n", text)
	return b.String()
}

// stripFences removes a markdown code fence wrapper. Models add one around
// JSON output despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
