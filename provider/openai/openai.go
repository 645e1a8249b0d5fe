package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contentpilot/contentpilot/models"
)

const (
	openaiAPIURL = "https://api.openai.com/v1/chat/completions"
)

// client implements the provider interface using OpenAI's API
type client struct {
	apiKey          string
	completionModel string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request represents a request to the OpenAI API
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey, completionModel string, temperature float64, maxTokens int, timeout time.Duration) *client {
	return &client{
		apiKey:          apiKey,
		completionModel: completionModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// GenerateTopics proposes scored blog topics for the given business profile.
func (c *client) GenerateTopics(ctx context.Context, profile models.BusinessProfile) ([]models.Topic, error) {
	systemPrompt := `
You are a content strategist that proposes revenue-focused blog topics for a business.

RULES:
1. Propose 5 to 8 topics ranked by conversion potential
2. Every topic must target the business's ideal customer
3. Keywords must be concrete search phrases, not single generic words
4. Score each topic from 0 to 100 by expected relevance to revenue

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{
  "topics": [
    {
      "title": "Topic headline",
      "angle": "The specific argument or hook",
      "audience": "Who this converts",
      "keywords": ["array", "of", "phrases"],
      "score": 87
    }
  ]
}
Do not include any other text or explanation.
`
	userPrompt := fmt.Sprintf(`
BUSINESS PROFILE:
Name: %q
Description: %q
Ideal Customer: %q
Tone: %q
Priority Keywords: %q
Website: %q
`, profile.Name, profile.Description, profile.IdealCustomer, profile.Tone, profile.Keywords, profile.WebsiteURL)

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	responseStr, err := c.sendRequest(ctx, messages)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Topics []struct {
			Title    string   `json:"title"`
			Angle    string   `json:"angle"`
			Audience string   `json:"audience"`
			Keywords []string `json:"keywords"`
			Score    float64  `json:"score"`
		} `json:"topics"`
	}
	if err := json.Unmarshal([]byte(stripFences(responseStr)), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}
	if len(resp.Topics) == 0 {
		return nil, fmt.Errorf("provider returned no topics")
	}

	topics := make([]models.Topic, len(resp.Topics))
	for i, t := range resp.Topics {
		topics[i] = models.Topic{
			ID:       uuid.NewString(),
			Title:    t.Title,
			Angle:    t.Angle,
			Audience: t.Audience,
			Keywords: t.Keywords,
			Score:    t.Score,
		}
	}
	return topics, nil
}

// GenerateArticle writes a publishable article for the topic in the
// profile's voice.
func (c *client) GenerateArticle(ctx context.Context, profile models.BusinessProfile, topic models.Topic) (models.Article, error) {
	systemPrompt := `
You are a senior content writer producing a publish-ready blog article.

RULES:
1. Write in the requested brand voice
2. Structure the body with Markdown headings, lists and a closing call to action
3. Work the topic keywords in naturally
4. The summary must be one or two sentences suitable for a meta description

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{
  "title": "Final article headline",
  "body_markdown": "Full article body in Markdown",
  "summary": "One or two sentence summary"
}
Do not include any other text or explanation.
`
	userPrompt := fmt.Sprintf(`
BUSINESS PROFILE:
Name: %q
Description: %q
Ideal Customer: %q
Tone: %q
Website: %q

TOPIC:
Title: %q
Angle: %q
Audience: %q
Keywords: %s
`, profile.Name, profile.Description, profile.IdealCustomer, profile.Tone, profile.WebsiteURL,
		topic.Title, topic.Angle, topic.Audience, strings.Join(topic.Keywords, ", "))

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	responseStr, err := c.sendRequest(ctx, messages)
	if err != nil {
		return models.Article{}, err
	}

	var article models.Article
	if err := json.Unmarshal([]byte(stripFences(responseStr)), &article); err != nil {
		return models.Article{}, fmt.Errorf("failed to parse article: %w", err)
	}
	if article.Title == "" || article.BodyMarkdown == "" {
		return models.Article{}, fmt.Errorf("provider returned incomplete article")
	}
	return article, nil
}

func (c *client) sendRequest(ctx context.Context, messages []Message) (string, error) {
	requestBody := request{
		Model:       c.completionModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openaiAPIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return openaiResp.Choices[0].Message.Content, nil
}

// stripFences removes a Markdown code fence wrapper that some models
// put around JSON replies.
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
