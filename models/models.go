package models

import (
	"errors"
	"time"
)

// ErrTopicNotFound is returned when a topic is not found
var ErrTopicNotFound = errors.New("topic not found")

// BusinessProfile is the positioning brief the agent is trained on.
// It is owned by the caller and passed by value into each run.
type BusinessProfile struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	IdealCustomer string `json:"ideal_customer"`
	Tone          string `json:"tone"`
	Keywords      string `json:"keywords"`
	WebsiteURL    string `json:"website_url"`
}

type Topic struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Angle    string   `json:"angle"`
	Audience string   `json:"audience"`
	Keywords []string `json:"keywords"`
	Score    float64  `json:"score"`
}

// Article is the structured output of the article-generation capability.
type Article struct {
	Title        string `json:"title"`
	BodyMarkdown string `json:"body_markdown"`
	Summary      string `json:"summary"`
}

type ChannelType string

const (
	ChannelWordPress ChannelType = "wordpress"
	ChannelWebhook   ChannelType = "webhook"
)

// Channel is a configured publishing destination. Username and
// AppPassword apply to wordpress channels; Headers apply to webhooks.
type Channel struct {
	ID          string            `json:"id"`
	Type        ChannelType       `json:"type"`
	Name        string            `json:"name"`
	EndpointURL string            `json:"endpoint_url"`
	Username    string            `json:"username,omitempty"`
	AppPassword string            `json:"app_password,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Active reports whether dispatch should be attempted. A channel with
// an empty endpoint URL is preview-only.
func (c Channel) Active() bool { return c.EndpointURL != "" }

type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// Schedule is the automation policy for a user's agent.
type Schedule struct {
	Cadence         Cadence    `json:"cadence"`
	PublishHour     int        `json:"publish_hour"`
	Timezone        string     `json:"timezone"`
	NextRunAt       *time.Time `json:"next_run_at,omitempty"`
	SelectedTopicID *string    `json:"selected_topic_id,omitempty"`
}

// Run statuses. A trigger moves the record straight into generating;
// posted and failed are the only terminal states.
const (
	RunStatusPending    = "pending"
	RunStatusGenerating = "generating"
	RunStatusPosted     = "posted"
	RunStatusFailed     = "failed"
)

// PreviewOnlyDestination is recorded on runs that produced an article
// without dispatching it anywhere.
const PreviewOnlyDestination = "Preview Only"

type Run struct {
	ID          string     `json:"id"`
	TopicID     string     `json:"topic_id"`
	TopicTitle  string     `json:"topic_title"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Summary     *string    `json:"summary,omitempty"`
	Destination *string    `json:"destination,omitempty"`
	Error       *string    `json:"error,omitempty"`
}
