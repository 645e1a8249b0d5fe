// Package publish delivers generated articles to a configured channel
// (WordPress site or generic webhook) and verifies channel credentials.
package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/contentpilot/contentpilot/models"
)

// Dispatcher is the opaque publish capability the orchestrator calls.
// Implementations do not retry; a failed dispatch is reported once.
type Dispatcher interface {
	Dispatch(ctx context.Context, ch models.Channel, article models.Article) error
	Verify(ctx context.Context, ch models.Channel) (VerifyResult, error)
}

// VerifyResult carries channel-provided detail from a connector check.
type VerifyResult struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Status      int    `json:"status,omitempty"`
}

// HTTPDispatcher implements Dispatcher over plain HTTP.
type HTTPDispatcher struct {
	client *http.Client
}

func NewHTTPDispatcher(timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPDispatcher{client: &http.Client{Timeout: timeout}}
}

// Dispatch posts the article to the channel endpoint. All failure modes
// (unreachable host, rejected credentials, non-2xx status) surface as a
// single error whose message is recorded on the run verbatim.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, ch models.Channel, article models.Article) error {
	switch ch.Type {
	case models.ChannelWordPress:
		return d.dispatchWordPress(ctx, ch, article)
	case models.ChannelWebhook:
		return d.dispatchWebhook(ctx, ch, article)
	default:
		return fmt.Errorf("unsupported channel type %q", ch.Type)
	}
}

func (d *HTTPDispatcher) dispatchWordPress(ctx context.Context, ch models.Channel, article models.Article) error {
	if ch.Username == "" || ch.AppPassword == "" {
		return fmt.Errorf("WordPress requires username and application password")
	}
	payload, err := json.Marshal(map[string]string{
		"title":   article.Title,
		"content": article.BodyMarkdown,
		"excerpt": article.Summary,
		"status":  "publish",
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.EndpointURL+"/wp-json/wp/v2/posts", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", basicAuth(ch.Username, ch.AppPassword))

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("wordpress unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("WordPress responded with status %d: %s", resp.StatusCode, bodySnippet(resp.Body))
	}
	return nil
}

func (d *HTTPDispatcher) dispatchWebhook(ctx context.Context, ch models.Channel, article models.Article) error {
	payload, err := json.Marshal(article)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ch.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// Verify performs the pre-flight connector check: same authentication
// rules as dispatch, without publishing anything.
func (d *HTTPDispatcher) Verify(ctx context.Context, ch models.Channel) (VerifyResult, error) {
	if !ch.Active() {
		return VerifyResult{}, fmt.Errorf("channel endpoint url is empty")
	}
	switch ch.Type {
	case models.ChannelWordPress:
		return d.verifyWordPress(ctx, ch)
	case models.ChannelWebhook:
		return d.verifyWebhook(ctx, ch)
	default:
		return VerifyResult{}, fmt.Errorf("unsupported channel type %q", ch.Type)
	}
}

func (d *HTTPDispatcher) verifyWordPress(ctx context.Context, ch models.Channel) (VerifyResult, error) {
	if ch.Username == "" || ch.AppPassword == "" {
		return VerifyResult{}, fmt.Errorf("WordPress requires username and application password")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ch.EndpointURL+"/wp-json/wp/v2/types/post", nil)
	if err != nil {
		return VerifyResult{}, err
	}
	req.Header.Set("Authorization", basicAuth(ch.Username, ch.AppPassword))

	resp, err := d.client.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("wordpress unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return VerifyResult{}, fmt.Errorf("WordPress responded with status %d", resp.StatusCode)
	}

	var details struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&details)
	if details.Name == "" {
		details.Name = "WordPress Site"
	}
	return VerifyResult{Name: details.Name, Description: details.Description, Status: resp.StatusCode}, nil
}

func (d *HTTPDispatcher) verifyWebhook(ctx context.Context, ch models.Channel) (VerifyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ch.EndpointURL, nil)
	if err != nil {
		return VerifyResult{}, err
	}
	for k, v := range ch.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("webhook unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return VerifyResult{}, fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return VerifyResult{Status: resp.StatusCode}, nil
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func bodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return string(bytes.TrimSpace(b))
}
