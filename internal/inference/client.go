package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eidolon-live/eidolon/internal/frame"
	"github.com/eidolon-live/eidolon/internal/shared"
)

const defaultQuotaCooldown = 60 * time.Second

// Client talks to an Ollama-compatible vision model endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
	}
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Format string   `json:"format,omitempty"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type subjectReply struct {
	Subject   string `json:"subject"`
	Utterance string `json:"utterance"`
}

func (c *Client) Analyze(ctx context.Context, f *frame.Frame, personality string) (*Result, error) {
	if f == nil || len(f.Encoded) == 0 {
		return nil, fmt.Errorf("analyze: %w", shared.ErrNoFrame)
	}

	prompt := fmt.Sprintf(
		"You are the most prominent object in this image. Name yourself and speak one short line in a %s voice. "+
			`Respond as JSON: {"subject": "<object name>", "utterance": "<one spoken line>"}`,
		personality)

	imageB64 := base64.StdEncoding.EncodeToString(f.Encoded)

	genReq := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Images: []string{imageB64},
		Format: "json",
		Stream: false,
	}

	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &shared.QuotaExceededError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := parseReply(genResp.Response)
	result.Timestamp = f.Timestamp
	return result, nil
}

// parseReply tolerates anything the model sends back. Malformed output is
// downgraded to a best-effort label and a placeholder utterance.
func parseReply(raw string) *Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &Result{SubjectLabel: "unknown object", Utterance: PlaceholderUtterance}
	}

	var reply subjectReply
	if err := json.Unmarshal([]byte(raw), &reply); err == nil && strings.TrimSpace(reply.Subject) != "" {
		utterance := strings.TrimSpace(reply.Utterance)
		if utterance == "" {
			utterance = PlaceholderUtterance
		}
		return &Result{
			SubjectLabel: strings.TrimSpace(reply.Subject),
			Utterance:    utterance,
		}
	}

	// Free text fallback: first line names the subject, the rest is speech.
	label, rest, _ := strings.Cut(raw, "\n")
	utterance := strings.TrimSpace(rest)
	if utterance == "" {
		utterance = PlaceholderUtterance
	}
	return &Result{
		SubjectLabel: strings.TrimSpace(label),
		Utterance:    utterance,
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultQuotaCooldown
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
