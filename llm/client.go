// Package llm wraps structured-tool extraction calls against the language
// model provider with the platform's standard retry/backoff policy.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"chatinvoice/apperror"
	"chatinvoice/storage"
)

// Config configures the Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	FastModel  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the extraction model with bounded retries.
type Client struct {
	cfg Config
	hc  *http.Client
}

// NewClient constructs a Client from cfg, defaulting the HTTP client's
// timeout to cfg.Timeout when none is supplied.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, hc: hc}
}

// maxRetries bounds the number of retry attempts after the initial call.
const maxRetries = 3

// toolRequest is the structured-output request sent to the provider.
type toolRequest struct {
	Model    string          `json:"model"`
	System   string          `json:"system"`
	Messages []toolMessage   `json:"messages"`
	Tool     json.RawMessage `json:"tool"`
}

type toolMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolResponse struct {
	Arguments json.RawMessage `json:"arguments"`
}

// ExtractSingleMessage runs the single-message extraction tool call and
// unmarshals the structured result.
func (c *Client) ExtractSingleMessage(ctx context.Context, message string) (*SingleMessageResult, error) {
	var result SingleMessageResult
	if err := c.callTool(ctx, c.cfg.Model, singleMessageSystemPrompt, []toolMessage{
		{Role: "user", Content: message},
	}, singleMessageToolSchema, &result); err != nil {
		return nil, err
	}
	result.Confidence = ClampConfidence(result.Confidence)
	return &result, nil
}

// ExtractChatLog runs the chat-log extraction tool call, pruning the
// conversation to the model's context budget first.
func (c *Client) ExtractChatLog(ctx context.Context, raw []storage.RawMessage) (*ChatLogResult, error) {
	pruned := PruneMessages(raw)
	messages := make([]toolMessage, 0, len(pruned))
	for _, m := range pruned {
		role := "user"
		if m.Sender == "assistant" || m.Sender == "seller" {
			role = "assistant"
		}
		messages = append(messages, toolMessage{Role: role, Content: fmt.Sprintf("%s: %s", m.Sender, m.Text)})
	}
	model := c.cfg.FastModel
	if model == "" {
		model = c.cfg.Model
	}
	var result ChatLogResult
	if err := c.callTool(ctx, model, chatLogSystemPrompt, messages, chatLogToolSchema, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// callTool performs the HTTP call with retry, backoff, and jitter, then
// unmarshals the tool's arguments into out.
func (c *Client) callTool(ctx context.Context, model, system string, messages []toolMessage, schema json.RawMessage, out any) error {
	body, err := json.Marshal(toolRequest{Model: model, System: system, Messages: messages, Tool: schema})
	if err != nil {
		return apperror.Wrap(apperror.Internal, "encode extraction request", err)
	}

	var lastErr error
	var advisedDelay time.Duration
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt - 1)
			if advisedDelay > 0 {
				delay = advisedDelay
			}
			select {
			case <-ctx.Done():
				return apperror.Wrap(apperror.UpstreamUnavail, "extraction canceled", ctx.Err())
			case <-time.After(delay):
			}
		}
		advisedDelay = 0

		resp, err := c.do(ctx, body)
		if err != nil {
			lastErr = err
			continue
		}

		retryAfter, retryable, fatal := classify(resp)
		if fatal != nil {
			resp.Body.Close()
			return fatal
		}
		if retryable {
			lastErr = drainAndWrap(resp)
			advisedDelay = retryAfter
			continue
		}

		var wrapper toolResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&wrapper)
		resp.Body.Close()
		if decodeErr != nil {
			return apperror.Wrap(apperror.ExtractionMalform, "decode extraction envelope", decodeErr)
		}
		if err := json.Unmarshal(wrapper.Arguments, out); err != nil {
			return apperror.Wrap(apperror.ExtractionMalform, "decode extraction arguments", err)
		}
		return nil
	}
	return apperror.Wrap(apperror.UpstreamUnavail, "extraction retries exhausted", lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "build extraction request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.UpstreamUnavail, "call extraction provider", err)
	}
	return resp, nil
}

// classify inspects a response's status and returns a Retry-After override
// (0 if absent), whether the response warrants a retry, and a terminal
// error when the response is non-retryable and non-2xx.
func classify(resp *http.Response) (retryAfter time.Duration, retryable bool, fatal error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return 0, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return retryAfter, true, nil
	case resp.StatusCode >= 500:
		return 0, true, nil
	case resp.StatusCode >= 400:
		resp.Body.Close()
		return 0, false, apperror.New(apperror.UpstreamBadRequest, fmt.Sprintf("extraction provider rejected request: %d", resp.StatusCode))
	default:
		return 0, true, nil
	}
}

func drainAndWrap(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return apperror.New(apperror.UpstreamUnavail, fmt.Sprintf("extraction provider status %d: %s", resp.StatusCode, string(body)))
}

// backoff returns the delay before retry attempt n (0-indexed), following
// min(10s, 2s*2^n) plus up to 1s of jitter.
func backoff(n int) time.Duration {
	base := 2 * time.Second
	for i := 0; i < n; i++ {
		base *= 2
		if base >= 10*time.Second {
			base = 10 * time.Second
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return base + jitter
}
