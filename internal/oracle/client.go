package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"schemaforge/internal/config"
	"schemaforge/internal/port"
)

// Client implements port.Oracle against an OpenAI-compatible chat
// completions endpoint.
type Client struct {
	apiKey     string
	endpoint   string
	maxRetries int
	profiles   map[port.Profile]config.ModelProfile
	client     *http.Client

	// backoffBase is scaled up exponentially between transient retries.
	// Shortened in tests.
	backoffBase time.Duration
}

// NewClient creates an oracle client from the oracle config.
func NewClient(cfg *config.OracleConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &Client{
		apiKey:      cfg.APIKey,
		endpoint:    base + "/chat/completions",
		maxRetries:  cfg.MaxRetries,
		profiles:    profileMap(cfg),
		client:      &http.Client{Timeout: timeout},
		backoffBase: time.Second,
	}
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint
// (for testing). The endpoint is used verbatim.
func NewClientWithEndpoint(cfg *config.OracleConfig, endpoint string) *Client {
	c := NewClient(cfg)
	c.endpoint = endpoint
	c.backoffBase = 10 * time.Millisecond
	return c
}

func profileMap(cfg *config.OracleConfig) map[port.Profile]config.ModelProfile {
	return map[port.Profile]config.ModelProfile{
		port.ProfileSelection:  cfg.Selection,
		port.ProfileGeneration: cfg.Generation,
		port.ProfileRefinement: cfg.Refinement,
	}
}

// Generate sends one structured-generation request. Transient failures are
// retried with exponential backoff up to the configured attempt budget; a
// reply that does not conform to the response schema is retried once with a
// corrective follow-up prompt; quota exhaustion is surfaced immediately.
func (c *Client) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResult, error) {
	profile, ok := c.profiles[req.Profile]
	if !ok || profile.Model == "" {
		return nil, fmt.Errorf("no model configured for profile %q", req.Profile)
	}

	var usage port.Usage

	result, err := c.callWithRetry(ctx, profile, req.System, req.Prompt, req.ResponseSchema != nil, &usage)
	if err == nil && req.ResponseSchema != nil {
		if payload, verr := validatePayload(req.ResponseSchema, result.Text); verr == nil {
			result.Payload = payload
		} else {
			err = &MalformedResponseError{Err: verr, Raw: result.Text}
		}
	}

	// One corrective round trip for a non-conforming reply, then surface.
	var me *MalformedResponseError
	if errors.As(err, &me) {
		slog.Warn("oracle reply did not match response schema, retrying with corrective prompt",
			"profile", req.Profile, "error", me.Err)
		prompt := correctivePrompt(req.Prompt, me.Raw, me.Err)
		result, err = c.callWithRetry(ctx, profile, req.System, prompt, req.ResponseSchema != nil, &usage)
		if err == nil && req.ResponseSchema != nil {
			if payload, verr := validatePayload(req.ResponseSchema, result.Text); verr == nil {
				result.Payload = payload
			} else {
				err = &MalformedResponseError{Err: verr, Raw: result.Text}
			}
		}
	}

	if err != nil {
		return nil, err
	}
	result.Usage = usage
	return result, nil
}

// callWithRetry retries transient transport failures with exponential
// backoff. Quota and contract errors pass through untouched.
func (c *Client) callWithRetry(ctx context.Context, profile config.ModelProfile, system, prompt string, wantJSON bool, usage *port.Usage) (*port.GenerateResult, error) {
	attempts := c.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			var tr *TransientError
			if errors.As(lastErr, &tr) && tr.RetryAfter > 0 {
				backoff = tr.RetryAfter
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, NewTransientError(ctx.Err(), 0)
			}
		}

		result, err := c.call(ctx, profile, system, prompt, wantJSON)
		if result != nil {
			usage.Add(result.Usage)
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		var tr *TransientError
		if !errors.As(err, &tr) {
			return nil, err
		}
		slog.Warn("oracle call failed", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// call performs a single HTTP round trip.
func (c *Client) call(ctx context.Context, profile config.ModelProfile, system, prompt string, wantJSON bool) (*port.GenerateResult, error) {
	var messages []map[string]any
	if system != "" {
		messages = append(messages, map[string]any{"role": "system", "content": system})
	}
	messages = append(messages, map[string]any{"role": "user", "content": prompt})

	reqBody := map[string]any{
		"model":       profile.Model,
		"temperature": profile.Temperature,
		"max_tokens":  profile.MaxTokens,
		"messages":    messages,
	}
	if wantJSON {
		reqBody["response_format"] = map[string]any{"type": "json_object"}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("calling oracle API: %w", err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("reading response: %w", err), 0)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("oracle API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 300))
		switch {
		case isQuotaBody(respBody):
			return nil, &QuotaError{Err: baseErr}
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, NewTransientError(baseErr, retryAfter)
		case resp.StatusCode >= 500:
			return nil, NewTransientError(baseErr, 0)
		default:
			return nil, baseErr
		}
	}

	return parseResponse(respBody, profile.Model)
}

// apiResponse models the chat completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func parseResponse(body []byte, model string) (*port.GenerateResult, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, &MalformedResponseError{Err: fmt.Errorf("empty response from API: no choices"), Raw: string(body)}
	}
	if resp.Choices[0].FinishReason == "length" {
		return nil, &MalformedResponseError{
			Err: fmt.Errorf("output truncated (finish_reason: length): response exceeded output token limit"),
			Raw: resp.Choices[0].Message.Content,
		}
	}

	return &port.GenerateResult{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: port.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func isQuotaBody(body []byte) bool {
	var e struct {
		Error struct {
			Code string `json:"code"`
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	return e.Error.Code == "insufficient_quota" || e.Error.Type == "insufficient_quota"
}

func correctivePrompt(original, badReply string, verr error) string {
	return original + fmt.Sprintf(
		"\n\nYour previous reply was not valid:\n%s\n\nProblem: %v\n\nReply again with ONLY valid JSON conforming to the required structure. No markdown, no explanation.",
		truncate(badReply, 1000), verr,
	)
}
