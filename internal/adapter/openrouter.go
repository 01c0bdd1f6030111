package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

	maxAttempts    = 3
	retryBaseDelay = 2 * time.Second
)

// OpenRouter is a chat-completions adapter for one model id behind the
// OpenRouter gateway.
type OpenRouter struct {
	modelID string
	apiKey  string
	params  map[string]any
	client  *http.Client
	baseURL string
}

var _ Adapter = (*OpenRouter)(nil)

func NewOpenRouter(modelID, apiKey string, defaultParams map[string]any) *OpenRouter {
	if defaultParams == nil {
		defaultParams = map[string]any{"temperature": 0.2}
	}
	return &OpenRouter{
		modelID: modelID,
		apiKey:  apiKey,
		params:  defaultParams,
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: openRouterURL,
	}
}

func (a *OpenRouter) ID() string { return a.modelID }

func (a *OpenRouter) DefaultParams() map[string]any {
	params := make(map[string]any, len(a.params))
	for key, value := range a.params {
		params[key] = value
	}
	return params
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send retries transient failures with a short backoff. The returned error
// wraps the last underlying cause so callers can unwrap it for logging.
func (a *OpenRouter) Send(ctx context.Context, messages []Message, params map[string]any) (*Response, error) {
	body := map[string]any{
		"model":    a.modelID,
		"messages": messages,
	}
	for key, value := range params {
		body[key] = value
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(attempt-1)):
			}
		}

		response, retryable, err := a.doRequest(ctx, payload)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("openrouter %s: request failed after retries: %w", a.modelID, lastErr)
}

func (a *OpenRouter) doRequest(ctx context.Context, payload []byte) (*Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("openrouter returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("openrouter returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false, err
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, false, errors.New(parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, false, errors.New("openrouter response has no choices")
	}

	response := &Response{Text: parsed.Choices[0].Message.Content}
	if parsed.Usage != nil {
		tokensIn := parsed.Usage.PromptTokens
		tokensOut := parsed.Usage.CompletionTokens
		response.TokensIn = &tokensIn
		response.TokensOut = &tokensOut
	}
	return response, false, nil
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
