package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIProvider speaks the chat-completions JSON shape over plain HTTP,
// which also covers self-hosted OpenAI-compatible gateways via base_url.
type openAIProvider struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// newOpenAIProvider creates the adapter. httpClient may be nil; deadlines
// come from the call context, not the client.
func newOpenAIProvider(name, apiKey, baseURL string, httpClient *http.Client) *openAIProvider {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &openAIProvider{
		name:       name,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (p *openAIProvider) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Seed        *int64        `json:"seed,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *openAIProvider) Call(ctx context.Context, model, system, user string, opts CallOptions) (*ProviderResult, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	payload := chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: opts.MaxTokens,
		Seed:      opts.Seed,
	}
	if opts.Temperature > 0 {
		payload.Temperature = &opts.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, Classify(p.name, model, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, Classify(p.name, model, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, Classify(p.name, model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(model, resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, Classify(p.name, model, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return nil, &Error{
			Kind:     KindUnknown,
			Provider: p.name,
			Model:    model,
			Err:      fmt.Errorf("response contained no choices"),
		}
	}

	choice := out.Choices[0]
	return &ProviderResult{
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: Usage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
		},
	}, nil
}

// statusError classifies a non-200 response, keeping the provider's own
// error message when the body carries one.
func (p *openAIProvider) statusError(model string, resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := strings.TrimSpace(string(raw))
	var apiErr chatErrorResponse
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	return &Error{
		Kind:       classifyStatus(resp.StatusCode),
		Provider:   p.name,
		Model:      model,
		Status:     resp.StatusCode,
		RetryAfter: retryAfterFromHeader(resp.Header),
		Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, message),
	}
}
