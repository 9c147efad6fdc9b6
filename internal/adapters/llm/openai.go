package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qna-labs/qna-service/internal/domain"
)

// OpenAIClient is a minimal client for OpenAI-compatible chat completions
// APIs (OpenAI, OpenRouter, vLLM and friends).
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// OpenAIConfig configures an OpenAIClient. Timeout zero means no client
// timeout (streams can be long-lived; callers bound them via context).
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// NewOpenAIClient creates an OpenAI-compatible gateway.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      *float32      `json:"temperature,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	TopP             *float32      `json:"top_p,omitempty"`
	FrequencyPenalty *float32      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float32      `json:"presence_penalty,omitempty"`
	Stream           bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta chatMessage `json:"delta"`
	} `json:"choices"`
}

func (c *OpenAIClient) buildRequest(msgs []domain.Message, opts domain.CallOptions, stream bool) chatRequest {
	reqMessages := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		reqMessages = append(reqMessages, chatMessage{
			Role:    wireRole(m.Role),
			Content: m.Content,
		})
	}
	return chatRequest{
		Model:            opts.Model,
		Messages:         reqMessages,
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxTokens,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
		Stream:           stream,
	}
}

// wireRole maps the internal role set onto the chat-completions protocol.
// Context notes ride as system messages.
func wireRole(r domain.Role) string {
	if r == domain.RoleContextNote {
		return string(domain.RoleSystem)
	}
	return string(r)
}

func (c *OpenAIClient) send(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("non-success status=%d body=%s", resp.StatusCode, truncate(string(raw), 400))
	}
	return resp, nil
}

// Complete implements domain.ModelGateway.
func (c *OpenAIClient) Complete(ctx context.Context, msgs []domain.Message, opts domain.CallOptions) (domain.Message, error) {
	resp, err := c.send(ctx, c.buildRequest(msgs, opts, false))
	if err != nil {
		return domain.Message{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Message{}, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.Message{}, fmt.Errorf("parse response: %s", truncate(string(raw), 400))
	}
	if len(parsed.Choices) == 0 {
		return domain.Message{}, fmt.Errorf("no choices returned")
	}

	return domain.Message{
		Role:    domain.RoleAssistant,
		Content: parsed.Choices[0].Message.Content,
	}, nil
}

// Stream implements domain.ModelGateway. Chunks arrive as SSE "data:"
// frames terminated by a [DONE] sentinel; each delta is forwarded to emit
// as it is decoded.
func (c *OpenAIClient) Stream(ctx context.Context, msgs []domain.Message, opts domain.CallOptions, emit func(chunk string) error) (domain.Message, error) {
	resp, err := c.send(ctx, c.buildRequest(msgs, opts, true))
	if err != nil {
		return domain.Message{}, err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return domain.Message{}, fmt.Errorf("parse stream chunk: %s", truncate(data, 200))
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := emit(delta); err != nil {
			return domain.Message{}, fmt.Errorf("emit chunk: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Message{}, fmt.Errorf("read stream: %w", err)
	}

	return domain.Message{Role: domain.RoleAssistant, Content: full.String()}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
