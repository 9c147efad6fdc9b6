package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/qna-labs/qna-service/internal/domain"
)

const anthropicDefaultMaxTokens = 1024

// AnthropicClient is a model gateway backed by the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient returns a gateway using the API key from the env
// (ANTHROPIC_API_KEY), matching the SDK's default credential chain.
func NewAnthropicClient() *AnthropicClient {
	c := anthropic.NewClient()
	return &AnthropicClient{client: &c}
}

// params maps the envelope sequence onto MessageNewParams: system prompt
// and context notes become system blocks, the rest become the
// user/assistant message list.
func (a *AnthropicClient) params(msgs []domain.Message, opts domain.CallOptions) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	conv := make([]anthropic.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem, domain.RoleContextNote:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			conv = append(conv, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := anthropicDefaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: int64(maxTokens),
		System:    system,
		Messages:  conv,
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*opts.Temperature))
	}
	if opts.TopP != nil {
		params.TopP = anthropic.Float(float64(*opts.TopP))
	}
	return params
}

// Complete implements domain.ModelGateway.
func (a *AnthropicClient) Complete(ctx context.Context, msgs []domain.Message, opts domain.CallOptions) (domain.Message, error) {
	msg, err := a.client.Messages.New(ctx, a.params(msgs, opts))
	if err != nil {
		return domain.Message{}, fmt.Errorf("messages new: %w", err)
	}

	var full strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			full.WriteString(tb.Text)
		}
	}
	if full.Len() == 0 {
		return domain.Message{}, fmt.Errorf("no text blocks in response")
	}

	return domain.Message{Role: domain.RoleAssistant, Content: full.String()}, nil
}

// Stream implements domain.ModelGateway.
func (a *AnthropicClient) Stream(ctx context.Context, msgs []domain.Message, opts domain.CallOptions, emit func(chunk string) error) (domain.Message, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(msgs, opts))

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
				full.WriteString(text.Text)
				if err := emit(text.Text); err != nil {
					return domain.Message{}, fmt.Errorf("emit chunk: %w", err)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return domain.Message{}, fmt.Errorf("messages stream: %w", err)
	}

	return domain.Message{Role: domain.RoleAssistant, Content: full.String()}, nil
}
