package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/qna-labs/qna-service/internal/domain"
)

// GeminiClient is a model gateway backed by Gemini on Vertex AI.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini gateway for the given GCP project and
// location.
func NewGeminiClient(ctx context.Context, projectID, location string) (*GeminiClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("gemini: project and location are required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// split separates the envelope sequence into a system instruction (system
// prompt plus context notes, in order) and the user/assistant contents.
func (g *GeminiClient) split(msgs []domain.Message) (string, []*genai.Content) {
	var systemParts []string
	var contents []*genai.Content

	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem, domain.RoleContextNote:
			systemParts = append(systemParts, m.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	return strings.Join(systemParts, "\n\n"), contents
}

func (g *GeminiClient) config(system string, opts domain.CallOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*opts.MaxTokens)
	}
	if opts.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = opts.FrequencyPenalty
	}
	if opts.PresencePenalty != nil {
		cfg.PresencePenalty = opts.PresencePenalty
	}
	return cfg
}

// Complete implements domain.ModelGateway.
func (g *GeminiClient) Complete(ctx context.Context, msgs []domain.Message, opts domain.CallOptions) (domain.Message, error) {
	system, contents := g.split(msgs)

	res, err := g.client.Models.GenerateContent(ctx, opts.Model, contents, g.config(system, opts))
	if err != nil {
		return domain.Message{}, fmt.Errorf("generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return domain.Message{}, fmt.Errorf("empty response text")
	}

	return domain.Message{Role: domain.RoleAssistant, Content: text}, nil
}

// Stream implements domain.ModelGateway.
func (g *GeminiClient) Stream(ctx context.Context, msgs []domain.Message, opts domain.CallOptions, emit func(chunk string) error) (domain.Message, error) {
	system, contents := g.split(msgs)

	var full strings.Builder
	for res, err := range g.client.Models.GenerateContentStream(ctx, opts.Model, contents, g.config(system, opts)) {
		if err != nil {
			return domain.Message{}, fmt.Errorf("generate content stream: %w", err)
		}
		chunk := res.Text()
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if err := emit(chunk); err != nil {
			return domain.Message{}, fmt.Errorf("emit chunk: %w", err)
		}
	}

	return domain.Message{Role: domain.RoleAssistant, Content: full.String()}, nil
}
