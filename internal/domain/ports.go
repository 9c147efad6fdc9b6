package domain

import "context"

// ModelGateway is the external model-invocation collaborator. The core
// hands it the full ordered envelope sequence (prompt, context notes,
// history) and treats whatever comes back as opaque. Retry and timeout
// policy belong to the adapter behind this interface, never to the core.
type ModelGateway interface {
	// Complete performs one blocking model call.
	Complete(ctx context.Context, msgs []Message, opts CallOptions) (Message, error)

	// Stream performs one streaming model call, forwarding each content
	// chunk to emit in arrival order, and returns the fully accumulated
	// reply once the upstream sequence is exhausted. A non-nil error from
	// emit aborts the call.
	Stream(ctx context.Context, msgs []Message, opts CallOptions, emit func(chunk string) error) (Message, error)
}

// CallOptions are sampling parameters for one gateway invocation.
// Pointer fields distinguish "unset" from zero so a per-call override can
// win key-by-key over the session defaults.
type CallOptions struct {
	Model            string
	Temperature      *float32
	MaxTokens        *int
	TopP             *float32
	FrequencyPenalty *float32
	PresencePenalty  *float32
}

// Merge returns base with every field the override sets replaced.
func (base CallOptions) Merge(override CallOptions) CallOptions {
	out := base
	if override.Model != "" {
		out.Model = override.Model
	}
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.MaxTokens != nil {
		out.MaxTokens = override.MaxTokens
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.FrequencyPenalty != nil {
		out.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.PresencePenalty != nil {
		out.PresencePenalty = override.PresencePenalty
	}
	return out
}
