package qna

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/qna-labs/qna-service/internal/domain"
	"github.com/qna-labs/qna-service/internal/observability"
)

// Conversation owns one session's fixed system prompt, context store, chat
// history and default call options, and runs turns against the injected
// model gateway.
//
// A Conversation is not safe for concurrent use. The session registry's
// exclusive guard is the only thing standing between two in-flight turns,
// so every mutating call must happen under an acquired guard.
type Conversation struct {
	gateway domain.ModelGateway
	prompt  domain.Message
	store   *ContextStore
	history []domain.Message
	opts    domain.CallOptions
}

// Config carries everything needed to construct a Conversation.
type Config struct {
	// Prompt is the fixed system prompt, immutable after construction.
	Prompt string

	// Greeting, when set, seeds the history with an assistant message so
	// the transcript opens with the service speaking first.
	Greeting string

	// Additionals pre-populates the context store. Ids are added in
	// sorted order since a map carries none of its own.
	Additionals map[string]string

	// History seeds the transcript; every entry is validated.
	History []domain.Message

	// Options are the session's default sampling parameters, merged
	// per-call with caller overrides.
	Options domain.CallOptions
}

func New(gateway domain.ModelGateway, cfg Config) (*Conversation, error) {
	if gateway == nil {
		return nil, fmt.Errorf("%w: model gateway is required", domain.ErrInvalidArguments)
	}

	c := &Conversation{
		gateway: gateway,
		prompt:  domain.NewSystemMessage(cfg.Prompt),
		store:   NewContextStore(),
		opts:    cfg.Options,
	}

	if cfg.Greeting != "" {
		c.history = append(c.history, domain.NewAssistantMessage(cfg.Greeting))
	}

	ids := make([]string, 0, len(cfg.Additionals))
	for id := range cfg.Additionals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.store.Set(id, Entry{Content: cfg.Additionals[id]})
	}

	for _, m := range cfg.History {
		if err := domain.ValidateMessage(m); err != nil {
			return nil, fmt.Errorf("initial history: %w", err)
		}
		c.history = append(c.history, m)
	}

	return c, nil
}

// Turn appends the user's text as an envelope, invokes the gateway with
// prompt + context notes + history, appends the reply and returns its
// content. Override fields win key-by-key over the session defaults.
func (c *Conversation) Turn(ctx context.Context, text string, override domain.CallOptions) (string, error) {
	return c.turn(ctx, domain.NewUserMessage(text), override, nil)
}

// TurnEnvelope is Turn for a caller-built envelope, validated first.
func (c *Conversation) TurnEnvelope(ctx context.Context, msg domain.Message, override domain.CallOptions) (string, error) {
	if err := domain.ValidateMessage(msg); err != nil {
		return "", err
	}
	return c.turn(ctx, msg, override, nil)
}

// TurnStream runs a streaming turn. Each chunk is forwarded to emit in the
// order the gateway yields it; the accumulated assistant envelope is
// appended to history only once the upstream sequence is exhausted. On a
// mid-stream failure the user envelope stays (it was already sent) and no
// assistant envelope is appended.
func (c *Conversation) TurnStream(ctx context.Context, text string, override domain.CallOptions, emit func(chunk string) error) (string, error) {
	if emit == nil {
		return "", fmt.Errorf("%w: emit callback is required for a streaming turn", domain.ErrInvalidArguments)
	}
	return c.turn(ctx, domain.NewUserMessage(text), override, emit)
}

func (c *Conversation) turn(ctx context.Context, msg domain.Message, override domain.CallOptions, emit func(string) error) (string, error) {
	log := observability.LoggerFromContext(ctx)

	c.history = append(c.history, msg)

	seq := c.buildCallMessages()
	opts := c.opts.Merge(override)

	var (
		reply domain.Message
		err   error
	)
	if emit == nil {
		reply, err = c.gateway.Complete(ctx, seq, opts)
	} else {
		reply, err = c.gateway.Stream(ctx, seq, opts, emit)
	}
	if err != nil {
		log.Error("gateway call failed", "error", err, "streaming", emit != nil)
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			return "", err
		}
		op := "complete"
		if emit != nil {
			op = "stream"
		}
		return "", &domain.UpstreamError{Op: op, Err: err}
	}

	reply = domain.SanitizeReply(reply)
	c.history = append(c.history, reply)

	log.Info("turn completed", "history_len", len(c.history), "streaming", emit != nil)
	return reply.Content, nil
}

// buildCallMessages assembles the full ordered sequence for one gateway
// call: prompt first, context notes next in insertion order, history last.
func (c *Conversation) buildCallMessages() []domain.Message {
	notes := c.store.Render()
	out := make([]domain.Message, 0, 1+len(notes)+len(c.history))
	out = append(out, c.prompt)
	out = append(out, notes...)
	out = append(out, c.history...)
	return out
}

// SetAdditional inserts or overwrites one context-store entry.
func (c *Conversation) SetAdditional(id string, e Entry) {
	c.store.Set(id, e)
}

// AppendAdditional merges a batch of additionals, last write wins per id.
// New ids enter the render order sorted, mirroring construction.
func (c *Conversation) AppendAdditional(additionals map[string]string) {
	ids := make([]string, 0, len(additionals))
	for id := range additionals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.store.Set(id, Entry{Content: additionals[id]})
	}
}

// RemoveAdditional removes one entry, failing with ErrNotFound if absent.
// The HTTP layer treats that as skippable, not fatal.
func (c *Conversation) RemoveAdditional(id string) error {
	return c.store.Remove(id)
}

// AdditionalIDs lists the context-store ids in render order.
func (c *Conversation) AdditionalIDs() []string {
	return c.store.IDs()
}

// RestartFromIndex truncates history to its first index envelopes. Valid
// indices are 0 <= index <= len(history); anything else fails with
// ErrOutOfRange and leaves history unchanged. Indices are relative to the
// history only — the prompt and context notes are never counted. No
// gateway call is made.
func (c *Conversation) RestartFromIndex(index int) error {
	if index < 0 || index > len(c.history) {
		return fmt.Errorf("%w: restart index %d, valid range is 0 to %d",
			domain.ErrOutOfRange, index, len(c.history))
	}
	c.history = c.history[:index]
	return nil
}

// AppendMessage manually inserts an envelope without invoking the gateway.
// Exactly one form must be supplied: either a (role, content) pair or a
// prebuilt envelope. Both or neither fails with ErrInvalidArguments.
func (c *Conversation) AppendMessage(role domain.Role, content string, envelope *domain.Message) error {
	hasPair := role != "" || content != ""
	if hasPair == (envelope != nil) {
		return fmt.Errorf("%w: provide either role and content, or an envelope, not both", domain.ErrInvalidArguments)
	}

	var msg domain.Message
	if envelope != nil {
		msg = *envelope
	} else {
		if role == "" || content == "" {
			return fmt.Errorf("%w: both role and content are required", domain.ErrInvalidArguments)
		}
		msg = domain.Message{Role: role, Content: content}
	}

	if err := domain.ValidateMessage(msg); err != nil {
		return err
	}
	if msg.Content == "" {
		return fmt.Errorf("%w: missing content", domain.ErrMalformedEnvelope)
	}
	c.history = append(c.history, msg)
	return nil
}

// History returns a copy of the transcript, prompt and notes excluded.
func (c *Conversation) History() []domain.Message {
	out := make([]domain.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Len reports the transcript length.
func (c *Conversation) Len() int {
	return len(c.history)
}

// Options returns the session's default call options.
func (c *Conversation) Options() domain.CallOptions {
	return c.opts
}
