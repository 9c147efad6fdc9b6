package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/qna-labs/qna-service/internal/domain"
)

// MockGateway is a scripted in-process gateway for dev mode and tests.
// With no script it echoes the last user message; otherwise it replays
// Replies in order, repeating the last one when the script runs out.
type MockGateway struct {
	Replies []string
	Err     error

	calls int

	// LastMessages records the sequence of the most recent call so tests
	// can assert on prompt/additionals/history ordering.
	LastMessages []domain.Message
	LastOptions  domain.CallOptions
}

func NewMockGateway(replies ...string) *MockGateway {
	return &MockGateway{Replies: replies}
}

func (m *MockGateway) reply(msgs []domain.Message) string {
	if len(m.Replies) > 0 {
		i := m.calls
		if i >= len(m.Replies) {
			i = len(m.Replies) - 1
		}
		return m.Replies[i]
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			return fmt.Sprintf("You said %q.", msgs[i].Content)
		}
	}
	return "Hello."
}

// Complete implements domain.ModelGateway.
func (m *MockGateway) Complete(ctx context.Context, msgs []domain.Message, opts domain.CallOptions) (domain.Message, error) {
	m.LastMessages = msgs
	m.LastOptions = opts
	if m.Err != nil {
		return domain.Message{}, m.Err
	}
	reply := m.reply(msgs)
	m.calls++
	return domain.NewAssistantMessage(reply), nil
}

// Stream implements domain.ModelGateway, yielding the reply word by word.
func (m *MockGateway) Stream(ctx context.Context, msgs []domain.Message, opts domain.CallOptions, emit func(chunk string) error) (domain.Message, error) {
	m.LastMessages = msgs
	m.LastOptions = opts
	if m.Err != nil {
		return domain.Message{}, m.Err
	}
	reply := m.reply(msgs)
	m.calls++

	words := strings.SplitAfter(reply, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		if err := emit(w); err != nil {
			return domain.Message{}, err
		}
	}
	return domain.NewAssistantMessage(reply), nil
}
