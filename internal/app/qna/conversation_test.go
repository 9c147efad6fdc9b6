package qna_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/qna-labs/qna-service/internal/adapters/llm"
	"github.com/qna-labs/qna-service/internal/app/qna"
	"github.com/qna-labs/qna-service/internal/domain"
)

func newConversation(t *testing.T, gateway domain.ModelGateway, cfg qna.Config) *qna.Conversation {
	t.Helper()
	conv, err := qna.New(gateway, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return conv
}

func TestTurnAppendsUserAndAssistant(t *testing.T) {
	ctx := context.Background()
	gateway := llm.NewMockGateway("hi")
	conv := newConversation(t, gateway, qna.Config{Prompt: "P"})

	reply, err := conv.Turn(ctx, "hello", domain.CallOptions{})
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if reply != "hi" {
		t.Fatalf("expected reply %q, got %q", "hi", reply)
	}

	history := conv.History()
	want := []domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "hi"},
	}
	if len(history) != len(want) {
		t.Fatalf("expected %d history entries, got %d: %+v", len(want), len(history), history)
	}
	for i := range want {
		if history[i] != want[i] {
			t.Fatalf("history[%d] = %+v, want %+v", i, history[i], want[i])
		}
	}
}

func TestTurnCallSequenceOrdering(t *testing.T) {
	ctx := context.Background()
	gateway := llm.NewMockGateway("ok")
	conv := newConversation(t, gateway, qna.Config{Prompt: "P"})

	conv.SetAdditional("note1", qna.Entry{Content: "alpha"})
	conv.SetAdditional("note2", qna.Entry{Content: "beta"})

	if _, err := conv.Turn(ctx, "question", domain.CallOptions{}); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	seq := gateway.LastMessages
	if len(seq) != 4 {
		t.Fatalf("expected prompt + 2 notes + user, got %d messages: %+v", len(seq), seq)
	}
	if seq[0].Role != domain.RoleSystem || seq[0].Content != "P" {
		t.Fatalf("prompt must come first, got %+v", seq[0])
	}
	if seq[1].Content != "alpha" || seq[2].Content != "beta" {
		t.Fatalf("context notes out of insertion order: %+v", seq[1:3])
	}
	if seq[3].Role != domain.RoleUser || seq[3].Content != "question" {
		t.Fatalf("history must come last, got %+v", seq[3])
	}
}

func TestTurnOptionsOverrideWinsPerKey(t *testing.T) {
	ctx := context.Background()
	gateway := llm.NewMockGateway("ok")

	temp := float32(0.2)
	tokens := 256
	conv := newConversation(t, gateway, qna.Config{
		Prompt:  "P",
		Options: domain.CallOptions{Model: "base-model", Temperature: &temp, MaxTokens: &tokens},
	})

	override := float32(0.9)
	if _, err := conv.Turn(ctx, "q", domain.CallOptions{Temperature: &override}); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	opts := gateway.LastOptions
	if opts.Model != "base-model" {
		t.Fatalf("model should keep session default, got %q", opts.Model)
	}
	if opts.Temperature == nil || *opts.Temperature != 0.9 {
		t.Fatalf("temperature override not applied: %+v", opts.Temperature)
	}
	if opts.MaxTokens == nil || *opts.MaxTokens != 256 {
		t.Fatalf("max tokens should keep session default: %+v", opts.MaxTokens)
	}
}

func TestTurnGatewayFailureIsUpstreamError(t *testing.T) {
	ctx := context.Background()
	gateway := llm.NewMockGateway()
	gateway.Err = errors.New("quota exceeded")
	conv := newConversation(t, gateway, qna.Config{Prompt: "P"})

	_, err := conv.Turn(ctx, "hello", domain.CallOptions{})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	// The user envelope was sent upstream, so it stays; no assistant reply
	// was appended.
	if conv.Len() != 1 {
		t.Fatalf("expected 1 history entry after failed turn, got %d", conv.Len())
	}
}

func TestTurnStreamForwardsChunksInOrder(t *testing.T) {
	ctx := context.Background()
	gateway := llm.NewMockGateway("streamed reply here")
	conv := newConversation(t, gateway, qna.Config{Prompt: "P"})

	var chunks []string
	reply, err := conv.TurnStream(ctx, "go", domain.CallOptions{}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("TurnStream failed: %v", err)
	}

	if strings.Join(chunks, "") != "streamed reply here" {
		t.Fatalf("chunks do not reassemble the reply: %q", chunks)
	}
	if reply != "streamed reply here" {
		t.Fatalf("unexpected accumulated reply %q", reply)
	}
	history := conv.History()
	if len(history) != 2 || history[1].Content != "streamed reply here" {
		t.Fatalf("accumulated envelope not appended: %+v", history)
	}
}

func TestTurnStreamEmitFailureKeepsUserEnvelopeOnly(t *testing.T) {
	ctx := context.Background()
	gateway := llm.NewMockGateway("one two three")
	conv := newConversation(t, gateway, qna.Config{Prompt: "P"})

	sentinel := errors.New("consumer went away")
	_, err := conv.TurnStream(ctx, "go", domain.CallOptions{}, func(string) error {
		return sentinel
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if conv.Len() != 1 {
		t.Fatalf("expected only the user envelope, got %d entries", conv.Len())
	}
}

func TestRestartFromIndex(t *testing.T) {
	ctx := context.Background()
	gateway := llm.NewMockGateway("a", "b")
	conv := newConversation(t, gateway, qna.Config{Prompt: "P"})

	if _, err := conv.Turn(ctx, "one", domain.CallOptions{}); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if _, err := conv.Turn(ctx, "two", domain.CallOptions{}); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	for _, index := range []int{4, 3, 2, 1, 0} {
		if err := conv.RestartFromIndex(index); err != nil {
			t.Fatalf("RestartFromIndex(%d) failed: %v", index, err)
		}
		if conv.Len() != index {
			t.Fatalf("after RestartFromIndex(%d), len = %d", index, conv.Len())
		}
	}
}

func TestRestartFromIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	gateway := llm.NewMockGateway("a")
	conv := newConversation(t, gateway, qna.Config{Prompt: "P"})

	if _, err := conv.Turn(ctx, "one", domain.CallOptions{}); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	for _, index := range []int{-1, 3, 100} {
		err := conv.RestartFromIndex(index)
		if !errors.Is(err, domain.ErrOutOfRange) {
			t.Fatalf("RestartFromIndex(%d): expected ErrOutOfRange, got %v", index, err)
		}
		if conv.Len() != 2 {
			t.Fatalf("failed restart must leave state unchanged, len = %d", conv.Len())
		}
	}
}

func TestAppendMessageForms(t *testing.T) {
	gateway := llm.NewMockGateway()

	t.Run("pair form", func(t *testing.T) {
		conv := newConversation(t, gateway, qna.Config{Prompt: "P"})
		if err := conv.AppendMessage(domain.RoleAssistant, "manual note", nil); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if conv.Len() != 1 {
			t.Fatalf("expected 1 entry, got %d", conv.Len())
		}
	})

	t.Run("envelope form", func(t *testing.T) {
		conv := newConversation(t, gateway, qna.Config{Prompt: "P"})
		msg := domain.NewUserMessage("hello")
		if err := conv.AppendMessage("", "", &msg); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	})

	t.Run("neither form", func(t *testing.T) {
		conv := newConversation(t, gateway, qna.Config{Prompt: "P"})
		err := conv.AppendMessage("", "", nil)
		if !errors.Is(err, domain.ErrInvalidArguments) {
			t.Fatalf("expected ErrInvalidArguments, got %v", err)
		}
	})

	t.Run("both forms is ambiguous", func(t *testing.T) {
		conv := newConversation(t, gateway, qna.Config{Prompt: "P"})
		msg := domain.NewUserMessage("hello")
		err := conv.AppendMessage(domain.RoleUser, "hello", &msg)
		if !errors.Is(err, domain.ErrInvalidArguments) {
			t.Fatalf("expected ErrInvalidArguments, got %v", err)
		}
	})

	t.Run("envelope missing content", func(t *testing.T) {
		conv := newConversation(t, gateway, qna.Config{Prompt: "P"})
		msg := domain.Message{Role: domain.RoleUser}
		err := conv.AppendMessage("", "", &msg)
		if !errors.Is(err, domain.ErrMalformedEnvelope) {
			t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
		}
		if conv.Len() != 0 {
			t.Fatalf("failed append must leave state unchanged, len = %d", conv.Len())
		}
	})

	t.Run("envelope with unknown role", func(t *testing.T) {
		conv := newConversation(t, gateway, qna.Config{Prompt: "P"})
		msg := domain.Message{Role: "narrator", Content: "hello"}
		err := conv.AppendMessage("", "", &msg)
		if !errors.Is(err, domain.ErrMalformedEnvelope) {
			t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
		}
	})
}

func TestAppendAdditionalMergesLastWriteWins(t *testing.T) {
	gateway := llm.NewMockGateway()
	conv := newConversation(t, gateway, qna.Config{Prompt: "P"})

	conv.AppendAdditional(map[string]string{"a": "x"})
	conv.AppendAdditional(map[string]string{"a": "y"})

	ids := conv.AdditionalIDs()
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("expected exactly one id, got %v", ids)
	}

	if err := conv.RemoveAdditional("a"); err != nil {
		t.Fatalf("first remove failed: %v", err)
	}
	if err := conv.RemoveAdditional("a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestNewValidatesInitialHistory(t *testing.T) {
	gateway := llm.NewMockGateway()

	_, err := qna.New(gateway, qna.Config{
		Prompt:  "P",
		History: []domain.Message{{Role: "bogus", Content: "x"}},
	})
	if !errors.Is(err, domain.ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestGreetingSeedsHistory(t *testing.T) {
	gateway := llm.NewMockGateway()
	conv := newConversation(t, gateway, qna.Config{Prompt: "P", Greeting: "Welcome!"})

	history := conv.History()
	if len(history) != 1 || history[0].Role != domain.RoleAssistant || history[0].Content != "Welcome!" {
		t.Fatalf("greeting not seeded: %+v", history)
	}
}
