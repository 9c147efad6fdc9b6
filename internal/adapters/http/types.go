package httpadapter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qna-labs/qna-service/internal/domain"
)

// ─────────────────────────────────────────────
// Response envelope
// ─────────────────────────────────────────────

// metadata stamps every response with a fresh identifier and timestamp.
type metadata struct {
	MessageID string `json:"messageID"`
	Timestamp string `json:"timestamp"`
}

func newMetadata() metadata {
	return metadata{
		MessageID: uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

type serviceResponse struct {
	Payload  any      `json:"payload,omitempty"`
	Metadata metadata `json:"metadata"`
}

type errorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Metadata metadata `json:"metadata"`
}

// ─────────────────────────────────────────────
// Init
// ─────────────────────────────────────────────

type clientArgsRequest struct {
	APIKey     string   `json:"apiKey,omitempty"`
	BaseURL    string   `json:"baseUrl,omitempty"`
	Timeout    *float64 `json:"timeout,omitempty"`
	MaxRetries *int     `json:"maxRetries,omitempty"`
}

// historyMessage is a strictly typed envelope at the boundary: a non-string
// content payload fails JSON decoding before it ever reaches the core, and
// an absent content field is distinguishable from an empty one.
type historyMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

func (m historyMessage) toDomain() (domain.Message, error) {
	if m.Content == nil {
		return domain.Message{}, fmt.Errorf("%w: missing content", domain.ErrMalformedEnvelope)
	}
	msg := domain.Message{Role: domain.Role(m.Role), Content: *m.Content}
	if err := domain.ValidateMessage(msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

type qnaArgsRequest struct {
	Prompt           string            `json:"prompt,omitempty"`
	DefaultMessage   string            `json:"defaultMessage,omitempty"`
	Model            string            `json:"model,omitempty"`
	Temperature      *float32          `json:"temperature,omitempty"`
	MaxTokens        *int              `json:"maxTokens,omitempty"`
	TopP             *float32          `json:"topP,omitempty"`
	FrequencyPenalty *float32          `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float32          `json:"presencePenalty,omitempty"`
	Additionals      map[string]string `json:"additionals,omitempty"`
	ChatHistory      []historyMessage  `json:"chatHistory,omitempty"`
}

type initRequest struct {
	ClientArgs clientArgsRequest `json:"clientArgs"`
	QnAArgs    qnaArgsRequest    `json:"qnaArgs"`
}

type initResponse struct {
	SessionID string `json:"sessionId"`
}

// ─────────────────────────────────────────────
// Messaging
// ─────────────────────────────────────────────

type messageRequest struct {
	Message string `json:"message"`
	Stream  bool   `json:"stream,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type streamRequest struct {
	Message string `json:"message"`
}

type streamJobResponse struct {
	JobID string `json:"jobId"`
}

// ─────────────────────────────────────────────
// Additionals
// ─────────────────────────────────────────────

type restCallRequest struct {
	BaseURL string            `json:"baseUrl"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Params  map[string]any    `json:"params,omitempty"`
}

// additionalItem carries content that is either a plain string or a REST
// call description; the two are told apart when decoding.
type additionalItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	Content     json.RawMessage `json:"content"`
}

// contentParts decodes Content into exactly one of its two forms.
func (it additionalItem) contentParts() (text string, call *restCallRequest, err error) {
	if len(it.Content) == 0 {
		return "", nil, fmt.Errorf("%w: item %q has no content", domain.ErrInvalidArguments, it.ID)
	}
	if err := json.Unmarshal(it.Content, &text); err == nil {
		return text, nil, nil
	}
	var rc restCallRequest
	if err := json.Unmarshal(it.Content, &rc); err != nil || rc.BaseURL == "" || rc.Method == "" {
		return "", nil, fmt.Errorf("%w: item %q content must be a string or a REST call description", domain.ErrInvalidArguments, it.ID)
	}
	return "", &rc, nil
}

type additionalsRequest struct {
	Items []additionalItem `json:"items"`
}

type additionalsResponse struct {
	AddedItems []string `json:"addedItems"`
	Message    string   `json:"message"`
}

type removeAdditionalsRequest struct {
	IDs []string `json:"ids"`
}

type removeAdditionalsResponse struct {
	RemovedItems []string `json:"removedItems"`
	Message      string   `json:"message"`
}

// ─────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────

type healthStatus string

const (
	healthStatusHealthy   healthStatus = "healthy"
	healthStatusDegraded  healthStatus = "degraded"
	healthStatusUnhealthy healthStatus = "unhealthy"
)

type healthMetrics struct {
	ActiveSessions int `json:"activeSessions"`
	LockedSessions int `json:"lockedSessions"`
}

type healthResponse struct {
	Status    healthStatus   `json:"status"`
	Error     string         `json:"error,omitempty"`
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	Metrics   *healthMetrics `json:"metrics,omitempty"`
	Metadata  metadata       `json:"metadata"`
}
