// Package assistant runs the AI flows of the portal: summaries, fee
// estimates and the client chatbot. Each flow is a single completion call.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"lexportal-backend/pkg/completion"
	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/metrics"
	"lexportal-backend/pkg/storage"
)

// Flow names, also used as metric labels
const (
	FlowSummarize = "summarize"
	FlowEstimate  = "estimate"
	FlowChat      = "chat"
)

// MaxHistoryTurns bounds the chat history sent with a question
const MaxHistoryTurns = 20

const summarizeTemplate = `You are an assistant in a law firm. Summarize the following text for a client in plain language.
Keep the key facts, dates, parties and obligations. Answer in the language of the text.

Text:
{{.text}}`

const estimateTemplate = `You are an assistant in a law firm estimating legal fees.
Case type: {{.caseType}}
Description: {{.description}}

Answer only with a JSON object of the form
{"minFee": number, "maxFee": number, "currency": "EUR", "rationale": "short explanation"}.`

const chatTemplate = `You are the virtual assistant of a law firm. You give general legal information,
never definitive legal advice, and suggest booking an appointment with the lawyer when a question needs one.

Conversation so far:
{{.history}}
Client: {{.question}}
Assistant:`

// ChatTurn is one exchange line of the chatbot history
type ChatTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// CostEstimate is the parsed fee estimate
type CostEstimate struct {
	MinFee    float64 `json:"minFee"`
	MaxFee    float64 `json:"maxFee"`
	Currency  string  `json:"currency"`
	Rationale string  `json:"rationale"`
}

// Service handles assistant business logic
type Service struct {
	completer completion.Completer
	documents storage.DocumentReader
}

// NewService creates a new assistant service. documents may be nil when no
// object storage is configured.
func NewService(completer completion.Completer, documents storage.DocumentReader) *Service {
	return &Service{
		completer: completer,
		documents: documents,
	}
}

// Summarize summarizes free text
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.MissingFieldError("text")
	}
	return s.complete(ctx, FlowSummarize, summarizeTemplate, map[string]any{"text": text})
}

// SummarizeDocument summarizes a text document held in object storage
func (s *Service) SummarizeDocument(ctx context.Context, objectKey string) (string, error) {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return "", apperrors.MissingFieldError("objectKey")
	}
	if s.documents == nil {
		return "", apperrors.UpstreamError(errors.New("document storage is not configured"))
	}

	text, err := s.documents.ReadText(ctx, objectKey)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		return "", apperrors.NotFoundError("Document")
	case errors.Is(err, storage.ErrNotText):
		return "", apperrors.InvalidInputError("Document is not a text document")
	case err != nil:
		return "", apperrors.UpstreamError(fmt.Errorf("failed to read document: %w", err))
	}

	return s.Summarize(ctx, text)
}

// EstimateCost asks for a fee range for a case
func (s *Service) EstimateCost(ctx context.Context, caseType, description string) (*CostEstimate, error) {
	caseType = strings.TrimSpace(caseType)
	description = strings.TrimSpace(description)
	if caseType == "" {
		return nil, apperrors.MissingFieldError("caseType")
	}
	if description == "" {
		return nil, apperrors.MissingFieldError("description")
	}

	answer, err := s.complete(ctx, FlowEstimate, estimateTemplate, map[string]any{
		"caseType":    caseType,
		"description": description,
	})
	if err != nil {
		return nil, err
	}

	estimate, err := parseEstimate(answer)
	if err != nil {
		logger.FromContext(ctx).Warn("Unparseable cost estimate", zap.String("answer", answer), zap.Error(err))
		return nil, apperrors.UpstreamError(err)
	}
	return estimate, nil
}

// Chat answers a client question given the previous turns
func (s *Service) Chat(ctx context.Context, history []ChatTurn, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperrors.MissingFieldError("question")
	}
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}

	return s.complete(ctx, FlowChat, chatTemplate, map[string]any{
		"history":  formatHistory(history),
		"question": question,
	})
}

func (s *Service) complete(ctx context.Context, flow, template string, vars map[string]any) (string, error) {
	start := time.Now()
	answer, err := s.completer.Complete(ctx, template, vars)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PortalCompletionDuration.WithLabelValues(flow, status).Observe(time.Since(start).Seconds())

	if err != nil {
		logger.FromContext(ctx).Warn("Completion failed", zap.String("flow", flow), zap.Error(err))
		return "", apperrors.UpstreamError(err)
	}
	return answer, nil
}

func formatHistory(history []ChatTurn) string {
	if len(history) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, turn := range history {
		speaker := "Client"
		if turn.Role == "assistant" {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, strings.TrimSpace(turn.Content))
	}
	return b.String()
}

// parseEstimate extracts the JSON object of an answer, which models often
// wrap in a fenced block or in prose
func parseEstimate(answer string) (*CostEstimate, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in answer")
	}

	var estimate CostEstimate
	if err := json.Unmarshal([]byte(answer[start:end+1]), &estimate); err != nil {
		return nil, fmt.Errorf("failed to decode estimate: %w", err)
	}
	if estimate.MinFee < 0 || estimate.MaxFee < estimate.MinFee {
		return nil, fmt.Errorf("inconsistent fee range %v-%v", estimate.MinFee, estimate.MaxFee)
	}
	if estimate.Currency == "" {
		estimate.Currency = "EUR"
	}
	return &estimate, nil
}
