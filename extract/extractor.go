// Package extract consumes the natural-language extraction capability:
// given raw chat text, it asks a model for a candidate property patch.
// The reconciliation core treats this as an external collaborator; only
// the interface and the wire handling live here.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mediaops/prodsync/reconcile"
)

// maxResponseSize bounds model response bodies.
const maxResponseSize = 1 * 1024 * 1024 // 1MB

// Extractor turns free chat text into a candidate property patch.
// The second return is false when the text carries no project update.
type Extractor interface {
	Extract(ctx context.Context, text string, today time.Time) (*reconcile.Patch, bool, error)
}

const systemPrompt = `You read one chat message from a video production team and extract
project field updates. Reply with a single JSON object. Use keys:
status, caption_status, thumbnail_status, editor (array), lead,
due_date (ISO date), publish_date (ISO date), frameio_url, script_url,
note. Omit keys the message does not mention. Resolve relative dates
against today's date, given below. If the message contains no update,
reply {"no_change": true}.`

// LLMExtractor calls an OpenAI-compatible chat endpoint.
type LLMExtractor struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// LLMOption configures an LLMExtractor.
type LLMOption func(*LLMExtractor)

// WithExtractorHTTPClient sets a custom http.Client.
func WithExtractorHTTPClient(c *http.Client) LLMOption {
	return func(e *LLMExtractor) { e.httpClient = c }
}

// WithExtractorLogger sets the logger.
func WithExtractorLogger(logger *slog.Logger) LLMOption {
	return func(e *LLMExtractor) { e.logger = logger }
}

// WithAPIKey sets the bearer token sent to the endpoint.
func WithAPIKey(key string) LLMOption {
	return func(e *LLMExtractor) { e.apiKey = key }
}

// NewLLMExtractor creates an extractor for the given chat-completions
// base URL and model name.
func NewLLMExtractor(endpoint, model string, opts ...LLMOption) *LLMExtractor {
	e := &LLMExtractor{
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		model:       model,
		temperature: 0.1,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract asks the model for a patch. today anchors relative dates.
func (e *LLMExtractor) Extract(ctx context.Context, text string, today time.Time) (*reconcile.Patch, bool, error) {
	req := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt + "\nToday is " + today.Format("2006-01-02") + "."},
			{Role: "user", Content: text},
		},
		Temperature: e.temperature,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, false, fmt.Errorf("marshal extraction request: %w", err)
	}

	url := e.endpoint + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create extraction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("call extraction endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, false, fmt.Errorf("read extraction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("extraction endpoint status %d: %s", resp.StatusCode, firstLine(string(body)))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, false, fmt.Errorf("decode extraction response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, false, fmt.Errorf("extraction response has no choices")
	}

	return ParsePatch(chat.Choices[0].Message.Content)
}

// ParsePatch turns a model reply into a patch. The second return is
// false for a "no change" reply.
func ParsePatch(content string) (*reconcile.Patch, bool, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return nil, false, fmt.Errorf("no JSON object in reply: %s", firstLine(content))
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, false, fmt.Errorf("parse extracted JSON: %w", err)
	}

	if noChange, ok := fields["no_change"].(bool); ok && noChange {
		return nil, false, nil
	}

	patch := reconcile.NewPatch()
	for name, value := range fields {
		fv, ok := fieldValue(name, value)
		if !ok {
			continue
		}
		patch.Set(name, fv)
	}
	if patch.Len() == 0 {
		return nil, false, nil
	}
	return patch, true, nil
}

// fieldValue picks the patch shape for one extracted field.
func fieldValue(name string, value any) (reconcile.FieldValue, bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return reconcile.FieldValue{}, false
		}
		switch {
		case name == "note":
			return reconcile.Note(v), true
		case strings.HasSuffix(name, "_url"):
			return reconcile.URL(v), true
		case strings.HasSuffix(name, "_date"):
			return reconcile.Date(v), true
		default:
			return reconcile.Text(v), true
		}
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				items = append(items, s)
			}
		}
		if len(items) == 0 {
			return reconcile.FieldValue{}, false
		}
		return reconcile.List(items), true
	default:
		return reconcile.FieldValue{}, false
	}
}
