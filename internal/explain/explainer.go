package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vorn/vorn/internal/detector"
	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/observability/logging"
)

const (
	DefaultModel   = "gpt-4.1-mini"
	DefaultTimeout = 20 * time.Second

	systemPrompt = "You are a concise PCI/Policy explainer. Reply in 2-3 sentences. Do not provide legal advice."
	maxTokens    = 200
	temperature  = 0.2
)

// Explainer turns a redacted request into an explanation.
type Explainer interface {
	Explain(ctx context.Context, req Request) (Response, error)
}

// FallbackExplainer always answers with Fallback.
type FallbackExplainer struct{}

func (FallbackExplainer) Explain(_ context.Context, req Request) (Response, error) {
	return Fallback(req), nil
}

// HTTPExplainer asks an OpenAI-compatible chat completions endpoint. Any
// failure degrades to Fallback; Explain never returns an error.
type HTTPExplainer struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewHTTPExplainer(url, apiKey, model string, timeout time.Duration) *HTTPExplainer {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPExplainer{
		url:    strings.TrimSpace(url),
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (e *HTTPExplainer) Explain(ctx context.Context, req Request) (Response, error) {
	text, err := e.complete(ctx, req)
	if err != nil {
		logging.From(ctx).Warn("explain", "model call failed, using fallback", "error", err.Error())
		return Fallback(req), nil
	}
	if text == "" {
		return Fallback(req), nil
	}
	return Response{
		Explanation:     detector.NewPANDetector().RedactText(text),
		RulesReferenced: nonNil(req.FiredRules),
		Source:          SourceModel,
	}, nil
}

func (e *HTTPExplainer) complete(ctx context.Context, req Request) (string, error) {
	if e.url == "" {
		return "", errors.New("no endpoint configured")
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	res, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// Body is not echoed; providers sometimes reflect the prompt back.
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("explain endpoint status %d", res.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Describe redacts the pair, asks ex and attaches the JSON patch between
// the redacted input and the output.
func Describe(ctx context.Context, ex Explainer, before models.RowInput, after models.RowOutput) (Response, error) {
	req := NewRequest(before, after)
	if ex == nil {
		ex = FallbackExplainer{}
	}
	resp, err := ex.Explain(ctx, req)
	if err != nil {
		resp = Fallback(req)
	}
	changes, err := Changes(req)
	if err != nil {
		return resp, err
	}
	resp.Changes = changes
	resp.ChangeSummary = Translate(changes)
	return resp, nil
}
