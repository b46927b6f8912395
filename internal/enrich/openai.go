// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = "gpt-4o-mini"

	// DefaultOpenAIBaseURL is the OpenAI API base; any compatible gateway works.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIAnalyzer calls an OpenAI-compatible chat completions endpoint and
// asks for a JSON object response.
type OpenAIAnalyzer struct {
	APIKey     string
	Model      string
	BaseURL    string
	Client     *http.Client
	MaxRetries int
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends one abstract and parses the structured answer.
func (o *OpenAIAnalyzer) Analyze(ctx context.Context, language, abstract string) (types.Analysis, error) {
	prompt, err := renderPrompt(language, abstract)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("rendering prompt: %w", err)
	}

	base := strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if base == "" {
		base = DefaultOpenAIBaseURL
	}
	endpoint, err := url.JoinPath(base, "chat/completions")
	if err != nil {
		return types.Analysis{}, fmt.Errorf("building endpoint: %w", err)
	}

	model := o.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	encoded, err := json.Marshal(chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return types.Analysis{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return types.Analysis{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, o.MaxRetries)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("calling chat completions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("reading chat completions response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return types.Analysis{}, fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 1024))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return types.Analysis{}, fmt.Errorf("decoding chat completions response: %w", err)
	}
	if completion.Error != nil {
		return types.Analysis{}, fmt.Errorf("chat completions error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return types.Analysis{}, fmt.Errorf("%w: empty choices", ErrMalformedOutput)
	}
	return parseAnalysis(completion.Choices[0].Message.Content)
}
