package azure

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"portfolio-backend/internal/llm"
	"portfolio-backend/internal/shared/telemetry"
)

const (
	defaultDeployment = "gpt-35-turbo"
	defaultAPIVersion = "2024-10-21"
	temperature       = 0.2
	retryWait         = 300 * time.Millisecond
)

// Config configures the Azure OpenAI chat-completions client.
type Config struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Timeout    time.Duration
	// RetryWait is the pause before the single transport retry.
	RetryWait time.Duration
}

// Client implements llm.Client using Azure OpenAI chat completions.
type Client struct {
	http       *resty.Client
	apiKey     string
	deployment string
	apiVersion string
}

// NewClient constructs a new Azure OpenAI client.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY is required")
	}
	deployment := strings.TrimSpace(cfg.Deployment)
	if deployment == "" {
		deployment = defaultDeployment
	}
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	wait := cfg.RetryWait
	if wait <= 0 {
		wait = retryWait
	}

	client := resty.New()
	client.SetBaseURL(endpoint)
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetRetryCount(1).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(wait).
		AddRetryCondition(retryable).
		AddRetryHook(func(resp *resty.Response, err error) {
			fields := map[string]any{"provider": "azure", "deployment": deployment}
			if err != nil {
				fields["error"] = err.Error()
			}
			if resp != nil {
				fields["status"] = resp.StatusCode()
			}
			telemetry.Warn("llm.retry", fields)
		})

	return &Client{
		http:       client,
		apiKey:     cfg.APIKey,
		deployment: deployment,
		apiVersion: apiVersion,
	}, nil
}

// retryable allows one more attempt on transport errors, throttling and 5xx.
func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return llm.ShouldRetry(err)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

type errorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Interpret sends the document text with the fixed task description and
// classifies the reply as text or structured output.
func (c *Client) Interpret(ctx context.Context, text string) (llm.Interpretation, error) {
	body := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: llm.TaskDescription()},
			{Role: "user", Content: llm.UserMessage(text)},
		},
		Temperature: temperature,
	}

	var result chatResponse
	var apiErr errorResponse
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("api-key", c.apiKey).
		SetPathParam("deployment", c.deployment).
		SetQueryParam("api-version", c.apiVersion).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/openai/deployments/{deployment}/chat/completions")
	if err != nil {
		return llm.Interpretation{}, fmt.Errorf("azure openai request: %w", err)
	}
	if resp.IsError() {
		msg := strings.TrimSpace(resp.String())
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return llm.Interpretation{}, fmt.Errorf("azure openai http status %d: %s", resp.StatusCode(), msg)
	}

	fields := map[string]any{
		"provider":       "azure",
		"deployment":     c.deployment,
		"prompt_version": llm.PromptVersion,
		"prompt_hash":    llm.PromptHash(),
		"duration_ms":    time.Since(start).Milliseconds(),
	}
	if result.Usage != nil {
		fields["prompt_tokens"] = result.Usage.PromptTokens
		fields["completion_tokens"] = result.Usage.CompletionTokens
	}
	telemetry.Info("llm.usage", fields)

	// An empty reply is still an answer; the parser fills in defaults.
	content := ""
	if len(result.Choices) > 0 {
		content = result.Choices[0].Message.Content
	}

	out := llm.FromContent(content)
	out.Provider = "azure"
	out.Model = c.deployment
	if result.Model != "" {
		out.Model = result.Model
	}
	return out, nil
}

var _ llm.Client = (*Client)(nil)
