package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/orgmesh-labs/orgmesh/internal/metrics"
	"github.com/orgmesh-labs/orgmesh/internal/models"
)

const systemPrompt = "You extract roles, teams, and task candidates from email text. " +
	"If unknown, return 'Unknown'. Return only JSON with keys role, team, task_title, task_description."

// OpenAIOracle calls an OpenAI-compatible chat completion endpoint.
type OpenAIOracle struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIOracle creates an oracle against the given endpoint. baseURL
// may point at any OpenAI-compatible gateway.
func NewOpenAIOracle(baseURL, apiKey, model string, timeout time.Duration) *OpenAIOracle {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIOracle{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
	}
}

// Classify issues one blocking call with an explicit timeout. On timeout
// the in-flight call is cancelled and its partial result discarded.
func (o *OpenAIOracle) Classify(ctx context.Context, req Request) (*models.Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.prompt()},
		},
		Temperature:    0.0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	metrics.OracleCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("oracle call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("oracle call: empty response")
	}

	var parsed struct {
		Role            string `json:"role"`
		Team            string `json:"team"`
		TaskTitle       string `json:"task_title"`
		TaskDescription string `json:"task_description"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("oracle response parse: %w", err)
	}

	return &models.Enrichment{
		Role:            orUnknown(parsed.Role),
		Team:            orUnknown(parsed.Team),
		TaskTitle:       orUnknown(parsed.TaskTitle),
		TaskDescription: orUnknown(parsed.TaskDescription),
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
