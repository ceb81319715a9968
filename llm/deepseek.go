// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL
// - Supports deepseek-chat and deepseek-reasoner models
// - Streaming shares the Chat Completions adapter

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements the Model interface for DeepSeek.
type DeepSeekProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *DeepSeekProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = deepseekBaseURL

	return &DeepSeekProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *DeepSeekProvider) Name() string {
	return "deepseek"
}

// Model returns the current model.
func (p *DeepSeekProvider) Model() string {
	return p.model
}

func (p *DeepSeekProvider) request(req CompletionRequest) openai.ChatCompletionRequest {
	oreq := openai.ChatCompletionRequest{
		Model:               p.model,
		Messages:            convertToOpenAIMessages(req.SystemPrompt, req.Messages),
		MaxCompletionTokens: p.maxTokens,
		Temperature:         p.temperature,
		Stop:                req.StopSequences,
	}
	if req.MaxTokens > 0 {
		oreq.MaxCompletionTokens = int(req.MaxTokens)
	}
	if req.Temperature > 0 {
		oreq.Temperature = req.Temperature
	}
	if len(req.Tools) > 0 {
		oreq.Tools = convertToOpenAITools(req.Tools)
	}
	return oreq
}

// Complete sends a non-streaming completion request.
func (p *DeepSeekProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(req))
	if err != nil {
		return CompletionResponse{}, NewProviderError(p.Name(), fmt.Errorf("chat completion failed: %w", err))
	}
	// DeepSeek returns token usage in the standard OpenAI format
	return fromOpenAIResponse(resp), nil
}

// Stream starts a streaming completion.
func (p *DeepSeekProvider) Stream(ctx context.Context, req CompletionRequest) (Stream, error) {
	oreq := p.request(req)
	oreq.Stream = true
	oreq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	return openAIStream(ctx, p.client, oreq, p.Name()), nil
}

// Verify DeepSeekProvider implements Model
var _ Model = (*DeepSeekProvider)(nil)
