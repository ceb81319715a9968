// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Reassembly of indexed tool_call deltas into StreamEvent values

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Model interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) request(req CompletionRequest) openai.ChatCompletionRequest {
	oreq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(req.SystemPrompt, req.Messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stop:        req.StopSequences,
	}
	if req.MaxTokens > 0 {
		oreq.MaxTokens = int(req.MaxTokens)
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
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(req))
	if err != nil {
		return CompletionResponse{}, NewProviderError(p.Name(), fmt.Errorf("chat completion failed: %w", err))
	}
	return fromOpenAIResponse(resp), nil
}

// Stream starts a streaming completion.
func (p *OpenAIProvider) Stream(ctx context.Context, req CompletionRequest) (Stream, error) {
	oreq := p.request(req)
	oreq.Stream = true
	oreq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	return openAIStream(ctx, p.client, oreq, p.Name()), nil
}

// openAIStream adapts a Chat Completions stream. Shared with every
// OpenAI-compatible endpoint.
//
// Tool calls arrive as indexed deltas; the first delta of an index carries
// the id and name. Calls are closed when the choice reports a finish
// reason, and the turn ends at EOF so the trailing usage chunk is included.
func openAIStream(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest, provider string) Stream {
	return func(yield func(StreamEvent, error) bool) {
		stream, err := client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield(nil, NewProviderError(provider, fmt.Errorf("stream creation failed: %w", err)))
			return
		}
		defer stream.Close()

		var usage Usage
		stopReason := StopEndTurn
		open := make(map[int]bool)

		closeOpen := func() bool {
			indices := make([]int, 0, len(open))
			for idx, isOpen := range open {
				if isOpen {
					indices = append(indices, idx)
				}
			}
			sort.Ints(indices)
			for _, idx := range indices {
				open[idx] = false
				if !yield(ToolCallEndEvent{Index: idx}, nil) {
					return false
				}
			}
			return true
		}

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield(nil, NewProviderError(provider, fmt.Errorf("stream recv failed: %w", err)))
				return
			}

			// Usage arrives on the final chunk
			if response.Usage != nil {
				usage = Usage{
					InputTokens:  uint32(response.Usage.PromptTokens),
					OutputTokens: uint32(response.Usage.CompletionTokens),
				}
			}
			if len(response.Choices) == 0 {
				continue
			}

			choice := response.Choices[0]
			if choice.Delta.Content != "" {
				if !yield(TextDeltaEvent{Text: choice.Delta.Content}, nil) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				if _, seen := open[idx]; !seen {
					open[idx] = true
					if !yield(ToolCallStartEvent{Index: idx, ID: tc.ID, Name: tc.Function.Name}, nil) {
						return
					}
				}
				if tc.Function.Arguments != "" {
					if !yield(ToolCallDeltaEvent{Index: idx, Fragment: tc.Function.Arguments}, nil) {
						return
					}
				}
			}

			if choice.FinishReason != "" {
				stopReason = openAIStopReason(choice.FinishReason)
				if !closeOpen() {
					return
				}
			}
		}

		if !closeOpen() {
			return
		}
		yield(TurnEndEvent{StopReason: stopReason, Usage: usage}, nil)
	}
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) CompletionResponse {
	msg := Message{Role: RoleAssistant}
	stopReason := StopEndTurn
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			msg.Content = append(msg.Content, NewTextBlock(choice.Message.Content))
		}
		for _, tc := range choice.Message.ToolCalls {
			args := tc.Function.Arguments
			if args == "" {
				args = "{}"
			}
			msg.Content = append(msg.Content, NewToolUseBlock(tc.ID, tc.Function.Name, []byte(args)))
		}
		stopReason = openAIStopReason(choice.FinishReason)
	}

	return CompletionResponse{
		Message:    msg,
		StopReason: stopReason,
		Usage: Usage{
			InputTokens:  uint32(resp.Usage.PromptTokens),
			OutputTokens: uint32(resp.Usage.CompletionTokens),
		},
	}
}

func openAIStopReason(reason openai.FinishReason) StopReason {
	switch reason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return StopToolUse
	case openai.FinishReasonLength:
		return StopMaxTokens
	case openai.FinishReasonContentFilter:
		return StopError
	default:
		return StopEndTurn
	}
}

// convertToOpenAIMessages converts the conversation to Chat Completions
// messages. Each tool result becomes its own "tool" message.
func convertToOpenAIMessages(systemPrompt string, messages []Message) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage
	if systemPrompt != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Text(),
			})
		case RoleUser:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Text(),
			})
		case RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Text(),
			}
			for _, tu := range msg.ToolUses() {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tu.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tu.Name,
						Arguments: string(tu.Input),
					},
				})
			}
			result = append(result, oaiMsg)
		case RoleTool:
			for _, tr := range msg.ToolResults() {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolUseID,
				})
			}
		}
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Model
var _ Model = (*OpenAIProvider)(nil)
