// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Translation of SSE content-block events into StreamEvent values

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Model interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

func (p *AnthropicProvider) params(req CompletionRequest) anthropic.MessageNewParams {
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	temperature := p.temperature
	if req.Temperature > 0 {
		temperature = float64(req.Temperature)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   maxTokens,
		Messages:    convertToAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(temperature),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToAnthropicTools(req.Tools)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}
	return params
}

// Complete sends a non-streaming completion request.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	message, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return CompletionResponse{}, NewProviderError(p.Name(), fmt.Errorf("chat completion failed: %w", err))
	}

	msg := Message{Role: RoleAssistant}
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			if variant.Text != "" {
				msg.Content = append(msg.Content, NewTextBlock(variant.Text))
			}
		case anthropic.ToolUseBlock:
			inputJSON, err := json.Marshal(variant.Input)
			if err != nil {
				return CompletionResponse{}, NewProviderError(p.Name(), fmt.Errorf("encode tool input: %w", err))
			}
			msg.Content = append(msg.Content, NewToolUseBlock(variant.ID, variant.Name, inputJSON))
		}
	}

	return CompletionResponse{
		Message:    msg,
		StopReason: anthropicStopReason(string(message.StopReason)),
		Usage: Usage{
			InputTokens:  uint32(message.Usage.InputTokens),
			OutputTokens: uint32(message.Usage.OutputTokens),
		},
	}, nil
}

// Stream starts a streaming completion.
//
// Anthropic numbers content blocks across text and tool_use; the block
// index is used directly as the tool-call index.
func (p *AnthropicProvider) Stream(ctx context.Context, req CompletionRequest) (Stream, error) {
	params := p.params(req)

	return func(yield func(StreamEvent, error) bool) {
		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var usage Usage
		stopReason := StopEndTurn
		toolBlocks := make(map[int64]bool)

		for stream.Next() {
			event := stream.Current()

			switch ev := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.InputTokens = uint32(ev.Message.Usage.InputTokens)

			case anthropic.ContentBlockStartEvent:
				if ev.ContentBlock.Type == "tool_use" {
					toolBlocks[ev.Index] = true
					if !yield(ToolCallStartEvent{Index: int(ev.Index), ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}, nil) {
						return
					}
				}

			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" && !yield(TextDeltaEvent{Text: delta.Text}, nil) {
						return
					}
				case anthropic.InputJSONDelta:
					if delta.PartialJSON != "" && !yield(ToolCallDeltaEvent{Index: int(ev.Index), Fragment: delta.PartialJSON}, nil) {
						return
					}
				}

			case anthropic.ContentBlockStopEvent:
				if toolBlocks[ev.Index] {
					if !yield(ToolCallEndEvent{Index: int(ev.Index)}, nil) {
						return
					}
				}

			case anthropic.MessageDeltaEvent:
				if ev.Delta.StopReason != "" {
					stopReason = anthropicStopReason(string(ev.Delta.StopReason))
				}
				if ev.Usage.OutputTokens > 0 {
					usage.OutputTokens = uint32(ev.Usage.OutputTokens)
				}

			case anthropic.MessageStopEvent:
				yield(TurnEndEvent{StopReason: stopReason, Usage: usage}, nil)
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield(nil, NewProviderError(p.Name(), fmt.Errorf("stream error: %w", err)))
		}
	}, nil
}

func anthropicStopReason(reason string) StopReason {
	switch reason {
	case "tool_use":
		return StopToolUse
	case "max_tokens":
		return StopMaxTokens
	case "stop_sequence":
		return StopStopSequence
	case "end_turn", "":
		return StopEndTurn
	default:
		return StopEndTurn
	}
}

// convertToAnthropicMessages converts our Message to Anthropic format.
// Consecutive tool messages are merged into one user turn, which is what
// the Messages API expects after an assistant turn with several tool calls.
func convertToAnthropicMessages(messages []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text())))

		case RoleAssistant:
			param := anthropic.MessageParam{Role: anthropic.MessageParamRoleAssistant}
			if text := msg.Text(); text != "" {
				param.Content = append(param.Content, anthropic.NewTextBlock(text))
			}
			for _, tu := range msg.ToolUses() {
				var input map[string]interface{}
				_ = json.Unmarshal(tu.Input, &input)
				if input == nil {
					input = map[string]interface{}{}
				}
				param.Content = append(param.Content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tu.ID,
						Name:  tu.Name,
						Input: input,
					},
				})
			}
			out = append(out, param)

		case RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			for _, tr := range msg.ToolResults() {
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolUseID, tr.Content, tr.IsError))
			}
			if n := len(out); n > 0 && out[n-1].Role == anthropic.MessageParamRoleUser && isToolResultTurn(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, blocks...)
				continue
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}

	return out
}

func isToolResultTurn(m anthropic.MessageParam) bool {
	for _, c := range m.Content {
		if c.OfToolResult == nil {
			return false
		}
	}
	return len(m.Content) > 0
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		// Extract properties and required from the full schema
		properties, _ := t.Parameters["properties"].(map[string]interface{})
		required, _ := t.Parameters["required"].([]string)

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify AnthropicProvider implements Model
var _ Model = (*AnthropicProvider)(nil)
