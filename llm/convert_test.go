package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func toolExchange() []Message {
	return []Message{
		UserMessage("look at a and b"),
		{Role: RoleAssistant, Content: []ContentBlock{
			NewTextBlock("reading"),
			NewToolUseBlock("t1", "read_file", []byte(`{"path":"a"}`)),
			NewToolUseBlock("t2", "read_file", []byte(`{"path":"b"}`)),
		}},
		ToolResultMessage("t1", "A", false),
		ToolResultMessage("t2", "no such file", true),
	}
}

func TestAnthropicMergesToolResults(t *testing.T) {
	params := convertToAnthropicMessages(toolExchange())

	require.Len(t, params, 3)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, params[1].Role)
	assert.Len(t, params[1].Content, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, params[2].Role)
	require.Len(t, params[2].Content, 2)
	assert.NotNil(t, params[2].Content[0].OfToolResult)
	assert.NotNil(t, params[2].Content[1].OfToolResult)
}

func TestAnthropicStopReasonMapping(t *testing.T) {
	assert.Equal(t, StopToolUse, anthropicStopReason("tool_use"))
	assert.Equal(t, StopMaxTokens, anthropicStopReason("max_tokens"))
	assert.Equal(t, StopEndTurn, anthropicStopReason(""))
}

func TestOpenAISplitsToolResults(t *testing.T) {
	msgs := convertToOpenAIMessages("be brief", toolExchange())

	require.Len(t, msgs, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "be brief", msgs[0].Content)
	require.Len(t, msgs[2].ToolCalls, 2)
	assert.Equal(t, `{"path":"b"}`, msgs[2].ToolCalls[1].Function.Arguments)
	assert.Equal(t, openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "t1", msgs[3].ToolCallID)
	assert.Equal(t, "t2", msgs[4].ToolCallID)
}

func TestOpenAIResponseConversion(t *testing.T) {
	resp := fromOpenAIResponse(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{ID: "c1", Function: openai.FunctionCall{Name: "list_dir"}}},
			},
			FinishReason: openai.FinishReasonToolCalls,
		}},
		Usage: openai.Usage{PromptTokens: 7, CompletionTokens: 3},
	})

	assert.Equal(t, StopToolUse, resp.StopReason)
	uses := resp.Message.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "{}", string(uses[0].Input))
	assert.Equal(t, uint32(10), resp.Usage.Total())
}

func TestGeminiResolvesFunctionResponseNames(t *testing.T) {
	contents := convertToGeminiMessages(toolExchange())

	require.Len(t, contents, 3)
	results := contents[2]
	require.Len(t, results.Parts, 2)
	assert.Equal(t, "read_file", results.Parts[0].FunctionResponse.Name)
	assert.Equal(t, "A", results.Parts[0].FunctionResponse.Response["output"])
	assert.Equal(t, "no such file", results.Parts[1].FunctionResponse.Response["error"])
}

func TestGeminiKeepsTurnsApart(t *testing.T) {
	messages := append(toolExchange(),
		AssistantMessage("a is A"),
		UserMessage("thanks"),
	)
	contents := convertToGeminiMessages(messages)

	require.Len(t, contents, 5)
	assert.Len(t, contents[2].Parts, 2)
	assert.Equal(t, genai.RoleModel, contents[3].Role)
	assert.Equal(t, "thanks", contents[4].Parts[0].Text)
}

func TestGeminiEventsAssignIndices(t *testing.T) {
	response := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "hi"},
				{FunctionCall: &genai.FunctionCall{Name: "glob", Args: map[string]any{"pattern": "*.go"}}},
			}},
		}},
	}

	events, err := geminiEvents(response, 3)
	require.NoError(t, err)
	require.Len(t, events, 4)
	start, ok := events[1].(ToolCallStartEvent)
	require.True(t, ok)
	assert.Equal(t, 3, start.Index)
	assert.NotEmpty(t, start.ID)
	assert.Equal(t, StopToolUse, geminiTurnEnd(response, hasToolCall(events)).StopReason)
}
