// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Function calls arrive whole; they are re-emitted as start/delta/end events

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements the Model interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature float32) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiProvider{
			model:       model,
			maxTokens:   int32(maxTokens),
			temperature: temperature,
			initErr:     fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) ready() error {
	if p.initErr != nil {
		return NewProviderError(p.Name(), p.initErr)
	}
	if p.client == nil {
		return NewProviderError(p.Name(), fmt.Errorf("gemini client not initialized"))
	}
	return nil
}

func (p *GeminiProvider) config(req CompletionRequest) *genai.GenerateContentConfig {
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}
	temperature := p.temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: maxTokens,
		StopSequences:   req.StopSequences,
		Tools:           convertToGeminiTools(req.Tools),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	return config
}

// Complete sends a non-streaming completion request.
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := p.ready(); err != nil {
		return CompletionResponse{}, err
	}

	response, err := p.client.Models.GenerateContent(ctx, p.model, convertToGeminiMessages(req.Messages), p.config(req))
	if err != nil {
		return CompletionResponse{}, NewProviderError(p.Name(), fmt.Errorf("chat completion failed: %w", err))
	}

	events, err := geminiEvents(response, 0)
	if err != nil {
		return CompletionResponse{}, NewProviderError(p.Name(), err)
	}
	events = append(events, geminiTurnEnd(response, hasToolCall(events)))
	return Accumulate(ctx, StreamOf(events...))
}

// Stream starts a streaming completion.
func (p *GeminiProvider) Stream(ctx context.Context, req CompletionRequest) (Stream, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	contents := convertToGeminiMessages(req.Messages)
	config := p.config(req)

	return func(yield func(StreamEvent, error) bool) {
		var (
			next    int
			sawCall bool
			last    *genai.GenerateContentResponse
		)

		// GenerateContentStream returns iter.Seq2[*GenerateContentResponse, error]
		for response, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
			if err != nil {
				yield(nil, NewProviderError(p.Name(), fmt.Errorf("stream error: %w", err)))
				return
			}
			last = response

			events, err := geminiEvents(response, next)
			if err != nil {
				yield(nil, NewProviderError(p.Name(), err))
				return
			}
			for _, ev := range events {
				if start, ok := ev.(ToolCallStartEvent); ok {
					next = start.Index + 1
					sawCall = true
				}
				if !yield(ev, nil) {
					return
				}
			}
		}

		yield(geminiTurnEnd(last, sawCall), nil)
	}, nil
}

// geminiEvents flattens the parts of one response into stream events.
// Tool-call indices continue from base.
func geminiEvents(response *genai.GenerateContentResponse, base int) ([]StreamEvent, error) {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return nil, nil
	}

	var events []StreamEvent
	idx := base
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			events = append(events, TextDeltaEvent{Text: part.Text})
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("encode function call args: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			events = append(events,
				ToolCallStartEvent{Index: idx, ID: id, Name: part.FunctionCall.Name},
				ToolCallDeltaEvent{Index: idx, Fragment: string(args)},
				ToolCallEndEvent{Index: idx},
			)
			idx++
		}
	}
	return events, nil
}

func hasToolCall(events []StreamEvent) bool {
	for _, ev := range events {
		if _, ok := ev.(ToolCallStartEvent); ok {
			return true
		}
	}
	return false
}

func geminiTurnEnd(response *genai.GenerateContentResponse, sawCall bool) TurnEndEvent {
	end := TurnEndEvent{StopReason: StopEndTurn}
	if sawCall {
		end.StopReason = StopToolUse
	}
	if response == nil {
		return end
	}
	if len(response.Candidates) > 0 && !sawCall {
		switch response.Candidates[0].FinishReason {
		case genai.FinishReasonMaxTokens:
			end.StopReason = StopMaxTokens
		case genai.FinishReasonSafety, genai.FinishReasonRecitation:
			end.StopReason = StopError
		}
	}
	if response.UsageMetadata != nil {
		end.Usage = Usage{
			InputTokens:  uint32(response.UsageMetadata.PromptTokenCount),
			OutputTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
		}
	}
	return end
}

// convertToGeminiMessages converts the conversation to Gemini contents.
// Function responses are addressed by name, so tool-use IDs are resolved
// against the preceding assistant turns. Consecutive tool messages are
// merged into one user content holding every response of the turn.
func convertToGeminiMessages(messages []Message) []*genai.Content {
	var contents []*genai.Content
	names := make(map[string]string)

	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Text(), genai.RoleUser))
		case RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if text := msg.Text(); text != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: text})
			}
			for _, tu := range msg.ToolUses() {
				names[tu.ID] = tu.Name
				var args map[string]any
				_ = json.Unmarshal(tu.Input, &args)
				if args == nil {
					args = map[string]any{}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tu.ID,
						Name: tu.Name,
						Args: args,
					},
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case RoleTool:
			content := &genai.Content{Role: genai.RoleUser} // Gemini expects tool results as user
			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				content = contents[n-1]
			} else {
				contents = append(contents, content)
			}
			for _, tr := range msg.ToolResults() {
				response := map[string]any{"output": tr.Content}
				if tr.IsError {
					response = map[string]any{"error": tr.Content}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       tr.ToolUseID,
						Name:     names[tr.ToolUseID],
						Response: response,
					},
				})
			}
		}
	}

	return contents
}

func isFunctionResponseTurn(c *genai.Content) bool {
	if c.Role != genai.RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

// convertToGeminiTools converts tool definitions to Gemini format.
func convertToGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		schema := convertToGeminiSchema(t.Parameters)
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGeminiSchema recursively converts a parameter schema to Gemini format.
// Handles arrays by adding required 'items' field.
func convertToGeminiSchema(params map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	// Get type if present
	if t, ok := params["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	// Get required fields
	if req, ok := params["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	// Also handle []string
	if req, ok := params["required"].([]string); ok {
		schema.Required = req
	}

	// Convert properties
	if props, ok := params["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			propMap, ok := prop.(map[string]interface{})
			if !ok {
				continue
			}
			schema.Properties[name] = convertPropertyToGeminiSchema(propMap)
		}
	}

	return schema
}

// convertPropertyToGeminiSchema converts a single property to Gemini schema.
func convertPropertyToGeminiSchema(prop map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{}

	// Get type
	if t, ok := prop["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	// Get description
	if d, ok := prop["description"].(string); ok {
		schema.Description = d
	}

	// Handle array items - Gemini requires 'items' for arrays
	if schema.Type == genai.TypeArray {
		if items, ok := prop["items"].(map[string]interface{}); ok {
			schema.Items = convertPropertyToGeminiSchema(items)
		} else {
			// Default to string items if not specified
			schema.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	// Handle nested object properties
	if schema.Type == genai.TypeObject {
		if props, ok := prop["properties"].(map[string]interface{}); ok {
			schema.Properties = make(map[string]*genai.Schema)
			for name, p := range props {
				if pMap, ok := p.(map[string]interface{}); ok {
					schema.Properties[name] = convertPropertyToGeminiSchema(pMap)
				}
			}
		}
	}

	return schema
}

// mapToGeminiType maps JSON schema type to Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer", "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Model
var _ Model = (*GeminiProvider)(nil)
