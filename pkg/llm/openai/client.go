// Package openai provides the OpenAI backend adapter using the official Go SDK.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"propline/pkg/llm"
	"propline/pkg/llm/llmerrors"
	"propline/pkg/tools"
)

// Client wraps the official OpenAI client to implement llm.Client.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates an OpenAI client for the given model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements llm.Client.
//
//nolint:gocritic // CompletionRequest passed by value to match the interface
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Temperature:         openai.Float(float64(in.Temperature)),
	}
	if len(in.Tools) > 0 {
		params.Tools = convertTools(in.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from OpenAI API")
	}

	choice := resp.Choices[0]
	result := llm.CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: mapFinishReason(choice.FinishReason),
	}

	for i := range choice.Message.ToolCalls {
		tc := &choice.Message.ToolCalls[i]
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				continue
			}
		}
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:         tc.ID,
			Name:       tc.Function.Name,
			Parameters: args,
		})
	}

	return result, nil
}

// ModelName returns the model name for this client.
func (c *Client) ModelName() string {
	return c.model
}

// convertMessages maps our history to chat completion message params.
func convertMessages(messages []llm.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("message list cannot be empty")
	}

	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))

		case llm.RoleUser:
			converted = append(converted, openai.UserMessage(msg.Content))

		case llm.RoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			for j := range msg.ToolCalls {
				tc := &msg.ToolCalls[j]
				argsJSON, err := json.Marshal(tc.Parameters)
				if err != nil {
					return nil, fmt.Errorf("failed to encode tool call arguments: %w", err)
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				})
			}
			converted = append(converted, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case llm.RoleTool:
			for j := range msg.ToolResults {
				tr := &msg.ToolResults[j]
				converted = append(converted, openai.ToolMessage(tr.Content, tr.ToolCallID))
			}

		default:
			return nil, fmt.Errorf("unsupported role %q at index %d", msg.Role, i)
		}
	}
	return converted, nil
}

// convertTools maps tool definitions to OpenAI function tool params.
func convertTools(defs []tools.ToolDefinition) []openai.ChatCompletionToolParam {
	converted := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for i := range defs {
		def := &defs[i]

		properties := make(map[string]any, len(def.InputSchema.Properties))
		for name := range def.InputSchema.Properties {
			prop := def.InputSchema.Properties[name]
			propMap := map[string]any{"type": prop.Type}
			if prop.Description != "" {
				propMap["description"] = prop.Description
			}
			if len(prop.Enum) > 0 {
				propMap["enum"] = prop.Enum
			}
			properties[name] = propMap
		}

		parameters := shared.FunctionParameters{
			"type":       "object",
			"properties": properties,
		}
		if len(def.InputSchema.Required) > 0 {
			parameters["required"] = def.InputSchema.Required
		}

		converted = append(converted, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  parameters,
			},
		})
	}
	return converted
}

// mapFinishReason converts OpenAI finish reasons to our stop reason format.
func mapFinishReason(reason string) string {
	switch reason {
	case "stop", "":
		return "end_turn"
	case "tool_calls":
		return "tool_use"
	case "length":
		return "max_tokens"
	default:
		return reason
	}
}

// classifyError maps OpenAI SDK errors to structured error types.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "api key"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "authentication failed - check API key")
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate") || strings.Contains(errStr, "quota"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeRateLimit, err, "rate limit exceeded")
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "bad request")
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "server or connection error")
	default:
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "unclassified error")
	}
}
