package providers

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/EanHD/kai/internal/llm"
)

// AnthropicClient implements llm.Connector over the Anthropic API.
// This is the usual binding for the strong specialist slot.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	price  Price
	policy RetryPolicy
}

// NewAnthropicClient creates an Anthropic connector.
func NewAnthropicClient(apiKey, modelName string) (*AnthropicClient, error) {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  modelName,
		price:  priceFor(modelName),
		policy: DefaultRetryPolicy(),
	}, nil
}

// ModelID implements llm.Connector.
func (c *AnthropicClient) ModelID() string { return c.model }

// EstimateCost implements llm.Connector.
func (c *AnthropicClient) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000.0*c.price.InputPer1k + float64(outputTokens)/1000.0*c.price.OutputPer1k
}

// Generate implements llm.Connector. json_mode has no native switch on
// this API; the system prompt carries the JSON-only instruction and
// callers parse defensively either way.
func (c *AnthropicClient) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Response, error) {
	req := c.buildRequest(messages, opts)

	resp, err := withRetry(ctx, c.policy, func(ctx context.Context) (anthropic.MessagesResponse, error) {
		return c.client.CreateMessages(ctx, req)
	})
	if err != nil {
		return llm.Response{}, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			content += *block.Text
		}
	}

	finishReason := "stop"
	switch resp.StopReason {
	case "max_tokens":
		finishReason = "length"
	case "tool_use":
		finishReason = "tool_calls"
	case "end_turn", "stop_sequence":
		finishReason = "stop"
	default:
		finishReason = "other"
	}

	inTokens := resp.Usage.InputTokens
	outTokens := resp.Usage.OutputTokens

	return llm.Response{
		Content:      content,
		TokenCount:   llm.TokenCount{Input: inTokens, Output: outTokens},
		Cost:         c.EstimateCost(inTokens, outTokens),
		ModelUsed:    c.model,
		FinishReason: finishReason,
		Metadata:     map[string]any{"response_id": resp.ID},
	}, nil
}

// Stream implements llm.Connector. The SDK is callback-based; the
// callbacks are adapted to the channel contract.
func (c *AnthropicClient) Stream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan string, <-chan error) {
	chunkCh := make(chan string, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		req := anthropic.MessagesStreamRequest{
			MessagesRequest: c.buildRequest(messages, opts),
		}

		// errCh holds one terminal error; later failures are redundant
		sendErr := func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}

		req.OnError = func(errResp anthropic.ErrorResponse) {
			sendErr(classifyError(fmt.Errorf("anthropic streaming error: %s", errResp.Error.Message)))
		}

		req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
				select {
				case chunkCh <- *delta.Delta.Text:
				case <-ctx.Done():
				}
			}
		}

		if _, err := c.client.CreateMessagesStream(ctx, req); err != nil {
			sendErr(classifyError(err))
		}
	}()

	return chunkCh, errCh
}

// Health implements llm.Connector with a minimal one-token request.
func (c *AnthropicClient) Health(ctx context.Context) bool {
	_, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{{
			Role:    anthropic.RoleUser,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent("ping")},
		}},
		MaxTokens: 1,
	})
	return err == nil
}

func (c *AnthropicClient) buildRequest(messages []llm.Message, opts llm.Options) anthropic.MessagesRequest {
	var systemParts []anthropic.MessageSystemPart
	var anthropicMsgs []anthropic.Message

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: msg.Content,
			})
		case llm.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		default:
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		}
	}

	maxTokens := 4096
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	temperature := float32(0.1)
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}

	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		Messages:    anthropicMsgs,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}
	return req
}
