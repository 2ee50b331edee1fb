package providers

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/EanHD/kai/internal/llm"
)

// OpenAIClient implements llm.Connector over any OpenAI-compatible
// endpoint: OpenAI itself, x.ai, OpenRouter, or local runtimes
// (Ollama, LM Studio) serving the same API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	price  Price
	policy RetryPolicy
}

// NewOpenAIClient creates a connector for an OpenAI-compatible API.
// baseURL may be empty for api.openai.com.
func NewOpenAIClient(apiKey, modelName, baseURL string) (*OpenAIClient, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
		price:  priceFor(modelName),
		policy: DefaultRetryPolicy(),
	}, nil
}

// ModelID implements llm.Connector.
func (c *OpenAIClient) ModelID() string { return c.model }

// EstimateCost implements llm.Connector.
func (c *OpenAIClient) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000.0*c.price.InputPer1k + float64(outputTokens)/1000.0*c.price.OutputPer1k
}

// Generate implements llm.Connector.
func (c *OpenAIClient) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Response, error) {
	req := c.buildRequest(messages, opts)

	resp, err := withRetry(ctx, c.policy, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return llm.Response{}, err
	}

	if len(resp.Choices) == 0 {
		return llm.Response{}, &llm.TransportError{Err: fmt.Errorf("empty response from %s", c.model)}
	}
	choice := resp.Choices[0]

	finishReason := "stop"
	switch choice.FinishReason {
	case openai.FinishReasonLength:
		finishReason = "length"
	case openai.FinishReasonToolCalls:
		finishReason = "tool_calls"
	case openai.FinishReasonStop:
		finishReason = "stop"
	default:
		finishReason = "other"
	}

	inTokens := resp.Usage.PromptTokens
	outTokens := resp.Usage.CompletionTokens

	return llm.Response{
		Content:      choice.Message.Content,
		TokenCount:   llm.TokenCount{Input: inTokens, Output: outTokens},
		Cost:         c.EstimateCost(inTokens, outTokens),
		ModelUsed:    c.model,
		FinishReason: finishReason,
		Metadata:     map[string]any{"response_id": resp.ID},
	}, nil
}

// Stream implements llm.Connector. The sequence is finite and not
// restartable; the error channel delivers at most one terminal error.
func (c *OpenAIClient) Stream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan string, <-chan error) {
	chunkCh := make(chan string, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		req := c.buildRequest(messages, opts)
		req.Stream = true

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errCh <- classifyError(err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				// io.EOF is normal stream termination
				if !errors.Is(err, io.EOF) {
					errCh <- classifyError(err)
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case chunkCh <- delta:
			case <-ctx.Done():
				errCh <- &llm.TransportError{Err: ctx.Err()}
				return
			}
		}
	}()

	return chunkCh, errCh
}

// Health implements llm.Connector.
func (c *OpenAIClient) Health(ctx context.Context) bool {
	_, err := c.client.ListModels(ctx)
	return err == nil
}

func (c *OpenAIClient) buildRequest(messages []llm.Message, opts llm.Options) openai.ChatCompletionRequest {
	openaiMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		openaiMsgs = append(openaiMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: openaiMsgs,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	if opts.JSONMode {
		// Advisory: not every compatible endpoint honors it, so callers
		// still parse defensively.
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}
