package gateway

import (
	"context"
	"fmt"
	"time"

	"docuflow/internal/aipipeline"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openaiModel      = openai.GPT4oMini
	openaiMaxRetries = 3

	// 每千 token 价格（分），input/output 分开计
	openaiInputCentsPerKTok  = 0.015
	openaiOutputCentsPerKTok = 0.06
)

// openaiClient OpenAI 客户端适配器
type openaiClient struct {
	client *openai.Client
}

func newOpenAIClient(apiKey string) *openaiClient {
	return &openaiClient{client: openai.NewClient(apiKey)}
}

func (c *openaiClient) invoke(ctx context.Context, task aipipeline.Task, text string) (*aipipeline.Result, error) {
	req := openai.ChatCompletionRequest{
		Model: openaiModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: promptFor(task)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	// 调用 API（带重试）
	var resp openai.ChatCompletionResponse
	var err error
	for i := 0; i <= openaiMaxRetries; i++ {
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		if !isRetryableError(err) {
			break
		}

		// 指数退避
		if i < openaiMaxRetries {
			backoff := time.Duration(1<<uint(i)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("OpenAI 调用失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI 返回空响应")
	}

	payload, err := parsePayload(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	cost := estimateOpenAICost(resp.Usage)
	return payload.toResult(resp.Model, cost), nil
}

func estimateOpenAICost(usage openai.Usage) int {
	cents := float64(usage.PromptTokens)/1000*openaiInputCentsPerKTok +
		float64(usage.CompletionTokens)/1000*openaiOutputCentsPerKTok
	// 向上取整到 1 分，避免账本里全是 0 费用
	if cents > 0 && cents < 1 {
		return 1
	}
	return int(cents + 0.5)
}

func isRetryableError(err error) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		// 网络层错误，重试
		return true
	}
	// 429 与 5xx 可重试
	return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
}
