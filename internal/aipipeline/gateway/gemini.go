package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docuflow/internal/aipipeline"
)

const (
	geminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel      = "gemini-1.5-flash"
	geminiMaxRetries = 3

	// 每千 token 价格（分）
	geminiInputCentsPerKTok  = 0.0075
	geminiOutputCentsPerKTok = 0.03
)

// geminiClient Google Gemini 客户端
// Gemini 没有官方 Go SDK 依赖，直接走 REST 接口
type geminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newGeminiClient(apiKey string) *geminiClient {
	return &geminiClient{
		apiKey:  apiKey,
		baseURL: geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Gemini REST 请求/响应结构
type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (c *geminiClient) invoke(ctx context.Context, task aipipeline.Task, text string) (*aipipeline.Result, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: promptFor(task)}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: text}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, geminiModel, c.apiKey)

	// 发送请求（带重试）
	var resp *http.Response
	var lastErr error
	for i := 0; i < geminiMaxRetries; i++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err = c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			if !sleepCtx(ctx, time.Duration(i+1)*time.Second) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			lastErr = nil
			break
		}

		statusCode := resp.StatusCode
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		resp = nil
		lastErr = fmt.Errorf("HTTP %d: %s", statusCode, string(bodyBytes))

		// 仅对 429/5xx 重试
		if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
			if !sleepCtx(ctx, time.Duration(i+1)*time.Second) {
				return nil, ctx.Err()
			}
			continue
		}

		return nil, fmt.Errorf("Gemini API 调用失败: %w", lastErr)
	}
	if lastErr != nil || resp == nil {
		return nil, fmt.Errorf("Gemini API 调用失败: %w", lastErr)
	}
	defer resp.Body.Close()

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("Gemini 返回空响应")
	}

	payload, err := parsePayload(geminiResp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}

	cost := estimateGeminiCost(geminiResp.UsageMetadata.PromptTokenCount, geminiResp.UsageMetadata.CandidatesTokenCount)
	return payload.toResult(geminiModel, cost), nil
}

func estimateGeminiCost(promptTokens, candidateTokens int) int {
	cents := float64(promptTokens)/1000*geminiInputCentsPerKTok +
		float64(candidateTokens)/1000*geminiOutputCentsPerKTok
	if cents > 0 && cents < 1 {
		return 1
	}
	return int(cents + 0.5)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
