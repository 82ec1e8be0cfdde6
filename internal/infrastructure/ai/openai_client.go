package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

// OpenAIClient 通过chat-completions协议调用分析模型，
// 兼容OpenAI官方服务与本地推理服务（Ollama、Open WebUI等）。
type OpenAIClient struct {
	config model.ModelConfig
	apiKey string
	client *http.Client
}

// Complete 发送系统指令与用户内容，返回模型文本
func (c *OpenAIClient) Complete(ctx context.Context, instruction, content string) (string, error) {
	endpoint := strings.TrimRight(c.config.URL, "/") + "/chat/completions"

	requestBody := map[string]interface{}{
		"model": c.config.Name,
		"messages": []map[string]string{
			{"role": "system", "content": instruction},
			{"role": "user", "content": content},
		},
		"temperature": c.config.Temperature,
		"stream":      false,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("构建请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logger.Debug("发送chat-completions请求", "url", endpoint, "model", c.config.Name, "prompt_length", len(instruction)+len(content))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("API返回错误: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("响应不包含有效内容")
	}

	logger.Info("模型调用成功", "model", c.config.Name, "total_tokens", response.Usage.TotalTokens)
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
