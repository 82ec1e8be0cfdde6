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

// GoogleClient 通过generateContent协议直连Google官方服务
type GoogleClient struct {
	config model.ModelConfig
	apiKey string
	client *http.Client
}

// Complete 发送系统指令与用户内容，返回模型文本
func (c *GoogleClient) Complete(ctx context.Context, instruction, content string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.config.URL, "/"), c.config.Name, c.apiKey)

	// generateContent没有独立的system通道，指令和内容合并到同一段文本
	text := fmt.Sprintf("系统指令: %s\n\n用户输入:\n%s", instruction, content)
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": text}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature": c.config.Temperature,
		},
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

	logger.Debug("发送generateContent请求", "model", c.config.Name, "prompt_length", len(text))

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
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("响应不包含有效内容")
	}

	logger.Info("模型调用成功", "model", c.config.Name)
	return strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text), nil
}
