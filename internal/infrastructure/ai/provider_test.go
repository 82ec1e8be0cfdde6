package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/linqiu/ai-analyst/internal/domain/model"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  model.ModelConfig
		want Provider
	}{
		{"显式openai", model.ModelConfig{Provider: "openai"}, ProviderOpenAI},
		{"显式google", model.ModelConfig{Provider: "google"}, ProviderGoogle},
		{"gemini别名", model.ModelConfig{Provider: "gemini"}, ProviderGoogle},
		{"local别名", model.ModelConfig{Provider: "local"}, ProviderOpenAI},
		{
			"未声明时按URL判定Google官方服务",
			model.ModelConfig{URL: "https://generativelanguage.googleapis.com"},
			ProviderGoogle,
		},
		{
			"未声明且URL非Google时默认openai",
			model.ModelConfig{URL: "http://127.0.0.1:11434/v1"},
			ProviderOpenAI,
		},
		{
			"显式声明优先于URL",
			model.ModelConfig{Provider: "openai", URL: "https://generativelanguage.googleapis.com"},
			ProviderOpenAI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveProvider(tt.cfg); got != tt.want {
				t.Errorf("ResolveProvider() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{
			"choices": [{"message": {"content": "  今日市场稳健。  "}}],
			"usage": {"total_tokens": 321}
		}`))
	}))
	defer server.Close()

	client := NewClient(model.ModelConfig{
		Provider:    "openai",
		Name:        "qwen2.5:14b",
		URL:         server.URL,
		Temperature: 0.3,
	}, BootstrapKeys{OpenAI: "sk-test"})

	text, err := client.Complete(context.Background(), "你是分析师", "今天新闻如下")
	if err != nil {
		t.Fatalf("Complete失败: %v", err)
	}
	if text != "今日市场稳健。" {
		t.Errorf("响应文本应去除首尾空白: %q", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("应使用引导密钥: %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("端点路径不正确: %s", gotPath)
	}
	if gotBody["model"] != "qwen2.5:14b" {
		t.Errorf("请求模型名不正确: %v", gotBody["model"])
	}
	messages, _ := gotBody["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("应发送system+user两条消息，实际 %d", len(messages))
	}
}

func TestOpenAIClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(model.ModelConfig{Provider: "openai", URL: server.URL}, BootstrapKeys{})
	if _, err := client.Complete(context.Background(), "指令", "内容"); err == nil {
		t.Fatal("非200状态码应返回错误")
	} else if !strings.Contains(err.Error(), "429") {
		t.Errorf("错误信息应包含状态码: %v", err)
	}
}

func TestGoogleClientComplete(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "本周趋势向好"}]}}]
		}`))
	}))
	defer server.Close()

	client := NewClient(model.ModelConfig{
		Provider: "google",
		Name:     "gemini-1.5-pro",
		URL:      server.URL,
		Key:      "model-level-key",
	}, BootstrapKeys{Gemini: "bootstrap-key"})

	text, err := client.Complete(context.Background(), "你是分析师", "素材")
	if err != nil {
		t.Fatalf("Complete失败: %v", err)
	}
	if text != "本周趋势向好" {
		t.Errorf("响应文本不正确: %q", text)
	}
	if gotPath != "/v1beta/models/gemini-1.5-pro:generateContent" {
		t.Errorf("端点路径不正确: %s", gotPath)
	}
	// 模型级别的密钥优先于引导密钥
	if gotKey != "model-level-key" {
		t.Errorf("密钥优先级不正确: %q", gotKey)
	}
}

func TestGoogleClientEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := NewClient(model.ModelConfig{Provider: "google", Name: "gemini", URL: server.URL}, BootstrapKeys{})
	if _, err := client.Complete(context.Background(), "指令", "内容"); err == nil {
		t.Fatal("空candidates应返回错误")
	}
}
