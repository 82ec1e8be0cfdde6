package ai

import (
	"net/http"
	"strings"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/domain/service"
)

// Provider 标记分析模型的线上协议
type Provider string

const (
	// ProviderOpenAI OpenAI兼容的chat-completions协议（含本地Ollama/Open WebUI）
	ProviderOpenAI Provider = "openai"
	// ProviderGoogle Google generateContent协议
	ProviderGoogle Provider = "google"
)

// BootstrapKeys 来自引导配置的云端API密钥，与用户配置分离存放
type BootstrapKeys struct {
	OpenAI string
	Gemini string
}

// ResolveProvider 在客户端构造阶段一次性判定协议变体。
// 配置里显式声明优先；未声明时仅当URL指向Google官方服务才走generateContent。
func ResolveProvider(cfg model.ModelConfig) Provider {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case string(ProviderGoogle), "gemini":
		return ProviderGoogle
	case string(ProviderOpenAI), "local":
		return ProviderOpenAI
	}
	if strings.Contains(cfg.URL, "generativelanguage.googleapis.com") {
		return ProviderGoogle
	}
	return ProviderOpenAI
}

// NewClient 按配置构造分析模型客户端。
// 密钥优先级：模型级别的key，其次是对应协议的引导密钥。
func NewClient(cfg model.ModelConfig, keys BootstrapKeys) service.LLMClient {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 600
	}

	// 报告生成上下文很大，响应时间以分钟计，超时必须放宽
	httpClient := &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
		Transport: &http.Transport{
			TLSHandshakeTimeout: 15 * time.Second,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	if ResolveProvider(cfg) == ProviderGoogle {
		apiKey := cfg.Key
		if apiKey == "" {
			apiKey = keys.Gemini
		}
		return &GoogleClient{config: cfg, apiKey: apiKey, client: httpClient}
	}

	apiKey := cfg.Key
	if apiKey == "" {
		apiKey = keys.OpenAI
	}
	return &OpenAIClient{config: cfg, apiKey: apiKey, client: httpClient}
}
