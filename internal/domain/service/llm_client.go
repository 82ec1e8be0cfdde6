package service

import "context"

// LLMClient 定义分析模型客户端接口。
// 核心只关心“给定指令和内容，换回文本或错误”，具体的线上协议由适配器实现。
type LLMClient interface {
	// Complete 发送系统指令与用户内容，返回模型生成的文本
	Complete(ctx context.Context, instruction, content string) (string, error)
}
