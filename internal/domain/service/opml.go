package service

import (
	"fmt"

	"github.com/gilliek/go-opml/opml"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

// ParseOPML 解析OPML文件并返回订阅源列表，嵌套的outline会被递归展开
func ParseOPML(opmlFilePath string) ([]model.FeedConfig, error) {
	logger.Info("开始解析OPML文件", "file", opmlFilePath)

	doc, err := opml.NewOPMLFromFile(opmlFilePath)
	if err != nil {
		logger.Error("解析OPML文件失败", "file", opmlFilePath, "error", err)
		return nil, fmt.Errorf("解析OPML文件失败: %w", err)
	}

	var feeds []model.FeedConfig
	for _, outline := range doc.Outlines() {
		feeds = append(feeds, extractFeeds(outline)...)
	}

	logger.Info("OPML文件解析完成", "file", opmlFilePath, "feeds_count", len(feeds))
	return feeds, nil
}

// extractFeeds 递归提取outline中的订阅源
func extractFeeds(outline opml.Outline) []model.FeedConfig {
	var feeds []model.FeedConfig

	// 带xmlUrl属性的outline是一个订阅源
	if outline.XMLURL != "" {
		name := outline.Title
		if name == "" {
			name = outline.Text
		}
		feeds = append(feeds, model.FeedConfig{
			Name: name,
			URL:  outline.XMLURL,
		})
	}

	for _, child := range outline.Outlines {
		feeds = append(feeds, extractFeeds(child)...)
	}

	return feeds
}
