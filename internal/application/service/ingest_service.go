package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	domainservice "github.com/linqiu/ai-analyst/internal/domain/service"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
	"github.com/linqiu/ai-analyst/internal/infrastructure/storage"
)

// maxEntriesPerFeed 单个订阅源单轮处理的条目上限，防止异常源拖垮整轮采集
const maxEntriesPerFeed = 50

// IngestService 定义新闻采集管道的应用服务接口
type IngestService interface {
	// IngestCycle 执行一轮采集：抓取所有订阅源，过滤、去重、落盘，返回新增记录数。
	// 单个源的失败只记日志，不影响其他源。
	IngestCycle(ctx context.Context, cfg model.Config) (int, error)
	// Rehydrate 从磁盘记录重建去重缓存，进程重启后调用一次
	Rehydrate(ttl time.Duration, now time.Time)
	// Sweep 清理过期的磁盘记录和去重缓存条目
	Sweep(cfg model.Config, now time.Time)
}

// ingestService 实现IngestService接口
type ingestService struct {
	store  *storage.ArticleStore
	cache  *domainservice.DedupCache
	parser *gofeed.Parser
}

// NewIngestService 创建一个新的采集服务实例
func NewIngestService(store *storage.ArticleStore, cache *domainservice.DedupCache) IngestService {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{
		Timeout: 15 * time.Second,
	}
	return &ingestService{
		store:  store,
		cache:  cache,
		parser: parser,
	}
}

// IngestCycle 执行一轮采集
func (s *ingestService) IngestCycle(ctx context.Context, cfg model.Config) (int, error) {
	logger.Info("开始采集", "feeds_count", len(cfg.Feeds))
	defer logger.TimeTrack("IngestCycle")()

	loc := cfg.Location()
	total := 0

	for _, feed := range cfg.Feeds {
		select {
		case <-ctx.Done():
			logger.Warn("采集被中断", "processed_so_far", total)
			return total, ctx.Err()
		default:
		}

		added, err := s.ingestFeed(ctx, cfg, feed, loc)
		if err != nil {
			logger.Error("订阅源处理失败，已跳过", "feed", feed.Name, "url", feed.URL, "error", err)
			continue
		}
		total += added
	}

	logger.Info("采集完成", "new_articles", total, "cache_size", s.cache.Len())
	return total, nil
}

// ingestFeed 处理单个订阅源，返回新增记录数
func (s *ingestService) ingestFeed(ctx context.Context, cfg model.Config, feed model.FeedConfig, loc *time.Location) (int, error) {
	parsed, err := s.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return 0, err
	}

	items := parsed.Items
	if len(items) > maxEntriesPerFeed {
		items = items[:maxEntriesPerFeed]
	}

	added := 0
	skipped := 0
	for _, item := range items {
		if !domainservice.PassesFilter(item.Title, cfg.GlobalInclude, cfg.GlobalExclude, feed.Include, feed.Exclude) {
			skipped++
			continue
		}

		// 没有发布时间的条目退而使用更新时间，再退而使用当前时间
		published := time.Now()
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		published = published.In(loc)

		if s.cache.IsDuplicate(item.Title, published) {
			skipped++
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		rec := model.ArticleRecord{
			Title:   strings.TrimSpace(item.Title),
			PubDt:   published.Format(model.PubTimeLayout),
			Source:  feed.Name,
			Summary: stripHTMLTags(content),
			Link:    item.Link,
		}

		if _, err := s.store.Save(rec, published); err != nil {
			logger.Error("保存记录失败", "feed", feed.Name, "title", rec.Title, "error", err)
			continue
		}
		s.cache.Record(item.Title, published)
		added++
	}

	logger.Info("订阅源处理完成", "feed", feed.Name, "found", len(items), "new", added, "skipped", skipped)
	return added, nil
}

// Rehydrate 从磁盘记录重建去重缓存
func (s *ingestService) Rehydrate(ttl time.Duration, now time.Time) {
	articles, err := s.store.LoadSince(now.Add(-ttl))
	if err != nil {
		logger.Warn("重建去重缓存失败", "error", err)
		return
	}
	// LoadSince按时间降序返回，这里从最旧的开始登记，
	// 超出窗口容量时被挤掉的是旧标题而不是新标题
	for i := len(articles) - 1; i >= 0; i-- {
		s.cache.Record(articles[i].Record.Title, articles[i].Published)
	}
	logger.Info("去重缓存重建完成", "entries", s.cache.Len())
}

// Sweep 清理过期的磁盘记录和去重缓存条目
func (s *ingestService) Sweep(cfg model.Config, now time.Time) {
	if _, err := s.store.Sweep(cfg.RetentionDays, cfg.MaxPendingFiles, now); err != nil {
		logger.Warn("清理磁盘记录失败", "error", err)
	}
	if evicted := s.cache.EvictExpired(cfg.DedupTTL(), now); evicted > 0 {
		logger.Debug("去重缓存清理完成", "evicted", evicted, "remaining", s.cache.Len())
	}
}

// stripHTMLTags 去除HTML标签，只保留纯文本
func stripHTMLTags(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn("解析HTML失败，返回原始内容", "error", err)
		return strings.TrimSpace(html)
	}

	text := doc.Text()
	text = strings.TrimSpace(text)
	// 连续空白压成单个空格
	return strings.Join(strings.Fields(text), " ")
}
