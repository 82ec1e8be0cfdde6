package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainservice "github.com/linqiu/ai-analyst/internal/domain/service"
	"github.com/linqiu/ai-analyst/internal/infrastructure/config"
	"github.com/linqiu/ai-analyst/internal/infrastructure/storage"

	"github.com/linqiu/ai-analyst/internal/domain/model"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>测试财经频道</title>
<item>
<title>美联储宣布加息25个基点</title>
<link>https://example.com/fed-hike</link>
<description><![CDATA[<p>美联储今日宣布<b>加息</b>，市场反应平稳。</p>]]></description>
<pubDate>Wed, 10 Jan 2024 08:00:00 GMT</pubDate>
</item>
<item>
<title>体育比赛结果汇总</title>
<link>https://example.com/sports</link>
<description>昨晚的比赛结果</description>
<pubDate>Wed, 10 Jan 2024 07:00:00 GMT</pubDate>
</item>
</channel>
</rss>`

func TestIngestCycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()

	store := storage.NewArticleStore(t.TempDir(), time.UTC)
	cache := domainservice.NewDedupCache(true, 0.85, 100)
	svc := NewIngestService(store, cache)

	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.GlobalExclude = "体育"
	cfg.Feeds = []model.FeedConfig{{Name: "测试源", URL: server.URL}}

	added, err := svc.IngestCycle(context.Background(), cfg)
	if err != nil {
		t.Fatalf("IngestCycle失败: %v", err)
	}
	if added != 1 {
		t.Fatalf("应新增1条记录（体育新闻被排除），实际 %d", added)
	}

	articles, err := store.LoadSince(time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 1 {
		t.Fatalf("磁盘上应有1条记录，实际 %d", len(articles))
	}
	rec := articles[0].Record
	if rec.Title != "美联储宣布加息25个基点" {
		t.Errorf("标题不正确: %q", rec.Title)
	}
	if rec.Source != "测试源" {
		t.Errorf("来源不正确: %q", rec.Source)
	}
	// HTML标签应被剥离
	if rec.Summary != "美联储今日宣布加息，市场反应平稳。" {
		t.Errorf("摘要未正确剥离HTML: %q", rec.Summary)
	}
	if rec.PubDt != "2024-01-10 08:00:00" {
		t.Errorf("发布时间不正确: %q", rec.PubDt)
	}

	// 第二轮采集命中去重缓存，不再新增
	added, err = svc.IngestCycle(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Errorf("重复采集不应新增记录，实际 %d", added)
	}
}

func TestIngestCycleSkipsBrokenFeed(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer good.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	store := storage.NewArticleStore(t.TempDir(), time.UTC)
	cache := domainservice.NewDedupCache(false, 0, 0)
	svc := NewIngestService(store, cache)

	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.Feeds = []model.FeedConfig{
		{Name: "坏源", URL: broken.URL},
		{Name: "好源", URL: good.URL},
	}

	added, err := svc.IngestCycle(context.Background(), cfg)
	if err != nil {
		t.Fatalf("单个源失败不应让整轮失败: %v", err)
	}
	if added != 2 {
		t.Errorf("好源的2条记录都应入库，实际 %d", added)
	}
}

func TestRehydrateRestoresDedupState(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	published := now.Add(-2 * time.Hour)

	store := storage.NewArticleStore(dir, time.UTC)
	rec := model.ArticleRecord{
		Title:  "美联储宣布加息25个基点",
		PubDt:  published.Format(model.PubTimeLayout),
		Source: "测试源",
		Link:   "https://example.com/fed-hike",
	}
	if _, err := store.Save(rec, published); err != nil {
		t.Fatal(err)
	}

	// 模拟进程重启：新缓存从磁盘记录恢复
	cache := domainservice.NewDedupCache(false, 0, 0)
	svc := NewIngestService(store, cache)
	svc.Rehydrate(3*24*time.Hour, now)

	if !cache.IsDuplicate("美联储宣布加息25个基点", published) {
		t.Error("重启后已入库的标题应判为重复")
	}
}

func TestRehydrateWindowKeepsNewestTitles(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	store := storage.NewArticleStore(dir, time.UTC)

	oldTitle := "美国股市早盘低开走势疲软"
	newTitle := "欧洲央行维持利率不变政策声明偏鹰"
	for _, item := range []struct {
		title string
		at    time.Time
	}{
		{oldTitle, now.Add(-2 * time.Hour)},
		{newTitle, now.Add(-1 * time.Hour)},
	} {
		rec := model.ArticleRecord{
			Title:  item.title,
			PubDt:  item.at.Format(model.PubTimeLayout),
			Source: "测试源",
			Link:   "https://example.com/" + item.title,
		}
		if _, err := store.Save(rec, item.at); err != nil {
			t.Fatal(err)
		}
	}

	// 窗口只放得下1条，重建后留下的应是最新的标题
	cache := domainservice.NewDedupCache(true, 0.85, 1)
	svc := NewIngestService(store, cache)
	svc.Rehydrate(3*24*time.Hour, now)

	if !cache.IsDuplicate("快讯"+newTitle, now) {
		t.Error("与最新标题近似的应命中模糊比对")
	}
	if cache.IsDuplicate("快讯"+oldTitle, now) {
		t.Error("最旧的标题应已被挤出窗口")
	}
}

func TestSweepEvictsCacheAndFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	store := storage.NewArticleStore(dir, time.UTC)
	cache := domainservice.NewDedupCache(false, 0, 0)
	svc := NewIngestService(store, cache)

	old := now.Add(-4 * 24 * time.Hour)
	cache.Record("过期标题", old)
	cache.Record("新鲜标题", now.Add(-time.Hour))

	cfg := config.Default()
	cfg.Timezone = "UTC"
	svc.Sweep(cfg, now)

	if cache.Len() != 1 {
		t.Errorf("过期缓存条目应被驱逐，剩余 %d", cache.Len())
	}
}

func TestStripHTMLTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"纯文本", "纯文本"},
		{"<p>段落 <b>加粗</b></p>", "段落 加粗"},
		{"<div>多余   空白\n\n换行</div>", "多余 空白 换行"},
	}

	for _, tt := range tests {
		if got := stripHTMLTags(tt.in); got != tt.want {
			t.Errorf("stripHTMLTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
