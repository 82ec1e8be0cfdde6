package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
)

func testRecord(title string, published time.Time) model.ArticleRecord {
	return model.ArticleRecord{
		Title:   title,
		PubDt:   published.Format(model.PubTimeLayout),
		Source:  "测试源",
		Summary: "摘要内容",
		Link:    "https://example.com/" + title,
	}
}

func TestSaveAndLoadSince(t *testing.T) {
	store := NewArticleStore(t.TempDir(), time.UTC)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	old := now.Add(-72 * time.Hour)
	recent := now.Add(-1 * time.Hour)
	newest := now.Add(-10 * time.Minute)

	for _, item := range []struct {
		title string
		at    time.Time
	}{
		{"旧新闻", old},
		{"较新新闻", recent},
		{"最新新闻", newest},
	} {
		if _, err := store.Save(testRecord(item.title, item.at), item.at); err != nil {
			t.Fatalf("Save失败: %v", err)
		}
	}

	articles, err := store.LoadSince(now.Add(-48 * time.Hour))
	if err != nil {
		t.Fatalf("LoadSince失败: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("应加载2条，实际 %d", len(articles))
	}
	// 按发布时间降序
	if articles[0].Record.Title != "最新新闻" || articles[1].Record.Title != "较新新闻" {
		t.Errorf("排序不正确: %s, %s", articles[0].Record.Title, articles[1].Record.Title)
	}
}

func TestLoadSinceSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	store := NewArticleStore(dir, time.UTC)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	if _, err := store.Save(testRecord("正常记录", now), now); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "20240110T120100_deadbeef.json"), []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	articles, err := store.LoadSince(now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("损坏文件不应导致整体失败: %v", err)
	}
	if len(articles) != 1 || articles[0].Record.Title != "正常记录" {
		t.Errorf("应只加载正常记录，实际 %+v", articles)
	}
}

func TestSweepRetentionBoundary(t *testing.T) {
	dir := t.TempDir()
	store := NewArticleStore(dir, time.UTC)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	ages := map[string]time.Duration{
		"六天前": 6 * 24 * time.Hour,
		"七天前": 7 * 24 * time.Hour,
		"八天前": 8 * 24 * time.Hour,
	}
	for title, age := range ages {
		at := now.Add(-age)
		path, err := store.Save(testRecord(title, at), at)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, at, at); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := store.Sweep(7, 0, now)
	if err != nil {
		t.Fatalf("Sweep失败: %v", err)
	}
	// 只有严格超过7天的被删除，恰好7天的保留
	if removed != 1 {
		t.Fatalf("应删除1个文件，实际 %d", removed)
	}

	articles, err := store.LoadSince(time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 2 {
		t.Fatalf("应剩2条记录，实际 %d", len(articles))
	}
	for _, a := range articles {
		if a.Record.Title == "八天前" {
			t.Error("八天前的记录应已被删除")
		}
	}
}

func TestSweepMaxFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewArticleStore(dir, time.UTC)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := now.Add(-time.Duration(i) * time.Hour)
		if _, err := store.Save(testRecord(strings.Repeat("新闻", i+1), at), at); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := store.Sweep(30, 3, now)
	if err != nil {
		t.Fatalf("Sweep失败: %v", err)
	}
	if removed != 2 {
		t.Fatalf("应强制驱逐2个文件，实际删除 %d", removed)
	}

	articles, err := store.LoadSince(time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 3 {
		t.Fatalf("应剩3条记录，实际 %d", len(articles))
	}
	// 留下的是最新的3条
	for _, a := range articles {
		if a.Published.Before(now.Add(-3 * time.Hour)) {
			t.Errorf("最旧的记录应已被驱逐: %s", a.Record.Title)
		}
	}
}

func TestSaveFilenameDeterministic(t *testing.T) {
	dir := t.TempDir()
	store := NewArticleStore(dir, time.UTC)
	at := time.Date(2024, 1, 10, 8, 30, 15, 0, time.UTC)

	path, err := store.Save(testRecord("Markets Rally", at), at)
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "20240110T083015_") || !strings.HasSuffix(name, ".json") {
		t.Errorf("文件名格式不正确: %s", name)
	}

	// 同一标题同一时间重复保存会覆盖同一个文件
	if _, err := store.Save(testRecord("Markets Rally", at), at); err != nil {
		t.Fatal(err)
	}
	articles, err := store.LoadSince(time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 1 {
		t.Errorf("重复保存不应产生新文件，实际 %d 条", len(articles))
	}
}
