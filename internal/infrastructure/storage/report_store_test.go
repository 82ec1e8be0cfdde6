package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
)

func TestSaveUpdatesLatest(t *testing.T) {
	store := NewReportStore(t.TempDir())
	t1 := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC)

	if _, err := store.Save(model.TierDaily, "第一天的日报", t1); err != nil {
		t.Fatalf("Save失败: %v", err)
	}
	if text, ok := store.LoadLatest(model.TierDaily); !ok || text != "第一天的日报" {
		t.Errorf("latest应为第一天的日报，实际 %q ok=%v", text, ok)
	}

	if _, err := store.Save(model.TierDaily, "第二天的日报", t2); err != nil {
		t.Fatal(err)
	}
	if text, _ := store.LoadLatest(model.TierDaily); text != "第二天的日报" {
		t.Errorf("latest应被覆盖为第二天的日报，实际 %q", text)
	}

	// latest.txt不计入带时间戳的报告数
	if count := store.CountTimestamped(model.TierDaily); count != 2 {
		t.Errorf("应有2份带时间戳的日报，实际 %d", count)
	}
}

func TestTierIsolation(t *testing.T) {
	store := NewReportStore(t.TempDir())
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

	if _, err := store.Save(model.TierDaily, "日报内容", now); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(model.TierWeekly, "周报内容", now); err != nil {
		t.Fatal(err)
	}

	if text, _ := store.LoadLatest(model.TierWeekly); text != "周报内容" {
		t.Errorf("周报latest被日报污染: %q", text)
	}
	if count := store.CountTimestamped(model.TierDaily); count != 1 {
		t.Errorf("日报数量应为1，实际 %d", count)
	}
	if _, ok := store.LoadLatest(model.TierMonthly); ok {
		t.Error("月报目录为空时LoadLatest应返回false")
	}
}

func TestListRecentOrder(t *testing.T) {
	store := NewReportStore(t.TempDir())
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	for i, body := range []string{"一号日报", "二号日报", "三号日报"} {
		if _, err := store.Save(model.TierDaily, body, base.AddDate(0, 0, i)); err != nil {
			t.Fatal(err)
		}
	}

	bodies, err := store.ListRecent(model.TierDaily, 2)
	if err != nil {
		t.Fatalf("ListRecent失败: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("应返回2份，实际 %d", len(bodies))
	}
	// 最新的在前
	if bodies[0] != "三号日报" || bodies[1] != "二号日报" {
		t.Errorf("排序不正确: %v", bodies)
	}
}

func TestPurgeSkipsLatest(t *testing.T) {
	dir := t.TempDir()
	store := NewReportStore(dir)
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -15)

	path, err := store.Save(model.TierDaily, "过期日报", old)
	if err != nil {
		t.Fatal(err)
	}
	// 把时间戳文件和latest都推到保留期之外
	latest := filepath.Join(dir, model.TierDaily.Subdir(), "latest.txt")
	for _, p := range []string{path, latest} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := store.Purge(model.TierDaily, 9, now)
	if err != nil {
		t.Fatalf("Purge失败: %v", err)
	}
	if removed != 1 {
		t.Fatalf("应删除1份过期报告，实际 %d", removed)
	}

	// latest.txt无论多旧都保留，作为历史上下文
	if text, ok := store.LoadLatest(model.TierDaily); !ok || text != "过期日报" {
		t.Errorf("latest.txt不应被清理，实际 %q ok=%v", text, ok)
	}
	if count := store.CountTimestamped(model.TierDaily); count != 0 {
		t.Errorf("时间戳文件应已清空，实际 %d", count)
	}
}
