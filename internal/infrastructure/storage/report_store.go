package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

// latestFileName 指针文件名，保存各层级最近一份报告的副本
const latestFileName = "latest.txt"

// ReportStore 管理分层报告目录。
// 每个层级一个子目录，内部是带时间戳的报告文件外加一个latest.txt指针，
// 上层读取历史上下文时只需要读指针，不用扫描目录。
type ReportStore struct {
	baseDir string
}

// NewReportStore 创建报告存储
func NewReportStore(baseDir string) *ReportStore {
	return &ReportStore{baseDir: baseDir}
}

// BaseDir 返回报告根目录
func (s *ReportStore) BaseDir() string {
	return s.baseDir
}

func (s *ReportStore) tierDir(tier model.ReportTier) string {
	return filepath.Join(s.baseDir, tier.Subdir())
}

// Save 写入一份报告并更新latest.txt指针，返回报告文件路径
func (s *ReportStore) Save(tier model.ReportTier, text string, now time.Time) (string, error) {
	dir := s.tierDir(tier)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	name := fmt.Sprintf("%s_%s.txt", now.Format("2006-01-02_1504"), string(tier))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("写入报告失败: %w", err)
	}

	// latest指针用临时文件替换，读取方不会读到半截内容
	latest := filepath.Join(dir, latestFileName)
	tmp := latest + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("写入latest指针失败: %w", err)
	}
	if err := os.Rename(tmp, latest); err != nil {
		return "", fmt.Errorf("替换latest指针失败: %w", err)
	}

	logger.Info("报告已保存", "tier", string(tier), "file", name)
	return path, nil
}

// LoadLatest 读取某层级最近一份报告，不存在时第二个返回值为false
func (s *ReportStore) LoadLatest(tier model.ReportTier) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(s.tierDir(tier), latestFileName))
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", false
	}
	return text, true
}

// timestampedNames 返回某层级按名称升序排列的带时间戳报告文件名
func (s *ReportStore) timestampedNames(tier model.ReportTier) ([]string, error) {
	entries, err := os.ReadDir(s.tierDir(tier))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取报告目录失败: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == latestFileName || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ListRecent 读取某层级最近n份带时间戳的报告正文，按时间降序返回。
// latest.txt不计入，它只是最近一份的副本。
func (s *ReportStore) ListRecent(tier model.ReportTier, n int) ([]string, error) {
	names, err := s.timestampedNames(tier)
	if err != nil {
		return nil, err
	}
	if len(names) > n {
		names = names[len(names)-n:]
	}

	var bodies []string
	for i := len(names) - 1; i >= 0; i-- {
		raw, err := os.ReadFile(filepath.Join(s.tierDir(tier), names[i]))
		if err != nil {
			logger.Warn("读取历史报告失败，已跳过", "tier", string(tier), "file", names[i], "error", err)
			continue
		}
		bodies = append(bodies, string(raw))
	}
	return bodies, nil
}

// CountTimestamped 统计某层级带时间戳的报告数量，用于周报/月报的素材门槛
func (s *ReportStore) CountTimestamped(tier model.ReportTier) int {
	names, err := s.timestampedNames(tier)
	if err != nil {
		return 0
	}
	return len(names)
}

// Purge 删除某层级保留期之外的报告，latest.txt永不删除。
// 严格早于 now-retentionDays 的删除，恰好等于阈值的保留。
func (s *ReportStore) Purge(tier model.ReportTier, retentionDays int, now time.Time) (int, error) {
	dir := s.tierDir(tier)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取报告目录失败: %w", err)
	}

	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == latestFileName {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			logger.Warn("删除过期报告失败", "tier", string(tier), "file", entry.Name(), "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("报告清理完成", "tier", string(tier), "removed", removed, "retention_days", retentionDays)
	}
	return removed, nil
}
