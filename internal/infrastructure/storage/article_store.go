package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/domain/service"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

// StoredArticle 是从磁盘读回的记录及其解析后的发布时间
type StoredArticle struct {
	Record    model.ArticleRecord
	Published time.Time
}

// ArticleStore 管理pending目录下一条一文件的新闻记录。
// 文件名为 {时间戳}_{短哈希}.json，按名称排序即按时间排序。
// 写入方只有采集管道一个，读取方允许在写入过程中扫描目录，
// 因此写文件先落临时文件再改名。
type ArticleStore struct {
	dir string
	loc *time.Location
}

// NewArticleStore 创建文章存储
func NewArticleStore(dir string, loc *time.Location) *ArticleStore {
	if loc == nil {
		loc = time.UTC
	}
	return &ArticleStore{dir: dir, loc: loc}
}

// Dir 返回存储目录
func (s *ArticleStore) Dir() string {
	return s.dir
}

// Save 持久化一条记录，返回写入的文件路径
func (s *ArticleStore) Save(rec model.ArticleRecord, published time.Time) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("创建存储目录失败: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json",
		published.In(s.loc).Format("20060102T150405"),
		service.ShortHash(rec.Title))
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化记录失败: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("写入记录失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("替换记录文件失败: %w", err)
	}
	return path, nil
}

// LoadSince 读取发布时间不早于cutoff的全部记录，按发布时间降序返回。
// 无法解析的文件记日志后跳过，不中断整体读取。
func (s *ArticleStore) LoadSince(cutoff time.Time) ([]StoredArticle, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取存储目录失败: %w", err)
	}

	var articles []StoredArticle
	parseFail := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		raw, err := os.ReadFile(path)
		if err != nil {
			parseFail++
			logger.Warn("读取记录文件失败，已跳过", "file", entry.Name(), "error", err)
			continue
		}

		var rec model.ArticleRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			parseFail++
			logger.Warn("解析记录文件失败，已跳过", "file", entry.Name(), "error", err)
			continue
		}

		published, err := time.ParseInLocation(model.PubTimeLayout, rec.PubDt, s.loc)
		if err != nil {
			// 日期字段损坏时回退到文件修改时间
			if info, statErr := entry.Info(); statErr == nil {
				published = info.ModTime().In(s.loc)
			} else {
				parseFail++
				continue
			}
		}

		if published.Before(cutoff) {
			continue
		}
		articles = append(articles, StoredArticle{Record: rec, Published: published})
	}

	sort.Slice(articles, func(i, j int) bool {
		return articles[i].Published.After(articles[j].Published)
	})

	if parseFail > 0 {
		logger.Warn("部分记录文件无法加载", "parse_fail", parseFail, "loaded", len(articles))
	}
	return articles, nil
}

// Sweep 删除超过保留期的记录文件，并用数量上限兜底。
// 严格早于 now-retentionDays 的文件删除，恰好等于阈值的保留；
// 之后若文件总数仍超过maxFiles，从最旧的开始强制驱逐。
func (s *ArticleStore) Sweep(retentionDays, maxFiles int, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取存储目录失败: %w", err)
	}

	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	removed := 0
	var names []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				logger.Warn("删除过期记录失败", "file", entry.Name(), "error", err)
				continue
			}
			removed++
			continue
		}
		names = append(names, entry.Name())
	}

	// 数量上限：文件名按时间排序，超额部分从最旧删起
	if maxFiles > 0 && len(names) > maxFiles {
		sort.Strings(names)
		for _, name := range names[:len(names)-maxFiles] {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
				logger.Warn("强制驱逐记录失败", "file", name, "error", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		logger.Info("记录清理完成", "removed", removed, "retention_days", retentionDays)
	}
	return removed, nil
}
