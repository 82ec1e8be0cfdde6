package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

// Default 返回运行时配置的默认结构。
// 加载时以它为底座反序列化，缺失的键自动落回默认值。
func Default() model.Config {
	return model.Config{
		Feeds:         []model.FeedConfig{},
		GlobalInclude: "",
		GlobalExclude: "",

		UpdateInterval:  10,
		RetentionDays:   7,
		MaxPendingFiles: 600,

		DedupTTLDays:   3,
		FuzzyDedup:     true,
		FuzzyThreshold: 0.85,
		FuzzyWindow:    500,

		ReportNewsCount: 100,
		ReportAutoGen:   true,
		ReportGenTime:   "08:00",
		WeeklyDay:       0, // 周日
		ReportRetention: model.TierRetention{
			Daily:   9,
			Weekly:  35,
			Monthly: 370,
		},
		AnalystModel: model.ModelConfig{
			Provider:       "openai",
			Name:           "qwen2.5:14b",
			URL:            "http://127.0.0.1:11434/v1",
			Key:            "",
			Temperature:    0.3,
			Prompt:         "你是一名专业的投资策略分析师，基于指标和新闻给出稳健的投资策略建议。",
			TimeoutSeconds: 600,
		},

		Timezone: "Asia/Shanghai",
		FredSeries: map[string]string{
			"RRP":        "RRPONTSYD",
			"RESERVES":   "TOTRESNS",
			"US_TGA":     "WTREGEN",
			"FED_ASSETS": "WALCL",
			"SOFR":       "SOFR",
			"US_M2":      "M2SL",
			"US_CPI":     "CPIAUCSL",
			"US_UNRATE":  "UNRATE",
		},
	}
}

// Store 负责 rss_config.json 的加载与持久化。
// 文件不存在时写出默认配置；重载以修改时间为准做缓存，
// 调度循环每分钟查询一次也不会产生多余的解析开销。
type Store struct {
	path     string
	cached   model.Config
	cachedAt time.Time
	hasCache bool
}

// NewStore 创建一个配置存储
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path 返回配置文件路径
func (s *Store) Path() string {
	return s.path
}

// Load 加载配置。文件缺失时自动生成默认配置；
// 文件未变化时直接返回缓存副本。
func (s *Store) Load() (model.Config, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		cfg := Default()
		if saveErr := s.Save(cfg); saveErr != nil {
			logger.Warn("写出默认配置失败，使用内存默认值", "path", s.path, "error", saveErr)
			return cfg, nil
		}
		logger.Info("配置文件不存在，已生成默认配置", "path", s.path)
		return cfg, nil
	}
	if err != nil {
		return model.Config{}, fmt.Errorf("读取配置文件状态失败: %w", err)
	}

	if s.hasCache && info.ModTime().Equal(s.cachedAt) {
		return s.cached, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return model.Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 以默认值为底座反序列化，缺失键自动补全
	cfg := Default()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		logger.Error("解析配置文件失败，回退到默认配置", "path", s.path, "error", err)
		return Default(), nil
	}

	s.cached = cfg
	s.cachedAt = info.ModTime()
	s.hasCache = true
	logger.Debug("配置已重新加载", "path", s.path, "feeds", len(cfg.Feeds))
	return cfg, nil
}

// Save 持久化配置，先写临时文件再改名，避免读到半截文档
func (s *Store) Save(cfg model.Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("写入临时配置文件失败: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("替换配置文件失败: %w", err)
	}

	// 使缓存与磁盘同步
	if info, err := os.Stat(s.path); err == nil {
		s.cached = cfg
		s.cachedAt = info.ModTime()
		s.hasCache = true
	}
	return nil
}
