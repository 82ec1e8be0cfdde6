package model

import "time"

// ReportTier 报告层级：日报、周报、月报
type ReportTier string

const (
	TierDaily   ReportTier = "daily"
	TierWeekly  ReportTier = "weekly"
	TierMonthly ReportTier = "monthly"
)

// Subdir 返回该层级在 reports 目录下的子目录名
func (t ReportTier) Subdir() string {
	switch t {
	case TierDaily:
		return "01_daily"
	case TierWeekly:
		return "02_weekly"
	case TierMonthly:
		return "03_monthly"
	default:
		return "05_etc"
	}
}

// Valid 检查层级是否合法
func (t ReportTier) Valid() bool {
	return t == TierDaily || t == TierWeekly || t == TierMonthly
}

// PubTimeLayout 文章发布时间在磁盘上的统一格式
const PubTimeLayout = "2006-01-02 15:04:05"

// ArticleRecord 表示一条已入库的新闻记录（pending 目录下一条一文件）
type ArticleRecord struct {
	Title   string `json:"title"`
	PubDt   string `json:"pub_dt"` // 格式见 PubTimeLayout
	Source  string `json:"source"`
	Summary string `json:"summary"`
	Link    string `json:"link"`
}

// MarketSnapshot 表示一个宏观指标的单个观测值
type MarketSnapshot struct {
	Symbol      string  // 业务代号，如 RRP
	SeriesID    string  // 数据源序列ID，如 RRPONTSYD
	Price       float64 // 观测值
	ObservedAt  string  // 观测日期，格式 2006-01-02
	CollectedAt string  // 入库时间，格式见 PubTimeLayout
}

// FeedConfig 表示一个订阅源及其局部过滤关键词（逗号分隔）
type FeedConfig struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Include string `json:"include"`
	Exclude string `json:"exclude"`
}

// ModelConfig 包含分析模型端点的配置信息
type ModelConfig struct {
	// Provider 取值 openai 或 google；留空时在客户端构造阶段按 URL 判定一次
	Provider       string  `json:"provider"`
	Name           string  `json:"name"`
	URL            string  `json:"url"`
	Key            string  `json:"key"`
	Temperature    float64 `json:"temperature"`
	Prompt         string  `json:"prompt"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// TierRetention 各层级报告的保留天数
type TierRetention struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

// Days 返回指定层级的保留天数
func (r TierRetention) Days(tier ReportTier) int {
	switch tier {
	case TierDaily:
		return r.Daily
	case TierWeekly:
		return r.Weekly
	case TierMonthly:
		return r.Monthly
	default:
		return r.Daily
	}
}

// Config 是 rss_config.json 的完整结构，即用户可编辑的运行时配置文档
type Config struct {
	Feeds         []FeedConfig `json:"feeds"`
	GlobalInclude string       `json:"global_include"`
	GlobalExclude string       `json:"global_exclude"`

	// 采集与保留
	UpdateInterval  int `json:"update_interval"` // 分钟
	RetentionDays   int `json:"retention_days"`
	MaxPendingFiles int `json:"max_pending_files"`

	// 去重
	DedupTTLDays   int     `json:"dedup_ttl_days"`
	FuzzyDedup     bool    `json:"fuzzy_dedup"`
	FuzzyThreshold float64 `json:"fuzzy_threshold"`
	FuzzyWindow    int     `json:"fuzzy_window"`

	// 报告生成
	ReportNewsCount int           `json:"report_news_count"`
	ReportAutoGen   bool          `json:"report_auto_gen"`
	ReportGenTime   string        `json:"report_gen_time"` // "08:00"
	WeeklyDay       int           `json:"weekly_day"`      // 0=周日
	ReportRetention TierRetention `json:"report_retention"`
	AnalystModel    ModelConfig   `json:"analyst_model"`

	// 其他
	Timezone   string            `json:"timezone"`
	FredSeries map[string]string `json:"fred_series"`
}

// Location 解析配置的时区，失败时回退到 UTC
func (c Config) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// UpdateIntervalDuration 返回采集周期
func (c Config) UpdateIntervalDuration() time.Duration {
	minutes := c.UpdateInterval
	if minutes <= 0 {
		minutes = 10
	}
	return time.Duration(minutes) * time.Minute
}

// DedupTTL 返回去重缓存的存活时长
func (c Config) DedupTTL() time.Duration {
	days := c.DedupTTLDays
	if days <= 0 {
		days = 3
	}
	return time.Duration(days) * 24 * time.Hour
}
