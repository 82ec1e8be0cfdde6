package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	domainservice "github.com/linqiu/ai-analyst/internal/domain/service"
	"github.com/linqiu/ai-analyst/internal/infrastructure/database"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
	"github.com/linqiu/ai-analyst/internal/infrastructure/storage"
)

const (
	// minDailyForWeekly 生成周报所需的日报份数下限
	minDailyForWeekly = 7
	// minDailyForMonthly 生成月报所需的日报份数下限
	minDailyForMonthly = 20
	// historyContextRunes 历史报告作为上下文时的截断长度
	historyContextRunes = 1000
	// weeklySourceRunes 单份日报并入周报素材时的截断长度
	weeklySourceRunes = 3000
)

// ErrInsufficientMaterial 表示素材不足，报告推迟到下一个周期
var ErrInsufficientMaterial = fmt.Errorf("素材不足，跳过本期报告")

// ClientFactory 按模型配置构造一个分析模型客户端
type ClientFactory func(cfg model.ModelConfig) domainservice.LLMClient

// ReportService 定义报告生成的应用服务接口
type ReportService interface {
	// Generate 生成并持久化一份指定层级的报告。
	// 模型调用失败时什么都不写，当期视为未生成。
	Generate(ctx context.Context, tier model.ReportTier, cfg model.Config, now time.Time) error
	// SufficientMaterial 判断某层级当前是否有足够素材
	SufficientMaterial(tier model.ReportTier) bool
}

// reportService 实现ReportService接口
type reportService struct {
	articles  *storage.ArticleStore
	reports   *storage.ReportStore
	snapshots database.SnapshotRepository // 可以为nil，此时报告不含指标段落
	newClient ClientFactory
}

// NewReportService 创建一个新的报告服务实例
func NewReportService(articles *storage.ArticleStore, reports *storage.ReportStore,
	snapshots database.SnapshotRepository, newClient ClientFactory) ReportService {
	return &reportService{
		articles:  articles,
		reports:   reports,
		snapshots: snapshots,
		newClient: newClient,
	}
}

// SufficientMaterial 判断某层级当前是否有足够素材。
// 周报和月报都以日报份数为门槛，日报只要有当天的新闻即可。
func (s *reportService) SufficientMaterial(tier model.ReportTier) bool {
	switch tier {
	case model.TierWeekly:
		return s.reports.CountTimestamped(model.TierDaily) >= minDailyForWeekly
	case model.TierMonthly:
		return s.reports.CountTimestamped(model.TierDaily) >= minDailyForMonthly
	default:
		return true
	}
}

// Generate 生成并持久化一份报告
func (s *reportService) Generate(ctx context.Context, tier model.ReportTier, cfg model.Config, now time.Time) error {
	if !tier.Valid() {
		return fmt.Errorf("未知的报告层级: %s", tier)
	}
	logger.Info("开始生成报告", "tier", string(tier))
	defer logger.TimeTrack("GenerateReport")()

	if !s.SufficientMaterial(tier) {
		logger.Warn("素材不足，跳过本期报告", "tier", string(tier),
			"daily_count", s.reports.CountTimestamped(model.TierDaily))
		return ErrInsufficientMaterial
	}

	content, err := s.assemble(tier, cfg, now)
	if err != nil {
		return err
	}

	client := s.newClient(cfg.AnalystModel)
	text, err := client.Complete(ctx, s.instruction(tier, cfg), content)
	if err != nil {
		logger.Error("模型调用失败，本期报告未生成", "tier", string(tier), "error", err)
		return fmt.Errorf("模型调用失败: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		logger.Error("模型返回空文本，本期报告未生成", "tier", string(tier))
		return fmt.Errorf("模型返回空文本")
	}

	if _, err := s.reports.Save(tier, text, now); err != nil {
		return fmt.Errorf("保存报告失败: %w", err)
	}

	if _, err := s.reports.Purge(tier, cfg.ReportRetention.Days(tier), now); err != nil {
		logger.Warn("清理过期报告失败", "tier", string(tier), "error", err)
	}
	return nil
}

// assemble 组装某层级报告的输入素材
func (s *reportService) assemble(tier model.ReportTier, cfg model.Config, now time.Time) (string, error) {
	switch tier {
	case model.TierDaily:
		return s.assembleDaily(cfg, now)
	case model.TierWeekly:
		return s.assembleWeekly(now)
	case model.TierMonthly:
		return s.assembleMonthly(now)
	}
	return "", fmt.Errorf("未知的报告层级: %s", tier)
}

// assembleDaily 组装日报素材：最新市场指标 + 近期新闻 + 上一期日报
func (s *reportService) assembleDaily(cfg model.Config, now time.Time) (string, error) {
	articles, err := s.articles.LoadSince(now.Add(-dailyLookback(now)))
	if err != nil {
		return "", fmt.Errorf("读取新闻记录失败: %w", err)
	}
	newsText := s.formatNews(articles, cfg.ReportNewsCount)

	var b strings.Builder
	b.WriteString("## 市场指标\n")
	b.WriteString(s.marketText())
	b.WriteString("\n\n## 近期新闻\n")
	b.WriteString(newsText)
	b.WriteString("\n\n")
	b.WriteString(s.historicalContexts())
	return b.String(), nil
}

// assembleWeekly 组装周报素材：最近7份日报 + 上一期周报
func (s *reportService) assembleWeekly(now time.Time) (string, error) {
	dailies, err := s.reports.ListRecent(model.TierDaily, minDailyForWeekly)
	if err != nil {
		return "", fmt.Errorf("读取历史日报失败: %w", err)
	}

	var b strings.Builder
	b.WriteString("## 本周日报汇总\n")
	for i, body := range dailies {
		b.WriteString(fmt.Sprintf("\n### 日报 %d\n", i+1))
		b.WriteString(truncateRunes(body, weeklySourceRunes))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(s.historicalContexts())
	return b.String(), nil
}

// assembleMonthly 组装月报素材：最近5份周报 + 上一期月报
func (s *reportService) assembleMonthly(now time.Time) (string, error) {
	weeklies, err := s.reports.ListRecent(model.TierWeekly, 5)
	if err != nil {
		return "", fmt.Errorf("读取历史周报失败: %w", err)
	}

	var b strings.Builder
	b.WriteString("## 本月周报汇总\n")
	if len(weeklies) == 0 {
		b.WriteString("（本月暂无周报，请基于下面的历史月报做趋势延续分析）\n")
	}
	for i, body := range weeklies {
		b.WriteString(fmt.Sprintf("\n### 周报 %d\n", i+1))
		b.WriteString(truncateRunes(body, weeklySourceRunes))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(s.historicalContexts())
	return b.String(), nil
}

// formatNews 把新闻记录格式化为模型输入，带二次去重和数量上限
func (s *reportService) formatNews(articles []storage.StoredArticle, limit int) string {
	if limit <= 0 {
		limit = 100
	}

	var b strings.Builder
	seen := make(map[string]bool)
	count := 0
	for _, a := range articles {
		if count >= limit {
			break
		}
		// 二次去重：同一标题前缀在汇总里只出现一次
		key := titlePrefix(a.Record.Title)
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true

		line := fmt.Sprintf("[%s] %s", a.Published.Format("01/02 15:04"), a.Record.Title)
		if a.Record.Summary != "" {
			line += " | " + truncateRunes(a.Record.Summary, 200)
		}
		b.WriteString(line)
		b.WriteString("\n")
		count++
	}

	if count == 0 {
		return "（本期没有符合条件的新闻）"
	}
	return b.String()
}

// marketText 把最新指标快照格式化为模型输入
func (s *reportService) marketText() string {
	if s.snapshots == nil {
		return "（未启用市场指标采集）"
	}
	snaps, err := s.snapshots.LatestBySymbol()
	if err != nil {
		logger.Warn("读取市场指标失败", "error", err)
		return "（市场指标暂不可用）"
	}
	if len(snaps) == 0 {
		return "（暂无市场指标数据）"
	}

	var b strings.Builder
	for _, snap := range snaps {
		b.WriteString(fmt.Sprintf("%s (%s): %.4f @ %s\n", snap.Symbol, snap.SeriesID, snap.Price, snap.ObservedAt))
	}
	return b.String()
}

// historicalContexts 汇总三个层级各自最近一份报告，作为每次生成的共同上下文。
// 层级缺失时用占位符标注，模型能看出是冷启动而不是数据丢失。
func (s *reportService) historicalContexts() string {
	sections := []struct {
		tier        model.ReportTier
		label       string
		placeholder string
	}{
		{model.TierDaily, "最近一期日报", "（暂无历史日报）"},
		{model.TierWeekly, "最近一期周报", "（暂无历史周报）"},
		{model.TierMonthly, "最近一期月报", "（暂无历史月报）"},
	}

	var b strings.Builder
	b.WriteString("## 历史报告上下文\n")
	for _, sec := range sections {
		b.WriteString(fmt.Sprintf("\n### %s\n", sec.label))
		b.WriteString(s.historyContext(sec.tier, sec.placeholder))
		b.WriteString("\n")
	}
	return b.String()
}

// historyContext 读取某层级最近一份报告作为上下文，超长截断
func (s *reportService) historyContext(tier model.ReportTier, placeholder string) string {
	text, ok := s.reports.LoadLatest(tier)
	if !ok {
		return placeholder
	}
	return truncateRunes(text, historyContextRunes)
}

// instruction 组装某层级的系统指令：人设 + 层级要求 + 结构约束
func (s *reportService) instruction(tier model.ReportTier, cfg model.Config) string {
	var guideline string
	switch tier {
	case model.TierDaily:
		guideline = "请基于市场指标和近期新闻，输出当日的市场分析日报，重点关注资金面变化和突发事件。"
	case model.TierWeekly:
		guideline = "请基于本周的日报汇总，输出本周的市场趋势周报，提炼跨日的共性主题，不要逐日复述。"
	case model.TierMonthly:
		guideline = "请基于本月的周报汇总，输出本月的市场回顾月报，给出中期的配置方向判断。"
	}

	return fmt.Sprintf("%s\n\n%s\n\n输出要求：使用中文，分「市场概况」「关键事件」「策略建议」三个小节，结论明确，不要罗列原始新闻。",
		cfg.AnalystModel.Prompt, guideline)
}

// dailyLookback 返回日报的新闻回看窗口。
// 周六、周日、周一看3天，覆盖周末的新闻空窗，其余看2天。
func dailyLookback(now time.Time) time.Duration {
	switch now.Weekday() {
	case time.Saturday, time.Sunday, time.Monday:
		return 3 * 24 * time.Hour
	default:
		return 2 * 24 * time.Hour
	}
}

// titlePrefix 取标准化标题的前20个字符作为二次去重键
func titlePrefix(title string) string {
	normalized := []rune(domainservice.NormalizeTitle(title))
	if len(normalized) > 20 {
		normalized = normalized[:20]
	}
	return string(normalized)
}

// truncateRunes 按字符数截断文本，避免把多字节字符切半
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
