package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/infrastructure/config"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

const (
	// tickInterval 调度循环的唤醒周期
	tickInterval = time.Minute
	// weeklyOffset 周报在日报时刻之后的偏移，错开模型调用
	weeklyOffset = 10 * time.Minute
	// monthlyOffset 月报在日报时刻之后的偏移
	monthlyOffset = 20 * time.Minute
	// collectInterval 市场指标的采集周期
	collectInterval = time.Hour
)

// SchedulerService 定义调度循环的应用服务接口
type SchedulerService interface {
	// Run 启动调度循环，阻塞直到ctx取消
	Run(ctx context.Context) error
	// TickOnce 执行一次调度检查，panic被捕获后只记日志
	TickOnce(ctx context.Context)
}

// schedulerService 实现SchedulerService接口。
// 单goroutine驱动全部周期任务，完成标记只在任务成功后落下，
// 失败的周期会在下一个触发点自然重试。
type schedulerService struct {
	cfgStore  *config.Store
	ingest    IngestService
	reports   ReportService
	collector CollectorService // 可以为nil，此时跳过指标采集

	now func() time.Time

	lastDailyDate    string // "2006-01-02"
	lastWeeklyWeek   string // "2006-W27"
	lastMonthlyMonth string // "2006-01"
	lastIngest       time.Time
	lastCollect      time.Time
}

// NewSchedulerService 创建一个新的调度服务实例
func NewSchedulerService(cfgStore *config.Store, ingest IngestService,
	reports ReportService, collector CollectorService) SchedulerService {
	return &schedulerService{
		cfgStore:  cfgStore,
		ingest:    ingest,
		reports:   reports,
		collector: collector,
		now:       time.Now,
	}
}

// Run 启动调度循环
func (s *schedulerService) Run(ctx context.Context) error {
	logger.Info("调度循环启动", "tick", tickInterval.String())

	// 启动后立即执行一次，不等第一个tick
	s.TickOnce(ctx)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("调度循环退出")
			return ctx.Err()
		case <-ticker.C:
			s.TickOnce(ctx)
		}
	}
}

// TickOnce 执行一次调度检查
func (s *schedulerService) TickOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("调度tick发生panic，已恢复", "panic", fmt.Sprintf("%v", r))
		}
	}()

	cfg, err := s.cfgStore.Load()
	if err != nil {
		logger.Error("加载配置失败，跳过本次tick", "error", err)
		return
	}

	now := s.now().In(cfg.Location())

	s.checkIngest(ctx, cfg, now)
	s.checkCollect(ctx, cfg, now)

	if cfg.ReportAutoGen {
		s.checkDaily(ctx, cfg, now)
		s.checkWeekly(ctx, cfg, now)
		s.checkMonthly(ctx, cfg, now)
	}
}

// checkIngest 采集周期到了就执行一轮采集和清理
func (s *schedulerService) checkIngest(ctx context.Context, cfg model.Config, now time.Time) {
	if !s.lastIngest.IsZero() && now.Sub(s.lastIngest) < cfg.UpdateIntervalDuration() {
		return
	}
	s.lastIngest = now

	if _, err := s.ingest.IngestCycle(ctx, cfg); err != nil {
		logger.Error("采集执行失败", "error", err)
	}
	s.ingest.Sweep(cfg, now)
}

// checkCollect 每小时采集一次市场指标
func (s *schedulerService) checkCollect(ctx context.Context, cfg model.Config, now time.Time) {
	if s.collector == nil {
		return
	}
	if !s.lastCollect.IsZero() && now.Sub(s.lastCollect) < collectInterval {
		return
	}
	s.lastCollect = now

	if _, err := s.collector.Collect(ctx, cfg, now); err != nil {
		logger.Error("指标采集失败", "error", err)
	}
}

// checkDaily 到达生成时刻后，每个日期只生成一次日报
func (s *schedulerService) checkDaily(ctx context.Context, cfg model.Config, now time.Time) {
	date := now.Format("2006-01-02")
	if s.lastDailyDate == date {
		return
	}
	if now.Before(genTimeOn(now, cfg.ReportGenTime)) {
		return
	}

	if err := s.reports.Generate(ctx, model.TierDaily, cfg, now); err != nil {
		// 标记不落下，下一个tick重试
		logger.Error("日报生成失败，等待重试", "error", err)
		return
	}
	s.lastDailyDate = date
}

// checkWeekly 在配置的星期、日报时刻+10分钟后，每个ISO周只生成一次周报
func (s *schedulerService) checkWeekly(ctx context.Context, cfg model.Config, now time.Time) {
	if int(now.Weekday()) != cfg.WeeklyDay {
		return
	}
	year, week := now.ISOWeek()
	key := fmt.Sprintf("%d-W%02d", year, week)
	if s.lastWeeklyWeek == key {
		return
	}
	if now.Before(genTimeOn(now, cfg.ReportGenTime).Add(weeklyOffset)) {
		return
	}

	if err := s.reports.Generate(ctx, model.TierWeekly, cfg, now); err != nil {
		// 素材不足不是故障，本期直接跳过，等下一周再试
		if errors.Is(err, ErrInsufficientMaterial) {
			logger.Warn("日报数量不足，本周跳过周报", "week", key)
			s.lastWeeklyWeek = key
			return
		}
		logger.Error("周报生成失败，等待重试", "error", err)
		return
	}
	s.lastWeeklyWeek = key
}

// checkMonthly 在每月1号、日报时刻+20分钟后，每个月份只生成一次月报
func (s *schedulerService) checkMonthly(ctx context.Context, cfg model.Config, now time.Time) {
	if now.Day() != 1 {
		return
	}
	key := now.Format("2006-01")
	if s.lastMonthlyMonth == key {
		return
	}
	if now.Before(genTimeOn(now, cfg.ReportGenTime).Add(monthlyOffset)) {
		return
	}

	if err := s.reports.Generate(ctx, model.TierMonthly, cfg, now); err != nil {
		if errors.Is(err, ErrInsufficientMaterial) {
			logger.Warn("日报数量不足，本月跳过月报", "month", key)
			s.lastMonthlyMonth = key
			return
		}
		logger.Error("月报生成失败，等待重试", "error", err)
		return
	}
	s.lastMonthlyMonth = key
}

// genTimeOn 把"15:04"形式的生成时刻落到指定日期上，解析失败回退到08:00
func genTimeOn(day time.Time, genTime string) time.Time {
	parsed, err := time.Parse("15:04", genTime)
	if err != nil {
		parsed, _ = time.Parse("15:04", "08:00")
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, day.Location())
}
