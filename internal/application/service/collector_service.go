package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/infrastructure/database"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

// defaultFredBaseURL FRED的CSV导出端点，无需API密钥
const defaultFredBaseURL = "https://fred.stlouisfed.org/graph/fredgraph.csv"

// CollectorService 定义宏观指标采集的应用服务接口
type CollectorService interface {
	// Collect 抓取配置的全部指标序列，把各序列的最新观测值写入快照库，
	// 返回新入库的快照数量。单个序列的失败只记日志。
	Collect(ctx context.Context, cfg model.Config, now time.Time) (int, error)
}

// collectorService 实现CollectorService接口
type collectorService struct {
	repo    database.SnapshotRepository
	client  *http.Client
	baseURL string
}

// NewCollectorService 创建一个新的指标采集服务实例
func NewCollectorService(repo database.SnapshotRepository) CollectorService {
	return &collectorService{
		repo: repo,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: defaultFredBaseURL,
	}
}

// Collect 抓取全部指标序列
func (s *collectorService) Collect(ctx context.Context, cfg model.Config, now time.Time) (int, error) {
	logger.Info("开始采集市场指标", "series_count", len(cfg.FredSeries))
	defer logger.TimeTrack("CollectIndicators")()

	saved := 0
	for symbol, seriesID := range cfg.FredSeries {
		select {
		case <-ctx.Done():
			return saved, ctx.Err()
		default:
		}

		snap, err := s.fetchLatest(ctx, symbol, seriesID, now)
		if err != nil {
			logger.Warn("指标序列采集失败，已跳过", "symbol", symbol, "series_id", seriesID, "error", err)
			continue
		}

		exists, err := s.repo.SnapshotExists(symbol, snap.ObservedAt)
		if err != nil {
			logger.Warn("检查快照失败，已跳过", "symbol", symbol, "error", err)
			continue
		}
		if exists {
			continue
		}

		if err := s.repo.SaveSnapshot(snap); err != nil {
			logger.Warn("保存快照失败", "symbol", symbol, "error", err)
			continue
		}
		saved++
	}

	logger.Info("市场指标采集完成", "saved", saved)
	return saved, nil
}

// fetchLatest 下载某个序列的CSV并解析出最新的有效观测值
func (s *collectorService) fetchLatest(ctx context.Context, symbol, seriesID string, now time.Time) (model.MarketSnapshot, error) {
	url := fmt.Sprintf("%s?id=%s", s.baseURL, seriesID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("下载CSV失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.MarketSnapshot{}, fmt.Errorf("数据源返回错误: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("读取响应失败: %w", err)
	}

	text := strings.TrimSpace(string(body))
	// 序列不存在或被限流时FRED会返回HTML错误页
	if strings.HasPrefix(strings.ToLower(text), "<html") || strings.HasPrefix(text, "<!") {
		return model.MarketSnapshot{}, fmt.Errorf("数据源返回HTML错误页")
	}

	date, price, err := latestObservation(text)
	if err != nil {
		return model.MarketSnapshot{}, err
	}

	return model.MarketSnapshot{
		Symbol:      symbol,
		SeriesID:    seriesID,
		Price:       price,
		ObservedAt:  date,
		CollectedAt: now.Format(model.PubTimeLayout),
	}, nil
}

// latestObservation 从CSV文本里找出最后一行有效观测。
// FRED的CSV按日期升序，缺失值标记为"."，从尾部向前找第一个能解析的值。
func latestObservation(csvText string) (string, float64, error) {
	lines := strings.Split(csvText, "\n")
	for i := len(lines) - 1; i >= 1; i-- {
		fields := strings.Split(strings.TrimSpace(lines[i]), ",")
		if len(fields) < 2 {
			continue
		}
		date := strings.TrimSpace(fields[0])
		value := strings.TrimSpace(fields[1])
		if value == "" || value == "." {
			continue
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			continue
		}
		price, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		return date, price, nil
	}
	return "", 0, fmt.Errorf("CSV中没有有效观测值")
}
