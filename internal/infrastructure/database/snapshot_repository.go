package database

import (
	"fmt"

	"github.com/linqiu/ai-analyst/internal/domain/model"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

// SnapshotRepository 定义指标快照存储库接口
type SnapshotRepository interface {
	// SaveSnapshot 保存一个指标观测值，同一指标同一观测日只保留首次入库的记录
	SaveSnapshot(snap model.MarketSnapshot) error
	// SnapshotExists 检查某指标某观测日是否已有记录
	SnapshotExists(symbol, observedAt string) (bool, error)
	// LatestBySymbol 返回每个指标的最新观测值
	LatestBySymbol() ([]model.MarketSnapshot, error)
}

// SQLiteSnapshotRepository 实现SnapshotRepository接口的SQLite存储库
type SQLiteSnapshotRepository struct {
	db Database
}

// NewSQLiteSnapshotRepository 创建一个新的SQLite快照存储库
func NewSQLiteSnapshotRepository(db Database) SnapshotRepository {
	return &SQLiteSnapshotRepository{
		db: db,
	}
}

// SaveSnapshot 保存指标观测值到数据库
func (r *SQLiteSnapshotRepository) SaveSnapshot(snap model.MarketSnapshot) error {
	exists, err := r.SnapshotExists(snap.Symbol, snap.ObservedAt)
	if err != nil {
		logger.Error("检查快照是否存在失败", "error", err)
		return fmt.Errorf("检查快照是否存在失败: %w", err)
	}

	// 同一观测日已入库则跳过，数据源的修订值不覆盖
	if exists {
		logger.Debug("快照已存在，跳过保存", "symbol", snap.Symbol, "observed_at", snap.ObservedAt)
		return nil
	}

	query := `
	INSERT INTO snapshots (symbol, series_id, price, observed_at, collected_at)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, snap.Symbol, snap.SeriesID, snap.Price, snap.ObservedAt, snap.CollectedAt)
	if err != nil {
		logger.Error("保存快照失败", "error", err)
		return fmt.Errorf("保存快照失败: %w", err)
	}

	logger.Info("快照保存成功", "symbol", snap.Symbol, "observed_at", snap.ObservedAt, "price", snap.Price)
	return nil
}

// SnapshotExists 检查某指标某观测日是否已有记录
func (r *SQLiteSnapshotRepository) SnapshotExists(symbol, observedAt string) (bool, error) {
	query := "SELECT COUNT(*) FROM snapshots WHERE symbol = ? AND observed_at = ?"
	var count int
	err := r.db.QueryRow(query, symbol, observedAt).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("查询快照失败: %w", err)
	}
	return count > 0, nil
}

// LatestBySymbol 返回每个指标的最新观测值，按指标代号升序排列
func (r *SQLiteSnapshotRepository) LatestBySymbol() ([]model.MarketSnapshot, error) {
	query := `
	SELECT s.symbol, s.series_id, s.price, s.observed_at, s.collected_at
	FROM snapshots s
	INNER JOIN (
		SELECT symbol, MAX(observed_at) AS max_observed
		FROM snapshots
		GROUP BY symbol
	) latest ON s.symbol = latest.symbol AND s.observed_at = latest.max_observed
	ORDER BY s.symbol
	`

	rows, err := r.db.Query(query)
	if err != nil {
		logger.Error("查询最新快照失败", "error", err)
		return nil, fmt.Errorf("查询最新快照失败: %w", err)
	}
	defer rows.Close()

	var snaps []model.MarketSnapshot
	for rows.Next() {
		var snap model.MarketSnapshot
		if err := rows.Scan(&snap.Symbol, &snap.SeriesID, &snap.Price, &snap.ObservedAt, &snap.CollectedAt); err != nil {
			return nil, fmt.Errorf("读取快照记录失败: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历快照记录失败: %w", err)
	}
	return snaps, nil
}
