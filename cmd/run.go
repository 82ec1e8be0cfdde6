package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appservice "github.com/linqiu/ai-analyst/internal/application/service"
	"github.com/linqiu/ai-analyst/internal/domain/model"
	domainservice "github.com/linqiu/ai-analyst/internal/domain/service"
	"github.com/linqiu/ai-analyst/internal/infrastructure/ai"
	"github.com/linqiu/ai-analyst/internal/infrastructure/config"
	"github.com/linqiu/ai-analyst/internal/infrastructure/database"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
	"github.com/linqiu/ai-analyst/internal/infrastructure/storage"
)

// app 聚合运行期的全部服务，run/ingest/report 三个命令共用同一套装配
type app struct {
	cfgStore  *config.Store
	ingest    appservice.IngestService
	reports   appservice.ReportService
	collector appservice.CollectorService
	db        database.Database // 可以为nil
}

// close 释放应用持有的资源
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("关闭数据库失败", "error", err)
		}
	}
}

// buildApp 装配全部服务：运行时配置、存储、去重缓存、可选的指标库
func buildApp() (*app, error) {
	cfgStore := config.NewStore(runtimeConfigPath())
	cfg, err := cfgStore.Load()
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()

	articleStore := storage.NewArticleStore(filepath.Join(dataDir(), "pending"), loc)
	reportStore := storage.NewReportStore(filepath.Join(dataDir(), "reports"))

	cache := domainservice.NewDedupCache(cfg.FuzzyDedup, cfg.FuzzyThreshold, cfg.FuzzyWindow)
	ingest := appservice.NewIngestService(articleStore, cache)
	// 重启后从磁盘记录恢复去重状态
	ingest.Rehydrate(cfg.DedupTTL(), time.Now().In(loc))

	// 指标库是可选组件，未启用时日报不含指标段落
	var db database.Database
	var snapshots database.SnapshotRepository
	var collector appservice.CollectorService
	if viper.GetBool("database.enabled") {
		dbPath := viper.GetString("database.file_path")
		if dbPath == "" {
			dbPath = filepath.Join(dataDir(), "market.db")
		}
		db = database.NewSQLiteDatabase(dbPath)
		if err := db.Init(); err != nil {
			logger.Error("指标库初始化失败，本次运行不采集指标", "error", err)
			db = nil
		} else {
			snapshots = database.NewSQLiteSnapshotRepository(db)
			collector = appservice.NewCollectorService(snapshots)
		}
	}

	keys := bootstrapKeys()
	newClient := func(mc model.ModelConfig) domainservice.LLMClient {
		return ai.NewClient(mc, keys)
	}
	reports := appservice.NewReportService(articleStore, reportStore, snapshots, newClient)

	return &app{
		cfgStore:  cfgStore,
		ingest:    ingest,
		reports:   reports,
		collector: collector,
		db:        db,
	}, nil
}

// runCmd 表示 run 命令
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动常驻调度进程",
	Long: `启动常驻进程：按配置周期采集RSS新闻，每小时采集市场指标，
并在设定时刻自动生成日报、周报和月报，直到收到中断信号退出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}
		defer application.close()

		scheduler := appservice.NewSchedulerService(
			application.cfgStore, application.ingest, application.reports, application.collector)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("程序启动", "data_dir", dataDir(), "config", application.cfgStore.Path())
		err = scheduler.Run(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Info("程序接收到中断信号，已退出")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
