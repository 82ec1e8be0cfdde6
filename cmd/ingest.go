package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ingestCmd 表示 ingest 命令
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "执行一轮新闻采集后退出",
	Long:  `立即抓取全部订阅源并执行过滤、去重、落盘和清理，用于调试订阅源和过滤关键词。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}
		defer application.close()

		cfg, err := application.cfgStore.Load()
		if err != nil {
			return err
		}

		added, err := application.ingest.IngestCycle(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("采集失败: %w", err)
		}
		application.ingest.Sweep(cfg, time.Now().In(cfg.Location()))

		fmt.Printf("采集完成，新增 %d 条记录\n", added)
		return nil
	},
}

// collectCmd 表示 collect 命令
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "执行一轮市场指标采集后退出",
	Long:  `立即抓取配置的全部指标序列并写入快照库，需要在引导配置中启用数据库。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}
		defer application.close()

		if application.collector == nil {
			return fmt.Errorf("未启用指标库，请在引导配置中设置 database.enabled: true")
		}

		cfg, err := application.cfgStore.Load()
		if err != nil {
			return err
		}

		saved, err := application.collector.Collect(context.Background(), cfg, time.Now().In(cfg.Location()))
		if err != nil {
			return fmt.Errorf("指标采集失败: %w", err)
		}
		fmt.Printf("指标采集完成，新增 %d 条快照\n", saved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(collectCmd)
}
