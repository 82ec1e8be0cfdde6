package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appservice "github.com/linqiu/ai-analyst/internal/application/service"
	"github.com/linqiu/ai-analyst/internal/domain/model"
)

// reportCmd 表示 report 命令
var reportCmd = &cobra.Command{
	Use:   "report [daily|weekly|monthly]",
	Short: "立即生成一份指定层级的报告",
	Long: `跳过调度时刻，立即组装素材并调用分析模型生成一份报告。
周报需要至少7份日报，月报需要至少20份日报，素材不足时不生成。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tier := model.ReportTier(args[0])
		if !tier.Valid() {
			return fmt.Errorf("未知的报告层级: %s（可选 daily/weekly/monthly）", args[0])
		}

		application, err := buildApp()
		if err != nil {
			return err
		}
		defer application.close()

		cfg, err := application.cfgStore.Load()
		if err != nil {
			return err
		}

		err = application.reports.Generate(cmd.Context(), tier, cfg, time.Now().In(cfg.Location()))
		if errors.Is(err, appservice.ErrInsufficientMaterial) {
			fmt.Println("素材不足，本次未生成报告")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s 报告生成完成\n", string(tier))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
