package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	domainservice "github.com/linqiu/ai-analyst/internal/domain/service"
	"github.com/linqiu/ai-analyst/internal/infrastructure/config"
)

// feedsCmd 表示 feeds 命令
var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "管理订阅源",
}

// feedsListCmd 表示 feeds list 命令
var feedsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出当前配置的全部订阅源",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgStore := config.NewStore(runtimeConfigPath())
		cfg, err := cfgStore.Load()
		if err != nil {
			return err
		}

		if len(cfg.Feeds) == 0 {
			fmt.Println("暂无订阅源，可以用 feeds import 导入OPML文件")
			return nil
		}
		for i, feed := range cfg.Feeds {
			fmt.Printf("%2d. %s\n    %s\n", i+1, feed.Name, feed.URL)
		}
		return nil
	},
}

// feedsImportCmd 表示 feeds import 命令
var feedsImportCmd = &cobra.Command{
	Use:   "import <file.opml>",
	Short: "从OPML文件导入订阅源",
	Long:  `解析OPML文件并把其中的订阅源合并进运行时配置，已存在的URL自动跳过。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds, err := domainservice.ParseOPML(args[0])
		if err != nil {
			return err
		}

		cfgStore := config.NewStore(runtimeConfigPath())
		cfg, err := cfgStore.Load()
		if err != nil {
			return err
		}

		existing := make(map[string]bool, len(cfg.Feeds))
		for _, feed := range cfg.Feeds {
			existing[feed.URL] = true
		}

		added := 0
		for _, feed := range feeds {
			if existing[feed.URL] {
				continue
			}
			cfg.Feeds = append(cfg.Feeds, feed)
			existing[feed.URL] = true
			added++
		}

		if added > 0 {
			if err := cfgStore.Save(cfg); err != nil {
				return err
			}
		}
		fmt.Printf("导入完成，新增 %d 个订阅源，当前共 %d 个\n", added, len(cfg.Feeds))
		return nil
	},
}

func init() {
	feedsCmd.AddCommand(feedsListCmd)
	feedsCmd.AddCommand(feedsImportCmd)
	rootCmd.AddCommand(feedsCmd)
}
