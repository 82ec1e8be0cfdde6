package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/linqiu/ai-analyst/internal/infrastructure/ai"
	"github.com/linqiu/ai-analyst/internal/infrastructure/logger"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ai-analyst",
	Short: "财经新闻采集与市场报告助手",
	Long: `AI-Analyst是一个基于Go语言的控制台程序，持续采集订阅的财经RSS源，
过滤去重后落盘为新闻记录，并按日/周/月三个层级定时调用分析模型
生成市场分析报告。`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logger.Sync()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// 全局标志
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认为 ./config.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// 使用指定的配置文件
		viper.SetConfigFile(cfgFile)
	} else {
		// 在当前目录中查找配置文件
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// 读取配置文件
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("使用配置文件:", viper.ConfigFileUsed())
	} else {
		// 引导配置缺失时全部走默认值，不算错误
		fmt.Printf("未读取到配置文件，使用默认配置: %v\n", err)
	}

	// 初始化日志系统
	initLogger()

	// 读取环境变量
	viper.AutomaticEnv()
}

// initLogger 初始化日志系统
func initLogger() {
	// 从配置文件中读取日志配置
	logConfig := logger.Config{
		Level:      viper.GetString("logger.level"),
		Console:    viper.GetBool("logger.console"),
		FilePath:   viper.GetString("logger.file_path"),
		MaxSize:    viper.GetInt("logger.max_size"),
		MaxBackups: viper.GetInt("logger.max_backups"),
		MaxAge:     viper.GetInt("logger.max_age"),
		Compress:   viper.GetBool("logger.compress"),
	}

	// 初始化日志系统
	if err := logger.Init(logConfig); err != nil {
		fmt.Printf("初始化日志系统失败: %v\n", err)
	}
}

// dataDir 返回数据根目录，新闻记录、报告和运行时配置都在它下面
func dataDir() string {
	dir := viper.GetString("paths.data_dir")
	if dir == "" {
		dir = "./data"
	}
	return dir
}

// runtimeConfigPath 返回用户可编辑的运行时配置文件路径
func runtimeConfigPath() string {
	return filepath.Join(dataDir(), "rss_config.json")
}

// bootstrapKeys 从引导配置读取云端API密钥
func bootstrapKeys() ai.BootstrapKeys {
	return ai.BootstrapKeys{
		OpenAI: viper.GetString("openai_api_key"),
		Gemini: viper.GetString("gemini_api_key"),
	}
}
