package cmd

import (
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:     "media-forge",
	Short:   "多媒体格式转换服务",
	Long:    "一个支持图片、音频和视频异步格式转换的 HTTP 服务",
	Version: "1.0.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig 读取配置文件和环境变量（如果设置）
func initConfig() {
	// 添加配置文件搜索路径
	viper.AddConfigPath("./data") // 相对于当前工作目录的 data 文件夹
	viper.AddConfigPath(".")      // 当前目录
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")

	viper.AutomaticEnv() // 读取匹配的环境变量

	// 如果找到配置文件，读取它；找不到时使用默认配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Println("配置文件读取失败:", err)
			os.Exit(1)
		}
	}

	// 监听配置文件变更，仅记录事件；新配置在下次重启时生效
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Println("配置文件已变更:", e.Name)
	})
	viper.WatchConfig()
}
