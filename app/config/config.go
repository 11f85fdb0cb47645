package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Convert ConvertConfig `mapstructure:"convert"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`  // 管理员用户名
	Password string `mapstructure:"password"`  // 管理员初始密码
	MaxBody  int64  `mapstructure:"max_body"`  // 上传大小上限（字节）
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

type ConvertConfig struct {
	TempDir          string `mapstructure:"temp_dir"`          // 任务输入临时目录
	OutputDir        string `mapstructure:"output_dir"`        // 转换结果输出目录
	FFmpegPath       string `mapstructure:"ffmpeg_path"`       // ffmpeg 可执行文件路径
	FFprobePath      string `mapstructure:"ffprobe_path"`      // ffprobe 可执行文件路径
	InlineLimit      int64  `mapstructure:"inline_limit"`      // 内联结果大小上限（字节）
	RetentionMinutes int    `mapstructure:"retention_minutes"` // 终态任务保留时长（分钟）
	CleanupSpec      string `mapstructure:"cleanup_spec"`      // 清理任务的 cron 表达式
	CallbackTimeout  int    `mapstructure:"callback_timeout"`  // 回调通知超时（秒）
}

// Retention 终态任务的保留时长
func (c ConvertConfig) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

func Load() *Config {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.username", "admin")
	viper.SetDefault("server.password", "admin")
	viper.SetDefault("server.max_body", 256<<20) // 256MB

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "media-forge")

	// 转换默认配置
	viper.SetDefault("convert.temp_dir", "data/tmp")
	viper.SetDefault("convert.output_dir", "data/uploads")
	viper.SetDefault("convert.ffmpeg_path", "ffmpeg")
	viper.SetDefault("convert.ffprobe_path", "ffprobe")
	viper.SetDefault("convert.inline_limit", 4<<20) // 4MB
	viper.SetDefault("convert.retention_minutes", 60)
	viper.SetDefault("convert.cleanup_spec", "@hourly")
	viper.SetDefault("convert.callback_timeout", 10)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	if config.Convert.InlineLimit <= 0 {
		return fmt.Errorf("内联结果大小上限必须大于 0")
	}
	if config.Convert.RetentionMinutes <= 0 {
		return fmt.Errorf("终态任务保留时长必须大于 0")
	}
	return nil
}
