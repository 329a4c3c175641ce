package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数：日志、scratch 目录、下载与桥接超时。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// TempDir 对应应用私有临时目录，scratch 目录位于 <TempDir>/<ScratchDirName>。
	TempDir        string `mapstructure:"TempDir"`
	ScratchDirName string `mapstructure:"ScratchDirName"`

	DownloadTimeout  Duration `mapstructure:"DownloadTimeout"`
	BridgeTimeout    Duration `mapstructure:"BridgeTimeout"`
	UserAgent        string   `mapstructure:"UserAgent"`
	AcceptCompressed bool     `mapstructure:"AcceptCompressed"`
}

// ViewerConfig 决定文件交给哪个外部查看器，以及 fileType → MIME 的映射覆盖。
type ViewerConfig struct {
	FallbackMimeType string            `mapstructure:"FallbackMimeType"`
	MimeTableFile    string            `mapstructure:"MimeTableFile"`
	MimeTypes        map[string]string `mapstructure:"MimeTypes"`
	Command          []string          `mapstructure:"ViewerCommand"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Viewer ViewerConfig `mapstructure:",squash"`
}

// ScratchDir 返回 scratch 目录的完整路径。
func (c *Config) ScratchDir() string {
	return filepath.Join(c.Global.TempDir, c.Global.ScratchDirName)
}

// LaunchMode 输出 `default` 或 `custom`，供日志字段使用。
func (v ViewerConfig) LaunchMode() string {
	if len(v.Command) > 0 {
		return "custom"
	}
	return "default"
}
