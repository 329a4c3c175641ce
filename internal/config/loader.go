package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/doc-viewer/doc-viewer/internal/version"
)

// EnvPrefix 是环境变量覆盖配置项时使用的前缀，例如 DOC_VIEWER_LOGLEVEL。
const EnvPrefix = "DOC_VIEWER"

// DefaultScratchDirName 与宿主应用约定的 scratch 子目录名。
const DefaultScratchDirName = "docViewerTemp"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// path 为空时仅使用默认值与环境变量，便于 CLI 在无配置文件时直接打开文档。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyViewerDefaults(&cfg.Viewer)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absTemp, err := filepath.Abs(cfg.Global.TempDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析临时目录: %w", err)
	}
	cfg.Global.TempDir = absTemp

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 8765)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("TempDir", os.TempDir())
	v.SetDefault("ScratchDirName", DefaultScratchDirName)
	v.SetDefault("DownloadTimeout", "60s")
	v.SetDefault("BridgeTimeout", "120s")
	v.SetDefault("UserAgent", version.UserAgent())
	v.SetDefault("AcceptCompressed", true)
	v.SetDefault("FallbackMimeType", "application/octet-stream")
	v.SetDefault("MimeTableFile", "")
	v.SetDefault("MimeTypes", map[string]string{})
	v.SetDefault("ViewerCommand", []string{})
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 8765
	}
	if strings.TrimSpace(g.TempDir) == "" {
		g.TempDir = os.TempDir()
	}
	if strings.TrimSpace(g.ScratchDirName) == "" {
		g.ScratchDirName = DefaultScratchDirName
	}
	if g.DownloadTimeout.DurationValue() == 0 {
		g.DownloadTimeout = Duration(60 * time.Second)
	}
	if g.BridgeTimeout.DurationValue() == 0 {
		g.BridgeTimeout = Duration(120 * time.Second)
	}
	if strings.TrimSpace(g.UserAgent) == "" {
		g.UserAgent = version.UserAgent()
	}
}

func applyViewerDefaults(v *ViewerConfig) {
	if strings.TrimSpace(v.FallbackMimeType) == "" {
		v.FallbackMimeType = "application/octet-stream"
	}
	if len(v.MimeTypes) > 0 {
		normalized := make(map[string]string, len(v.MimeTypes))
		for tag, mime := range v.MimeTypes {
			normalized[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "."))] = strings.TrimSpace(mime)
		}
		v.MimeTypes = normalized
	}
	if len(v.Command) > 0 {
		cmd := make([]string, 0, len(v.Command))
		for _, part := range v.Command {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				cmd = append(cmd, trimmed)
			}
		}
		v.Command = cmd
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
