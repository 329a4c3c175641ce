package config

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "仅支持 trace/debug/info/warn/error/fatal/panic")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if strings.TrimSpace(g.TempDir) == "" {
		return newFieldError("Global.TempDir", "不能为空")
	}
	if err := validateScratchDirName(g.ScratchDirName); err != nil {
		return err
	}
	if g.DownloadTimeout.DurationValue() <= 0 {
		return newFieldError("Global.DownloadTimeout", "必须大于 0")
	}
	if g.BridgeTimeout.DurationValue() <= 0 {
		return newFieldError("Global.BridgeTimeout", "必须大于 0")
	}

	v := c.Viewer
	if err := validateMimeType(v.FallbackMimeType); err != nil {
		return newFieldError("Viewer.FallbackMimeType", err.Error())
	}
	for tag, value := range v.MimeTypes {
		if tag == "" {
			return newFieldError(mimeField(tag), "fileType 不能为空")
		}
		if err := validateMimeType(value); err != nil {
			return newFieldError(mimeField(tag), err.Error())
		}
	}

	return nil
}

func validateScratchDirName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return newFieldError("Global.ScratchDirName", "不能为空")
	}
	if trimmed == "." || trimmed == ".." || strings.ContainsAny(trimmed, `/\`) || filepath.Base(trimmed) != trimmed {
		return newFieldError("Global.ScratchDirName", "只能是单级目录名")
	}
	return nil
}

func validateMimeType(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("MIME 类型不能为空")
	}
	if _, _, err := mime.ParseMediaType(value); err != nil {
		return errors.New("MIME 类型格式非法: " + value)
	}
	return nil
}
