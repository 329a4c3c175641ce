package docviewer

import (
	"errors"
	"strings"
)

var (
	// ErrInlineFailed 表示 base64 解码或写入失败，细节只进日志。
	ErrInlineFailed = errors.New("openDocb64 execute failed")
	// ErrDownloadFailed 表示下载失败，底层原因只进日志。
	ErrDownloadFailed = errors.New("download fail")
)

// MissingParamsError 在任何 I/O 之前报告缺失的必填字段。
type MissingParamsError struct {
	// Required 是该入口的全部必填字段，用于错误文案。
	Required []string
	// Missing 是本次请求实际缺失的字段。
	Missing []string
}

func (e *MissingParamsError) Error() string {
	return "Requires parameters: " + strings.Join(e.Required, ", ")
}

// LaunchError 携带查看器启动失败的平台细节。
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	if e.Err == nil {
		return "launch viewer failed"
	}
	return "launch viewer failed: " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
