// Package launcher hands a local file to an external viewer. A Want carries
// the content URI, MIME type and URI grant flags; CommandLauncher dispatches it
// to the platform default opener or to a configured viewer command.
package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ActionView is the only action documents are launched with.
const ActionView = "view"

// Flags are the URI permission grants attached to a Want.
type Flags uint32

const (
	FlagAuthReadURIPermission Flags = 1 << iota
	FlagAuthWriteURIPermission
)

// String renders the set flags as "read|write".
func (f Flags) String() string {
	var parts []string
	if f&FlagAuthReadURIPermission != 0 {
		parts = append(parts, "read")
	}
	if f&FlagAuthWriteURIPermission != 0 {
		parts = append(parts, "write")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Want describes one launch.
type Want struct {
	Action   string
	URI      string
	Path     string
	MimeType string
	Flags    Flags
}

// Launcher dispatches a Want. A nil error means the viewer was started, not
// that it finished.
type Launcher interface {
	Launch(ctx context.Context, want Want) error
}

// Func adapts a function to Launcher.
type Func func(ctx context.Context, want Want) error

// Launch implements Launcher.
func (f Func) Launch(ctx context.Context, want Want) error {
	return f(ctx, want)
}

// FileURI 将本地路径转换为 file:// URI。
func FileURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String(), nil
}

// Options 配置 CommandLauncher。
type Options struct {
	// Command 为空时使用平台默认打开方式；支持 {path}、{uri}、{mime} 占位符。
	Command []string
	Logger  *logrus.Logger
}

// CommandLauncher 通过外部进程打开文件。
type CommandLauncher struct {
	command []string
	logger  *logrus.Logger
}

// New 构造 CommandLauncher。
func New(opts Options) *CommandLauncher {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CommandLauncher{
		command: append([]string(nil), opts.Command...),
		logger:  logger,
	}
}

// Launch implements Launcher.
func (l *CommandLauncher) Launch(ctx context.Context, want Want) error {
	if want.Path == "" {
		return errors.New("want has no file path")
	}
	if len(l.command) > 0 {
		return l.run(expandCommand(l.command, want), want)
	}
	return l.openDefault(want)
}

// Mode 返回 "custom" 或 "default"，便于日志与诊断输出。
func (l *CommandLauncher) Mode() string {
	if len(l.command) > 0 {
		return "custom"
	}
	return "default"
}

func expandCommand(command []string, want Want) []string {
	replacer := strings.NewReplacer(
		"{path}", want.Path,
		"{uri}", want.URI,
		"{mime}", want.MimeType,
	)
	out := make([]string, len(command))
	for i, part := range command {
		out[i] = replacer.Replace(part)
	}
	return out
}

// run 启动进程后立即返回，子进程在后台回收并记录退出状态。
func (l *CommandLauncher) run(argv []string, want Want) error {
	if len(argv) == 0 || argv[0] == "" {
		return errors.New("empty viewer command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	started := time.Now()
	fields := logrus.Fields{
		"action":    "launch_viewer",
		"command":   argv[0],
		"pid":       cmd.Process.Pid,
		"path":      want.Path,
		"mime_type": want.MimeType,
		"flags":     want.Flags.String(),
	}
	l.logger.WithFields(fields).Debug("viewer started")

	go func() {
		err := cmd.Wait()
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		if err != nil {
			entry := l.logger.WithFields(fields).WithError(err)
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				entry = entry.WithField("stderr", msg)
			}
			entry.Warn("viewer exited with error")
			return
		}
		l.logger.WithFields(fields).Debug("viewer exited")
	}()
	return nil
}
