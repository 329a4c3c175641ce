package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/doc-viewer/doc-viewer/internal/cache"
)

var (
	// ErrFileExists is returned synchronously by Start when the target path
	// is already present.
	ErrFileExists = errors.New("download target already exists")
	// ErrUnsupportedScheme is returned by Start for URLs no source handles.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// Options 配置 Manager 的默认 source。
type Options struct {
	Client           *http.Client
	UserAgent        string
	AcceptCompressed bool
	Logger           *logrus.Logger
	// DisableGCS 不注册 gs:// source。
	DisableGCS bool
}

// Manager 负责启动下载任务，并在后台把远端内容写入目标文件。
type Manager struct {
	fs     afero.Fs
	logger *logrus.Logger

	mu      sync.RWMutex
	sources map[string]Source
}

// NewManager 创建下载管理器并注册 http/https（以及可选的 gs）source。
func NewManager(fsys afero.Fs, opts Options) *Manager {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	m := &Manager{
		fs:      fsys,
		logger:  logger,
		sources: make(map[string]Source),
	}

	httpSource := NewHTTPSource(opts.Client, opts.UserAgent, opts.AcceptCompressed)
	m.Register("http", httpSource)
	m.Register("https", httpSource)
	if !opts.DisableGCS {
		m.Register("gs", NewGCSSource())
	}
	return m
}

// Register 为 scheme 绑定 source，重复注册会覆盖旧值。
func (m *Manager) Register(scheme string, src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[strings.ToLower(scheme)] = src
}

// Schemes 返回已注册 scheme 的排序列表。
func (m *Manager) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sources))
	for scheme := range m.sources {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

// Start 创建目标文件并在后台下载 rawURL。目标已存在时同步返回 ErrFileExists；
// ctx 取消不会中断已经开始的下载。
func (m *Manager) Start(ctx context.Context, rawURL, filePath string) (*Task, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)

	m.mu.RLock()
	src, ok := m.sources[scheme]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	file, err := m.fs.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileExists, filePath)
		}
		return nil, fmt.Errorf("create target: %w", err)
	}

	task := NewTask(rawURL, filePath)
	go m.run(context.WithoutCancel(ctx), task, src, u, file)
	return task, nil
}

func (m *Manager) run(ctx context.Context, task *Task, src Source, u *url.URL, file afero.File) {
	fields := logrus.Fields{
		"action":  "download",
		"task_id": task.ID,
		"url":     u.Redacted(),
		"path":    task.Path,
	}

	written, err := m.fetchInto(ctx, src, u, file)
	fields["bytes"] = written
	fields["elapsed_ms"] = time.Since(task.Started).Milliseconds()
	if err != nil {
		m.logger.WithFields(fields).WithError(err).Warn("download failed")
	} else {
		m.logger.WithFields(fields).Info("download complete")
	}
	task.Finish(err)
}

func (m *Manager) fetchInto(ctx context.Context, src Source, u *url.URL, file afero.File) (int64, error) {
	body, err := src.Fetch(ctx, u)
	if err != nil {
		file.Close()
		return 0, err
	}
	defer body.Close()

	written, err := cache.CopyWithContext(ctx, file, body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	return written, err
}
