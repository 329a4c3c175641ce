package docviewer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/doc-viewer/doc-viewer/internal/cache"
	"github.com/doc-viewer/doc-viewer/internal/download"
	"github.com/doc-viewer/doc-viewer/internal/launcher"
	"github.com/doc-viewer/doc-viewer/internal/logging"
	"github.com/doc-viewer/doc-viewer/internal/mimetype"
)

// Downloader starts a download of rawURL into filePath. Implementations must
// return an error matching download.ErrFileExists when filePath is present.
type Downloader interface {
	Start(ctx context.Context, rawURL, filePath string) (*download.Task, error)
}

// Options 汇总 Opener 的依赖；Store/Downloader/Launcher 必填。
type Options struct {
	Store      cache.Store
	Downloader Downloader
	Launcher   launcher.Launcher
	Mime       *mimetype.Table
	Logger     *logrus.Logger
}

// Opener 串起路径解析、缓存探测、落盘与查看器启动。
type Opener struct {
	store      cache.Store
	downloader Downloader
	launcher   launcher.Launcher
	mime       *mimetype.Table
	logger     *logrus.Logger
}

// New 校验依赖并构造 Opener。
func New(opts Options) (*Opener, error) {
	if opts.Store == nil {
		return nil, errors.New("docviewer: store required")
	}
	if opts.Downloader == nil {
		return nil, errors.New("docviewer: downloader required")
	}
	if opts.Launcher == nil {
		return nil, errors.New("docviewer: launcher required")
	}
	mime := opts.Mime
	if mime == nil {
		mime = mimetype.New("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Opener{
		store:      opts.Store,
		downloader: opts.Downloader,
		launcher:   opts.Launcher,
		mime:       mime,
		logger:     logger,
	}, nil
}

// OpenInline 解码 base64 内容写入 scratch 目录后交给查看器，立即返回 Future。
func (o *Opener) OpenInline(ctx context.Context, req InlineRequest) *Future {
	f := newFuture()
	go o.openInline(context.WithoutCancel(ctx), req, f)
	return f
}

// OpenRemote 下载远端文件（或复用已有文件）后交给查看器，立即返回 Future。
func (o *Opener) OpenRemote(ctx context.Context, req RemoteRequest) *Future {
	f := newFuture()
	go o.openRemote(context.WithoutCancel(ctx), req, f)
	return f
}

// CacheLookup 是唯一的缓存判定：解析路径后探测文件是否存在。
// 不合并并发请求，也不做任何淘汰。
func (o *Opener) CacheLookup(ctx context.Context, locator cache.Locator) (cache.Status, string, error) {
	result, err := o.store.Lookup(ctx, locator)
	if err != nil {
		return cache.Miss, "", err
	}
	return result.Status, result.Entry.FilePath, nil
}

func (o *Opener) openInline(ctx context.Context, req InlineRequest, f *Future) {
	tr := o.newTrace(ctx, "openDocb64")
	tr.state("received")

	locator := cache.Locator{FileName: req.FileName}
	filePath, err := o.store.Resolve(locator)
	if err != nil {
		tr.fail(err, ErrInlineFailed)
		f.resolve(Result{}, ErrInlineFailed)
		return
	}
	tr.setPath(filePath)
	tr.state("path-resolved")

	if req.Cache && o.tryCache(ctx, tr, locator, req.FileType, f) {
		return
	}

	tr.state("materializing")
	if err := o.writeInline(ctx, locator, req.Data); err != nil {
		tr.fail(err, ErrInlineFailed)
		f.resolve(Result{}, ErrInlineFailed)
		return
	}
	tr.state("materialized")
	o.share(ctx, tr, filePath, req.FileType, false, f)
}

func (o *Opener) openRemote(ctx context.Context, req RemoteRequest, f *Future) {
	tr := o.newTrace(ctx, "openDoc")
	tr.state("received")

	locator := cache.Locator{FileName: req.FileName, URL: req.URL}
	filePath, err := o.store.Resolve(locator)
	if err != nil {
		tr.fail(err, ErrDownloadFailed)
		f.resolve(Result{}, ErrDownloadFailed)
		return
	}
	tr.setPath(filePath)
	tr.state("path-resolved")

	if req.Cache && o.tryCache(ctx, tr, locator, req.FileType, f) {
		return
	}

	tr.state("materializing")
	if err := o.download(ctx, tr, locator, req.URL, filePath); err != nil {
		tr.fail(err, ErrDownloadFailed)
		f.resolve(Result{}, ErrDownloadFailed)
		return
	}
	tr.state("materialized")
	o.share(ctx, tr, filePath, req.FileType, false, f)
}

// tryCache 命中时直接分享并返回 true；探测出错按未命中处理。
func (o *Opener) tryCache(ctx context.Context, tr *trace, locator cache.Locator, fileType string, f *Future) bool {
	status, filePath, err := o.CacheLookup(ctx, locator)
	if err != nil {
		tr.entry().WithError(err).Warn("cache lookup failed")
		return false
	}
	if status != cache.Hit {
		tr.entry().Debug("cache miss")
		return false
	}
	tr.cacheHit = true
	tr.state("cache-hit")
	o.share(ctx, tr, filePath, fileType, true, f)
	return true
}

func (o *Opener) writeInline(ctx context.Context, locator cache.Locator, data string) error {
	raw, err := DecodeBase64(data)
	if err != nil {
		return err
	}
	_, err = o.store.Put(ctx, locator, bytes.NewReader(raw))
	return err
}

// download 先尽力删除旧文件，再启动下载并等待唯一的结束事件。
func (o *Opener) download(ctx context.Context, tr *trace, locator cache.Locator, rawURL, filePath string) error {
	if err := o.store.Remove(ctx, locator); err != nil {
		tr.entry().WithError(err).Warn("remove stale file failed")
	}

	task, err := o.downloader.Start(ctx, rawURL, filePath)
	if err != nil {
		if errors.Is(err, download.ErrFileExists) {
			tr.entry().Debug("file is exists, sharing existing file")
			return nil
		}
		return fmt.Errorf("start download: %w", err)
	}

	tr.entry().WithField("task_id", task.ID).Debug("download task started")
	<-task.Done()
	if err := task.Err(); err != nil {
		if rmErr := o.store.Remove(ctx, locator); rmErr != nil {
			tr.entry().WithError(rmErr).Warn("remove failed download failed")
		}
		return err
	}
	return nil
}

func (o *Opener) share(ctx context.Context, tr *trace, filePath, fileType string, cacheHit bool, f *Future) {
	tr.state("sharing")

	uri, err := launcher.FileURI(filePath)
	if err != nil {
		launchErr := &LaunchError{Err: err}
		tr.fail(err, launchErr)
		f.resolve(Result{}, launchErr)
		return
	}

	want := launcher.Want{
		Action:   launcher.ActionView,
		URI:      uri,
		Path:     filePath,
		MimeType: o.mime.ForFile(fileType, filePath),
		Flags:    launcher.FlagAuthReadURIPermission | launcher.FlagAuthWriteURIPermission,
	}
	tr.entry().WithFields(logrus.Fields{
		"uri":       want.URI,
		"mime_type": want.MimeType,
		"flags":     want.Flags.String(),
	}).Debug("share want params")

	if err := o.launcher.Launch(ctx, want); err != nil {
		launchErr := &LaunchError{Err: err}
		tr.fail(err, launchErr)
		f.resolve(Result{}, launchErr)
		return
	}

	tr.state("done")
	f.resolve(Result{URI: uri, Path: filePath, CacheHit: cacheHit}, nil)
}

// DecodeBase64 解码标准 base64，同时接受无填充、URL 安全字母表与 data URI 前缀。
func DecodeBase64(data string) ([]byte, error) {
	payload := strings.TrimSpace(data)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 || !strings.HasSuffix(payload[:idx], ";base64") {
			return nil, errors.New("data uri is not base64 encoded")
		}
		payload = payload[idx+1:]
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, errors.New("empty base64 payload")
	}

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		raw, err := enc.DecodeString(payload)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("decode base64: %w", firstErr)
}

// trace 记录单个请求的状态迁移。
type trace struct {
	logger    *logrus.Logger
	operation string
	requestID string
	path      string
	cacheHit  bool
}

func (o *Opener) newTrace(ctx context.Context, operation string) *trace {
	return &trace{
		logger:    o.logger,
		operation: operation,
		requestID: RequestIDFrom(ctx),
	}
}

func (t *trace) setPath(path string) {
	t.path = path
}

func (t *trace) entry() *logrus.Entry {
	return t.logger.WithFields(logging.RequestFields(t.operation, t.requestID, t.path, t.cacheHit))
}

func (t *trace) state(state string) {
	t.entry().WithField("state", state).Debug("open state")
}

func (t *trace) fail(cause, reported error) {
	t.entry().WithFields(logrus.Fields{
		"state":    "failed",
		"reported": reported.Error(),
	}).WithError(cause).Warn("open document failed")
}
