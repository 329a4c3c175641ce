package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/doc-viewer/doc-viewer/internal/bridge"
	"github.com/doc-viewer/doc-viewer/internal/cache"
	"github.com/doc-viewer/doc-viewer/internal/config"
	"github.com/doc-viewer/doc-viewer/internal/docviewer"
	"github.com/doc-viewer/doc-viewer/internal/download"
	"github.com/doc-viewer/doc-viewer/internal/launcher"
	"github.com/doc-viewer/doc-viewer/internal/mimetype"
	"github.com/doc-viewer/doc-viewer/internal/version"
)

// appRuntime 汇总一次进程内共享的组件实例。
type appRuntime struct {
	cfg      *config.Config
	logger   *logrus.Logger
	store    cache.Store
	mime     *mimetype.Table
	launcher launcher.Launcher
	opener   *docviewer.Opener
	module   *bridge.Module
}

// newLauncher 允许测试替换真实的查看器启动方式。
var newLauncher = func(cfg *config.Config, logger *logrus.Logger) launcher.Launcher {
	return launcher.New(launcher.Options{
		Command: cfg.Viewer.Command,
		Logger:  logger,
	})
}

// buildRuntime 按“scratch 目录 → MIME 表 → 下载器 → 启动器 → Opener → Bridge”顺序组装，
// 保证所有请求共享同一 scratch 目录与下载客户端。
func buildRuntime(cfg *config.Config, logger *logrus.Logger) (*appRuntime, error) {
	fsys := afero.NewOsFs()
	store, err := cache.NewStore(fsys, cfg.ScratchDir(), logger)
	if err != nil {
		return nil, fmt.Errorf("初始化 scratch 目录失败: %w", err)
	}

	table, err := buildMimeTable(cfg)
	if err != nil {
		return nil, err
	}

	userAgent := cfg.Global.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	manager := download.NewManager(fsys, download.Options{
		Client:           download.NewClient(cfg.Global.DownloadTimeout.DurationValue()),
		UserAgent:        userAgent,
		AcceptCompressed: cfg.Global.AcceptCompressed,
		Logger:           logger,
	})

	viewer := newLauncher(cfg, logger)
	opener, err := docviewer.New(docviewer.Options{
		Store:      store,
		Downloader: manager,
		Launcher:   viewer,
		Mime:       table,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &appRuntime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		mime:     table,
		launcher: viewer,
		opener:   opener,
		module:   bridge.NewModule(opener, logger),
	}, nil
}

// buildMimeTable 依次叠加内置表、MimeTableFile 与 [MimeTypes] 覆盖项。
func buildMimeTable(cfg *config.Config) (*mimetype.Table, error) {
	table := mimetype.New(cfg.Viewer.FallbackMimeType)
	if cfg.Viewer.MimeTableFile != "" {
		if err := table.LoadFile(cfg.Viewer.MimeTableFile); err != nil {
			return nil, fmt.Errorf("加载 MIME 表失败: %w", err)
		}
	}
	table.Override(cfg.Viewer.MimeTypes)
	return table, nil
}
