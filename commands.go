package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/doc-viewer/doc-viewer/internal/bridge"
	"github.com/doc-viewer/doc-viewer/internal/docviewer"
	"github.com/doc-viewer/doc-viewer/internal/logging"
	"github.com/doc-viewer/doc-viewer/internal/server"
	"github.com/doc-viewer/doc-viewer/internal/server/routes"
	"github.com/doc-viewer/doc-viewer/internal/version"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.loadRuntime("startup")
			if err != nil {
				return err
			}

			app, err := server.NewApp(server.AppOptions{
				Logger:        rt.logger,
				Bridge:        rt.module,
				BridgeTimeout: rt.cfg.Global.BridgeTimeout.DurationValue(),
			})
			if err != nil {
				return exitWith(1, "构建 HTTP 服务失败: %v", err)
			}
			routes.RegisterDiagnosticsRoutes(app, routes.Diagnostics{
				Store:      rt.store,
				Mime:       rt.mime,
				Methods:    rt.module.Methods(),
				LaunchMode: rt.cfg.Viewer.LaunchMode(),
			})

			port := rt.cfg.Global.ListenPort
			fields := logging.BaseFields("listen", c.configPath())
			fields["port"] = port
			fields["scratch_dir"] = rt.store.Dir()
			fields["version"] = version.Full()
			rt.logger.WithFields(fields).Info("Fiber 服务启动")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				if err := app.Shutdown(); err != nil {
					rt.logger.WithError(err).WithField("action", "shutdown").Warn("HTTP 服务关闭失败")
				}
			}()

			if err := app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
				return exitWith(1, "HTTP 服务启动失败: %v", err)
			}
			return nil
		},
	}
}

func (c *cli) newOpenCmd() *cobra.Command {
	var (
		fileName string
		fileType string
		useCache bool
		wait     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "open URL...",
		Short: "Download documents and open them in the viewer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileName != "" && len(args) > 1 {
				return exitWith(2, "--name 只能与单个 URL 一起使用")
			}

			rt, err := c.loadRuntime("open")
			if err != nil {
				return err
			}
			if wait <= 0 {
				wait = rt.cfg.Global.BridgeTimeout.DurationValue()
			}

			// 每个 URL 独立打开，互不影响；errgroup 只负责汇总。
			var (
				g  errgroup.Group
				mu sync.Mutex
			)
			for _, rawURL := range args {
				g.Go(func() error {
					params := []docviewer.FileInfo{{
						URL:      rawURL,
						FileName: fileName,
						FileType: fileType,
						Cache:    useCache,
					}}
					errMsg, uri := callAndWait(cmd.Context(), rt.module, bridge.MethodOpenDoc, params, wait)

					mu.Lock()
					defer mu.Unlock()
					if errMsg != "" {
						fmt.Fprintf(stdErr, "%s: %s\n", rawURL, errMsg)
						return fmt.Errorf("%s: %s", rawURL, errMsg)
					}
					fmt.Fprintln(stdOut, uri)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return exitWith(1, "打开文档失败: %v", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fileName, "name", "", "保存到 scratch 目录时使用的文件名（默认取 URL basename）")
	cmd.Flags().StringVar(&fileType, "type", "", "文件类型标签，例如 pdf、docx（默认按扩展名推断）")
	cmd.Flags().BoolVar(&useCache, "cache", false, "scratch 目录中已存在同名文件时直接复用")
	cmd.Flags().DurationVar(&wait, "wait", 0, "等待结果的最长时间（默认 BridgeTimeout）")
	return cmd
}

func (c *cli) newOpenB64Cmd() *cobra.Command {
	var (
		payloadPath string
		fileName    string
		fileType    string
		useCache    bool
		raw         bool
		wait        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "open-b64",
		Short: "Open a base64 encoded document in the viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readPayload(cmd.InOrStdin(), payloadPath)
			if err != nil {
				return exitWith(2, "读取内容失败: %v", err)
			}
			payload := string(data)
			if raw {
				payload = base64.StdEncoding.EncodeToString(data)
			}

			rt, err := c.loadRuntime("open_b64")
			if err != nil {
				return err
			}
			if wait <= 0 {
				wait = rt.cfg.Global.BridgeTimeout.DurationValue()
			}

			params := []docviewer.FileInfo{{
				Base64:   payload,
				FileName: fileName,
				FileType: fileType,
				Cache:    useCache,
			}}
			errMsg, uri := callAndWait(cmd.Context(), rt.module, bridge.MethodOpenDocb64, params, wait)
			if errMsg != "" {
				return exitWith(1, "%s", errMsg)
			}
			fmt.Fprintln(stdOut, uri)
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadPath, "file", "-", "base64 内容所在文件，- 表示标准输入")
	cmd.Flags().StringVar(&fileName, "name", "", "保存到 scratch 目录时使用的文件名")
	cmd.Flags().StringVar(&fileType, "type", "", "文件类型标签，例如 pdf、docx")
	cmd.Flags().BoolVar(&useCache, "cache", false, "scratch 目录中已存在同名文件时直接复用")
	cmd.Flags().BoolVar(&raw, "raw", false, "输入为原始字节而非 base64 文本")
	cmd.Flags().DurationVar(&wait, "wait", 0, "等待结果的最长时间（默认 BridgeTimeout）")
	return cmd
}

func (c *cli) newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, logger, err := c.loadConfigAndLogger()
			if err != nil {
				return err
			}
			table, err := buildMimeTable(cfg)
			if err != nil {
				return exitWith(1, "%v", err)
			}

			fields := logging.BaseFields("check_config", c.configPath())
			fields["scratch_dir"] = cfg.ScratchDir()
			fields["mime_types"] = len(table.Tags())
			fields["viewer"] = cfg.Viewer.LaunchMode()
			fields["result"] = "ok"
			logger.WithFields(fields).Info("配置校验通过")
			return nil
		},
	}
}

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			printVersion()
		},
	}
}

// callAndWait 通过桥接方法表发起调用，并把回调结果转换为同步返回值。
func callAndWait(ctx context.Context, module *bridge.Module, method string, params []docviewer.FileInfo, wait time.Duration) (string, string) {
	type outcome struct{ errMsg, uri string }
	results := make(chan outcome, 1)

	if ctx == nil {
		ctx = context.Background()
	}
	if err := module.Call(ctx, method, params, func(errMsg, uri string) {
		results <- outcome{errMsg: errMsg, uri: uri}
	}); err != nil {
		return err.Error(), ""
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case res := <-results:
		return res.errMsg, res.uri
	case <-timer.C:
		logrus.WithFields(logrus.Fields{"action": "bridge_call", "method": method}).Warn("等待结果超时")
		return fmt.Sprintf("timed out after %s", wait), ""
	}
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
