package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/doc-viewer/doc-viewer/internal/config"
	"github.com/doc-viewer/doc-viewer/internal/logging"
)

// configEnv 指定配置文件路径的环境变量，--config 优先于它。
const configEnv = "DOC_VIEWER_CONFIG"

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
	stdIn  io.Reader = os.Stdin
)

// exitError 携带子命令希望返回的退出码。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitWith(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// cli 持有根命令与绑定了全局标志的 viper 实例，便于在测试中独立构建。
type cli struct {
	root *cobra.Command
	v    *viper.Viper
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute 运行 CLI 并返回退出码，方便测试。
func execute(args []string) int {
	c := newCLI()
	c.root.SetArgs(args)
	c.root.SetOut(stdOut)
	c.root.SetErr(stdErr)
	c.root.SetIn(stdIn)

	if err := c.root.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(stdErr, exitErr.Error())
			return exitErr.code
		}
		fmt.Fprintln(stdErr, err.Error())
		return 2
	}
	return 0
}

func newCLI() *cli {
	c := &cli{v: viper.New()}
	c.root = &cobra.Command{
		Use:           "doc-viewer",
		Short:         "Open documents from base64 payloads or URLs in an external viewer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.root.PersistentFlags().String("config", "", "配置文件路径（可被 "+configEnv+" 指定，未提供时仅使用默认值）")
	_ = c.v.BindPFlag("config", c.root.PersistentFlags().Lookup("config"))
	_ = c.v.BindEnv("config", configEnv)

	c.root.AddCommand(
		c.newServeCmd(),
		c.newOpenCmd(),
		c.newOpenB64Cmd(),
		c.newCheckConfigCmd(),
		c.newVersionCmd(),
	)
	return c
}

// configPath 返回 --config 或环境变量中的配置路径，二者都缺省时返回空串。
func (c *cli) configPath() string {
	return c.v.GetString("config")
}

// loadRuntime 完成“配置 → 日志 → 组件”初始化，action 用于启动日志。
func (c *cli) loadRuntime(action string) (*appRuntime, error) {
	cfg, logger, err := c.loadConfigAndLogger()
	if err != nil {
		return nil, err
	}

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return nil, exitWith(1, "初始化组件失败: %v", err)
	}

	fields := logging.BaseFields(action, c.configPath())
	fields["scratch_dir"] = rt.store.Dir()
	fields["mime_types"] = len(rt.mime.Tags())
	fields["viewer"] = cfg.Viewer.LaunchMode()
	logger.WithFields(fields).Debug("组件初始化完成")
	return rt, nil
}

func (c *cli) loadConfigAndLogger() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.configPath())
	if err != nil {
		return nil, nil, exitWith(1, "加载配置失败: %v", err)
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		return nil, nil, exitWith(1, "初始化日志失败: %v", err)
	}
	return cfg, logger, nil
}
