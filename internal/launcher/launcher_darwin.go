//go:build darwin

package launcher

// openDefault 使用 open(1) 打开文件，由 LaunchServices 选择应用。
func (l *CommandLauncher) openDefault(want Want) error {
	return l.run([]string{"open", want.Path}, want)
}
