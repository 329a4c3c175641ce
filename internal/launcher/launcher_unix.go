//go:build !windows && !darwin

package launcher

// openDefault 使用 freedesktop 的 xdg-open 打开文件。
func (l *CommandLauncher) openDefault(want Want) error {
	return l.run([]string{"xdg-open", want.Path}, want)
}
