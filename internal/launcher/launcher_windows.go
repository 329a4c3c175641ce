//go:build windows

package launcher

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// openDefault 通过 ShellExecute 的 open 动词交给文件关联的应用。
func (l *CommandLauncher) openDefault(want Want) error {
	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return fmt.Errorf("invalid verb: %w", err)
	}
	file, err := windows.UTF16PtrFromString(want.Path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if err := windows.ShellExecute(0, verb, file, nil, nil, windows.SW_SHOWNORMAL); err != nil {
		return fmt.Errorf("shell execute %s: %w", want.Path, err)
	}

	l.logger.WithFields(logrus.Fields{
		"action":    "launch_viewer",
		"command":   "ShellExecute",
		"path":      want.Path,
		"mime_type": want.MimeType,
		"flags":     want.Flags.String(),
	}).Debug("viewer started")
	return nil
}
