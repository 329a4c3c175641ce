package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	scratchDirPermission  = 0o700
	scratchFilePermission = 0o600
)

// NewStore 以 dir 为 scratch 目录构建存储，进程内复用一份实例。
// 目录创建失败只记录日志：后续写入会各自返回错误，而缓存探测仍然可用。
func NewStore(fsys afero.Fs, dir string, logger *logrus.Logger) (Store, error) {
	if dir == "" {
		return nil, errors.New("scratch dir required")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch dir: %w", err)
	}

	fields := logrus.Fields{"action": "scratch_mkdir", "dir": abs}
	if err := fsys.MkdirAll(abs, scratchDirPermission); err != nil {
		logger.WithFields(fields).WithError(err).Warn("mkdir failed")
	} else {
		logger.WithFields(fields).Debug("mkdir succeed")
	}

	return &fileStore{
		fs:      fsys,
		baseDir: abs,
	}, nil
}

// fileStore 不做任何进程内同步：同一路径的并发写入按文件系统语义后写覆盖先写。
type fileStore struct {
	fs      afero.Fs
	baseDir string
}

func (s *fileStore) Dir() string {
	return s.baseDir
}

func (s *fileStore) Fs() afero.Fs {
	return s.fs
}

func (s *fileStore) Resolve(locator Locator) (string, error) {
	name, err := EntryName(locator)
	if err != nil {
		return "", err
	}
	filePath := filepath.Join(s.baseDir, name)
	if filepath.Dir(filePath) != s.baseDir {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return filePath, nil
}

func (s *fileStore) Lookup(ctx context.Context, locator Locator) (*LookupResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.Resolve(locator)
	if err != nil {
		return nil, err
	}

	result := &LookupResult{
		Status: Miss,
		Entry:  Entry{Locator: locator, FilePath: filePath},
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, err
	}
	if info.IsDir() {
		return result, nil
	}

	result.Status = Hit
	result.Entry.SizeBytes = info.Size()
	result.Entry.ModTime = info.ModTime()
	return result, nil
}

func (s *fileStore) Put(ctx context.Context, locator Locator, body io.Reader) (*Entry, error) {
	filePath, err := s.Resolve(locator)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, scratchFilePermission)
	if err != nil {
		return nil, fmt.Errorf("open scratch file: %w", err)
	}

	written, err := CopyWithContext(ctx, f, body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write scratch file: %w", err)
	}

	entry := Entry{
		Locator:   locator,
		FilePath:  filePath,
		SizeBytes: written,
	}
	if info, statErr := s.fs.Stat(filePath); statErr == nil {
		entry.ModTime = info.ModTime()
	}
	return &entry, nil
}

func (s *fileStore) Remove(_ context.Context, locator Locator) error {
	filePath, err := s.Resolve(locator)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Locator:   Locator{FileName: info.Name()},
			FilePath:  filepath.Join(s.baseDir, info.Name()),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Locator.FileName < entries[j].Locator.FileName
	})
	return entries, nil
}

// EntryName 计算 Locator 在 scratch 目录下的文件名：FileName 优先，其次 URL basename。
func EntryName(locator Locator) (string, error) {
	name := strings.TrimSpace(locator.FileName)
	if name == "" && locator.URL != "" {
		name = urlBaseName(locator.URL)
	}
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return name, nil
}

// urlBaseName 取 URL 路径最后一段（已解码，忽略 query/fragment）；解析失败时按 '/' 切分。
func urlBaseName(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		trimmed := raw
		if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		parts := strings.Split(trimmed, "/")
		return parts[len(parts)-1]
	}
	if parsed.Path == "" || strings.HasSuffix(parsed.Path, "/") {
		return ""
	}
	return path.Base(parsed.Path)
}

// CopyWithContext 分块复制并在每块之间检查 ctx，供写缓存与下载落盘复用。
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
