package cache

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/afero"
)

// Store 负责管理 scratch 目录的读写。磁盘布局遵循：
//
//	<TempDir>/<ScratchDirName>/<fileName 或 URL basename>
//
// 每个条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Dir 返回 scratch 目录的绝对路径。
	Dir() string

	// Resolve 将 Locator 解析为 scratch 目录下的文件路径，非法名称返回 ErrInvalidPath。
	Resolve(locator Locator) (string, error)

	// Lookup 仅做存在性探测，返回 Hit 或 Miss；不会读取或修改文件。
	Lookup(ctx context.Context, locator Locator) (*LookupResult, error)

	// Put 以 create|truncate 方式写入正文，返回前保证文件句柄已关闭。
	Put(ctx context.Context, locator Locator, body io.Reader) (*Entry, error)

	// Remove 删除正文文件，文件不存在时视为成功。
	Remove(ctx context.Context, locator Locator) error

	// List 返回 scratch 目录下的全部条目，按文件名排序。
	List(ctx context.Context) ([]Entry, error)

	// Fs 暴露底层文件系统，下载器需要在同一文件系统上落盘。
	Fs() afero.Fs
}

// Locator 唯一定位一个缓存条目：优先使用 FileName，缺省时取 URL 路径的 basename。
type Locator struct {
	FileName string `json:"file_name,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Entry 描述 scratch 目录中的一个文件。
type Entry struct {
	Locator   Locator   `json:"locator"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// Status 是缓存探测的二元结果。
type Status int

const (
	// Miss 表示目标路径上没有可复用的文件。
	Miss Status = iota
	// Hit 表示目标路径上已存在普通文件，可直接交给查看器。
	Hit
)

func (s Status) String() string {
	if s == Hit {
		return "hit"
	}
	return "miss"
}

// LookupResult 组合探测结果与条目描述；Miss 时 Entry 仅包含 Locator 与 FilePath。
type LookupResult struct {
	Status Status
	Entry  Entry
}

// Hit 是 Status == Hit 的便捷写法。
func (r *LookupResult) Hit() bool {
	return r != nil && r.Status == Hit
}

// ErrInvalidPath 表示无法从 fileName/URL 推导出 scratch 目录下的单级文件名。
var ErrInvalidPath = errors.New("invalid cache path")
