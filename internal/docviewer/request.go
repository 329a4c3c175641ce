package docviewer

import "strings"

// FileInfo is the request shape exchanged with the bridge. Every field is
// optional on the wire; ParseInline and ParseRemote enforce what each entry
// point requires.
type FileInfo struct {
	URL      string `json:"url,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
	Cache    bool   `json:"cache,omitempty"`
	Base64   string `json:"base64,omitempty"`
}

// InlineRequest opens a document carried as base64 text.
type InlineRequest struct {
	Data     string
	FileName string
	FileType string
	Cache    bool
}

// RemoteRequest opens a document fetched from URL. FileName overrides the
// URL basename as the scratch file name when set.
type RemoteRequest struct {
	URL      string
	FileName string
	FileType string
	Cache    bool
}

var (
	inlineRequired = []string{"base64", "fileName", "fileType"}
	remoteRequired = []string{"url"}
)

// ParseInline 校验 params[0] 并构造 InlineRequest；只读取第一个元素。
func ParseInline(params []FileInfo) (InlineRequest, error) {
	var info FileInfo
	if len(params) > 0 {
		info = params[0]
	}

	var missing []string
	if strings.TrimSpace(info.Base64) == "" {
		missing = append(missing, "base64")
	}
	if strings.TrimSpace(info.FileName) == "" {
		missing = append(missing, "fileName")
	}
	if strings.TrimSpace(info.FileType) == "" {
		missing = append(missing, "fileType")
	}
	if len(missing) > 0 {
		return InlineRequest{}, &MissingParamsError{Required: inlineRequired, Missing: missing}
	}

	return InlineRequest{
		Data:     info.Base64,
		FileName: strings.TrimSpace(info.FileName),
		FileType: strings.TrimSpace(info.FileType),
		Cache:    info.Cache,
	}, nil
}

// ParseRemote 校验 params[0] 并构造 RemoteRequest；只读取第一个元素。
func ParseRemote(params []FileInfo) (RemoteRequest, error) {
	var info FileInfo
	if len(params) > 0 {
		info = params[0]
	}

	rawURL := strings.TrimSpace(info.URL)
	if rawURL == "" {
		return RemoteRequest{}, &MissingParamsError{Required: remoteRequired, Missing: []string{"url"}}
	}

	return RemoteRequest{
		URL:      rawURL,
		FileName: strings.TrimSpace(info.FileName),
		FileType: strings.TrimSpace(info.FileType),
		Cache:    info.Cache,
	}, nil
}
