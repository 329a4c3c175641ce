// Package mimetype maps the short file-type tags callers pass alongside a
// document ("pdf", "docx", ...) to the MIME type the external viewer is
// launched with. Unknown tags never fail: they resolve to the fallback type.
package mimetype

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFallback is used when neither the table nor the overrides know a tag.
const DefaultFallback = "application/octet-stream"

var builtin = map[string]string{
	"7z":   "application/x-7z-compressed",
	"bmp":  "image/bmp",
	"csv":  "text/csv",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"dot":  "application/msword",
	"dotx": "application/vnd.openxmlformats-officedocument.wordprocessingml.template",
	"epub": "application/epub+zip",
	"gif":  "image/gif",
	"htm":  "text/html",
	"html": "text/html",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"json": "application/json",
	"md":   "text/markdown",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"odp":  "application/vnd.oasis.opendocument.presentation",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"odt":  "application/vnd.oasis.opendocument.text",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"pps":  "application/vnd.ms-powerpoint",
	"ppsx": "application/vnd.openxmlformats-officedocument.presentationml.slideshow",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"rar":  "application/vnd.rar",
	"rtf":  "application/rtf",
	"svg":  "image/svg+xml",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"txt":  "text/plain",
	"webp": "image/webp",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xml":  "application/xml",
	"zip":  "application/zip",
}

// Table resolves file-type tags. The zero value is not usable; use New.
type Table struct {
	mu       sync.RWMutex
	types    map[string]string
	fallback string
}

// New returns a table seeded with the built-in mappings.
func New(fallback string) *Table {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallback
	}
	types := make(map[string]string, len(builtin))
	for tag, mime := range builtin {
		types[tag] = mime
	}
	return &Table{types: types, fallback: fallback}
}

// Lookup returns the MIME type for tag, or the fallback when tag is unknown.
func (t *Table) Lookup(tag string) string {
	if mime, ok := t.Resolve(tag); ok {
		return mime
	}
	return t.Fallback()
}

// Resolve reports whether tag is mapped.
func (t *Table) Resolve(tag string) (string, bool) {
	key := normalizeTag(tag)
	if key == "" {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	mime, ok := t.types[key]
	return mime, ok
}

// ForFile resolves tag, falling back to the extension of filePath when tag is
// empty.
func (t *Table) ForFile(tag, filePath string) string {
	if strings.TrimSpace(tag) == "" {
		tag = filepath.Ext(filePath)
	}
	return t.Lookup(tag)
}

// Fallback returns the MIME type used for unknown tags.
func (t *Table) Fallback() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fallback
}

// Override replaces or adds mappings. Empty tags or values are skipped.
func (t *Table) Override(overrides map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tag, mime := range overrides {
		key := normalizeTag(tag)
		mime = strings.TrimSpace(mime)
		if key == "" || mime == "" {
			continue
		}
		t.types[key] = mime
	}
}

// Snapshot returns a copy of all mappings.
func (t *Table) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.types))
	for tag, mime := range t.types {
		out[tag] = mime
	}
	return out
}

// Tags returns the mapped tags in sorted order.
func (t *Table) Tags() []string {
	snapshot := t.Snapshot()
	tags := make([]string, 0, len(snapshot))
	for tag := range snapshot {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// tableFile is the on-disk YAML layout:
//
//	fallback: application/octet-stream
//	types:
//	  key: application/vnd.apple.keynote
type tableFile struct {
	Fallback string            `yaml:"fallback"`
	Types    map[string]string `yaml:"types"`
}

// LoadFile merges mappings from a YAML file into the table.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading mime table file: %w", err)
	}

	var parsed tableFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parsing mime table YAML: %w", err)
	}

	t.Override(parsed.Types)
	if fallback := strings.TrimSpace(parsed.Fallback); fallback != "" {
		t.mu.Lock()
		t.fallback = fallback
		t.mu.Unlock()
	}
	return nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "."))
}
