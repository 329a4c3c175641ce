package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/doc-viewer/doc-viewer/internal/cache"
	"github.com/doc-viewer/doc-viewer/internal/mimetype"
	"github.com/doc-viewer/doc-viewer/internal/version"
)

// Diagnostics 汇总诊断接口需要读取的组件。
type Diagnostics struct {
	Store      cache.Store
	Mime       *mimetype.Table
	Methods    []string
	LaunchMode string
}

// RegisterDiagnosticsRoutes 暴露 /-/ 诊断接口，供排查 MIME 映射与 scratch 目录内容。
func RegisterDiagnosticsRoutes(app *fiber.App, diag Diagnostics) {
	if app == nil {
		return
	}

	if diag.Mime != nil {
		app.Get("/-/mime-types", func(c fiber.Ctx) error {
			return c.JSON(mimeTypesPayload{
				Fallback: diag.Mime.Fallback(),
				Types:    diag.Mime.Snapshot(),
			})
		})
	}

	if diag.Store != nil {
		app.Get("/-/scratch", func(c fiber.Ctx) error {
			entries, err := diag.Store.List(c.Context())
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "scratch_list_failed"})
			}
			return c.JSON(scratchPayload{
				Dir:     diag.Store.Dir(),
				Entries: encodeEntries(entries),
			})
		})
	}

	app.Get("/-/version", func(c fiber.Ctx) error {
		return c.JSON(versionPayload{
			Version:    version.Version,
			Commit:     version.Commit,
			Methods:    append([]string(nil), diag.Methods...),
			LaunchMode: diag.LaunchMode,
		})
	})
}

type mimeTypesPayload struct {
	Fallback string            `json:"fallback"`
	Types    map[string]string `json:"types"`
}

type scratchPayload struct {
	Dir     string         `json:"dir"`
	Entries []entryPayload `json:"entries"`
}

type entryPayload struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	ModTime   string `json:"mod_time"`
}

type versionPayload struct {
	Version    string   `json:"version"`
	Commit     string   `json:"commit"`
	Methods    []string `json:"methods"`
	LaunchMode string   `json:"launch_mode,omitempty"`
}

func encodeEntries(entries []cache.Entry) []entryPayload {
	result := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		item := entryPayload{
			Name:      entry.Locator.FileName,
			SizeBytes: entry.SizeBytes,
		}
		if !entry.ModTime.IsZero() {
			item.ModTime = entry.ModTime.UTC().Format(time.RFC3339)
		}
		result = append(result, item)
	}
	return result
}
