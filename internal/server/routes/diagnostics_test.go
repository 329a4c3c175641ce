package routes

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/afero"

	"github.com/doc-viewer/doc-viewer/internal/cache"
	"github.com/doc-viewer/doc-viewer/internal/logging"
	"github.com/doc-viewer/doc-viewer/internal/mimetype"
)

func newDiagnosticsApp(t *testing.T) (*fiber.App, afero.Fs) {
	t.Helper()
	logger := logging.Discard()

	fsys := afero.NewMemMapFs()
	store, err := cache.NewStore(fsys, "/tmp/docViewerTemp", logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	table := mimetype.New("")
	table.Override(map[string]string{"dwg": "image/vnd.dwg"})

	app := fiber.New()
	RegisterDiagnosticsRoutes(app, Diagnostics{
		Store:      store,
		Mime:       table,
		Methods:    []string{"openDoc", "openDocBinaryinUrl", "openDocb64"},
		LaunchMode: "default",
	})
	return app, fsys
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestMimeTypesRoute(t *testing.T) {
	app, _ := newDiagnosticsApp(t)

	status, body := get(t, app, "/-/mime-types")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	for _, want := range []string{`"fallback":"application/octet-stream"`, `"pdf":"application/pdf"`, `"dwg":"image/vnd.dwg"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestScratchRoute(t *testing.T) {
	app, fsys := newDiagnosticsApp(t)
	if err := afero.WriteFile(fsys, "/tmp/docViewerTemp/b.pdf", []byte("12345"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := afero.WriteFile(fsys, "/tmp/docViewerTemp/a.txt", []byte("1"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	status, body := get(t, app, "/-/scratch")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(body, `"dir":"/tmp/docViewerTemp"`) {
		t.Fatalf("expected scratch dir in %s", body)
	}
	first := strings.Index(body, `"name":"a.txt"`)
	second := strings.Index(body, `"name":"b.pdf"`)
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected sorted entries, got %s", body)
	}
	if !strings.Contains(body, `"size_bytes":5`) {
		t.Fatalf("expected entry size in %s", body)
	}
}

func TestVersionRoute(t *testing.T) {
	app, _ := newDiagnosticsApp(t)

	status, body := get(t, app, "/-/version")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(body, `"openDocb64"`) || !strings.Contains(body, `"launch_mode":"default"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestEncodeEntriesFormatsModTime(t *testing.T) {
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	encoded := encodeEntries([]cache.Entry{
		{Locator: cache.Locator{FileName: "a.pdf"}, SizeBytes: 3, ModTime: mod},
		{Locator: cache.Locator{FileName: "b.pdf"}},
	})
	if len(encoded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(encoded))
	}
	if encoded[0].ModTime != "2024-03-01T12:00:00Z" {
		t.Fatalf("unexpected mod time %s", encoded[0].ModTime)
	}
	if encoded[1].ModTime != "" {
		t.Fatalf("zero mod time should be empty, got %s", encoded[1].ModTime)
	}
}
