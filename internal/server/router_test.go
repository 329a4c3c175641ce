package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/doc-viewer/doc-viewer/internal/bridge"
	"github.com/doc-viewer/doc-viewer/internal/cache"
	"github.com/doc-viewer/doc-viewer/internal/docviewer"
	"github.com/doc-viewer/doc-viewer/internal/download"
	"github.com/doc-viewer/doc-viewer/internal/launcher"
	"github.com/doc-viewer/doc-viewer/internal/mimetype"
)

type launchRecorder struct {
	mu    sync.Mutex
	wants []launcher.Want
}

func (l *launchRecorder) Launch(_ context.Context, want launcher.Want) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wants = append(l.wants, want)
	return nil
}

func (l *launchRecorder) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.wants)
}

type testApp struct {
	*fiber.App
	fs       afero.Fs
	launches *launchRecorder
}

func newTestApp(t *testing.T, upstream *httptest.Server) *testApp {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fsys := afero.NewMemMapFs()
	store, err := cache.NewStore(fsys, "/tmp/docViewerTemp", logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	var client *http.Client
	if upstream != nil {
		client = upstream.Client()
	}
	manager := download.NewManager(fsys, download.Options{Client: client, Logger: logger, DisableGCS: true})

	launches := &launchRecorder{}
	opener, err := docviewer.New(docviewer.Options{
		Store:      store,
		Downloader: manager,
		Launcher:   launches,
		Mime:       mimetype.New(""),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to create opener: %v", err)
	}

	app, err := NewApp(AppOptions{
		Logger:        logger,
		Bridge:        bridge.NewModule(opener, logger),
		BridgeTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return &testApp{App: app, fs: fsys, launches: launches}
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestBridgeOpenDocb64(t *testing.T) {
	app := newTestApp(t, nil)
	payload := base64.StdEncoding.EncodeToString([]byte("hello pdf"))

	resp, body := postJSON(t, app.App, "/bridge/openDocb64",
		`[{"base64":"`+payload+`","fileName":"a.pdf","fileType":"pdf"}]`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, body)
	}
	if !strings.Contains(body, `"error":""`) || !strings.Contains(body, `"uri":"file:///tmp/docViewerTemp/a.pdf"`) {
		t.Fatalf("unexpected body %s", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	data, err := afero.ReadFile(app.fs, filepath.Join("/tmp/docViewerTemp", "a.pdf"))
	if err != nil || string(data) != "hello pdf" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}
}

func TestBridgeMissingParamsMirrorsCallback(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := postJSON(t, app.App, "/bridge/openDoc", `{"fileName":"a.pdf"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"error":"Requires parameters: url"`) || !strings.Contains(body, `"uri":""`) {
		t.Fatalf("unexpected body %s", body)
	}
	if app.launches.count() != 0 {
		t.Fatalf("nothing should be launched")
	}
}

func TestBridgeOpenDocDownloads(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dir/report.pdf" {
			_, _ = w.Write([]byte("remote report"))
			return
		}
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	app := newTestApp(t, upstream)

	resp, body := postJSON(t, app.App, "/bridge/openDocBinaryinUrl",
		`[{"url":"`+upstream.URL+`/dir/report.pdf","fileType":"pdf","cache":true}]`)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(body, `report.pdf"`) {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}

	_, body = postJSON(t, app.App, "/bridge/openDoc", `[{"url":"`+upstream.URL+`/dir/missing.pdf"}]`)
	if !strings.Contains(body, `"error":"download fail"`) {
		t.Fatalf("expected download fail, got %s", body)
	}
	if exists, _ := afero.Exists(app.fs, "/tmp/docViewerTemp/missing.pdf"); exists {
		t.Fatalf("failed download must be removed")
	}
}

func TestBridgeUnknownMethod(t *testing.T) {
	app := newTestApp(t, nil)

	resp, body := postJSON(t, app.App, "/bridge/openSomething", `[]`)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"method_not_found"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestBridgeInvalidPayload(t *testing.T) {
	app := newTestApp(t, nil)

	for _, payload := range []string{"", "not json", `[{"url": 12}]`} {
		resp, body := postJSON(t, app.App, "/bridge/openDoc", payload)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", payload, resp.StatusCode)
		}
		if !bytes.Contains([]byte(body), []byte(`"invalid_payload"`)) {
			t.Fatalf("payload %q: unexpected body %s", payload, body)
		}
	}
}

type pendingBridge struct{}

func (pendingBridge) HasMethod(string) bool { return true }

func (pendingBridge) Submit(context.Context, string, []docviewer.FileInfo) (*docviewer.Future, string, error) {
	future, _ := docviewer.NewFuture()
	return future, "pending", nil
}

func TestBridgeTimeout(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app, err := NewApp(AppOptions{Logger: logger, Bridge: pendingBridge{}, BridgeTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	resp, body := postJSON(t, app, "/bridge/openDoc", `[{"url":"https://host/a.pdf"}]`)
	if resp.StatusCode != fiber.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"bridge_timeout"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	if _, err := NewApp(AppOptions{Bridge: pendingBridge{}, BridgeTimeout: time.Second}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewApp(AppOptions{Logger: logger, BridgeTimeout: time.Second}); err == nil {
		t.Fatalf("expected error without bridge")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Bridge: pendingBridge{}}); err == nil {
		t.Fatalf("expected error without timeout")
	}
}

func TestDecodeParamsAcceptsSingleObject(t *testing.T) {
	params, err := decodeParams([]byte(` {"url":"https://host/a.pdf","cache":true} `))
	if err != nil {
		t.Fatalf("decodeParams error: %v", err)
	}
	if len(params) != 1 || params[0].URL != "https://host/a.pdf" || !params[0].Cache {
		t.Fatalf("unexpected params %+v", params)
	}
}
