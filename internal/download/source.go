package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Source opens the remote body of a download.
type Source interface {
	Fetch(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, u *url.URL) (io.ReadCloser, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	return f(ctx, u)
}

// HTTPSource 通过共享 http.Client 拉取 http/https 资源。
type HTTPSource struct {
	client           *http.Client
	userAgent        string
	acceptCompressed bool
}

// NewHTTPSource 构造 HTTPSource；client 为空时使用 NewClient 的默认配置。
func NewHTTPSource(client *http.Client, userAgent string, acceptCompressed bool) *HTTPSource {
	if client == nil {
		client = NewClient(0)
	}
	return &HTTPSource{
		client:           client,
		userAgent:        userAgent,
		acceptCompressed: acceptCompressed,
	}
}

// Fetch implements Source. Any non-2xx response is a failure.
func (s *HTTPSource) Fetch(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.acceptCompressed {
		req.Header.Set("Accept-Encoding", "gzip, zstd")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected GET %s status %v: %s", u.Redacted(), resp.Status, strings.TrimSpace(string(body)))
	}

	return decodeBody(resp)
}

type decodedBody struct {
	io.Reader
	close func() error
}

func (d *decodedBody) Close() error {
	return d.close()
}

// decodeBody 按 Content-Encoding 解压响应体；Transport 不会自动解压手动协商的编码。
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		return &decodedBody{Reader: zr, close: func() error {
			zr.Close()
			return resp.Body.Close()
		}}, nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("open zstd body: %w", err)
		}
		return &decodedBody{Reader: zr, close: func() error {
			zr.Close()
			return resp.Body.Close()
		}}, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
