package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/doc-viewer/doc-viewer/internal/bridge"
	"github.com/doc-viewer/doc-viewer/internal/docviewer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BridgeCaller is the part of bridge.Module the HTTP transport needs. It
// allows injecting fakes during tests.
type BridgeCaller interface {
	HasMethod(name string) bool
	Submit(ctx context.Context, name string, params []docviewer.FileInfo) (*docviewer.Future, string, error)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger        *logrus.Logger
	Bridge        BridgeCaller
	BridgeTimeout time.Duration
}

const contextKeyRequestID = "_docviewer_request_id"

// bridgeResponse mirrors the callback arguments.
type bridgeResponse struct {
	Error string `json:"error"`
	URI   string `json:"uri"`
}

// NewApp builds a Fiber application exposing the bridge methods.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if opts.BridgeTimeout <= 0 {
		return nil, fmt.Errorf("invalid bridge timeout: %s", opts.BridgeTimeout)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		JSONEncoder:   json.Marshal,
		JSONDecoder:   json.Unmarshal,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.Post("/bridge/:method", bridgeHandler(opts))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并写回 X-Request-ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func bridgeHandler(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		method := c.Params("method")
		fields := logrus.Fields{
			"action":     "bridge_http",
			"method":     method,
			"request_id": RequestID(c),
		}

		if !opts.Bridge.HasMethod(method) {
			opts.Logger.WithFields(fields).Warn("bridge method not found")
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "method_not_found"})
		}

		params, err := decodeParams(c.Body())
		if err != nil {
			opts.Logger.WithFields(fields).WithError(err).Warn("invalid bridge payload")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}

		// fasthttp 会复用请求上下文，打开流程可能比请求活得更久。
		ctx := docviewer.WithRequestID(context.Background(), RequestID(c))
		future, _, err := opts.Bridge.Submit(ctx, method, params)
		if err != nil {
			if errors.Is(err, bridge.ErrUnknownMethod) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "method_not_found"})
			}
			return err
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), opts.BridgeTimeout)
		defer cancel()
		started := time.Now()
		res, err := future.Wait(waitCtx)
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		if err != nil && waitCtx.Err() != nil {
			if _, _, done := future.Result(); !done {
				opts.Logger.WithFields(fields).Warn("bridge call timed out, open continues in background")
				return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "bridge_timeout"})
			}
			res, err, _ = future.Result()
		}

		errMsg, uri := bridge.CallbackArgs(res, err)
		opts.Logger.WithFields(fields).WithField("error", errMsg).Info("bridge call answered")
		return c.JSON(bridgeResponse{Error: errMsg, URI: uri})
	}
}

// decodeParams 接受 FileInfo 数组，也兼容单个对象。
func decodeParams(body []byte) ([]docviewer.FileInfo, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	switch trimmed[0] {
	case '[':
		var params []docviewer.FileInfo
		if err := json.Unmarshal(trimmed, &params); err != nil {
			return nil, err
		}
		return params, nil
	case '{':
		var info docviewer.FileInfo
		if err := json.Unmarshal(trimmed, &info); err != nil {
			return nil, err
		}
		return []docviewer.FileInfo{info}, nil
	default:
		return nil, fmt.Errorf("unexpected payload starting with %q", trimmed[0])
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
