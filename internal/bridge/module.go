// Package bridge exposes the document opener under the method names the host
// application calls: openDoc, openDocBinaryinUrl and openDocb64. Each call is
// non-blocking and reports through a callback that fires exactly once with
// either an error message or the content URI of the opened file.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/doc-viewer/doc-viewer/internal/docviewer"
)

// Bridge method names.
const (
	MethodOpenDoc            = "openDoc"
	MethodOpenDocBinaryinUrl = "openDocBinaryinUrl"
	MethodOpenDocb64         = "openDocb64"
)

// ErrUnknownMethod is returned by Call for names outside the method table.
var ErrUnknownMethod = errors.New("unknown bridge method")

// Callback receives ("", uri) on success or (message, "") on failure.
type Callback func(errMsg, uri string)

// NativeCallback is the interface form of Callback for hosts that cannot pass
// Go funcs.
type NativeCallback interface {
	OnResult(errMsg, uri string)
}

// CallbackFunc adapts a function to NativeCallback.
type CallbackFunc func(errMsg, uri string)

// OnResult implements NativeCallback.
func (f CallbackFunc) OnResult(errMsg, uri string) {
	f(errMsg, uri)
}

// Opener is the part of docviewer.Opener the bridge drives.
type Opener interface {
	OpenInline(ctx context.Context, req docviewer.InlineRequest) *docviewer.Future
	OpenRemote(ctx context.Context, req docviewer.RemoteRequest) *docviewer.Future
}

type method func(ctx context.Context, params []docviewer.FileInfo) *docviewer.Future

// Module 是桥接层入口，方法表以宿主侧的方法名为键。
type Module struct {
	opener  Opener
	logger  *logrus.Logger
	methods map[string]method
}

// NewModule 构造桥接模块；logger 为空时使用标准 logger。
func NewModule(opener Opener, logger *logrus.Logger) *Module {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Module{opener: opener, logger: logger}
	m.methods = map[string]method{
		MethodOpenDoc:            m.openRemote,
		MethodOpenDocBinaryinUrl: m.openRemote,
		MethodOpenDocb64:         m.openInline,
	}
	return m
}

// OpenDoc opens a remote document.
func (m *Module) OpenDoc(ctx context.Context, params []docviewer.FileInfo, cb Callback) {
	m.dispatch(ctx, MethodOpenDoc, params, cb)
}

// OpenDocBinaryinUrl behaves exactly like OpenDoc.
func (m *Module) OpenDocBinaryinUrl(ctx context.Context, params []docviewer.FileInfo, cb Callback) {
	m.dispatch(ctx, MethodOpenDocBinaryinUrl, params, cb)
}

// OpenDocb64 opens an inline base64 document.
func (m *Module) OpenDocb64(ctx context.Context, params []docviewer.FileInfo, cb Callback) {
	m.dispatch(ctx, MethodOpenDocb64, params, cb)
}

// Call 按方法名分发；未知方法同步返回 ErrUnknownMethod，不会触发回调。
func (m *Module) Call(ctx context.Context, name string, params []docviewer.FileInfo, cb Callback) error {
	if _, ok := m.methods[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	m.dispatch(ctx, name, params, cb)
	return nil
}

// CallNative 与 Call 相同，回调以接口形式提供。
func (m *Module) CallNative(ctx context.Context, name string, params []docviewer.FileInfo, cb NativeCallback) error {
	var fn Callback
	if cb != nil {
		fn = cb.OnResult
	}
	return m.Call(ctx, name, params, fn)
}

// Submit 启动一次调用并返回 Future 与请求 ID，供需要自行等待结果的传输层使用。
func (m *Module) Submit(ctx context.Context, name string, params []docviewer.FileInfo) (*docviewer.Future, string, error) {
	fn, ok := m.methods[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}

	requestID := docviewer.RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = docviewer.WithRequestID(ctx, requestID)
	}

	m.logger.WithFields(logrus.Fields{
		"action":     "bridge_call",
		"method":     name,
		"request_id": requestID,
	}).Debug("bridge call received")
	return fn(ctx, params), requestID, nil
}

// HasMethod reports whether name is in the method table.
func (m *Module) HasMethod(name string) bool {
	_, ok := m.methods[name]
	return ok
}

// Methods 返回方法表中的全部名称。
func (m *Module) Methods() []string {
	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Module) dispatch(ctx context.Context, name string, params []docviewer.FileInfo, cb Callback) {
	future, requestID, err := m.Submit(ctx, name, params)
	if err != nil {
		future = docviewer.Resolved(docviewer.Result{}, err)
	}

	deliver := onceCallback(cb)
	started := time.Now()
	go func() {
		<-future.Done()
		res, err, _ := future.Result()
		errMsg, uri := CallbackArgs(res, err)

		fields := logrus.Fields{
			"action":     "bridge_call",
			"method":     name,
			"request_id": requestID,
			"elapsed_ms": time.Since(started).Milliseconds(),
		}
		if errMsg != "" {
			m.logger.WithFields(fields).WithField("error", errMsg).Info("bridge call failed")
		} else {
			m.logger.WithFields(fields).WithField("uri", uri).Info("bridge call succeeded")
		}
		deliver(errMsg, uri)
	}()
}

func (m *Module) openRemote(ctx context.Context, params []docviewer.FileInfo) *docviewer.Future {
	req, err := docviewer.ParseRemote(params)
	if err != nil {
		return docviewer.Resolved(docviewer.Result{}, err)
	}
	return m.opener.OpenRemote(ctx, req)
}

func (m *Module) openInline(ctx context.Context, params []docviewer.FileInfo) *docviewer.Future {
	req, err := docviewer.ParseInline(params)
	if err != nil {
		return docviewer.Resolved(docviewer.Result{}, err)
	}
	return m.opener.OpenInline(ctx, req)
}

// CallbackArgs 将 Future 的结果转换为回调参数。
func CallbackArgs(res docviewer.Result, err error) (errMsg, uri string) {
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "unknown error"
		}
		return msg, ""
	}
	return "", res.URI
}

func onceCallback(cb Callback) Callback {
	var once sync.Once
	return func(errMsg, uri string) {
		once.Do(func() {
			if cb != nil {
				cb(errMsg, uri)
			}
		})
	}
}
