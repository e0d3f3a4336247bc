package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/rs/zerolog"
)

// ErrInvalidParams is wrapped by handlers that cannot decode their params
var ErrInvalidParams = errors.New("invalid params")

// HandlerFunc handles the params of one inbound method call
type HandlerFunc func(ctx context.Context, params json.RawMessage) error

// Configurator registers named method handlers
type Configurator interface {
	Register(method string, h HandlerFunc)
}

// Notification adapts a typed consumer into a HandlerFunc. Params are
// decoded into a fresh T for every call.
func Notification[T any](consume func(*T)) HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) error {
		var v T
		if len(params) > 0 {
			if err := json.Unmarshal(params, &v); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidParams, err)
			}
		}
		consume(&v)
		return nil
	}
}

// Router dispatches requests to registered handlers
type Router struct {
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	logger   zerolog.Logger
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   log.WithComponent("rpc"),
	}
}

// Register adds or replaces the handler for method
func (r *Router) Register(method string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Methods returns the number of registered methods
func (r *Router) Methods() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch runs the handler for req. It returns nil for notifications.
func (r *Router) Dispatch(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != Version || req.Method == "" {
		metrics.RPCMessagesTotal.WithLabelValues(req.Method, "invalid").Inc()
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, CodeInvalidRequest, "invalid request")
	}

	r.mu.RLock()
	h, ok := r.handlers[req.Method]
	r.mu.RUnlock()

	if !ok {
		metrics.RPCMessagesTotal.WithLabelValues("unknown", "not_found").Inc()
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}

	err := h(ctx, req.Params)
	switch {
	case err == nil:
		metrics.RPCMessagesTotal.WithLabelValues(req.Method, "ok").Inc()
	case errors.Is(err, ErrInvalidParams):
		metrics.RPCMessagesTotal.WithLabelValues(req.Method, "invalid_params").Inc()
		// Notifications get no reply, so this line is the only trace of the drop
		r.logger.Error().Err(err).
			Str("method", req.Method).
			Bool("notification", req.IsNotification()).
			Msg("Dropped message with undecodable params")
	default:
		metrics.RPCMessagesTotal.WithLabelValues(req.Method, "error").Inc()
	}

	if req.IsNotification() {
		return nil
	}
	if err != nil {
		code := CodeInternalError
		if errors.Is(err, ErrInvalidParams) {
			code = CodeInvalidParams
		}
		return errorResponse(req.ID, code, err.Error())
	}
	return &Response{
		JSONRPC: Version,
		ID:      req.ID,
		Result:  struct{}{},
	}
}
