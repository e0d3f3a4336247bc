package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/rs/zerolog"
)

// DefaultReadLimit bounds a single inbound message. Broker tooling
// payloads embed whole plugin descriptors, so this is well above the
// websocket library default.
const DefaultReadLimit = 8 << 20

// Server accepts broker websocket connections and dispatches JSON-RPC
// messages to a Router. Messages on one connection are handled in arrival
// order; separate connections are served concurrently.
type Server struct {
	router    *Router
	readLimit int64
	logger    zerolog.Logger
}

// NewServer creates a websocket JSON-RPC endpoint backed by router
func NewServer(router *Router) *Server {
	return &Server{
		router:    router,
		readLimit: DefaultReadLimit,
		logger:    log.WithComponent("rpc"),
	}
}

// SetReadLimit overrides the maximum inbound message size
func (s *Server) SetReadLimit(n int64) {
	s.readLimit = n
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Failed to accept broker connection")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.readLimit)

	metrics.RPCConnections.Inc()
	defer metrics.RPCConnections.Dec()

	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("Broker connected")
	if err := s.serve(r.Context(), conn, r.RemoteAddr); err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Broker connection closed with error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn, remote string) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if !json.Valid(data) {
			s.logger.Warn().Str("remote", remote).Int("size", len(data)).Msg("Received invalid JSON from broker")
			if err := wsjson.Write(ctx, conn, errorResponse(nil, CodeParseError, "parse error")); err != nil {
				return err
			}
			continue
		}

		reply := s.handle(ctx, data)
		if reply == nil {
			continue
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			return err
		}
	}
}

// handle processes a single message or a batch. It returns the value to
// write back, or nil when nothing needs an answer.
func (s *Server) handle(ctx context.Context, raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil || len(batch) == 0 {
			return errorResponse(nil, CodeInvalidRequest, "invalid batch")
		}
		var replies []*Response
		for _, item := range batch {
			if resp := s.handleOne(ctx, item); resp != nil {
				replies = append(replies, resp)
			}
		}
		if len(replies) == 0 {
			return nil
		}
		return replies
	}

	if resp := s.handleOne(ctx, trimmed); resp != nil {
		return resp
	}
	return nil
}

func (s *Server) handleOne(ctx context.Context, raw json.RawMessage) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeInvalidRequest, "invalid request: "+err.Error())
	}

	s.logger.Debug().Str("method", req.Method).Msg("Received broker message")
	return s.router.Dispatch(ctx, &req)
}
