package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// DefaultReplyDeadline bounds one request/response exchange. A stalled
// client must not hold a recorder goroutine open past it.
const DefaultReplyDeadline = 2 * time.Second

// Handler processes one recorder command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server answers recorder commands on the runtime socket. Transport-level
// failures still reply with the current recorder state, so a caller can
// tell a malformed request apart from a recorder that is gone.
type Server struct {
	Handler Handler

	// State stamps the recorder state onto error replies the Handler
	// never sees. Optional.
	State func() string

	// ReplyDeadline overrides DefaultReplyDeadline when positive.
	ReplyDeadline time.Duration

	Logger *slog.Logger
}

// Serve accepts unix-socket clients until context cancellation or listener
// close.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	deadline := s.ReplyDeadline
	if deadline <= 0 {
		deadline = DefaultReplyDeadline
	}

	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			s.handleConn(ctx, c, logger, deadline)
		}(conn)
	}
}

// handleConn runs one request/response exchange under the reply deadline.
func (s *Server) handleConn(ctx context.Context, c net.Conn, logger *slog.Logger, deadline time.Duration) {
	_ = c.SetDeadline(time.Now().Add(deadline))

	line, err := bufio.NewReader(c).ReadBytes('\n')
	if err != nil {
		logger.Warn("ipc request read failed", "error", err.Error())
		s.replyError(c, fmt.Sprintf("read request: %v", err))
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		logger.Warn("ipc request malformed", "error", err.Error())
		s.replyError(c, fmt.Sprintf("decode request: %v", err))
		return
	}

	logger.Debug("ipc command received", "command", req.Command)
	resp := s.Handler.Handle(ctx, req)
	if err := json.NewEncoder(c).Encode(resp); err != nil {
		logger.Warn("ipc response write failed", "command", req.Command, "error", err.Error())
	}
}

func (s *Server) replyError(c net.Conn, msg string) {
	resp := Response{OK: false, Error: msg}
	if s.State != nil {
		resp.State = s.State()
	}
	_ = json.NewEncoder(c).Encode(resp)
}
