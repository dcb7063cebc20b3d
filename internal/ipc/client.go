package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// DefaultSendTimeout bounds a full client round trip: dial, write, and read.
// The recorder answers from memory, so anything slower than this means it is
// wedged and the caller should treat it as down.
const DefaultSendTimeout = 250 * time.Millisecond

// Send runs one recorder command round trip on the runtime socket. A
// non-positive timeout falls back to DefaultSendTimeout.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Probe checks whether a live recorder answers on path. No recorder
// listening is a clean false, not an error.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: "status"}, timeout)
	if err == nil {
		return true, nil
	}
	if IsRecorderDown(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}

// IsRecorderDown reports failures that mean no recorder is listening: the
// socket file is gone or nothing accepts on it. Every other failure means a
// recorder exists but the exchange broke.
func IsRecorderDown(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(err.Error(), "no such file or directory")
}
