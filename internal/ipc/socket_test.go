package ipc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRecoversStaleSocket(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "hark.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	listener, err := Acquire(context.Background(), socketPath, 50*time.Millisecond, 2, logger)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer listener.Close()

	if !strings.Contains(buf.String(), "removing stale recorder socket") {
		t.Fatalf("expected stale-socket recovery to be logged, got %q", buf.String())
	}
}

func TestAcquireReturnsAlreadyRunningWhenSocketResponsive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "hark.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- (&Server{Handler: HandlerFunc(func(_ context.Context, _ Request) Response {
			return Response{OK: true, State: "running"}
		})}).Serve(ctx, listener)
	}()

	_, err = Acquire(context.Background(), socketPath, 80*time.Millisecond, 1, nil)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Acquire() error = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	if serveErr := <-serverDone; serveErr != nil {
		t.Fatalf("Serve() error = %v", serveErr)
	}
}

func TestAcquireDoesNotUnlinkWhenProbeInconclusive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "hark.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				time.Sleep(250 * time.Millisecond)
			}(conn)
		}
	}()

	_, err = Acquire(context.Background(), socketPath, 30*time.Millisecond, 0, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAlreadyRunning)
	require.Contains(t, err.Error(), "probe existing socket")

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
	require.NoError(t, listener.Close())
	<-acceptDone
}

func TestRuntimeSocketPathRequiresXDG(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err := RuntimeSocketPath()
	if err == nil {
		t.Fatal("expected error")
	}
}
