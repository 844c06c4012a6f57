package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/clickread/internal/home"
	"github.com/jackzampolin/clickread/internal/testutil"
)

// TestServer_ContextCancellation tests that the server properly handles context cancellation.
func TestServer_ContextCancellation(t *testing.T) {
	srv, starter := startTestServer(t, "")

	// Cancel context immediately
	starter.Cancel()

	select {
	case err := <-starter.Done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not respond to context cancellation")
	}
	assert.False(t, srv.IsRunning(), "server still running after context cancellation")
}

// TestServer_DoubleStart tests that starting a running server returns an error.
func TestServer_DoubleStart(t *testing.T) {
	srv, starter := startTestServer(t, "")
	t.Cleanup(starter.Stop)

	assert.Error(t, srv.Start(context.Background()), "second Start() should fail")
	assert.True(t, srv.IsRunning(), "failed second Start() stopped the running server")
}

// TestServer_PortInUse tests that Start fails fast when the port is taken.
func TestServer_PortInUse(t *testing.T) {
	srv, starter := startTestServer(t, "")
	t.Cleanup(starter.Stop)

	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	h, err := home.New(t.TempDir())
	require.NoError(t, err)
	other, err := New(Config{Host: "127.0.0.1", Port: port, Home: h, Logger: testutil.Logger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, other.Start(ctx), "Start() on a used port should fail")
	assert.False(t, other.IsRunning(), "server marked running after failed listen")
}

func TestNew_RequiresHome(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
