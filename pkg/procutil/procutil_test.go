package procutil

import (
	"context"
	"net"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRunning(t *testing.T) {
	running, err := IsRunning(context.Background(), int32(os.Getpid()))
	require.NoError(t, err)
	assert.True(t, running)

	_, err = IsRunning(context.Background(), 0)
	assert.Error(t, err)
}

func TestListenerPID(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("connection table lookup is only exercised on linux")
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	pid, err := ListenerPID(context.Background(), l.Addr().(*net.TCPAddr).Port)
	require.NoError(t, err)
	assert.Equal(t, int32(os.Getpid()), pid)
}
